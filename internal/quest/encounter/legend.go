package encounter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/nylanalyn/jeeves-quest/internal/core/chance"
	"github.com/nylanalyn/jeeves-quest/internal/quest/progression"
	"github.com/nylanalyn/jeeves-quest/internal/storage"
)

const legendStateKey = "quest/legends"

// LegendRegistry holds every transcended player eligible to spawn as a
// legend boss. Registrations survive restarts via the named-state store.
type LegendRegistry struct {
	states storage.NamedStateStore

	mu      sync.Mutex
	legends []progression.LegendBoss
}

// NewLegendRegistry creates a registry over the given persistence store.
func NewLegendRegistry(states storage.NamedStateStore) *LegendRegistry {
	return &LegendRegistry{states: states}
}

// Load restores persisted registrations. A missing record is an empty
// registry, not an error.
func (r *LegendRegistry) Load(ctx context.Context) error {
	blob, err := r.states.GetNamedState(ctx, legendStateKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load legends: %w", err)
	}
	var legends []progression.LegendBoss
	if err := json.Unmarshal(blob, &legends); err != nil {
		return fmt.Errorf("decode legends: %w", err)
	}
	r.mu.Lock()
	r.legends = legends
	r.mu.Unlock()
	return nil
}

// Register adds or refreshes a legend and persists the roster. A player who
// transcends again replaces their earlier registration.
func (r *LegendRegistry) Register(ctx context.Context, legend progression.LegendBoss) error {
	r.mu.Lock()
	replaced := false
	for i := range r.legends {
		if r.legends[i].UserID == legend.UserID {
			r.legends[i] = legend
			replaced = true
			break
		}
	}
	if !replaced {
		r.legends = append(r.legends, legend)
	}
	blob, err := json.Marshal(r.legends)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode legends: %w", err)
	}
	if err := r.states.SetNamedState(ctx, legendStateKey, blob); err != nil {
		return fmt.Errorf("persist legends: %w", err)
	}
	return nil
}

// Random draws a uniform legend from the roster. It reports false when the
// roster is empty.
func (r *LegendRegistry) Random(src *chance.Source) (progression.LegendBoss, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.legends) == 0 {
		return progression.LegendBoss{}, false
	}
	return r.legends[src.Index(len(r.legends))], true
}

// Len returns the roster size.
func (r *LegendRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.legends)
}
