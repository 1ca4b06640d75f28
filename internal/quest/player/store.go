package player

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nylanalyn/jeeves-quest/internal/storage"
)

const stateKeyPrefix = "player/"

// Factory builds the default record for a user seen for the first time.
type Factory func(id string, now time.Time) Player

// Store owns every player record. Records are created lazily on first
// reference, migrated from legacy schemas at load, cached in memory, and
// persisted after every mutation. Read-modify-write is serialised with a
// per-player lock; the persistence write happens outside the critical
// section so no action blocks on I/O while holding a lock.
type Store struct {
	states  storage.NamedStateStore
	factory Factory
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu     sync.Mutex // serialises read-modify-write for one player
	saveMu sync.Mutex // orders persistence writes for one player
	loaded bool
	record Player
}

// NewStore creates a player store over the given persistence collaborator.
func NewStore(states storage.NamedStateStore, factory Factory) *Store {
	return &Store{
		states:  states,
		factory: factory,
		now:     time.Now,
		entries: map[string]*entry{},
	}
}

func (s *Store) entryFor(id string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		e = &entry{}
		s.entries[id] = e
	}
	return e
}

// load populates e.record from persistence or the factory. Caller holds e.mu.
func (s *Store) load(ctx context.Context, id string, e *entry) error {
	if e.loaded {
		return nil
	}
	blob, err := s.states.GetNamedState(ctx, stateKeyPrefix+id)
	switch {
	case err == nil:
		record, err := decode(blob)
		if err != nil {
			return err
		}
		record.ID = id
		e.record = record
	case errors.Is(err, storage.ErrNotFound):
		e.record = s.factory(id, s.now().UTC())
	default:
		return fmt.Errorf("load player %s: %w", id, err)
	}
	e.loaded = true
	return nil
}

// Get returns a copy of the player record, creating it if needed.
func (s *Store) Get(ctx context.Context, id string) (Player, error) {
	return s.Update(ctx, id, nil)
}

// Update applies fn to the player record atomically. When fn returns an
// error no mutation is committed or persisted. The returned Player is a
// copy of the committed record.
func (s *Store) Update(ctx context.Context, id string, fn func(*Player) error) (Player, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Player{}, fmt.Errorf("player id is required")
	}
	e := s.entryFor(id)

	e.mu.Lock()
	if err := s.load(ctx, id, e); err != nil {
		e.mu.Unlock()
		return Player{}, err
	}

	if fn == nil {
		snapshot := clonePlayer(e.record)
		e.mu.Unlock()
		return snapshot, nil
	}

	working := clonePlayer(e.record)
	if err := fn(&working); err != nil {
		e.mu.Unlock()
		return clonePlayer(e.record), err
	}
	working.UpdatedAt = s.now().UTC()
	e.record = working
	snapshot := clonePlayer(working)
	e.mu.Unlock()

	if err := s.persist(ctx, id, e, snapshot); err != nil {
		return snapshot, err
	}
	return snapshot, nil
}

// persist writes a committed snapshot. saveMu keeps writes for one player in
// commit order without blocking concurrent readers of the record.
func (s *Store) persist(ctx context.Context, id string, e *entry, snapshot Player) error {
	blob, err := encode(snapshot)
	if err != nil {
		return err
	}
	e.saveMu.Lock()
	defer e.saveMu.Unlock()
	if err := s.states.SetNamedState(ctx, stateKeyPrefix+id, blob); err != nil {
		return fmt.Errorf("persist player %s: %w", id, err)
	}
	return nil
}

// IDs returns the identifier of every known player, persisted or cached.
func (s *Store) IDs(ctx context.Context) ([]string, error) {
	keys, err := s.states.ListNamedState(ctx, stateKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	seen := map[string]bool{}
	var ids []string
	for _, key := range keys {
		id := strings.TrimPrefix(key, stateKeyPrefix)
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	s.mu.Lock()
	for id := range s.entries {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()
	return ids, nil
}

// clonePlayer deep-copies a record so callers never alias cached state.
func clonePlayer(p Player) Player {
	out := p
	if p.Inventory != nil {
		out.Inventory = make(map[string]int, len(p.Inventory))
		for k, v := range p.Inventory {
			out.Inventory[k] = v
		}
	}
	out.ActiveEffects = append([]Effect(nil), p.ActiveEffects...)
	out.ActiveInjuries = append([]Injury(nil), p.ActiveInjuries...)
	out.UnlockedAbilities = append([]string(nil), p.UnlockedAbilities...)
	if p.ChallengeStats != nil {
		out.ChallengeStats = make(map[string]int, len(p.ChallengeStats))
		for k, v := range p.ChallengeStats {
			out.ChallengeStats[k] = v
		}
	}
	if p.AbilityCooldowns != nil {
		out.AbilityCooldowns = make(map[string]time.Time, len(p.AbilityCooldowns))
		for k, v := range p.AbilityCooldowns {
			out.AbilityCooldowns[k] = v
		}
	}
	if p.Dungeon.ActiveRun != nil {
		run := *p.Dungeon.ActiveRun
		run.EquippedItems = append([]string(nil), p.Dungeon.ActiveRun.EquippedItems...)
		out.Dungeon.ActiveRun = &run
	}
	if p.Hardcore.Locker != nil {
		out.Hardcore.Locker = make(map[string]int, len(p.Hardcore.Locker))
		for k, v := range p.Hardcore.Locker {
			out.Hardcore.Locker[k] = v
		}
	}
	out.Hardcore.PermanentItems = append([]string(nil), p.Hardcore.PermanentItems...)
	if p.Hardcore.Stats != nil {
		out.Hardcore.Stats = make(map[string]int, len(p.Hardcore.Stats))
		for k, v := range p.Hardcore.Stats {
			out.Hardcore.Stats[k] = v
		}
	}
	return out
}
