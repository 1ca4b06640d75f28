// Package bosshunt runs the server-wide collaborative hunt: clue drops on
// ordinary wins chip away at a shared boss HP pool, a defeat opens a buff
// window, and the signature boss leaves a haunting behind.
package bosshunt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nylanalyn/jeeves-quest/internal/core/chance"
	"github.com/nylanalyn/jeeves-quest/internal/quest/content"
	"github.com/nylanalyn/jeeves-quest/internal/storage"
)

const stateKey = "quest/bosshunt"

// Settings paths and their defaults.
const (
	SettingClueChance     = "bosshunt.clueChance"
	SettingClueDamage     = "bosshunt.clueDamage"
	SettingBuffWindow     = "bosshunt.buffWindow"
	SettingBuffXPMult     = "bosshunt.buffXPMultiplier"
	SettingBuffLevelDrop  = "bosshunt.buffLevelReduction"
	SettingHauntingWindow = "bosshunt.hauntingWindow"

	DefaultClueChance     = 0.15
	DefaultClueDamage     = 25
	DefaultBuffWindow     = 48 * time.Hour
	DefaultBuffXPMult     = 1.5
	DefaultBuffLevelDrop  = 2
	DefaultHauntingWindow = 5 * 24 * time.Hour
)

// Haunting flavor odds rise linearly across the window.
const (
	hauntFlavorMin = 0.20
	hauntFlavorMax = 0.70
)

var hauntFlavor = []string{
	"A cold draft follows you out of the fight.",
	"Something laughs where nothing stands.",
	"The shadows keep the shape of the fallen boss a moment too long.",
	"You hear your own name, whispered backwards.",
}

// BossState is the active hunt target.
type BossState struct {
	Name  string `json:"name"`
	HP    int    `json:"hp"`
	MaxHP int    `json:"maxHp"`
	Clues int    `json:"clues"`
}

// Buff is the post-victory reward window.
type Buff struct {
	Active         bool      `json:"active"`
	ExpiresAt      time.Time `json:"expiresAt"`
	XPMultiplier   float64   `json:"xpMultiplier"`
	LevelReduction int       `json:"levelReduction"`
}

// Haunting is the flavor window a defeated signature boss leaves behind.
type Haunting struct {
	Active   bool      `json:"active"`
	BossName string    `json:"bossName"`
	StartsAt time.Time `json:"startsAt"`
	EndsAt   time.Time `json:"endsAt"`
}

// State is the global hunt singleton, persisted as one named blob.
type State struct {
	CurrentBoss *BossState `json:"currentBoss,omitempty"`
	Buff        Buff       `json:"buff"`
	Haunting    Haunting   `json:"haunting"`
	// NotifiedUserIDs tracks who has seen the return notice for the
	// currently spawned boss.
	NotifiedUserIDs []string `json:"notifiedUserIds,omitempty"`
	// PendingReturnNotice is set when a boss respawns after a haunting.
	PendingReturnNotice bool `json:"pendingReturnNotice,omitempty"`
}

// Event is one user-visible hunt development.
type Event struct {
	Kind EventKind
	Line string
}

// EventKind discriminates hunt events.
type EventKind string

const (
	EventClue     EventKind = "clue"
	EventDefeat   EventKind = "defeat"
	EventSpawn    EventKind = "spawn"
	EventBuffOver EventKind = "buff_over"
	EventHauntEnd EventKind = "haunt_end"
)

// Hunt coordinates the global boss hunt. One mutex guards the singleton
// state; persistence happens outside the critical section.
type Hunt struct {
	tables   *content.Content
	settings *content.Settings
	states   storage.NamedStateStore
	src      *chance.Source
	now      func() time.Time

	mu     sync.Mutex
	state  State
	saveMu sync.Mutex
}

// New creates a hunt over the given collaborators.
func New(tables *content.Content, settings *content.Settings, states storage.NamedStateStore, src *chance.Source, now func() time.Time) *Hunt {
	return &Hunt{
		tables:   tables,
		settings: settings,
		states:   states,
		src:      src,
		now:      now,
	}
}

// Load restores the persisted hunt state. A missing record starts a fresh
// hunt.
func (h *Hunt) Load(ctx context.Context) error {
	blob, err := h.states.GetNamedState(ctx, stateKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load boss hunt: %w", err)
	}
	var state State
	if err := json.Unmarshal(blob, &state); err != nil {
		return fmt.Errorf("decode boss hunt: %w", err)
	}
	h.mu.Lock()
	h.state = state
	h.mu.Unlock()
	return nil
}

// Sweep expires finished windows and spawns a boss when the field is clear.
// The scheduler calls this periodically; it is also run inline before clue
// rolls so a lapsed window never blocks a spawn.
func (h *Hunt) Sweep(ctx context.Context) ([]Event, error) {
	h.mu.Lock()
	events := h.sweepLocked()
	snapshot := h.state
	h.mu.Unlock()
	if len(events) > 0 {
		if err := h.persist(ctx, snapshot); err != nil {
			return events, err
		}
	}
	return events, nil
}

// sweepLocked advances window expiry and spawning. Caller holds h.mu.
func (h *Hunt) sweepLocked() []Event {
	now := h.now()
	var events []Event

	if h.state.Buff.Active && now.After(h.state.Buff.ExpiresAt) {
		h.state.Buff = Buff{}
		events = append(events, Event{Kind: EventBuffOver, Line: "The hunt's blessing fades."})
	}
	if h.state.Haunting.Active && now.After(h.state.Haunting.EndsAt) {
		name := h.state.Haunting.BossName
		h.state.Haunting = Haunting{}
		h.state.PendingReturnNotice = true
		h.state.NotifiedUserIDs = nil
		events = append(events, Event{Kind: EventHauntEnd, Line: fmt.Sprintf("The haunting of %s lifts.", name)})
	}

	if h.state.CurrentBoss == nil && !h.state.Buff.Active && !h.hauntingOpenLocked(now) {
		boss := h.tables.RandomBoss(h.src)
		h.state.CurrentBoss = &BossState{Name: boss.Name, HP: boss.MaxHP, MaxHP: boss.MaxHP}
		events = append(events, Event{Kind: EventSpawn, Line: fmt.Sprintf("%s stalks the land. The hunt is on.", boss.Name)})
	}
	return events
}

// hauntingOpenLocked reports whether a haunting window is open or still
// pending (scheduled behind an active buff). Caller holds h.mu.
func (h *Hunt) hauntingOpenLocked(now time.Time) bool {
	if !h.state.Haunting.Active {
		return false
	}
	return !now.After(h.state.Haunting.EndsAt)
}

// OnWin rolls the clue drop for one ordinary combat win and applies it.
func (h *Hunt) OnWin(ctx context.Context, userID string) ([]Event, error) {
	h.mu.Lock()
	events := h.sweepLocked()

	if h.state.CurrentBoss == nil {
		snapshot := h.state
		h.mu.Unlock()
		if len(events) > 0 {
			if err := h.persist(ctx, snapshot); err != nil {
				return events, err
			}
		}
		return events, nil
	}

	chance := h.settings.Float(SettingClueChance, "", DefaultClueChance)
	if !h.src.Check(chance) {
		snapshot := h.state
		h.mu.Unlock()
		if len(events) > 0 {
			if err := h.persist(ctx, snapshot); err != nil {
				return events, err
			}
		}
		return events, nil
	}

	damage := h.settings.Int(SettingClueDamage, "", DefaultClueDamage)
	boss := h.state.CurrentBoss
	boss.HP -= damage
	boss.Clues++
	events = append(events, Event{
		Kind: EventClue,
		Line: fmt.Sprintf("You uncover a clue about %s! (%d damage, %d HP left)", boss.Name, damage, maxInt(boss.HP, 0)),
	})

	if boss.HP <= 0 {
		events = append(events, h.defeatLocked(boss)...)
	}
	snapshot := h.state
	h.mu.Unlock()
	return events, h.persist(ctx, snapshot)
}

// defeatLocked books a boss defeat: buff window, and for the signature boss
// a haunting scheduled behind it. Caller holds h.mu.
func (h *Hunt) defeatLocked(boss *BossState) []Event {
	now := h.now()
	window := h.settings.Duration(SettingBuffWindow, "", DefaultBuffWindow)
	h.state.Buff = Buff{
		Active:         true,
		ExpiresAt:      now.Add(window),
		XPMultiplier:   h.settings.Float(SettingBuffXPMult, "", DefaultBuffXPMult),
		LevelReduction: h.settings.Int(SettingBuffLevelDrop, "", DefaultBuffLevelDrop),
	}
	events := []Event{{
		Kind: EventDefeat,
		Line: fmt.Sprintf("%s falls after %d clues! The realm celebrates.", boss.Name, boss.Clues),
	}}

	if boss.Name == h.tables.SignatureBoss().Name {
		haunt := h.settings.Duration(SettingHauntingWindow, "", DefaultHauntingWindow)
		start := h.state.Buff.ExpiresAt
		h.state.Haunting = Haunting{
			Active:   true,
			BossName: boss.Name,
			StartsAt: start,
			EndsAt:   start.Add(haunt),
		}
	}
	h.state.CurrentBoss = nil
	return events
}

// XPMultiplier returns the buff XP multiplier in effect, 1.0 otherwise.
func (h *Hunt) XPMultiplier() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state.Buff.Active && !h.now().After(h.state.Buff.ExpiresAt) {
		return h.state.Buff.XPMultiplier
	}
	return 1.0
}

// LevelReduction returns the buff's monster level reduction, zero otherwise.
func (h *Hunt) LevelReduction() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state.Buff.Active && !h.now().After(h.state.Buff.ExpiresAt) {
		return h.state.Buff.LevelReduction
	}
	return 0
}

// FlavorChance returns the haunting flavor probability at the given time:
// zero outside the window, rising linearly from 20% to 70% across it.
func (h *Hunt) FlavorChance(now time.Time) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	haunt := h.state.Haunting
	if !haunt.Active || now.Before(haunt.StartsAt) || now.After(haunt.EndsAt) {
		return 0
	}
	span := haunt.EndsAt.Sub(haunt.StartsAt)
	if span <= 0 {
		return hauntFlavorMax
	}
	progress := float64(now.Sub(haunt.StartsAt)) / float64(span)
	return hauntFlavorMin + (hauntFlavorMax-hauntFlavorMin)*progress
}

// RollFlavor rolls a haunting flavor line for an injury or win message.
func (h *Hunt) RollFlavor() (string, bool) {
	p := h.FlavorChance(h.now())
	if p <= 0 || !h.src.Check(p) {
		return "", false
	}
	return hauntFlavor[h.src.Index(len(hauntFlavor))], true
}

// ReturnNotice returns the one-time "the hunt resumes" line for a user after
// a post-haunting respawn, and records that they have seen it.
func (h *Hunt) ReturnNotice(ctx context.Context, userID string) (string, bool, error) {
	h.mu.Lock()
	if !h.state.PendingReturnNotice || h.state.CurrentBoss == nil {
		h.mu.Unlock()
		return "", false, nil
	}
	for _, seen := range h.state.NotifiedUserIDs {
		if seen == userID {
			h.mu.Unlock()
			return "", false, nil
		}
	}
	h.state.NotifiedUserIDs = append(h.state.NotifiedUserIDs, userID)
	line := fmt.Sprintf("%s has returned. The hunt begins anew.", h.state.CurrentBoss.Name)
	snapshot := h.state
	h.mu.Unlock()
	return line, true, h.persist(ctx, snapshot)
}

// Snapshot returns a copy of the current hunt state for status output.
func (h *Hunt) Snapshot() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.state
	if h.state.CurrentBoss != nil {
		boss := *h.state.CurrentBoss
		out.CurrentBoss = &boss
	}
	out.NotifiedUserIDs = append([]string(nil), h.state.NotifiedUserIDs...)
	return out
}

// persist writes a state snapshot outside the main lock.
func (h *Hunt) persist(ctx context.Context, snapshot State) error {
	blob, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode boss hunt: %w", err)
	}
	h.saveMu.Lock()
	defer h.saveMu.Unlock()
	if err := h.states.SetNamedState(ctx, stateKey, blob); err != nil {
		return fmt.Errorf("persist boss hunt: %w", err)
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
