// Package encounter coordinates the single active group fight per channel:
// the join window, the participant roster, party-size win scaling and the
// exactly-once resolution guarantee.
package encounter

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nylanalyn/jeeves-quest/internal/core/chance"
	apperrors "github.com/nylanalyn/jeeves-quest/internal/platform/errors"
	"github.com/nylanalyn/jeeves-quest/internal/quest/content"
	"github.com/nylanalyn/jeeves-quest/internal/quest/progression"
	"github.com/nylanalyn/jeeves-quest/internal/scheduler"
)

// Settings paths and their defaults.
const (
	SettingJoinWindow   = "encounter.joinWindow"
	SettingBossChance   = "encounter.bossChance"
	SettingRareChance   = "encounter.rareChance"
	SettingLegendChance = "encounter.legendChance"

	DefaultJoinWindow   = 90 * time.Second
	DefaultBossChance   = 0.20
	DefaultRareChance   = 0.05
	DefaultLegendChance = 0.10
)

// Legend encounters have no monster-table entry; their award range is fixed.
const (
	legendXPMin = 150
	legendXPMax = 300
)

// Participant is one player on the encounter roster.
type Participant struct {
	UserID      string
	DisplayName string
}

// Encounter is a snapshot of one group fight. The coordinator hands out
// copies; mutating a snapshot never touches coordinator state.
type Encounter struct {
	ID           string
	Channel      string
	MonsterName  string
	MonsterLevel int
	XPMin        int
	XPMax        int
	IsBoss       bool
	IsRare       bool
	IsLegend     bool
	LegendUserID string
	CloseAt      time.Time
	Participants []Participant
}

// PartySize returns the roster size.
func (e Encounter) PartySize() int {
	return len(e.Participants)
}

// active is the coordinator's live record for one open encounter.
type active struct {
	enc      Encounter
	consumed bool
	cancel   scheduler.Cancel
}

// CloseFunc is invoked when an encounter's join window elapses. It runs on
// the scheduler goroutine and must call Consume itself.
type CloseFunc func(encounterID string)

// Coordinator owns every open encounter. One lock serialises create, join
// and consume across all channels; encounters are low-frequency and the
// critical sections never touch I/O.
type Coordinator struct {
	tables   *content.Content
	settings *content.Settings
	src      *chance.Source
	sched    scheduler.Scheduler
	legends  *LegendRegistry

	mu        sync.Mutex
	onClose   CloseFunc
	byChannel map[string]*active
	byID      map[string]*active
}

// NewCoordinator creates a coordinator over the given collaborators.
func NewCoordinator(tables *content.Content, settings *content.Settings, src *chance.Source, sched scheduler.Scheduler, legends *LegendRegistry) *Coordinator {
	return &Coordinator{
		tables:    tables,
		settings:  settings,
		src:       src,
		sched:     sched,
		legends:   legends,
		byChannel: map[string]*active{},
		byID:      map[string]*active{},
	}
}

// SetCloseHandler installs the window-close callback. Wire this before the
// first StartOrJoin; encounters opened without a handler never auto-close.
func (c *Coordinator) SetCloseHandler(fn CloseFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = fn
}

// StartOrJoin opens a new encounter in the channel, or joins the open one.
// It reports whether the caller started the encounter. The caller's level
// scales the opponent when a new encounter is created.
func (c *Coordinator) StartOrJoin(channel, userID, displayName string, starterLevel int) (Encounter, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if a, ok := c.byChannel[channel]; ok && !a.consumed {
		for _, p := range a.enc.Participants {
			if p.UserID == userID {
				return a.enc.clone(), false, apperrors.WithMetadata(
					apperrors.CodeAlreadyParticipating,
					"already part of this encounter",
					map[string]string{"encounter_id": a.enc.ID},
				)
			}
		}
		a.enc.Participants = append(a.enc.Participants, Participant{UserID: userID, DisplayName: displayName})
		return a.enc.clone(), false, nil
	}

	enc := c.spawn(channel, starterLevel)
	enc.Participants = []Participant{{UserID: userID, DisplayName: displayName}}
	a := &active{enc: enc}
	c.byChannel[channel] = a
	c.byID[enc.ID] = a

	if fn := c.onClose; fn != nil {
		window := enc.CloseAt.Sub(c.sched.Now())
		id := enc.ID
		a.cancel = c.sched.After(window, func() { fn(id) })
	}
	return enc.clone(), true, nil
}

// spawn rolls the opponent for a new encounter. Legend and rare selection
// happens here, at creation time, never at resolution. Caller holds c.mu.
func (c *Coordinator) spawn(channel string, starterLevel int) Encounter {
	window := c.settings.Duration(SettingJoinWindow, channel, DefaultJoinWindow)
	enc := Encounter{
		ID:      uuid.NewString(),
		Channel: channel,
		CloseAt: c.sched.Now().Add(window),
		IsRare:  c.src.Check(c.settings.Float(SettingRareChance, channel, DefaultRareChance)),
	}

	if legend, ok := c.legends.Random(c.src); ok &&
		c.src.Check(c.settings.Float(SettingLegendChance, channel, DefaultLegendChance)) {
		enc.IsLegend = true
		enc.IsBoss = true
		enc.LegendUserID = legend.UserID
		enc.MonsterName = legend.Name
		enc.MonsterLevel = progression.LegendBossLevel(starterLevel, legend.Transcendence)
		enc.XPMin, enc.XPMax = legendXPMin, legendXPMax
		return enc
	}

	monster := c.tables.RandomMobMonster(c.src)
	enc.MonsterName = monster.Name
	enc.XPMin, enc.XPMax = monster.XPMin, monster.XPMax
	if c.src.Check(c.settings.Float(SettingBossChance, channel, DefaultBossChance)) {
		enc.IsBoss = true
		enc.MonsterLevel = starterLevel + c.src.IntBetween(3, 6)
	} else {
		enc.MonsterLevel = starterLevel + c.src.IntBetween(-1, 2)
	}
	if enc.MonsterLevel < 1 {
		enc.MonsterLevel = 1
	}
	return enc
}

// Consume atomically claims the encounter for resolution. Exactly one
// caller succeeds per encounter; the timer and an admin force-close can both
// call this and only the first gets the snapshot. The window timer is
// cancelled and the encounter leaves the channel.
func (c *Coordinator) Consume(encounterID string) (Encounter, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.byID[encounterID]
	if !ok || a.consumed {
		return Encounter{}, false
	}
	a.consumed = true
	if a.cancel != nil {
		a.cancel()
	}
	delete(c.byID, encounterID)
	if cur, ok := c.byChannel[a.enc.Channel]; ok && cur == a {
		delete(c.byChannel, a.enc.Channel)
	}
	return a.enc.clone(), true
}

// ActiveInChannel returns the open encounter in a channel, if any.
func (c *Coordinator) ActiveInChannel(channel string) (Encounter, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.byChannel[channel]
	if !ok || a.consumed {
		return Encounter{}, false
	}
	return a.enc.clone(), true
}

// PartyTable returns the party-size win table for this encounter type.
func (c *Coordinator) PartyTable(enc Encounter) []content.PartyRow {
	if enc.IsBoss {
		return c.tables.BossParty
	}
	return c.tables.MobParty
}

func (e Encounter) clone() Encounter {
	out := e
	out.Participants = append([]Participant(nil), e.Participants...)
	return out
}
