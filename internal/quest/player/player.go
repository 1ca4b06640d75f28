// Package player owns the canonical player record: its shape on disk, the
// legacy-schema migration, and the store that serialises every
// read-modify-write.
package player

import (
	"time"
)

// SchemaVersion is the current player record schema. Records persisted by
// older builds are upgraded once at load by migrate.
const SchemaVersion = 2

// Inventory item keys.
const (
	ItemMedkit       = "medkit"
	ItemEnergyPotion = "energy_potion"
	ItemLuckyCharm   = "lucky_charm"
	ItemArmorShard   = "armor_shard"
	ItemXPScroll     = "xp_scroll"
	ItemDungeonRelic = "dungeon_relic"
)

// EffectKind discriminates the closed set of active-effect variants.
type EffectKind string

const (
	EffectLuckyCharm   EffectKind = "lucky_charm"
	EffectArmorShard   EffectKind = "armor_shard"
	EffectXPScroll     EffectKind = "xp_scroll"
	EffectDungeonRelic EffectKind = "dungeon_relic"
	EffectPartyBuff    EffectKind = "party_buff"
)

// Effect is one active, time- or use-limited modifier. Which fields are
// meaningful depends on Kind; consumers dispatch with an explicit switch,
// never by interpreting strings.
type Effect struct {
	Kind EffectKind `json:"kind"`
	// WinBonus applies to lucky_charm and party_buff.
	WinBonus float64 `json:"winBonus,omitempty"`
	// InjuryReduction applies to armor_shard.
	InjuryReduction float64 `json:"injuryReduction,omitempty"`
	// FightsRemaining applies to armor_shard and party_buff.
	FightsRemaining int `json:"fightsRemaining,omitempty"`
	// XPMultiplier applies to xp_scroll and party_buff.
	XPMultiplier float64 `json:"xpMultiplier,omitempty"`
	// AutoWinsRemaining applies to dungeon_relic.
	AutoWinsRemaining int `json:"autoWinsRemaining,omitempty"`
	// ExpiresAt, when set, bounds the effect in time.
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// Injury is one active injury on a player.
type Injury struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ExpiresAt   time.Time `json:"expiresAt"`
	WinPenalty  float64   `json:"winPenalty"`
}

// MaxInjuriesPerName caps concurrent injuries of the same name.
const MaxInjuriesPerName = 2

// DungeonRun is an in-progress dungeon crawl.
type DungeonRun struct {
	StartedAt     time.Time `json:"startedAt"`
	CurrentRoom   int       `json:"currentRoom"` // 1-based room index about to be entered
	Momentum      int       `json:"momentum"`
	RoomsCleared  int       `json:"roomsCleared"`
	BypassUsed    bool      `json:"bypassUsed"`
	RelicAutoWins int       `json:"relicAutoWins"`
	AwaitingHaven bool      `json:"awaitingHaven"`
	EquippedItems []string  `json:"equippedItems"`
}

// DungeonState is the player's persistent dungeon bookkeeping.
type DungeonState struct {
	ActiveRun *DungeonRun `json:"activeRun,omitempty"`
	LastRun   string      `json:"lastRun,omitempty"` // terminal state of the previous run
	// Relic anti-farming chain: penalty carried into the next relic-fueled
	// clear, and when the chain last grew.
	CarriedRelicPenalty int       `json:"carriedRelicPenalty,omitempty"`
	LastRelicClearAt    time.Time `json:"lastRelicClearAt,omitempty"`
}

// HardcoreState is the alternate-track lifecycle state.
type HardcoreState struct {
	Enabled        bool           `json:"enabled"`
	HP             int            `json:"hp"`
	MaxHP          int            `json:"maxHp"`
	Locker         map[string]int `json:"locker,omitempty"`
	PermanentItems []string       `json:"permanentItems,omitempty"`
	Stats          map[string]int `json:"stats,omitempty"`
}

// Player is the canonical per-user record.
type Player struct {
	Version     int    `json:"version"`
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`

	Level         int `json:"level"`
	XP            int `json:"xp"`
	XPToNextLevel int `json:"xpToNextLevel"`
	Energy        int `json:"energy"`

	Class string `json:"class,omitempty"`

	Prestige      int `json:"prestige"`
	Transcendence int `json:"transcendence"`
	WinStreak     int `json:"winStreak"`
	Wins          int `json:"wins"`
	Losses        int `json:"losses"`

	Inventory      map[string]int `json:"inventory"`
	ActiveEffects  []Effect       `json:"activeEffects,omitempty"`
	ActiveInjuries []Injury       `json:"activeInjuries,omitempty"`

	ChallengePath     string               `json:"challengePath,omitempty"`
	ChallengeStats    map[string]int       `json:"challengeStats,omitempty"`
	UnlockedAbilities []string             `json:"unlockedAbilities,omitempty"`
	AbilityCooldowns  map[string]time.Time `json:"abilityCooldowns,omitempty"`

	Dungeon  DungeonState  `json:"dungeonState"`
	Hardcore HardcoreState `json:"hardcore"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewPlayer creates a fresh record for a user.
func NewPlayer(id string, energy int, xpToNext int, now time.Time) Player {
	return Player{
		Version:       SchemaVersion,
		ID:            id,
		Level:         1,
		XPToNextLevel: xpToNext,
		Energy:        energy,
		Inventory:     map[string]int{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// AddInjury attaches an injury unless the player already holds
// MaxInjuriesPerName of the same name. It reports whether it was attached.
func (p *Player) AddInjury(injury Injury) bool {
	count := 0
	for _, held := range p.ActiveInjuries {
		if held.Name == injury.Name {
			count++
		}
	}
	if count >= MaxInjuriesPerName {
		return false
	}
	p.ActiveInjuries = append(p.ActiveInjuries, injury)
	return true
}

// PruneExpired drops expired injuries and effects.
func (p *Player) PruneExpired(now time.Time) {
	injuries := p.ActiveInjuries[:0]
	for _, injury := range p.ActiveInjuries {
		if injury.ExpiresAt.After(now) {
			injuries = append(injuries, injury)
		}
	}
	p.ActiveInjuries = injuries

	effects := p.ActiveEffects[:0]
	for _, effect := range p.ActiveEffects {
		if !effect.ExpiresAt.IsZero() && !effect.ExpiresAt.After(now) {
			continue
		}
		effects = append(effects, effect)
	}
	p.ActiveEffects = effects
}

// EffectOfKind returns a pointer to the first active effect of kind, or nil.
func (p *Player) EffectOfKind(kind EffectKind) *Effect {
	for i := range p.ActiveEffects {
		if p.ActiveEffects[i].Kind == kind {
			return &p.ActiveEffects[i]
		}
	}
	return nil
}

// RemoveEffect removes the first active effect of kind.
func (p *Player) RemoveEffect(kind EffectKind) {
	for i := range p.ActiveEffects {
		if p.ActiveEffects[i].Kind == kind {
			p.ActiveEffects = append(p.ActiveEffects[:i], p.ActiveEffects[i+1:]...)
			return
		}
	}
}

// InjuryWinPenalty sums the win-chance penalties of all active injuries.
func (p *Player) InjuryWinPenalty() float64 {
	total := 0.0
	for _, injury := range p.ActiveInjuries {
		total += injury.WinPenalty
	}
	return total
}

// ItemCount returns the inventory count for key.
func (p *Player) ItemCount(key string) int {
	if p.Inventory == nil {
		return 0
	}
	return p.Inventory[key]
}

// ConsumeItem decrements the inventory count for key. It reports false when
// the player holds none.
func (p *Player) ConsumeItem(key string) bool {
	if p.Inventory == nil || p.Inventory[key] <= 0 {
		return false
	}
	p.Inventory[key]--
	if p.Inventory[key] == 0 {
		delete(p.Inventory, key)
	}
	return true
}

// GrantItem increments the inventory count for key.
func (p *Player) GrantItem(key string, count int) {
	if count <= 0 {
		return
	}
	if p.Inventory == nil {
		p.Inventory = map[string]int{}
	}
	p.Inventory[key] += count
}

// SpendEnergy deducts amount, reporting false when energy is insufficient.
func (p *Player) SpendEnergy(amount int) bool {
	if p.Energy < amount {
		return false
	}
	p.Energy -= amount
	return true
}

// RestoreEnergy adds amount, clamped to max.
func (p *Player) RestoreEnergy(amount, max int) {
	p.Energy += amount
	if p.Energy > max {
		p.Energy = max
	}
	if p.Energy < 0 {
		p.Energy = 0
	}
}
