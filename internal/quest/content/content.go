// Package content loads the numeric tables the quest engine runs on:
// monster lists, class bonuses, injuries, dungeon rooms, the boss-hunt
// roster and the party-size win tables. The tables are data, not logic;
// all game math lives in the packages that consume them.
package content

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/nylanalyn/jeeves-quest/internal/core/chance"
)

//go:embed content.json
var embedded []byte

// Monster is one opponent entry in a difficulty tier.
type Monster struct {
	Name  string `json:"name"`
	XPMin int    `json:"xpMin"`
	XPMax int    `json:"xpMax"`
}

// Difficulty is a solo-quest tier: its monster pool and scaling.
type Difficulty struct {
	Key          string    `json:"key"`
	LevelOffset  int       `json:"levelOffset"`
	XPMultiplier float64   `json:"xpMultiplier"`
	EnergyCost   int       `json:"energyCost"`
	Monsters     []Monster `json:"monsters"`
}

// ClassBand maps a level range to a win-chance bonus.
type ClassBand struct {
	MinLevel int     `json:"minLevel"`
	MaxLevel int     `json:"maxLevel"`
	WinBonus float64 `json:"winBonus"`
}

// Class is a playable class: either banded win bonuses by level range, or a
// flat injury-reduction class with no win effect.
type Class struct {
	Key             string      `json:"key"`
	Name            string      `json:"name"`
	Bands           []ClassBand `json:"bands,omitempty"`
	InjuryReduction float64     `json:"injuryReduction,omitempty"`
}

// WinBonusAt returns the class win-chance bonus for a level.
func (c Class) WinBonusAt(level int) float64 {
	for _, band := range c.Bands {
		if level >= band.MinLevel && level <= band.MaxLevel {
			return band.WinBonus
		}
	}
	return 0
}

// Injury is one entry in the injury table.
type Injury struct {
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	DurationMinutes int     `json:"durationMinutes"`
	WinPenalty      float64 `json:"winPenalty"`
}

// Room is one dungeon room. CounterItem names the inventory item that
// bypasses the room outright.
type Room struct {
	Name        string `json:"name"`
	Monster     string `json:"monster"`
	LevelOffset int    `json:"levelOffset"`
	XPMin       int    `json:"xpMin"`
	XPMax       int    `json:"xpMax"`
	CounterItem string `json:"counterItem"`
}

// PartialReward is one row of the dungeon quit/partial reward table.
type PartialReward struct {
	MinRooms int `json:"minRooms"`
	MaxRooms int `json:"maxRooms"`
	XP       int `json:"xp"`
	Relics   int `json:"relics"`
}

// Boss is one entry in the boss-hunt roster.
type Boss struct {
	Name  string `json:"name"`
	MaxHP int    `json:"maxHp"`
}

// PartyRow maps a minimum party size to a win chance.
type PartyRow struct {
	MinSize   int     `json:"minSize"`
	WinChance float64 `json:"winChance"`
}

// ChallengePath is a cosmetic-variant path with structural modifiers.
type ChallengePath struct {
	Key         string  `json:"key"`
	Name        string  `json:"name"`
	WinModifier float64 `json:"winModifier"`
	EnergyDelta int     `json:"energyDelta"`
	NoMedkits   bool    `json:"noMedkits,omitempty"`
}

// Content holds every loaded table.
type Content struct {
	Difficulties   []Difficulty    `json:"difficulties"`
	Classes        []Class         `json:"classes"`
	Injuries       []Injury        `json:"injuries"`
	Rooms          []Room          `json:"rooms"`
	PartialRewards []PartialReward `json:"partialRewards"`
	Bosses         []Boss          `json:"bosses"`
	MobParty       []PartyRow      `json:"mobParty"`
	BossParty      []PartyRow      `json:"bossParty"`
	MobMonsters    []Monster       `json:"mobMonsters"`
	ChallengePaths []ChallengePath `json:"challengePaths"`
}

// Load parses and validates the embedded content tables.
func Load() (*Content, error) {
	return Parse(embedded)
}

// Parse parses and validates content tables from raw JSON.
func Parse(raw []byte) (*Content, error) {
	var c Content
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse content: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Content) validate() error {
	if len(c.Difficulties) == 0 {
		return fmt.Errorf("content: no difficulty tiers")
	}
	for _, d := range c.Difficulties {
		if len(d.Monsters) == 0 {
			return fmt.Errorf("content: difficulty %q has no monsters", d.Key)
		}
	}
	if len(c.Rooms) != 10 {
		return fmt.Errorf("content: expected 10 dungeon rooms, got %d", len(c.Rooms))
	}
	if len(c.Bosses) < 2 {
		return fmt.Errorf("content: boss roster needs at least 2 entries, got %d", len(c.Bosses))
	}
	if len(c.MobParty) == 0 || len(c.BossParty) == 0 {
		return fmt.Errorf("content: missing party-size tables")
	}
	if len(c.MobMonsters) == 0 {
		return fmt.Errorf("content: no mob monsters")
	}
	if len(c.Injuries) == 0 {
		return fmt.Errorf("content: no injuries")
	}
	if len(c.PartialRewards) == 0 {
		return fmt.Errorf("content: no partial reward table")
	}
	return nil
}

// DifficultyByKey returns the tier with the given key, or false.
func (c *Content) DifficultyByKey(key string) (Difficulty, bool) {
	for _, d := range c.Difficulties {
		if d.Key == key {
			return d, true
		}
	}
	return Difficulty{}, false
}

// ClassByKey returns the class with the given key, or false.
func (c *Content) ClassByKey(key string) (Class, bool) {
	for _, cl := range c.Classes {
		if cl.Key == key {
			return cl, true
		}
	}
	return Class{}, false
}

// ChallengePathByKey returns the challenge path with the given key, or false.
func (c *Content) ChallengePathByKey(key string) (ChallengePath, bool) {
	for _, p := range c.ChallengePaths {
		if p.Key == key {
			return p, true
		}
	}
	return ChallengePath{}, false
}

// RandomMonster draws a uniform monster from the tier's pool.
func (d Difficulty) RandomMonster(src *chance.Source) Monster {
	return d.Monsters[src.Index(len(d.Monsters))]
}

// RandomInjury draws a uniform injury from the table.
func (c *Content) RandomInjury(src *chance.Source) Injury {
	return c.Injuries[src.Index(len(c.Injuries))]
}

// RandomMobMonster draws a uniform monster from the group-encounter pool.
func (c *Content) RandomMobMonster(src *chance.Source) Monster {
	return c.MobMonsters[src.Index(len(c.MobMonsters))]
}

// RandomBoss draws a uniform boss from the roster.
func (c *Content) RandomBoss(src *chance.Source) Boss {
	return c.Bosses[src.Index(len(c.Bosses))]
}

// SignatureBoss returns the roster's designated signature boss, whose defeat
// triggers the haunting window. By convention it is the second entry.
func (c *Content) SignatureBoss() Boss {
	return c.Bosses[1]
}

// PartyWinChance looks up the win chance for a party of the given size.
// Rows are matched by the highest MinSize at or below size.
func PartyWinChance(table []PartyRow, size int) float64 {
	chance := 0.0
	bestMin := -1
	for _, row := range table {
		if size >= row.MinSize && row.MinSize > bestMin {
			bestMin = row.MinSize
			chance = row.WinChance
		}
	}
	return chance
}

// PartialRewardFor returns the quit reward row for a rooms-cleared count.
func (c *Content) PartialRewardFor(roomsCleared int) PartialReward {
	for _, row := range c.PartialRewards {
		if roomsCleared >= row.MinRooms && roomsCleared <= row.MaxRooms {
			return row
		}
	}
	return PartialReward{}
}
