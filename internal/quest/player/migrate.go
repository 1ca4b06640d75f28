package player

import (
	"encoding/json"
	"fmt"
	"time"
)

// legacyRecord is the superset of every schema the store has ever written.
// Version 0/1 records carried a single `injury` field and an `effects`
// string list; both are upgraded into the current shape exactly once.
type legacyRecord struct {
	Player
	LegacyInjury  *legacyInjury `json:"injury,omitempty"`
	LegacyEffects []string      `json:"effects,omitempty"`
}

type legacyInjury struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// decode unmarshals a stored blob and migrates it to SchemaVersion.
func decode(blob []byte) (Player, error) {
	var record legacyRecord
	if err := json.Unmarshal(blob, &record); err != nil {
		return Player{}, fmt.Errorf("decode player record: %w", err)
	}
	return migrate(record), nil
}

// migrate upgrades a loaded record to the current schema. It is the only
// place legacy shapes are interpreted; callers everywhere else see
// SchemaVersion records.
func migrate(record legacyRecord) Player {
	p := record.Player

	if p.Version < 1 && record.LegacyInjury != nil {
		p.ActiveInjuries = append(p.ActiveInjuries, Injury{
			Name:        record.LegacyInjury.Name,
			Description: record.LegacyInjury.Description,
			ExpiresAt:   record.LegacyInjury.ExpiresAt,
		})
	}
	if p.Version < 2 {
		for _, name := range record.LegacyEffects {
			if kind, ok := legacyEffectKind(name); ok {
				p.ActiveEffects = append(p.ActiveEffects, defaultEffect(kind))
			}
		}
	}

	if p.Inventory == nil {
		p.Inventory = map[string]int{}
	}
	if p.Level < 1 {
		p.Level = 1
	}
	p.Version = SchemaVersion
	return p
}

// legacyEffectKind maps a v1 effect name string onto a typed kind.
func legacyEffectKind(name string) (EffectKind, bool) {
	switch name {
	case "lucky_charm", "luckycharm":
		return EffectLuckyCharm, true
	case "armor_shard", "armorshard":
		return EffectArmorShard, true
	case "xp_scroll", "xpscroll":
		return EffectXPScroll, true
	case "dungeon_relic", "relic":
		return EffectDungeonRelic, true
	default:
		return "", false
	}
}

// defaultEffect builds the typed effect a legacy name implied.
func defaultEffect(kind EffectKind) Effect {
	switch kind {
	case EffectLuckyCharm:
		return Effect{Kind: kind}
	case EffectArmorShard:
		return Effect{Kind: kind, InjuryReduction: 0.5, FightsRemaining: 3}
	case EffectXPScroll:
		return Effect{Kind: kind, XPMultiplier: 1.5}
	case EffectDungeonRelic:
		return Effect{Kind: kind, AutoWinsRemaining: 1}
	default:
		return Effect{Kind: kind}
	}
}

// encode marshals a record for persistence.
func encode(p Player) ([]byte, error) {
	blob, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode player record: %w", err)
	}
	return blob, nil
}
