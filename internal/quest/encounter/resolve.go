package encounter

import (
	"context"
	"time"

	"github.com/nylanalyn/jeeves-quest/internal/core/chance"
	"github.com/nylanalyn/jeeves-quest/internal/quest/combat"
	"github.com/nylanalyn/jeeves-quest/internal/quest/content"
	"github.com/nylanalyn/jeeves-quest/internal/quest/player"
	"github.com/nylanalyn/jeeves-quest/internal/quest/progression"
	"github.com/nylanalyn/jeeves-quest/internal/quest/rules"
)

// PlayerUpdater is the slice of the player store the resolver needs.
type PlayerUpdater interface {
	Get(ctx context.Context, id string) (player.Player, error)
	Update(ctx context.Context, id string, fn func(*player.Player) error) (player.Player, error)
}

// ParticipantOutcome records what resolution did to one participant.
type ParticipantOutcome struct {
	UserID          string
	DisplayName     string
	XPDelta         int // positive on win, negative on loss
	Crit            bool
	Injury          *player.Injury
	LeveledTo       int // nonzero when the level changed
	HardcoreHP      int // HP remaining after damage, hardcore only
	Died            bool
	HardcoreVictory bool // reached the hardcore cap this fight
	Err             error
}

// Outcome is the full result of one encounter resolution.
type Outcome struct {
	Encounter     Encounter
	WinChance     float64
	Won           bool
	RelicOverride bool
	RelicUserID   string
	Participants  []ParticipantOutcome
}

// Resolver applies a consumed encounter to every participant.
type Resolver struct {
	players  PlayerUpdater
	progress *progression.Engine
	tables   *content.Content
	settings *content.Settings
	src      *chance.Source
	now      func() time.Time
}

// NewResolver creates a resolver over the given collaborators.
func NewResolver(players PlayerUpdater, progress *progression.Engine, tables *content.Content, settings *content.Settings, src *chance.Source, now func() time.Time) *Resolver {
	return &Resolver{
		players:  players,
		progress: progress,
		tables:   tables,
		settings: settings,
		src:      src,
		now:      now,
	}
}

// Resolve rolls the party outcome once and applies it to every participant
// in join order. One participant's failure never blocks the others; errors
// are collected per participant. huntBuffMult is the boss-hunt XP multiplier
// in effect, 1.0 outside a buff window.
func (r *Resolver) Resolve(ctx context.Context, enc Encounter, table []content.PartyRow, huntBuffMult float64) Outcome {
	out := Outcome{Encounter: enc}

	// A charged relic held by any participant overrides the boss roll
	// entirely. Checked before the roll, in join order.
	if enc.IsBoss {
		for _, part := range enc.Participants {
			rec, err := r.players.Get(ctx, part.UserID)
			if err != nil {
				continue
			}
			if effect := rec.EffectOfKind(player.EffectDungeonRelic); effect != nil && effect.AutoWinsRemaining > 0 {
				out.RelicOverride = true
				out.RelicUserID = part.UserID
				break
			}
		}
	}

	if out.RelicOverride {
		out.WinChance = 1.0
		out.Won = true
	} else {
		out.WinChance = content.PartyWinChance(table, enc.PartySize())
		out.Won = r.src.Check(out.WinChance)
	}

	for _, part := range enc.Participants {
		out.Participants = append(out.Participants, r.applyOne(ctx, enc, part, out.Won, part.UserID == out.RelicUserID, huntBuffMult))
	}
	return out
}

// applyOne mutates one participant's record for the resolution.
func (r *Resolver) applyOne(ctx context.Context, enc Encounter, part Participant, won, spentRelic bool, huntBuffMult float64) ParticipantOutcome {
	result := ParticipantOutcome{UserID: part.UserID, DisplayName: part.DisplayName}
	now := r.now()

	_, err := r.players.Update(ctx, part.UserID, func(p *player.Player) error {
		p.PruneExpired(now)
		levelBefore := p.Level

		// Every participant pays the energy cost, floor zero.
		p.Energy--
		if p.Energy < 0 {
			p.Energy = 0
		}

		if spentRelic {
			if effect := p.EffectOfKind(player.EffectDungeonRelic); effect != nil {
				effect.AutoWinsRemaining--
				if effect.AutoWinsRemaining <= 0 {
					p.RemoveEffect(player.EffectDungeonRelic)
				}
			}
		}

		req := rules.XPParams(p, enc.XPMin, enc.XPMax, r.difficultyMult(enc), r.rareMult(enc), huntBuffMult, r.settings, enc.Channel)
		award := combat.RollXP(req, r.src)

		if won {
			result.XPDelta = award.Total
			result.Crit = award.Crit
			r.progress.GrantXP(p, award.Total)
			p.Wins++
			p.WinStreak++
			if req.ScrollBonus > 1 {
				p.RemoveEffect(player.EffectXPScroll)
			}
		} else {
			loss := combat.LossXP(award.Total, r.settings.Float(rules.SettingLossPercent, enc.Channel, rules.DefaultLossPercent))
			result.XPDelta = -loss
			r.progress.DeductXP(p, loss)
			p.Losses++
			p.WinStreak = 0
			r.rollInjury(p, enc.Channel, now, &result)
		}
		p.RemoveEffect(player.EffectLuckyCharm)

		if p.Hardcore.Enabled {
			damage := progression.HardcoreDamage(won, p.Level, enc.MonsterLevel, p.Prestige)
			result.Died = progression.ApplyHardcoreDamage(p, damage)
			result.HardcoreHP = p.Hardcore.HP
			if result.Died {
				if err := r.progress.ExitHardcore(p, progression.HardcoreExitDeath); err != nil {
					return err
				}
			} else if r.progress.CompleteHardcore(p) {
				result.HardcoreVictory = true
			}
		}

		if p.Level != levelBefore {
			result.LeveledTo = p.Level
		}
		return nil
	})
	result.Err = err
	return result
}

// rollInjury attaches a random injury on a lost fight, after armor and
// class reductions.
func (r *Resolver) rollInjury(p *player.Player, channel string, now time.Time, result *ParticipantOutcome) {
	base := r.settings.Float(rules.SettingInjuryChance, channel, rules.DefaultInjuryChance)
	armor := rules.ArmorReduction(p)
	class := rules.ClassInjuryReduction(p, r.tables)
	if !combat.RollInjury(base, armor, class, r.src) {
		return
	}
	picked := r.tables.RandomInjury(r.src)
	injury := player.Injury{
		Name:        picked.Name,
		Description: picked.Description,
		ExpiresAt:   now.Add(time.Duration(picked.DurationMinutes) * time.Minute),
		WinPenalty:  picked.WinPenalty,
	}
	if p.AddInjury(injury) {
		result.Injury = &injury
	}
	if effect := p.EffectOfKind(player.EffectArmorShard); effect != nil {
		effect.FightsRemaining--
		if effect.FightsRemaining <= 0 {
			p.RemoveEffect(player.EffectArmorShard)
		}
	}
}

func (r *Resolver) difficultyMult(enc Encounter) float64 {
	mult := 1.0
	if enc.IsBoss {
		mult *= r.settings.Float(rules.SettingBossXPMultiplier, enc.Channel, rules.DefaultBossXPMultiplier)
	}
	if enc.IsLegend {
		mult *= r.settings.Float(rules.SettingLegendXPMultiplier, enc.Channel, rules.DefaultLegendXPMultiplier)
	}
	return mult
}

func (r *Resolver) rareMult(enc Encounter) float64 {
	if enc.IsRare {
		return r.settings.Float(rules.SettingRareXPMultiplier, enc.Channel, rules.DefaultRareXPMultiplier)
	}
	return 1.0
}
