package engine

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/nylanalyn/jeeves-quest/internal/platform/errors"
	"github.com/nylanalyn/jeeves-quest/internal/quest/bosshunt"
	"github.com/nylanalyn/jeeves-quest/internal/quest/combat"
	"github.com/nylanalyn/jeeves-quest/internal/quest/player"
	"github.com/nylanalyn/jeeves-quest/internal/quest/progression"
	"github.com/nylanalyn/jeeves-quest/internal/quest/rules"
	"github.com/nylanalyn/jeeves-quest/internal/telemetry"
)

// DefaultDifficulty is used when the caller names no tier.
const DefaultDifficulty = "medium"

// SoloQuest runs one fight against a random monster from the chosen
// difficulty tier.
func (e *Engine) SoloQuest(ctx context.Context, userID, channel, difficultyKey string) (Result, error) {
	return e.run(ctx, "SoloQuest", userID, channel, func(ctx context.Context) (Result, error) {
		if difficultyKey == "" {
			difficultyKey = DefaultDifficulty
		}
		tier, found := e.tables.DifficultyByKey(difficultyKey)
		if !found {
			return Result{}, apperrors.WithMetadata(apperrors.CodeNotFound,
				fmt.Sprintf("unknown difficulty %q", difficultyKey),
				map[string]string{"difficulty": difficultyKey})
		}

		var lines []string
		var won bool
		var injured *player.Injury
		monster := tier.RandomMonster(e.src)
		huntMult := e.hunt.XPMultiplier()
		levelDrop := e.hunt.LevelReduction()

		_, err := e.players.Update(ctx, userID, func(p *player.Player) error {
			now := e.sched.Now()
			p.PruneExpired(now)
			if !p.SpendEnergy(tier.EnergyCost) {
				return apperrors.New(apperrors.CodeInsufficientEnergy, "not enough energy to quest")
			}

			defender := p.Level + tier.LevelOffset - levelDrop
			if defender < 1 {
				defender = 1
			}
			result := combat.Resolve(combat.Request{
				AttackerLevel: p.Level,
				DefenderLevel: defender,
				Modifiers:     rules.SoloModifiers(p, e.tables, e.settings, channel),
			}, e.src)
			won = result.Won

			levelBefore := p.Level
			req := rules.XPParams(p, monster.XPMin, monster.XPMax, tier.XPMultiplier, 1.0, huntMult, e.settings, channel)
			award := combat.RollXP(req, e.src)

			if result.Won {
				e.progress.GrantXP(p, award.Total)
				p.Wins++
				p.WinStreak++
				if req.ScrollBonus > 1 {
					p.RemoveEffect(player.EffectXPScroll)
				}
				line := fmt.Sprintf("You defeat the %s and earn %d XP!", monster.Name, award.Total)
				if award.Crit {
					line = fmt.Sprintf("Critical hit! You destroy the %s and earn %d XP!", monster.Name, award.Total)
				}
				lines = append(lines, line)
			} else {
				loss := combat.LossXP(award.Total, e.settings.Float(rules.SettingLossPercent, channel, rules.DefaultLossPercent))
				e.progress.DeductXP(p, loss)
				p.Losses++
				p.WinStreak = 0
				lines = append(lines, fmt.Sprintf("The %s beats you back. You lose %d XP.", monster.Name, loss))
				injured = e.rollInjury(p, channel, now)
				if injured != nil {
					lines = append(lines, fmt.Sprintf("You suffer a %s. %s", injured.Name, injured.Description))
				}
			}
			p.RemoveEffect(player.EffectLuckyCharm)

			hardcoreEnded := false
			if p.Hardcore.Enabled {
				damage := progression.HardcoreDamage(result.Won, p.Level, defender, p.Prestige)
				if progression.ApplyHardcoreDamage(p, damage) {
					if err := e.progress.ExitHardcore(p, progression.HardcoreExitDeath); err != nil {
						return err
					}
					hardcoreEnded = true
					lines = append(lines, "Your hardcore run ends in death. Your locker is returned.")
				} else if e.progress.CompleteHardcore(p) {
					hardcoreEnded = true
					lines = append(lines, fmt.Sprintf("You conquer the hardcore ladder! Prestige %d, and your locker is returned.", p.Prestige))
				} else {
					lines = append(lines, fmt.Sprintf("Hardcore: %d/%d HP remain.", p.Hardcore.HP, p.Hardcore.MaxHP))
				}
			}
			if hardcoreEnded {
				return nil
			}
			if p.Level > levelBefore {
				lines = append(lines, levelUpLine(p.Level))
			} else if p.Level < levelBefore {
				lines = append(lines, fmt.Sprintf("The defeat costs you a level. You are now level %d.", p.Level))
			}
			return nil
		})
		if err != nil {
			return Result{}, err
		}

		// Clue rolls and haunting flavor run outside the player lock.
		if won {
			events, huntErr := e.hunt.OnWin(ctx, userID)
			if huntErr != nil {
				return Result{}, huntErr
			}
			for _, evt := range events {
				lines = append(lines, evt.Line)
				if evt.Kind == bosshunt.EventDefeat {
					e.emit(ctx, telemetry.KindBossDefeated, userID, channel, evt.Line)
				}
			}
		}
		if won || injured != nil {
			if flavor, haunted := e.hunt.RollFlavor(); haunted {
				lines = append(lines, flavor)
			}
		}
		if notice, fresh, noticeErr := e.hunt.ReturnNotice(ctx, userID); noticeErr == nil && fresh {
			lines = append(lines, notice)
		}

		e.emit(ctx, telemetry.KindQuestResolved, userID, channel, fmt.Sprintf("difficulty=%s monster=%s won=%t", tier.Key, monster.Name, won))
		return ok(lines...), nil
	})
}

// rollInjury attaches a random injury on defeat, honoring armor and class
// reductions. It returns the injury when one landed.
func (e *Engine) rollInjury(p *player.Player, channel string, now time.Time) *player.Injury {
	base := e.settings.Float(rules.SettingInjuryChance, channel, rules.DefaultInjuryChance)
	if !combat.RollInjury(base, rules.ArmorReduction(p), rules.ClassInjuryReduction(p, e.tables), e.src) {
		return nil
	}
	picked := e.tables.RandomInjury(e.src)
	injury := player.Injury{
		Name:        picked.Name,
		Description: picked.Description,
		ExpiresAt:   now.Add(time.Duration(picked.DurationMinutes) * time.Minute),
		WinPenalty:  picked.WinPenalty,
	}
	if effect := p.EffectOfKind(player.EffectArmorShard); effect != nil {
		effect.FightsRemaining--
		if effect.FightsRemaining <= 0 {
			p.RemoveEffect(player.EffectArmorShard)
		}
	}
	if !p.AddInjury(injury) {
		return nil
	}
	return &injury
}
