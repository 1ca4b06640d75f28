package engine

import (
	"context"
	"fmt"

	apperrors "github.com/nylanalyn/jeeves-quest/internal/platform/errors"
	"github.com/nylanalyn/jeeves-quest/internal/quest/player"
)

// Item tuning paths and their defaults.
const (
	SettingPotionRestore   = "items.energyPotionRestore"
	SettingArmorReduction  = "items.armorShardReduction"
	SettingArmorFights     = "items.armorShardFights"
	SettingScrollMult      = "items.xpScrollMultiplier"
	SettingCharmBonusMin   = "items.luckyCharmMin"
	SettingCharmBonusMax   = "items.luckyCharmMax"
	SettingRelicBossCharge = "items.relicChargesPerUse"

	DefaultPotionRestore  = 5
	DefaultArmorReduction = 0.5
	DefaultArmorFights    = 3
	DefaultScrollMult     = 1.5
	DefaultCharmBonusMin  = 0.10
	DefaultCharmBonusMax  = 0.20
	DefaultRelicCharges   = 1
)

// UseItem consumes one inventory item and applies its effect.
func (e *Engine) UseItem(ctx context.Context, userID, channel, itemKey string) (Result, error) {
	return e.run(ctx, "UseItem", userID, channel, func(ctx context.Context) (Result, error) {
		var line string
		_, err := e.players.Update(ctx, userID, func(p *player.Player) error {
			p.PruneExpired(e.sched.Now())
			switch itemKey {
			case player.ItemMedkit:
				return e.useMedkit(p, &line)
			case player.ItemEnergyPotion:
				return e.usePotion(p, channel, &line)
			case player.ItemLuckyCharm:
				return e.useCharm(p, channel, &line)
			case player.ItemArmorShard:
				return e.useArmor(p, channel, &line)
			case player.ItemXPScroll:
				return e.useScroll(p, channel, &line)
			case player.ItemDungeonRelic:
				return e.useRelic(p, channel, &line)
			default:
				return apperrors.WithMetadata(apperrors.CodeUnknownItem,
					fmt.Sprintf("unknown item %q", itemKey),
					map[string]string{"item": itemKey})
			}
		})
		if err != nil {
			return Result{}, err
		}
		return ok(line), nil
	})
}

// useMedkit heals every active injury. A no-medkit challenge path forbids it.
func (e *Engine) useMedkit(p *player.Player, line *string) error {
	if path, found := e.tables.ChallengePathByKey(p.ChallengePath); found && path.NoMedkits {
		return apperrors.New(apperrors.CodeChallengePathViolation, "medkits are forbidden on this path")
	}
	if !p.ConsumeItem(player.ItemMedkit) {
		return apperrors.New(apperrors.CodeEmptyInventory, "no medkits held")
	}
	healed := len(p.ActiveInjuries)
	p.ActiveInjuries = nil
	if healed == 0 {
		*line = "You patch yourself up, though nothing was bleeding."
		return nil
	}
	*line = fmt.Sprintf("You treat %d injuries. Good as new.", healed)
	return nil
}

func (e *Engine) usePotion(p *player.Player, channel string, line *string) error {
	if !p.ConsumeItem(player.ItemEnergyPotion) {
		return apperrors.New(apperrors.CodeEmptyInventory, "no energy potions held")
	}
	restore := e.settings.Int(SettingPotionRestore, channel, DefaultPotionRestore)
	p.RestoreEnergy(restore, e.maxEnergy(p))
	*line = fmt.Sprintf("The potion burns going down. Energy: %d.", p.Energy)
	return nil
}

// useCharm rolls the charm's bonus at activation; the next fight consumes it.
func (e *Engine) useCharm(p *player.Player, channel string, line *string) error {
	if !p.ConsumeItem(player.ItemLuckyCharm) {
		return apperrors.New(apperrors.CodeEmptyInventory, "no lucky charms held")
	}
	min := e.settings.Float(SettingCharmBonusMin, channel, DefaultCharmBonusMin)
	max := e.settings.Float(SettingCharmBonusMax, channel, DefaultCharmBonusMax)
	bonus := e.src.FloatBetween(min, max)
	p.RemoveEffect(player.EffectLuckyCharm)
	p.ActiveEffects = append(p.ActiveEffects, player.Effect{
		Kind:     player.EffectLuckyCharm,
		WinBonus: bonus,
	})
	*line = fmt.Sprintf("The charm hums with luck (+%d%% on your next fight).", int(bonus*100))
	return nil
}

func (e *Engine) useArmor(p *player.Player, channel string, line *string) error {
	if !p.ConsumeItem(player.ItemArmorShard) {
		return apperrors.New(apperrors.CodeEmptyInventory, "no armor shards held")
	}
	fights := e.settings.Int(SettingArmorFights, channel, DefaultArmorFights)
	p.RemoveEffect(player.EffectArmorShard)
	p.ActiveEffects = append(p.ActiveEffects, player.Effect{
		Kind:            player.EffectArmorShard,
		InjuryReduction: e.settings.Float(SettingArmorReduction, channel, DefaultArmorReduction),
		FightsRemaining: fights,
	})
	*line = fmt.Sprintf("The shard knits itself over your shoulders (%d fights).", fights)
	return nil
}

func (e *Engine) useScroll(p *player.Player, channel string, line *string) error {
	if !p.ConsumeItem(player.ItemXPScroll) {
		return apperrors.New(apperrors.CodeEmptyInventory, "no xp scrolls held")
	}
	mult := e.settings.Float(SettingScrollMult, channel, DefaultScrollMult)
	p.RemoveEffect(player.EffectXPScroll)
	p.ActiveEffects = append(p.ActiveEffects, player.Effect{
		Kind:         player.EffectXPScroll,
		XPMultiplier: mult,
	})
	*line = "The scroll's ink crawls up your arm. Your next victory will teach you more."
	return nil
}

// useRelic converts one relic into an auto-win charge, stacking onto any
// charges already active.
func (e *Engine) useRelic(p *player.Player, channel string, line *string) error {
	if !p.ConsumeItem(player.ItemDungeonRelic) {
		return apperrors.New(apperrors.CodeEmptyInventory, "no dungeon relics held")
	}
	charges := e.settings.Int(SettingRelicBossCharge, channel, DefaultRelicCharges)
	if effect := p.EffectOfKind(player.EffectDungeonRelic); effect != nil {
		effect.AutoWinsRemaining += charges
		*line = fmt.Sprintf("The relic's glow deepens (%d charges).", effect.AutoWinsRemaining)
		return nil
	}
	p.ActiveEffects = append(p.ActiveEffects, player.Effect{
		Kind:              player.EffectDungeonRelic,
		AutoWinsRemaining: charges,
	})
	*line = fmt.Sprintf("The relic thrums with certainty (%d charge).", charges)
	return nil
}
