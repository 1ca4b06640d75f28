// Package rules maps a player record and the layered settings onto the
// numeric inputs the combat resolver consumes. It owns the defaults for
// every tunable combat knob so the resolver itself stays pure.
package rules

import (
	"github.com/nylanalyn/jeeves-quest/internal/quest/combat"
	"github.com/nylanalyn/jeeves-quest/internal/quest/content"
	"github.com/nylanalyn/jeeves-quest/internal/quest/player"
	"github.com/nylanalyn/jeeves-quest/internal/quest/progression"
)

// Settings paths and their defaults.
const (
	SettingLowEnergyThreshold  = "quest.lowEnergyThreshold"
	SettingEnergyPenaltyStep   = "quest.energyPenaltyStep"
	SettingLowEnergyXPMult     = "quest.lowEnergyXPMultiplier"
	SettingXPLevelMultiplier   = "quest.xpLevelMultiplier"
	SettingCritChance          = "quest.critChance"
	SettingStreakBonus         = "quest.streakBonus"
	SettingStreakCap           = "quest.streakCap"
	SettingLossPercent         = "quest.lossPercent"
	SettingInjuryChance        = "quest.injuryChance"
	SettingRareXPMultiplier    = "quest.rareXPMultiplier"
	SettingBossXPMultiplier    = "quest.bossXPMultiplier"
	SettingLegendXPMultiplier  = "quest.legendXPMultiplier"
	SettingMomentumBonusPerWin = "quest.momentumBonus"

	DefaultLowEnergyThreshold = 3
	DefaultEnergyPenaltyStep  = 0.05
	DefaultLowEnergyXPMult    = 0.5
	DefaultXPLevelMultiplier  = 2.0
	DefaultCritChance         = 0.15
	DefaultStreakBonus        = 0.10
	DefaultStreakCap          = 0.50
	DefaultLossPercent        = 0.25
	DefaultInjuryChance       = 0.30
	DefaultRareXPMultiplier   = 2.0
	DefaultBossXPMultiplier   = 2.0
	DefaultLegendXPMultiplier = 3.0
	DefaultMomentumBonus      = 0.02
)

// EnergyPenalty returns the negative win-chance modifier for a low-energy
// player, zero at or above the threshold.
func EnergyPenalty(p *player.Player, settings *content.Settings, channel string) float64 {
	threshold := settings.Int(SettingLowEnergyThreshold, channel, DefaultLowEnergyThreshold)
	if p.Energy >= threshold {
		return 0
	}
	step := settings.Float(SettingEnergyPenaltyStep, channel, DefaultEnergyPenaltyStep)
	return -float64(threshold-p.Energy) * step
}

// EnergyXPMultiplier returns the XP scaling for the player's energy level.
func EnergyXPMultiplier(p *player.Player, settings *content.Settings, channel string) float64 {
	threshold := settings.Int(SettingLowEnergyThreshold, channel, DefaultLowEnergyThreshold)
	if p.Energy >= threshold {
		return 1.0
	}
	return settings.Float(SettingLowEnergyXPMult, channel, DefaultLowEnergyXPMult)
}

// ClassWinBonus returns the player's class win-chance bonus at their level.
func ClassWinBonus(p *player.Player, tables *content.Content) float64 {
	cls, ok := tables.ClassByKey(p.Class)
	if !ok {
		return 0
	}
	return cls.WinBonusAt(p.Level)
}

// ClassInjuryReduction returns the player's class injury reduction.
func ClassInjuryReduction(p *player.Player, tables *content.Content) float64 {
	cls, ok := tables.ClassByKey(p.Class)
	if !ok {
		return 0
	}
	return cls.InjuryReduction
}

// ChallengeWinModifier returns the win modifier of the player's active
// challenge path.
func ChallengeWinModifier(p *player.Player, tables *content.Content) float64 {
	path, ok := tables.ChallengePathByKey(p.ChallengePath)
	if !ok {
		return 0
	}
	return path.WinModifier
}

// LuckyCharmBonus returns the pre-rolled charm bonus, zero when uncharmed.
func LuckyCharmBonus(p *player.Player) float64 {
	if effect := p.EffectOfKind(player.EffectLuckyCharm); effect != nil {
		return effect.WinBonus
	}
	return 0
}

// ArmorReduction returns the injury reduction from an active armor shard.
func ArmorReduction(p *player.Player) float64 {
	if effect := p.EffectOfKind(player.EffectArmorShard); effect != nil {
		return effect.InjuryReduction
	}
	return 0
}

// ScrollBonus returns the XP-scroll multiplier, 1.0 when unscrolled.
func ScrollBonus(p *player.Player) float64 {
	if effect := p.EffectOfKind(player.EffectXPScroll); effect != nil && effect.XPMultiplier > 0 {
		return effect.XPMultiplier
	}
	return 1.0
}

// PartyBuffBonus returns the win bonus from an active party buff.
func PartyBuffBonus(p *player.Player) float64 {
	if effect := p.EffectOfKind(player.EffectPartyBuff); effect != nil {
		return effect.WinBonus
	}
	return 0
}

// SoloModifiers assembles the full additive modifier stack for a solo fight.
func SoloModifiers(p *player.Player, tables *content.Content, settings *content.Settings, channel string) combat.Modifiers {
	return combat.Modifiers{
		EnergyPenalty:  EnergyPenalty(p, settings, channel),
		PrestigeBonus:  progression.PrestigeWinBonus(p.Prestige),
		ClassBonus:     ClassWinBonus(p, tables),
		ChallengeBonus: ChallengeWinModifier(p, tables),
		InjuryPenalty:  p.InjuryWinPenalty(),
		LuckyCharm:     LuckyCharmBonus(p),
		PartyBuff:      PartyBuffBonus(p),
	}
}

// XPParams fills the award pipeline for one victorious fight against a
// monster with the given XP range.
func XPParams(p *player.Player, xpMin, xpMax int, difficultyMult, rareMult, huntBuffMult float64, settings *content.Settings, channel string) combat.XPRequest {
	return combat.XPRequest{
		XPMin:                xpMin,
		XPMax:                xpMax,
		PlayerLevel:          p.Level,
		LevelMultiplier:      settings.Float(SettingXPLevelMultiplier, channel, DefaultXPLevelMultiplier),
		DifficultyMultiplier: difficultyMult,
		EnergyXPMultiplier:   EnergyXPMultiplier(p, settings, channel),
		RareMultiplier:       rareMult,
		HuntBuffMultiplier:   huntBuffMult,
		CritChance:           settings.Float(SettingCritChance, channel, DefaultCritChance),
		WinStreak:            p.WinStreak,
		StreakBonus:          settings.Float(SettingStreakBonus, channel, DefaultStreakBonus),
		StreakCap:            settings.Float(SettingStreakCap, channel, DefaultStreakCap),
		ScrollBonus:          ScrollBonus(p),
		PrestigeXPMult:       progression.PrestigeXPMultiplier(p.Prestige),
	}
}
