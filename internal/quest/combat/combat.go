// Package combat resolves a single fight: win chance from two combatant
// levels plus every active modifier, the outcome roll, the XP award
// pipeline and the injury roll. Everything here is pure given its inputs
// and a chance source.
package combat

import (
	"github.com/nylanalyn/jeeves-quest/internal/core/chance"
)

// Win-chance bounds. The relic-override path bypasses them entirely.
const (
	MinWinChance = 0.05
	MaxWinChance = 0.95
)

// BaseWinChance is the chance before any level delta or modifier applies.
const BaseWinChance = 0.50

// LevelDeltaStep is the win-chance swing per level of difference.
const LevelDeltaStep = 0.10

// Modifiers collects every additive win-chance adjustment. They apply in
// struct order after the level delta.
type Modifiers struct {
	EnergyPenalty  float64 // negative when energy is low
	PrestigeBonus  float64
	ClassBonus     float64
	ChallengeBonus float64
	MomentumBonus  float64 // +2% per consecutive dungeon clear
	InjuryPenalty  float64 // positive value, subtracted
	LuckyCharm     float64 // pre-rolled 10-20% bonus, zero when uncharmed
	PartyBuff      float64
}

// Request describes one fight to resolve.
type Request struct {
	AttackerLevel int
	DefenderLevel int
	Modifiers     Modifiers
	// RelicAutoWin forces the outcome before any roll. It is checked ahead
	// of the modifier stack and is mutually exclusive with it.
	RelicAutoWin bool
}

// Result is the resolved outcome of one fight.
type Result struct {
	WinChance     float64
	RelicOverride bool
	Won           bool
	Roll          float64
}

// WinChance computes the clamped win chance for a request, ignoring any
// relic override.
func WinChance(req Request) float64 {
	p := BaseWinChance + LevelDeltaStep*float64(req.AttackerLevel-req.DefenderLevel)
	m := req.Modifiers
	p += m.EnergyPenalty
	p += m.PrestigeBonus
	p += m.ClassBonus
	p += m.ChallengeBonus
	p += m.MomentumBonus
	p -= m.InjuryPenalty
	p += m.LuckyCharm
	p += m.PartyBuff
	return Clamp(p)
}

// Clamp bounds a probability to [MinWinChance, MaxWinChance].
func Clamp(p float64) float64 {
	if p < MinWinChance {
		return MinWinChance
	}
	if p > MaxWinChance {
		return MaxWinChance
	}
	return p
}

// Resolve rolls the outcome of one fight. A charged dungeon relic forces a
// win with chance exactly 1.0 and no roll.
func Resolve(req Request, src *chance.Source) Result {
	if req.RelicAutoWin {
		return Result{WinChance: 1.0, RelicOverride: true, Won: true}
	}
	p := WinChance(req)
	roll := src.Float()
	return Result{WinChance: p, Won: roll < p, Roll: roll}
}

// XPRequest describes the award pipeline for one victorious fight.
type XPRequest struct {
	XPMin       int
	XPMax       int
	PlayerLevel int

	LevelMultiplier      float64 // xp per player level added to the base draw
	DifficultyMultiplier float64
	EnergyXPMultiplier   float64
	RareMultiplier       float64 // 1.0 for normal spawns
	HuntBuffMultiplier   float64 // 1.0 outside a boss-hunt buff window

	CritChance float64 // independent roll, doubles the award

	WinStreak      int     // consecutive wins before this fight
	StreakBonus    float64 // bonus per consecutive win
	StreakCap      float64 // cap on the total streak bonus
	ScrollBonus    float64 // xp-scroll multiplier, 1.0 when unscrolled
	PrestigeXPMult float64 // prestige-tier multiplier, 1.0 at prestige 0
}

// XPResult is the resolved award.
type XPResult struct {
	Total int
	Base  int
	Crit  bool
}

// RollXP draws the base award and applies every multiplier in the fixed
// pipeline order: base + level term, difficulty, energy, rare spawn, hunt
// buff, critical hit, win streak, xp scroll, prestige.
func RollXP(req XPRequest, src *chance.Source) XPResult {
	base := src.IntBetween(req.XPMin, req.XPMax)
	total := float64(base) + float64(req.PlayerLevel)*req.LevelMultiplier

	total *= nonZero(req.DifficultyMultiplier)
	total *= nonZero(req.EnergyXPMultiplier)
	total *= nonZero(req.RareMultiplier)
	total *= nonZero(req.HuntBuffMultiplier)

	crit := src.Check(req.CritChance)
	if crit {
		total *= 2
	}

	streak := float64(req.WinStreak) * req.StreakBonus
	if req.StreakCap > 0 && streak > req.StreakCap {
		streak = req.StreakCap
	}
	total *= 1 + streak

	total *= nonZero(req.ScrollBonus)
	total *= nonZero(req.PrestigeXPMult)

	award := int(total)
	if award < 1 {
		award = 1
	}
	return XPResult{Total: award, Base: base, Crit: crit}
}

// LossXP is the XP forfeited on defeat: the would-be award scaled by the
// configured loss percentage.
func LossXP(wouldBeTotal int, lossPercentage float64) int {
	loss := int(float64(wouldBeTotal) * lossPercentage)
	if loss < 0 {
		loss = 0
	}
	return loss
}

// RollInjury decides whether a defeat attaches an injury, after armor and
// class reductions.
func RollInjury(baseChance, armorReduction, classReduction float64, src *chance.Source) bool {
	p := baseChance * (1 - armorReduction) * (1 - classReduction)
	return src.Check(p)
}

func nonZero(mult float64) float64 {
	if mult <= 0 {
		return 1
	}
	return mult
}
