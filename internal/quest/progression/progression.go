// Package progression applies XP gain and loss, level movement, prestige
// resets, transcendence and the hardcore lifecycle.
//
// GrantXP and DeductXP are deliberately asymmetric: grants carry XP forward
// through level-ups and never lower a level, while deductions re-derive the
// level from a cumulative total and can drop it. Win/loss UX depends on
// this; do not unify them.
package progression

import (
	"github.com/nylanalyn/jeeves-quest/internal/quest/formula"
	"github.com/nylanalyn/jeeves-quest/internal/quest/player"
)

// Level and prestige caps.
const (
	DefaultLevelCap  = 20
	HardcoreLevelCap = 50
	PrestigeMax      = 10
)

// BaseMaxEnergy is the energy ceiling before prestige and challenge-path
// adjustments.
const BaseMaxEnergy = 10

// Engine computes XP thresholds and mutates player progression.
type Engine struct {
	curve *formula.Curve
}

// NewEngine creates a progression engine over an XP curve.
func NewEngine(curve *formula.Curve) *Engine {
	if curve == nil {
		curve = formula.Default()
	}
	return &Engine{curve: curve}
}

// XPForLevel returns the XP pool needed to clear the given level.
func (e *Engine) XPForLevel(level int) int {
	return e.curve.XPForLevel(level)
}

// LevelCap returns the cap for the player's current track.
func LevelCap(p *player.Player) int {
	if p.Hardcore.Enabled {
		return HardcoreLevelCap
	}
	return DefaultLevelCap
}

// GrantXP adds amount and advances levels while thresholds are cleared.
// At the cap both xp and xpToNextLevel pin to zero. Grants never lower a
// level.
func (e *Engine) GrantXP(p *player.Player, amount int) {
	if amount <= 0 {
		return
	}
	cap := LevelCap(p)
	if p.Level >= cap {
		p.XP = 0
		p.XPToNextLevel = 0
		return
	}
	if p.XPToNextLevel <= 0 {
		p.XPToNextLevel = e.XPForLevel(p.Level)
	}
	p.XP += amount
	for p.XP >= p.XPToNextLevel && p.Level < cap {
		p.XP -= p.XPToNextLevel
		p.Level++
		if p.Level >= cap {
			p.XP = 0
			p.XPToNextLevel = 0
			return
		}
		p.XPToNextLevel = e.XPForLevel(p.Level)
	}
}

// DeductXP converts (level, xp) to one cumulative total, subtracts amount,
// and re-derives (level, xp). Heavy losses drop levels; the floor is
// level 1 with zero xp.
func (e *Engine) DeductXP(p *player.Player, amount int) {
	if amount <= 0 {
		return
	}
	total := e.cumulativeXP(p.Level, p.XP)
	total -= amount
	if total < 0 {
		total = 0
	}
	level, xp := e.deriveLevel(total, LevelCap(p))
	p.Level = level
	p.XP = xp
	if p.Level >= LevelCap(p) {
		p.XP = 0
		p.XPToNextLevel = 0
	} else {
		p.XPToNextLevel = e.XPForLevel(p.Level)
	}
}

// cumulativeXP flattens (level, xp) into total earned XP.
func (e *Engine) cumulativeXP(level, xp int) int {
	total := xp
	for l := 1; l < level; l++ {
		total += e.XPForLevel(l)
	}
	return total
}

// deriveLevel converts a cumulative total back into (level, xp).
func (e *Engine) deriveLevel(total, cap int) (int, int) {
	level := 1
	for level < cap {
		threshold := e.XPForLevel(level)
		if total < threshold {
			break
		}
		total -= threshold
		level++
	}
	if level >= cap {
		return cap, 0
	}
	return level, total
}

// Prestige bonus tables. Banding: 0, 1-3, 4-6, 7-9, 10.

// PrestigeWinBonus returns the flat win-chance bonus for a prestige tier.
func PrestigeWinBonus(prestige int) float64 {
	switch {
	case prestige >= PrestigeMax:
		return 0.20
	case prestige >= 7:
		return 0.14
	case prestige >= 4:
		return 0.07
	default:
		return 0
	}
}

// PrestigeXPMultiplier returns the XP multiplier for a prestige tier.
func PrestigeXPMultiplier(prestige int) float64 {
	switch {
	case prestige >= PrestigeMax:
		return 1.50
	case prestige >= 7:
		return 1.35
	case prestige >= 4:
		return 1.20
	case prestige >= 1:
		return 1.10
	default:
		return 1.0
	}
}

// PrestigeEnergyBonus returns the max-energy bonus for a prestige tier.
func PrestigeEnergyBonus(prestige int) int {
	switch {
	case prestige >= PrestigeMax:
		return 5
	case prestige >= 7:
		return 4
	case prestige >= 4:
		return 2
	default:
		return 0
	}
}

// PrestigeDifficultyMultiplier scales hardcore damage with prestige tier.
func PrestigeDifficultyMultiplier(prestige int) float64 {
	return 1 + 0.10*float64(prestige)
}
