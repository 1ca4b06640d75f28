package progression

import (
	apperrors "github.com/nylanalyn/jeeves-quest/internal/platform/errors"
	"github.com/nylanalyn/jeeves-quest/internal/quest/player"
)

// MaxEnergy computes the player's energy ceiling: base plus the prestige
// bonus plus any challenge-path delta, floored at 1.
func MaxEnergy(p *player.Player, challengeDelta int) int {
	max := BaseMaxEnergy + PrestigeEnergyBonus(p.Prestige) + challengeDelta
	if max < 1 {
		max = 1
	}
	return max
}

// Prestige resets a capped player to level 1 and raises the prestige tier.
// Inventory survives; injuries, win streak and challenge path do not. The
// energy refill carries no challenge delta: the path was just cleared.
func (e *Engine) Prestige(p *player.Player) error {
	if p.Level < LevelCap(p) {
		return apperrors.New(apperrors.CodeBelowLevelCapForPrestige, "prestige requires the level cap")
	}
	if p.Prestige >= PrestigeMax {
		return apperrors.New(apperrors.CodeBelowLevelCapForPrestige, "prestige tier is already at maximum")
	}
	p.Prestige++
	p.Level = 1
	p.XP = 0
	p.XPToNextLevel = e.XPForLevel(1)
	p.WinStreak = 0
	p.ActiveInjuries = nil
	p.ChallengePath = ""
	p.ChallengeStats = nil
	p.Energy = MaxEnergy(p, 0)
	return nil
}

// LegendBoss is a transcended player registered as a potential opponent for
// future mob encounters.
type LegendBoss struct {
	UserID        string `json:"userId"`
	Name          string `json:"name"`
	Transcendence int    `json:"transcendence"`
}

// LegendBossLevel scales a legend boss against a challenger.
func LegendBossLevel(challengerLevel, transcendence int) int {
	base := DefaultLevelCap + 5
	if challengerLevel+5 > base {
		base = challengerLevel + 5
	}
	if transcendence < 1 {
		transcendence = 1
	}
	return base + 3*(transcendence-1)
}

// Transcend fully resets a max-prestige player to level 1 / prestige 1 with
// an empty inventory, preserving unlocked abilities, and returns the legend
// registration the encounter coordinator should store.
func (e *Engine) Transcend(p *player.Player) (LegendBoss, error) {
	if p.Prestige < PrestigeMax {
		return LegendBoss{}, apperrors.New(apperrors.CodeBelowPrestigeCapForTranscend, "transcendence requires maximum prestige")
	}
	p.Transcendence++
	p.Prestige = 1
	p.Level = 1
	p.XP = 0
	p.XPToNextLevel = e.XPForLevel(1)
	p.WinStreak = 0
	p.Inventory = map[string]int{}
	p.ActiveEffects = nil
	p.ActiveInjuries = nil
	p.ChallengePath = ""
	p.ChallengeStats = nil
	p.Energy = MaxEnergy(p, 0)
	name := p.DisplayName
	if name == "" {
		name = p.ID
	}
	return LegendBoss{UserID: p.ID, Name: name, Transcendence: p.Transcendence}, nil
}

// EnterHardcore moves a capped player onto the hardcore track: a 50-cap
// ladder with its own HP pool and permadeath. The regular inventory is
// locked away until the run ends.
func (e *Engine) EnterHardcore(p *player.Player) error {
	if p.Hardcore.Enabled {
		return apperrors.New(apperrors.CodeHardcoreAlreadyEnabled, "hardcore run already active")
	}
	if p.Level < DefaultLevelCap {
		return apperrors.New(apperrors.CodeBelowLevelCapForPrestige, "hardcore requires the level cap")
	}
	locker := p.Inventory
	if locker == nil {
		locker = map[string]int{}
	}
	p.Hardcore.Enabled = true
	p.Hardcore.Locker = locker
	p.Hardcore.MaxHP = HardcoreHP(p.Level)
	p.Hardcore.HP = p.Hardcore.MaxHP
	if p.Hardcore.Stats == nil {
		p.Hardcore.Stats = map[string]int{}
	}
	p.Inventory = map[string]int{}
	p.XP = 0
	p.XPToNextLevel = e.XPForLevel(p.Level)
	return nil
}

// HardcoreHP returns the hardcore HP pool for a level.
func HardcoreHP(level int) int {
	return 100 + level*20
}

// HardcoreExitReason explains why a hardcore run ended.
type HardcoreExitReason string

const (
	// HardcoreExitDeath is the permadeath exit: no reward.
	HardcoreExitDeath HardcoreExitReason = "death"
	// HardcoreExitVictory is the level-50 exit: full prestige reward.
	HardcoreExitVictory HardcoreExitReason = "victory"
	// HardcoreExitVoluntary is an explicit opt-out: no reward.
	HardcoreExitVoluntary HardcoreExitReason = "voluntary"
)

// ExitHardcore ends a hardcore run. Victory grants a prestige tier; every
// exit restores the locker plus any items flagged permanent.
func (e *Engine) ExitHardcore(p *player.Player, reason HardcoreExitReason) error {
	if !p.Hardcore.Enabled {
		return apperrors.New(apperrors.CodeHardcoreNotEnabled, "no hardcore run active")
	}
	restored := p.Hardcore.Locker
	if restored == nil {
		restored = map[string]int{}
	}
	for _, key := range p.Hardcore.PermanentItems {
		if p.Inventory[key] > restored[key] {
			restored[key] = p.Inventory[key]
		}
	}
	p.Inventory = restored
	p.Hardcore.Enabled = false
	p.Hardcore.Locker = nil
	p.Hardcore.HP = 0
	p.Hardcore.MaxHP = 0

	p.Level = DefaultLevelCap
	p.XP = 0
	p.XPToNextLevel = 0
	if reason == HardcoreExitVictory && p.Prestige < PrestigeMax {
		p.Prestige++
		p.Level = 1
		p.XPToNextLevel = e.XPForLevel(1)
	}
	p.Energy = MaxEnergy(p, 0)
	return nil
}

// CompleteHardcore exits the hardcore run with the victory reward once the
// player has climbed to the hardcore cap. It reports whether the exit fired.
func (e *Engine) CompleteHardcore(p *player.Player) bool {
	if !p.Hardcore.Enabled || p.Level < HardcoreLevelCap {
		return false
	}
	return e.ExitHardcore(p, HardcoreExitVictory) == nil
}

// HardcoreDamage computes the HP loss for one fight. Wins hurt less than
// losses; both scale with how far the opponent outlevels the player and
// with the prestige-derived difficulty multiplier.
func HardcoreDamage(won bool, playerLevel, monsterLevel, prestige int) int {
	base := 10
	if won {
		base = 4
	}
	delta := monsterLevel - playerLevel
	if delta < 0 {
		delta = 0
	}
	damage := float64(base+2*delta) * PrestigeDifficultyMultiplier(prestige)
	return int(damage)
}

// ApplyHardcoreDamage deducts fight damage from the HP pool and reports
// whether the run just ended in death.
func ApplyHardcoreDamage(p *player.Player, damage int) (died bool) {
	if !p.Hardcore.Enabled || damage <= 0 {
		return false
	}
	p.Hardcore.HP -= damage
	if p.Hardcore.HP <= 0 {
		p.Hardcore.HP = 0
		return true
	}
	return false
}
