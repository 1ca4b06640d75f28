package progression

import (
	"testing"
	"time"

	apperrors "github.com/nylanalyn/jeeves-quest/internal/platform/errors"
	"github.com/nylanalyn/jeeves-quest/internal/quest/formula"
	"github.com/nylanalyn/jeeves-quest/internal/quest/player"
	"pgregory.net/rapid"
)

func newTestEngine() *Engine {
	return NewEngine(formula.Default())
}

func newTestPlayer(level int) player.Player {
	e := newTestEngine()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := player.NewPlayer("alice", BaseMaxEnergy, e.XPForLevel(1), now)
	p.Level = level
	if level >= DefaultLevelCap {
		p.XP = 0
		p.XPToNextLevel = 0
	} else {
		p.XPToNextLevel = e.XPForLevel(level)
	}
	return p
}

func TestGrantXPLevelsUp(t *testing.T) {
	e := newTestEngine()
	p := newTestPlayer(1)

	// Level 1 needs 100 xp and level 2 needs 200; granting 350 clears both
	// and leaves 50 in level 3's pool of 300.
	e.GrantXP(&p, 350)
	if p.Level != 3 {
		t.Fatalf("level = %d, want 3", p.Level)
	}
	if p.XP != 50 {
		t.Fatalf("xp = %d, want 50", p.XP)
	}
	if p.XPToNextLevel != 300 {
		t.Fatalf("xpToNextLevel = %d, want 300", p.XPToNextLevel)
	}
}

func TestGrantXPPinsAtCap(t *testing.T) {
	e := newTestEngine()
	p := newTestPlayer(19)
	p.XP = 0

	e.GrantXP(&p, 10_000_000)
	if p.Level != DefaultLevelCap {
		t.Fatalf("level = %d, want %d", p.Level, DefaultLevelCap)
	}
	if p.XP != 0 || p.XPToNextLevel != 0 {
		t.Fatalf("cap should pin xp to 0/0, got %d/%d", p.XP, p.XPToNextLevel)
	}
}

func TestDeductXPCanLevelDown(t *testing.T) {
	e := newTestEngine()
	p := newTestPlayer(3)
	p.XP = 50

	// Cumulative = 100 + 200 + 50 = 350. Deducting 300 leaves 50: level 1.
	e.DeductXP(&p, 300)
	if p.Level != 1 {
		t.Fatalf("level = %d, want 1", p.Level)
	}
	if p.XP != 50 {
		t.Fatalf("xp = %d, want 50", p.XP)
	}
}

func TestDeductXPFloorsAtLevelOne(t *testing.T) {
	e := newTestEngine()
	p := newTestPlayer(2)

	e.DeductXP(&p, 10_000_000)
	if p.Level != 1 || p.XP != 0 {
		t.Fatalf("floor = level %d / xp %d, want 1/0", p.Level, p.XP)
	}
}

func TestGrantNeverLowersDeductCan(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := newTestEngine()
		p := newTestPlayer(rapid.IntRange(1, 19).Draw(t, "level"))
		p.XP = rapid.IntRange(0, p.XPToNextLevel-1).Draw(t, "xp")

		before := p.Level
		for i := 0; i < rapid.IntRange(1, 5).Draw(t, "grants"); i++ {
			e.GrantXP(&p, rapid.IntRange(1, 500).Draw(t, "amount"))
			if p.Level < before {
				t.Fatalf("grant lowered level %d -> %d", before, p.Level)
			}
			before = p.Level
		}

		e.DeductXP(&p, 10_000_000)
		if p.Level > before {
			t.Fatalf("deduct raised level %d -> %d", before, p.Level)
		}
	})
}

func TestXPInvariantAfterMutation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := newTestEngine()
		p := newTestPlayer(1)
		for i := 0; i < rapid.IntRange(1, 30).Draw(t, "steps"); i++ {
			if rapid.Bool().Draw(t, "grant") {
				e.GrantXP(&p, rapid.IntRange(1, 1000).Draw(t, "gain"))
			} else {
				e.DeductXP(&p, rapid.IntRange(1, 1000).Draw(t, "loss"))
			}
			if p.Level >= DefaultLevelCap {
				if p.XP != 0 || p.XPToNextLevel != 0 {
					t.Fatalf("cap invariant broken: %d/%d", p.XP, p.XPToNextLevel)
				}
				continue
			}
			if p.XP >= p.XPToNextLevel {
				t.Fatalf("xp %d >= threshold %d below cap", p.XP, p.XPToNextLevel)
			}
		}
	})
}

func TestPrestigeRequiresCap(t *testing.T) {
	e := newTestEngine()
	p := newTestPlayer(19)

	err := e.Prestige(&p)
	if !apperrors.IsCode(err, apperrors.CodeBelowLevelCapForPrestige) {
		t.Fatalf("expected below-cap error, got %v", err)
	}
}

func TestPrestigeResets(t *testing.T) {
	e := newTestEngine()
	p := newTestPlayer(DefaultLevelCap)
	p.WinStreak = 9
	p.ChallengePath = "ironflesh"
	p.Inventory = map[string]int{player.ItemMedkit: 2}
	p.ActiveInjuries = []player.Injury{{Name: "Broken Rib"}}

	if err := e.Prestige(&p); err != nil {
		t.Fatalf("prestige: %v", err)
	}
	if p.Level != 1 || p.Prestige != 1 || p.XP != 0 {
		t.Fatalf("post-prestige state: level %d prestige %d xp %d", p.Level, p.Prestige, p.XP)
	}
	if p.WinStreak != 0 || p.ChallengePath != "" || len(p.ActiveInjuries) != 0 {
		t.Fatal("prestige did not clear streak/path/injuries")
	}
	if p.Inventory[player.ItemMedkit] != 2 {
		t.Fatal("prestige should preserve inventory")
	}
	// No energy bonus below prestige 4.
	if p.Energy != BaseMaxEnergy {
		t.Fatalf("energy = %d, want %d", p.Energy, BaseMaxEnergy)
	}
}

// A path with an energy bonus must not leak its delta through the prestige
// reset: the refill is computed after the path is cleared.
func TestPrestigeDropsChallengeEnergyDelta(t *testing.T) {
	e := newTestEngine()
	p := newTestPlayer(DefaultLevelCap)
	p.ChallengePath = "ironflesh"
	p.Energy = BaseMaxEnergy + 2

	if err := e.Prestige(&p); err != nil {
		t.Fatalf("prestige: %v", err)
	}
	if max := MaxEnergy(&p, 0); p.Energy > max {
		t.Fatalf("energy %d exceeds post-prestige max %d", p.Energy, max)
	}
	if p.Energy != BaseMaxEnergy {
		t.Fatalf("energy = %d, want %d", p.Energy, BaseMaxEnergy)
	}
}

func TestPrestigeBandingTables(t *testing.T) {
	tests := []struct {
		prestige   int
		win        float64
		xp         float64
		energy     int
	}{
		{prestige: 0, win: 0, xp: 1.0, energy: 0},
		{prestige: 1, win: 0, xp: 1.10, energy: 0},
		{prestige: 3, win: 0, xp: 1.10, energy: 0},
		{prestige: 4, win: 0.07, xp: 1.20, energy: 2},
		{prestige: 6, win: 0.07, xp: 1.20, energy: 2},
		{prestige: 7, win: 0.14, xp: 1.35, energy: 4},
		{prestige: 9, win: 0.14, xp: 1.35, energy: 4},
		{prestige: 10, win: 0.20, xp: 1.50, energy: 5},
	}
	for _, tt := range tests {
		if got := PrestigeWinBonus(tt.prestige); got != tt.win {
			t.Errorf("PrestigeWinBonus(%d) = %v, want %v", tt.prestige, got, tt.win)
		}
		if got := PrestigeXPMultiplier(tt.prestige); got != tt.xp {
			t.Errorf("PrestigeXPMultiplier(%d) = %v, want %v", tt.prestige, got, tt.xp)
		}
		if got := PrestigeEnergyBonus(tt.prestige); got != tt.energy {
			t.Errorf("PrestigeEnergyBonus(%d) = %v, want %v", tt.prestige, got, tt.energy)
		}
	}
}

func TestTranscendRequiresMaxPrestige(t *testing.T) {
	e := newTestEngine()
	p := newTestPlayer(DefaultLevelCap)
	p.Prestige = 9

	_, err := e.Transcend(&p)
	if !apperrors.IsCode(err, apperrors.CodeBelowPrestigeCapForTranscend) {
		t.Fatalf("expected below-prestige error, got %v", err)
	}
}

func TestTranscendResetsAndRegisters(t *testing.T) {
	e := newTestEngine()
	p := newTestPlayer(DefaultLevelCap)
	p.DisplayName = "Alice"
	p.Prestige = PrestigeMax
	p.Inventory = map[string]int{player.ItemDungeonRelic: 3}
	p.UnlockedAbilities = []string{"second_wind"}

	legend, err := e.Transcend(&p)
	if err != nil {
		t.Fatalf("transcend: %v", err)
	}
	if p.Level != 1 || p.Prestige != 1 || p.Transcendence != 1 {
		t.Fatalf("post-transcend state: level %d prestige %d transcendence %d", p.Level, p.Prestige, p.Transcendence)
	}
	if len(p.Inventory) != 0 {
		t.Fatal("transcend should empty the inventory")
	}
	if len(p.UnlockedAbilities) != 1 {
		t.Fatal("transcend should preserve unlocked abilities")
	}
	if legend.Name != "Alice" || legend.Transcendence != 1 {
		t.Fatalf("unexpected legend registration: %+v", legend)
	}
}

func TestLegendBossLevel(t *testing.T) {
	tests := []struct {
		challenger    int
		transcendence int
		want          int
	}{
		{challenger: 1, transcendence: 1, want: 25},
		{challenger: 30, transcendence: 1, want: 35},
		{challenger: 1, transcendence: 3, want: 31},
	}
	for _, tt := range tests {
		if got := LegendBossLevel(tt.challenger, tt.transcendence); got != tt.want {
			t.Errorf("LegendBossLevel(%d, %d) = %d, want %d", tt.challenger, tt.transcendence, got, tt.want)
		}
	}
}

func TestHardcoreLifecycle(t *testing.T) {
	e := newTestEngine()
	p := newTestPlayer(DefaultLevelCap)
	p.Inventory = map[string]int{player.ItemMedkit: 3}

	if err := e.EnterHardcore(&p); err != nil {
		t.Fatalf("enter: %v", err)
	}
	if !p.Hardcore.Enabled {
		t.Fatal("hardcore not enabled")
	}
	if p.Hardcore.MaxHP != 100+DefaultLevelCap*20 {
		t.Fatalf("max hp = %d", p.Hardcore.MaxHP)
	}
	if len(p.Inventory) != 0 || p.Hardcore.Locker[player.ItemMedkit] != 3 {
		t.Fatal("inventory not locked away")
	}
	if err := e.EnterHardcore(&p); !apperrors.IsCode(err, apperrors.CodeHardcoreAlreadyEnabled) {
		t.Fatalf("double enter: %v", err)
	}

	// Death exits with no reward but restores the locker.
	died := ApplyHardcoreDamage(&p, p.Hardcore.HP+10)
	if !died {
		t.Fatal("expected death")
	}
	if err := e.ExitHardcore(&p, HardcoreExitDeath); err != nil {
		t.Fatalf("exit: %v", err)
	}
	if p.Hardcore.Enabled {
		t.Fatal("hardcore still enabled")
	}
	if p.Inventory[player.ItemMedkit] != 3 {
		t.Fatal("locker not restored")
	}
	if p.Prestige != 0 {
		t.Fatalf("death exit granted prestige %d", p.Prestige)
	}
}

func TestHardcoreVictoryGrantsPrestige(t *testing.T) {
	e := newTestEngine()
	p := newTestPlayer(DefaultLevelCap)
	if err := e.EnterHardcore(&p); err != nil {
		t.Fatalf("enter: %v", err)
	}
	p.Hardcore.PermanentItems = []string{player.ItemLuckyCharm}
	p.Inventory[player.ItemLuckyCharm] = 1
	p.Level = HardcoreLevelCap

	if err := e.ExitHardcore(&p, HardcoreExitVictory); err != nil {
		t.Fatalf("exit: %v", err)
	}
	if p.Prestige != 1 || p.Level != 1 {
		t.Fatalf("victory exit: prestige %d level %d", p.Prestige, p.Level)
	}
	if p.Inventory[player.ItemLuckyCharm] != 1 {
		t.Fatal("permanent item lost on exit")
	}
}

func TestCompleteHardcoreFiresAtCap(t *testing.T) {
	e := newTestEngine()
	p := newTestPlayer(DefaultLevelCap)
	p.Inventory = map[string]int{player.ItemMedkit: 3}
	if err := e.EnterHardcore(&p); err != nil {
		t.Fatalf("enter: %v", err)
	}

	p.Level = HardcoreLevelCap - 1
	if e.CompleteHardcore(&p) {
		t.Fatal("victory exit fired below the hardcore cap")
	}

	p.Level = HardcoreLevelCap
	if !e.CompleteHardcore(&p) {
		t.Fatal("victory exit did not fire at the hardcore cap")
	}
	if p.Hardcore.Enabled {
		t.Fatal("hardcore still enabled after victory")
	}
	if p.Prestige != 1 || p.Level != 1 {
		t.Fatalf("victory reward: prestige %d level %d", p.Prestige, p.Level)
	}
	if p.Inventory[player.ItemMedkit] != 3 {
		t.Fatal("locker not restored on victory")
	}

	// Off the hardcore track the helper is a no-op.
	if e.CompleteHardcore(&p) {
		t.Fatal("victory exit fired outside a hardcore run")
	}
}

func TestHardcoreDamageScaling(t *testing.T) {
	if win, loss := HardcoreDamage(true, 20, 20, 0), HardcoreDamage(false, 20, 20, 0); win >= loss {
		t.Fatalf("win damage %d should be below loss damage %d", win, loss)
	}
	if flat, uphill := HardcoreDamage(false, 20, 20, 0), HardcoreDamage(false, 20, 25, 0); uphill <= flat {
		t.Fatalf("outleveled damage %d should exceed even damage %d", uphill, flat)
	}
	if base, prestiged := HardcoreDamage(false, 20, 20, 0), HardcoreDamage(false, 20, 20, 5); prestiged <= base {
		t.Fatalf("prestige difficulty should raise damage: %d vs %d", prestiged, base)
	}
}
