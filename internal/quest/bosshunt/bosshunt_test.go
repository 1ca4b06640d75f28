package bosshunt

import (
	"context"
	"testing"
	"time"

	"github.com/nylanalyn/jeeves-quest/internal/core/chance"
	"github.com/nylanalyn/jeeves-quest/internal/quest/content"
	"github.com/nylanalyn/jeeves-quest/internal/storage"
)

type fixture struct {
	hunt     *Hunt
	settings *content.Settings
	states   *storage.MemoryStore
	now      time.Time
}

func newFixture(t *testing.T, seed int64) *fixture {
	t.Helper()
	tables, err := content.Load()
	if err != nil {
		t.Fatalf("load content: %v", err)
	}
	f := &fixture{
		settings: content.NewSettings(),
		states:   storage.NewMemoryStore(),
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.hunt = New(tables, f.settings, f.states, chance.NewSource(seed), func() time.Time { return f.now })
	return f
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

func hasKind(events []Event, kind EventKind) bool {
	for _, e := range events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

func TestSweepSpawnsWhenFieldIsClear(t *testing.T) {
	f := newFixture(t, 1)
	events, err := f.hunt.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if !hasKind(events, EventSpawn) {
		t.Fatalf("no spawn in %v", kinds(events))
	}
	snap := f.hunt.Snapshot()
	if snap.CurrentBoss == nil || snap.CurrentBoss.HP != snap.CurrentBoss.MaxHP {
		t.Fatalf("boss state = %+v", snap.CurrentBoss)
	}

	// A second sweep with a boss up does nothing.
	events, err = f.hunt.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("idle sweep produced %v", kinds(events))
	}
}

func TestClueDamagesBoss(t *testing.T) {
	f := newFixture(t, 1)
	f.settings.Set(SettingClueChance, "1.0")
	f.settings.Set(SettingClueDamage, "30")
	f.hunt.state.CurrentBoss = &BossState{Name: "The Collector", HP: 500, MaxHP: 500}

	events, err := f.hunt.OnWin(context.Background(), "u1")
	if err != nil {
		t.Fatalf("onwin: %v", err)
	}
	if !hasKind(events, EventClue) {
		t.Fatalf("no clue in %v", kinds(events))
	}
	snap := f.hunt.Snapshot()
	if snap.CurrentBoss.HP != 470 || snap.CurrentBoss.Clues != 1 {
		t.Fatalf("boss after clue = %+v", snap.CurrentBoss)
	}
}

func TestClueChanceZeroNeverDrops(t *testing.T) {
	f := newFixture(t, 1)
	f.settings.Set(SettingClueChance, "0")
	f.hunt.state.CurrentBoss = &BossState{Name: "The Collector", HP: 500, MaxHP: 500}

	for i := 0; i < 50; i++ {
		events, err := f.hunt.OnWin(context.Background(), "u1")
		if err != nil {
			t.Fatalf("onwin: %v", err)
		}
		if hasKind(events, EventClue) {
			t.Fatal("clue dropped at zero chance")
		}
	}
}

func TestDefeatOpensBuffWindow(t *testing.T) {
	f := newFixture(t, 1)
	f.settings.Set(SettingClueChance, "1.0")
	f.settings.Set(SettingClueDamage, "1000")
	f.hunt.state.CurrentBoss = &BossState{Name: "The Collector", HP: 500, MaxHP: 500, Clues: 19}

	events, err := f.hunt.OnWin(context.Background(), "u1")
	if err != nil {
		t.Fatalf("onwin: %v", err)
	}
	if !hasKind(events, EventDefeat) {
		t.Fatalf("no defeat in %v", kinds(events))
	}
	if f.hunt.XPMultiplier() != DefaultBuffXPMult {
		t.Fatalf("buff multiplier = %v", f.hunt.XPMultiplier())
	}
	if f.hunt.LevelReduction() != DefaultBuffLevelDrop {
		t.Fatalf("buff level reduction = %d", f.hunt.LevelReduction())
	}
	snap := f.hunt.Snapshot()
	if snap.CurrentBoss != nil {
		t.Fatal("defeated boss still active")
	}
	// The Collector is not the signature boss; no haunting follows.
	if snap.Haunting.Active {
		t.Fatalf("unexpected haunting: %+v", snap.Haunting)
	}

	// No respawn while the buff holds.
	events, _ = f.hunt.Sweep(context.Background())
	if hasKind(events, EventSpawn) {
		t.Fatal("boss respawned inside the buff window")
	}

	// Buff expiry frees the field.
	f.now = f.now.Add(DefaultBuffWindow + time.Hour)
	events, _ = f.hunt.Sweep(context.Background())
	if !hasKind(events, EventBuffOver) || !hasKind(events, EventSpawn) {
		t.Fatalf("post-buff sweep = %v", kinds(events))
	}
	if f.hunt.XPMultiplier() != 1.0 {
		t.Fatalf("expired buff multiplier = %v", f.hunt.XPMultiplier())
	}
}

func defeatSignature(t *testing.T, f *fixture) {
	t.Helper()
	f.settings.Set(SettingClueChance, "1.0")
	f.settings.Set(SettingClueDamage, "1000")
	f.hunt.state.CurrentBoss = &BossState{Name: "Madame Verge", HP: 650, MaxHP: 650}
	if _, err := f.hunt.OnWin(context.Background(), "u1"); err != nil {
		t.Fatalf("defeat signature: %v", err)
	}
}

func TestSignatureDefeatSchedulesHaunting(t *testing.T) {
	f := newFixture(t, 1)
	defeatSignature(t, f)

	snap := f.hunt.Snapshot()
	if !snap.Haunting.Active || snap.Haunting.BossName != "Madame Verge" {
		t.Fatalf("haunting = %+v", snap.Haunting)
	}
	if !snap.Haunting.StartsAt.Equal(snap.Buff.ExpiresAt) {
		t.Fatal("haunting should start when the buff ends")
	}

	// No flavor during the buff, before the haunting opens.
	if got := f.hunt.FlavorChance(f.now); got != 0 {
		t.Fatalf("flavor chance during buff = %v", got)
	}

	// The flavor chance rises linearly from 20% to 70% across the window.
	start := snap.Haunting.StartsAt
	span := snap.Haunting.EndsAt.Sub(start)
	if got := f.hunt.FlavorChance(start); got != hauntFlavorMin {
		t.Fatalf("flavor at window start = %v, want %v", got, hauntFlavorMin)
	}
	mid := start.Add(span / 2)
	if got := f.hunt.FlavorChance(mid); got < 0.44 || got > 0.46 {
		t.Fatalf("flavor at midpoint = %v, want ~0.45", got)
	}
	if got := f.hunt.FlavorChance(snap.Haunting.EndsAt); got != hauntFlavorMax {
		t.Fatalf("flavor at window end = %v, want %v", got, hauntFlavorMax)
	}
	if got := f.hunt.FlavorChance(snap.Haunting.EndsAt.Add(time.Minute)); got != 0 {
		t.Fatalf("flavor past window = %v, want 0", got)
	}
}

func TestNoRespawnDuringHaunting(t *testing.T) {
	f := newFixture(t, 1)
	defeatSignature(t, f)

	// Midway through the haunting: buff expired, haunting open, no boss.
	snap := f.hunt.Snapshot()
	f.now = snap.Haunting.StartsAt.Add(time.Hour)
	events, _ := f.hunt.Sweep(context.Background())
	if hasKind(events, EventSpawn) {
		t.Fatal("boss respawned during the haunting")
	}
}

func TestReturnNoticeOncePerUser(t *testing.T) {
	f := newFixture(t, 1)
	defeatSignature(t, f)
	ctx := context.Background()

	snap := f.hunt.Snapshot()
	f.now = snap.Haunting.EndsAt.Add(time.Hour)
	events, err := f.hunt.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if !hasKind(events, EventHauntEnd) || !hasKind(events, EventSpawn) {
		t.Fatalf("post-haunting sweep = %v", kinds(events))
	}

	line, notified, err := f.hunt.ReturnNotice(ctx, "u1")
	if err != nil || !notified || line == "" {
		t.Fatalf("first notice: %q %v %v", line, notified, err)
	}
	_, again, err := f.hunt.ReturnNotice(ctx, "u1")
	if err != nil || again {
		t.Fatalf("second notice repeated: %v %v", again, err)
	}
	_, other, err := f.hunt.ReturnNotice(ctx, "u2")
	if err != nil || !other {
		t.Fatalf("other user missed the notice: %v %v", other, err)
	}
}

func TestStatePersistsAcrossRestart(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	f.settings.Set(SettingClueChance, "1.0")
	f.settings.Set(SettingClueDamage, "30")
	if _, err := f.hunt.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if _, err := f.hunt.OnWin(ctx, "u1"); err != nil {
		t.Fatalf("onwin: %v", err)
	}
	before := f.hunt.Snapshot()

	restarted := New(f.hunt.tables, f.settings, f.states, chance.NewSource(2), func() time.Time { return f.now })
	if err := restarted.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	after := restarted.Snapshot()
	if after.CurrentBoss == nil || after.CurrentBoss.HP != before.CurrentBoss.HP || after.CurrentBoss.Clues != before.CurrentBoss.Clues {
		t.Fatalf("restored boss = %+v, want %+v", after.CurrentBoss, before.CurrentBoss)
	}
}
