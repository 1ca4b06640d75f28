package encounter

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nylanalyn/jeeves-quest/internal/core/chance"
	apperrors "github.com/nylanalyn/jeeves-quest/internal/platform/errors"
	"github.com/nylanalyn/jeeves-quest/internal/quest/content"
	"github.com/nylanalyn/jeeves-quest/internal/quest/formula"
	"github.com/nylanalyn/jeeves-quest/internal/quest/player"
	"github.com/nylanalyn/jeeves-quest/internal/quest/progression"
	"github.com/nylanalyn/jeeves-quest/internal/scheduler"
	"github.com/nylanalyn/jeeves-quest/internal/storage"
)

func testAnchor() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func testCoordinator(t *testing.T, seed int64) (*Coordinator, *scheduler.Fake, *content.Settings) {
	t.Helper()
	tables, err := content.Load()
	if err != nil {
		t.Fatalf("load content: %v", err)
	}
	settings := content.NewSettings()
	fake := scheduler.NewFake(testAnchor())
	legends := NewLegendRegistry(storage.NewMemoryStore())
	return NewCoordinator(tables, settings, chance.NewSource(seed), fake, legends), fake, settings
}

func TestStartThenJoin(t *testing.T) {
	c, _, _ := testCoordinator(t, 1)

	enc, started, err := c.StartOrJoin("#tavern", "u1", "Alice", 5)
	if err != nil || !started {
		t.Fatalf("start: started=%v err=%v", started, err)
	}
	if enc.PartySize() != 1 || enc.Channel != "#tavern" {
		t.Fatalf("unexpected encounter: %+v", enc)
	}

	joined, started, err := c.StartOrJoin("#tavern", "u2", "Bob", 3)
	if err != nil || started {
		t.Fatalf("join: started=%v err=%v", started, err)
	}
	if joined.ID != enc.ID || joined.PartySize() != 2 {
		t.Fatalf("join landed on wrong encounter: %+v", joined)
	}
}

func TestJoinTwiceRejected(t *testing.T) {
	c, _, _ := testCoordinator(t, 1)

	if _, _, err := c.StartOrJoin("#tavern", "u1", "Alice", 5); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, _, err := c.StartOrJoin("#tavern", "u1", "Alice", 5)
	if !apperrors.IsCode(err, apperrors.CodeAlreadyParticipating) {
		t.Fatalf("double join: %v", err)
	}
}

func TestChannelsAreIndependent(t *testing.T) {
	c, _, _ := testCoordinator(t, 1)

	a, _, _ := c.StartOrJoin("#tavern", "u1", "Alice", 5)
	b, _, _ := c.StartOrJoin("#cellar", "u1", "Alice", 5)
	if a.ID == b.ID {
		t.Fatal("channels shared an encounter")
	}
}

func TestConcurrentStartOrJoinSingleEncounter(t *testing.T) {
	c, _, _ := testCoordinator(t, 1)

	const callers = 16
	var wg sync.WaitGroup
	starts := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, started, err := c.StartOrJoin("#tavern", fmt.Sprintf("u%d", i), fmt.Sprintf("P%d", i), 5)
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
				return
			}
			starts <- started
		}(i)
	}
	wg.Wait()
	close(starts)

	started := 0
	for s := range starts {
		if s {
			started++
		}
	}
	if started != 1 {
		t.Fatalf("%d callers started an encounter, want exactly 1", started)
	}
	enc, ok := c.ActiveInChannel("#tavern")
	if !ok || enc.PartySize() != callers {
		t.Fatalf("roster size = %d, want %d", enc.PartySize(), callers)
	}
}

func TestConsumeExactlyOnce(t *testing.T) {
	c, _, _ := testCoordinator(t, 1)
	enc, _, _ := c.StartOrJoin("#tavern", "u1", "Alice", 5)

	const racers = 8
	var wg sync.WaitGroup
	won := make(chan bool, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := c.Consume(enc.ID)
			won <- ok
		}()
	}
	wg.Wait()
	close(won)

	consumed := 0
	for ok := range won {
		if ok {
			consumed++
		}
	}
	if consumed != 1 {
		t.Fatalf("encounter consumed %d times, want exactly 1", consumed)
	}
	if _, ok := c.ActiveInChannel("#tavern"); ok {
		t.Fatal("consumed encounter still active in channel")
	}
}

func TestWindowCloseFiresHandler(t *testing.T) {
	c, fake, _ := testCoordinator(t, 1)

	var mu sync.Mutex
	var closed []string
	c.SetCloseHandler(func(id string) {
		if _, ok := c.Consume(id); ok {
			mu.Lock()
			closed = append(closed, id)
			mu.Unlock()
		}
	})

	enc, _, _ := c.StartOrJoin("#tavern", "u1", "Alice", 5)
	fake.Advance(DefaultJoinWindow + time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(closed) != 1 || closed[0] != enc.ID {
		t.Fatalf("close handler fired for %v, want [%s]", closed, enc.ID)
	}
}

func TestForceResolveCancelsTimer(t *testing.T) {
	c, fake, _ := testCoordinator(t, 1)

	fired := 0
	c.SetCloseHandler(func(id string) {
		if _, ok := c.Consume(id); ok {
			fired++
		}
	})

	enc, _, _ := c.StartOrJoin("#tavern", "u1", "Alice", 5)
	if _, ok := c.Consume(enc.ID); !ok {
		t.Fatal("force consume failed")
	}
	fake.Advance(DefaultJoinWindow + time.Second)
	if fired != 0 {
		t.Fatalf("timer resolved an already-consumed encounter %d times", fired)
	}
}

func TestLegendSelectionAtCreation(t *testing.T) {
	tables, err := content.Load()
	if err != nil {
		t.Fatalf("load content: %v", err)
	}
	settings := content.NewSettings()
	settings.Set(SettingLegendChance, "1.0")
	legends := NewLegendRegistry(storage.NewMemoryStore())
	if err := legends.Register(context.Background(), progression.LegendBoss{UserID: "ghost", Name: "The Ghost", Transcendence: 2}); err != nil {
		t.Fatalf("register legend: %v", err)
	}
	c := NewCoordinator(tables, settings, chance.NewSource(3), scheduler.NewFake(testAnchor()), legends)

	enc, _, err := c.StartOrJoin("#tavern", "u1", "Alice", 30)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !enc.IsLegend || !enc.IsBoss {
		t.Fatalf("expected legend boss, got %+v", enc)
	}
	if enc.MonsterName != "The Ghost" || enc.LegendUserID != "ghost" {
		t.Fatalf("wrong legend: %+v", enc)
	}
	// max(25, 30+5) + 3*(2-1) = 38
	if enc.MonsterLevel != 38 {
		t.Fatalf("legend level = %d, want 38", enc.MonsterLevel)
	}
}

func TestLegendRegistryPersists(t *testing.T) {
	ctx := context.Background()
	states := storage.NewMemoryStore()

	first := NewLegendRegistry(states)
	if err := first.Register(ctx, progression.LegendBoss{UserID: "u1", Name: "Alice", Transcendence: 1}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := first.Register(ctx, progression.LegendBoss{UserID: "u1", Name: "Alice", Transcendence: 2}); err != nil {
		t.Fatalf("re-register: %v", err)
	}

	second := NewLegendRegistry(states)
	if err := second.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if second.Len() != 1 {
		t.Fatalf("registry size = %d, want 1 (re-registration replaces)", second.Len())
	}
	legend, ok := second.Random(chance.NewSource(1))
	if !ok || legend.Transcendence != 2 {
		t.Fatalf("restored legend = %+v", legend)
	}
}

func TestPartyTableSelection(t *testing.T) {
	c, _, _ := testCoordinator(t, 1)
	mob := c.PartyTable(Encounter{})
	boss := c.PartyTable(Encounter{IsBoss: true})
	if content.PartyWinChance(mob, 1) != 0.05 {
		t.Fatalf("mob solo chance = %v", content.PartyWinChance(mob, 1))
	}
	if content.PartyWinChance(boss, 1) != 0.01 {
		t.Fatalf("boss solo chance = %v", content.PartyWinChance(boss, 1))
	}
	if content.PartyWinChance(boss, 9) != 0.85 {
		t.Fatalf("boss large-party chance = %v", content.PartyWinChance(boss, 9))
	}
}

// --- resolver ---

type failingUpdater struct {
	*player.Store
	failID string
}

func (f failingUpdater) Update(ctx context.Context, id string, fn func(*player.Player) error) (player.Player, error) {
	if id == f.failID && fn != nil {
		return player.Player{}, fmt.Errorf("storage offline")
	}
	return f.Store.Update(ctx, id, fn)
}

func testResolver(t *testing.T, seed int64) (*Resolver, *player.Store, *content.Settings) {
	t.Helper()
	tables, err := content.Load()
	if err != nil {
		t.Fatalf("load content: %v", err)
	}
	settings := content.NewSettings()
	progress := progression.NewEngine(formula.Default())
	store := player.NewStore(storage.NewMemoryStore(), func(id string, now time.Time) player.Player {
		return player.NewPlayer(id, progression.BaseMaxEnergy, progress.XPForLevel(1), now)
	})
	res := NewResolver(store, progress, tables, settings, chance.NewSource(seed), testAnchor)
	return res, store, settings
}

func forcedTable(chance float64) []content.PartyRow {
	return []content.PartyRow{{MinSize: 1, WinChance: chance}}
}

func testEncounter(participants ...string) Encounter {
	enc := Encounter{
		ID:           "enc-1",
		Channel:      "#tavern",
		MonsterName:  "Bog Shambler",
		MonsterLevel: 4,
		XPMin:        30,
		XPMax:        60,
	}
	for _, id := range participants {
		enc.Participants = append(enc.Participants, Participant{UserID: id, DisplayName: id})
	}
	return enc
}

func TestResolveWinAppliesToAllParticipants(t *testing.T) {
	res, store, _ := testResolver(t, 11)
	ctx := context.Background()
	enc := testEncounter("u1", "u2", "u3")

	out := res.Resolve(ctx, enc, forcedTable(1.0), 1.0)
	if !out.Won || out.WinChance != 1.0 {
		t.Fatalf("forced win lost: %+v", out)
	}
	if len(out.Participants) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(out.Participants))
	}
	for i, part := range out.Participants {
		if part.UserID != enc.Participants[i].UserID {
			t.Fatalf("outcomes out of join order at %d: %s", i, part.UserID)
		}
		if part.Err != nil || part.XPDelta < 1 {
			t.Fatalf("participant %s: xp=%d err=%v", part.UserID, part.XPDelta, part.Err)
		}
		rec, err := store.Get(ctx, part.UserID)
		if err != nil {
			t.Fatalf("get %s: %v", part.UserID, err)
		}
		if rec.Energy != progression.BaseMaxEnergy-1 {
			t.Fatalf("%s energy = %d, want %d", part.UserID, rec.Energy, progression.BaseMaxEnergy-1)
		}
		if rec.Wins != 1 || rec.WinStreak != 1 {
			t.Fatalf("%s wins/streak = %d/%d", part.UserID, rec.Wins, rec.WinStreak)
		}
	}
}

func TestResolveLossDeductsAndResets(t *testing.T) {
	res, store, _ := testResolver(t, 11)
	ctx := context.Background()

	if _, err := store.Update(ctx, "u1", func(p *player.Player) error {
		p.Level = 3
		p.XP = 50
		p.XPToNextLevel = 300
		p.WinStreak = 4
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	out := res.Resolve(ctx, testEncounter("u1"), forcedTable(0), 1.0)
	if out.Won {
		t.Fatal("forced loss won")
	}
	part := out.Participants[0]
	if part.XPDelta >= 0 {
		t.Fatalf("loss xp delta = %d, want negative", part.XPDelta)
	}
	rec, _ := store.Get(ctx, "u1")
	if rec.WinStreak != 0 || rec.Losses != 1 {
		t.Fatalf("streak/losses = %d/%d", rec.WinStreak, rec.Losses)
	}
}

func TestResolveRelicOverridesBossRoll(t *testing.T) {
	res, store, _ := testResolver(t, 11)
	ctx := context.Background()

	if _, err := store.Update(ctx, "u2", func(p *player.Player) error {
		p.ActiveEffects = append(p.ActiveEffects, player.Effect{
			Kind:              player.EffectDungeonRelic,
			AutoWinsRemaining: 2,
		})
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	enc := testEncounter("u1", "u2")
	enc.IsBoss = true
	out := res.Resolve(ctx, enc, forcedTable(0), 1.0)

	if !out.Won || !out.RelicOverride || out.WinChance != 1.0 {
		t.Fatalf("relic override missed: %+v", out)
	}
	if out.RelicUserID != "u2" {
		t.Fatalf("relic charged to %s, want u2", out.RelicUserID)
	}
	rec, _ := store.Get(ctx, "u2")
	effect := rec.EffectOfKind(player.EffectDungeonRelic)
	if effect == nil || effect.AutoWinsRemaining != 1 {
		t.Fatalf("relic charges not decremented: %+v", effect)
	}
}

func TestResolveRelicIgnoredForPlainMobs(t *testing.T) {
	res, store, _ := testResolver(t, 11)
	ctx := context.Background()

	if _, err := store.Update(ctx, "u1", func(p *player.Player) error {
		p.ActiveEffects = append(p.ActiveEffects, player.Effect{
			Kind:              player.EffectDungeonRelic,
			AutoWinsRemaining: 1,
		})
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	out := res.Resolve(ctx, testEncounter("u1"), forcedTable(0), 1.0)
	if out.RelicOverride || out.Won {
		t.Fatalf("relic applied to a plain mob: %+v", out)
	}
}

func TestResolveHardcoreDamagedOnWin(t *testing.T) {
	res, store, _ := testResolver(t, 11)
	ctx := context.Background()

	if _, err := store.Update(ctx, "u1", func(p *player.Player) error {
		p.Level = 20
		p.XP = 0
		p.XPToNextLevel = 0
		p.Hardcore.Enabled = true
		p.Hardcore.MaxHP = 500
		p.Hardcore.HP = 500
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	enc := testEncounter("u1")
	enc.MonsterLevel = 25
	out := res.Resolve(ctx, enc, forcedTable(1.0), 1.0)

	part := out.Participants[0]
	if part.Died {
		t.Fatal("unexpected death")
	}
	if part.HardcoreHP >= 500 {
		t.Fatalf("hardcore hp = %d, want damage even on a win", part.HardcoreHP)
	}
}

func TestResolveHardcoreVictoryExit(t *testing.T) {
	res, store, _ := testResolver(t, 11)
	ctx := context.Background()

	if _, err := store.Update(ctx, "u1", func(p *player.Player) error {
		p.Level = progression.HardcoreLevelCap - 1
		p.XP = 0
		p.XPToNextLevel = 1
		p.Hardcore.Enabled = true
		p.Hardcore.MaxHP = 100000
		p.Hardcore.HP = 100000
		p.Hardcore.Locker = map[string]int{player.ItemMedkit: 2}
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	out := res.Resolve(ctx, testEncounter("u1"), forcedTable(1.0), 1.0)
	part := out.Participants[0]
	if part.Err != nil || part.Died {
		t.Fatalf("participant: %+v", part)
	}
	if !part.HardcoreVictory {
		t.Fatal("victory exit did not fire at the hardcore cap")
	}
	rec, _ := store.Get(ctx, "u1")
	if rec.Hardcore.Enabled {
		t.Fatal("hardcore still enabled at the cap")
	}
	if rec.Prestige != 1 || rec.Level != 1 {
		t.Fatalf("victory reward: prestige %d level %d", rec.Prestige, rec.Level)
	}
	if rec.ItemCount(player.ItemMedkit) != 2 {
		t.Fatal("locker not restored on victory")
	}
}

func TestResolveHardcoreDeathForcesExit(t *testing.T) {
	res, store, _ := testResolver(t, 11)
	ctx := context.Background()

	if _, err := store.Update(ctx, "u1", func(p *player.Player) error {
		p.Level = 20
		p.XP = 0
		p.XPToNextLevel = 0
		p.Hardcore.Enabled = true
		p.Hardcore.MaxHP = 500
		p.Hardcore.HP = 1
		p.Hardcore.Locker = map[string]int{player.ItemMedkit: 2}
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	out := res.Resolve(ctx, testEncounter("u1"), forcedTable(0), 1.0)
	if !out.Participants[0].Died {
		t.Fatal("expected permadeath")
	}
	rec, _ := store.Get(ctx, "u1")
	if rec.Hardcore.Enabled {
		t.Fatal("hardcore still enabled after death")
	}
	if rec.Inventory[player.ItemMedkit] != 2 {
		t.Fatal("locker not restored on death exit")
	}
}

func TestResolveErrorsDoNotShortCircuit(t *testing.T) {
	res, store, _ := testResolver(t, 11)
	ctx := context.Background()
	res.players = failingUpdater{Store: store, failID: "u2"}

	out := res.Resolve(ctx, testEncounter("u1", "u2", "u3"), forcedTable(1.0), 1.0)
	if out.Participants[1].Err == nil {
		t.Fatal("expected u2 failure")
	}
	for _, i := range []int{0, 2} {
		if out.Participants[i].Err != nil {
			t.Fatalf("participant %d blocked by u2's failure: %v", i, out.Participants[i].Err)
		}
		if out.Participants[i].XPDelta < 1 {
			t.Fatalf("participant %d got no award", i)
		}
	}
}
