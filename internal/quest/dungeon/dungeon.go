// Package dungeon runs the ten-room crawl: auto-equipped counter-items,
// per-room combat with momentum, safe havens at rooms 3/6/9, the quit
// reward table and the relic anti-farming chain on a full clear.
package dungeon

import (
	"context"
	"strconv"
	"time"

	"github.com/nylanalyn/jeeves-quest/internal/core/chance"
	apperrors "github.com/nylanalyn/jeeves-quest/internal/platform/errors"
	"github.com/nylanalyn/jeeves-quest/internal/quest/combat"
	"github.com/nylanalyn/jeeves-quest/internal/quest/content"
	"github.com/nylanalyn/jeeves-quest/internal/quest/player"
	"github.com/nylanalyn/jeeves-quest/internal/quest/progression"
	"github.com/nylanalyn/jeeves-quest/internal/quest/rules"
)

// Settings paths and their defaults.
const (
	SettingStartEnergyCost = "dungeon.startEnergyCost"
	SettingMaxEquipped     = "dungeon.maxEquipped"
	SettingBaseRelicReward = "dungeon.baseRelicReward"
	SettingRelicDecay      = "dungeon.relicDecayWindow"

	DefaultStartEnergyCost = 1
	DefaultMaxEquipped     = 3
	DefaultBaseRelicReward = 5
	DefaultRelicDecay      = 24 * time.Hour
)

// Terminal run states recorded on the player.
const (
	RunCleared = "CLEARED"
	RunFailed  = "FAILED"
	RunQuit    = "QUIT"
)

// Safe havens pause the run after these rooms clear.
var safeHavens = map[int]bool{3: true, 6: true, 9: true}

// Failure penalty fractions of the current level's XP pool, by the room the
// run failed in.
func failurePenaltyFraction(room int) float64 {
	switch {
	case room <= 3:
		return 0.75
	case room <= 6:
		return 0.50
	default:
		return 0.25
	}
}

// PlayerUpdater is the slice of the player store the dungeon needs.
type PlayerUpdater interface {
	Update(ctx context.Context, id string, fn func(*player.Player) error) (player.Player, error)
}

// Progress reports what one advance did.
type Progress struct {
	Started  bool
	Equipped []string

	Room     int // 1-based room just attempted, zero when only starting
	RoomName string
	Monster  string

	Bypassed  bool
	Fight     *combat.Result
	XPGained  int
	Crit      bool
	XPLost    int
	Injury    *player.Injury
	Momentum  int
	LeveledTo int

	AtHaven       bool
	Cleared       bool
	Failed        bool
	RelicsAwarded int

	HardcoreHP      int
	Died            bool
	HardcoreVictory bool
}

// HuntBuff carries the active boss-hunt reward into room fights. The zero
// value means no buff is in effect.
type HuntBuff struct {
	XPMultiplier   float64
	LevelReduction int
}

// Engine drives dungeon runs.
type Engine struct {
	players  PlayerUpdater
	progress *progression.Engine
	tables   *content.Content
	settings *content.Settings
	src      *chance.Source
	now      func() time.Time
}

// NewEngine creates a dungeon engine over the given collaborators.
func NewEngine(players PlayerUpdater, progress *progression.Engine, tables *content.Content, settings *content.Settings, src *chance.Source, now func() time.Time) *Engine {
	return &Engine{
		players:  players,
		progress: progress,
		tables:   tables,
		settings: settings,
		src:      src,
		now:      now,
	}
}

// Advance starts a run if none is active, then attempts the next room. A
// run paused at a safe haven only accepts Continue or Quit.
func (e *Engine) Advance(ctx context.Context, userID, channel string, buff HuntBuff) (Progress, error) {
	var out Progress
	_, err := e.players.Update(ctx, userID, func(p *player.Player) error {
		p.PruneExpired(e.now())
		if p.Dungeon.ActiveRun == nil {
			if err := e.start(p, channel, &out); err != nil {
				return err
			}
		} else if p.Dungeon.ActiveRun.AwaitingHaven {
			return apperrors.New(apperrors.CodeDungeonRunActive, "the run is paused at a safe haven; continue or quit")
		}
		e.attemptRoom(p, channel, &out, buff)
		return nil
	})
	if err != nil {
		return Progress{}, err
	}
	return out, nil
}

// Continue resumes a run paused at a safe haven and attempts the next room.
func (e *Engine) Continue(ctx context.Context, userID, channel string, buff HuntBuff) (Progress, error) {
	var out Progress
	_, err := e.players.Update(ctx, userID, func(p *player.Player) error {
		p.PruneExpired(e.now())
		run := p.Dungeon.ActiveRun
		if run == nil {
			return apperrors.New(apperrors.CodeNoActiveDungeonRun, "no dungeon run in progress")
		}
		if !run.AwaitingHaven {
			return apperrors.New(apperrors.CodeNotAtSafeHaven, "the run is not paused at a safe haven")
		}
		run.AwaitingHaven = false
		e.attemptRoom(p, channel, &out, buff)
		return nil
	})
	if err != nil {
		return Progress{}, err
	}
	return out, nil
}

// Quit ends a run at a safe haven with the partial reward for the rooms
// already cleared.
func (e *Engine) Quit(ctx context.Context, userID, channel string) (Progress, error) {
	var out Progress
	_, err := e.players.Update(ctx, userID, func(p *player.Player) error {
		run := p.Dungeon.ActiveRun
		if run == nil {
			return apperrors.New(apperrors.CodeNoActiveDungeonRun, "no dungeon run in progress")
		}
		if !run.AwaitingHaven {
			return apperrors.New(apperrors.CodeNotAtSafeHaven, "quitting is only possible at a safe haven")
		}
		reward := e.tables.PartialRewardFor(run.RoomsCleared)
		levelBefore := p.Level
		if reward.XP > 0 {
			e.progress.GrantXP(p, reward.XP)
			out.XPGained = reward.XP
			out.HardcoreVictory = e.progress.CompleteHardcore(p)
		}
		if reward.Relics > 0 {
			p.GrantItem(player.ItemDungeonRelic, reward.Relics)
			out.RelicsAwarded = reward.Relics
		}
		if p.Level != levelBefore {
			out.LeveledTo = p.Level
		}
		out.Room = run.RoomsCleared
		p.Dungeon.ActiveRun = nil
		p.Dungeon.LastRun = RunQuit
		return nil
	})
	if err != nil {
		return Progress{}, err
	}
	return out, nil
}

// start opens a fresh run: energy check, then auto-equip cached
// counter-items in room order up to the configured cap. Equipped items are
// consumed from the inventory and cannot be swapped mid-run.
func (e *Engine) start(p *player.Player, channel string, out *Progress) error {
	cost := e.settings.Int(SettingStartEnergyCost, channel, DefaultStartEnergyCost)
	if !p.SpendEnergy(cost) {
		return apperrors.WithMetadata(
			apperrors.CodeInsufficientEnergy,
			"not enough energy to enter the dungeon",
			map[string]string{"required": strconv.Itoa(cost)},
		)
	}
	run := &player.DungeonRun{StartedAt: e.now(), CurrentRoom: 1}
	cap := e.settings.Int(SettingMaxEquipped, channel, DefaultMaxEquipped)
	for _, room := range e.tables.Rooms {
		if len(run.EquippedItems) >= cap {
			break
		}
		if p.ConsumeItem(room.CounterItem) {
			run.EquippedItems = append(run.EquippedItems, room.CounterItem)
		}
	}
	p.Dungeon.ActiveRun = run
	out.Started = true
	out.Equipped = append([]string(nil), run.EquippedItems...)
	return nil
}

// attemptRoom resolves the room the run currently points at.
func (e *Engine) attemptRoom(p *player.Player, channel string, out *Progress, buff HuntBuff) {
	run := p.Dungeon.ActiveRun
	room := e.tables.Rooms[run.CurrentRoom-1]
	out.Room = run.CurrentRoom
	out.RoomName = room.Name
	out.Monster = room.Monster

	if equipped(run, room.CounterItem) {
		// The counter-item clears the room outright, but a bypassed run
		// forfeits room XP from here on.
		run.BypassUsed = true
		out.Bypassed = true
		e.clearRoom(p, channel, out, false, buff)
		return
	}

	relic := p.EffectOfKind(player.EffectDungeonRelic)
	req := combat.Request{
		AttackerLevel: p.Level,
		DefenderLevel: e.roomDefenderLevel(p, room, buff),
		Modifiers:     e.roomModifiers(p, channel),
		RelicAutoWin:  relic != nil && relic.AutoWinsRemaining > 0,
	}
	result := combat.Resolve(req, e.src)
	out.Fight = &result

	if result.RelicOverride {
		relic.AutoWinsRemaining--
		if relic.AutoWinsRemaining <= 0 {
			p.RemoveEffect(player.EffectDungeonRelic)
		}
		run.RelicAutoWins++
	}

	if result.Won {
		run.Momentum++
		out.Momentum = run.Momentum
		e.clearRoom(p, channel, out, !run.BypassUsed, buff)
		return
	}
	e.failRun(p, channel, out, buff)
}

// roomDefenderLevel scales the room monster against the player, applying the
// boss-hunt buff's level reduction, floored at 1.
func (e *Engine) roomDefenderLevel(p *player.Player, room content.Room, buff HuntBuff) int {
	level := p.Level + room.LevelOffset - buff.LevelReduction
	if level < 1 {
		level = 1
	}
	return level
}

// clearRoom books a cleared room: XP unless forfeited, haven pause, and the
// full-clear reward after room 10.
func (e *Engine) clearRoom(p *player.Player, channel string, out *Progress, awardXP bool, buff HuntBuff) {
	run := p.Dungeon.ActiveRun
	room := e.tables.Rooms[run.CurrentRoom-1]
	levelBefore := p.Level

	if awardXP {
		req := rules.XPParams(p, room.XPMin, room.XPMax, 1.0, 1.0, buff.XPMultiplier, e.settings, channel)
		award := combat.RollXP(req, e.src)
		e.progress.GrantXP(p, award.Total)
		out.XPGained = award.Total
		out.Crit = award.Crit
		p.Wins++
		p.WinStreak++
	}

	cleared := run.CurrentRoom
	run.RoomsCleared = cleared

	if cleared >= len(e.tables.Rooms) {
		out.Cleared = true
		out.RelicsAwarded = e.clearReward(p)
		p.Dungeon.ActiveRun = nil
		p.Dungeon.LastRun = RunCleared
	} else {
		run.CurrentRoom++
		if safeHavens[cleared] {
			run.AwaitingHaven = true
			out.AtHaven = true
		}
	}
	// A bypassed room involved no fight, so the hardcore track takes no
	// damage from it.
	if !out.Bypassed {
		e.applyHardcore(p, out, true, e.roomDefenderLevel(p, room, buff))
	}
	if p.Level != levelBefore {
		out.LeveledTo = p.Level
	}
}

// failRun ends the run on a lost fight: a room-scaled XP penalty through
// DeductXP (which may drop a level), an injury roll, no item reward.
func (e *Engine) failRun(p *player.Player, channel string, out *Progress, buff HuntBuff) {
	run := p.Dungeon.ActiveRun
	room := e.tables.Rooms[run.CurrentRoom-1]
	levelBefore := p.Level

	penalty := int(failurePenaltyFraction(run.CurrentRoom) * float64(e.progress.XPForLevel(p.Level)))
	e.progress.DeductXP(p, penalty)
	out.XPLost = penalty
	out.Failed = true
	p.Losses++
	p.WinStreak = 0

	base := e.settings.Float(rules.SettingInjuryChance, channel, rules.DefaultInjuryChance)
	if combat.RollInjury(base, rules.ArmorReduction(p), rules.ClassInjuryReduction(p, e.tables), e.src) {
		picked := e.tables.RandomInjury(e.src)
		injury := player.Injury{
			Name:        picked.Name,
			Description: picked.Description,
			ExpiresAt:   e.now().Add(time.Duration(picked.DurationMinutes) * time.Minute),
			WinPenalty:  picked.WinPenalty,
		}
		if p.AddInjury(injury) {
			out.Injury = &injury
		}
	}

	e.applyHardcore(p, out, false, e.roomDefenderLevel(p, room, buff))
	p.Dungeon.ActiveRun = nil
	p.Dungeon.LastRun = RunFailed
	if p.Level != levelBefore {
		out.LeveledTo = p.Level
	}
}

// clearReward computes the full-clear relic grant with the anti-farming
// chain: reward = max(0, base - min(base, autoWins + carried)); the carried
// penalty grows only on relic-fueled clears and decays after 24h without one.
func (e *Engine) clearReward(p *player.Player) int {
	run := p.Dungeon.ActiveRun
	now := e.now()
	base := e.settings.Int(SettingBaseRelicReward, "", DefaultBaseRelicReward)
	decay := e.settings.Duration(SettingRelicDecay, "", DefaultRelicDecay)

	carried := p.Dungeon.CarriedRelicPenalty
	if !p.Dungeon.LastRelicClearAt.IsZero() && now.Sub(p.Dungeon.LastRelicClearAt) > decay {
		carried = 0
		p.Dungeon.CarriedRelicPenalty = 0
	}

	penalty := run.RelicAutoWins + carried
	if penalty > base {
		penalty = base
	}
	reward := base - penalty
	if reward < 0 {
		reward = 0
	}

	if run.RelicAutoWins > 0 {
		p.Dungeon.CarriedRelicPenalty = run.RelicAutoWins + carried
		p.Dungeon.LastRelicClearAt = now
	}
	if reward > 0 {
		p.GrantItem(player.ItemDungeonRelic, reward)
	}
	return reward
}

// roomModifiers assembles the win-chance stack for a room fight, including
// the momentum bonus the open-world stack does not carry.
func (e *Engine) roomModifiers(p *player.Player, channel string) combat.Modifiers {
	mods := rules.SoloModifiers(p, e.tables, e.settings, channel)
	step := e.settings.Float(rules.SettingMomentumBonusPerWin, channel, rules.DefaultMomentumBonus)
	mods.MomentumBonus = float64(p.Dungeon.ActiveRun.Momentum) * step
	return mods
}

// applyHardcore deals fight damage on the hardcore track, forcing the death
// exit at zero HP and the victory exit at the hardcore cap.
func (e *Engine) applyHardcore(p *player.Player, out *Progress, won bool, monsterLevel int) {
	if !p.Hardcore.Enabled {
		return
	}
	damage := progression.HardcoreDamage(won, p.Level, monsterLevel, p.Prestige)
	out.Died = progression.ApplyHardcoreDamage(p, damage)
	out.HardcoreHP = p.Hardcore.HP
	if out.Died {
		p.Dungeon.ActiveRun = nil
		p.Dungeon.LastRun = RunFailed
		_ = e.progress.ExitHardcore(p, progression.HardcoreExitDeath)
		return
	}
	out.HardcoreVictory = e.progress.CompleteHardcore(p)
}

func equipped(run *player.DungeonRun, item string) bool {
	for _, held := range run.EquippedItems {
		if held == item {
			return true
		}
	}
	return false
}
