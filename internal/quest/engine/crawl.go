package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/nylanalyn/jeeves-quest/internal/quest/dungeon"
	"github.com/nylanalyn/jeeves-quest/internal/telemetry"
)

// AdvanceDungeon starts a run if needed and attempts the next room.
func (e *Engine) AdvanceDungeon(ctx context.Context, userID, channel string) (Result, error) {
	return e.run(ctx, "AdvanceDungeon", userID, channel, func(ctx context.Context) (Result, error) {
		progress, err := e.dungeon.Advance(ctx, userID, channel, e.huntBuff())
		if err != nil {
			return Result{}, err
		}
		return e.renderDungeon(ctx, userID, channel, progress), nil
	})
}

// ContinueDungeon resumes a run paused at a safe haven.
func (e *Engine) ContinueDungeon(ctx context.Context, userID, channel string) (Result, error) {
	return e.run(ctx, "ContinueDungeon", userID, channel, func(ctx context.Context) (Result, error) {
		progress, err := e.dungeon.Continue(ctx, userID, channel, e.huntBuff())
		if err != nil {
			return Result{}, err
		}
		return e.renderDungeon(ctx, userID, channel, progress), nil
	})
}

// QuitDungeon ends a run at a safe haven with the partial reward.
func (e *Engine) QuitDungeon(ctx context.Context, userID, channel string) (Result, error) {
	return e.run(ctx, "QuitDungeon", userID, channel, func(ctx context.Context) (Result, error) {
		progress, err := e.dungeon.Quit(ctx, userID, channel)
		if err != nil {
			return Result{}, err
		}
		lines := []string{fmt.Sprintf("You slip out of the dungeon with %d rooms behind you: +%d XP, %d relics.",
			progress.Room, progress.XPGained, progress.RelicsAwarded)}
		if progress.HardcoreVictory {
			lines = append(lines, "You conquer the hardcore ladder! Your locker is returned.")
		} else if progress.LeveledTo > 0 {
			lines = append(lines, levelUpLine(progress.LeveledTo))
		}
		e.emit(ctx, telemetry.KindDungeonFinished, userID, channel,
			fmt.Sprintf("state=%s rooms=%d", dungeon.RunQuit, progress.Room))
		return ok(lines...), nil
	})
}

// huntBuff snapshots the active boss-hunt reward for room fights. Read
// outside the player lock; the hunt guards its own state.
func (e *Engine) huntBuff() dungeon.HuntBuff {
	return dungeon.HuntBuff{
		XPMultiplier:   e.hunt.XPMultiplier(),
		LevelReduction: e.hunt.LevelReduction(),
	}
}

// renderDungeon turns a dungeon step into chat lines and terminal telemetry.
func (e *Engine) renderDungeon(ctx context.Context, userID, channel string, p dungeon.Progress) Result {
	var lines []string
	if p.Started {
		if len(p.Equipped) > 0 {
			lines = append(lines, fmt.Sprintf("You descend into the dungeon, %s readied.", strings.Join(p.Equipped, ", ")))
		} else {
			lines = append(lines, "You descend into the dungeon empty-handed.")
		}
	}

	switch {
	case p.Bypassed:
		lines = append(lines, fmt.Sprintf("Room %d (%s): your counter-item sees you past the %s. No XP this deep run.",
			p.Room, p.RoomName, p.Monster))
	case p.Fight != nil && p.Fight.RelicOverride:
		lines = append(lines, fmt.Sprintf("Room %d (%s): a relic charge annihilates the %s.", p.Room, p.RoomName, p.Monster))
	case p.Fight != nil && p.Fight.Won:
		lines = append(lines, fmt.Sprintf("Room %d (%s): you defeat the %s! (+%d XP, momentum %d)",
			p.Room, p.RoomName, p.Monster, p.XPGained, p.Momentum))
	case p.Fight != nil:
		lines = append(lines, fmt.Sprintf("Room %d (%s): the %s ends your run. You lose %d XP.",
			p.Room, p.RoomName, p.Monster, p.XPLost))
	}

	if p.Injury != nil {
		lines = append(lines, fmt.Sprintf("You suffer a %s. %s", p.Injury.Name, p.Injury.Description))
	}
	if p.LeveledTo > 0 && !p.HardcoreVictory {
		lines = append(lines, fmt.Sprintf("You are now level %d.", p.LeveledTo))
	}
	switch {
	case p.Died:
		lines = append(lines, "Your hardcore run ends in death. Your locker is returned.")
	case p.HardcoreVictory:
		lines = append(lines, "You conquer the hardcore ladder! Your locker is returned.")
	case p.HardcoreHP > 0:
		lines = append(lines, fmt.Sprintf("Hardcore: %d HP remain.", p.HardcoreHP))
	}

	switch {
	case p.AtHaven:
		lines = append(lines, "You reach a safe haven. Continue deeper, or quit with what you've earned?")
	case p.Cleared:
		lines = append(lines, fmt.Sprintf("You clear the dungeon! %d dungeon relics are yours.", p.RelicsAwarded))
		e.emit(ctx, telemetry.KindDungeonFinished, userID, channel,
			fmt.Sprintf("state=%s relics=%d", dungeon.RunCleared, p.RelicsAwarded))
	case p.Failed:
		e.emit(ctx, telemetry.KindDungeonFinished, userID, channel,
			fmt.Sprintf("state=%s room=%d", dungeon.RunFailed, p.Room))
	}
	return ok(lines...)
}
