package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/nylanalyn/jeeves-quest/internal/quest/player"
	"github.com/nylanalyn/jeeves-quest/internal/quest/progression"
	"github.com/nylanalyn/jeeves-quest/internal/telemetry"
)

// Prestige resets a capped player up one prestige tier.
func (e *Engine) Prestige(ctx context.Context, userID, channel string) (Result, error) {
	return e.run(ctx, "Prestige", userID, channel, func(ctx context.Context) (Result, error) {
		var tier int
		_, err := e.players.Update(ctx, userID, func(p *player.Player) error {
			if err := e.progress.Prestige(p); err != nil {
				return err
			}
			tier = p.Prestige
			return nil
		})
		if err != nil {
			return Result{}, err
		}
		e.emit(ctx, telemetry.KindPrestige, userID, channel, fmt.Sprintf("tier=%d", tier))
		return ok(fmt.Sprintf("You begin again, harder. Prestige %d.", tier)), nil
	})
}

// Transcend fully resets a max-prestige player and registers them as a
// legend boss other players may face.
func (e *Engine) Transcend(ctx context.Context, userID, channel string) (Result, error) {
	return e.run(ctx, "Transcend", userID, channel, func(ctx context.Context) (Result, error) {
		var legend progression.LegendBoss
		_, err := e.players.Update(ctx, userID, func(p *player.Player) error {
			registered, err := e.progress.Transcend(p)
			if err != nil {
				return err
			}
			legend = registered
			return nil
		})
		if err != nil {
			return Result{}, err
		}
		// Registration persists outside the player lock.
		if err := e.legends.Register(ctx, legend); err != nil {
			return Result{}, err
		}
		e.emit(ctx, telemetry.KindTranscend, userID, channel, fmt.Sprintf("transcendence=%d", legend.Transcendence))
		return ok(
			fmt.Sprintf("You step beyond the ladder entirely. Transcendence %d.", legend.Transcendence),
			fmt.Sprintf("Tales of %s will stalk those who come after.", legend.Name),
		), nil
	})
}

// EnterHardcore moves a capped player onto the hardcore track.
func (e *Engine) EnterHardcore(ctx context.Context, userID, channel string) (Result, error) {
	return e.run(ctx, "EnterHardcore", userID, channel, func(ctx context.Context) (Result, error) {
		var hp int
		_, err := e.players.Update(ctx, userID, func(p *player.Player) error {
			if err := e.progress.EnterHardcore(p); err != nil {
				return err
			}
			hp = p.Hardcore.MaxHP
			return nil
		})
		if err != nil {
			return Result{}, err
		}
		return ok(
			"Your belongings are locked away. The ladder now runs to 50, and death is final.",
			fmt.Sprintf("Hardcore HP: %d.", hp),
		), nil
	})
}

// ExitHardcore voluntarily leaves the hardcore track with no reward.
func (e *Engine) ExitHardcore(ctx context.Context, userID, channel string) (Result, error) {
	return e.run(ctx, "ExitHardcore", userID, channel, func(ctx context.Context) (Result, error) {
		_, err := e.players.Update(ctx, userID, func(p *player.Player) error {
			return e.progress.ExitHardcore(p, progression.HardcoreExitVoluntary)
		})
		if err != nil {
			return Result{}, err
		}
		e.emit(ctx, telemetry.KindHardcoreExit, userID, channel, "reason=voluntary")
		return ok("You step off the hardcore path. Your locker is returned."), nil
	})
}

// Stats returns a read-only summary of the player's record.
func (e *Engine) Stats(ctx context.Context, userID, channel string) (Result, error) {
	return e.run(ctx, "Stats", userID, channel, func(ctx context.Context) (Result, error) {
		p, err := e.players.Get(ctx, userID)
		if err != nil {
			return Result{}, err
		}

		lines := []string{
			fmt.Sprintf("Level %d (%d/%d XP), energy %d/%d, prestige %d.",
				p.Level, p.XP, p.XPToNextLevel, p.Energy, e.maxEnergy(&p), p.Prestige),
			fmt.Sprintf("Record: %d wins, %d losses, streak %d.", p.Wins, p.Losses, p.WinStreak),
		}
		if p.Transcendence > 0 {
			lines = append(lines, fmt.Sprintf("Transcendence %d.", p.Transcendence))
		}
		if p.Hardcore.Enabled {
			lines = append(lines, fmt.Sprintf("Hardcore: %d/%d HP.", p.Hardcore.HP, p.Hardcore.MaxHP))
		}
		if len(p.ActiveInjuries) > 0 {
			names := make([]string, 0, len(p.ActiveInjuries))
			for _, injury := range p.ActiveInjuries {
				names = append(names, injury.Name)
			}
			lines = append(lines, fmt.Sprintf("Injuries: %s.", strings.Join(names, ", ")))
		}
		if len(p.Inventory) > 0 {
			items := make([]string, 0, len(p.Inventory))
			for _, key := range []string{
				player.ItemMedkit, player.ItemEnergyPotion, player.ItemLuckyCharm,
				player.ItemArmorShard, player.ItemXPScroll, player.ItemDungeonRelic,
			} {
				if n := p.ItemCount(key); n > 0 {
					items = append(items, fmt.Sprintf("%s x%d", key, n))
				}
			}
			if len(items) > 0 {
				lines = append(lines, fmt.Sprintf("Pack: %s.", strings.Join(items, ", ")))
			}
		}
		return ok(lines...), nil
	})
}
