package engine

import (
	"context"
	"log"
	"time"

	"github.com/nylanalyn/jeeves-quest/internal/quest/player"
	"github.com/nylanalyn/jeeves-quest/internal/scheduler"
)

// Background job tuning.
const (
	SettingRegenInterval   = "quest.regenInterval"
	SettingSweepInterval   = "bosshunt.sweepInterval"
	SettingAnnounceChannel = "quest.announceChannel"

	DefaultRegenInterval = 10 * time.Minute
	DefaultSweepInterval = time.Minute
)

// StartJobs schedules the recurring background work: energy regeneration
// and boss-hunt window maintenance. The returned cancels stop the jobs.
func (e *Engine) StartJobs(ctx context.Context) []scheduler.Cancel {
	regen := e.settings.Duration(SettingRegenInterval, "", DefaultRegenInterval)
	sweep := e.settings.Duration(SettingSweepInterval, "", DefaultSweepInterval)
	return []scheduler.Cancel{
		e.sched.Every(regen, func() { e.RegenTick(ctx) }),
		e.sched.Every(sweep, func() { e.HuntSweep(ctx) }),
	}
}

// RegenTick restores one energy to every known player, capped at their
// individual maximum.
func (e *Engine) RegenTick(ctx context.Context) {
	ids, err := e.players.IDs(ctx)
	if err != nil {
		log.Printf("engine job=regen err=%v", err)
		return
	}
	for _, id := range ids {
		_, err := e.players.Update(ctx, id, func(p *player.Player) error {
			p.RestoreEnergy(1, e.maxEnergy(p))
			return nil
		})
		if err != nil {
			log.Printf("engine job=regen user=%s err=%v", id, err)
		}
	}
}

// HuntSweep expires boss-hunt windows and respawns the boss, announcing
// developments to the configured channel.
func (e *Engine) HuntSweep(ctx context.Context) {
	events, err := e.hunt.Sweep(ctx)
	if err != nil {
		log.Printf("engine job=hunt_sweep err=%v", err)
		return
	}
	channel := e.settings.String(SettingAnnounceChannel, "", "")
	for _, evt := range events {
		e.announce(ctx, channel, evt.Line)
	}
}
