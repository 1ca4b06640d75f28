package quest

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nylanalyn/jeeves-quest/internal/core/chance"
	"github.com/nylanalyn/jeeves-quest/internal/platform/otel"
	"github.com/nylanalyn/jeeves-quest/internal/quest/bosshunt"
	"github.com/nylanalyn/jeeves-quest/internal/quest/content"
	"github.com/nylanalyn/jeeves-quest/internal/quest/dungeon"
	"github.com/nylanalyn/jeeves-quest/internal/quest/encounter"
	"github.com/nylanalyn/jeeves-quest/internal/quest/engine"
	"github.com/nylanalyn/jeeves-quest/internal/quest/formula"
	"github.com/nylanalyn/jeeves-quest/internal/quest/player"
	"github.com/nylanalyn/jeeves-quest/internal/quest/progression"
	"github.com/nylanalyn/jeeves-quest/internal/scheduler"
	"github.com/nylanalyn/jeeves-quest/internal/storage"
	"github.com/nylanalyn/jeeves-quest/internal/storage/sqlite"
	"github.com/nylanalyn/jeeves-quest/internal/telemetry"
)

const settingsStateKey = "quest/settings"

// Run wires the quest engine over SQLite persistence and serves the console
// session until the context is cancelled.
func Run(ctx context.Context, cfg Config) error {
	shutdown, err := otel.Setup(ctx, "jeeves-quest")
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Printf("quest otel shutdown err=%v", err)
		}
	}()

	store, err := sqlite.Open(cfg.StoragePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("quest storage close err=%v", err)
		}
	}()

	tables, err := content.Load()
	if err != nil {
		return err
	}

	settings := content.NewSettings()
	if blob, err := store.GetNamedState(ctx, settingsStateKey); err == nil {
		if err := settings.Restore(blob); err != nil {
			log.Printf("quest settings restore err=%v", err)
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	settings.Set(engine.SettingAnnounceChannel, cfg.AnnounceChannel)

	curve := formula.Default()
	if cfg.XPFormula != "" {
		parsed, err := formula.NewCurve(cfg.XPFormula)
		if err != nil {
			log.Printf("quest xp formula rejected err=%v fallback=%q", err, formula.DefaultExpression)
		} else {
			curve = parsed
		}
	}

	src, err := chance.NewRandomSource()
	if err != nil {
		return err
	}
	sched := scheduler.NewReal()
	progress := progression.NewEngine(curve)
	players := player.NewStore(store, func(id string, now time.Time) player.Player {
		return player.NewPlayer(id, progression.BaseMaxEnergy, progress.XPForLevel(1), now)
	})

	legends := encounter.NewLegendRegistry(store)
	if err := legends.Load(ctx); err != nil {
		return err
	}
	hunt := bosshunt.New(tables, settings, store, src, sched.Now)
	if err := hunt.Load(ctx); err != nil {
		return err
	}

	console := NewConsole(cfg.ConsoleUser, cfg.ConsoleChannel)
	eng := engine.New(engine.Config{
		Players:   players,
		Progress:  progress,
		Tables:    tables,
		Settings:  settings,
		Source:    src,
		Scheduler: sched,
		Coord:     encounter.NewCoordinator(tables, settings, src, sched, legends),
		Resolver:  encounter.NewResolver(players, progress, tables, settings, src, sched.Now),
		Legends:   legends,
		Dungeon:   dungeon.NewEngine(players, progress, tables, settings, src, sched.Now),
		Hunt:      hunt,
		Emitter:   telemetry.NewEmitter(store),
		Messenger: console,
		Directory: console,
	})

	cancels := eng.StartJobs(ctx)
	defer func() {
		for _, cancel := range cancels {
			cancel()
		}
	}()

	log.Printf("quest ready db=%s user=%s channel=%s", cfg.StoragePath, cfg.ConsoleUser, cfg.ConsoleChannel)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return console.Serve(ctx, eng, func(persistCtx context.Context) error {
			blob, err := settings.Snapshot()
			if err != nil {
				return err
			}
			return store.SetNamedState(persistCtx, settingsStateKey, blob)
		})
	})
	return g.Wait()
}
