// Package engine is the quest core's outer surface. Every user-triggered
// action enters here, returns an ordered list of output lines plus a
// machine-readable code, and never panics across the boundary: expected
// conditions come back as typed results, internal failures as a generic
// apology with nothing committed.
package engine

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nylanalyn/jeeves-quest/internal/chat"
	"github.com/nylanalyn/jeeves-quest/internal/core/chance"
	apperrors "github.com/nylanalyn/jeeves-quest/internal/platform/errors"
	"github.com/nylanalyn/jeeves-quest/internal/quest/bosshunt"
	"github.com/nylanalyn/jeeves-quest/internal/quest/content"
	"github.com/nylanalyn/jeeves-quest/internal/quest/dungeon"
	"github.com/nylanalyn/jeeves-quest/internal/quest/encounter"
	"github.com/nylanalyn/jeeves-quest/internal/quest/player"
	"github.com/nylanalyn/jeeves-quest/internal/quest/progression"
	"github.com/nylanalyn/jeeves-quest/internal/scheduler"
	"github.com/nylanalyn/jeeves-quest/internal/telemetry"
)

// Result is what every operation hands back to the chat layer.
type Result struct {
	Lines []string
	Code  apperrors.Code
}

// ok builds a successful result.
func ok(lines ...string) Result {
	return Result{Lines: lines}
}

// Config wires an Engine.
type Config struct {
	Players   *player.Store
	Progress  *progression.Engine
	Tables    *content.Content
	Settings  *content.Settings
	Source    *chance.Source
	Scheduler scheduler.Scheduler
	Coord     *encounter.Coordinator
	Resolver  *encounter.Resolver
	Legends   *encounter.LegendRegistry
	Dungeon   *dungeon.Engine
	Hunt      *bosshunt.Hunt
	Emitter   *telemetry.Emitter
	Messenger chat.Messenger
	Directory chat.Directory
}

// Engine exposes the quest operations.
type Engine struct {
	players   *player.Store
	progress  *progression.Engine
	tables    *content.Content
	settings  *content.Settings
	src       *chance.Source
	sched     scheduler.Scheduler
	coord     *encounter.Coordinator
	resolver  *encounter.Resolver
	legends   *encounter.LegendRegistry
	dungeon   *dungeon.Engine
	hunt      *bosshunt.Hunt
	emitter   *telemetry.Emitter
	messenger chat.Messenger
	directory chat.Directory
	tracer    trace.Tracer
}

// New creates the engine and installs the encounter close handler.
func New(cfg Config) *Engine {
	e := &Engine{
		players:   cfg.Players,
		progress:  cfg.Progress,
		tables:    cfg.Tables,
		settings:  cfg.Settings,
		src:       cfg.Source,
		sched:     cfg.Scheduler,
		coord:     cfg.Coord,
		resolver:  cfg.Resolver,
		legends:   cfg.Legends,
		dungeon:   cfg.Dungeon,
		hunt:      cfg.Hunt,
		emitter:   cfg.Emitter,
		messenger: cfg.Messenger,
		directory: cfg.Directory,
		tracer:    otel.Tracer("quest/engine"),
	}
	e.coord.SetCloseHandler(func(encounterID string) {
		result, err := e.ResolveEncounter(context.Background(), encounterID)
		if err != nil && !apperrors.IsCode(err, apperrors.CodeEncounterAlreadyResolved) {
			log.Printf("engine op=resolve_encounter encounter=%s err=%v", encounterID, err)
		}
		_ = result
	})
	return e
}

// run wraps one operation with a span and the error-to-result mapping.
// Domain errors become user-visible lines with their code; anything else is
// logged and surfaced as a generic apology.
func (e *Engine) run(ctx context.Context, op, userID, channel string, fn func(ctx context.Context) (Result, error)) (Result, error) {
	ctx, span := e.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("quest.user_id", userID),
		attribute.String("quest.channel", channel),
	))
	defer span.End()

	result, err := fn(ctx)
	if err == nil {
		return result, nil
	}

	code := apperrors.GetCode(err)
	span.SetAttributes(attribute.String("quest.error_code", string(code)))
	if code == apperrors.CodeUnknown {
		log.Printf("engine op=%s user=%s channel=%s err=%v", op, userID, channel, err)
		return Result{
			Lines: []string{"Something went wrong back there. The quartermaster has been informed."},
			Code:  apperrors.CodeUnknown,
		}, err
	}
	return Result{Lines: []string{userLine(err)}, Code: code}, err
}

// userLine renders a domain error as a chat line.
func userLine(err error) string {
	code := apperrors.GetCode(err)
	switch code {
	case apperrors.CodeInsufficientEnergy:
		return "You are too exhausted for that. Rest a while."
	case apperrors.CodeNoActiveEncounter:
		return "There is no encounter to fight here."
	case apperrors.CodeEncounterAlreadyActive:
		return "A fight is already underway in this channel."
	case apperrors.CodeAlreadyParticipating:
		return "You are already in this fight."
	case apperrors.CodeEncounterAlreadyResolved:
		return "That fight is already over."
	case apperrors.CodeUnknownItem:
		return "No such item exists."
	case apperrors.CodeEmptyInventory:
		return "You do not have one of those."
	case apperrors.CodeNotAtSafeHaven:
		return "You can only do that at a safe haven."
	case apperrors.CodeNoActiveDungeonRun:
		return "You are not in the dungeon."
	case apperrors.CodeDungeonRunActive:
		return "You are paused at a safe haven. Continue on, or quit while you're ahead."
	case apperrors.CodeBelowLevelCapForPrestige:
		return "You must reach the level cap first."
	case apperrors.CodeBelowPrestigeCapForTranscend:
		return "Only those at maximum prestige may transcend."
	case apperrors.CodeChallengePathViolation:
		return "Your vow forbids that."
	case apperrors.CodeHardcoreAlreadyEnabled:
		return "You are already walking the hardcore path."
	case apperrors.CodeHardcoreNotEnabled:
		return "You are not on the hardcore path."
	case apperrors.CodeNotFound:
		return "Nothing by that name."
	default:
		if msg := err.Error(); msg != "" {
			return msg
		}
		return string(code)
	}
}

// maxEnergy computes a player's energy ceiling including the challenge-path
// delta.
func (e *Engine) maxEnergy(p *player.Player) int {
	delta := 0
	if path, ok := e.tables.ChallengePathByKey(p.ChallengePath); ok {
		delta = path.EnergyDelta
	}
	return progression.MaxEnergy(p, delta)
}

// SetSetting stores a global settings override.
func (e *Engine) SetSetting(path, value string) {
	e.settings.Set(path, value)
}

// announce pushes a line into a channel when a messenger is wired.
func (e *Engine) announce(ctx context.Context, channel, line string) {
	if e.messenger == nil || channel == "" {
		return
	}
	e.messenger.SendLine(ctx, channel, line)
}

// emit records a telemetry event, logging emission failures.
func (e *Engine) emit(ctx context.Context, kind string, userID, channel, detail string) {
	if err := e.emitter.Emit(ctx, kind, telemetry.SeverityInfo, userID, channel, detail); err != nil {
		log.Printf("engine telemetry kind=%s user=%s err=%v", kind, userID, err)
	}
}

func levelUpLine(level int) string {
	return fmt.Sprintf("You have reached level %d!", level)
}
