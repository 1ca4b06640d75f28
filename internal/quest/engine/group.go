package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/nylanalyn/jeeves-quest/internal/platform/errors"
	"github.com/nylanalyn/jeeves-quest/internal/quest/encounter"
	"github.com/nylanalyn/jeeves-quest/internal/telemetry"
)

// StartOrJoinEncounter opens a group fight in the channel or joins the one
// already forming. Both paths require at least one energy.
func (e *Engine) StartOrJoinEncounter(ctx context.Context, userID, displayName, channel string) (Result, error) {
	return e.run(ctx, "StartOrJoinEncounter", userID, channel, func(ctx context.Context) (Result, error) {
		rec, err := e.players.Get(ctx, userID)
		if err != nil {
			return Result{}, err
		}
		if rec.Energy < 1 {
			return Result{}, apperrors.New(apperrors.CodeInsufficientEnergy, "not enough energy to fight")
		}
		if displayName == "" {
			displayName = rec.DisplayName
		}
		if displayName == "" && e.directory != nil {
			if name, err := e.directory.DisplayNameFor(ctx, userID); err == nil {
				displayName = name
			}
		}
		if displayName == "" {
			displayName = userID
		}

		enc, started, err := e.coord.StartOrJoin(channel, userID, displayName, rec.Level)
		if err != nil {
			return Result{}, err
		}
		if started {
			article := "A"
			switch {
			case enc.IsLegend:
				article = "The legend"
			case enc.IsRare:
				article = "A rare"
			case enc.IsBoss:
				article = "A mighty"
			}
			window := enc.CloseAt.Sub(e.sched.Now()).Round(time.Second)
			return ok(
				fmt.Sprintf("%s %s (level %d) appears! The party forms for %s.", article, enc.MonsterName, enc.MonsterLevel, window),
				fmt.Sprintf("%s steps up first.", displayName),
			), nil
		}
		return ok(fmt.Sprintf("%s joins the fight against %s! Party of %d.", displayName, enc.MonsterName, enc.PartySize())), nil
	})
}

// ResolveEncounter settles a group fight. The join-window timer calls this,
// and an admin force-close may race it; the consume check guarantees only
// one resolution runs.
func (e *Engine) ResolveEncounter(ctx context.Context, encounterID string) (Result, error) {
	return e.run(ctx, "ResolveEncounter", "", "", func(ctx context.Context) (Result, error) {
		enc, claimed := e.coord.Consume(encounterID)
		if !claimed {
			return Result{}, apperrors.New(apperrors.CodeEncounterAlreadyResolved, "encounter already resolved or unknown")
		}

		outcome := e.resolver.Resolve(ctx, enc, e.coord.PartyTable(enc), e.hunt.XPMultiplier())

		var lines []string
		if outcome.Won {
			verb := "defeats"
			if outcome.RelicOverride {
				verb = "overwhelms"
				lines = append(lines, "A dungeon relic flares! Victory is certain.")
			}
			lines = append(lines, fmt.Sprintf("The party %s %s! (%d%% chance, %d strong)",
				verb, enc.MonsterName, int(outcome.WinChance*100), enc.PartySize()))
		} else {
			lines = append(lines, fmt.Sprintf("%s scatters the party! (%d%% chance, %d strong)",
				enc.MonsterName, int(outcome.WinChance*100), enc.PartySize()))
		}
		for _, part := range outcome.Participants {
			lines = append(lines, participantLine(part))
		}

		for _, line := range lines {
			e.announce(ctx, enc.Channel, line)
		}
		e.emit(ctx, telemetry.KindEncounterResolved, "", enc.Channel,
			fmt.Sprintf("encounter=%s monster=%s won=%t party=%d relic=%t",
				enc.ID, enc.MonsterName, outcome.Won, enc.PartySize(), outcome.RelicOverride))
		return ok(lines...), nil
	})
}

// participantLine summarises what resolution did to one roster member.
func participantLine(part encounter.ParticipantOutcome) string {
	if part.Err != nil {
		return fmt.Sprintf("%s: the outcome could not be recorded.", part.DisplayName)
	}
	var bits []string
	switch {
	case part.XPDelta > 0 && part.Crit:
		bits = append(bits, fmt.Sprintf("+%d XP (crit!)", part.XPDelta))
	case part.XPDelta > 0:
		bits = append(bits, fmt.Sprintf("+%d XP", part.XPDelta))
	case part.XPDelta < 0:
		bits = append(bits, fmt.Sprintf("%d XP", part.XPDelta))
	}
	if part.LeveledTo > 0 {
		bits = append(bits, fmt.Sprintf("now level %d", part.LeveledTo))
	}
	if part.Injury != nil {
		bits = append(bits, fmt.Sprintf("suffers a %s", part.Injury.Name))
	}
	if part.Died {
		bits = append(bits, "falls on the hardcore path")
	}
	if part.HardcoreVictory {
		bits = append(bits, "conquers the hardcore ladder")
	}
	if len(bits) == 0 {
		bits = append(bits, "walks away unchanged")
	}
	return fmt.Sprintf("%s: %s.", part.DisplayName, strings.Join(bits, ", "))
}
