// Package telemetry records operational game events for later inspection.
package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nylanalyn/jeeves-quest/internal/storage"
)

// Severity describes the telemetry severity level.
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// Event kinds emitted by the quest engine.
const (
	KindQuestResolved     = "quest_resolved"
	KindEncounterResolved = "encounter_resolved"
	KindDungeonFinished   = "dungeon_finished"
	KindBossDefeated      = "boss_defeated"
	KindPrestige          = "prestige"
	KindTranscend         = "transcend"
	KindHardcoreExit      = "hardcore_exit"
)

// Emitter records operational telemetry events.
type Emitter struct {
	store storage.TelemetryStore
	clock func() time.Time
}

// NewEmitter creates a new telemetry emitter.
func NewEmitter(store storage.TelemetryStore) *Emitter {
	return &Emitter{store: store, clock: time.Now}
}

// Emit records a telemetry event. It is a no-op when the store is nil.
func (e *Emitter) Emit(ctx context.Context, kind string, severity Severity, userID, channel, detail string) error {
	if e == nil || e.store == nil {
		return nil
	}
	now := time.Now().UTC()
	if e.clock != nil {
		now = e.clock().UTC()
	}
	return e.store.AppendTelemetryEvent(ctx, storage.TelemetryEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		Severity:  string(severity),
		UserID:    userID,
		Channel:   channel,
		Detail:    detail,
		Timestamp: now,
	})
}
