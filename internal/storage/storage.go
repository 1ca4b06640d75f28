// Package storage declares the persistence collaborators the quest engine
// consumes. State is stored as opaque named blobs so the engine never
// depends on a concrete database shape.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// NamedStateStore persists opaque named blocks of state.
type NamedStateStore interface {
	// GetNamedState returns the blob stored under key, or ErrNotFound.
	GetNamedState(ctx context.Context, key string) ([]byte, error)
	// SetNamedState stores blob under key, replacing any previous value.
	SetNamedState(ctx context.Context, key string, blob []byte) error
	// ListNamedState returns every key with the given prefix.
	ListNamedState(ctx context.Context, prefix string) ([]string, error)
}

// TelemetryEvent is one operational game event.
type TelemetryEvent struct {
	ID        string
	Kind      string
	Severity  string
	UserID    string
	Channel   string
	Detail    string
	Timestamp time.Time
}

// TelemetryStore records operational game events.
type TelemetryStore interface {
	AppendTelemetryEvent(ctx context.Context, evt TelemetryEvent) error
}
