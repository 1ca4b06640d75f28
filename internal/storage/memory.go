package storage

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is an in-memory NamedStateStore and TelemetryStore, used by
// tests and by callers that do not need durability.
type MemoryStore struct {
	mu     sync.RWMutex
	blobs  map[string][]byte
	events []TelemetryEvent
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: map[string][]byte{}}
}

// GetNamedState returns the blob stored under key, or ErrNotFound.
func (m *MemoryStore) GetNamedState(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(blob))
	copy(out, blob)
	return out, nil
}

// SetNamedState stores blob under key.
func (m *MemoryStore) SetNamedState(_ context.Context, key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(blob))
	copy(stored, blob)
	m.blobs[key] = stored
	return nil
}

// ListNamedState returns every key with the given prefix.
func (m *MemoryStore) ListNamedState(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for key := range m.blobs {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// AppendTelemetryEvent records evt in memory.
func (m *MemoryStore) AppendTelemetryEvent(_ context.Context, evt TelemetryEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

// TelemetryEvents returns a copy of all recorded events.
func (m *MemoryStore) TelemetryEvents() []TelemetryEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]TelemetryEvent, len(m.events))
	copy(out, m.events)
	return out
}
