package content

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Settings is the layered configuration lookup: a channel override is
// consulted before the global value, and the caller's default applies when
// neither layer defines the path. Overrides are runtime-settable and can be
// snapshotted for persistence.
type Settings struct {
	mu       sync.RWMutex
	global   map[string]string
	channels map[string]map[string]string
}

// NewSettings creates an empty settings store.
func NewSettings() *Settings {
	return &Settings{
		global:   map[string]string{},
		channels: map[string]map[string]string{},
	}
}

// Set stores a global value for path.
func (s *Settings) Set(path, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.global[path] = value
}

// SetChannel stores a channel-scoped override for path.
func (s *Settings) SetChannel(channel, path, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	overrides, ok := s.channels[channel]
	if !ok {
		overrides = map[string]string{}
		s.channels[channel] = overrides
	}
	overrides[path] = value
}

// lookup returns the raw value for path, channel override first.
func (s *Settings) lookup(path, channel string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if channel != "" {
		if overrides, ok := s.channels[channel]; ok {
			if value, ok := overrides[path]; ok {
				return value, true
			}
		}
	}
	value, ok := s.global[path]
	return value, ok
}

// String returns the configured string for path, or def.
func (s *Settings) String(path, channel, def string) string {
	if value, ok := s.lookup(path, channel); ok {
		return value
	}
	return def
}

// Float returns the configured float for path, or def. Unparseable values
// fall back to def.
func (s *Settings) Float(path, channel string, def float64) float64 {
	value, ok := s.lookup(path, channel)
	if !ok {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

// Int returns the configured int for path, or def.
func (s *Settings) Int(path, channel string, def int) int {
	value, ok := s.lookup(path, channel)
	if !ok {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

// Bool returns the configured bool for path, or def.
func (s *Settings) Bool(path, channel string, def bool) bool {
	value, ok := s.lookup(path, channel)
	if !ok {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
}

// Duration returns the configured duration for path, or def.
func (s *Settings) Duration(path, channel string, def time.Duration) time.Duration {
	value, ok := s.lookup(path, channel)
	if !ok {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

type settingsSnapshot struct {
	Global   map[string]string            `json:"global"`
	Channels map[string]map[string]string `json:"channels"`
}

// Snapshot serialises all overrides for persistence.
func (s *Settings) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(settingsSnapshot{Global: s.global, Channels: s.channels})
}

// Restore replaces all overrides from a snapshot blob.
func (s *Settings) Restore(blob []byte) error {
	var snap settingsSnapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return fmt.Errorf("restore settings: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.global = snap.Global
	if s.global == nil {
		s.global = map[string]string{}
	}
	s.channels = snap.Channels
	if s.channels == nil {
		s.channels = map[string]map[string]string{}
	}
	return nil
}
