// Package sqlite provides a SQLite-backed quest storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/nylanalyn/jeeves-quest/internal/platform/storage/sqlitemigrate"
	"github.com/nylanalyn/jeeves-quest/internal/storage"
	"github.com/nylanalyn/jeeves-quest/internal/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists quest state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite quest store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// GetNamedState returns the blob stored under key, or storage.ErrNotFound.
func (s *Store) GetNamedState(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("state key is required")
	}

	var blob []byte
	row := s.sqlDB.QueryRowContext(ctx, `SELECT blob FROM named_state WHERE key = ?`, key)
	if err := row.Scan(&blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get named state: %w", err)
	}
	return blob, nil
}

// SetNamedState stores blob under key, replacing any previous value.
func (s *Store) SetNamedState(ctx context.Context, key string, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("state key is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO named_state (key, blob, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at`,
		key,
		blob,
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("set named state: %w", err)
	}
	return nil
}

// ListNamedState returns every key with the given prefix.
func (s *Store) ListNamedState(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT key FROM named_state WHERE key LIKE ? ORDER BY key`,
		prefix+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("list named state: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan named state key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate named state keys: %w", err)
	}
	return keys, nil
}

// AppendTelemetryEvent records one operational game event.
func (s *Store) AppendTelemetryEvent(ctx context.Context, evt storage.TelemetryEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(evt.ID) == "" {
		return fmt.Errorf("telemetry event id is required")
	}
	timestamp := evt.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO telemetry_events (id, kind, severity, user_id, channel, detail, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		evt.ID,
		evt.Kind,
		evt.Severity,
		evt.UserID,
		evt.Channel,
		evt.Detail,
		timestamp.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append telemetry event: %w", err)
	}
	return nil
}
