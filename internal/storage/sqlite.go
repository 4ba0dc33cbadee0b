// Package storage provides the embedded durable stores backing the
// engine: the offline pending-event queue and the credential store.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS pending_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    campaign_id TEXT NOT NULL DEFAULT '',
    user_id TEXT NOT NULL DEFAULT '',
    event_type TEXT NOT NULL,
    metadata TEXT,
    created_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE INDEX IF NOT EXISTS idx_pending_events_created ON pending_events(created_at);

CREATE TABLE IF NOT EXISTS credentials (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);
`

// PendingEvent is an engagement event that could not be sent and waits
// for replay after (re-)initialization.
type PendingEvent struct {
	ID         int64
	CampaignID string
	UserID     string
	EventType  string
	Metadata   map[string]any
	CreatedAt  time.Time
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) EnqueuePendingEvent(ctx context.Context, ev PendingEvent) error {
	var meta []byte
	if ev.Metadata != nil {
		var err error
		meta, err = json.Marshal(ev.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_events (campaign_id, user_id, event_type, metadata)
		VALUES (?, ?, ?, ?)`,
		ev.CampaignID, ev.UserID, ev.EventType, nullableString(meta))
	if err != nil {
		return fmt.Errorf("failed to enqueue event: %w", err)
	}
	return nil
}

// DrainPendingEvents returns all queued events in insertion order. It
// does not delete them; call ClearPendingEvents after a successful
// replay pass.
func (s *Store) DrainPendingEvents(ctx context.Context) ([]PendingEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, campaign_id, user_id, event_type, metadata, created_at
		FROM pending_events ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	defer rows.Close()

	var out []PendingEvent
	for rows.Next() {
		var ev PendingEvent
		var meta sql.NullString
		var created int64
		if err := rows.Scan(&ev.ID, &ev.CampaignID, &ev.UserID, &ev.EventType, &meta, &created); err != nil {
			return nil, fmt.Errorf("failed to scan pending event: %w", err)
		}
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &ev.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		ev.CreatedAt = time.Unix(created, 0)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *Store) ClearPendingEvents(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_events`); err != nil {
		return fmt.Errorf("failed to clear pending events: %w", err)
	}
	return nil
}

func (s *Store) SaveCredential(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, unixepoch())
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

func (s *Store) LoadCredential(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM credentials WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load credential: %w", err)
	}
	return value, nil
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
