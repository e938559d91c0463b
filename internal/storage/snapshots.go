// Package storage persists last-known-good feed snapshots to SQLite so
// the client can show something when the network is down.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/glabrego/prism-cli/internal/feed"
)

// SnapshotStore keeps at most one snapshot per descriptor key. A new
// successful fetch overwrites the previous snapshot for that key.
type SnapshotStore struct {
	db  *sql.DB
	now func() time.Time
}

// SnapshotInfo summarizes a stored snapshot without its pages.
type SnapshotInfo struct {
	Key       string
	ItemCount int
	SavedAt   time.Time
}

// Open creates the store at path. ":memory:" uses a shared-cache
// single-connection database so tests see one logical database.
func Open(path string) (*SnapshotStore, error) {
	connStr := path
	if path == ":memory:" {
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}
	return &SnapshotStore{db: db, now: time.Now}, nil
}

func (s *SnapshotStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SnapshotStore) Init(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
  descriptor_key TEXT PRIMARY KEY,
  pages TEXT NOT NULL,
  item_count INTEGER NOT NULL,
  saved_at INTEGER NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Persist overwrites the snapshot for key with pages.
func (s *SnapshotStore) Persist(ctx context.Context, key string, pages []feed.Page) error {
	encoded, err := json.Marshal(pages)
	if err != nil {
		return fmt.Errorf("encode snapshot pages: %w", err)
	}

	count := 0
	for _, p := range pages {
		count += len(p.Items)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO snapshots (descriptor_key, pages, item_count, saved_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(descriptor_key) DO UPDATE SET
  pages=excluded.pages,
  item_count=excluded.item_count,
  saved_at=excluded.saved_at
`, key, string(encoded), count, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", key, err)
	}
	return nil
}

// Restore returns the snapshot stored for key, or ok=false when none
// exists.
func (s *SnapshotStore) Restore(ctx context.Context, key string) (pages []feed.Page, savedAt time.Time, ok bool, err error) {
	var encoded string
	var saved int64
	row := s.db.QueryRowContext(ctx, `SELECT pages, saved_at FROM snapshots WHERE descriptor_key = ?`, key)
	if err := row.Scan(&encoded, &saved); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, time.Time{}, false, nil
		}
		return nil, time.Time{}, false, fmt.Errorf("load snapshot %q: %w", key, err)
	}

	if err := json.Unmarshal([]byte(encoded), &pages); err != nil {
		return nil, time.Time{}, false, fmt.Errorf("decode snapshot %q: %w", key, err)
	}
	return pages, time.Unix(0, saved).UTC(), true, nil
}

// List returns summaries of every stored snapshot, newest first.
func (s *SnapshotStore) List(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT descriptor_key, item_count, saved_at
FROM snapshots
ORDER BY saved_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		var saved int64
		if err := rows.Scan(&info.Key, &info.ItemCount, &saved); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		info.SavedAt = time.Unix(0, saved).UTC()
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}
