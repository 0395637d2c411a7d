// Package snapshot implements domain.SnapshotRepository as an append-only,
// SQLite-backed pre-image store, adapted from the turn-keyed file-delta
// tracker the teacher built for its Undo command into the spec's simpler
// per-path "most recent snapshot wins" model.
package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xonecas/forge/internal/domain"
)

// Store persists one row per InsertSnapshot call, in path-id order, so
// UndoSnapshot can always find the most recent pre-image for a path.
type Store struct {
	db *sql.DB
}

// New wraps db, assuming the file_snapshots table already exists
// (created by the migration this package ships alongside, mirroring the
// teacher's file_deltas schema).
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the file_snapshots table if it does not already exist.
func Migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS file_snapshots (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			path       TEXT NOT NULL,
			content    BLOB,
			existed    INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_file_snapshots_path ON file_snapshots(path);
	`)
	if err != nil {
		return fmt.Errorf("migrate file_snapshots: %w", err)
	}
	return nil
}

// InsertSnapshot captures the pre-image of path as it currently stands on
// disk and appends it to the store. Call this before the mutating write, not
// after. A missing path is a valid pre-image (existed=false): Undo will then
// remove the file entirely.
func (s *Store) InsertSnapshot(ctx context.Context, path string) (*domain.Snapshot, error) {
	content, err := os.ReadFile(path)
	existed := true
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read pre-image of %s: %w", path, err)
		}
		existed = false
		content = nil
	}

	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO file_snapshots (path, content, existed, created_at) VALUES (?, ?, ?, ?)`,
		path, content, boolToInt(existed), now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert snapshot for %s: %w", path, err)
	}

	return &domain.Snapshot{Path: path, Content: content, Existed: existed, CreatedAt: now}, nil
}

// UndoSnapshot restores the most recent snapshot recorded for path: writes
// its content back if it existed, or removes the file if it didn't.
func (s *Store) UndoSnapshot(ctx context.Context, path string) error {
	var content []byte
	var existed int
	err := s.db.QueryRowContext(ctx,
		`SELECT content, existed FROM file_snapshots WHERE path = ? ORDER BY id DESC LIMIT 1`,
		path,
	).Scan(&content, &existed)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: no snapshot recorded for %s", domain.ErrNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("load snapshot for %s: %w", path, err)
	}

	if existed == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("undo: remove %s: %w", path, err)
		}
		return nil
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return fmt.Errorf("undo: restore %s: %w", path, err)
	}
	return nil
}

// Prune removes snapshot history older than before, logging but not failing
// the caller on error — pruning is best-effort housekeeping, not correctness
// critical.
func (s *Store) Prune(ctx context.Context, before time.Time) {
	_, err := s.db.ExecContext(ctx, `DELETE FROM file_snapshots WHERE created_at < ?`, before.Unix())
	if err != nil {
		log.Warn().Err(err).Time("before", before).Msg("failed to prune old file snapshots")
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
