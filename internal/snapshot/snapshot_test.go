package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/xonecas/forge/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db)
}

func TestInsertAndUndoModify(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(path, []byte("original"), 0o600); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	snap, err := store.InsertSnapshot(ctx, path)
	if err != nil {
		t.Fatalf("insert snapshot: %v", err)
	}
	if !snap.Existed || string(snap.Content) != "original" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	if err := os.WriteFile(path, []byte("modified"), 0o600); err != nil {
		t.Fatalf("mutate file: %v", err)
	}

	if err := store.UndoSnapshot(ctx, path); err != nil {
		t.Fatalf("undo: %v", err)
	}

	restored, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read restored: %v", err)
	}
	if string(restored) != "original" {
		t.Fatalf("got %q, want %q", restored, "original")
	}
}

func TestUndoRemovesCreatedFile(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "new.txt")
	if _, err := store.InsertSnapshot(ctx, path); err != nil {
		t.Fatalf("insert snapshot of nonexistent path: %v", err)
	}
	if err := os.WriteFile(path, []byte("created"), 0o600); err != nil {
		t.Fatalf("create file: %v", err)
	}

	if err := store.UndoSnapshot(ctx, path); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected file to be removed, stat err = %v", err)
	}
}

func TestUndoUsesMostRecentSnapshot(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "file.txt")
	os.WriteFile(path, []byte("v1"), 0o600)
	store.InsertSnapshot(ctx, path)
	os.WriteFile(path, []byte("v2"), 0o600)
	store.InsertSnapshot(ctx, path)
	os.WriteFile(path, []byte("v3"), 0o600)

	if err := store.UndoSnapshot(ctx, path); err != nil {
		t.Fatalf("undo: %v", err)
	}
	restored, _ := os.ReadFile(path)
	if string(restored) != "v2" {
		t.Fatalf("got %q, want %q", restored, "v2")
	}
}

func TestUndoUnknownPath(t *testing.T) {
	store := openTestStore(t)
	err := store.UndoSnapshot(context.Background(), "/no/such/path")
	if err == nil {
		t.Fatalf("expected error for path with no recorded snapshot")
	}
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected error to wrap %v, got %v", domain.ErrNotFound, err)
	}
}
