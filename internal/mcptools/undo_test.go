package mcptools

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/xonecas/forge/internal/hashline"
	"github.com/xonecas/forge/internal/snapshot"
)

func openTestSnapshots(t *testing.T) *snapshot.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := snapshot.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return snapshot.New(db)
}

func TestUndoRestoresEditedFile(t *testing.T) {
	content := "line one\nline two\nline three"
	path, cleanup := setupTestFile(t, content)
	defer cleanup()

	lines := strings.Split(content, "\n")
	h1 := hashline.LineHash(lines[0])

	store := openTestSnapshots(t)
	tracker := NewFileReadTracker()
	tracker.MarkRead(path)
	editHandler := NewEditHandler(tracker, nil, nil, store)

	text, isErr := callEdit(t, editHandler, EditArgs{
		File: filepath.Base(path),
		Replace: &ReplaceOp{
			Start:   hashline.Anchor{Num: 1, Hash: h1},
			End:     hashline.Anchor{Num: 1, Hash: h1},
			Content: "line one point five",
		},
	})
	if isErr {
		t.Fatalf("edit failed: %s", text)
	}

	edited, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read edited: %v", err)
	}
	if string(edited) == content {
		t.Fatalf("edit did not change the file")
	}

	undoHandler := NewUndoHandler(store)
	undoArgs, _ := json.Marshal(UndoArgs{File: filepath.Base(path)})
	result, err := undoHandler.Handle(context.Background(), undoArgs)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if result.IsError {
		t.Fatalf("undo reported error: %v", result.Content)
	}

	restored, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read restored: %v", err)
	}
	if string(restored) != content {
		t.Fatalf("undo did not restore original content, got %q", restored)
	}
}

func TestUndoWithNoSnapshotFails(t *testing.T) {
	path, cleanup := setupTestFile(t, threeLineContent)
	defer cleanup()

	store := openTestSnapshots(t)
	undoHandler := NewUndoHandler(store)
	args, _ := json.Marshal(UndoArgs{File: filepath.Base(path)})
	result, err := undoHandler.Handle(context.Background(), args)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected error for a file with no recorded snapshot")
	}
}
