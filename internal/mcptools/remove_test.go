package mcptools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestRemoveDeletesFileAndSnapshots(t *testing.T) {
	path, cleanup := setupTestFile(t, threeLineContent)
	defer cleanup()

	store := openTestSnapshots(t)
	handler := NewRemoveHandler(store)
	args, _ := json.Marshal(RemoveArgs{File: filepath.Base(path)})
	result, err := handler.Handle(context.Background(), args)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %v", result.Content)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected file to be removed, stat err: %v", err)
	}

	undoHandler := NewUndoHandler(store)
	undoArgs, _ := json.Marshal(UndoArgs{File: filepath.Base(path)})
	if _, err := undoHandler.Handle(context.Background(), undoArgs); err != nil {
		t.Fatalf("undo: %v", err)
	}
	restored, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read restored: %v", err)
	}
	if string(restored) != threeLineContent {
		t.Fatalf("undo after remove did not restore original content, got %q", restored)
	}
}

func TestRemoveMissingFileFails(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(origDir) //nolint:errcheck

	handler := NewRemoveHandler(nil)
	args, _ := json.Marshal(RemoveArgs{File: "missing.txt"})
	result, err := handler.Handle(context.Background(), args)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected error for missing file")
	}
}
