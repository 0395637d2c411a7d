package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/xonecas/forge/internal/domain"
)

// osFileReader satisfies domain.FileReader by reading straight from disk.
type osFileReader struct{}

func (osFileReader) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

// ChangedFiles detects files the conversation previously read that have
// since been modified externally, grounded on
// original_source/crates/forge_app/src/changed_files.rs. Hashing follows the
// teacher's sha256-hex convention in internal/hashline/hashline.go.
type ChangedFiles struct {
	Files domain.FileReader
}

// NewChangedFiles builds a ChangedFiles detector reading straight from disk.
func NewChangedFiles() *ChangedFiles { return &ChangedFiles{Files: osFileReader{}} }

// ComputeHash returns the sha256 hex digest of content.
func ComputeHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// UpdateFileStats re-hashes every tracked file operation's path, appends a
// user-visible notification for any path whose on-disk content no longer
// matches its recorded hash, and updates the recorded hash so the same
// change is never reported twice.
func (c *ChangedFiles) UpdateFileStats(_ context.Context, conv *domain.Conversation, now time.Time) *domain.Conversation {
	if conv.Context == nil || len(conv.Metrics.FileOperations) == 0 {
		return conv
	}

	var changedPaths []string
	for path, op := range conv.Metrics.FileOperations {
		content, err := c.Files.ReadFile(path)
		if err != nil {
			continue
		}
		hash := ComputeHash(content)
		if op.ContentHash != "" && hash != op.ContentHash {
			changedPaths = append(changedPaths, path)
		}
		op.ContentHash = hash
		conv.Metrics.FileOperations[path] = op
	}

	if len(changedPaths) == 0 {
		return conv
	}
	sort.Strings(changedPaths)

	var files strings.Builder
	for _, p := range changedPaths {
		fmt.Fprintf(&files, "<file>%s</file>", p)
	}
	notification := fmt.Sprintf(
		"<information><critical>The following files have been modified externally. Please re-read them if relevant to the task.</critical><files>%s</files></information>",
		files.String(),
	)

	conv.Context.Messages = append(conv.Context.Messages, domain.TextMessage{
		Role:      domain.RoleUser,
		Content:   notification,
		CreatedAt: now,
	})
	return conv
}
