package mcptools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xonecas/forge/internal/domain"
	"github.com/xonecas/forge/internal/mcp"
)

// WriteArgs represents arguments for the Write tool.
type WriteArgs struct {
	File      string `json:"file"`
	Content   string `json:"content"`
	Overwrite bool   `json:"overwrite,omitempty"`
}

// NewWriteTool creates the Write tool definition.
func NewWriteTool() mcp.Tool {
	return mcp.Tool{
		Name: "Write",
		Description: `Writes content to a file, creating parent directories as needed.
Fails if the file already exists unless overwrite is set to true.
When overwriting, a snapshot of the previous content is captured first so Undo can restore it.`,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"file":      {"type": "string", "description": "Path to the file to write"},
				"content":   {"type": "string", "description": "Full file content"},
				"overwrite": {"type": "boolean", "description": "Allow replacing an existing file. Default: false"}
			},
			"required": ["file", "content"]
		}`),
	}
}

// WriteHandler handles Write tool calls.
type WriteHandler struct {
	snapshots domain.SnapshotRepository
}

// NewWriteHandler creates a handler for the Write tool. snapshots may be
// nil, in which case an overwrite mutates without recording an Undo-able
// pre-image.
func NewWriteHandler(snapshots domain.SnapshotRepository) *WriteHandler {
	return &WriteHandler{snapshots: snapshots}
}

// Handle implements the mcp.ToolHandler interface.
func (h *WriteHandler) Handle(ctx context.Context, arguments json.RawMessage) (*mcp.ToolResult, error) {
	var args WriteArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return toolError("Invalid arguments: %v", err), nil
	}
	if args.File == "" {
		return toolError("File path cannot be empty"), nil
	}

	absPath, err := validatePath(args.File)
	if err != nil {
		return toolError("%v", err), nil
	}

	info, statErr := os.Stat(absPath)
	exists := statErr == nil
	if exists && info.IsDir() {
		return toolError("%s is a directory, not a file", args.File), nil
	}
	if exists && !args.Overwrite {
		return toolError("File already exists: %s (set overwrite=true to replace it)", args.File), nil
	}

	var before string
	if exists {
		prev, err := os.ReadFile(absPath)
		if err != nil {
			return toolError("Failed to read existing file: %v", err), nil
		}
		before = string(prev)

		if h.snapshots != nil {
			if _, err := h.snapshots.InsertSnapshot(ctx, absPath); err != nil {
				return toolError("Failed to snapshot %s before write: %v", args.File, err), nil
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return toolError("Failed to create directories: %v", err), nil
	}
	if err := os.WriteFile(absPath, []byte(args.Content), 0600); err != nil {
		return toolError("Failed to write file: %v", err), nil
	}

	sum := sha256.Sum256([]byte(args.Content))
	hash := hex.EncodeToString(sum[:])

	text := fmt.Sprintf("Wrote %s (hash %s)", args.File, hash)
	if exists {
		text = fmt.Sprintf("Overwrote %s (hash %s)\n\n--- previous content ---\n%s", args.File, hash, before)
	}

	return &mcp.ToolResult{
		Content: []mcp.ContentBlock{{Type: "text", Text: text}},
	}, nil
}
