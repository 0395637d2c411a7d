package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/xonecas/forge/internal/domain"
	"github.com/xonecas/forge/internal/mcp"
)

// RemoveArgs represents arguments for the Remove tool.
type RemoveArgs struct {
	File string `json:"file"`
}

// NewRemoveTool creates the Remove tool definition.
func NewRemoveTool() mcp.Tool {
	return mcp.Tool{
		Name:        "Remove",
		Description: `Deletes a file. A snapshot of its content is captured first so Undo can restore it.`,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"file": {"type": "string", "description": "Path to the file to delete"}
			},
			"required": ["file"]
		}`),
	}
}

// RemoveHandler handles Remove tool calls.
type RemoveHandler struct {
	snapshots domain.SnapshotRepository
}

// NewRemoveHandler creates a handler for the Remove tool. snapshots may be
// nil, in which case the deletion is not Undo-able.
func NewRemoveHandler(snapshots domain.SnapshotRepository) *RemoveHandler {
	return &RemoveHandler{snapshots: snapshots}
}

// Handle implements the mcp.ToolHandler interface.
func (h *RemoveHandler) Handle(ctx context.Context, arguments json.RawMessage) (*mcp.ToolResult, error) {
	var args RemoveArgs
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

	if _, err := os.Stat(absPath); err != nil {
		return toolError("File does not exist: %s", args.File), nil
	}

	if h.snapshots != nil {
		if _, err := h.snapshots.InsertSnapshot(ctx, absPath); err != nil {
			return toolError("Failed to snapshot %s before removal: %v", args.File, err), nil
		}
	}

	if err := os.Remove(absPath); err != nil {
		return toolError("Failed to remove file: %v", err), nil
	}

	return &mcp.ToolResult{
		Content: []mcp.ContentBlock{{Type: "text", Text: fmt.Sprintf("Removed %s", args.File)}},
	}, nil
}
