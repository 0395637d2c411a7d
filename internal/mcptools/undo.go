package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xonecas/forge/internal/domain"
	"github.com/xonecas/forge/internal/mcp"
)

// UndoArgs represents arguments for the Undo tool.
type UndoArgs struct {
	File string `json:"file"`
}

// NewUndoTool creates the Undo tool definition.
func NewUndoTool() mcp.Tool {
	return mcp.Tool{
		Name:        "Undo",
		Description: `Restores a file to the state it was in before the most recent Edit. Calling it again restores that same state; it does not step further back through earlier edits.`,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"file": {"type": "string", "description": "Path to the file to restore"}
			},
			"required": ["file"]
		}`),
	}
}

// UndoHandler handles Undo tool calls.
type UndoHandler struct {
	snapshots domain.SnapshotRepository
}

// NewUndoHandler creates a handler for the Undo tool.
func NewUndoHandler(snapshots domain.SnapshotRepository) *UndoHandler {
	return &UndoHandler{snapshots: snapshots}
}

// Handle implements the mcp.ToolHandler interface.
func (h *UndoHandler) Handle(ctx context.Context, arguments json.RawMessage) (*mcp.ToolResult, error) {
	var args UndoArgs
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

	if err := h.snapshots.UndoSnapshot(ctx, absPath); err != nil {
		return toolError("Failed to undo %s: %v", args.File, err), nil
	}

	return &mcp.ToolResult{
		Content: []mcp.ContentBlock{{Type: "text", Text: fmt.Sprintf("Restored %s to its pre-edit state", args.File)}},
	}, nil
}
