package mcptools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/xonecas/forge/internal/mcp"
)

// FollowupArgs represents arguments for the Followup tool.
type FollowupArgs struct {
	Question string `json:"question"`
}

// NewFollowupTool creates the Followup tool definition.
func NewFollowupTool() mcp.Tool {
	return mcp.Tool{
		Name:        "Followup",
		Description: `Asks the user a clarifying question and returns their answer. Use this when the task is ambiguous and guessing would risk wasted work.`,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"question": {"type": "string", "description": "The question to ask the user"}
			},
			"required": ["question"]
		}`),
	}
}

// FollowupHandler handles Followup tool calls by delegating the actual
// question/answer exchange to Ask, the host's interactive channel. A nil
// Ask means no interactive host is attached to this registry, matching the
// spec's framing of the concrete prompt surface as an external collaborator
// (see spec.md §1) — the tool itself is the only part this module owns.
type FollowupHandler struct {
	Ask func(ctx context.Context, question string) (string, error)
}

// NewFollowupHandler creates a handler for the Followup tool.
func NewFollowupHandler(ask func(ctx context.Context, question string) (string, error)) *FollowupHandler {
	return &FollowupHandler{Ask: ask}
}

// Handle implements the mcp.ToolHandler interface.
func (h *FollowupHandler) Handle(ctx context.Context, arguments json.RawMessage) (*mcp.ToolResult, error) {
	var args FollowupArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return toolError("Invalid arguments: %v", err), nil
	}
	if strings.TrimSpace(args.Question) == "" {
		return toolError("question cannot be empty"), nil
	}
	if h.Ask == nil {
		return toolError("no interactive host attached to answer follow-up questions"), nil
	}

	answer, err := h.Ask(ctx, args.Question)
	if err != nil {
		return toolError("failed to get an answer: %v", err), nil
	}
	return toolText(answer), nil
}
