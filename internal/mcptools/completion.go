package mcptools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/xonecas/forge/internal/mcp"
)

// CompletionArgs represents arguments for the AttemptCompletion tool.
type CompletionArgs struct {
	Result string `json:"result"`
}

// NewAttemptCompletionTool creates the AttemptCompletion tool definition.
// It is the explicit, tool-call form of the turn's finish signal; a plain
// final assistant message with no tool calls is the implicit form the
// orchestrator's Decide step also recognizes.
func NewAttemptCompletionTool() mcp.Tool {
	return mcp.Tool{
		Name:        "attempt_completion",
		Description: `Signals that the task is complete. Call this once the requested work is done, summarizing what was accomplished in result.`,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"result": {"type": "string", "description": "Summary of the completed work"}
			},
			"required": ["result"]
		}`),
	}
}

// CompletionHandler handles AttemptCompletion tool calls. It performs no
// side effects of its own: the orchestrator's Decide step recognizes the
// call by name and ends the turn after the tool message this handler
// produces is appended to the context.
type CompletionHandler struct{}

// NewCompletionHandler creates a handler for the AttemptCompletion tool.
func NewCompletionHandler() *CompletionHandler { return &CompletionHandler{} }

// Handle implements the mcp.ToolHandler interface.
func (h *CompletionHandler) Handle(_ context.Context, arguments json.RawMessage) (*mcp.ToolResult, error) {
	var args CompletionArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return toolError("Invalid arguments: %v", err), nil
	}
	result := strings.TrimSpace(args.Result)
	if result == "" {
		result = "Task completed."
	}
	return &mcp.ToolResult{
		Content: []mcp.ContentBlock{{Type: "text", Text: result}},
	}, nil
}
