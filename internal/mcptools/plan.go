package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xonecas/forge/internal/mcp"
)

// PlanArgs represents arguments for the Plan tool.
type PlanArgs struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Content string `json:"content"`
}

// NewPlanTool creates the Plan tool definition.
func NewPlanTool() mcp.Tool {
	return mcp.Tool{
		Name: "Plan",
		Description: `Creates a new plan file under ./plans with the specified name, version and content.
Use this to record structured project plans, task breakdowns, or implementation strategies
that should be tracked and referenced throughout the session. Never overwrites an existing plan;
pick a new name or version to revise one.`,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"name":    {"type": "string", "description": "Short plan name, e.g. \"add-auth\""},
				"version": {"type": "string", "description": "Plan revision, e.g. \"v1\""},
				"content": {"type": "string", "description": "Plan body in markdown"}
			},
			"required": ["name", "version", "content"]
		}`),
	}
}

// PlanHandler handles Plan tool calls, writing plan files under cwd/plans.
type PlanHandler struct {
	cwd string
}

// NewPlanHandler creates a handler for the Plan tool rooted at cwd.
func NewPlanHandler(cwd string) *PlanHandler {
	return &PlanHandler{cwd: cwd}
}

// Handle implements the mcp.ToolHandler interface.
func (h *PlanHandler) Handle(_ context.Context, arguments json.RawMessage) (*mcp.ToolResult, error) {
	var args PlanArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return toolError("Invalid arguments: %v", err), nil
	}
	if args.Name == "" || args.Version == "" || args.Content == "" {
		return toolError("name, version and content are all required"), nil
	}

	plansDir := filepath.Join(h.cwd, "plans")
	if err := os.MkdirAll(plansDir, 0755); err != nil {
		return toolError("Failed to create plans directory: %v", err), nil
	}

	filename := fmt.Sprintf("%s-%s-%s.md", time.Now().Format("2006-01-02"), args.Name, args.Version)
	path := filepath.Join(plansDir, filename)

	if _, err := os.Stat(path); err == nil {
		return toolError("Plan file already exists at %s. Use a different plan name or version to avoid conflicts.", path), nil
	}

	if err := os.WriteFile(path, []byte(args.Content), 0600); err != nil {
		return toolError("Failed to write plan file: %v", err), nil
	}

	return &mcp.ToolResult{
		Content: []mcp.ContentBlock{{Type: "text", Text: fmt.Sprintf("Created plan %s", path)}},
	}, nil
}
