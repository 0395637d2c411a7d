package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xonecas/forge/internal/domain"
	"github.com/xonecas/forge/internal/mcp"
)

// SkillArgs represents arguments for the Skill tool.
type SkillArgs struct {
	Name string `json:"name"`
}

// NewSkillTool creates the Skill tool definition.
func NewSkillTool() mcp.Tool {
	return mcp.Tool{
		Name: "Skill",
		Description: `Loads a specialized skill for a specific task type. Check the available skills list
when a user request matches a skill's description or trigger conditions, and invoke it
before attempting the task directly. Do not invoke a skill that is already active.`,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"name": {"type": "string", "description": "Name of the skill to load"}
			},
			"required": ["name"]
		}`),
	}
}

// SkillHandler handles Skill tool calls, caching the repository's skill
// list after its first successful load.
type SkillHandler struct {
	repo domain.SkillRepository

	mu    sync.Mutex
	cache []domain.Skill
}

// NewSkillHandler creates a handler for the Skill tool. repo may be nil, in
// which case every call reports that no skill repository is configured.
func NewSkillHandler(repo domain.SkillRepository) *SkillHandler {
	return &SkillHandler{repo: repo}
}

// Handle implements the mcp.ToolHandler interface.
func (h *SkillHandler) Handle(ctx context.Context, arguments json.RawMessage) (*mcp.ToolResult, error) {
	var args SkillArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return toolError("Invalid arguments: %v", err), nil
	}
	if strings.TrimSpace(args.Name) == "" {
		return toolError("skill name cannot be empty"), nil
	}

	skills, err := h.loadSkills(ctx)
	if err != nil {
		return toolError("%v", err), nil
	}

	for _, s := range skills {
		if strings.EqualFold(s.Name, args.Name) {
			return toolText(fmt.Sprintf("%s\n\n%s", s.Description, s.Trigger)), nil
		}
	}
	return toolError("Skill '%s' not found. Please check the available skills list.", args.Name), nil
}

func (h *SkillHandler) loadSkills(ctx context.Context) ([]domain.Skill, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cache != nil {
		return h.cache, nil
	}
	if h.repo == nil {
		return nil, fmt.Errorf("no skill repository configured")
	}
	skills, err := h.repo.LoadSkills(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load skills: %w", err)
	}
	h.cache = skills
	return skills, nil
}
