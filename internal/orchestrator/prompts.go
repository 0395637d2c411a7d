package orchestrator

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/xonecas/forge/internal/domain"
)

// Environment describes the host the agent is running in, rendered into the
// system prompt template. Supplements spec.md's SystemPromptBuilder
// signature with the fields original_source/crates/forge_app/src/
// system_prompt.rs passes through from forge_domain::Environment.
type Environment struct {
	OS         string
	WorkingDir string
	Shell      string
}

// systemPromptData is the template context text/template renders the
// agent's SystemPrompt template against. No handlebars-partial engine is
// wired in this pack (the teacher has no templating dependency at all), so
// rendering uses the standard library's text/template — stdlib-justified.
type systemPromptData struct {
	Env                       Environment
	Tools                     []domain.ToolDefinition
	ToolSupported             bool
	SupportsParallelToolCalls bool
	Files                     []string
	CustomRules               string
	Skills                    []string
}

// buildSystemMessage renders the agent's system prompt template (if any)
// into a single TextMessage, grounded on system_prompt.rs's
// add_system_message.
func buildSystemMessage(agent *domain.Agent, env Environment, tools []domain.ToolDefinition, files, customInstructions, skills []string, toolSupported bool) (domain.TextMessage, bool) {
	if agent.SystemPrompt == "" {
		return domain.TextMessage{}, false
	}

	data := systemPromptData{
		Env:           env,
		Tools:         tools,
		ToolSupported: toolSupported,
		Files:         files,
		Skills:        skills,
	}
	for _, rule := range customInstructions {
		if data.CustomRules != "" {
			data.CustomRules += "\n\n"
		}
		data.CustomRules += rule
	}

	rendered, err := renderTemplate(agent.SystemPrompt, data)
	if err != nil {
		rendered = agent.SystemPrompt
	}
	return domain.TextMessage{Role: domain.RoleSystem, Content: rendered, CreatedAt: time.Now()}, true
}

// setSystemMessage drops any existing system messages from ctx and prepends
// exactly one rendered system message, preserving the invariant that system
// messages precede every other message.
func setSystemMessage(ctx *domain.Context, msg domain.TextMessage) {
	rest := make([]domain.ContextMessage, 0, len(ctx.Messages)+1)
	for _, m := range ctx.Messages {
		if tm, ok := m.(domain.TextMessage); ok && tm.Role == domain.RoleSystem {
			continue
		}
		rest = append(rest, m)
	}
	ctx.Messages = append([]domain.ContextMessage{msg}, rest...)
}

// eventContext is the template data a user_prompt template renders, grounded
// on original_source/crates/forge_app/src/user_prompt.rs's EventContext.
type eventContext struct {
	Value       string
	CurrentDate string
	IsFeedback  bool
	IsTask      bool
}

// buildUserMessage appends exactly one user message for event, choosing
// between the agent's templated UserPrompt (if set) and the raw event value.
// The feedback/task-init distinction follows user_prompt.rs:
// has_user_messages && !event.is_task_update() => feedback.
func buildUserMessage(agent *domain.Agent, ctx *domain.Context, event domain.Event, now time.Time) *domain.Context {
	hasUserMessages := false
	for _, m := range ctx.Messages {
		if tm, ok := m.(domain.TextMessage); ok && tm.Role == domain.RoleUser {
			hasUserMessages = true
			break
		}
	}
	isFeedback := hasUserMessages && !event.IsTaskUpdate()

	content := event.Value
	if agent.UserPrompt != "" {
		ec := eventContext{
			Value:       event.Value,
			CurrentDate: now.Format("2006-01-02"),
			IsFeedback:  isFeedback,
			IsTask:      !isFeedback,
		}
		if rendered, err := renderTemplate(agent.UserPrompt, ec); err == nil {
			content = rendered
		}
	}

	if content == "" {
		return ctx
	}
	ctx.Messages = append(ctx.Messages, domain.TextMessage{Role: domain.RoleUser, Content: content, Model: agent.Model, CreatedAt: now})
	return ctx
}

func renderTemplate(src string, data any) (string, error) {
	tmpl, err := template.New("prompt").Parse(src)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}
