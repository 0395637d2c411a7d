package orchestrator

import (
	"strings"
	"testing"
	"time"

	"github.com/xonecas/forge/internal/domain"
)

func TestBuildSystemMessageRendersTemplate(t *testing.T) {
	agent := &domain.Agent{SystemPrompt: "You run on {{.Env.OS}} in {{.Env.WorkingDir}}."}
	env := Environment{OS: "linux", WorkingDir: "/repo"}

	msg, ok := buildSystemMessage(agent, env, nil, nil, nil, nil, true)
	if !ok {
		t.Fatal("expected buildSystemMessage to report ok=true when SystemPrompt is set")
	}
	if msg.Role != domain.RoleSystem {
		t.Fatalf("expected a system-role message, got %v", msg.Role)
	}
	if !strings.Contains(msg.Content, "linux") || !strings.Contains(msg.Content, "/repo") {
		t.Fatalf("expected rendered template to substitute env fields, got %q", msg.Content)
	}
}

func TestBuildSystemMessageAbsentWithoutTemplate(t *testing.T) {
	agent := &domain.Agent{}
	_, ok := buildSystemMessage(agent, Environment{}, nil, nil, nil, nil, false)
	if ok {
		t.Fatal("expected buildSystemMessage to report ok=false when SystemPrompt is unset")
	}
}

func TestBuildSystemMessageJoinsCustomRules(t *testing.T) {
	agent := &domain.Agent{SystemPrompt: "{{.CustomRules}}"}
	msg, ok := buildSystemMessage(agent, Environment{}, nil, nil, []string{"rule one", "rule two"}, nil, false)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if msg.Content != "rule one\n\nrule two" {
		t.Fatalf("got %q", msg.Content)
	}
}

func TestSetSystemMessageReplacesExistingAndLeadsTheContext(t *testing.T) {
	ctx := &domain.Context{Messages: []domain.ContextMessage{
		domain.TextMessage{Role: domain.RoleSystem, Content: "old"},
		domain.TextMessage{Role: domain.RoleUser, Content: "hi"},
	}}
	setSystemMessage(ctx, domain.TextMessage{Role: domain.RoleSystem, Content: "new"})

	if len(ctx.Messages) != 2 {
		t.Fatalf("expected exactly 2 messages, got %d", len(ctx.Messages))
	}
	first, ok := ctx.Messages[0].(domain.TextMessage)
	if !ok || first.Content != "new" {
		t.Fatalf("expected the new system message to lead, got %#v", ctx.Messages[0])
	}
	second, ok := ctx.Messages[1].(domain.TextMessage)
	if !ok || second.Content != "hi" {
		t.Fatalf("expected the user message preserved, got %#v", ctx.Messages[1])
	}
}

func TestBuildUserMessageRawEventWithoutTemplate(t *testing.T) {
	agent := &domain.Agent{}
	ctx := &domain.Context{}
	out := buildUserMessage(agent, ctx, domain.Event{Value: "do the thing"}, time.Now())

	if len(out.Messages) != 1 {
		t.Fatalf("expected one message appended, got %d", len(out.Messages))
	}
	tm := out.Messages[0].(domain.TextMessage)
	if tm.Content != "do the thing" || tm.Role != domain.RoleUser {
		t.Fatalf("got %#v", tm)
	}
}

func TestBuildUserMessageDistinguishesFeedbackFromTaskInit(t *testing.T) {
	agent := &domain.Agent{UserPrompt: "feedback={{.IsFeedback}} task={{.IsTask}}"}

	fresh := &domain.Context{}
	out := buildUserMessage(agent, fresh, domain.Event{Value: "start"}, time.Now())
	tm := out.Messages[0].(domain.TextMessage)
	if tm.Content != "feedback=false task=true" {
		t.Fatalf("expected first message to be task-init, got %q", tm.Content)
	}

	withHistory := &domain.Context{Messages: []domain.ContextMessage{
		domain.TextMessage{Role: domain.RoleUser, Content: "start"},
	}}
	out = buildUserMessage(agent, withHistory, domain.Event{Value: "more"}, time.Now())
	tm = out.Messages[len(out.Messages)-1].(domain.TextMessage)
	if tm.Content != "feedback=true task=false" {
		t.Fatalf("expected a later message to be feedback, got %q", tm.Content)
	}
}

func TestBuildUserMessageTaskUpdateSuffixForcesTaskInit(t *testing.T) {
	agent := &domain.Agent{UserPrompt: "feedback={{.IsFeedback}}"}
	withHistory := &domain.Context{Messages: []domain.ContextMessage{
		domain.TextMessage{Role: domain.RoleUser, Content: "start"},
	}}

	out := buildUserMessage(agent, withHistory, domain.Event{Suffix: "/user_task_update", Value: "restart"}, time.Now())
	tm := out.Messages[len(out.Messages)-1].(domain.TextMessage)
	if tm.Content != "feedback=false" {
		t.Fatalf("expected /user_task_update to force IsFeedback=false, got %q", tm.Content)
	}
}
