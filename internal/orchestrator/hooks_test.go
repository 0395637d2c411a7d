package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xonecas/forge/internal/compact"
	"github.com/xonecas/forge/internal/domain"
)

func TestDispatcherSkipsUnsubscribedAgents(t *testing.T) {
	fired := false
	d := NewDispatcher(HookFunc(func(ctx context.Context, kind domain.EventKind, agent *domain.Agent, conv *domain.Conversation) error {
		fired = true
		return nil
	}))

	agent := &domain.Agent{ID: "a1", Subscribe: map[domain.EventKind]struct{}{domain.EventResponse: {}}}
	conv := &domain.Conversation{}

	if err := d.Fire(context.Background(), domain.EventStart, agent, conv); err != nil {
		t.Fatalf("Fire returned error: %v", err)
	}
	if fired {
		t.Fatal("expected hook not to fire for an unsubscribed event kind")
	}
}

func TestDispatcherFiresSubscribedAgents(t *testing.T) {
	var seen domain.EventKind = -1
	d := NewDispatcher(HookFunc(func(ctx context.Context, kind domain.EventKind, agent *domain.Agent, conv *domain.Conversation) error {
		seen = kind
		return nil
	}))

	agent := &domain.Agent{ID: "a1", Subscribe: map[domain.EventKind]struct{}{domain.EventStart: {}}}
	if err := d.Fire(context.Background(), domain.EventStart, agent, &domain.Conversation{}); err != nil {
		t.Fatalf("Fire returned error: %v", err)
	}
	if seen != domain.EventStart {
		t.Fatalf("expected hook to observe EventStart, got %v", seen)
	}
}

func TestDispatcherFiresUnrestrictedAgents(t *testing.T) {
	fired := false
	d := NewDispatcher(HookFunc(func(ctx context.Context, kind domain.EventKind, agent *domain.Agent, conv *domain.Conversation) error {
		fired = true
		return nil
	}))

	agent := &domain.Agent{ID: "a1"} // nil Subscribe means "every kind"
	if err := d.Fire(context.Background(), domain.EventResponse, agent, &domain.Conversation{}); err != nil {
		t.Fatalf("Fire returned error: %v", err)
	}
	if !fired {
		t.Fatal("expected hook to fire for an agent with no Subscribe restriction")
	}
}

func TestDispatcherStopsAtFirstError(t *testing.T) {
	wantErr := errors.New("boom")
	calls := 0
	d := NewDispatcher(
		HookFunc(func(ctx context.Context, kind domain.EventKind, agent *domain.Agent, conv *domain.Conversation) error {
			calls++
			return wantErr
		}),
		HookFunc(func(ctx context.Context, kind domain.EventKind, agent *domain.Agent, conv *domain.Conversation) error {
			calls++
			return nil
		}),
	)

	agent := &domain.Agent{ID: "a1"}
	err := d.Fire(context.Background(), domain.EventStart, agent, &domain.Conversation{})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wantErr, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected dispatch to stop after the first failing hook, got %d calls", calls)
	}
}

func TestTracingHookNeverErrors(t *testing.T) {
	h := NewTracingHook()
	agent := &domain.Agent{ID: "a1", Model: "m1"}
	conv := &domain.Conversation{ID: "c1", Context: &domain.Context{}}

	for _, kind := range []domain.EventKind{domain.EventStart, domain.EventResponse} {
		if err := h.Handle(context.Background(), kind, agent, conv); err != nil {
			t.Fatalf("TracingHook.Handle(%v) returned error: %v", kind, err)
		}
	}
}

func TestCompactionHookSkipsBelowThreshold(t *testing.T) {
	provider := &fakeTitleProvider{}
	hook := NewCompactionHook(compact.New(provider, "/repo"), "provider")

	agent := &domain.Agent{ID: "a1", Compact: domain.CompactionConfig{TokenThreshold: 1_000_000, RetentionWindow: 2}}
	conv := &domain.Conversation{Context: &domain.Context{Messages: []domain.ContextMessage{
		domain.TextMessage{Role: domain.RoleUser, Content: "hi"},
	}}}

	if err := hook.Handle(context.Background(), domain.EventResponse, agent, conv); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if len(conv.Context.Messages) != 1 {
		t.Fatalf("expected context untouched below threshold, got %d messages", len(conv.Context.Messages))
	}
}

func TestCompactionHookCompactsOverThreshold(t *testing.T) {
	provider := &fakeTitleProvider{events: []domain.StreamEvent{
		{Kind: domain.StreamContentDelta, Content: "summary"},
		{Kind: domain.StreamDone},
	}}
	hook := NewCompactionHook(compact.New(provider, "/repo"), "provider")

	agent := &domain.Agent{ID: "a1", Compact: domain.CompactionConfig{TokenThreshold: 1, RetentionWindow: 1}}
	conv := &domain.Conversation{Context: &domain.Context{Messages: []domain.ContextMessage{
		domain.TextMessage{Role: domain.RoleUser, Content: "a long user message that pushes us over the tiny token threshold"},
		domain.TextMessage{Role: domain.RoleAssistant, Content: "ok"},
		domain.TextMessage{Role: domain.RoleUser, Content: "final message"},
	}}}

	if err := hook.Handle(context.Background(), domain.EventResponse, agent, conv); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	found := false
	for _, m := range conv.Context.Messages {
		if tm, ok := m.(domain.TextMessage); ok && strings.Contains(tm.Content, "summary") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected compacted context to contain the summarized message, got %#v", conv.Context.Messages)
	}
}

func TestCompactionHookIgnoresNonResponseEvents(t *testing.T) {
	provider := &fakeTitleProvider{}
	hook := NewCompactionHook(compact.New(provider, "/repo"), "provider")

	agent := &domain.Agent{ID: "a1", Compact: domain.CompactionConfig{TokenThreshold: 1, RetentionWindow: 1}}
	conv := &domain.Conversation{Context: &domain.Context{Messages: []domain.ContextMessage{
		domain.TextMessage{Role: domain.RoleUser, Content: "a long message well over the tiny threshold"},
	}}}

	if err := hook.Handle(context.Background(), domain.EventStart, agent, conv); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if len(conv.Context.Messages) != 1 {
		t.Fatal("expected EventStart to never trigger compaction")
	}
}
