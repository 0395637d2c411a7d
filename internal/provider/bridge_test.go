package provider

import (
	"context"
	"testing"

	"github.com/xonecas/forge/internal/domain"
)

func newTestBridge(name string, events ...StreamEvent) *Bridge {
	reg := NewRegistry()
	reg.RegisterFactory(name, NewMockFactory(name, NewMock(name, events...)))
	return NewBridge(reg, Options{})
}

func TestBridgeRelaysContentDelta(t *testing.T) {
	b := newTestBridge("mock",
		StreamEvent{Type: EventContentDelta, Content: "hello"},
		StreamEvent{Type: EventDone},
	)

	c := &domain.Context{Messages: []domain.ContextMessage{
		domain.TextMessage{Role: domain.RoleUser, Content: "hi"},
	}}

	events, err := b.Chat(context.Background(), "model-a", c, "mock")
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}

	var content string
	var sawDone bool
	for ev := range events {
		switch ev.Kind {
		case domain.StreamContentDelta:
			content += ev.Content
		case domain.StreamDone:
			sawDone = true
		}
	}
	if content != "hello" {
		t.Fatalf("content = %q, want %q", content, "hello")
	}
	if !sawDone {
		t.Fatal("expected a StreamDone event")
	}
}

func TestBridgeRelaysToolCallEvents(t *testing.T) {
	b := newTestBridge("mock",
		StreamEvent{Type: EventToolCallBegin, ToolCallIndex: 0, ToolCallID: "call-1", ToolCallName: "lookup"},
		StreamEvent{Type: EventToolCallDelta, ToolCallIndex: 0, ToolCallArgs: `{"q":"x"}`},
		StreamEvent{Type: EventDone},
	)

	c := &domain.Context{Messages: []domain.ContextMessage{
		domain.TextMessage{Role: domain.RoleUser, Content: "look something up"},
	}}

	events, err := b.Chat(context.Background(), "model-a", c, "mock")
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}

	var gotBegin, gotDelta bool
	for ev := range events {
		switch ev.Kind {
		case domain.StreamToolCallBegin:
			gotBegin = ev.ToolCallID == "call-1" && ev.ToolCallName == "lookup"
		case domain.StreamToolCallDelta:
			gotDelta = ev.ToolCallArgs == `{"q":"x"}`
		}
	}
	if !gotBegin {
		t.Fatal("expected a translated StreamToolCallBegin event")
	}
	if !gotDelta {
		t.Fatal("expected a translated StreamToolCallDelta event")
	}
}

func TestBridgeTranslatesToolMessages(t *testing.T) {
	b := newTestBridge("mock", StreamEvent{Type: EventDone})

	c := &domain.Context{Messages: []domain.ContextMessage{
		domain.TextMessage{Role: domain.RoleUser, Content: "go"},
		domain.ToolMessage{CallID: "call-1", Name: "lookup", Output: domain.TextOutput("found it")},
	}}

	if _, err := b.Chat(context.Background(), "model-a", c, "mock"); err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
}

func TestBridgeReusesProviderInstance(t *testing.T) {
	name := "mock"
	reg := NewRegistry()
	mock := NewMock(name, StreamEvent{Type: EventDone})
	reg.RegisterFactory(name, NewMockFactory(name, mock))
	b := NewBridge(reg, Options{})

	p1, err := b.provider(name, "model-a")
	if err != nil {
		t.Fatalf("provider() returned error: %v", err)
	}
	p2, err := b.provider(name, "model-a")
	if err != nil {
		t.Fatalf("provider() returned error: %v", err)
	}
	if p1 != p2 {
		t.Fatal("expected the same Provider instance to be reused for an identical key")
	}
}

