package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/xonecas/forge/internal/domain"
)

type fakeTitleProvider struct {
	events []domain.StreamEvent
	err    error
}

func (f *fakeTitleProvider) Chat(ctx context.Context, model domain.ModelID, c *domain.Context, provider domain.ProviderID) (<-chan domain.StreamEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan domain.StreamEvent, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (f *fakeTitleProvider) Models(ctx context.Context, provider domain.ProviderID) ([]domain.ModelID, error) {
	return nil, nil
}

func TestTitleGeneratorExtractsTag(t *testing.T) {
	provider := &fakeTitleProvider{events: []domain.StreamEvent{
		{Kind: domain.StreamContentDelta, Content: "<title>"},
		{Kind: domain.StreamContentDelta, Content: "Fix the build"},
		{Kind: domain.StreamContentDelta, Content: "</title>"},
		{Kind: domain.StreamDone},
	}}
	g := NewTitleGenerator(provider)
	c := &domain.Context{Messages: []domain.ContextMessage{
		domain.TextMessage{Role: domain.RoleUser, Content: "please fix the failing build"},
	}}

	got := g.Generate(context.Background(), c, "model", "provider")
	if got != "Fix the build" {
		t.Fatalf("Generate() = %q, want %q", got, "Fix the build")
	}
}

func TestTitleGeneratorEmptyWithoutUserMessage(t *testing.T) {
	g := NewTitleGenerator(&fakeTitleProvider{})
	c := &domain.Context{Messages: []domain.ContextMessage{
		domain.TextMessage{Role: domain.RoleSystem, Content: "you are an assistant"},
	}}

	if got := g.Generate(context.Background(), c, "model", "provider"); got != "" {
		t.Fatalf("Generate() = %q, want empty string", got)
	}
}

func TestTitleGeneratorEmptyOnProviderError(t *testing.T) {
	g := NewTitleGenerator(&fakeTitleProvider{err: errors.New("boom")})
	c := &domain.Context{Messages: []domain.ContextMessage{
		domain.TextMessage{Role: domain.RoleUser, Content: "hello"},
	}}

	if got := g.Generate(context.Background(), c, "model", "provider"); got != "" {
		t.Fatalf("Generate() = %q, want empty string on provider error", got)
	}
}

func TestTitleGeneratorEmptyOnMalformedResponse(t *testing.T) {
	provider := &fakeTitleProvider{events: []domain.StreamEvent{
		{Kind: domain.StreamContentDelta, Content: "no tags here"},
		{Kind: domain.StreamDone},
	}}
	g := NewTitleGenerator(provider)
	c := &domain.Context{Messages: []domain.ContextMessage{
		domain.TextMessage{Role: domain.RoleUser, Content: "hello"},
	}}

	if got := g.Generate(context.Background(), c, "model", "provider"); got != "" {
		t.Fatalf("Generate() = %q, want empty string for malformed response", got)
	}
}

func TestTitleGeneratorAsyncInvokesCallback(t *testing.T) {
	provider := &fakeTitleProvider{events: []domain.StreamEvent{
		{Kind: domain.StreamContentDelta, Content: "<title>Async title</title>"},
		{Kind: domain.StreamDone},
	}}
	g := NewTitleGenerator(provider)
	c := &domain.Context{Messages: []domain.ContextMessage{
		domain.TextMessage{Role: domain.RoleUser, Content: "hello"},
	}}

	done := make(chan string, 1)
	g.GenerateAsync(context.Background(), c, "model", "provider", func(title string) {
		done <- title
	})

	title := <-done
	if title != "Async title" {
		t.Fatalf("got title %q, want %q", title, "Async title")
	}
}
