package provider

import "context"

// ZaiProvider adapts ZenProvider for the z.ai backend: it runs the
// thinking-mode and OpenRouter-param transforms over a neutral Request before
// handing the (possibly trimmed) messages and tools to the shared zen-sdk
// client, so thinking mode is resolved from Request.Reasoning exactly once,
// ahead of the generic OpenAI-compat reasoning-effort step.
type ZaiProvider struct {
	inner *ZenProvider
}

// NewZaiProvider wraps an existing ZenProvider pointed at a z.ai-compatible
// endpoint.
func NewZaiProvider(inner *ZenProvider) *ZaiProvider {
	return &ZaiProvider{inner: inner}
}

func (p *ZaiProvider) Name() string { return "zai" }
func (p *ZaiProvider) Close() error { return nil }

func (p *ZaiProvider) ListModels(ctx context.Context) ([]Model, error) {
	return nil, nil
}

func (p *ZaiProvider) ChatStream(ctx context.Context, messages []Message, tools []Tool) (<-chan StreamEvent, error) {
	req := &Request{Provider: "zai", Messages: messages, Tools: tools}
	req = Pipe(SortTools, ApplyZaiThinking, When(func(r *Request) bool { return !IsOpenRouterFamily(r.Provider) }, DropOpenRouterParams))(req)
	return p.inner.ChatStream(ctx, req.Messages, req.Tools)
}

// ZaiFactory constructs ZaiProvider instances over a shared ZenProvider
// factory targeting the z.ai endpoint.
type ZaiFactory struct {
	APIKey  string
	BaseURL string
}

func (f *ZaiFactory) Name() string { return "zai" }

func (f *ZaiFactory) Create(model string, opts Options) Provider {
	zen, err := NewZen("zai", f.APIKey, f.BaseURL, model, opts.Temperature)
	if err != nil {
		return nil
	}
	return NewZaiProvider(zen)
}
