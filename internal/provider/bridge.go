package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xonecas/forge/internal/domain"
)

// Bridge adapts the concrete per-vendor Provider implementations (Message/
// StreamEvent, this package's own wire shapes) to domain.ProviderClient, the
// neutral port the orchestrator drives. Every vendor file (bedrock.go,
// cerebras.go, codex.go, vertex.go, zai.go, zen.go, ollama.go) keeps
// producing its own Provider exactly as before; Bridge is the single
// seam where domain.Context crosses into that world and back, so none of
// those files need their own copy of the translation.
type Bridge struct {
	registry *Registry
	opts     Options

	mu        sync.Mutex
	providers map[string]Provider
}

// NewBridge wraps registry, reusing one Provider instance per (providerID,
// model) pair for the life of the process rather than reconnecting per
// request.
func NewBridge(registry *Registry, opts Options) *Bridge {
	return &Bridge{registry: registry, opts: opts, providers: make(map[string]Provider)}
}

// Close releases every Provider instance this Bridge has created.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var first error
	for _, p := range b.providers {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (b *Bridge) provider(name, model string) (Provider, error) {
	key := name + "/" + model
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.providers[key]; ok {
		return p, nil
	}
	p, err := b.registry.Create(name, model, b.opts)
	if err != nil {
		return nil, err
	}
	b.providers[key] = p
	return p, nil
}

// Chat implements domain.ProviderClient.
func (b *Bridge) Chat(ctx context.Context, model domain.ModelID, c *domain.Context, providerID domain.ProviderID) (<-chan domain.StreamEvent, error) {
	p, err := b.provider(string(providerID), string(model))
	if err != nil {
		return nil, fmt.Errorf("resolve provider %q: %w", providerID, err)
	}

	messages, err := toMessages(c)
	if err != nil {
		return nil, err
	}
	tools := toTools(c.Tools)

	events, err := p.ChatStream(ctx, messages, tools)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.StreamEvent)
	go relay(events, out)
	return out, nil
}

// Models implements domain.ProviderClient.
func (b *Bridge) Models(ctx context.Context, providerID domain.ProviderID) ([]domain.ModelID, error) {
	p, err := b.provider(string(providerID), "")
	if err != nil {
		return nil, err
	}
	models, err := p.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ModelID, len(models))
	for i, m := range models {
		out[i] = domain.ModelID(m.Name)
	}
	return out, nil
}

func relay(in <-chan StreamEvent, out chan<- domain.StreamEvent) {
	defer close(out)
	for ev := range in {
		out <- domain.StreamEvent{
			Kind:              streamKind(ev.Type),
			Content:           ev.Content,
			ToolCallIndex:     ev.ToolCallIndex,
			ToolCallID:        ev.ToolCallID,
			ToolCallName:      ev.ToolCallName,
			ToolCallArgs:      ev.ToolCallArgs,
			Usage:             domain.Usage{PromptTokens: ev.InputTokens, CompletionTokens: ev.OutputTokens},
			Err:               ev.Err,
		}
	}
}

func streamKind(t StreamEventType) domain.StreamEventKind {
	switch t {
	case EventContentDelta:
		return domain.StreamContentDelta
	case EventReasoningDelta:
		return domain.StreamReasoningDelta
	case EventToolCallBegin:
		return domain.StreamToolCallBegin
	case EventToolCallDelta:
		return domain.StreamToolCallDelta
	case EventUsage:
		return domain.StreamUsage
	case EventError:
		return domain.StreamError
	default:
		return domain.StreamDone
	}
}

func toMessages(c *domain.Context) ([]Message, error) {
	out := make([]Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		switch msg := m.(type) {
		case domain.TextMessage:
			out = append(out, Message{
				Role:      msg.Role.String(),
				Content:   msg.Content,
				ToolCalls: toToolCalls(msg.ToolCalls),
				CreatedAt: msg.CreatedAt,
			})
		case domain.ToolMessage:
			out = append(out, Message{
				Role:         "tool",
				Content:      flattenOutput(msg.Output),
				ToolCallID:   msg.CallID,
				FunctionName: string(msg.Name),
			})
		case domain.ImageMessage:
			out = append(out, Message{Role: msg.Role.String(), Content: msg.Image.Data})
		default:
			return nil, fmt.Errorf("unsupported context message type %T", m)
		}
	}
	return out, nil
}

func toToolCalls(calls []domain.ToolCallFull) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCall, len(calls))
	for i, c := range calls {
		var id string
		if c.CallID != nil {
			id = *c.CallID
		}
		out[i] = ToolCall{ID: id, Name: string(c.Name), Arguments: c.Arguments}
	}
	return out
}

func toTools(defs []domain.ToolDefinition) []Tool {
	if len(defs) == 0 {
		return nil
	}
	out := make([]Tool, len(defs))
	for i, d := range defs {
		out[i] = Tool{Name: string(d.Name), Description: d.Description, Parameters: d.Parameters}
	}
	return out
}

func flattenOutput(out domain.ToolOutput) string {
	if len(out.Values) == 0 {
		return ""
	}
	if len(out.Values) == 1 && out.Values[0].Kind == domain.ToolOutputText {
		return out.Values[0].Text
	}
	parts := make([]string, 0, len(out.Values))
	for _, v := range out.Values {
		switch v.Kind {
		case domain.ToolOutputText:
			parts = append(parts, v.Text)
		case domain.ToolOutputImage:
			parts = append(parts, "[image omitted]")
		}
	}
	encoded, err := json.Marshal(parts)
	if err != nil {
		return ""
	}
	return string(encoded)
}
