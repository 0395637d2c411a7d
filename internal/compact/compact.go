package compact

import (
	"context"
	"fmt"
	"strings"

	"github.com/xonecas/forge/internal/domain"
)

// Compactor replaces the middle of an over-budget context with a single
// model-generated summary message, grounded on the CompactionHandler pattern
// in original_source/crates/forge_app/src/hooks/compaction.rs: same
// observe-then-replace shape, driven here directly by the orchestrator's
// per-request hook instead of an event-bus handler.
type Compactor struct {
	Provider   domain.ProviderClient
	WorkingDir string
}

// New builds a Compactor that asks provider for the middle summary.
func New(provider domain.ProviderClient, workingDir string) *Compactor {
	return &Compactor{Provider: provider, WorkingDir: workingDir}
}

// Compact runs the full algorithm: slice off head/tail, render and transform
// the middle, summarize it with a single model call, and reassemble
// head ++ [summary] ++ tail. The tail start is snapped so no tool-call/
// tool-result pair is split across the middle/tail boundary.
func (c *Compactor) Compact(ctx context.Context, cfg domain.CompactionConfig, model domain.ModelID, provider domain.ProviderID, input *domain.Context) (*domain.Context, error) {
	messages := input.Messages
	n := len(messages)

	headEnd := 0
	for headEnd < n {
		tm, ok := messages[headEnd].(domain.TextMessage)
		if !ok || tm.Role != domain.RoleSystem {
			break
		}
		headEnd++
	}

	tailStart := n - cfg.RetentionWindow
	if tailStart < headEnd {
		tailStart = headEnd
	}
	tailStart = input.LastMessageIndexNotSplittingPair(tailStart)

	head := messages[:headEnd]
	middle := messages[headEnd:tailStart]
	tail := messages[tailStart:]

	if len(middle) == 0 {
		return input, nil
	}

	summary := renderMiddle(middle)
	summary = DropRole{Role: domain.RoleSystem}.Transform(summary)
	summary = DedupeRole{Role: domain.RoleUser}.Transform(summary)
	summary = DedupeRole{Role: domain.RoleAssistant}.Transform(summary)
	summary = TrimContextSummary{}.Transform(summary)
	summary = StripWorkingDir{WorkingDir: c.WorkingDir}.Transform(summary)

	rendered := Render(summary)
	text, err := c.summarize(ctx, cfg, model, provider, rendered)
	if err != nil {
		return nil, fmt.Errorf("compact: summarize middle: %w", err)
	}

	out := make([]domain.ContextMessage, 0, headEnd+1+len(tail))
	out = append(out, head...)
	out = append(out, domain.TextMessage{Role: domain.RoleAssistant, Content: text})
	out = append(out, tail...)

	return &domain.Context{
		Messages:    out,
		Tools:       input.Tools,
		ToolChoice:  input.ToolChoice,
		Temperature: input.Temperature,
		TopP:        input.TopP,
		TopK:        input.TopK,
		MaxTokens:   input.MaxTokens,
		Reasoning:   input.Reasoning,
		Usage:       input.Usage,
		Stream:      input.Stream,
	}, nil
}

func (c *Compactor) summarize(ctx context.Context, cfg domain.CompactionConfig, model domain.ModelID, provider domain.ProviderID, rendered string) (string, error) {
	prompt := cfg.SummaryPrompt
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultSummaryPrompt
	}

	req := &domain.Context{
		Messages: []domain.ContextMessage{
			domain.TextMessage{Role: domain.RoleSystem, Content: prompt},
			domain.TextMessage{Role: domain.RoleUser, Content: rendered},
		},
	}

	events, err := c.Provider.Chat(ctx, model, req, provider)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for ev := range events {
		switch ev.Kind {
		case domain.StreamContentDelta:
			sb.WriteString(ev.Content)
		case domain.StreamError:
			return "", ev.Err
		case domain.StreamDone:
			return sb.String(), nil
		}
	}
	return sb.String(), nil
}
