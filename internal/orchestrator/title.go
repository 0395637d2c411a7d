package orchestrator

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xonecas/forge/internal/domain"
)

// titlePromptTemplate is the fixed system prompt used to ask the model for a
// short conversation title, grounded on title_generator.rs's
// "forge-system-prompt-title-generation.md" partial (not in the retrieved
// pack, so rebuilt here in the teacher's plain-text-prompt convention rather
// than guessed at verbatim).
const titlePromptTemplate = `Read the user's request below and respond with a short, descriptive title for this conversation, wrapped exactly as <title>your title here</title>. Do not say anything else.`

var titleTagRe = regexp.MustCompile(`(?s)<title>(.*?)</title>`)

// TitleGenerator generates a conversation title from its first user message,
// grounded on
// original_source/crates/forge_app/src/title_generator.rs. Intended to be
// run fire-and-forget by the orchestrator after the first successful
// assistant message, never blocking the turn.
type TitleGenerator struct {
	Provider domain.ProviderClient
}

// NewTitleGenerator builds a TitleGenerator over provider.
func NewTitleGenerator(provider domain.ProviderClient) *TitleGenerator {
	return &TitleGenerator{Provider: provider}
}

// Generate returns a title extracted from a model completion over the
// context's first user message, or "" if none could be produced.
func (g *TitleGenerator) Generate(ctx context.Context, c *domain.Context, model domain.ModelID, provider domain.ProviderID) string {
	var firstUser string
	for _, m := range c.Messages {
		if tm, ok := m.(domain.TextMessage); ok && tm.Role == domain.RoleUser {
			firstUser = tm.Content
			break
		}
	}
	if firstUser == "" {
		return ""
	}

	req := &domain.Context{Messages: []domain.ContextMessage{
		domain.TextMessage{Role: domain.RoleSystem, Content: titlePromptTemplate},
		domain.TextMessage{Role: domain.RoleUser, Content: firstUser},
	}}

	events, err := g.Provider.Chat(ctx, model, req, provider)
	if err != nil {
		log.Warn().Err(err).Msg("title generation request failed")
		return ""
	}

	var sb strings.Builder
	for ev := range events {
		if ev.Kind == domain.StreamContentDelta {
			sb.WriteString(ev.Content)
		}
		if ev.Kind == domain.StreamError {
			log.Warn().Err(ev.Err).Msg("title generation stream failed")
			return ""
		}
	}

	match := titleTagRe.FindStringSubmatch(sb.String())
	if len(match) != 2 {
		return ""
	}
	return strings.TrimSpace(match[1])
}

// GenerateAsync runs Generate on a separate goroutine and calls onTitle with
// the result if non-empty, matching the "fire-and-forget, never block the
// turn" rule in spec.md §4.4.
func (g *TitleGenerator) GenerateAsync(ctx context.Context, c *domain.Context, model domain.ModelID, provider domain.ProviderID, onTitle func(string)) {
	go func() {
		title := g.Generate(ctx, c, model, provider)
		if title != "" && onTitle != nil {
			onTitle(title)
		}
	}()
}
