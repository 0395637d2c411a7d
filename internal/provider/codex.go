package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// codexRequest is the OpenAI Responses API request shape, enriched with the
// Codex-specific forced fields.
type codexRequest struct {
	Model     string                `json:"model"`
	Input     []responsesInputItem  `json:"input"`
	Tools     []responsesToolParam  `json:"tools,omitempty"`
	Store     bool                  `json:"store"`
	Stream    bool                  `json:"stream"`
	Include   []string              `json:"include,omitempty"`
	Text      *codexTextConfig      `json:"text,omitempty"`
	Reasoning *codexReasoningConfig `json:"reasoning,omitempty"`
}

type codexTextConfig struct {
	Verbosity string `json:"verbosity"`
}

type codexReasoningConfig struct {
	Effort  string `json:"effort"`
	Summary string `json:"summary"`
}

// CodexProvider talks to the OpenAI Responses API with the fixed set of
// Codex overrides: store=false, no temperature/max_output_tokens, the
// encrypted-reasoning include entry appended (deduplicated, order
// preserving), text.verbosity=Low, reasoning.effort=High,
// reasoning.summary=Auto.
type CodexProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewCodexProvider builds a Codex provider against baseURL (for example
// "https://api.openai.com/v1"); an empty baseURL is not replaced by a default.
func NewCodexProvider(baseURL, apiKey, model string) *CodexProvider {
	return &CodexProvider{httpClient: &http.Client{}, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, model: model}
}

func (p *CodexProvider) Name() string { return "codex" }
func (p *CodexProvider) Close() error { return nil }

func (p *CodexProvider) ListModels(_ context.Context) ([]Model, error) { return nil, nil }

func applyCodexOverrides(include []string) []string {
	const encrypted = "reasoning.encrypted_content"
	for _, v := range include {
		if v == encrypted {
			return include
		}
	}
	return append(append([]string{}, include...), encrypted)
}

func (p *CodexProvider) ChatStream(ctx context.Context, messages []Message, tools []Tool) (<-chan StreamEvent, error) {
	body, err := json.Marshal(codexRequest{
		Model:   p.model,
		Input:   toResponsesInput(messages),
		Tools:   toResponsesTools(tools),
		Store:   false,
		Stream:  true,
		Include: applyCodexOverrides(nil),
		Text:    &codexTextConfig{Verbosity: "low"},
		Reasoning: &codexReasoningConfig{
			Effort:  "high",
			Summary: "auto",
		},
	})
	if err != nil {
		return nil, err
	}

	reader, err := httpDoSSE(ctx, httpRequestConfig{
		client:   p.httpClient,
		url:      p.baseURL + "/responses",
		body:     body,
		headers:  map[string]string{"Authorization": "Bearer " + p.apiKey},
		provider: p.Name(),
		model:    p.model,
	})
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamEvent)
	go func() {
		defer close(ch)
		defer reader.Close()
		parseResponsesSSEStream(ctx, reader, ch)
	}()
	return ch, nil
}

// CodexFactory constructs CodexProvider instances sharing a base URL/key.
type CodexFactory struct {
	BaseURL string
	APIKey  string
}

func (f *CodexFactory) Name() string { return "codex" }

func (f *CodexFactory) Create(model string, opts Options) Provider {
	return NewCodexProvider(f.BaseURL, f.APIKey, model)
}
