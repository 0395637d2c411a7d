package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// cerebrasChatRequest mirrors the OpenAI-compatible chat completion request,
// minus parallel_tool_calls, which Cerebras rejects outright.
type cerebrasChatRequest struct {
	Model       string                         `json:"model"`
	Messages    []openai.ChatCompletionMessage `json:"messages"`
	Tools       []openai.Tool                  `json:"tools,omitempty"`
	ToolChoice  string                         `json:"tool_choice,omitempty"`
	Temperature float32                        `json:"temperature,omitempty"`
	Stream      bool                           `json:"stream"`
}

// CerebrasProvider is an OpenAI-compatible provider for the Cerebras Cloud
// inference API, with the pipeline's parallel_tool_calls-removal transform
// applied before every request.
type CerebrasProvider struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
}

// NewCerebrasProvider builds a Cerebras provider against baseURL (for example
// "https://api.cerebras.ai/v1"); an empty baseURL is not replaced by a default.
func NewCerebrasProvider(baseURL, apiKey, model string, temperature float64) *CerebrasProvider {
	return &CerebrasProvider{
		httpClient:  &http.Client{},
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
	}
}

func (p *CerebrasProvider) Name() string { return "cerebras" }
func (p *CerebrasProvider) Close() error { return nil }

func (p *CerebrasProvider) ListModels(_ context.Context) ([]Model, error) { return nil, nil }

func (p *CerebrasProvider) ChatStream(ctx context.Context, messages []Message, tools []Tool) (<-chan StreamEvent, error) {
	req := &Request{Provider: "cerebras", Model: p.model, Messages: messages, Tools: tools}
	req = Pipe(SortTools, NormalizeOpenAIToolSchema, DropParallelToolCalls)(req)

	openaiTools := toOpenAITools(req.Tools)
	body, err := json.Marshal(cerebrasChatRequest{
		Model:       p.model,
		Messages:    mergeSystemMessagesOpenAI(toOpenAIMessages(req.Messages)),
		Tools:       openaiTools,
		Temperature: float32(p.temperature),
		Stream:      true,
	})
	if err != nil {
		return nil, err
	}

	reader, err := httpDoSSE(ctx, httpRequestConfig{
		client:   p.httpClient,
		url:      p.baseURL + "/chat/completions",
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
		parseSSEStream(ctx, reader, ch)
	}()
	return ch, nil
}

// CerebrasFactory constructs CerebrasProvider instances sharing a base URL/key.
type CerebrasFactory struct {
	BaseURL string
	APIKey  string
}

func (f *CerebrasFactory) Name() string { return "cerebras" }

func (f *CerebrasFactory) Create(model string, opts Options) Provider {
	return NewCerebrasProvider(f.BaseURL, f.APIKey, model, opts.Temperature)
}
