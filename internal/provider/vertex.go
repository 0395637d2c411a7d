package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// VertexProvider talks to the Gemini-compatible streamGenerateContent REST
// endpoint (Vertex AI or AI Studio, selected by baseURL), applying the
// Google thought-signature stripping and Gemini-via-OpenRouter tool_choice
// transforms from the pipeline before building the wire request.
type VertexProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// NewVertexProvider builds a provider against baseURL (e.g.
// "https://generativelanguage.googleapis.com/v1beta" for AI Studio, or a
// Vertex regional endpoint) using apiKey for authentication.
func NewVertexProvider(baseURL, apiKey, model string) *VertexProvider {
	return &VertexProvider{client: &http.Client{Timeout: 5 * time.Minute}, baseURL: baseURL, apiKey: apiKey, model: model}
}

func (p *VertexProvider) Name() string { return "vertex" }
func (p *VertexProvider) Close() error { return nil }

func (p *VertexProvider) ListModels(ctx context.Context) ([]Model, error) { return nil, nil }

type geminiPart struct {
	Text             string          `json:"text,omitempty"`
	FunctionCall     *geminiFuncCall `json:"functionCall,omitempty"`
	FunctionResponse *geminiFuncResp `json:"functionResponse,omitempty"`
}

type geminiFuncCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type geminiFuncResp struct {
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiFuncDecl struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	SystemInstruction *geminiContent `json:"systemInstruction,omitempty"`
	Tools            []struct {
		FunctionDeclarations []geminiFuncDecl `json:"functionDeclarations"`
	} `json:"tools,omitempty"`
	ToolConfig *struct {
		FunctionCallingConfig struct {
			Mode string `json:"mode"`
		} `json:"functionCallingConfig"`
	} `json:"toolConfig,omitempty"`
}

func toGeminiRequest(req *Request) geminiRequest {
	var g geminiRequest
	for _, m := range req.Messages {
		switch m.Role {
		case roleSystem:
			g.SystemInstruction = &geminiContent{Role: "system", Parts: []geminiPart{{Text: m.Content}}}
		case "tool":
			g.Contents = append(g.Contents, geminiContent{Role: "function", Parts: []geminiPart{{
				FunctionResponse: &geminiFuncResp{Name: m.FunctionName, Response: json.RawMessage(fmt.Sprintf(`{"result":%q}`, m.Content))},
			}}})
		default:
			role := "user"
			if m.Role == "assistant" {
				role = "model"
			}
			var parts []geminiPart
			if m.Content != "" {
				parts = append(parts, geminiPart{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				parts = append(parts, geminiPart{FunctionCall: &geminiFuncCall{Name: tc.Name, Args: tc.Arguments}})
			}
			g.Contents = append(g.Contents, geminiContent{Role: role, Parts: parts})
		}
	}
	if len(req.Tools) > 0 {
		decls := make([]geminiFuncDecl, len(req.Tools))
		for i, t := range req.Tools {
			decls[i] = geminiFuncDecl{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
		}
		g.Tools = append(g.Tools, struct {
			FunctionDeclarations []geminiFuncDecl `json:"functionDeclarations"`
		}{FunctionDeclarations: decls})
		if req.ToolChoice == "auto" {
			g.ToolConfig = &struct {
				FunctionCallingConfig struct {
					Mode string `json:"mode"`
				} `json:"functionCallingConfig"`
			}{}
			g.ToolConfig.FunctionCallingConfig.Mode = "AUTO"
		}
	}
	return g
}

func (p *VertexProvider) ChatStream(ctx context.Context, messages []Message, tools []Tool) (<-chan StreamEvent, error) {
	req := &Request{Provider: "vertex", Model: p.model, Messages: messages, Tools: tools, ToolChoice: "auto"}
	req = Pipe(SortTools, StripGoogleThoughtSignatures, ForceGeminiToolChoiceAuto)(req)

	body, err := json.Marshal(toGeminiRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", p.baseURL, p.model, p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini stream request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("gemini stream status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	ch := make(chan StreamEvent, 16)
	go parseGeminiSSEStream(ctx, resp.Body, ch)
	return ch, nil
}

type geminiStreamChunk struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func parseGeminiSSEStream(ctx context.Context, body io.ReadCloser, ch chan<- StreamEvent) {
	defer body.Close()
	defer close(ch)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	toolIdx := 0

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "" {
			continue
		}
		var chunk geminiStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			log.Warn().Err(err).Msg("failed to parse gemini SSE chunk")
			continue
		}
		if chunk.UsageMetadata != nil {
			if !trySend(ctx, ch, StreamEvent{
				Type: EventUsage, InputTokens: chunk.UsageMetadata.PromptTokenCount,
				OutputTokens: chunk.UsageMetadata.CandidatesTokenCount,
			}) {
				return
			}
		}
		for _, cand := range chunk.Candidates {
			for _, part := range cand.Content.Parts {
				if part.Text != "" {
					if !trySend(ctx, ch, StreamEvent{Type: EventContentDelta, Content: part.Text}) {
						return
					}
				}
				if part.FunctionCall != nil {
					if !trySend(ctx, ch, StreamEvent{
						Type: EventToolCallBegin, ToolCallIndex: toolIdx,
						ToolCallID: fmt.Sprintf("call_%d", toolIdx), ToolCallName: part.FunctionCall.Name,
					}) {
						return
					}
					if !trySend(ctx, ch, StreamEvent{
						Type: EventToolCallDelta, ToolCallIndex: toolIdx,
						ToolCallArgs: string(part.FunctionCall.Args),
					}) {
						return
					}
					toolIdx++
				}
			}
			if cand.FinishReason != "" {
				trySend(ctx, ch, StreamEvent{Type: EventDone})
				return
			}
		}
	}
	if err := scanner.Err(); err != nil {
		trySend(ctx, ch, StreamEvent{Type: EventError, Err: err})
		return
	}
	trySend(ctx, ch, StreamEvent{Type: EventDone})
}

// VertexFactory constructs VertexProvider instances sharing a base URL/key.
type VertexFactory struct {
	BaseURL string
	APIKey  string
}

func (f *VertexFactory) Name() string { return "vertex" }

func (f *VertexFactory) Create(model string, opts Options) Provider {
	return NewVertexProvider(f.BaseURL, f.APIKey, model)
}
