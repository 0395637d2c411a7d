package provider

import (
	"encoding/json"
	"strings"
)

// DropParallelToolCalls removes the parallel_tool_calls hint for Cerebras,
// which rejects the field outright.
func DropParallelToolCalls(r *Request) *Request {
	r.ParallelToolCalls = nil
	delete(r.extra(), "parallel_tool_calls")
	return r
}

// openRouterFamily is the set of provider ids that accept OpenRouter-style
// request parameters (reasoning, provider routing hints, etc).
var openRouterFamily = map[string]bool{
	"openrouter": true,
	"forge":      true,
	"zai":        true,
	"zai-coding": true,
}

// IsOpenRouterFamily reports whether provider accepts OpenRouter-style params.
func IsOpenRouterFamily(providerID string) bool {
	return openRouterFamily[strings.ToLower(providerID)]
}

// DropOpenRouterParams removes OpenRouter-specific fields for providers
// outside the OpenRouter family, so non-OpenRouter targets never receive
// parameters they'd reject.
func DropOpenRouterParams(r *Request) *Request {
	delete(r.extra(), "openrouter_provider")
	delete(r.extra(), "openrouter_transforms")
	return r
}

// ApplyZaiThinking translates reasoning.enabled into z.ai's thinking field
// and must run before the OpenAI-compat reasoning-effort step, since it
// consumes and clears Request.Reasoning.
func ApplyZaiThinking(r *Request) *Request {
	if r.Reasoning == nil || r.Reasoning.Enabled == nil {
		return r
	}
	mode := "disabled"
	if *r.Reasoning.Enabled {
		mode = "enabled"
	}
	r.extra()["thinking_type"] = mode
	r.Reasoning = nil
	return r
}

// ApplyReasoningEffort maps the neutral reasoning tunables to an
// OpenAI-compatible "effort" string for non-z.ai OpenAI-compatible targets.
func ApplyReasoningEffort(r *Request) *Request {
	if r.Reasoning == nil {
		return r
	}
	if r.Reasoning.Enabled != nil && !*r.Reasoning.Enabled {
		r.extra()["reasoning_effort"] = "none"
		return r
	}
	if r.Reasoning.Effort != "" {
		r.extra()["reasoning_effort"] = r.Reasoning.Effort
		return r
	}
	switch {
	case r.Reasoning.BudgetTokens > 0 && r.Reasoning.BudgetTokens <= 1024:
		r.extra()["reasoning_effort"] = "low"
	case r.Reasoning.BudgetTokens > 0 && r.Reasoning.BudgetTokens <= 8192:
		r.extra()["reasoning_effort"] = "medium"
	case r.Reasoning.BudgetTokens > 8192:
		r.extra()["reasoning_effort"] = "high"
	case r.Reasoning.Enabled != nil && *r.Reasoning.Enabled:
		r.extra()["reasoning_effort"] = "medium"
	}
	return r
}

// StripGoogleThoughtSignatures clears thought signatures from messages and
// tool calls for every Google model except the gemini-3 family, which still
// requires them to be round-tripped.
func StripGoogleThoughtSignatures(r *Request) *Request {
	if strings.Contains(strings.ToLower(r.Model), "gemini-3") {
		return r
	}
	for i := range r.Messages {
		r.Messages[i].Reasoning = ""
		for j := range r.Messages[i].ToolCalls {
			r.Messages[i].ToolCalls[j].ThoughtSignature = ""
		}
	}
	return r
}

// ForceGeminiToolChoiceAuto forces tool_choice=auto for Gemini requests
// routed through OpenRouter, but only when tools are present — setting it
// with an empty tool list triggers OpenRouter's "function_declarations" error.
func ForceGeminiToolChoiceAuto(r *Request) *Request {
	if len(r.Tools) == 0 {
		return r
	}
	r.ToolChoice = "auto"
	return r
}

// DropMistralToolCalls removes assistant tool_calls before submission to
// Mistral models routed through OpenRouter, which reject them outright.
func DropMistralToolCalls(r *Request) *Request {
	for i := range r.Messages {
		if r.Messages[i].Role == "assistant" {
			r.Messages[i].ToolCalls = nil
		}
	}
	return r
}

// toolSchemaField is the minimal JSON Schema object shape the OpenAI and
// Anthropic schema transformers operate over.
type toolSchemaField = map[string]any

// NormalizeOpenAIToolSchema strips "description" and "title" from each
// tool's top-level parameters object, matching OpenAI's stricter schema
// acceptance. Idempotent: stripping an already-stripped schema is a no-op.
func NormalizeOpenAIToolSchema(r *Request) *Request {
	for i := range r.Tools {
		r.Tools[i].Parameters = stripDescriptionTitle(r.Tools[i].Parameters)
	}
	return r
}

func stripDescriptionTitle(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}
	var m toolSchemaField
	if err := json.Unmarshal(raw, &m); err != nil {
		return raw
	}
	delete(m, "description")
	delete(m, "title")
	out, err := json.Marshal(m)
	if err != nil {
		return raw
	}
	return out
}

// EnforceStrictSchema recursively sets additionalProperties: false on every
// object node of the schema tree, required by Anthropic's strict mode.
// Idempotent: re-running on an already-enforced tree changes nothing.
func EnforceStrictSchema(raw json.RawMessage) json.RawMessage {
	var node any
	if err := json.Unmarshal(raw, &node); err != nil {
		return raw
	}
	enforceStrictNode(node)
	out, err := json.Marshal(node)
	if err != nil {
		return raw
	}
	return out
}

func enforceStrictNode(node any) {
	m, ok := node.(map[string]any)
	if !ok {
		if arr, ok := node.([]any); ok {
			for _, v := range arr {
				enforceStrictNode(v)
			}
		}
		return
	}
	if t, _ := m["type"].(string); t == "object" {
		m["additionalProperties"] = false
	}
	for _, v := range m {
		enforceStrictNode(v)
	}
}
