package provider

import (
	"sort"
	"strings"
)

// Request is the neutral, pre-serialization request a Transformer chain
// rewrites before a provider-specific wire request is built from it. It sits
// between domain.Context and each provider's own wire types.
type Request struct {
	Provider    string
	Model       string
	Messages    []Message
	Tools       []Tool
	ToolChoice  string // "auto" | "required" | "none" | a specific tool name
	Temperature *float64
	TopP        *float64
	TopK        *int
	MaxTokens   *int

	Reasoning *ReasoningTunables

	// OAuthEnabled marks Anthropic OAuth requests. No transformer in this
	// package reads it; no auth system message is prepended.
	OAuthEnabled bool

	// ParallelToolCalls is nil when the caller expresses no preference.
	ParallelToolCalls *bool

	// PreferredToolOrder names tools that must sort first, in this order;
	// the rest follow alphabetically by name, ignoring case.
	PreferredToolOrder []string

	// Extra carries provider-specific fields transformers stash for the
	// final wire-request builder (e.g. z.ai's thinking_type, Bedrock's
	// cache-point placement flags) without widening this struct per provider.
	Extra map[string]any
}

// ReasoningTunables is the neutral reasoning/thinking request shape before
// per-provider translation (z.ai thinking mode, OpenAI-compat effort mapping).
type ReasoningTunables struct {
	Enabled      *bool
	Effort       string // "" | "low" | "medium" | "high"
	BudgetTokens int
}

func (r *Request) extra() map[string]any {
	if r.Extra == nil {
		r.Extra = make(map[string]any)
	}
	return r.Extra
}

// Transformer rewrites a Request. Transformers never reorder messages except
// where explicitly specified (tool ordering, cache-breakpoint placement).
type Transformer func(*Request) *Request

// Pipe composes transformers left to right.
func Pipe(ts ...Transformer) Transformer {
	return func(r *Request) *Request {
		for _, t := range ts {
			if t == nil {
				continue
			}
			r = t(r)
		}
		return r
	}
}

// When guards a transformer: a no-op when predicate(r) is false.
func When(predicate func(*Request) bool, t Transformer) Transformer {
	return func(r *Request) *Request {
		if !predicate(r) {
			return r
		}
		return t(r)
	}
}

// SortTools orders tools by the configured partial order: entries in
// PreferredToolOrder come first (in that order), the rest follow
// alphabetically by name, ignoring case. Stable tie-break by name.
func SortTools(r *Request) *Request {
	if len(r.Tools) == 0 {
		return r
	}
	rank := make(map[string]int, len(r.PreferredToolOrder))
	for i, name := range r.PreferredToolOrder {
		rank[name] = i
	}
	sort.SliceStable(r.Tools, func(i, j int) bool {
		ri, iok := rank[r.Tools[i].Name]
		rj, jok := rank[r.Tools[j].Name]
		switch {
		case iok && jok:
			return ri < rj
		case iok:
			return true
		case jok:
			return false
		default:
			return strings.ToLower(r.Tools[i].Name) < strings.ToLower(r.Tools[j].Name)
		}
	})
	return r
}
