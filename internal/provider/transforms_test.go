package provider

import "testing"

func TestForceGeminiToolChoiceAutoRequiresTools(t *testing.T) {
	r := &Request{ToolChoice: ""}
	r = ForceGeminiToolChoiceAuto(r)
	if r.ToolChoice != "" {
		t.Error("empty tool list must not get tool_choice forced")
	}
	r.Tools = []Tool{{Name: "read"}}
	r = ForceGeminiToolChoiceAuto(r)
	if r.ToolChoice != "auto" {
		t.Errorf("expected tool_choice=auto, got %q", r.ToolChoice)
	}
}

func TestDropMistralToolCalls(t *testing.T) {
	r := &Request{Messages: []Message{
		{Role: "assistant", ToolCalls: []ToolCall{{ID: "1", Name: "read"}}},
		{Role: "user"},
	}}
	r = DropMistralToolCalls(r)
	if r.Messages[0].ToolCalls != nil {
		t.Error("expected assistant tool_calls dropped")
	}
}

func TestApplyReasoningEffortBudgetMapping(t *testing.T) {
	cases := []struct {
		budget int
		want   string
	}{
		{1024, "low"},
		{8192, "medium"},
		{8193, "high"},
	}
	for _, tc := range cases {
		r := &Request{Reasoning: &ReasoningTunables{BudgetTokens: tc.budget}}
		r = ApplyReasoningEffort(r)
		if got := r.Extra["reasoning_effort"]; got != tc.want {
			t.Errorf("budget=%d: got %v, want %q", tc.budget, got, tc.want)
		}
	}
}

func TestApplyReasoningEffortDisabled(t *testing.T) {
	disabled := false
	r := &Request{Reasoning: &ReasoningTunables{Enabled: &disabled}}
	r = ApplyReasoningEffort(r)
	if r.Extra["reasoning_effort"] != "none" {
		t.Errorf("expected none, got %v", r.Extra["reasoning_effort"])
	}
}

func TestApplyZaiThinkingTranslatesAndClears(t *testing.T) {
	enabled := true
	r := &Request{Reasoning: &ReasoningTunables{Enabled: &enabled}}
	r = ApplyZaiThinking(r)
	if r.Extra["thinking_type"] != "enabled" {
		t.Errorf("expected enabled, got %v", r.Extra["thinking_type"])
	}
	if r.Reasoning != nil {
		t.Error("expected Reasoning cleared after translation")
	}
}

func TestStripGoogleThoughtSignaturesKeepsGemini3(t *testing.T) {
	r := &Request{Model: "gemini-3-pro", Messages: []Message{
		{Reasoning: "keep-me", ToolCalls: []ToolCall{{ThoughtSignature: "sig"}}},
	}}
	r = StripGoogleThoughtSignatures(r)
	if r.Messages[0].Reasoning != "keep-me" || r.Messages[0].ToolCalls[0].ThoughtSignature != "sig" {
		t.Error("gemini-3 should keep thought signatures")
	}
}

func TestStripGoogleThoughtSignaturesStripsOthers(t *testing.T) {
	r := &Request{Model: "gemini-2.5-pro", Messages: []Message{
		{Reasoning: "drop-me", ToolCalls: []ToolCall{{ThoughtSignature: "sig"}}},
	}}
	r = StripGoogleThoughtSignatures(r)
	if r.Messages[0].Reasoning != "" || r.Messages[0].ToolCalls[0].ThoughtSignature != "" {
		t.Error("non-gemini-3 models should have signatures stripped")
	}
}
