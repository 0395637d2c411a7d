package orchestrator

import (
	"testing"

	"github.com/xonecas/forge/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestApplyTunableParametersOverlaysOnlySetFields(t *testing.T) {
	agent := &domain.Agent{
		Temperature: floatPtr(0.2),
		MaxTokens:   intPtr(4096),
	}
	existingTopP := floatPtr(0.9)
	ctx := &domain.Context{TopP: existingTopP}

	out := applyTunableParameters(agent, ctx)

	if out.Temperature == nil || *out.Temperature != 0.2 {
		t.Fatalf("expected Temperature to be overlaid from agent, got %v", out.Temperature)
	}
	if out.MaxTokens == nil || *out.MaxTokens != 4096 {
		t.Fatalf("expected MaxTokens to be overlaid from agent, got %v", out.MaxTokens)
	}
	if out.TopP != existingTopP {
		t.Fatalf("expected TopP to be left untouched since the agent does not set it")
	}
	if out.TopK != nil {
		t.Fatalf("expected TopK to remain nil, got %v", out.TopK)
	}
}

func TestApplyTunableParametersNoopWhenAgentSetsNothing(t *testing.T) {
	agent := &domain.Agent{}
	ctx := &domain.Context{Temperature: floatPtr(0.7)}

	out := applyTunableParameters(agent, ctx)
	if out.Temperature == nil || *out.Temperature != 0.7 {
		t.Fatalf("expected existing Temperature preserved, got %v", out.Temperature)
	}
}
