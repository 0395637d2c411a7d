package orchestrator

import "github.com/xonecas/forge/internal/domain"

// applyTunableParameters overlays an agent's request-shaping knobs onto a
// context, grounded on
// original_source/crates/forge_app/src/apply_tunable_parameters.rs: each
// tunable is copied over only when the agent sets it, leaving the context's
// existing value untouched otherwise.
func applyTunableParameters(agent *domain.Agent, ctx *domain.Context) *domain.Context {
	if agent.Temperature != nil {
		ctx.Temperature = agent.Temperature
	}
	if agent.TopP != nil {
		ctx.TopP = agent.TopP
	}
	if agent.TopK != nil {
		ctx.TopK = agent.TopK
	}
	if agent.MaxTokens != nil {
		ctx.MaxTokens = agent.MaxTokens
	}
	if agent.Reasoning != nil {
		ctx.Reasoning = agent.Reasoning
	}
	return ctx
}
