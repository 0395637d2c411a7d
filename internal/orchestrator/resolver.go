package orchestrator

import "github.com/xonecas/forge/internal/domain"

// AgentLookup resolves an agent definition by id, used only by the resolver
// below to find an explicitly-configured provider/model.
type AgentLookup interface {
	Agent(id domain.AgentID) (*domain.Agent, bool)
}

// AgentProviderResolver picks the provider and model a turn runs against,
// grounded on
// original_source/crates/forge_app/src/agent_provider_resolver.rs: an
// agent's own provider/model wins when set, otherwise the configured
// default. The original's TODO-marked "agent not found" ambiguity is
// resolved here in favor of falling back to the default rather than
// erroring, per SPEC_FULL's explicit requirement (see DESIGN.md).
type AgentProviderResolver struct {
	Agents          AgentLookup
	DefaultProvider domain.ProviderID
	DefaultModel    domain.ModelID
}

// NewAgentProviderResolver builds a resolver over agents with the given
// fallback provider/model.
func NewAgentProviderResolver(agents AgentLookup, defaultProvider domain.ProviderID, defaultModel domain.ModelID) *AgentProviderResolver {
	return &AgentProviderResolver{Agents: agents, DefaultProvider: defaultProvider, DefaultModel: defaultModel}
}

// Provider returns the provider to use for agent, falling back to the
// resolver's default when the agent has none configured or cannot be found.
func (r *AgentProviderResolver) Provider(agent *domain.Agent) domain.ProviderID {
	if agent != nil && agent.Provider != "" {
		return agent.Provider
	}
	if r.Agents != nil {
		if found, ok := r.Agents.Agent(agentID(agent)); ok && found.Provider != "" {
			return found.Provider
		}
	}
	return r.DefaultProvider
}

// Model returns the model to use for agent, falling back to the resolver's
// default when the agent has none configured or cannot be found.
func (r *AgentProviderResolver) Model(agent *domain.Agent) domain.ModelID {
	if agent != nil && agent.Model != "" {
		return agent.Model
	}
	if r.Agents != nil {
		if found, ok := r.Agents.Agent(agentID(agent)); ok && found.Model != "" {
			return found.Model
		}
	}
	return r.DefaultModel
}

func agentID(agent *domain.Agent) domain.AgentID {
	if agent == nil {
		return ""
	}
	return agent.ID
}
