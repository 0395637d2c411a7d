package orchestrator

import (
	"testing"

	"github.com/xonecas/forge/internal/domain"
)

type fakeAgentLookup map[domain.AgentID]*domain.Agent

func (f fakeAgentLookup) Agent(id domain.AgentID) (*domain.Agent, bool) {
	a, ok := f[id]
	return a, ok
}

func TestResolverPrefersAgentOwnProviderAndModel(t *testing.T) {
	r := NewAgentProviderResolver(nil, "default-provider", "default-model")
	agent := &domain.Agent{ID: "a1", Provider: "custom-provider", Model: "custom-model"}

	if got := r.Provider(agent); got != "custom-provider" {
		t.Fatalf("Provider() = %q, want custom-provider", got)
	}
	if got := r.Model(agent); got != "custom-model" {
		t.Fatalf("Model() = %q, want custom-model", got)
	}
}

func TestResolverFallsBackToDefaultWhenUnset(t *testing.T) {
	r := NewAgentProviderResolver(nil, "default-provider", "default-model")
	agent := &domain.Agent{ID: "a1"}

	if got := r.Provider(agent); got != "default-provider" {
		t.Fatalf("Provider() = %q, want default-provider", got)
	}
	if got := r.Model(agent); got != "default-model" {
		t.Fatalf("Model() = %q, want default-model", got)
	}
}

func TestResolverFallsBackToDefaultWhenAgentNotFound(t *testing.T) {
	lookup := fakeAgentLookup{}
	r := NewAgentProviderResolver(lookup, "default-provider", "default-model")
	agent := &domain.Agent{ID: "missing"}

	if got := r.Provider(agent); got != "default-provider" {
		t.Fatalf("Provider() = %q, want default-provider for an unknown agent", got)
	}
}

func TestResolverUsesLookupWhenAgentItselfHasNoOverride(t *testing.T) {
	lookup := fakeAgentLookup{
		"a1": {ID: "a1", Provider: "looked-up-provider", Model: "looked-up-model"},
	}
	r := NewAgentProviderResolver(lookup, "default-provider", "default-model")
	agent := &domain.Agent{ID: "a1"}

	if got := r.Provider(agent); got != "looked-up-provider" {
		t.Fatalf("Provider() = %q, want looked-up-provider", got)
	}
	if got := r.Model(agent); got != "looked-up-model" {
		t.Fatalf("Model() = %q, want looked-up-model", got)
	}
}
