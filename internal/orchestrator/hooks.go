package orchestrator

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/xonecas/forge/internal/compact"
	"github.com/xonecas/forge/internal/domain"
)

// Hook observes a turn's lifecycle events and may mutate the conversation
// in place, grounded on
// original_source/crates/forge_app/src/hooks/{compaction,tracing}.rs. The
// original models each event kind as its own EventHandle trait impl; Go has
// no equivalent of per-type trait dispatch without a type switch per call
// site, so this collapses to one interface switching on EventKind, the
// shape internal/llm/loop.go already uses for its own event-kind switches.
type Hook interface {
	Handle(ctx context.Context, kind domain.EventKind, agent *domain.Agent, conv *domain.Conversation) error
}

// HookFunc adapts a plain function to Hook.
type HookFunc func(ctx context.Context, kind domain.EventKind, agent *domain.Agent, conv *domain.Conversation) error

func (f HookFunc) Handle(ctx context.Context, kind domain.EventKind, agent *domain.Agent, conv *domain.Conversation) error {
	return f(ctx, kind, agent, conv)
}

// Dispatcher fires the subset of registered hooks an agent has subscribed
// to for a given EventKind, per Agent.Subscribe.
type Dispatcher struct {
	Hooks []Hook
}

// NewDispatcher builds a Dispatcher over hooks, run in registration order.
func NewDispatcher(hooks ...Hook) *Dispatcher {
	return &Dispatcher{Hooks: hooks}
}

// Fire runs every registered hook for kind if agent subscribes to it,
// stopping at the first error.
func (d *Dispatcher) Fire(ctx context.Context, kind domain.EventKind, agent *domain.Agent, conv *domain.Conversation) error {
	if agent.Subscribe != nil {
		if _, ok := agent.Subscribe[kind]; !ok {
			return nil
		}
	}
	for _, h := range d.Hooks {
		if err := h.Handle(ctx, kind, agent, conv); err != nil {
			return err
		}
	}
	return nil
}

// CompactionHook runs the context compactor when a response leaves the
// conversation over its agent's configured token threshold, grounded on
// hooks/compaction.rs's CompactionHandler: observe-then-replace, mutating
// conv.Context in place only when should_compact reports true.
type CompactionHook struct {
	Compactor *compact.Compactor
	Provider  domain.ProviderID
}

// NewCompactionHook builds a CompactionHook driven by compactor.
func NewCompactionHook(compactor *compact.Compactor, provider domain.ProviderID) *CompactionHook {
	return &CompactionHook{Compactor: compactor, Provider: provider}
}

func (h *CompactionHook) Handle(ctx context.Context, kind domain.EventKind, agent *domain.Agent, conv *domain.Conversation) error {
	if kind != domain.EventResponse || conv.Context == nil {
		return nil
	}
	tokenCount := conv.Context.TokenCount()
	if !agent.Compact.ShouldCompact(conv.Context, tokenCount) {
		log.Debug().Str("agent_id", string(agent.ID)).Msg("compaction not needed")
		return nil
	}
	log.Info().Str("agent_id", string(agent.ID)).Msg("compaction triggered by hook")
	compacted, err := h.Compactor.Compact(ctx, agent.Compact, agent.Model, h.Provider, conv.Context)
	if err != nil {
		return err
	}
	conv.Context = compacted
	return nil
}

// TracingHook logs turn lifecycle events at the agent's usual structured
// logging level, grounded on hooks/tracing.rs's TracingHandler (its five
// EventHandle impls collapsed into one kind switch per the Hook doc above).
type TracingHook struct{}

// NewTracingHook builds a TracingHook.
func NewTracingHook() *TracingHook { return &TracingHook{} }

func (h *TracingHook) Handle(_ context.Context, kind domain.EventKind, agent *domain.Agent, conv *domain.Conversation) error {
	switch kind {
	case domain.EventStart:
		log.Debug().
			Str("conversation_id", string(conv.ID)).
			Str("agent_id", string(agent.ID)).
			Str("model", string(agent.Model)).
			Msg("initializing agent")
	case domain.EventResponse:
		entry := log.Info().Str("conversation_id", string(conv.ID))
		if conv.Context != nil {
			entry = entry.Int("conversation_length", len(conv.Context.Messages))
		}
		entry.Msg("processing turn response")
	}
	return nil
}
