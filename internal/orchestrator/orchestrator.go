// Package orchestrator runs one turn of an Agent against a Conversation,
// grounded on internal/llm/loop.go's tool-round loop generalized to the full
// Init/BuildPrompt/Request/Stream/Decide/Compact/Retry state machine with
// per-turn budgets, hooks, title generation and changed-file notification.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/xonecas/forge/internal/domain"
	"github.com/xonecas/forge/internal/registry"
)

// retryBudget bounds how many times a retryable provider error is retried
// within a single Request step before the turn fails. Grounded on stdlib
// time+math/rand exponential backoff: no pack repo imports cenkalti/backoff
// directly (it only ever appears as an SDK-transitive dependency), so there
// is no call-site to ground a third-party retry library against.
const retryBudget = 3

// Orchestrator wires the provider pipeline, tool registry, hooks, title
// generation and changed-file detection into the per-turn control loop.
type Orchestrator struct {
	Provider      domain.ProviderClient
	Resolver      *AgentProviderResolver
	Registry      *registry.Registry
	Hooks         *Dispatcher
	Conversations domain.ConversationRepository
	Responses     domain.ChatResponseChannel
	Titles        *TitleGenerator
	ChangedFiles  *ChangedFiles

	Env                Environment
	Files              []string
	CustomInstructions []string
	Skills             []string

	// ParallelToolCalls mirrors the resolved model's reported tool-calling
	// capability for the turn; set by the caller per spec.md §5 rather than
	// looked up here, since capability reporting lives in the provider
	// pipeline, not the orchestrator.
	ParallelToolCalls bool
}

// RunTurn drives conv through exactly one turn for agent in response to
// event, streaming ChatResponse events to Responses and persisting the
// updated conversation via Conversations. MaxTurns is enforced before any
// other work; everything after is the per-turn
// BuildPrompt/Request/Stream/Decide/Compact/Retry loop.
func (o *Orchestrator) RunTurn(ctx context.Context, agent *domain.Agent, conv *domain.Conversation, event domain.Event) error {
	if agent.MaxTurns > 0 && conv.Metrics.TurnCount >= agent.MaxTurns {
		return fmt.Errorf("%w: agent %q reached max turns (%d)", domain.ErrBudgetExceeded, agent.ID, agent.MaxTurns)
	}
	conv.Metrics.TurnCount++

	if conv.Context == nil {
		conv.Context = &domain.Context{}
	}
	if o.ChangedFiles != nil {
		conv = o.ChangedFiles.UpdateFileStats(ctx, conv, time.Now())
	}

	o.buildPrompt(agent, conv, event)

	var requests, toolFailures uint64
	for {
		if agent.MaxRequestsPerTurn > 0 && requests >= agent.MaxRequestsPerTurn {
			o.emit(ctx, domain.Interrupt{Reason: domain.InterruptReason{Kind: domain.InterruptMaxRequestPerTurn, Limit: agent.MaxRequestsPerTurn}})
			return o.persist(ctx, conv)
		}
		requests++

		if err := o.Hooks.Fire(ctx, domain.EventStart, agent, conv); err != nil {
			return fmt.Errorf("start hooks: %w", err)
		}

		provider := o.Resolver.Provider(agent)
		model := o.Resolver.Model(agent)

		msg, err := o.requestWithRetry(ctx, conv, model, provider)
		if err != nil {
			return fmt.Errorf("request: %w", err)
		}
		conv.Context.Messages = append(conv.Context.Messages, msg)

		if err := o.Hooks.Fire(ctx, domain.EventResponse, agent, conv); err != nil {
			return fmt.Errorf("response hooks: %w", err)
		}
		if err := o.persist(ctx, conv); err != nil {
			return err
		}
		o.maybeGenerateTitle(ctx, conv)

		done, err := o.decide(ctx, agent, conv, msg, &toolFailures)
		if err != nil {
			return err
		}
		if done {
			return o.persist(ctx, conv)
		}

		if agent.MaxToolFailuresPerTurn > 0 && toolFailures >= agent.MaxToolFailuresPerTurn {
			o.emit(ctx, domain.Interrupt{Reason: domain.InterruptReason{Kind: domain.InterruptMaxToolFailurePerTurn, Limit: agent.MaxToolFailuresPerTurn}})
			return o.persist(ctx, conv)
		}
		if err := o.persist(ctx, conv); err != nil {
			return err
		}
	}
}

// buildPrompt runs the BuildPrompt step exactly once per turn: overlay
// tunables, (re)establish the single system message, and append the user
// message for event.
func (o *Orchestrator) buildPrompt(agent *domain.Agent, conv *domain.Conversation, event domain.Event) {
	conv.Context = applyTunableParameters(agent, conv.Context)

	toolSupported := len(conv.Context.Tools) > 0
	if sysMsg, ok := buildSystemMessage(agent, o.Env, conv.Context.Tools, o.Files, o.CustomInstructions, o.Skills, toolSupported); ok {
		setSystemMessage(conv.Context, sysMsg)
	}
	conv.Context = buildUserMessage(agent, conv.Context, event, time.Now())
}

// decide runs the Decide step for an assistant message with no tool calls
// or with tool calls, returning done=true once the turn should stop
// producing further requests.
func (o *Orchestrator) decide(ctx context.Context, agent *domain.Agent, conv *domain.Conversation, msg domain.TextMessage, toolFailures *uint64) (bool, error) {
	if len(msg.ToolCalls) == 0 {
		if strings.TrimSpace(msg.Content) != "" {
			o.emit(ctx, domain.TaskComplete{})
			return true, nil
		}

		*toolFailures++
		nudge := domain.ReflectionEnvelope(
			"no tool call and no final response",
			"call a tool to make progress, or finish with a plain-text response",
		)
		conv.Context.Messages = append(conv.Context.Messages, domain.TextMessage{
			Role:      domain.RoleUser,
			Content:   nudge.Values[0].Text,
			CreatedAt: time.Now(),
		})
		return false, nil
	}

	for _, tc := range msg.ToolCalls {
		o.emit(ctx, domain.ToolCallStart{Call: tc})
	}

	results := o.dispatchToolCalls(ctx, agent, msg.ToolCalls)
	completing := false
	for i, res := range results {
		conv.Context.Messages = append(conv.Context.Messages, domain.ToolMessage{CallID: res.CallID, Name: res.Name, Output: res.Output})
		o.emit(ctx, domain.ToolCallEnd{Result: res})
		if res.Output.IsError {
			*toolFailures++
		}
		if msg.ToolCalls[i].Name == domain.ToolNameAttemptCompletion {
			completing = true
		}
	}
	if completing {
		o.emit(ctx, domain.TaskComplete{})
		return true, nil
	}
	return false, nil
}

// dispatchToolCalls runs every call through the registry, in dispatch order.
// When ParallelToolCalls is set the calls fan out concurrently via
// errgroup and are reassembled by index, per spec.md §5; otherwise they run
// sequentially, matching the teacher's loop.go executeToolCalls.
func (o *Orchestrator) dispatchToolCalls(ctx context.Context, agent *domain.Agent, calls []domain.ToolCallFull) []domain.ToolResult {
	results := make([]domain.ToolResult, len(calls))

	if !o.ParallelToolCalls || len(calls) < 2 {
		for i, call := range calls {
			results[i] = o.Registry.Dispatch(ctx, agent, call)
		}
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = o.Registry.Dispatch(gctx, agent, call)
			return nil
		})
	}
	_ = g.Wait() // Registry.Dispatch never returns an error; failures are recovered into ToolResults
	return results
}

func (o *Orchestrator) persist(ctx context.Context, conv *domain.Conversation) error {
	if o.Conversations == nil {
		return nil
	}
	if err := o.Conversations.Upsert(ctx, conv); err != nil {
		return fmt.Errorf("persist conversation: %w", err)
	}
	return nil
}

func (o *Orchestrator) maybeGenerateTitle(ctx context.Context, conv *domain.Conversation) {
	if o.Titles == nil || conv.Title != "" || conv.Context == nil {
		return
	}
	provider := o.Resolver.DefaultProvider
	model := o.Resolver.DefaultModel
	snapshot := *conv
	o.Titles.GenerateAsync(context.Background(), conv.Context, model, provider, func(title string) {
		snapshot.Title = title
		if err := o.persist(ctx, &snapshot); err != nil {
			log.Warn().Err(err).Str("conversation_id", string(conv.ID)).Msg("failed to persist generated title")
		}
	})
}

func (o *Orchestrator) emit(ctx context.Context, resp domain.ChatResponse) {
	if o.Responses == nil {
		return
	}
	o.Responses.Send(ctx, resp)
}

// requestWithRetry runs the Stream step, retrying retryable provider errors
// with exponential backoff plus jitter up to retryBudget times.
func (o *Orchestrator) requestWithRetry(ctx context.Context, conv *domain.Conversation, model domain.ModelID, provider domain.ProviderID) (domain.TextMessage, error) {
	var lastErr error
	for attempt := 0; attempt <= retryBudget; attempt++ {
		msg, err := o.requestOnce(ctx, conv, model, provider)
		if err == nil {
			return msg, nil
		}
		if !errors.Is(err, domain.ErrRetryable) {
			return domain.TextMessage{}, err
		}
		lastErr = err
		if attempt == retryBudget {
			break
		}

		wait := backoffDuration(attempt)
		o.emit(ctx, domain.RetryAttempt{Cause: err, Duration: wait})
		select {
		case <-ctx.Done():
			return domain.TextMessage{}, ctx.Err()
		case <-time.After(wait):
		}
	}
	return domain.TextMessage{}, fmt.Errorf("retries exhausted: %w", lastErr)
}

// backoffDuration returns an exponentially-growing wait with up to 50%
// jitter, base 500ms.
func backoffDuration(attempt int) time.Duration {
	base := 500 * time.Millisecond
	grown := base << attempt
	jitter := time.Duration(rand.Int63n(int64(grown)/2 + 1))
	return grown + jitter
}

// requestOnce runs a single Stream step: one C1 call, consumed into an
// assistant TextMessage, with deltas forwarded to the response channel as
// they arrive.
func (o *Orchestrator) requestOnce(ctx context.Context, conv *domain.Conversation, model domain.ModelID, provider domain.ProviderID) (domain.TextMessage, error) {
	events, err := o.Provider.Chat(ctx, model, conv.Context, provider)
	if err != nil {
		return domain.TextMessage{}, err
	}

	var content strings.Builder
	tca := newToolCallAccumulator()
	var usage *domain.Usage

	for ev := range events {
		switch ev.Kind {
		case domain.StreamContentDelta:
			content.WriteString(ev.Content)
			o.emit(ctx, domain.TaskMessage{Kind: domain.TaskMessagePlainText, Content: ev.Content})
		case domain.StreamReasoningDelta:
			o.emit(ctx, domain.TaskReasoning{Content: ev.Content})
		case domain.StreamToolCallBegin:
			tca.begin(ev)
		case domain.StreamToolCallDelta:
			tca.delta(ev)
		case domain.StreamUsage:
			u := ev.Usage
			usage = &u
			o.emit(ctx, domain.UsageEvent{Usage: u})
		case domain.StreamError:
			return domain.TextMessage{}, ev.Err
		case domain.StreamDone:
		}
	}

	return domain.TextMessage{
		Role:      domain.RoleAssistant,
		Content:   content.String(),
		Model:     model,
		ToolCalls: tca.finalize(),
		Usage:     usage,
		CreatedAt: time.Now(),
	}, nil
}

// toolCallAccumulator tracks tool calls as they stream in by index, grounded
// on internal/llm/loop.go's toolCallAccumulator.
type toolCallAccumulator struct {
	byIndex     map[int]int
	calls       []domain.ToolCallFull
	argBuilders []string
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{byIndex: make(map[int]int)}
}

func (a *toolCallAccumulator) begin(ev domain.StreamEvent) {
	pos := len(a.calls)
	a.byIndex[ev.ToolCallIndex] = pos
	id := ev.ToolCallID
	a.calls = append(a.calls, domain.ToolCallFull{Name: domain.ToolName(ev.ToolCallName), CallID: &id})
	a.argBuilders = append(a.argBuilders, "")
}

func (a *toolCallAccumulator) delta(ev domain.StreamEvent) {
	if pos, ok := a.byIndex[ev.ToolCallIndex]; ok {
		a.argBuilders[pos] += ev.ToolCallArgs
	}
}

func (a *toolCallAccumulator) finalize() []domain.ToolCallFull {
	for i := range a.calls {
		a.calls[i].Arguments = json.RawMessage(a.argBuilders[i])
	}
	return a.calls
}
