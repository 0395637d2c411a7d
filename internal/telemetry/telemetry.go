// Package telemetry is the process-wide fire-and-forget usage tracker
// singleton (the second of the two global-mutable-state exceptions; the
// first is internal/config's app-config cache). Grounded on
// haasonsaas-nexus's internal/observability/tracing.go for the
// otel-no-op-safe-by-default wiring pattern, and on internal/llm/loop.go's
// channel-driven event loop for the fire-and-forget delivery shape: Record
// never blocks the caller, and the background goroutine that drains
// recorded events into OpenTelemetry counters is the only thing that
// touches the meter.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xonecas/forge/internal/domain"
)

// Event is one usage sample recorded at the end of a provider request.
type Event struct {
	Agent    domain.AgentID
	Provider domain.ProviderID
	Model    domain.ModelID
	Usage    domain.Usage
	ToolName domain.ToolName // empty unless this event records a tool dispatch
	ToolErr  bool
}

// Tracker drains recorded Events into OpenTelemetry counters. The zero value
// is not usable; construct with New or reach it through Global.
type Tracker struct {
	promptTokens     metric.Int64Counter
	completionTokens metric.Int64Counter
	turns            metric.Int64Counter
	toolCalls        metric.Int64Counter
	toolFailures     metric.Int64Counter

	events chan Event
	stop   chan struct{}
	wg     sync.WaitGroup
}

const queueDepth = 256

// New builds a Tracker against meter and starts its drain goroutine. Passing
// a noop.Meter (the default before Init is called) makes every counter a
// no-op, so Record is always safe to call even before telemetry is wired up.
func New(meter metric.Meter) *Tracker {
	if meter == nil {
		meter = noop.Meter{}
	}
	t := &Tracker{
		events: make(chan Event, queueDepth),
		stop:   make(chan struct{}),
	}
	t.promptTokens, _ = meter.Int64Counter("forge.tokens.prompt")
	t.completionTokens, _ = meter.Int64Counter("forge.tokens.completion")
	t.turns, _ = meter.Int64Counter("forge.turns")
	t.toolCalls, _ = meter.Int64Counter("forge.tool_calls")
	t.toolFailures, _ = meter.Int64Counter("forge.tool_calls.failed")

	t.wg.Add(1)
	go t.drain()
	return t
}

func (t *Tracker) drain() {
	defer t.wg.Done()
	ctx := context.Background()
	for {
		select {
		case ev := <-t.events:
			t.apply(ctx, ev)
		case <-t.stop:
			// Drain whatever is still queued before exiting so a Shutdown
			// racing the last RunTurn doesn't silently lose counts.
			for {
				select {
				case ev := <-t.events:
					t.apply(ctx, ev)
				default:
					return
				}
			}
		}
	}
}

func (t *Tracker) apply(ctx context.Context, ev Event) {
	attrs := metric.WithAttributes(
		attribute.String("agent", string(ev.Agent)),
		attribute.String("provider", string(ev.Provider)),
		attribute.String("model", string(ev.Model)),
	)
	if ev.ToolName != "" {
		if ev.ToolErr {
			t.toolFailures.Add(ctx, 1, attrs)
		}
		t.toolCalls.Add(ctx, 1, attrs)
		return
	}
	t.turns.Add(ctx, 1, attrs)
	t.promptTokens.Add(ctx, int64(ev.Usage.PromptTokens), attrs)
	t.completionTokens.Add(ctx, int64(ev.Usage.CompletionTokens), attrs)
}

// Record queues ev for counting. It never blocks: a full queue drops the
// event rather than stall the orchestrator loop, matching the write-only,
// fire-and-forget contract.
func (t *Tracker) Record(ev Event) {
	select {
	case t.events <- ev:
	default:
	}
}

// Shutdown stops the drain goroutine after flushing whatever is queued.
func (t *Tracker) Shutdown(ctx context.Context) error {
	close(t.stop)
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var (
	global   *Tracker
	globalMu sync.Mutex
)

// Global returns the process-wide Tracker, building a no-op one on first use
// if Init was never called.
func Global() *Tracker {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = New(noop.Meter{})
	}
	return global
}

// Init installs meter as the source for the global Tracker's counters,
// replacing whatever Tracker was there before (shutting it down first so its
// drain goroutine doesn't leak). Intended for use from cmd/forge/main.go
// during startup.
func Init(meter metric.Meter) *Tracker {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global != nil {
		_ = global.Shutdown(context.Background())
	}
	global = New(meter)
	return global
}

