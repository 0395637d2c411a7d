package registry

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/xonecas/forge/internal/domain"
)

type fakeExecutor struct {
	names map[domain.ToolName]struct{}
	delay time.Duration
	err   error
	out   domain.ToolOutput
}

func (f *fakeExecutor) Contains(name domain.ToolName) bool {
	_, ok := f.names[name]
	return ok
}

func (f *fakeExecutor) Execute(ctx context.Context, call domain.ToolCallFull) (domain.ToolOutput, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return domain.ToolOutput{}, ctx.Err()
		}
	}
	if f.err != nil {
		return domain.ToolOutput{}, f.err
	}
	return f.out, nil
}

func testAgent(tools ...domain.ToolName) *domain.Agent {
	set := make(map[domain.ToolName]struct{}, len(tools))
	for _, t := range tools {
		set[t] = struct{}{}
	}
	return &domain.Agent{ID: "test_agent", Tools: set}
}

func callFor(name domain.ToolName) domain.ToolCallFull {
	id := "call_1"
	return domain.ToolCallFull{Name: name, CallID: &id}
}

func TestDispatchRestrictedToolCall(t *testing.T) {
	builtin := &fakeExecutor{names: map[domain.ToolName]struct{}{"read": {}, "search": {}}, out: domain.TextOutput("ok")}
	r := New(builtin, nil, nil, time.Second)

	result := r.Dispatch(context.Background(), testAgent("read", "search"), callFor("read"))
	if result.Output.IsError {
		t.Fatalf("expected allowed call to succeed, got error output: %+v", result.Output)
	}
}

func TestDispatchNotAllowedMessage(t *testing.T) {
	builtin := &fakeExecutor{names: map[domain.ToolName]struct{}{"write": {}}, out: domain.TextOutput("ok")}
	r := New(builtin, nil, nil, time.Second)

	result := r.Dispatch(context.Background(), testAgent("read", "search"), callFor("write"))
	if !result.Output.IsError {
		t.Fatalf("expected disallowed call to produce an error output")
	}
	want := "Tool 'write' is not available. Please try again with one of these tools: [read, search]"
	if !strings.Contains(result.Output.Values[0].Text, want) {
		t.Fatalf("got %q, want it to contain %q", result.Output.Values[0].Text, want)
	}
}

func TestDispatchAttemptCompletionAlwaysAllowed(t *testing.T) {
	builtin := &fakeExecutor{names: map[domain.ToolName]struct{}{domain.ToolNameAttemptCompletion: {}}, out: domain.TextOutput("done")}
	r := New(builtin, nil, nil, time.Second)

	result := r.Dispatch(context.Background(), testAgent("read"), callFor(domain.ToolNameAttemptCompletion))
	if result.Output.IsError {
		t.Fatalf("attempt_completion should always be allowed, got error: %+v", result.Output)
	}
}

func TestDispatchRoutingOrder(t *testing.T) {
	builtin := &fakeExecutor{names: map[domain.ToolName]struct{}{"shared": {}}, out: domain.TextOutput("from builtin")}
	subAgent := &fakeExecutor{names: map[domain.ToolName]struct{}{"shared": {}}, out: domain.TextOutput("from subagent")}
	r := New(builtin, subAgent, nil, time.Second)

	result := r.Dispatch(context.Background(), testAgent("shared"), callFor("shared"))
	if result.Output.Values[0].Text != "from builtin" {
		t.Fatalf("builtin should win over sub-agent when both own the name, got %q", result.Output.Values[0].Text)
	}
}

func TestDispatchNotFound(t *testing.T) {
	r := New(&fakeExecutor{}, nil, nil, time.Second)
	result := r.Dispatch(context.Background(), testAgent("read"), callFor("read"))
	if !result.Output.IsError {
		t.Fatalf("expected not-found error output")
	}
}

func TestDispatchBuiltinTimeout(t *testing.T) {
	builtin := &fakeExecutor{names: map[domain.ToolName]struct{}{"slow": {}}, delay: 50 * time.Millisecond}
	r := New(builtin, nil, nil, 5*time.Millisecond)

	result := r.Dispatch(context.Background(), testAgent("slow"), callFor("slow"))
	if !result.Output.IsError {
		t.Fatalf("expected timeout to surface as an error output")
	}
}

func TestDispatchSubAgentNeverTimesOut(t *testing.T) {
	subAgent := &fakeExecutor{names: map[domain.ToolName]struct{}{"delegate": {}}, delay: 20 * time.Millisecond, out: domain.TextOutput("ok")}
	r := New(nil, subAgent, nil, 5*time.Millisecond)

	result := r.Dispatch(context.Background(), testAgent("delegate"), callFor("delegate"))
	if result.Output.IsError {
		t.Fatalf("sub-agent calls must not be bounded by the tool timeout, got error: %+v", result.Output)
	}
}
