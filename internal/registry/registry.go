// Package registry dispatches tool calls from the orchestrator to whichever
// executor actually owns the tool: built-ins, sub-agent delegation, or an
// MCP server. Routing order and the allow-list error message are grounded on
// original_source/crates/forge_app/src/tool_registry.rs.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xonecas/forge/internal/domain"
)

// Executor is something that can own and run a subset of tool names.
type Executor interface {
	Contains(name domain.ToolName) bool
	Execute(ctx context.Context, call domain.ToolCallFull) (domain.ToolOutput, error)
}

// Registry routes a tool call to the first executor that owns it, in a
// fixed order: built-ins, then sub-agent delegation, then MCP. Built-ins and
// MCP calls are bounded by ToolTimeout; sub-agent calls never time out,
// since a sub-agent's own turn budget already bounds its runtime.
type Registry struct {
	Builtin     Executor
	SubAgent    Executor
	Mcp         Executor
	ToolTimeout time.Duration

	// Policy gates mutating/side-effecting calls before dispatch. Nil skips
	// the check entirely, so existing callers that never configure a policy
	// keep their old unrestricted behavior.
	Policy domain.PolicyEngine
	// Confirm resolves a PolicyConfirm verdict to a yes/no decision. Nil
	// means PolicyConfirm is treated as a denial, the safe default for a
	// non-interactive caller.
	Confirm func(ctx context.Context, op domain.Operation) bool
}

// New builds a Registry with the given executors and per-call timeout.
func New(builtin, subAgent, mcp Executor, toolTimeout time.Duration) *Registry {
	return &Registry{Builtin: builtin, SubAgent: subAgent, Mcp: mcp, ToolTimeout: toolTimeout}
}

// Dispatch validates the call against the agent's allow-list and any
// configured policy, then routes it to the owning executor and always
// returns a ToolResult — execution errors are recovered locally into the
// result's ToolOutput, never propagated, so the orchestrator's control-plane
// error handling never sees them.
func (r *Registry) Dispatch(ctx context.Context, agent *domain.Agent, call domain.ToolCallFull) domain.ToolResult {
	callID := ""
	if call.CallID != nil {
		callID = *call.CallID
	}

	if err := r.validate(agent, call.Name); err != nil {
		return domain.ToolResult{Name: call.Name, CallID: callID, Output: domain.ReflectionEnvelope(err.Error(), "pick one of the tools listed in the error and try again")}
	}

	if err := r.checkPolicy(ctx, call); err != nil {
		return domain.ToolResult{Name: call.Name, CallID: callID, Output: domain.ReflectionEnvelope(err.Error(), "ask the user for explicit approval before retrying this operation")}
	}

	output, err := r.callInner(ctx, call)
	if err != nil {
		return domain.ToolResult{Name: call.Name, CallID: callID, Output: domain.ReflectionEnvelope(err.Error(), "reconsider the arguments or approach and try again")}
	}
	return domain.ToolResult{Name: call.Name, CallID: callID, Output: output}
}

// toolOperationArgs captures the one field each policy-relevant tool's
// arguments carries that names the resource being acted on.
type toolOperationArgs struct {
	File    string `json:"file"`
	Command string `json:"command"`
	URL     string `json:"url"`
}

// operationFor maps a tool call onto the Operation shape the PolicyEngine
// understands. Tools with no side-effecting resource (Grep, TodoWrite, ...)
// return ok=false and are never policy-checked.
func operationFor(call domain.ToolCallFull) (domain.Operation, bool) {
	var kind domain.OperationKind
	switch call.Name {
	case "Read":
		kind = domain.OpRead
	case "Edit", "Write", "Remove", "Plan":
		kind = domain.OpWrite
	case "Shell":
		kind = domain.OpExecute
	case "WebFetch", "WebSearch":
		kind = domain.OpFetch
	default:
		return domain.Operation{}, false
	}

	var args toolOperationArgs
	if len(call.Arguments) > 0 {
		_ = json.Unmarshal(call.Arguments, &args)
	}
	return domain.Operation{Kind: kind, Path: args.File, Command: args.Command, URL: args.URL}, true
}

func (r *Registry) checkPolicy(ctx context.Context, call domain.ToolCallFull) error {
	if r.Policy == nil {
		return nil
	}
	op, ok := operationFor(call)
	if !ok {
		return nil
	}
	decision, err := r.Policy.Evaluate(ctx, op)
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}
	switch decision {
	case domain.PolicyAllow:
		return nil
	case domain.PolicyConfirm:
		if r.Confirm != nil && r.Confirm(ctx, op) {
			return nil
		}
		return fmt.Errorf("%w: %s requires explicit confirmation", domain.ErrNotAllowed, call.Name)
	default:
		return fmt.Errorf("%w: %s is denied by policy", domain.ErrNotAllowed, call.Name)
	}
}

func (r *Registry) callInner(ctx context.Context, call domain.ToolCallFull) (domain.ToolOutput, error) {
	switch {
	case r.Builtin != nil && r.Builtin.Contains(call.Name):
		return r.callWithTimeout(ctx, call, r.Builtin)
	case r.SubAgent != nil && r.SubAgent.Contains(call.Name):
		// Sub-agents are not subject to the per-call timeout: their own
		// turn/request budgets bound how long they can run.
		return r.SubAgent.Execute(ctx, call)
	case r.Mcp != nil && r.Mcp.Contains(call.Name):
		return r.callWithTimeout(ctx, call, r.Mcp)
	default:
		return domain.ToolOutput{}, fmt.Errorf("%w: %s", domain.ErrNotFound, call.Name)
	}
}

func (r *Registry) callWithTimeout(ctx context.Context, call domain.ToolCallFull, exec Executor) (domain.ToolOutput, error) {
	if r.ToolTimeout <= 0 {
		return exec.Execute(ctx, call)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.ToolTimeout)
	defer cancel()

	type result struct {
		output domain.ToolOutput
		err    error
	}
	done := make(chan result, 1)
	go func() {
		output, err := exec.Execute(timeoutCtx, call)
		done <- result{output, err}
	}()

	select {
	case res := <-done:
		return res.output, res.err
	case <-timeoutCtx.Done():
		return domain.ToolOutput{}, fmt.Errorf("%w: tool %q exceeded %s", domain.ErrTimeout, call.Name, r.ToolTimeout)
	}
}

// notAllowedError reports a disallowed tool call, matching the original's
// exact wording so reflection prompts read identically, while still
// unwrapping to domain.ErrNotAllowed for callers using errors.Is.
type notAllowedError struct {
	name      domain.ToolName
	supported string
}

func (e *notAllowedError) Error() string {
	return fmt.Sprintf("Tool '%s' is not available. Please try again with one of these tools: [%s]", e.name, e.supported)
}

func (e *notAllowedError) Unwrap() error { return domain.ErrNotAllowed }

// validate enforces the agent's tool allow-list.
func (r *Registry) validate(agent *domain.Agent, name domain.ToolName) error {
	if agent.AllowsTool(name) {
		return nil
	}
	return &notAllowedError{name: name, supported: joinToolNames(agent.Tools)}
}

func joinToolNames(tools map[domain.ToolName]struct{}) string {
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
