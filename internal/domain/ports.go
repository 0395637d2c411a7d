package domain

import (
	"context"
	"errors"
)

// Sentinel errors the orchestrator and registry distinguish by errors.Is.
// Everything else is an opaque wrapped error, per the error-handling design:
// tool-execution failures never surface as these — they are always recovered
// locally into a ToolResult. Only control-plane failures use this taxonomy.
var (
	ErrBudgetExceeded = errors.New("budget exceeded")
	ErrCancelled      = errors.New("cancelled")
	ErrNotAllowed     = errors.New("tool not allowed")
	ErrNotFound       = errors.New("not found")
	ErrPolicyDenied   = errors.New("policy denied")
	ErrRetryable      = errors.New("retryable upstream error")
	ErrTimeout        = errors.New("tool call timed out")
)

// StreamEventKind tags a single neutral streaming event from a ProviderClient.
type StreamEventKind int

const (
	StreamContentDelta StreamEventKind = iota
	StreamReasoningDelta
	StreamToolCallBegin
	StreamToolCallDelta
	StreamUsage
	StreamDone
	StreamError
)

// StreamEvent is one element of the lazy, single-pass sequence a
// ProviderClient yields for a chat completion.
type StreamEvent struct {
	Kind StreamEventKind

	Content string

	ToolCallIndex     int
	ToolCallID        string
	ToolCallName      string
	ToolCallArgs      string
	ToolCallSignature string

	Usage Usage

	Err error
}

// ProviderClient is the port the provider pipeline exposes to the
// orchestrator and compactor.
type ProviderClient interface {
	Chat(ctx context.Context, model ModelID, c *Context, provider ProviderID) (<-chan StreamEvent, error)
	Models(ctx context.Context, provider ProviderID) ([]ModelID, error)
}

// ConversationRepository is the sole writer of durable conversation state.
type ConversationRepository interface {
	Upsert(ctx context.Context, conv *Conversation) error
	Get(ctx context.Context, id ConversationID) (*Conversation, error)
	List(ctx context.Context, limit int) ([]*Conversation, error)
	Last(ctx context.Context) (*Conversation, error)
	Delete(ctx context.Context, id ConversationID) error
}

// SnapshotRepository backs undo for mutating filesystem tools.
type SnapshotRepository interface {
	InsertSnapshot(ctx context.Context, path string) (*Snapshot, error)
	UndoSnapshot(ctx context.Context, path string) error
}

// PolicyDecision is the PolicyEngine's verdict on an Operation.
type PolicyDecision int

const (
	PolicyAllow PolicyDecision = iota
	PolicyDeny
	PolicyConfirm
)

// OperationKind tags an Operation submitted to the PolicyEngine.
type OperationKind int

const (
	OpRead OperationKind = iota
	OpWrite
	OpExecute
	OpFetch
)

// Operation describes a side-effecting action pending policy evaluation.
type Operation struct {
	Kind    OperationKind
	Path    string
	Command string
	URL     string
}

// PolicyEngine gates mutating/side-effecting tool operations.
type PolicyEngine interface {
	Evaluate(ctx context.Context, op Operation) (PolicyDecision, error)
}

// McpService is the port over MCP server tool listing/calling/reload.
type McpService interface {
	Servers(ctx context.Context) (McpServers, error)
	Call(ctx context.Context, call ToolCallFull) (ToolOutput, error)
	Reload(ctx context.Context) error
}

// CommandOutput is the result of running a shell command.
type CommandOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandInfra executes shell commands on behalf of the Shell built-in tool.
type CommandInfra interface {
	Execute(ctx context.Context, command, cwd string, silent bool, envPassthrough []string) (CommandOutput, error)
}

// FileReader reads tracked file contents for change detection. Satisfied
// trivially by os.ReadFile in production; fakeable in tests.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// ChatResponseChannel is the bounded async sink for ChatResponse events. The
// orchestrator must drop sends if the channel is closed rather than fail the
// turn — implementations should make Send idempotent-safe against that.
type ChatResponseChannel interface {
	Send(ctx context.Context, resp ChatResponse) bool
}

// Skill is a loaded skill's metadata, the shape a SkillRepository hands
// back to the Skill built-in tool.
type Skill struct {
	Name        string
	Description string
	Trigger     string
	Path        string
}

// SkillRepository loads the set of skills the Skill built-in tool can
// invoke by name. How skills are discovered and loaded (filesystem, remote
// catalog, ...) is an external collaborator outside this module's scope —
// this port is only the seam the tool dispatches through.
type SkillRepository interface {
	LoadSkills(ctx context.Context) ([]Skill, error)
}
