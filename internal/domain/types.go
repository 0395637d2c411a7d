// Package domain defines the provider-neutral data model shared by the
// orchestrator, provider pipeline, tool registry, and compactor: contexts,
// messages, tool calls/results, agents, and conversations.
package domain

import (
	"encoding/json"
	"time"
)

// AgentID, ModelID, ProviderID, ConversationID, ToolName and ToolCallID are
// opaque identifiers. Equality is by value; no internal structure is assumed.
type (
	AgentID        string
	ModelID        string
	ProviderID     string
	ConversationID string
	ToolCallID     string
)

// ToolChoiceKind selects how the model must choose tools for a request.
type ToolChoiceKind int

const (
	ToolChoiceAuto ToolChoiceKind = iota
	ToolChoiceRequired
	ToolChoiceSpecific
	ToolChoiceNone
)

// ToolChoice is a tagged value: kind plus, for ToolChoiceSpecific, a tool name.
type ToolChoice struct {
	Kind ToolChoiceKind
	Name ToolName
}

// ReasoningConfig carries the agent's reasoning/thinking tunables.
type ReasoningConfig struct {
	Enabled     *bool
	Effort      string // "low" | "medium" | "high" | "" (unset)
	BudgetTokens int
}

// Usage tracks running token/cost counters for a conversation.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	CachedTokens     int
	TotalTokens      int
	Cost             float64
}

// Add returns the element-wise sum of two usages. Nil receivers/args are
// treated as zero so callers can accumulate without nil checks at call sites.
func (u *Usage) Add(other *Usage) *Usage {
	if other == nil {
		if u == nil {
			return &Usage{}
		}
		return u
	}
	base := Usage{}
	if u != nil {
		base = *u
	}
	base.PromptTokens += other.PromptTokens
	base.CompletionTokens += other.CompletionTokens
	base.CachedTokens += other.CachedTokens
	base.TotalTokens += other.TotalTokens
	base.Cost += other.Cost
	return &base
}

// ToolDefinition describes a tool the model may call.
type ToolDefinition struct {
	Name        ToolName
	Description string
	Parameters  json.RawMessage // JSON Schema
}

// Context is the provider-neutral, ordered message list plus request-shaping
// parameters sent to an LLM.
type Context struct {
	Messages    []ContextMessage
	Tools       []ToolDefinition
	ToolChoice  ToolChoice
	Temperature *float64
	TopP        *float64
	TopK        *int
	MaxTokens   *int
	Reasoning   *ReasoningConfig
	Usage       *Usage
	Stream      *bool
}

// Role identifies the speaker of a Text message.
type Role int

const (
	RoleSystem Role = iota
	RoleUser
	RoleAssistant
)

func (r Role) String() string {
	switch r {
	case RoleSystem:
		return "system"
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	default:
		return "unknown"
	}
}

// ContextMessage is the tagged variant from the spec: Text, Tool, or Image.
// Implementations: TextMessage, ToolMessage, ImageMessage.
type ContextMessage interface {
	isContextMessage()
}

// TextMessage is a system/user/assistant message, optionally carrying tool
// calls (assistant only) and usage (assistant only).
type TextMessage struct {
	Role             Role
	Content          string
	Model            ModelID
	ToolCalls        []ToolCallFull
	ReasoningDetails []ReasoningDetail
	Usage            *Usage
	ThoughtSignature string
	CreatedAt        time.Time
}

func (TextMessage) isContextMessage() {}

// ReasoningDetail carries a raw reasoning block from the provider, used by
// the Copilot reasoning projection transformer.
type ReasoningDetail struct {
	Type string // "reasoning.text" | "reasoning.encrypted"
	Text string
	Data string
}

// ToolMessage is the result of a single tool call.
type ToolMessage struct {
	CallID string
	Name   ToolName
	Output ToolOutput
}

func (ToolMessage) isContextMessage() {}

// ImageMessage carries an inline image as a message.
type ImageMessage struct {
	Role  Role
	Image Image
}

func (ImageMessage) isContextMessage() {}

// Image is an inline image reference (base64 data or URL) with a MIME type.
type Image struct {
	MimeType string
	Data     string // base64, or a URL if URL is set
	URL      string
}

// ToolCallFull is a single tool invocation requested by the model.
type ToolCallFull struct {
	Name      ToolName
	CallID    *string
	Arguments json.RawMessage
}

// ToolOutputValueKind tags a ToolOutputValue.
type ToolOutputValueKind int

const (
	ToolOutputText ToolOutputValueKind = iota
	ToolOutputImage
	ToolOutputEmpty
)

// ToolOutputValue is a single value within a ToolOutput.
type ToolOutputValue struct {
	Kind  ToolOutputValueKind
	Text  string
	Image Image
}

// ToolOutput is the result payload of a tool call.
type ToolOutput struct {
	IsError bool
	Values  []ToolOutputValue
}

// TextOutput builds a single-value, non-error ToolOutput from text.
func TextOutput(text string) ToolOutput {
	return ToolOutput{Values: []ToolOutputValue{{Kind: ToolOutputText, Text: text}}}
}

// EmptyOutput builds an empty, non-error ToolOutput.
func EmptyOutput() ToolOutput {
	return ToolOutput{Values: []ToolOutputValue{{Kind: ToolOutputEmpty}}}
}

// ToolResult pairs a tool call's identity with its output.
type ToolResult struct {
	Name   ToolName
	CallID string
	Output ToolOutput
}

// FileOperation records the most recent operation performed on a tracked
// path, used by Conversation.Metrics and by the orchestrator's ChangedFiles
// drift detection.
type FileOperation struct {
	Path        string
	Op          string // "read" | "write" | "remove" | "patch"
	ContentHash string
	Timestamp   time.Time
}

// Event is the trigger the orchestrator runs a turn in response to: a user
// message, a task-update, or a feedback suffix.
type Event struct {
	Suffix string // e.g. "/user_task_update"; empty for a plain user message
	Value  string
}

// IsTaskUpdate reports whether this event is the distinguished
// "/user_task_update" suffix UserPromptBuilder treats as always-task-init
// even when the context already carries user messages.
func (e Event) IsTaskUpdate() bool {
	return e.Suffix == "/user_task_update"
}

// CompactionConfig is an agent's compaction tunables.
type CompactionConfig struct {
	TokenThreshold  int
	RetentionWindow int
	SummaryPrompt   string
}

// EventKind names a hook subscription point.
type EventKind int

const (
	EventStart EventKind = iota
	EventResponse
)

// Agent is a named configuration under which the orchestrator runs a turn.
type Agent struct {
	ID           AgentID
	Model        ModelID
	Provider     ProviderID // empty means "use resolver default"
	Tools        map[ToolName]struct{} // nil means "no allow-list restriction"
	SystemPrompt string                // template source
	UserPrompt   string                // template source

	Temperature *float64
	TopP        *float64
	TopK        *int
	MaxTokens   *int
	Reasoning   *ReasoningConfig

	Compact CompactionConfig

	MaxTurns                uint64
	MaxToolFailuresPerTurn  uint64
	MaxRequestsPerTurn      uint64

	Subscribe map[EventKind]struct{}
}

// AllowsTool reports whether the agent's allow-list permits calling name.
// AttemptCompletion is always implicitly allowed regardless of allow-list.
func (a *Agent) AllowsTool(name ToolName) bool {
	if name == ToolNameAttemptCompletion {
		return true
	}
	if a.Tools == nil {
		return true
	}
	_, ok := a.Tools[name]
	return ok
}

// ToolNameAttemptCompletion is the well-known terminal-signal tool name.
const ToolNameAttemptCompletion ToolName = "attempt_completion"

// ConversationMetrics tracks per-conversation bookkeeping the spec's
// Conversation.metrics field names (supplemented from the original's
// session_metrics.rs — see SPEC_FULL §10).
type ConversationMetrics struct {
	StartedAt      time.Time
	FileOperations map[string]FileOperation
	FilesAccessed  map[string]struct{}
	TurnCount      uint64
}

// ConversationMetadata tracks creation/update timestamps.
type ConversationMetadata struct {
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Conversation is the persisted unit of orchestration state.
type Conversation struct {
	ID       ConversationID
	Title    string
	Context  *Context
	Metrics  ConversationMetrics
	Metadata ConversationMetadata
}

// McpServerConfig is the per-server MCP configuration the core consumes.
type McpServerConfig struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
	URL     string // non-empty for HTTP/SSE-based servers
}

// McpConfig is the full set of configured MCP servers.
type McpConfig struct {
	McpServers map[string]McpServerConfig
}

// McpServers is the resolved set of tools-by-server plus any per-server
// failures encountered while listing them.
type McpServers struct {
	ToolsByServer map[string][]ToolDefinition
	Failures      map[string]string
}

// Snapshot is a captured pre-image of a filesystem path, used to implement
// undo for mutating tools.
type Snapshot struct {
	Path      string
	Content   []byte // nil means the path did not exist (undo removes it)
	Existed   bool
	CreatedAt time.Time
}
