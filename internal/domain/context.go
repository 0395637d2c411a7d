package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidContext is wrapped by Context.Validate failures.
var ErrInvalidContext = errors.New("invalid context")

// Validate checks the ordering invariants the orchestrator and compactor must
// never break: system messages precede any non-system message, and every
// assistant tool_calls set is fully answered (one ToolMessage per call_id)
// before the next assistant message.
func (c *Context) Validate() error {
	seenNonSystem := false
	var pending map[string]struct{}

	for i, m := range c.Messages {
		switch msg := m.(type) {
		case TextMessage:
			if msg.Role == RoleSystem {
				if seenNonSystem {
					return fmt.Errorf("%w: system message at index %d follows a non-system message", ErrInvalidContext, i)
				}
			} else {
				seenNonSystem = true
			}
			if msg.Role == RoleAssistant {
				if len(pending) > 0 {
					return fmt.Errorf("%w: assistant message at index %d arrives with %d unanswered tool calls", ErrInvalidContext, i, len(pending))
				}
				if len(msg.ToolCalls) > 0 {
					pending = make(map[string]struct{}, len(msg.ToolCalls))
					for _, tc := range msg.ToolCalls {
						if tc.CallID != nil {
							pending[*tc.CallID] = struct{}{}
						}
					}
				}
			}
		case ToolMessage:
			seenNonSystem = true
			if _, ok := pending[msg.CallID]; !ok {
				return fmt.Errorf("%w: tool message at index %d answers unknown call_id %q", ErrInvalidContext, i, msg.CallID)
			}
			delete(pending, msg.CallID)
		case ImageMessage:
			if msg.Role == RoleSystem {
				if seenNonSystem {
					return fmt.Errorf("%w: system image message at index %d follows a non-system message", ErrInvalidContext, i)
				}
			} else {
				seenNonSystem = true
			}
		}
	}
	if len(pending) > 0 {
		return fmt.Errorf("%w: %d tool calls left unanswered at end of context", ErrInvalidContext, len(pending))
	}
	return nil
}

// ReflectionEnvelope builds the structured failure payload tool execution
// wraps every error in, so the model can self-correct on the next turn.
func ReflectionEnvelope(cause, reflection string) ToolOutput {
	text := fmt.Sprintf("<tool_call_error><cause>%s</cause><reflection>%s</reflection></tool_call_error>", cause, reflection)
	return ToolOutput{IsError: true, Values: []ToolOutputValue{{Kind: ToolOutputText, Text: text}}}
}

// TokenCount returns the context's best-known token count: the latest usage
// total if the last completion reported one, otherwise a rough estimate from
// message content length (roughly four characters per token, the common
// heuristic absent a model-specific tokenizer).
func (c *Context) TokenCount() int {
	if c.Usage != nil && c.Usage.TotalTokens > 0 {
		return c.Usage.TotalTokens
	}
	chars := 0
	for _, m := range c.Messages {
		switch msg := m.(type) {
		case TextMessage:
			chars += len(msg.Content)
			for _, tc := range msg.ToolCalls {
				chars += len(tc.Name) + len(tc.Arguments)
			}
		case ToolMessage:
			for _, v := range msg.Output.Values {
				chars += len(v.Text)
			}
		case ImageMessage:
			chars += len(msg.Image.Data)
		}
	}
	return chars / 4
}

// ShouldCompact reports whether a context at tokenCount has crossed this
// config's threshold and compaction should run before the next request. A
// zero TokenThreshold disables compaction entirely.
func (cc CompactionConfig) ShouldCompact(c *Context, tokenCount int) bool {
	if cc.TokenThreshold <= 0 {
		return false
	}
	return tokenCount >= cc.TokenThreshold && len(c.Messages) > 0
}

// LastMessageIndexNotSplittingPair walks backward from idx and returns the
// smallest index >= idx that does not land strictly between an assistant
// message's tool_calls and the last ToolMessage answering them. Used by the
// compactor to snap the tail-window start so a tool-call/tool-result pair is
// never split across the middle/tail boundary.
func (c *Context) LastMessageIndexNotSplittingPair(idx int) int {
	if idx <= 0 || idx >= len(c.Messages) {
		return idx
	}
	// Find the nearest preceding assistant message with tool calls.
	for j := idx - 1; j >= 0; j-- {
		tm, ok := c.Messages[j].(TextMessage)
		if !ok {
			continue
		}
		if tm.Role != RoleAssistant {
			break
		}
		if len(tm.ToolCalls) == 0 {
			break
		}
		// The pair is split if idx falls before all of this assistant's
		// tool results have been consumed.
		need := make(map[string]struct{}, len(tm.ToolCalls))
		for _, tc := range tm.ToolCalls {
			if tc.CallID != nil {
				need[*tc.CallID] = struct{}{}
			}
		}
		k := j + 1
		for k < len(c.Messages) && len(need) > 0 {
			if tmsg, ok := c.Messages[k].(ToolMessage); ok {
				delete(need, tmsg.CallID)
			}
			k++
		}
		if idx < k {
			return k
		}
		break
	}
	return idx
}
