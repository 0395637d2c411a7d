// Package compact implements the Compactor (C3): it observes a context's
// token count and, once an agent's compaction threshold is crossed, replaces
// the middle of the context with a model-generated summary while preserving
// the boundary invariants the orchestrator and tool registry depend on.
//
// The rendering pipeline below is grounded on
// original_source/crates/forge_app/src/transformers/{drop_role,dedupe_role,
// compaction}.rs: the same Transformer-composition shape, generalized from
// the Rust crate's ContextSummary/SummaryBlock model to this module's
// domain.ContextMessage one.
package compact

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xonecas/forge/internal/domain"
)

// SummaryToolCall renders a single tool invocation for the summary prompt.
type SummaryToolCall struct {
	Name    domain.ToolName
	Path    string // tracked file path; empty if this call doesn't touch one
	Success bool
	Detail  string // e.g. "read(/src/main.go)"
}

// SummaryContent is one rendered unit inside a SummaryBlock: free text, or a
// tool call folded together with its result.
type SummaryContent struct {
	Text string
	Tool *SummaryToolCall
}

func textContent(s string) SummaryContent { return SummaryContent{Text: s} }

// Render returns the content's display text, independent of whether it came
// from plain text or a tool call.
func (c SummaryContent) Render() string {
	if c.Tool != nil {
		return c.Tool.Detail
	}
	return c.Text
}

// SummaryBlock groups consecutive content from a single message role.
type SummaryBlock struct {
	Role     domain.Role
	Contents []SummaryContent
}

// ContextSummary is the rendering of a context's middle slice, ready for the
// transformer pipeline and then for flattening into the summarization prompt.
type ContextSummary struct {
	Messages []SummaryBlock
}

// renderMiddle turns a raw slice of domain.ContextMessage into a
// ContextSummary, folding each assistant tool call together with the
// ToolMessage that answers it into a single SummaryToolCall content.
func renderMiddle(messages []domain.ContextMessage) ContextSummary {
	results := make(map[string]domain.ToolMessage)
	for _, m := range messages {
		if tm, ok := m.(domain.ToolMessage); ok {
			results[tm.CallID] = tm
		}
	}

	var out []SummaryBlock
	for _, m := range messages {
		switch msg := m.(type) {
		case domain.TextMessage:
			var contents []SummaryContent
			if strings.TrimSpace(msg.Content) != "" {
				contents = append(contents, textContent(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				contents = append(contents, toolCallContent(tc, results))
			}
			if len(contents) == 0 {
				continue
			}
			out = append(out, SummaryBlock{Role: msg.Role, Contents: contents})
		case domain.ToolMessage:
			// Folded into the assistant block above; nothing to render on its own.
		case domain.ImageMessage:
			out = append(out, SummaryBlock{Role: msg.Role, Contents: []SummaryContent{textContent("[image]")}})
		}
	}
	return ContextSummary{Messages: out}
}

func toolCallContent(tc domain.ToolCallFull, results map[string]domain.ToolMessage) SummaryContent {
	path := extractPath(tc.Arguments)
	success := true
	if tc.CallID != nil {
		if res, ok := results[*tc.CallID]; ok {
			success = !res.Output.IsError
		}
	}
	detail := string(tc.Name) + "()"
	if path != "" {
		detail = fmt.Sprintf("%s(%s)", tc.Name, path)
	}
	return SummaryContent{Tool: &SummaryToolCall{Name: tc.Name, Path: path, Success: success, Detail: detail}}
}

func extractPath(args json.RawMessage) string {
	if len(args) == 0 {
		return ""
	}
	var fields struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &fields); err != nil {
		return ""
	}
	return fields.Path
}

// DropRole removes every block matching role.
type DropRole struct {
	Role domain.Role
}

// Transform implements the transformer signature the compactor pipe composes.
func (t DropRole) Transform(s ContextSummary) ContextSummary {
	kept := make([]SummaryBlock, 0, len(s.Messages))
	for _, b := range s.Messages {
		if b.Role == t.Role {
			continue
		}
		kept = append(kept, b)
	}
	return ContextSummary{Messages: kept}
}

// DedupeRole keeps only the first block in each consecutive run of role,
// draining every content of the kept block except the first.
type DedupeRole struct {
	Role domain.Role
}

func (t DedupeRole) Transform(s ContextSummary) ContextSummary {
	var kept []SummaryBlock
	lastRole := domain.RoleSystem
	first := true
	for _, b := range s.Messages {
		role := b.Role
		if role == t.Role {
			if first || lastRole != t.Role {
				block := b
				if len(block.Contents) > 1 {
					block.Contents = block.Contents[:1]
				}
				kept = append(kept, block)
			}
		} else {
			kept = append(kept, b)
		}
		lastRole = role
		first = false
	}
	return ContextSummary{Messages: kept}
}

// TrimContextSummary keeps, for each tracked file path, only the content
// representing the last operation on that path; contents with no path are
// always kept. A block left with no contents after trimming is dropped.
type TrimContextSummary struct{}

func (TrimContextSummary) Transform(s ContextSummary) ContextSummary {
	lastForPath := make(map[string]int) // path -> global content index of its last occurrence
	type located struct {
		blockIdx, contentIdx int
		content              SummaryContent
	}
	var flat []located
	idx := 0
	for bi, b := range s.Messages {
		for ci, c := range b.Contents {
			flat = append(flat, located{bi, ci, c})
			if c.Tool != nil && c.Tool.Path != "" {
				lastForPath[c.Tool.Path] = idx
			}
			idx++
		}
	}

	kept := make([]bool, len(flat))
	for i, l := range flat {
		if l.content.Tool == nil || l.content.Tool.Path == "" {
			kept[i] = true
			continue
		}
		kept[i] = lastForPath[l.content.Tool.Path] == i
	}

	blocks := make([]SummaryBlock, 0, len(s.Messages))
	ptr := 0
	for _, b := range s.Messages {
		var contents []SummaryContent
		for range b.Contents {
			if kept[ptr] {
				contents = append(contents, flat[ptr].content)
			}
			ptr++
		}
		if len(contents) > 0 {
			blocks = append(blocks, SummaryBlock{Role: b.Role, Contents: contents})
		}
	}
	return ContextSummary{Messages: blocks}
}

// StripWorkingDir strips the working directory prefix from any rendered
// file path, so summaries read as project-relative rather than absolute.
type StripWorkingDir struct {
	WorkingDir string
}

func (t StripWorkingDir) Transform(s ContextSummary) ContextSummary {
	if t.WorkingDir == "" {
		return s
	}
	prefix := filepath.Clean(t.WorkingDir) + string(filepath.Separator)
	blocks := make([]SummaryBlock, len(s.Messages))
	for bi, b := range s.Messages {
		contents := make([]SummaryContent, len(b.Contents))
		for ci, c := range b.Contents {
			if c.Tool == nil || c.Tool.Path == "" {
				contents[ci] = c
				continue
			}
			tool := *c.Tool
			if strings.HasPrefix(tool.Path, prefix) {
				tool.Path = strings.TrimPrefix(tool.Path, prefix)
			}
			tool.Detail = fmt.Sprintf("%s(%s)", tool.Name, tool.Path)
			contents[ci] = SummaryContent{Tool: &tool}
		}
		blocks[bi] = SummaryBlock{Role: b.Role, Contents: contents}
	}
	return ContextSummary{Messages: blocks}
}

// Render flattens a ContextSummary into the plain-text block the
// summarization prompt embeds.
func Render(s ContextSummary) string {
	var sb strings.Builder
	for _, b := range s.Messages {
		fmt.Fprintf(&sb, "### %s\n", b.Role)
		for _, c := range b.Contents {
			sb.WriteString(c.Render())
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
