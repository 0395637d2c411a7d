package compact

import _ "embed"

// DefaultSummaryPrompt is used when an agent's CompactionConfig.SummaryPrompt
// is unset, matching the teacher's embedded-prompt-file convention in
// internal/llm/prompt.go.
//
//go:embed summary_prompt.md
var DefaultSummaryPrompt string
