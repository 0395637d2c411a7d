package domain

import (
	"regexp"
	"strings"
)

// ToolName is the name a tool is registered and called under.
type ToolName string

var (
	toolNameSpecialRe = regexp.MustCompile(`[^a-z0-9_]+`)
	toolNameRunsRe    = regexp.MustCompile(`_+`)
)

// Sanitized lowercases, replaces runs of non-alphanumeric/underscore
// characters with a single underscore, collapses consecutive underscores,
// and trims leading/trailing underscores. E.g. "Camel Case-1!" -> "camel_case_1".
func (n ToolName) Sanitized() ToolName {
	lower := strings.ToLower(string(n))
	cleaned := toolNameSpecialRe.ReplaceAllString(lower, "_")
	collapsed := toolNameRunsRe.ReplaceAllString(cleaned, "_")
	return ToolName(strings.Trim(collapsed, "_"))
}

func (n ToolName) String() string { return string(n) }
