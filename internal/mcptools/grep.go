package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xonecas/forge/internal/filesearch"
	"github.com/xonecas/forge/internal/mcp"
)

const (
	defaultMaxSearchLines       = 200
	defaultMaxSearchResultBytes = 32 * 1024
)

// GrepArgs are the arguments for the Grep (Search) tool.
type GrepArgs struct {
	Pattern              string `json:"pattern"`
	ContentSearch        bool   `json:"content_search,omitempty"`
	MaxResults           int    `json:"max_results,omitempty"`
	CaseSensitive        bool   `json:"case_sensitive,omitempty"`
	StartLine            int    `json:"start_line,omitempty"`
	MaxSearchLines       int    `json:"max_search_lines,omitempty"`
	MaxSearchResultBytes int    `json:"max_search_result_bytes,omitempty"`
}

// NewGrepTool creates the grep (Search) tool definition.
func NewGrepTool() mcp.Tool {
	return mcp.Tool{
		Name:        "Grep",
		Description: "Search for files by name (regex) or search file contents (grep). Respects .gitignore. Use content_search=false for finding files, content_search=true for searching content. Output is truncated first by max_search_lines, then by max_search_result_bytes.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"pattern":                  {"type": "string", "description": "Pattern to search for (regex). For filenames: matches against basename or path. For content: matches line contents."},
				"content_search":           {"type": "boolean", "description": "If true, search file contents (grep); if false, search filenames (find). Default: false"},
				"max_results":              {"type": "integer", "description": "Maximum number of underlying matches to collect before truncation. Default: 100"},
				"case_sensitive":           {"type": "boolean", "description": "Enable case-sensitive matching. Default: false (case-insensitive)"},
				"start_line":               {"type": "integer", "description": "First output line to keep after the line-count truncation pass. Default: 0"},
				"max_search_lines":         {"type": "integer", "description": "Maximum output lines to keep. Default: 200"},
				"max_search_result_bytes":  {"type": "integer", "description": "Maximum cumulative bytes of output to keep, applied after the line cap. Default: 32768"}
			},
			"required": ["pattern"]
		}`),
	}
}

// MakeGrepHandler creates a handler for the Search tool, rooted at the
// process working directory. The underlying match count is bounded by
// MaxResults; the returned text is then truncated by lines and then by
// bytes, per filesearch.TruncateSearchOutput, and carries the
// {start, end, total, strategy} contract as a trailer.
func MakeGrepHandler() mcp.ToolHandler {
	return func(ctx context.Context, arguments json.RawMessage) (*mcp.ToolResult, error) {
		var args GrepArgs
		if err := json.Unmarshal(arguments, &args); err != nil {
			return toolError("invalid arguments: %v", err), nil
		}
		if args.Pattern == "" {
			return toolError("pattern cannot be empty"), nil
		}
		if args.MaxResults <= 0 {
			args.MaxResults = 100
		}
		if args.MaxSearchLines <= 0 {
			args.MaxSearchLines = defaultMaxSearchLines
		}
		if args.MaxSearchResultBytes <= 0 {
			args.MaxSearchResultBytes = defaultMaxSearchResultBytes
		}

		cwd, err := os.Getwd()
		if err != nil {
			return toolError("failed to get working directory: %v", err), nil
		}

		searcher, err := filesearch.NewSearcher(cwd)
		if err != nil {
			return toolError("failed to create searcher: %v", err), nil
		}

		results, err := searcher.Search(ctx, filesearch.Options{
			Pattern:       args.Pattern,
			ContentSearch: args.ContentSearch,
			MaxResults:    args.MaxResults,
			CaseSensitive: args.CaseSensitive,
			RootDir:       cwd,
		})
		if err != nil {
			return toolError("search failed: %v", err), nil
		}

		if len(results) == 0 {
			return toolText("No matches found"), nil
		}

		lines := formatMatches(results, args.ContentSearch)
		truncated := filesearch.TruncateSearchOutput(lines, args.StartLine, args.MaxSearchLines, args.MaxSearchResultBytes)

		var output strings.Builder
		noun := "file(s)"
		if args.ContentSearch {
			noun = "match(es)"
		}
		fmt.Fprintf(&output, "Found %d %s:\n\n", truncated.Total, noun)
		for _, line := range truncated.Data {
			output.WriteString(line)
			output.WriteString("\n")
		}
		if truncated.Strategy != filesearch.TruncationFull {
			fmt.Fprintf(&output, "\n(Truncated by %s: showing lines %d-%d of %d total. Narrow the pattern or adjust start_line/max_search_lines/max_search_result_bytes to see more.)",
				truncated.Strategy, truncated.Start, truncated.End, truncated.Total)
		}

		return toolText(output.String()), nil
	}
}

func formatMatches(results []filesearch.Result, contentSearch bool) []string {
	lines := make([]string, len(results))
	for i, r := range results {
		if contentSearch {
			lines[i] = fmt.Sprintf("%s:%d:%s", r.Path, r.Line, r.Content)
		} else {
			lines[i] = r.Path
		}
	}
	return lines
}
