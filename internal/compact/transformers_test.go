package compact

import (
	"testing"

	"github.com/xonecas/forge/internal/domain"
)

func textBlock(role domain.Role, text string) SummaryBlock {
	return SummaryBlock{Role: role, Contents: []SummaryContent{textContent(text)}}
}

func TestDropRoleRemovesSystemBlocks(t *testing.T) {
	s := ContextSummary{Messages: []SummaryBlock{
		textBlock(domain.RoleSystem, "system prompt"),
		textBlock(domain.RoleUser, "hi"),
		textBlock(domain.RoleAssistant, "hello"),
	}}
	got := DropRole{Role: domain.RoleSystem}.Transform(s)
	if len(got.Messages) != 2 {
		t.Fatalf("got %d blocks, want 2", len(got.Messages))
	}
	if got.Messages[0].Role != domain.RoleUser || got.Messages[1].Role != domain.RoleAssistant {
		t.Fatalf("unexpected roles after drop: %+v", got.Messages)
	}
}

func TestDedupeRoleKeepsFirstOfConsecutiveRun(t *testing.T) {
	s := ContextSummary{Messages: []SummaryBlock{
		textBlock(domain.RoleUser, "u1"),
		textBlock(domain.RoleUser, "u2"),
		textBlock(domain.RoleAssistant, "a1"),
		textBlock(domain.RoleUser, "u3"),
		textBlock(domain.RoleUser, "u4"),
	}}
	got := DedupeRole{Role: domain.RoleUser}.Transform(s)
	if len(got.Messages) != 3 {
		t.Fatalf("got %d blocks, want 3: %+v", len(got.Messages), got.Messages)
	}
	if got.Messages[0].Contents[0].Text != "u1" || got.Messages[2].Contents[0].Text != "u3" {
		t.Fatalf("unexpected kept content: %+v", got.Messages)
	}
}

func TestDedupeRolePreservesOtherRoles(t *testing.T) {
	s := ContextSummary{Messages: []SummaryBlock{
		textBlock(domain.RoleSystem, "sys"),
		textBlock(domain.RoleAssistant, "a1"),
		textBlock(domain.RoleUser, "u1"),
	}}
	got := DedupeRole{Role: domain.RoleUser}.Transform(s)
	if len(got.Messages) != 3 {
		t.Fatalf("expected untouched non-matching roles, got %+v", got.Messages)
	}
}

func TestDedupeRoleDrainsAllButFirstContent(t *testing.T) {
	s := ContextSummary{Messages: []SummaryBlock{
		{Role: domain.RoleUser, Contents: []SummaryContent{textContent("a"), textContent("b"), textContent("c")}},
		textBlock(domain.RoleAssistant, "a1"),
	}}
	got := DedupeRole{Role: domain.RoleUser}.Transform(s)
	if len(got.Messages[0].Contents) != 1 || got.Messages[0].Contents[0].Text != "a" {
		t.Fatalf("expected only first content kept, got %+v", got.Messages[0].Contents)
	}
}

func TestTrimContextSummaryKeepsOnlyLastOperationPerPath(t *testing.T) {
	s := ContextSummary{Messages: []SummaryBlock{
		{Role: domain.RoleAssistant, Contents: []SummaryContent{{Tool: &SummaryToolCall{Name: "read", Path: "/src/main.go", Detail: "read(/src/main.go)"}}}},
		{Role: domain.RoleAssistant, Contents: []SummaryContent{{Tool: &SummaryToolCall{Name: "write", Path: "/src/main.go", Detail: "write(/src/main.go)"}}}},
		{Role: domain.RoleAssistant, Contents: []SummaryContent{{Tool: &SummaryToolCall{Name: "read", Path: "/src/lib.go", Detail: "read(/src/lib.go)"}}}},
	}}
	got := TrimContextSummary{}.Transform(s)
	if len(got.Messages) != 2 {
		t.Fatalf("got %d blocks, want 2 (dropped stale /src/main.go read): %+v", len(got.Messages), got.Messages)
	}
	if got.Messages[0].Contents[0].Tool.Detail != "write(/src/main.go)" {
		t.Fatalf("expected the last op on /src/main.go to survive, got %+v", got.Messages[0])
	}
}

func TestTrimContextSummaryKeepsPathlessContent(t *testing.T) {
	s := ContextSummary{Messages: []SummaryBlock{
		textBlock(domain.RoleAssistant, "no path here"),
	}}
	got := TrimContextSummary{}.Transform(s)
	if len(got.Messages) != 1 {
		t.Fatalf("pathless content should never be trimmed, got %+v", got.Messages)
	}
}

func TestStripWorkingDirStripsMatchingPrefix(t *testing.T) {
	s := ContextSummary{Messages: []SummaryBlock{
		{Role: domain.RoleAssistant, Contents: []SummaryContent{{Tool: &SummaryToolCall{Name: "read", Path: "/home/user/project/src/main.go"}}}},
	}}
	got := StripWorkingDir{WorkingDir: "/home/user/project"}.Transform(s)
	if got.Messages[0].Contents[0].Tool.Path != "src/main.go" {
		t.Fatalf("got path %q, want %q", got.Messages[0].Contents[0].Tool.Path, "src/main.go")
	}
}

func TestRenderFlattensBlocksToText(t *testing.T) {
	s := ContextSummary{Messages: []SummaryBlock{
		textBlock(domain.RoleUser, "hello"),
	}}
	out := Render(s)
	if out == "" {
		t.Fatalf("expected non-empty rendering")
	}
}
