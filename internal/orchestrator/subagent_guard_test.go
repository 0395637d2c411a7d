package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/xonecas/forge/internal/domain"
)

func TestSubAgentGuardAllowsWithinDepth(t *testing.T) {
	g := NewSubAgentGuard(1)
	ctx, err := g.Enter(context.Background(), "child")
	if err != nil {
		t.Fatalf("Enter returned error: %v", err)
	}
	if Depth(ctx) != 1 {
		t.Fatalf("Depth() = %d, want 1", Depth(ctx))
	}
}

func TestSubAgentGuardRejectsBeyondMaxDepth(t *testing.T) {
	g := NewSubAgentGuard(1)
	ctx, err := g.Enter(context.Background(), "child")
	if err != nil {
		t.Fatalf("first Enter returned error: %v", err)
	}

	_, err = g.Enter(ctx, "grandchild")
	if !errors.Is(err, domain.ErrNotAllowed) {
		t.Fatalf("expected ErrNotAllowed for a second level of nesting, got %v", err)
	}
}

func TestSubAgentGuardRejectsCycles(t *testing.T) {
	g := NewSubAgentGuard(5)
	ctx, err := g.Enter(context.Background(), "a")
	if err != nil {
		t.Fatalf("Enter returned error: %v", err)
	}
	ctx, err = g.Enter(ctx, "b")
	if err != nil {
		t.Fatalf("Enter returned error: %v", err)
	}

	_, err = g.Enter(ctx, "a")
	if !errors.Is(err, domain.ErrNotAllowed) {
		t.Fatalf("expected ErrNotAllowed for a repeated agent id, got %v", err)
	}
}

func TestSubAgentGuardDepthZeroAtRoot(t *testing.T) {
	if Depth(context.Background()) != 0 {
		t.Fatal("expected Depth() == 0 for a context with no recorded ancestry")
	}
}
