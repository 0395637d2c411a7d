package orchestrator

import (
	"context"
	"fmt"

	"github.com/xonecas/forge/internal/domain"
)

// chainKey is the context key carrying the ancestry of agent ids a
// sub-agent dispatch has descended through, used by SubAgentGuard to detect
// depth overruns and cycles across nested spawns.
type chainKey struct{}

// SubAgentGuard generalizes mcptools.MaxSubAgentDepth's flat depth-1 cap
// (a sub-agent may never itself spawn a sub-agent) into a configurable
// parent-chain depth and cycle guard, so a registry composed from multiple
// agent configurations can allow deeper nesting when explicitly configured
// while still refusing any cycle (an agent id reappearing in its own
// ancestry) regardless of depth.
type SubAgentGuard struct {
	MaxDepth int
}

// NewSubAgentGuard builds a guard capping nesting at maxDepth. A maxDepth of
// 1 reproduces the mcptools SubAgent tool's behavior: the root agent (depth
// 0) may spawn one level of sub-agent, which may not spawn further.
func NewSubAgentGuard(maxDepth int) *SubAgentGuard {
	return &SubAgentGuard{MaxDepth: maxDepth}
}

// Enter checks whether agentID may be spawned given ctx's existing ancestry,
// and if so returns a context carrying the extended chain for the spawned
// sub-agent's own dispatch.
func (g *SubAgentGuard) Enter(ctx context.Context, agentID domain.AgentID) (context.Context, error) {
	chain, _ := ctx.Value(chainKey{}).([]domain.AgentID)

	if len(chain) >= g.MaxDepth {
		return ctx, fmt.Errorf("%w: sub-agent nesting depth %d exceeds max %d", domain.ErrNotAllowed, len(chain)+1, g.MaxDepth)
	}
	for _, seen := range chain {
		if seen == agentID {
			return ctx, fmt.Errorf("%w: sub-agent cycle detected, %q already present in %v", domain.ErrNotAllowed, agentID, chain)
		}
	}

	extended := make([]domain.AgentID, len(chain)+1)
	copy(extended, chain)
	extended[len(chain)] = agentID
	return context.WithValue(ctx, chainKey{}, extended), nil
}

// Depth reports how many sub-agent levels ctx has already descended through.
func Depth(ctx context.Context) int {
	chain, _ := ctx.Value(chainKey{}).([]domain.AgentID)
	return len(chain)
}
