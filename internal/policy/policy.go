// Package policy implements domain.PolicyEngine: a rule list evaluated in
// order against a pending Operation, grounded on
// original_source/crates/forge_domain/src/policies/{config,engine}.rs.
package policy

import (
	"context"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/xonecas/forge/internal/domain"
)

// Rule matches a single Operation kind against a glob pattern and carries
// the decision to return when it matches.
type Rule struct {
	Kind    domain.OperationKind
	Pattern string // glob against Path, Command, or URL depending on Kind
	Verdict domain.PolicyDecision
}

// Matches reports whether r applies to op.
func (r Rule) Matches(op domain.Operation) bool {
	if r.Kind != op.Kind {
		return false
	}
	subject := subjectFor(op)
	ok, err := doublestar.Match(r.Pattern, subject)
	return err == nil && ok
}

func subjectFor(op domain.Operation) string {
	switch op.Kind {
	case domain.OpRead, domain.OpWrite:
		return strings.TrimPrefix(op.Path, "/")
	case domain.OpExecute:
		return op.Command
	case domain.OpFetch:
		return op.URL
	default:
		return ""
	}
}

// Engine evaluates Rules in order: the first Deny or Confirm match wins
// immediately; otherwise the last Allow match wins; with no match at all (or
// no rules configured) the default verdict is Confirm, same as the
// original's "no policies configured" default.
type Engine struct {
	Rules []Rule
}

// New builds an Engine from an ordered rule list.
func New(rules ...Rule) *Engine {
	return &Engine{Rules: rules}
}

// Evaluate implements domain.PolicyEngine.
func (e *Engine) Evaluate(_ context.Context, op domain.Operation) (domain.PolicyDecision, error) {
	if len(e.Rules) == 0 {
		return domain.PolicyConfirm, nil
	}

	var lastAllow *domain.PolicyDecision
	for _, rule := range e.Rules {
		if !rule.Matches(op) {
			continue
		}
		switch rule.Verdict {
		case domain.PolicyDeny, domain.PolicyConfirm:
			return rule.Verdict, nil
		case domain.PolicyAllow:
			v := rule.Verdict
			lastAllow = &v
		}
	}

	if lastAllow != nil {
		return *lastAllow, nil
	}
	return domain.PolicyConfirm, nil
}
