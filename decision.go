package rebar

import "context"

// Decision allows bypassing graph walks for admin tools and tests.
// Decisions are set at Checker construction time via WithDecision, making
// the bypass explicit and visible in code.
type Decision int

type decisionContextKey struct{}

const (
	// DecisionUnset means no override - perform the normal graph walk.
	DecisionUnset Decision = iota

	// DecisionAllow bypasses checks and always returns true.
	// Use for admin tools, background jobs, or testing authorized paths.
	DecisionAllow

	// DecisionDeny bypasses checks and always returns false.
	// Use for testing unauthorized code paths without store setup.
	DecisionDeny
)

// WithDecisionContext returns a new context carrying the given decision.
// Prefer the WithDecision option for explicit control; use context-based
// decisions when the override needs to propagate through layers where
// passing a Checker instance is impractical.
//
// Note: the Checker only consults this value when constructed with
// WithContextDecision.
func WithDecisionContext(ctx context.Context, decision Decision) context.Context {
	return context.WithValue(ctx, decisionContextKey{}, decision)
}

// GetDecisionContext retrieves the decision from context.
// Returns DecisionUnset if no decision is set.
func GetDecisionContext(ctx context.Context) Decision {
	if decision, ok := ctx.Value(decisionContextKey{}).(Decision); ok {
		return decision
	}
	return DecisionUnset
}
