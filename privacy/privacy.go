// Package privacy evaluates viewer policies in front of a graph, and binds
// each viewer to the graph subset it may read and write.
package privacy

import (
	"context"
	"errors"
	"fmt"
)

// Policy decision sentinel errors.
//
// Rules return them, possibly wrapped, to steer the evaluation. Use
// errors.Is() to check for these values:
//
//	if errors.Is(err, privacy.Allow) { ... }
//	if errors.Is(err, privacy.Deny) { ... }
//	if errors.Is(err, privacy.Skip) { ... }
var (
	// Allow may be returned by rules to indicate that the policy
	// evaluation should terminate with an allow decision.
	Allow = errors.New("datagraph/privacy: allow rule")

	// Deny may be returned by rules to indicate that the policy
	// evaluation should terminate with a deny decision.
	Deny = errors.New("datagraph/privacy: deny rule")

	// Skip may be returned by rules to indicate that the policy
	// evaluation should continue to the next rule in the chain.
	Skip = errors.New("datagraph/privacy: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted wrapped Deny decision.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// Op is the kind of access a request asks for.
type Op string

// Operations checked by a Guard.
const (
	OpRead  Op = "read"
	OpWrite Op = "write"
)

// Request is what a rule decides on.
type Request struct {
	Op Op
	// Subset is the graph subset the viewer is bound to.
	Subset string
	// Paths are the requested read paths. Empty for writes.
	Paths []string
	// Attrs is the write payload. Nil for reads.
	Attrs any
}

// Attr returns the top-level attribute of a map payload.
func (r *Request) Attr(name string) (any, bool) {
	m, ok := r.Attrs.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := m[name]
	return v, ok
}

// Rule decides on a request.
type Rule interface {
	Eval(context.Context, *Request) error
}

// RuleFunc type is an adapter which allows the use of ordinary functions as
// rules.
type RuleFunc func(context.Context, *Request) error

// Eval returns f(ctx, r).
func (f RuleFunc) Eval(ctx context.Context, r *Request) error {
	return f(ctx, r)
}

// AlwaysAllowRule returns a rule that always returns an Allow decision.
func AlwaysAllowRule() Rule {
	return fixedDecision{Allow}
}

// AlwaysDenyRule returns a rule that always returns a Deny decision.
func AlwaysDenyRule() Rule {
	return fixedDecision{Deny}
}

// ContextRule creates a rule from a context evaluation function. Returning
// nil is equivalent to returning Skip.
func ContextRule(eval func(context.Context) error) Rule {
	return RuleFunc(func(ctx context.Context, _ *Request) error {
		return eval(ctx)
	})
}

// OnOperation evaluates the given rule only on the given operation.
func OnOperation(rule Rule, op Op) Rule {
	return RuleFunc(func(ctx context.Context, r *Request) error {
		if r.Op == op {
			return rule.Eval(ctx, r)
		}
		return Skip
	})
}

// AllowOperationRule returns a rule allowing the given operation.
func AllowOperationRule(op Op) Rule {
	return OnOperation(AlwaysAllowRule(), op)
}

// DenyOperationRule returns a rule denying the given operation.
func DenyOperationRule(op Op) Rule {
	return OnOperation(RuleFunc(func(_ context.Context, r *Request) error {
		return Denyf("datagraph/privacy: operation %s is not allowed", r.Op)
	}), op)
}

// Policy is an ordered list of rules. The first rule returning something
// other than nil or Skip decides; Allow becomes nil. A policy where every
// rule skips allows the request.
type Policy []Rule

// Eval evaluates the policy. A decision attached to ctx with DecisionContext
// takes precedence over the rules.
func (p Policy) Eval(ctx context.Context, r *Request) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, rule := range p {
		switch decision := rule.Eval(ctx, r); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return nil
}

type decisionCtxKey struct{}

// DecisionContext creates a new context from the given parent context with
// a policy decision attach to it.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext retrieves the policy decision from the context.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	if ok && errors.Is(decision, Allow) {
		decision = nil
	}
	return decision, ok
}

type fixedDecision struct {
	decision error
}

func (f fixedDecision) Eval(context.Context, *Request) error {
	return f.decision
}
