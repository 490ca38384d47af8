package gtscontext

import "context"

type ctxkey string

const (
	barebonesKey       = ctxkey("barebones")
	recursionBudgetKey = ctxkey("recursion_budget")
)

// Barebones will return whether the "barebones" flag was set in this context,
// indicating that only a barebones model was requested (e.g. database models).
func Barebones(ctx context.Context) bool {
	_, ok := ctx.Value(barebonesKey).(struct{})
	return ok
}

// SetBarebones wraps the context to set the "barebones" flag, to return true to Barebones().
func SetBarebones(ctx context.Context) context.Context {
	return context.WithValue(ctx, barebonesKey, struct{}{})
}

// WithRecursionBudget attaches a dereference recursion budget to ctx
// (§4.2). Each outbound fetch needed to resolve a referenced object
// should call ConsumeRecursionBudget on the context it was handed.
func WithRecursionBudget(ctx context.Context, n int) context.Context {
	budget := n
	return context.WithValue(ctx, recursionBudgetKey, &budget)
}

// ConsumeRecursionBudget decrements the recursion budget attached to
// ctx and reports whether budget remained before the decrement. A
// context with no budget attached is treated as unbounded (true).
func ConsumeRecursionBudget(ctx context.Context) bool {
	budget, ok := ctx.Value(recursionBudgetKey).(*int)
	if !ok {
		return true
	}
	if *budget <= 0 {
		return false
	}
	*budget--
	return true
}
