package mapping

import (
	"context"

	"github.com/roach88/reconcile/internal/ir"
)

// Variable names bound for every expression.
const (
	VarFocus        = "focus"
	VarProjection   = "projection"
	VarConstruction = "construction"
	VarAttributes   = "attributes"
)

// VariableNames lists the bound variables in declaration order.
var VariableNames = []string{VarFocus, VarProjection, VarConstruction, VarAttributes}

// Variables are the named inputs of an expression. The projection snapshot,
// when present, is already bound here, so evaluation depends on nothing else.
type Variables map[string]ir.IRValue

// Activation renders the variables as plain Go values. Every declared
// variable is present; unbound ones are null.
func (v Variables) Activation() map[string]any {
	out := make(map[string]any, len(VariableNames))
	for _, name := range VariableNames {
		out[name] = nil
	}
	for name, val := range v {
		out[name] = ir.ToAny(val)
	}
	return out
}

// ExpressionEvaluator is the opaque expression runtime.
type ExpressionEvaluator interface {
	Evaluate(ctx context.Context, expression string, vars Variables) (ir.IRValue, error)
}

// EvaluatorFunc adapts a function to ExpressionEvaluator.
type EvaluatorFunc func(ctx context.Context, expression string, vars Variables) (ir.IRValue, error)

// Evaluate implements ExpressionEvaluator.
func (f EvaluatorFunc) Evaluate(ctx context.Context, expression string, vars Variables) (ir.IRValue, error) {
	return f(ctx, expression, vars)
}
