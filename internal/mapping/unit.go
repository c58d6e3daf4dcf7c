// Package mapping evaluates a single declarative mapping against a bound
// variable set.
package mapping

import (
	"context"
	"fmt"

	"github.com/roach88/reconcile/internal/fault"
	"github.com/roach88/reconcile/internal/ir"
)

// Output is the value set a mapping produced for one projection item.
type Output struct {
	Path     ir.ItemPath   `json:"path"`
	Name     string        `json:"name"`
	Values   ir.IRArray    `json:"values"`
	Strength ir.Strength   `json:"strength,omitempty"`
	Window   ir.TimeWindow `json:"window"`
}

// Unit evaluates one mapping. It is a pure function of the mapping
// definition and the variables.
type Unit struct {
	Mapping   ir.ItemMapping
	Vars      Variables
	Evaluator ExpressionEvaluator
}

// NewUnit creates a unit for m.
func NewUnit(m ir.ItemMapping, vars Variables, ev ExpressionEvaluator) *Unit {
	return &Unit{Mapping: m, Vars: vars, Evaluator: ev}
}

// Evaluate runs the condition and the expression.
// Returns nil output when the condition is false or the expression yields
// no values. Evaluator errors are returned as is.
func (u *Unit) Evaluate(ctx context.Context) (*Output, error) {
	if u.Evaluator == nil {
		return nil, fault.IllegalState("mapping.evaluate", "mapping %q has no evaluator", u.Mapping.Name)
	}

	if u.Mapping.Condition != "" {
		ok, err := u.condition(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
	}

	raw, err := u.Evaluator.Evaluate(ctx, u.Mapping.Expression, u.Vars)
	if err != nil {
		return nil, err
	}

	values := Normalize(raw)
	if len(values) == 0 {
		return nil, nil
	}

	return &Output{
		Path:     u.Mapping.Path,
		Name:     u.Mapping.Name,
		Values:   values,
		Strength: u.Mapping.Strength,
		Window:   u.Mapping.Window,
	}, nil
}

func (u *Unit) condition(ctx context.Context) (bool, error) {
	v, err := u.Evaluator.Evaluate(ctx, u.Mapping.Condition, u.Vars)
	if err != nil {
		return false, err
	}
	switch b := v.(type) {
	case ir.IRBool:
		return bool(b), nil
	case ir.IRNull, nil:
		return false, nil
	default:
		return false, fault.ExpressionEvaluation("mapping.condition",
			fmt.Errorf("condition of %q must be boolean, got %T", u.Mapping.Name, v))
	}
}

// Normalize turns an expression result into a value list.
// Null and nested nulls are dropped; a scalar becomes a one-element list.
func Normalize(v ir.IRValue) ir.IRArray {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return nil
	case ir.IRArray:
		out := make(ir.IRArray, 0, len(val))
		for _, elem := range val {
			if _, isNull := elem.(ir.IRNull); isNull || elem == nil {
				continue
			}
			out = append(out, elem)
		}
		return out
	default:
		return ir.IRArray{v}
	}
}
