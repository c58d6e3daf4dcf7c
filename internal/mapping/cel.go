package mapping

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"

	"github.com/roach88/reconcile/internal/fault"
	"github.com/roach88/reconcile/internal/ir"
)

// DefaultCostLimit bounds the work a single expression may do.
const DefaultCostLimit uint64 = 1000000

// CELEvaluator evaluates mapping expressions written in CEL.
// Compiled programs are cached by expression text; safe for concurrent use.
type CELEvaluator struct {
	env       *cel.Env
	costLimit uint64

	mu       sync.RWMutex
	programs map[string]cel.Program
}

var _ ExpressionEvaluator = (*CELEvaluator)(nil)

// CELOption configures a CELEvaluator.
type CELOption func(*CELEvaluator)

// WithCostLimit overrides DefaultCostLimit.
func WithCostLimit(limit uint64) CELOption {
	return func(e *CELEvaluator) {
		e.costLimit = limit
	}
}

// NewCELEvaluator creates an evaluator with focus, projection, construction
// and attributes declared as dynamic variables.
func NewCELEvaluator(opts ...CELOption) (*CELEvaluator, error) {
	decls := make([]cel.EnvOption, 0, len(VariableNames))
	for _, name := range VariableNames {
		decls = append(decls, cel.Variable(name, cel.DynType))
	}
	env, err := cel.NewEnv(decls...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	e := &CELEvaluator{
		env:       env,
		costLimit: DefaultCostLimit,
		programs:  make(map[string]cel.Program),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Compile checks and caches expression. Compile errors are configuration
// errors: the mapping itself is wrong.
func (e *CELEvaluator) Compile(expression string) error {
	_, err := e.program(expression)
	return err
}

func (e *CELEvaluator) program(expression string) (cel.Program, error) {
	e.mu.RLock()
	prog, ok := e.programs[expression]
	e.mu.RUnlock()
	if ok {
		return prog, nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, &fault.Error{
			Kind:    fault.KindConfiguration,
			Op:      "cel.compile",
			Message: fmt.Sprintf("expression %q", expression),
			Err:     issues.Err(),
		}
	}

	prog, err := e.env.Program(ast,
		cel.CostLimit(e.costLimit),
		cel.InterruptCheckFrequency(100),
	)
	if err != nil {
		return nil, &fault.Error{
			Kind:    fault.KindConfiguration,
			Op:      "cel.program",
			Message: fmt.Sprintf("expression %q", expression),
			Err:     err,
		}
	}

	e.mu.Lock()
	e.programs[expression] = prog
	e.mu.Unlock()
	return prog, nil
}

// Evaluate implements ExpressionEvaluator.
func (e *CELEvaluator) Evaluate(ctx context.Context, expression string, vars Variables) (ir.IRValue, error) {
	prog, err := e.program(expression)
	if err != nil {
		return nil, err
	}

	out, _, err := prog.ContextEval(ctx, vars.Activation())
	if err != nil {
		return nil, fault.ExpressionEvaluation("cel.eval", fmt.Errorf("expression %q: %w", expression, err))
	}

	native, err := fromCEL(out)
	if err != nil {
		return nil, fault.ExpressionEvaluation("cel.eval", fmt.Errorf("expression %q: %w", expression, err))
	}
	v, err := ir.FromAny(native)
	if err != nil {
		return nil, fault.ExpressionEvaluation("cel.eval", fmt.Errorf("expression %q: %w", expression, err))
	}
	return v, nil
}

// fromCEL converts a CEL value into plain Go values accepted by ir.FromAny.
func fromCEL(v ref.Val) (any, error) {
	switch val := v.(type) {
	case types.Null:
		return nil, nil
	case types.Bool:
		return bool(val), nil
	case types.Int:
		return int64(val), nil
	case types.Uint:
		return uint64(val), nil
	case types.String:
		return string(val), nil
	case types.Double:
		return nil, fmt.Errorf("floats are forbidden in IR: %v", float64(val))
	case traits.Mapper:
		out := make(map[string]any)
		it := val.Iterator()
		for it.HasNext() == types.True {
			k := it.Next()
			ks, ok := k.(types.String)
			if !ok {
				return nil, fmt.Errorf("map key must be a string, got %s", k.Type().TypeName())
			}
			elem, err := fromCEL(val.Get(k))
			if err != nil {
				return nil, fmt.Errorf("map[%q]: %w", string(ks), err)
			}
			out[string(ks)] = elem
		}
		return out, nil
	case traits.Lister:
		size, ok := val.Size().(types.Int)
		if !ok {
			return nil, fmt.Errorf("list has no size")
		}
		out := make([]any, 0, int(size))
		for i := types.Int(0); i < size; i++ {
			elem, err := fromCEL(val.Get(i))
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			out = append(out, elem)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported CEL result type %s", v.Type().TypeName())
	}
}
