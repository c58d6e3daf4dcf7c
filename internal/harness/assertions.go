package harness

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/roach88/reconcile/internal/engine"
	"github.com/roach88/reconcile/internal/ir"
	"github.com/roach88/reconcile/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Dump     any    // Value dumped with spew for context, may be nil
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Dump != nil {
		fmt.Fprintf(&buf, "\nContext:\n%s", spewConfig.Sdump(e.Dump))
	}
	return buf.String()
}

// spewConfig keeps dumps stable across runs.
var spewConfig = spew.ConfigState{
	Indent:                  "  ",
	SortKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// AssertionContext provides the store for schedule assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions runs every assertion against the result and returns
// the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertOutcome:
			err = expectString(a.Type, a.Expect, string(result.Run.Result.Outcome), result.Run.Result)
		case AssertRunStatus:
			err = expectString(a.Type, a.Expect, string(result.Run.Result.RunStatus), result.Run.Result)
		case AssertNextRecompute:
			err = expectTime(a.Type, a.Expect, result.Run.NextRecompute)
		case AssertOutput:
			err = assertOutput(result.Run, a)
		case AssertOutputAbsent:
			err = assertOutputAbsent(result.Run, a)
		case AssertProjectionStatus:
			pr := result.Run.Projections[a.Projection]
			err = expectString(a.Type, a.Expect, string(pr.Result.RunStatus), pr.Result)
		case AssertFullShadowLoads:
			pr := result.Run.Projections[a.Projection]
			if pr.FullShadowLoads != a.Count {
				err = &AssertionError{
					Type:     a.Type,
					Expected: fmt.Sprintf("%d full projection loads for projection %d", a.Count, a.Projection),
					Actual:   fmt.Sprintf("%d", pr.FullShadowLoads),
				}
			}
		case AssertSchedule:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: schedule requires database context", i)
			} else {
				err = assertSchedule(actx, result.Run.FocusOID, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func expectString(kind, expected, actual string, dump any) error {
	if expected == actual {
		return nil
	}
	return &AssertionError{Type: kind, Expected: expected, Actual: actual, Dump: dump}
}

func expectTime(kind, expected string, actual *time.Time) error {
	got := NoRecompute
	if actual != nil {
		got = ir.FormatTime(*actual)
	}
	if expected == NoRecompute {
		return expectString(kind, expected, got, nil)
	}

	want, err := ir.ParseTime(expected)
	if err != nil {
		return fmt.Errorf("%s: invalid expected time %q: %w", kind, expected, err)
	}
	if actual == nil || !want.Equal(*actual) {
		return &AssertionError{Type: kind, Expected: ir.FormatTime(want), Actual: got}
	}
	return nil
}

// outputAt returns the values at "<group>.<name>" of one projection.
func outputAt(run *engine.Run, index int, path string) (ir.IRValue, bool) {
	group, name, ok := strings.Cut(path, ".")
	if !ok {
		return nil, false
	}
	outputs := run.Projections[index].Outputs
	groupObj, ok := outputs[group].(ir.IRObject)
	if !ok {
		return nil, false
	}
	v, ok := groupObj[name]
	return v, ok
}

// assertOutput compares values by canonical JSON so references compare by content.
func assertOutput(run *engine.Run, a Assertion) error {
	expected, err := ir.FromAny(a.Values)
	if err != nil {
		return fmt.Errorf("output %s: invalid expected values: %w", a.Path, err)
	}
	want, err := ir.MarshalCanonical(expected)
	if err != nil {
		return fmt.Errorf("output %s: %w", a.Path, err)
	}

	actual, ok := outputAt(run, a.Projection, a.Path)
	if !ok {
		return &AssertionError{
			Type:     AssertOutput,
			Expected: fmt.Sprintf("%s = %s on projection %d", a.Path, want, a.Projection),
			Actual:   "no output",
			Dump:     run.Projections[a.Projection].Outputs,
		}
	}
	got, err := ir.MarshalCanonical(actual)
	if err != nil {
		return fmt.Errorf("output %s: %w", a.Path, err)
	}
	if string(got) != string(want) {
		return &AssertionError{
			Type:     AssertOutput,
			Expected: fmt.Sprintf("%s = %s", a.Path, want),
			Actual:   string(got),
			Dump:     actual,
		}
	}
	return nil
}

func assertOutputAbsent(run *engine.Run, a Assertion) error {
	actual, ok := outputAt(run, a.Projection, a.Path)
	if !ok {
		return nil
	}
	return &AssertionError{
		Type:     AssertOutputAbsent,
		Expected: fmt.Sprintf("no output at %s on projection %d", a.Path, a.Projection),
		Actual:   "output present",
		Dump:     actual,
	}
}

func assertSchedule(actx *AssertionContext, focusOID string, a Assertion) error {
	entries, err := actx.Store.Schedule(actx.Ctx, focusOID)
	if err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	for _, entry := range entries {
		if entry.ConstructionID == a.Construction {
			return expectTime(AssertSchedule, a.Expect, &entry.NextRecompute)
		}
	}
	return expectTime(AssertSchedule, a.Expect, nil)
}
