// Package construction evaluates all mappings of one construction against
// one projection, loading the full projection object only when a mapping
// needs it.
package construction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/reconcile/internal/activity"
	"github.com/roach88/reconcile/internal/fault"
	"github.com/roach88/reconcile/internal/ir"
	"github.com/roach88/reconcile/internal/mapping"
	"github.com/roach88/reconcile/internal/recompute"
)

// projectionAttributesPrefix marks mapping sources read from the projection.
const projectionAttributesPrefix = "projection.attributes."

type state int

const (
	stateUnevaluated state = iota
	stateEvaluated
)

// Evaluation is one run of evaluating a construction.
// Evaluate may be called exactly once.
type Evaluation struct {
	construction *ir.Construction
	pc           *ProjectionContext
	evaluator    mapping.ExpressionEvaluator

	forceFull bool

	state      state
	snapshot   *ir.Shadow
	fullLoaded bool
	loads      int
	tracker    *recompute.Tracker
	evaluated  *Evaluated
}

// Option configures an Evaluation.
type Option func(*Evaluation)

// WithFullShadow loads the full projection before the first mapping,
// whether or not any mapping asks for it.
func WithFullShadow() Option {
	return func(e *Evaluation) {
		e.forceFull = true
	}
}

// New creates an evaluation of c. pc may be nil when there is no projection context.
func New(c *ir.Construction, pc *ProjectionContext, ev mapping.ExpressionEvaluator, opts ...Option) *Evaluation {
	e := &Evaluation{
		construction: c,
		pc:           pc,
		evaluator:    ev,
		tracker:      recompute.NewTracker(),
		evaluated:    &Evaluated{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs every attribute mapping, then every association mapping.
//
// Errors from mappings and from the loader are returned unchanged. Outputs
// registered before a failing mapping are kept. A second call fails with an
// ILLEGAL_STATE error and leaves the first call's results untouched.
func (e *Evaluation) Evaluate(ctx context.Context, task activity.Task, result *activity.OperationResult) (err error) {
	if e.state == stateEvaluated {
		return fault.IllegalState("construction.evaluate", "construction %q already evaluated", e.construction.ID)
	}
	e.state = stateEvaluated

	var sub *activity.OperationResult
	if result != nil {
		sub = result.Subresult("construction.evaluate")
		defer func() {
			if err != nil {
				sub.RecordFatal(err)
			} else if sub.Status == activity.OutcomeUnknown {
				sub.RecordSuccess()
			}
		}()
	}

	if e.pc != nil {
		e.snapshot = e.pc.Current
	}

	if task != nil && task.PartialProcessing().Outbound == activity.ProcessingSkip {
		if sub != nil {
			sub.RecordSuccess()
			sub.Message = "outbound processing skipped"
		}
		return nil
	}

	if e.forceFull {
		if err := e.loadFull(ctx, "full projection requested"); err != nil {
			return err
		}
	}

	for _, m := range e.construction.Attributes {
		if err := e.evaluateMapping(ctx, ir.GroupAttributes, m); err != nil {
			return err
		}
	}
	for _, m := range e.construction.Associations {
		if err := e.evaluateMapping(ctx, ir.GroupAssociations, m); err != nil {
			return err
		}
	}
	return nil
}

func (e *Evaluation) evaluateMapping(ctx context.Context, group string, m ir.ItemMapping) error {
	if reason, ok := e.needsFull(m); ok {
		if err := e.loadFull(ctx, reason); err != nil {
			return err
		}
	}

	out, err := mapping.NewUnit(m, e.variables(), e.evaluator).Evaluate(ctx)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}

	e.evaluated.add(group, out)
	e.tracker.Update(out.Window)
	return nil
}

// needsFull reports whether m reads data the current snapshot lacks.
func (e *Evaluation) needsFull(m ir.ItemMapping) (string, bool) {
	if e.snapshot == nil || e.snapshot.Complete || e.fullLoaded {
		return "", false
	}
	if m.RequiresFullShadow {
		return fmt.Sprintf("mapping %q requires the full projection", m.Name), true
	}
	for _, src := range m.Sources {
		rest, ok := strings.CutPrefix(src, projectionAttributesPrefix)
		if !ok {
			continue
		}
		attr, _, _ := strings.Cut(rest, ".")
		if !e.snapshot.Has(attr) {
			return fmt.Sprintf("mapping %q reads projection attribute %q", m.Name, attr), true
		}
	}
	return "", false
}

// loadFull fetches the full projection and makes it the snapshot.
// At most one fetch per evaluation.
func (e *Evaluation) loadFull(ctx context.Context, reason string) error {
	if e.fullLoaded || e.snapshot == nil {
		return nil
	}
	if e.pc == nil || e.pc.Loader == nil {
		return fault.IllegalState("construction.load", "construction %q needs the full projection but has no loader", e.construction.ID)
	}

	e.loads++
	full, err := e.pc.Loader.LoadFull(ctx, reason)
	if err != nil {
		return err
	}
	if full == nil {
		return fault.ObjectNotFound("construction.load", "projection %s not found", e.snapshot.OID)
	}

	loaded := *full
	loaded.Complete = true
	e.snapshot = &loaded
	e.fullLoaded = true
	return nil
}

func (e *Evaluation) variables() mapping.Variables {
	vars := mapping.Variables{
		mapping.VarFocus:      ir.IRNull{},
		mapping.VarProjection: ir.IRNull{},
		mapping.VarConstruction: ir.IRObject{
			"id":           ir.IRString(e.construction.ID),
			"resource":     ir.IRString(e.construction.Resource),
			"kind":         ir.IRString(e.construction.Kind),
			"intent":       ir.IRString(e.construction.Intent),
			"object_class": ir.IRString(e.construction.ObjectClass),
		},
		mapping.VarAttributes: e.evaluated.AttributeValues(),
	}
	if e.pc != nil && e.pc.Focus != nil {
		vars[mapping.VarFocus] = e.pc.Focus.AsObject()
	}
	if e.snapshot != nil {
		vars[mapping.VarProjection] = e.snapshot.AsObject()
	}
	return vars
}

// Construction returns the construction being evaluated.
func (e *Evaluation) Construction() *ir.Construction {
	return e.construction
}

// NextRecompute returns the earliest time a registered mapping stops being valid.
func (e *Evaluation) NextRecompute() *time.Time {
	return e.tracker.Next()
}

// Snapshot returns the projection snapshot the mappings saw last.
func (e *Evaluation) Snapshot() *ir.Shadow {
	return e.snapshot
}

// Evaluated returns the output accumulator.
func (e *Evaluation) Evaluated() *Evaluated {
	return e.evaluated
}

// FullShadowLoads returns how many times the loader was invoked.
func (e *Evaluation) FullShadowLoads() int {
	return e.loads
}
