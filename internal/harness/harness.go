package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/reconcile/internal/activity"
	"github.com/roach88/reconcile/internal/compiler"
	"github.com/roach88/reconcile/internal/construction"
	"github.com/roach88/reconcile/internal/engine"
	"github.com/roach88/reconcile/internal/fault"
	"github.com/roach88/reconcile/internal/ir"
	"github.com/roach88/reconcile/internal/mapping"
	"github.com/roach88/reconcile/internal/store"
	"github.com/roach88/reconcile/internal/testutil"
)

// DefaultRunID is the run ID of a scenario that does not set one.
const DefaultRunID = "run-0001"

// Prepared is an Input bound to compiled constructions, ready for the engine.
type Prepared struct {
	Task    activity.Task
	Request engine.Request

	// Options carries the name resolution setup.
	Options []engine.Option

	// Loaders holds the fake loader of each projection, nil where none.
	Loaders []*testutil.CountingLoader

	// Lookup is the fake directory, nil without selectors.
	Lookup *testutil.CountingLookup
}

// Prepare converts the input into an engine request. Every projection must
// name one of constructions.
func (in *Input) Prepare(constructions []*ir.Construction) (*Prepared, error) {
	byID := make(map[string]*ir.Construction, len(constructions))
	for _, c := range constructions {
		byID[c.ID] = c
	}

	focusAttrs, err := ir.ObjectFromAny(in.Focus.Attributes)
	if err != nil {
		return nil, fmt.Errorf("focus.attributes: %w", err)
	}

	p := &Prepared{
		Task: activity.StaticTask{Running: !in.Task.Stopped, Options: in.Task.PartialProcessing},
		Request: engine.Request{
			Focus: &ir.Focus{OID: in.Focus.OID, Type: in.Focus.Type, Attributes: focusAttrs},
		},
	}

	for i, ps := range in.Projections {
		c, ok := byID[ps.Construction]
		if !ok {
			return nil, fmt.Errorf("projections[%d]: unknown construction %q", i, ps.Construction)
		}

		proj := engine.Projection{Construction: c, FullShadow: ps.FullShadow}
		if ps.Current != nil {
			if proj.Current, err = ps.Current.shadow(nil); err != nil {
				return nil, fmt.Errorf("projections[%d].current: %w", i, err)
			}
		}

		var loader *testutil.CountingLoader
		switch {
		case ps.LoadError != nil:
			loader = testutil.NewCountingLoader(nil).FailWith(ps.LoadError.err())
		case ps.Full != nil:
			full, err := ps.Full.shadow(proj.Current)
			if err != nil {
				return nil, fmt.Errorf("projections[%d].full: %w", i, err)
			}
			full.Complete = true
			loader = testutil.NewCountingLoader(full)
		}
		if loader != nil {
			proj.Loader = loader
		}

		p.Loaders = append(p.Loaders, loader)
		p.Request.Projections = append(p.Request.Projections, proj)
	}

	if len(in.Resolve.Selectors) > 0 {
		p.Lookup = testutil.NewCountingLookup(in.Resolve.Names)
		if in.Resolve.Fail != "" {
			p.Lookup.FailWith(fault.Communication("directory.lookup", errors.New(in.Resolve.Fail)))
		}
		p.Options = append(p.Options, engine.WithResolveSelectors(in.Resolve.Selectors, p.Lookup))
	}
	return p, nil
}

// shadow builds the snapshot. Empty identity fields are taken from base.
func (s *ShadowSpec) shadow(base *ir.Shadow) (*ir.Shadow, error) {
	attrs, err := ir.ObjectFromAny(s.Attributes)
	if err != nil {
		return nil, fmt.Errorf("attributes: %w", err)
	}
	sh := &ir.Shadow{
		OID:        s.OID,
		Resource:   s.Resource,
		Kind:       s.Kind,
		Intent:     s.Intent,
		Attributes: attrs,
		Complete:   s.Complete,
	}
	if base != nil {
		sh.OID = orDefault(sh.OID, base.OID)
		sh.Resource = orDefault(sh.Resource, base.Resource)
		sh.Kind = orDefault(sh.Kind, base.Kind)
		sh.Intent = orDefault(sh.Intent, base.Intent)
	}
	return sh, nil
}

func (e *ErrorSpec) err() error {
	return fault.Wrap(e.Kind, "scenario.load", errors.New(e.Message))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with a fixed run ID and
// a single worker, so runs are reproducible.
//
// Execution flow:
// 1. Compile and validate the construction files
// 2. Build the engine request from the scenario input
// 3. Recompute the focus
// 4. Evaluate assertions against the run and the store
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	constructions, err := compiler.LoadFiles(scenario.Constructions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load constructions: %w", err)
	}
	for _, c := range constructions {
		if verrs := compiler.Validate(c); len(verrs) > 0 {
			return nil, fmt.Errorf("construction %s: %w", c.ID, verrs[0])
		}
	}

	prep, err := scenario.Input.Prepare(constructions)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare input: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ev, err := mapping.NewCELEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create evaluator: %w", err)
	}

	runID := scenario.RunID
	if runID == "" {
		runID = DefaultRunID
	}
	opts := append([]engine.Option{
		engine.WithStore(st),
		engine.WithRunIDs(engine.NewFixedGenerator(runID)),
		engine.WithWorkers(1),
	}, prep.Options...)

	run, err := engine.New(ev, opts...).Recompute(ctx, prep.Task, prep.Request)
	if err != nil {
		return nil, fmt.Errorf("recompute: %w", err)
	}

	result := NewResult(run)
	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// compile-time check that fake loaders satisfy the loader contract.
var _ construction.ShadowLoader = (*testutil.CountingLoader)(nil)
