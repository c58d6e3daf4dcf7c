package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/reconcile/internal/activity"
	"github.com/roach88/reconcile/internal/construction"
	"github.com/roach88/reconcile/internal/fault"
	"github.com/roach88/reconcile/internal/ir"
	"github.com/roach88/reconcile/internal/mapping"
	"github.com/roach88/reconcile/internal/recompute"
	"github.com/roach88/reconcile/internal/resolve"
	"github.com/roach88/reconcile/internal/store"
)

// DefaultWorkers is the number of projections evaluated concurrently.
const DefaultWorkers = 4

// Engine recomputes the projections of a focus.
type Engine struct {
	evaluator mapping.ExpressionEvaluator
	workers   int
	store     *store.Store
	runIDs    RunIDGenerator
	selectors []resolve.Selector
	lookup    resolve.NameLookup

	clockOnce sync.Once
	clock     *Clock
	clockErr  error
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds the number of projections evaluated at once.
// Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithStore persists every run and the resulting recompute schedule.
func WithStore(s *store.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithRunIDs sets the run ID generator. Default is UUIDv7Generator.
func WithRunIDs(gen RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDs = gen
	}
}

// WithResolveSelectors resolves display names of references under the
// selected output paths after evaluation.
func WithResolveSelectors(selectors []resolve.Selector, lookup resolve.NameLookup) Option {
	return func(e *Engine) {
		e.selectors = selectors
		e.lookup = lookup
	}
}

// New creates an engine evaluating expressions with ev.
func New(ev mapping.ExpressionEvaluator, opts ...Option) *Engine {
	e := &Engine{
		evaluator: ev,
		workers:   DefaultWorkers,
		runIDs:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Projection is one construction to evaluate against one projection.
type Projection struct {
	Construction *ir.Construction

	// Current is the baseline snapshot, nil when the projection does not exist yet.
	Current *ir.Shadow

	// Loader fetches the full projection on demand.
	Loader construction.ShadowLoader

	// FullShadow loads the full projection before the first mapping.
	FullShadow bool
}

// Request is one recompute of a focus.
type Request struct {
	Focus       *ir.Focus
	Projections []Projection
}

// ProjectionResult is the result of one projection of a run.
type ProjectionResult struct {
	ConstructionID  string                    `json:"construction_id"`
	ProjectionOID   string                    `json:"projection_oid,omitempty"`
	Result          *activity.ExecutionResult `json:"result"`
	Outputs         ir.IRObject               `json:"outputs"`
	NextRecompute   *time.Time                `json:"next_recompute,omitempty"`
	FullShadowLoads int                       `json:"full_shadow_loads"`
	Resolution      resolve.Report            `json:"resolution"`

	// Skipped is set when the task stopped before this projection started.
	Skipped bool `json:"skipped,omitempty"`

	// OutboundSkipped is set when partial processing skipped the mappings.
	// NextRecompute is then unknown, not absent.
	OutboundSkipped bool `json:"outbound_skipped,omitempty"`
}

// Run is the result of one recompute.
type Run struct {
	ID            string                    `json:"id"`
	Seq           int64                     `json:"seq"`
	FocusOID      string                    `json:"focus_oid"`
	Result        *activity.ExecutionResult `json:"result"`
	NextRecompute *time.Time                `json:"next_recompute,omitempty"`
	Projections   []ProjectionResult        `json:"projections"`

	// Operation is the operation-result tree the evaluations recorded into.
	Operation *activity.OperationResult `json:"-"`
}

// Recompute evaluates every projection of req.
//
// Projection failures are folded into the run's ExecutionResult. An
// ILLEGAL_STATE failure means the caller wired the engine wrongly: it stops
// the run and is returned as the error. Errors writing the run log are
// returned too.
func (e *Engine) Recompute(ctx context.Context, task activity.Task, req Request) (*Run, error) {
	if req.Focus == nil {
		return nil, fault.IllegalState("engine.recompute", "request has no focus")
	}
	if e.evaluator == nil {
		return nil, fault.IllegalState("engine.recompute", "engine has no expression evaluator")
	}

	seq, err := e.nextSeq(ctx)
	if err != nil {
		return nil, err
	}

	run := &Run{
		ID:          e.runIDs.Generate(),
		Seq:         seq,
		FocusOID:    req.Focus.OID,
		Result:      activity.NewExecutionResult(),
		Projections: make([]ProjectionResult, len(req.Projections)),
		Operation:   activity.NewOperationResult("engine.recompute"),
	}

	slog.Info("recompute starting",
		"run_id", run.ID,
		"seq", run.Seq,
		"focus", run.FocusOID,
		"projections", len(req.Projections),
	)

	pass := resolve.From(e.selectors, e.lookup)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, p := range req.Projections {
		// Each projection lands in its own slot so results keep request order.
		sub := run.Operation.Subresult(fmt.Sprintf("projection[%d]", i))
		g.Go(func() error {
			pr, err := e.evaluate(gctx, task, req.Focus, p, pass, sub)
			run.Projections[i] = pr
			return err
		})
	}
	if err := g.Wait(); err != nil {
		slog.Error("recompute aborted",
			"run_id", run.ID,
			"focus", run.FocusOID,
			"error", err,
		)
		return nil, err
	}

	for _, pr := range run.Projections {
		run.Result.UpdateFromChild(pr.Result)
		run.NextRecompute = recompute.Earliest(run.NextRecompute, pr.NextRecompute)
	}
	run.Result.CompleteIfNoError(task == nil || task.CanRun())

	if e.store != nil {
		if err := e.persist(ctx, req, run); err != nil {
			return nil, err
		}
	}

	slog.Info("recompute finished",
		"run_id", run.ID,
		"focus", run.FocusOID,
		"outcome", run.Result.Outcome,
		"run_status", run.Result.RunStatus,
		"next_recompute", formatNext(run.NextRecompute),
	)
	return run, nil
}

// evaluate runs one projection. The returned error is non-nil only for
// failures that abort the run.
func (e *Engine) evaluate(ctx context.Context, task activity.Task, focus *ir.Focus, p Projection, pass resolve.Pass, sub *activity.OperationResult) (ProjectionResult, error) {
	pr := ProjectionResult{}
	if p.Construction == nil {
		return pr, fault.IllegalState("engine.recompute", "projection has no construction")
	}
	pr.ConstructionID = p.Construction.ID
	if p.Current != nil {
		pr.ProjectionOID = p.Current.OID
	}

	if task != nil && !task.CanRun() {
		slog.Debug("projection skipped: task stopped",
			"construction", pr.ConstructionID,
			"projection", pr.ProjectionOID,
		)
		pr.Skipped = true
		pr.Result = activity.NewExecutionResult()
		return pr, nil
	}

	var opts []construction.Option
	if p.FullShadow {
		opts = append(opts, construction.WithFullShadow())
	}
	pr.OutboundSkipped = task != nil && task.PartialProcessing().Outbound == activity.ProcessingSkip

	pc := &construction.ProjectionContext{Focus: focus, Current: p.Current, Loader: p.Loader}
	ev := construction.New(p.Construction, pc, e.evaluator, opts...)

	err := ev.Evaluate(ctx, task, sub)
	pr.FullShadowLoads = ev.FullShadowLoads()
	pr.NextRecompute = ev.NextRecompute()
	if snap := ev.Snapshot(); snap != nil {
		pr.ProjectionOID = snap.OID
	}

	if err != nil {
		if fault.IsIllegalState(err) {
			return pr, err
		}
		pr.Outputs = ev.Evaluated().AsObject()
		pr.Result = activity.FromError(e.wrap("evaluate", pr, err))
		slog.Warn("projection evaluation failed",
			"construction", pr.ConstructionID,
			"projection", pr.ProjectionOID,
			"run_status", pr.Result.RunStatus,
			"error", err,
		)
		return pr, nil
	}

	pr.Outputs = ev.Evaluated().AsObject()
	report, err := pass.Resolve(ctx, pr.Outputs)
	pr.Resolution = report
	if err != nil {
		pr.Result = activity.FromError(e.wrap("resolve", pr, err))
		slog.Warn("name resolution failed",
			"construction", pr.ConstructionID,
			"projection", pr.ProjectionOID,
			"failed", report.Failed,
			"error", err,
		)
		return pr, nil
	}

	pr.Result = activity.NewExecutionResult()
	if report.NotFound > 0 {
		pr.Result.Outcome = activity.OutcomeWarning
		pr.Result.Message = fmt.Sprintf("%d references without a display name", report.NotFound)
	}
	pr.Result.CompleteIfNoError(true)

	slog.Debug("projection evaluated",
		"construction", pr.ConstructionID,
		"projection", pr.ProjectionOID,
		"outputs", ev.Evaluated().Len(),
		"full_shadow_loads", pr.FullShadowLoads,
		"next_recompute", formatNext(pr.NextRecompute),
	)
	return pr, nil
}

func (e *Engine) wrap(phase string, pr ProjectionResult, err error) error {
	return &ProjectionError{
		ConstructionID: pr.ConstructionID,
		ProjectionOID:  pr.ProjectionOID,
		Phase:          phase,
		Err:            err,
	}
}

// nextSeq seeds the clock from the store on first use.
func (e *Engine) nextSeq(ctx context.Context) (int64, error) {
	e.clockOnce.Do(func() {
		if e.store == nil {
			e.clock = NewClock()
			return
		}
		start, err := e.store.MaxSeq(ctx)
		if err != nil {
			e.clockErr = fmt.Errorf("seed run clock: %w", err)
			return
		}
		e.clock = NewClockAt(start)
	})
	if e.clockErr != nil {
		return 0, e.clockErr
	}
	return e.clock.Next(), nil
}

// persist writes the run log entry, then updates the schedule for every
// projection that evaluated cleanly. Failed projections keep their previous
// schedule entry so the scheduler's retry decides when they run again, and
// projections whose mappings were skipped leave the schedule untouched.
func (e *Engine) persist(ctx context.Context, req Request, run *Run) error {
	record := store.RunRecord{
		ID:            run.ID,
		Seq:           run.Seq,
		FocusOID:      run.FocusOID,
		Outcome:       run.Result.Outcome,
		RunStatus:     run.Result.RunStatus,
		Message:       run.Result.Message,
		NextRecompute: run.NextRecompute,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
	for _, pr := range run.Projections {
		record.Projections = append(record.Projections, store.ProjectionRecord{
			ConstructionID:  pr.ConstructionID,
			ProjectionOID:   pr.ProjectionOID,
			Outcome:         pr.Result.Outcome,
			RunStatus:       pr.Result.RunStatus,
			Message:         pr.Result.Message,
			Outputs:         pr.Outputs,
			FullShadowLoads: pr.FullShadowLoads,
			NextRecompute:   pr.NextRecompute,
		})
	}
	if err := e.store.WriteRun(ctx, record); err != nil {
		return fmt.Errorf("persist run %s: %w", run.ID, err)
	}

	for i, pr := range run.Projections {
		if pr.Skipped || pr.OutboundSkipped || pr.Result.Err != nil {
			continue
		}
		c := req.Projections[i].Construction
		hash, err := ir.ConstructionHash(c)
		if err != nil {
			return fmt.Errorf("hash construction %s: %w", c.ID, err)
		}
		if err := e.store.ScheduleRecompute(ctx, run.FocusOID, c.ID, hash, pr.NextRecompute, run.ID); err != nil {
			return fmt.Errorf("schedule %s/%s: %w", run.FocusOID, c.ID, err)
		}
	}
	return nil
}

func formatNext(t *time.Time) string {
	if t == nil {
		return "none"
	}
	return ir.FormatTime(*t)
}
