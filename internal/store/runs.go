package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/reconcile/internal/activity"
	"github.com/roach88/reconcile/internal/fault"
	"github.com/roach88/reconcile/internal/ir"
	"github.com/roach88/reconcile/internal/queryir"
	"github.com/roach88/reconcile/internal/querysql"
)

// runColumns is the scan order of scanRun.
var runColumns = []string{"id", "seq", "focus_oid", "outcome", "run_status", "message", "next_recompute", "engine_version", "ir_version"}

// RunRecord is the persisted result of one engine recompute of a focus.
type RunRecord struct {
	ID            string             `json:"id"`
	Seq           int64              `json:"seq"`
	FocusOID      string             `json:"focus_oid"`
	Outcome       activity.Outcome   `json:"outcome"`
	RunStatus     activity.RunStatus `json:"run_status"`
	Message       string             `json:"message,omitempty"`
	NextRecompute *time.Time         `json:"next_recompute,omitempty"`
	EngineVersion string             `json:"engine_version"`
	IRVersion     string             `json:"ir_version"`
	Projections   []ProjectionRecord `json:"projections"`
}

// ProjectionRecord is the persisted result for one construction of a run.
type ProjectionRecord struct {
	ConstructionID  string             `json:"construction_id"`
	ProjectionOID   string             `json:"projection_oid,omitempty"`
	Outcome         activity.Outcome   `json:"outcome"`
	RunStatus       activity.RunStatus `json:"run_status"`
	Message         string             `json:"message,omitempty"`
	Outputs         ir.IRObject        `json:"outputs"`
	FullShadowLoads int                `json:"full_shadow_loads"`
	NextRecompute   *time.Time         `json:"next_recompute,omitempty"`
}

// WriteRun inserts a run and its projection results in one transaction.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - rewriting a run ID is a no-op.
func (s *Store) WriteRun(ctx context.Context, run RunRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO activity_runs
		(id, seq, focus_oid, outcome, run_status, message, next_recompute, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Seq,
		run.FocusOID,
		string(run.Outcome),
		string(run.RunStatus),
		run.Message,
		toNanos(run.NextRecompute),
		run.EngineVersion,
		run.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	for i, p := range run.Projections {
		outputs, err := marshalOutputs(p.Outputs)
		if err != nil {
			return fmt.Errorf("write run %s: %w", run.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO projection_results
			(run_id, position, construction_id, projection_oid, outcome, run_status, message, outputs, full_shadow_loads, next_recompute)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			i,
			p.ConstructionID,
			p.ProjectionOID,
			string(p.Outcome),
			string(p.RunStatus),
			p.Message,
			outputs,
			p.FullShadowLoads,
			toNanos(p.NextRecompute),
		)
		if err != nil {
			return fmt.Errorf("write projection result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}
	return nil
}

// ReadRun returns a run with its projection results.
// A missing run is an OBJECT_NOT_FOUND error.
func (s *Store) ReadRun(ctx context.Context, id string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, focus_oid, outcome, run_status, message, next_recompute, engine_version, ir_version
		FROM activity_runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fault.ObjectNotFound("store.read_run", "run %s not found", id)
	}
	if err != nil {
		return RunRecord{}, err
	}

	run.Projections, err = s.readProjections(ctx, id)
	if err != nil {
		return RunRecord{}, err
	}
	return run, nil
}

// ReadRuns returns all runs of a focus ordered by seq.
//
// Returns an empty slice (not nil) if the focus has no runs.
func (s *Store) ReadRuns(ctx context.Context, focusOID string) ([]RunRecord, error) {
	return s.FindRuns(ctx, queryir.Equals{Field: "focus_oid", Value: ir.IRString(focusOID)}, 0)
}

// FindRuns returns the runs matching filter, ordered by seq, with their
// projection results. A nil filter matches every run; limit zero means
// no limit.
func (s *Store) FindRuns(ctx context.Context, filter queryir.Predicate, limit int) ([]RunRecord, error) {
	query, params, err := querysql.NewSQLCompiler().Compile(queryir.Select{
		From:    queryir.TableRuns,
		Columns: runColumns,
		Filter:  filter,
		Limit:   limit,
	})
	if err != nil {
		return nil, fault.Schema("store.find_runs", "%v", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	for i := range runs {
		if runs[i].Projections, err = s.readProjections(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) readProjections(ctx context.Context, runID string) ([]ProjectionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT construction_id, projection_oid, outcome, run_status, message, outputs, full_shadow_loads, next_recompute
		FROM projection_results
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query projection results: %w", err)
	}
	defer rows.Close()

	projections := []ProjectionRecord{}
	for rows.Next() {
		var p ProjectionRecord
		var outcome, status, outputs string
		var next sql.NullInt64
		if err := rows.Scan(&p.ConstructionID, &p.ProjectionOID, &outcome, &status, &p.Message, &outputs, &p.FullShadowLoads, &next); err != nil {
			return nil, fmt.Errorf("scan projection result: %w", err)
		}
		p.Outcome = activity.Outcome(outcome)
		p.RunStatus = activity.RunStatus(status)
		p.NextRecompute = fromNanos(next)
		if p.Outputs, err = unmarshalOutputs(outputs); err != nil {
			return nil, err
		}
		projections = append(projections, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projection results: %w", err)
	}
	return projections, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var run RunRecord
	var outcome, status string
	var next sql.NullInt64
	err := row.Scan(&run.ID, &run.Seq, &run.FocusOID, &outcome, &status, &run.Message, &next, &run.EngineVersion, &run.IRVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, err
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("scan run: %w", err)
	}
	run.Outcome = activity.Outcome(outcome)
	run.RunStatus = activity.RunStatus(status)
	run.NextRecompute = fromNanos(next)
	return run, nil
}
