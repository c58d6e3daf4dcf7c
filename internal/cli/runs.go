package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/reconcile/internal/activity"
	"github.com/roach88/reconcile/internal/ir"
	"github.com/roach88/reconcile/internal/queryir"
	"github.com/roach88/reconcile/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database     string
	Focus        string
	Outcome      string
	Status       string
	Construction string
	SinceSeq     int64
	Limit        int
}

// RunsResult lists persisted runs.
type RunsResult struct {
	Runs []store.RunRecord `json:"runs"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List persisted evaluation runs",
		Long: `List the runs recorded by "reconcile evaluate --db", ordered by seq.

Filters combine with AND. --outcome and --status match the run itself;
with --construction they match that construction's projection result
instead.

Example:
  reconcile runs --db ./reconcile.db --focus user-1
  reconcile runs --db ./reconcile.db --outcome fatal_error --since-seq 100
  reconcile runs --db ./reconcile.db --construction ldap-account --status temporary_error`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Focus, "focus", "", "only runs of this focus OID")
	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "only this outcome (success|warning|partial_error|fatal_error)")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only this run status (finished|interrupted|temporary_error|permanent_error)")
	cmd.Flags().StringVar(&opts.Construction, "construction", "", "only runs that evaluated this construction")
	cmd.Flags().Int64Var(&opts.SinceSeq, "since-seq", 0, "only runs with seq at or above this value")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum runs to list (0 for all)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	filter, err := runsFilter(opts)
	if err != nil {
		return commandError(formatter, &LoadError{Code: ErrCodeGeneric, Message: err.Error()})
	}

	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		return commandError(formatter, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("database not found: %s", opts.Database)})
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return commandError(formatter, &LoadError{Code: ErrCodeStore, Message: fmt.Sprintf("failed to open database: %v", err)})
	}
	defer st.Close()

	runs, err := st.FindRuns(cmd.Context(), filter, opts.Limit)
	if err != nil {
		return commandError(formatter, &LoadError{Code: ErrCodeStore, Message: err.Error()})
	}
	formatter.VerboseLog("Found %d runs", len(runs))

	if formatter.Format == "json" {
		return formatter.Success(RunsResult{Runs: runs})
	}
	return outputRunsText(formatter, runs)
}

// runsFilter builds the run log predicate for the command flags.
// Returns nil when no filter is set.
func runsFilter(opts *RunsOptions) (queryir.Predicate, error) {
	if opts.Limit < 0 {
		return nil, fmt.Errorf("invalid limit %d: must be non-negative", opts.Limit)
	}
	if opts.Outcome != "" && !validOutcome(activity.Outcome(opts.Outcome)) {
		return nil, fmt.Errorf("invalid outcome %q", opts.Outcome)
	}
	if opts.Status != "" && !validRunStatus(activity.RunStatus(opts.Status)) {
		return nil, fmt.Errorf("invalid status %q", opts.Status)
	}

	var runPreds, projectionPreds []queryir.Predicate
	if opts.Focus != "" {
		runPreds = append(runPreds, queryir.Equals{Field: "focus_oid", Value: ir.IRString(opts.Focus)})
	}
	if opts.SinceSeq > 0 {
		runPreds = append(runPreds, queryir.Compare{Field: "seq", Op: queryir.OpGreaterEqual, Value: ir.IRInt(opts.SinceSeq)})
	}

	// Result filters apply to the construction's projection when one is named.
	target := &runPreds
	if opts.Construction != "" {
		projectionPreds = append(projectionPreds, queryir.Equals{Field: "construction_id", Value: ir.IRString(opts.Construction)})
		target = &projectionPreds
	}
	if opts.Outcome != "" {
		*target = append(*target, queryir.Equals{Field: "outcome", Value: ir.IRString(opts.Outcome)})
	}
	if opts.Status != "" {
		*target = append(*target, queryir.Equals{Field: "run_status", Value: ir.IRString(opts.Status)})
	}
	if len(projectionPreds) > 0 {
		runPreds = append(runPreds, queryir.HasProjection{Filter: queryir.And{Predicates: projectionPreds}})
	}

	if len(runPreds) == 0 {
		return nil, nil
	}
	return queryir.And{Predicates: runPreds}, nil
}

func validOutcome(o activity.Outcome) bool {
	switch o {
	case activity.OutcomeSuccess, activity.OutcomeWarning, activity.OutcomePartialError, activity.OutcomeFatalError:
		return true
	}
	return false
}

func validRunStatus(s activity.RunStatus) bool {
	switch s {
	case activity.RunFinished, activity.RunInterrupted, activity.RunTemporaryError, activity.RunPermanentError:
		return true
	}
	return false
}

func outputRunsText(formatter *OutputFormatter, runs []store.RunRecord) error {
	w := formatter.Writer

	if len(runs) == 0 {
		fmt.Fprintln(w, "No matching runs")
		return nil
	}

	for _, r := range runs {
		fmt.Fprintf(w, "%6d  %s  %s  %s, %s\n", r.Seq, r.ID, r.FocusOID, r.Outcome, r.RunStatus)
		for _, p := range r.Projections {
			fmt.Fprintf(w, "        %s: %s, %s\n", p.ConstructionID, p.Outcome, p.RunStatus)
		}
	}
	fmt.Fprintf(w, "%d runs\n", len(runs))
	return nil
}
