package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/reconcile/internal/activity"
	"github.com/roach88/reconcile/internal/engine"
	"github.com/roach88/reconcile/internal/harness"
	"github.com/roach88/reconcile/internal/ir"
	"github.com/roach88/reconcile/internal/mapping"
	"github.com/roach88/reconcile/internal/store"
)

// EvaluateOptions holds flags for the evaluate command.
type EvaluateOptions struct {
	*RootOptions
	Input    string
	Database string
	Workers  int

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil, the engine defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// NewEvaluateCommand creates the evaluate command.
func NewEvaluateCommand(rootOpts *RootOptions) *cobra.Command {
	return newEvaluateCommand(&EvaluateOptions{RootOptions: rootOpts})
}

func newEvaluateCommand(opts *EvaluateOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <constructions-dir>",
		Short: "Evaluate constructions for one focus",
		Long: `Recompute one focus against its projections.

The input file is YAML with the focus object, the projections to evaluate
(each naming a construction from the directory), optional task switches,
and optional reference name resolution. Use "-" to read it from stdin.

With --db the run is appended to the run log and the recompute schedule
is updated, so "reconcile due" can report it.

Example:
  reconcile evaluate ./constructions --input user-1.yaml
  reconcile evaluate ./constructions --input - --db ./reconcile.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "path to the input YAML, or - for stdin (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for the run log and schedule")
	cmd.Flags().IntVar(&opts.Workers, "workers", engine.DefaultWorkers, "projections evaluated concurrently")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runEvaluate(opts *EvaluateOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadConstructions(dir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return commandError(formatter, loadErrors[0])
	}
	formatter.VerboseLog("Loaded %d construction(s) from %s", len(loadResult.Constructions), dir)

	input, err := readInput(opts.Input, cmd.InOrStdin())
	if err != nil {
		return commandError(formatter, &LoadError{Code: ErrCodeBadInput, Message: err.Error()})
	}

	prep, err := input.Prepare(loadResult.Constructions)
	if err != nil {
		return commandError(formatter, &LoadError{Code: ErrCodeBadInput, Message: err.Error()})
	}

	ev, err := mapping.NewCELEvaluator()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create evaluator", err)
	}

	engineOpts := append([]engine.Option{engine.WithWorkers(opts.Workers)}, prep.Options...)
	if opts.RunIDs != nil {
		engineOpts = append(engineOpts, engine.WithRunIDs(opts.RunIDs))
	}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return commandError(formatter, &LoadError{Code: ErrCodeStore, Message: fmt.Sprintf("failed to open database: %v", err)})
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		engineOpts = append(engineOpts, engine.WithStore(st))
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	// An interrupt stops the task between projections; a run stopped in
	// the input stays stopped.
	task := prep.Task
	if !input.Task.Stopped {
		task = activity.NewTask(ctx, input.Task.PartialProcessing)
	}

	run, err := engine.New(ev, engineOpts...).Recompute(ctx, task, prep.Request)
	if err != nil {
		return WrapExitError(ExitCommandError, "recompute failed", err)
	}

	if err := outputRun(formatter, inputName(opts.Input), run); err != nil {
		return err
	}
	if run.Result.IsError() {
		return NewExitError(ExitFailure, fmt.Sprintf("evaluation finished with %s", run.Result.RunStatus))
	}
	return nil
}

// readInput reads the input document from path, or from stdin for "-".
func readInput(path string, stdin io.Reader) (*harness.Input, error) {
	if path == "-" {
		return harness.LoadInput(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()
	return harness.LoadInput(f)
}

func inputName(path string) string {
	if path == "-" {
		return "stdin"
	}
	return filepath.Base(path)
}

// signalContext cancels on SIGINT or SIGTERM.
// Uses the command's context if available (for testing).
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan) // Prevent signal handler leak
		cancel()
	}
}

// commandError reports a command-level failure (exit code 2).
func commandError(formatter *OutputFormatter, err error) error {
	code, message := ErrCodeGeneric, err.Error()
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		code, message = loadErr.Code, loadErr.Message
	}
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputRun prints the run. JSON output is the canonical run snapshot.
func outputRun(formatter *OutputFormatter, name string, run *engine.Run) error {
	if formatter.Format == "json" {
		snap, err := harness.Snapshot(name, run)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to render run", err)
		}
		return formatter.SuccessForRun(run.ID, json.RawMessage(snap))
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s run %s (seq %d) for %s: %s, %s\n",
		mark(run.Result), run.ID, run.Seq, run.FocusOID, run.Result.Outcome, run.Result.RunStatus)
	fmt.Fprintf(w, "  next recompute: %s\n", timeOrNone(run.NextRecompute))

	for _, pr := range run.Projections {
		target := pr.ConstructionID
		if pr.ProjectionOID != "" {
			target = fmt.Sprintf("%s (%s)", pr.ConstructionID, pr.ProjectionOID)
		}
		switch {
		case pr.Skipped:
			fmt.Fprintf(w, "  - %s: skipped\n", target)
			continue
		case pr.Result.Message != "":
			fmt.Fprintf(w, "  %s %s: %s: %s\n", mark(pr.Result), target, pr.Result.Outcome, pr.Result.Message)
		default:
			fmt.Fprintf(w, "  %s %s: %s\n", mark(pr.Result), target, pr.Result.Outcome)
		}
		writeOutputs(w, pr.Outputs)
	}
	return nil
}

// writeOutputs prints one "group.name = values" line per output, sorted.
func writeOutputs(w io.Writer, outputs ir.IRObject) {
	for _, group := range outputs.SortedKeys() {
		items, ok := outputs[group].(ir.IRObject)
		if !ok {
			continue
		}
		for _, name := range items.SortedKeys() {
			data, err := ir.MarshalCanonical(items[name])
			if err != nil {
				data = []byte(err.Error())
			}
			fmt.Fprintf(w, "      %s.%s = %s\n", group, name, data)
		}
	}
}

func mark(r *activity.ExecutionResult) string {
	if r.IsError() {
		return "✗"
	}
	return "✓"
}

func timeOrNone(t *time.Time) string {
	if t == nil {
		return harness.NoRecompute
	}
	return ir.FormatTime(*t)
}
