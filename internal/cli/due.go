package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/reconcile/internal/ir"
	"github.com/roach88/reconcile/internal/store"
)

// DueOptions holds flags for the due command.
type DueOptions struct {
	*RootOptions
	Database string
	Now      string
	Limit    int
	Focus    string

	// Clock supplies the current time when --now is not set (for testing).
	// If nil, defaults to time.Now.
	Clock func() time.Time
}

// DueResult lists schedule entries.
type DueResult struct {
	Now     string                `json:"now,omitempty"`
	Focus   string                `json:"focus,omitempty"`
	Entries []store.ScheduleEntry `json:"entries"`
}

// NewDueCommand creates the due command.
func NewDueCommand(rootOpts *RootOptions) *cobra.Command {
	return newDueCommand(&DueOptions{RootOptions: rootOpts})
}

func newDueCommand(opts *DueOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "due",
		Short: "List focus objects due for recompute",
		Long: `List the (focus, construction) pairs whose next recompute time has
passed, earliest first. Entries are written by "reconcile evaluate --db".

With --focus, list every pending entry of that focus regardless of time.

Example:
  reconcile due --db ./reconcile.db
  reconcile due --db ./reconcile.db --now 2026-07-01T00:00:00Z --limit 10
  reconcile due --db ./reconcile.db --focus user-1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDue(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Now, "now", "", "RFC 3339 time to check against (default: current time)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum entries to list (0 for all)")
	cmd.Flags().StringVar(&opts.Focus, "focus", "", "list the pending entries of one focus")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runDue(opts *DueOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Limit < 0 {
		return commandError(formatter, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("invalid limit %d: must be non-negative", opts.Limit)})
	}

	now, err := dueTime(opts)
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

	ctx := cmd.Context()
	result := DueResult{}
	if opts.Focus != "" {
		result.Focus = opts.Focus
		result.Entries, err = st.Schedule(ctx, opts.Focus)
	} else {
		result.Now = ir.FormatTime(now)
		result.Entries, err = st.DueRecomputes(ctx, now, opts.Limit)
	}
	if err != nil {
		return commandError(formatter, &LoadError{Code: ErrCodeStore, Message: err.Error()})
	}
	formatter.VerboseLog("Found %d schedule entries", len(result.Entries))

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputDueText(formatter, result)
}

func dueTime(opts *DueOptions) (time.Time, error) {
	if opts.Now != "" {
		t, err := ir.ParseTime(opts.Now)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --now: %w", err)
		}
		return t, nil
	}
	if opts.Clock != nil {
		return opts.Clock(), nil
	}
	return time.Now(), nil
}

func outputDueText(formatter *OutputFormatter, result DueResult) error {
	w := formatter.Writer

	if len(result.Entries) == 0 {
		if result.Focus != "" {
			fmt.Fprintf(w, "No pending recomputes for %s\n", result.Focus)
		} else {
			fmt.Fprintf(w, "Nothing due at %s\n", result.Now)
		}
		return nil
	}

	for _, e := range result.Entries {
		fmt.Fprintf(w, "%s  %s/%s  (run %s)\n", ir.FormatTime(e.NextRecompute), e.FocusOID, e.ConstructionID, e.RunID)
	}
	fmt.Fprintf(w, "%d entries\n", len(result.Entries))
	return nil
}
