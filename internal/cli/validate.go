package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/reconcile/internal/compiler"
	"github.com/roach88/reconcile/internal/ir"
	"github.com/roach88/reconcile/internal/mapping"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid         bool                       `json:"valid"`
	Constructions int                        `json:"constructions"`
	Errors        []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <constructions-dir>",
		Short: "Validate construction definitions",
		Long: `Validate the CUE construction definitions in a directory.

Checks that the CUE is concrete, that every construction compiles, that
schema rules hold (resource and kind set, unique mapping names, valid
strengths and time windows), and that every expression and condition
compiles as CEL. Nothing is evaluated.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadConstructions(dir, LoadModeCollectAll)

	// Handle load errors (directory not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, dir)

	checker, err := mapping.NewCELEvaluator()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create expression checker", err)
	}

	validationErrors := concretenessErrors(loadResult.CUEValue)
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			validationErrors = append(validationErrors, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    lineOf(loadErr.Pos),
			})
		}
	}
	validationErrors = append(validationErrors, validateAll(loadResult.Constructions, checker, formatter)...)

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, len(loadResult.Constructions), validationErrors)
	}

	return outputValidateSuccess(formatter, len(loadResult.Constructions))
}

// validateAll runs schema validation and expression compilation on every
// construction. Field paths are prefixed with the construction ID.
func validateAll(constructions []*ir.Construction, checker compiler.ExpressionChecker, formatter *OutputFormatter) []compiler.ValidationError {
	var allErrors []compiler.ValidationError

	for _, c := range constructions {
		formatter.VerboseLog("Validating construction: %s", c.ID)

		errs := compiler.Validate(c)
		errs = append(errs, compiler.ValidateExpressions(c, checker)...)
		for _, e := range errs {
			e.Field = fmt.Sprintf("construction.%s.%s", c.ID, e.Field)
			allErrors = append(allErrors, e)
		}
	}

	return allErrors
}

// concretenessErrors reports values left incomplete, such as a field
// declared with a type but no value.
func concretenessErrors(value cue.Value) []compiler.ValidationError {
	err := value.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var errs []compiler.ValidationError
	for _, e := range cueerrors.Errors(err) {
		ve := compiler.ValidationError{
			Field:   "cue",
			Message: e.Error(),
			Code:    ErrCodeBuildFailed,
		}
		if positions := cueerrors.Positions(e); len(positions) > 0 {
			ve.Line = lineOf(positions[0])
		}
		errs = append(errs, ve)
	}
	return errs
}

// lineOf extracts the line number from a token.Pos.
func lineOf(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, count int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Constructions: count})
	}

	fmt.Fprintf(formatter.Writer, "✓ All constructions valid (%d)\n", count)
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Load errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, count int, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:         false,
			Constructions: count,
			Errors:        errs,
		}
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: fmt.Sprintf("%d validation error(s)", len(errs)),
			},
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d validation error(s)", len(errs)))
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✗ Validation failed with %d error(s):\n", len(errs))
	for _, e := range errs {
		fmt.Fprintf(w, "  %s\n", e.Error())
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d validation error(s)", len(errs)))
}
