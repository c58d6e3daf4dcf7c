package harness

import "github.com/roach88/reconcile/internal/engine"

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion held.
	Pass bool `json:"pass"`

	// Run is what the engine produced.
	Run *engine.Run `json:"run"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result for run.
func NewResult(run *engine.Run) *Result {
	return &Result{
		Pass:   true,
		Run:    run,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
