package activity

import (
	"fmt"

	"github.com/roach88/reconcile/internal/fault"
)

// Outcome is the coarse status of a unit of work.
type Outcome string

const (
	OutcomeUnknown      Outcome = ""
	OutcomeSuccess      Outcome = "success"
	OutcomeWarning      Outcome = "warning"
	OutcomePartialError Outcome = "partial_error"
	OutcomeFatalError   Outcome = "fatal_error"
)

// severity orders outcomes from best to worst.
func (o Outcome) severity() int {
	switch o {
	case OutcomeSuccess:
		return 1
	case OutcomeWarning:
		return 2
	case OutcomePartialError:
		return 3
	case OutcomeFatalError:
		return 4
	default:
		return 0
	}
}

// Worse returns the more severe of o and other.
func (o Outcome) Worse(other Outcome) Outcome {
	if other.severity() > o.severity() {
		return other
	}
	return o
}

// RunStatus is the finer run result consumed by the scheduler to decide
// retry, backoff, or termination.
type RunStatus string

const (
	RunStatusUnknown  RunStatus = ""
	RunFinished       RunStatus = "finished"
	RunInterrupted    RunStatus = "interrupted"
	RunTemporaryError RunStatus = "temporary_error"
	RunPermanentError RunStatus = "permanent_error"

	// RunWaiting is a transient in-flight state, never terminal.
	RunWaiting RunStatus = "waiting"
)

// ErrorState describes the error condition of a running unit of work.
// A non-nil StopReason means the unit must stop.
type ErrorState struct {
	StopReason error
}

// Stopping reports whether the state carries a stopping condition.
func (s ErrorState) Stopping() bool {
	return s.StopReason != nil
}

// ExecutionResult is the outcome of one unit of work (an activity run).
// Both statuses start unset and are filled in as sub-units report.
type ExecutionResult struct {
	// Outcome is the coarse status.
	Outcome Outcome `json:"outcome"`

	// RunStatus drives the scheduler's retry decision.
	RunStatus RunStatus `json:"run_status"`

	// Message describes the failure, if any.
	Message string `json:"message,omitempty"`

	// Err is the error that produced a failing status, if any.
	Err error `json:"-"`
}

// NewExecutionResult creates a result with both statuses unset.
func NewExecutionResult() *ExecutionResult {
	return &ExecutionResult{}
}

// FromError builds a result classifying err by its fault kind.
// Communication failures are temporary with a partial-error outcome;
// everything else is a permanent fatal error. A nil err yields an empty result.
func FromError(err error) *ExecutionResult {
	r := &ExecutionResult{}
	if err == nil {
		return r
	}
	r.RunStatus = Classify(err)
	r.Outcome = OutcomeFatalError
	if r.RunStatus == RunTemporaryError {
		r.Outcome = OutcomePartialError
	}
	r.Message = err.Error()
	r.Err = err
	return r
}

// Classify maps an error to the run status a scheduler acts on.
func Classify(err error) RunStatus {
	switch {
	case err == nil:
		return RunStatusUnknown
	case fault.IsTemporary(err):
		return RunTemporaryError
	default:
		return RunPermanentError
	}
}

// UpdateFromErrorState forces a permanent error when the state is stopping.
func (r *ExecutionResult) UpdateFromErrorState(s ErrorState) {
	if !s.Stopping() {
		return
	}
	r.RunStatus = RunPermanentError
	if r.Err == nil {
		r.Err = s.StopReason
		r.Message = s.StopReason.Error()
	}
}

// UpdateFromChild merges a child result. A worse child status overrides the
// parent; a better one never downgrades it. Child outcomes raise the parent
// outcome: a failed child makes the parent at least partially failed.
func (r *ExecutionResult) UpdateFromChild(child *ExecutionResult) {
	if child == nil {
		return
	}

	switch {
	case child.RunStatus == RunPermanentError:
		r.RunStatus = RunPermanentError
	case child.RunStatus == RunTemporaryError && r.RunStatus != RunPermanentError:
		r.RunStatus = RunTemporaryError
	}

	switch child.Outcome {
	case OutcomeFatalError, OutcomePartialError:
		r.Outcome = r.Outcome.Worse(OutcomePartialError)
	case OutcomeWarning:
		r.Outcome = r.Outcome.Worse(OutcomeWarning)
	}

	if child.Err != nil && r.Err == nil {
		r.Err = child.Err
		r.Message = child.Message
	}
}

// CompleteIfNoError fills in statuses that are still unset: the run is
// finished when the unit was allowed to keep running, interrupted otherwise;
// the outcome defaults to success. Already-set statuses are never touched.
func (r *ExecutionResult) CompleteIfNoError(canRun bool) {
	if r.RunStatus == RunStatusUnknown {
		if canRun {
			r.RunStatus = RunFinished
		} else {
			r.RunStatus = RunInterrupted
		}
	}
	if r.Outcome == OutcomeUnknown {
		r.Outcome = OutcomeSuccess
	}
}

// IsError reports whether the run ended with an error.
// Panics when the run is still waiting: error-ness of an in-flight unit is undefined.
func (r *ExecutionResult) IsError() bool {
	if r.RunStatus == RunWaiting {
		panic("activity: IsError queried on a waiting execution result")
	}
	return r.RunStatus == RunTemporaryError || r.RunStatus == RunPermanentError
}

// IsPermanentError reports a permanent error.
func (r *ExecutionResult) IsPermanentError() bool {
	return r.RunStatus == RunPermanentError
}

// IsTemporaryError reports a temporary error.
func (r *ExecutionResult) IsTemporaryError() bool {
	return r.RunStatus == RunTemporaryError
}

// IsFinished reports a run that completed normally.
func (r *ExecutionResult) IsFinished() bool {
	return r.RunStatus == RunFinished
}

func (r *ExecutionResult) String() string {
	if r.Message != "" {
		return fmt.Sprintf("%s/%s: %s", r.Outcome, r.RunStatus, r.Message)
	}
	return fmt.Sprintf("%s/%s", r.Outcome, r.RunStatus)
}
