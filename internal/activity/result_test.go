package activity

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reconcile/internal/fault"
)

// =============================================================================
// ExecutionResult status merging
// =============================================================================

func TestUpdateFromChild_PermanentBeatsTemporary(t *testing.T) {
	r := &ExecutionResult{RunStatus: RunFinished}
	r.UpdateFromChild(&ExecutionResult{RunStatus: RunTemporaryError})
	r.UpdateFromChild(&ExecutionResult{RunStatus: RunPermanentError})

	assert.Equal(t, RunPermanentError, r.RunStatus)
}

func TestUpdateFromChild_OrderIndependent(t *testing.T) {
	r := &ExecutionResult{RunStatus: RunFinished}
	r.UpdateFromChild(&ExecutionResult{RunStatus: RunPermanentError})
	r.UpdateFromChild(&ExecutionResult{RunStatus: RunTemporaryError})

	assert.Equal(t, RunPermanentError, r.RunStatus)
}

func TestUpdateFromChild_Idempotent(t *testing.T) {
	children := []struct {
		name  string
		child ExecutionResult
	}{
		{"finished", ExecutionResult{Outcome: OutcomeSuccess, RunStatus: RunFinished}},
		{"interrupted", ExecutionResult{Outcome: OutcomeSuccess, RunStatus: RunInterrupted}},
		{"temporary", ExecutionResult{Outcome: OutcomePartialError, RunStatus: RunTemporaryError, Message: "timeout"}},
		{"permanent", ExecutionResult{Outcome: OutcomeFatalError, RunStatus: RunPermanentError, Message: "bad mapping"}},
	}

	for _, tc := range children {
		t.Run(tc.name, func(t *testing.T) {
			once := &ExecutionResult{RunStatus: RunFinished}
			once.UpdateFromChild(&tc.child)

			twice := &ExecutionResult{RunStatus: RunFinished}
			twice.UpdateFromChild(&tc.child)
			twice.UpdateFromChild(&tc.child)

			assert.Equal(t, once.RunStatus, twice.RunStatus)
			assert.Equal(t, once.Outcome, twice.Outcome)
		})
	}
}

func TestUpdateFromChild_NeverDowngrades(t *testing.T) {
	r := &ExecutionResult{RunStatus: RunTemporaryError}
	r.UpdateFromChild(&ExecutionResult{RunStatus: RunFinished, Outcome: OutcomeSuccess})
	r.UpdateFromChild(nil)

	assert.Equal(t, RunTemporaryError, r.RunStatus)
}

func TestUpdateFromChild_RaisesOutcome(t *testing.T) {
	r := NewExecutionResult()
	r.UpdateFromChild(&ExecutionResult{Outcome: OutcomeWarning})
	assert.Equal(t, OutcomeWarning, r.Outcome)

	r.UpdateFromChild(&ExecutionResult{Outcome: OutcomeFatalError, Message: "boom", Err: errors.New("boom")})
	assert.Equal(t, OutcomePartialError, r.Outcome)
	assert.Equal(t, "boom", r.Message)

	r.UpdateFromChild(&ExecutionResult{Outcome: OutcomeSuccess})
	assert.Equal(t, OutcomePartialError, r.Outcome)
}

func TestUpdateFromErrorState(t *testing.T) {
	r := NewExecutionResult()
	r.UpdateFromErrorState(ErrorState{})
	assert.Equal(t, RunStatusUnknown, r.RunStatus)

	r.UpdateFromErrorState(ErrorState{StopReason: errors.New("threshold reached")})
	assert.Equal(t, RunPermanentError, r.RunStatus)
	assert.Equal(t, "threshold reached", r.Message)
}

// =============================================================================
// CompleteIfNoError
// =============================================================================

func TestCompleteIfNoError_Finished(t *testing.T) {
	r := NewExecutionResult()
	r.CompleteIfNoError(true)

	assert.Equal(t, RunFinished, r.RunStatus)
	assert.Equal(t, OutcomeSuccess, r.Outcome)
	assert.True(t, r.IsFinished())
	assert.False(t, r.IsError())
}

func TestCompleteIfNoError_Interrupted(t *testing.T) {
	r := NewExecutionResult()
	r.CompleteIfNoError(false)

	assert.Equal(t, RunInterrupted, r.RunStatus)
	assert.Equal(t, OutcomeSuccess, r.Outcome)
}

func TestCompleteIfNoError_KeepsSetStatuses(t *testing.T) {
	r := &ExecutionResult{RunStatus: RunTemporaryError}
	r.CompleteIfNoError(true)

	assert.Equal(t, RunTemporaryError, r.RunStatus)
	assert.Equal(t, OutcomeSuccess, r.Outcome, "unset outcome still defaults")

	r = &ExecutionResult{RunStatus: RunPermanentError, Outcome: OutcomeFatalError}
	r.CompleteIfNoError(false)
	assert.Equal(t, RunPermanentError, r.RunStatus)
	assert.Equal(t, OutcomeFatalError, r.Outcome)
}

// =============================================================================
// Predicates
// =============================================================================

func TestPredicates(t *testing.T) {
	tests := []struct {
		status    RunStatus
		isError   bool
		permanent bool
		temporary bool
		finished  bool
	}{
		{RunStatusUnknown, false, false, false, false},
		{RunFinished, false, false, false, true},
		{RunInterrupted, false, false, false, false},
		{RunTemporaryError, true, false, true, false},
		{RunPermanentError, true, true, false, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%s", tt.status), func(t *testing.T) {
			r := &ExecutionResult{RunStatus: tt.status}
			assert.Equal(t, tt.isError, r.IsError())
			assert.Equal(t, tt.permanent, r.IsPermanentError())
			assert.Equal(t, tt.temporary, r.IsTemporaryError())
			assert.Equal(t, tt.finished, r.IsFinished())
		})
	}
}

func TestIsError_PanicsWhileWaiting(t *testing.T) {
	r := &ExecutionResult{RunStatus: RunWaiting}
	assert.Panics(t, func() { r.IsError() })
}

// =============================================================================
// Classification
// =============================================================================

func TestFromError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    RunStatus
		outcome Outcome
	}{
		{"communication", fault.Communication("lookup", errors.New("timeout")), RunTemporaryError, OutcomePartialError},
		{"wrapped communication", fmt.Errorf("resolve: %w", fault.Communication("lookup", errors.New("reset"))), RunTemporaryError, OutcomePartialError},
		{"schema", fault.Schema("load", "missing field"), RunPermanentError, OutcomeFatalError},
		{"expression", fault.ExpressionEvaluation("eval", errors.New("no such key")), RunPermanentError, OutcomeFatalError},
		{"configuration", fault.Configuration("load", "bad value"), RunPermanentError, OutcomeFatalError},
		{"plain error", errors.New("unclassified"), RunPermanentError, OutcomeFatalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := FromError(tt.err)
			assert.Equal(t, tt.want, r.RunStatus)
			assert.Equal(t, tt.outcome, r.Outcome)
			assert.ErrorIs(t, r.Err, tt.err)
			assert.NotEmpty(t, r.Message)
		})
	}
}

func TestFromError_Nil(t *testing.T) {
	r := FromError(nil)
	assert.Equal(t, RunStatusUnknown, r.RunStatus)
	assert.Equal(t, OutcomeUnknown, r.Outcome)
	assert.Equal(t, RunStatusUnknown, Classify(nil))
}

// =============================================================================
// OperationResult
// =============================================================================

func TestOperationResult_ComputeStatus(t *testing.T) {
	root := NewOperationResult("recompute")
	a := root.Subresult("projection-a")
	b := root.Subresult("projection-b")
	a.RecordSuccess()
	b.RecordWarning("weak mapping skipped")

	assert.Equal(t, OutcomeWarning, root.ComputeStatus())

	nested := b.Subresult("attribute")
	nested.RecordFatal(errors.New("eval failed"))
	assert.Equal(t, OutcomeFatalError, root.ComputeStatus())
	assert.Equal(t, "eval failed", nested.Message)

	subs := root.Subresults()
	require.Len(t, subs, 2)
	assert.Equal(t, "projection-a", subs[0].Operation)
	assert.Equal(t, "projection-b", subs[1].Operation)
}

// =============================================================================
// Task
// =============================================================================

func TestRunningTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	task := NewTask(ctx, PartialProcessing{Outbound: ProcessingSkip})
	assert.True(t, task.CanRun())
	assert.Equal(t, ProcessingSkip, task.PartialProcessing().Outbound)

	task.Stop()
	assert.False(t, task.CanRun())

	other := NewTask(ctx, PartialProcessing{})
	cancel()
	assert.False(t, other.CanRun())
}

func TestStaticTask(t *testing.T) {
	var task Task = StaticTask{Running: true}
	assert.True(t, task.CanRun())
	assert.Equal(t, ProcessingAuto, task.PartialProcessing().Outbound)

	task = StaticTask{Options: PartialProcessing{Outbound: ProcessingSkip}}
	assert.False(t, task.CanRun())
	assert.Equal(t, ProcessingSkip, task.PartialProcessing().Outbound)
}
