// Package activity defines the unit-of-work contract between the evaluation
// core and the scheduling layer above it: the task being run, the
// operation-result sink, and the ExecutionResult the scheduler consumes to
// decide retry, backoff, or termination.
package activity

import (
	"context"
	"sync/atomic"
)

// ProcessingMode selects whether a processing phase runs.
type ProcessingMode string

const (
	// ProcessingAuto runs the phase when needed.
	ProcessingAuto ProcessingMode = ""
	// ProcessingSkip skips the phase entirely.
	ProcessingSkip ProcessingMode = "skip"
)

// ValidProcessingModes defines allowed modes.
var ValidProcessingModes = map[ProcessingMode]bool{
	ProcessingAuto: true,
	ProcessingSkip: true,
}

// PartialProcessing lets a pass skip phases of the projection pipeline.
type PartialProcessing struct {
	Inbound  ProcessingMode `json:"inbound,omitempty" yaml:"inbound,omitempty"`
	Outbound ProcessingMode `json:"outbound,omitempty" yaml:"outbound,omitempty"`
}

// Task is the running unit of work as seen by the evaluation core.
// Task and result are passed explicitly; there is no ambient task state.
type Task interface {
	// CanRun reports whether the unit of work may keep running.
	// Consulted only at unit-of-work boundaries.
	CanRun() bool

	// PartialProcessing returns the phase switches for this pass.
	PartialProcessing() PartialProcessing
}

// StaticTask is a Task with fixed answers.
type StaticTask struct {
	Running bool
	Options PartialProcessing
}

// CanRun implements Task.
func (t StaticTask) CanRun() bool { return t.Running }

// PartialProcessing implements Task.
func (t StaticTask) PartialProcessing() PartialProcessing { return t.Options }

// RunningTask is a Task bound to a context with an explicit stop switch.
type RunningTask struct {
	ctx     context.Context
	options PartialProcessing
	stopped atomic.Bool
}

var _ Task = (*RunningTask)(nil)

// NewTask creates a task that can run while ctx is live and Stop was not called.
func NewTask(ctx context.Context, options PartialProcessing) *RunningTask {
	return &RunningTask{ctx: ctx, options: options}
}

// CanRun implements Task.
func (t *RunningTask) CanRun() bool {
	return !t.stopped.Load() && t.ctx.Err() == nil
}

// PartialProcessing implements Task.
func (t *RunningTask) PartialProcessing() PartialProcessing {
	return t.options
}

// Stop requests cooperative cancellation.
func (t *RunningTask) Stop() {
	t.stopped.Store(true)
}
