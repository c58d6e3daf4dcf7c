package activity

import "sync"

// OperationResult is the accumulating result sink handed to units of work.
// It forms a tree: each operation may open subresults for its parts.
//
// Subresult is safe for concurrent use so workers can open their own
// children; recording on a single node is done by its owner only.
type OperationResult struct {
	Operation string  `json:"operation"`
	Status    Outcome `json:"status"`
	Message   string  `json:"message,omitempty"`
	Err       error   `json:"-"`

	mu         sync.Mutex
	subresults []*OperationResult
}

// NewOperationResult creates a root result for the named operation.
func NewOperationResult(operation string) *OperationResult {
	return &OperationResult{Operation: operation}
}

// Subresult opens a child result.
func (r *OperationResult) Subresult(operation string) *OperationResult {
	child := NewOperationResult(operation)
	r.mu.Lock()
	r.subresults = append(r.subresults, child)
	r.mu.Unlock()
	return child
}

// Subresults returns a snapshot of the children in creation order.
func (r *OperationResult) Subresults() []*OperationResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*OperationResult, len(r.subresults))
	copy(out, r.subresults)
	return out
}

// RecordSuccess marks the operation successful.
func (r *OperationResult) RecordSuccess() {
	r.Status = OutcomeSuccess
}

// RecordWarning marks the operation successful with a warning.
func (r *OperationResult) RecordWarning(message string) {
	r.Status = OutcomeWarning
	r.Message = message
}

// RecordFatal marks the operation failed with err.
func (r *OperationResult) RecordFatal(err error) {
	r.Status = OutcomeFatalError
	r.Err = err
	if err != nil {
		r.Message = err.Error()
	}
}

// ComputeStatus returns the worst status of this node and its subtree.
// A node without its own status takes its children's worst status.
func (r *OperationResult) ComputeStatus() Outcome {
	status := r.Status
	for _, child := range r.Subresults() {
		status = status.Worse(child.ComputeStatus())
	}
	return status
}
