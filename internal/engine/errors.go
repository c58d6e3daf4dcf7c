package engine

import (
	"errors"
	"fmt"
)

// ProjectionError attaches the failing construction and projection to an
// evaluation error. Unwrap keeps the fault kind reachable, so classification
// of the wrapped error is unchanged.
type ProjectionError struct {
	// ConstructionID identifies the construction being evaluated.
	ConstructionID string

	// ProjectionOID identifies the projection, empty when there is none.
	ProjectionOID string

	// Phase is "evaluate" or "resolve".
	Phase string

	Err error
}

// Error implements the error interface.
func (e *ProjectionError) Error() string {
	if e.ProjectionOID != "" {
		return fmt.Sprintf("%s: %v (construction=%s, projection=%s)", e.Phase, e.Err, e.ConstructionID, e.ProjectionOID)
	}
	return fmt.Sprintf("%s: %v (construction=%s)", e.Phase, e.Err, e.ConstructionID)
}

// Unwrap returns the underlying error.
func (e *ProjectionError) Unwrap() error {
	return e.Err
}

// AsProjectionError returns the ProjectionError in err's chain, if any.
func AsProjectionError(err error) (*ProjectionError, bool) {
	var pe *ProjectionError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
