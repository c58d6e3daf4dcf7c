// Package fault defines the error taxonomy of the reconciliation engine.
//
// Every failure the engine reports carries a Kind. Callers classify with
// KindOf / IsKind / IsTemporary, all of which see through wrapping.
package fault

import (
	"errors"
	"fmt"
)

// Kind categorizes errors.
type Kind string

const (
	// KindSchema indicates a malformed definition.
	KindSchema Kind = "SCHEMA"

	// KindCommunication indicates an external I/O failure. Presumed retryable.
	KindCommunication Kind = "COMMUNICATION"

	// KindObjectNotFound indicates a referenced entity is missing.
	KindObjectNotFound Kind = "OBJECT_NOT_FOUND"

	// KindConfiguration indicates a misconfigured mapping or profile.
	KindConfiguration Kind = "CONFIGURATION"

	// KindSecurity indicates an authorization denial.
	KindSecurity Kind = "SECURITY"

	// KindExpressionEvaluation indicates the mapping's computation itself failed.
	KindExpressionEvaluation Kind = "EXPRESSION_EVALUATION"

	// KindIllegalState indicates a programming defect such as re-entrant evaluation.
	KindIllegalState Kind = "ILLEGAL_STATE"
)

// Error is an engine error with a kind and optional context.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Op names the operation that failed, e.g. "construction.evaluate".
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s (op=%s)", e.Kind, msg, e.Op)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err with a kind. Returns nil if err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain,
// or "" when err carries no kind.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind returns true if err carries the given kind.
// Uses errors.As to handle wrapped errors.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsTemporary returns true if retrying the same unit of work may succeed.
// Only communication failures are temporary.
func IsTemporary(err error) bool {
	return IsKind(err, KindCommunication)
}

// IsIllegalState returns true for programming defects.
func IsIllegalState(err error) bool {
	return IsKind(err, KindIllegalState)
}

// Convenience constructors, one per kind.

func Schema(op, format string, args ...any) *Error {
	return Newf(KindSchema, op, format, args...)
}

func Communication(op string, err error) error {
	return Wrap(KindCommunication, op, err)
}

func ObjectNotFound(op, format string, args ...any) *Error {
	return Newf(KindObjectNotFound, op, format, args...)
}

func Configuration(op, format string, args ...any) *Error {
	return Newf(KindConfiguration, op, format, args...)
}

func Security(op, format string, args ...any) *Error {
	return Newf(KindSecurity, op, format, args...)
}

func ExpressionEvaluation(op string, err error) error {
	return Wrap(KindExpressionEvaluation, op, err)
}

func IllegalState(op, format string, args ...any) *Error {
	return Newf(KindIllegalState, op, format, args...)
}
