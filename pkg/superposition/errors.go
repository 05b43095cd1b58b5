package superposition

import (
	"errors"
	"fmt"
)

// Kind is a stable machine-readable error classification. Kinds are part of
// the external contract: they appear verbatim in RPC error payloads and must
// not change between releases.
type Kind string

const (
	// KindNotFound indicates an unknown policy_id.
	KindNotFound Kind = "NOT_FOUND"
	// KindAlreadyExists indicates a duplicate Register.
	KindAlreadyExists Kind = "ALREADY_EXISTS"
	// KindAlreadyResolved indicates a mutation attempted on a terminal record.
	// It is never surfaced from Resolve/Observe, which return the existing
	// state instead.
	KindAlreadyResolved Kind = "ALREADY_RESOLVED"
	// KindInvalidWeights indicates a manual weight update that violates the
	// sum-to-one invariant.
	KindInvalidWeights Kind = "INVALID_WEIGHTS"
	// KindEntanglementMismatch indicates a tag verification failure. This is
	// an integrity violation: always logged and rejected, never corrected.
	KindEntanglementMismatch Kind = "ENTANGLEMENT_MISMATCH"
	// KindOutOfRange indicates an uncertainty parameter outside [0,1].
	KindOutOfRange Kind = "OUT_OF_RANGE"
	// KindDownstreamUnavailable indicates the compliance backend was
	// unreachable; handled per the fail-open/fail-closed policy.
	KindDownstreamUnavailable Kind = "DOWNSTREAM_UNAVAILABLE"
	// KindStorage indicates an internal state-store failure.
	KindStorage Kind = "STORAGE"
)

// Error is the shared error type for the evaluator core. It carries a stable
// Kind alongside a human-readable message and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates an Error with the given kind and message.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates an Error with the given kind, message, and cause.
func WrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from an error chain. It returns an empty Kind for
// nil errors and errors that do not carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether any error in the chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// NewNotFound creates the error returned for an unknown policy_id.
func NewNotFound(policyID string) *Error {
	return NewError(KindNotFound, fmt.Sprintf("policy %q not found", policyID))
}

// NewAlreadyExists creates the error returned for a duplicate Register.
func NewAlreadyExists(policyID string) *Error {
	return NewError(KindAlreadyExists, fmt.Sprintf("policy %q already exists", policyID))
}

// NewAlreadyResolved creates the error returned when a mutation targets a
// terminal record.
func NewAlreadyResolved(policyID string, state State) *Error {
	return NewError(KindAlreadyResolved,
		fmt.Sprintf("policy %q already resolved to %s", policyID, state))
}

// NewInvalidWeights creates the error returned for a weight-invariant violation.
func NewInvalidWeights(reason string) *Error {
	return NewError(KindInvalidWeights, reason)
}

// NewEntanglementMismatch creates the integrity-violation error for a failed
// tag verification.
func NewEntanglementMismatch(policyID string) *Error {
	return NewError(KindEntanglementMismatch,
		fmt.Sprintf("entanglement tag mismatch for policy %q", policyID))
}

// NewOutOfRange creates the error returned for an uncertainty value outside [0,1].
func NewOutOfRange(value float64) *Error {
	return NewError(KindOutOfRange,
		fmt.Sprintf("uncertainty parameter %g outside [0,1]", value))
}

// NewDownstreamUnavailable creates the error recorded when the compliance
// backend is unreachable.
func NewDownstreamUnavailable(cause error) *Error {
	return WrapError(KindDownstreamUnavailable, "compliance backend unreachable", cause)
}

// NewStorageError wraps an internal state-store failure.
func NewStorageError(operation string, cause error) *Error {
	return WrapError(KindStorage, fmt.Sprintf("store operation %q failed", operation), cause)
}
