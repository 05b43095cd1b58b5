package compliance

import (
	"context"
)

// Decision values returned by the backend.
const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
)

// ActionContext is the opaque caller-supplied context forwarded to the
// backend when a resolution is non-pending.
type ActionContext map[string]any

// Verdict is the backend's evaluation result.
type Verdict struct {
	// Decision is "allow" or "deny".
	Decision string `json:"decision"`

	// Reason is the backend's human-readable explanation.
	Reason string `json:"reason,omitempty"`

	// Source identifies where the verdict came from: the backend name, or
	// "fail-open"/"fail-closed" when the service substituted one.
	Source string `json:"source,omitempty"`
}

// Backend evaluates the actual policy semantics for a resolved,
// non-pending policy. Implementations must be safe for concurrent use.
type Backend interface {
	// Evaluate submits an action context and returns the backend's verdict.
	// Unreachability is returned as an error; the caller applies the
	// criticality-dependent fail-open/fail-closed policy.
	Evaluate(ctx context.Context, actionContext ActionContext) (*Verdict, error)
}
