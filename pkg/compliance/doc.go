// Package compliance defines the contract with the external compliance
// backend: the system that evaluates actual policy semantics once a
// resolution lands on a non-pending outcome. The evaluator consumes a single
// synchronous Evaluate call; backend availability is handled by the service
// layer's fail-open/fail-closed policy.
package compliance
