// Package service is the orchestration layer behind the RPC surface. It wires
// the state manager, entanglement layer, resolution engine, uncertainty
// controller, compliance backend, audit recorder, and metrics into the four
// public operations: Register, Resolve, Observe, and SetUncertainty.
//
// The service owns two policies the lower layers stay ignorant of: forwarding
// non-pending resolutions to the compliance backend (with the
// criticality-dependent fail-open/fail-closed substitution on backend
// outages), and emitting exactly one audit record per actual resolution.
package service
