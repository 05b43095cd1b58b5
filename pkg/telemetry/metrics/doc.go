// Package metrics provides the Prometheus instrumentation for the evaluator:
// resolution counters by reason and terminal state, operation latency
// histograms with low-millisecond buckets, the live λ gauge, the
// trade-off constant distribution, CAS conflict and downstream failure
// counters, and the /metrics HTTP handler.
package metrics
