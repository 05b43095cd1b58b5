// Package uncertainty holds the single process-wide tunable λ ∈ [0,1] that
// governs the speed/accuracy trade-off of resolution, and computes the
// empirical trade-off constant K observed per operation.
//
// λ is read on every resolution and written only by rare administrative
// calls, so it lives behind an atomic load/store rather than a mutex. A write
// may race with a concurrent read; either the old or new value is acceptable
// for the duration of a single in-flight request.
package uncertainty
