// Package resolve implements the resolution engine: the per-policy state
// machine that drives records from superposition to exactly one terminal
// outcome.
//
// Four algorithms produce the terminal state, applied in priority order:
// deadline expiry (max-weight with a fixed tie-break), deterministic keyed
// hash, observation sampling (with the high-stakes conservatism bias), and
// plain measurement. Every resolution is persisted through a single
// compare-and-swap guarded on resolved == false; when the CAS loses a race
// the engine performs one re-read and returns the winner's outcome, so
// resolution never applies twice or disagrees with itself.
package resolve
