// Package store provides backends implementing the superposition.Store
// contract: an in-memory map for tests and single-process deployments, a
// SQLite backend using versioned-row compare-and-swap, and an embedded
// BadgerDB backend using serializable transactions.
//
// All backends share the same optimistic-concurrency semantics: every record
// carries a version counter, Create fails on duplicates, and CompareAndSwap
// succeeds only when the stored version matches the caller's expectation.
package store
