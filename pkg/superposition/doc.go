// Package superposition defines the core data model for the Policy
// Superposition Evaluator: policy records held in a probabilistic pending
// state (a weighted distribution over approved/rejected/pending) until an
// explicit trigger forces resolution.
//
// The package provides:
//   - PolicyRecord: the central persisted entity with its weight invariants
//   - Weights: the three-way distribution and its validation rules
//   - Manager: creation, retrieval, and administrative mutation of records
//   - The shared error taxonomy with stable machine-readable kinds
//
// Resolution itself (the transition from superposition to a terminal state)
// lives in pkg/resolve; this package only guarantees that terminal records
// are never mutated again.
package superposition
