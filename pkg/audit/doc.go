// Package audit defines the append-only audit trail emitted on every policy
// resolution: the record shape, the storage contract, and the shared error
// types. Recording is asynchronous (pkg/audit/recorder), storage backends
// live in pkg/audit/storage, retention enforcement in pkg/audit/retention,
// and export writers in pkg/audit/export.
//
// Audit records are derived data: they are written exactly once per
// resolution and never mutated.
package audit
