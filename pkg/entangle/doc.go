// Package entangle binds every policy record to a fixed baseline key through
// a keyed hash (HMAC-SHA256 over the policy_id). The resulting tag is an
// integrity check, recomputable at any time: a mismatch means the record was
// tampered with or was created under a different baseline and must be
// rejected, never silently corrected.
//
// The baseline key is process-wide, loaded once at startup from a secrets
// provider, and never logged. Only a short derived key identifier (which
// reveals nothing about the key) appears in audit records.
package entangle
