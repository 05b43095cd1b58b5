package storage

// SchemaVersion is the current audit schema version. Bump when the table
// layout changes.
const SchemaVersion = 1

// Schema creates the audit tables and indexes.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_records (
	id                         TEXT PRIMARY KEY,
	policy_id                  TEXT NOT NULL,
	entanglement_tag           TEXT NOT NULL,
	resolution_reason          TEXT NOT NULL,
	resolved_state             TEXT NOT NULL,
	observer_id                TEXT NOT NULL DEFAULT '',
	observer_reason            TEXT NOT NULL DEFAULT '',
	timestamp                  INTEGER NOT NULL,
	baseline_key_id            TEXT NOT NULL,
	trade_off_constant         REAL NOT NULL,
	uncertainty_lambda_at_time REAL NOT NULL,
	downstream_verdict         TEXT NOT NULL DEFAULT '',
	downstream_warning         INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_audit_policy_id ON audit_records(policy_id);
CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_records(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_reason ON audit_records(resolution_reason);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);
`

// InsertSchemaVersion records the schema version, ignoring duplicates.
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?);`

// GetSchemaVersion reads the highest recorded schema version.
const GetSchemaVersion = `SELECT MAX(version) FROM schema_version;`
