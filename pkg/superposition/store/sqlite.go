package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"polaris-hq/superpose/pkg/superposition"
)

// SQLiteStore implements superposition.Store using SQLite with a versioned
// row per policy. Compare-and-swap is an UPDATE guarded on both policy_id and
// version, so concurrent resolvers race safely on a single round trip.
//
// The database is opened in WAL mode for better concurrent read performance.
type SQLiteStore struct {
	db *sql.DB
}

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteStore opens (or creates) a SQLite-backed policy store.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite store: path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.Path, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, superposition.NewStorageError("open", err)
	}

	// SQLite supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, superposition.NewStorageError("init_schema", err)
	}

	return s, nil
}

// initSchema creates the policies table if it doesn't exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS policies (
		policy_id          TEXT PRIMARY KEY,
		w_approved         REAL NOT NULL,
		w_rejected         REAL NOT NULL,
		w_pending          REAL NOT NULL,
		criticality        TEXT NOT NULL,
		deadline           INTEGER NOT NULL,
		deterministic_mode INTEGER NOT NULL,
		entanglement_tag   TEXT NOT NULL,
		resolved           INTEGER NOT NULL,
		resolved_state     TEXT NOT NULL DEFAULT '',
		created_at         INTEGER NOT NULL,
		version            INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_policies_deadline ON policies(resolved, deadline);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Get retrieves the record for a policy_id.
func (s *SQLiteStore) Get(ctx context.Context, policyID string) (*superposition.PolicyRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT policy_id, w_approved, w_rejected, w_pending, criticality,
		       deadline, deterministic_mode, entanglement_tag, resolved,
		       resolved_state, created_at, version
		FROM policies WHERE policy_id = ?`, policyID)

	record, err := scanPolicy(row)
	if err == sql.ErrNoRows {
		return nil, superposition.NewNotFound(policyID)
	}
	if err != nil {
		return nil, superposition.NewStorageError("get", err)
	}
	return record, nil
}

// Create persists a new record with a creation-only write. The PRIMARY KEY
// constraint provides the fail-if-exists guarantee.
func (s *SQLiteStore) Create(ctx context.Context, record *superposition.PolicyRecord) error {
	record.Version = 1

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO policies (policy_id, w_approved, w_rejected, w_pending,
		                      criticality, deadline, deterministic_mode,
		                      entanglement_tag, resolved, resolved_state,
		                      created_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.PolicyID,
		record.Weights.Approved, record.Weights.Rejected, record.Weights.Pending,
		string(record.Criticality),
		record.Deadline.UnixNano(),
		boolToInt(record.DeterministicMode),
		record.EntanglementTag,
		boolToInt(record.Resolved),
		string(record.ResolvedState),
		record.CreatedAt.UnixNano(),
		record.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return superposition.NewAlreadyExists(record.PolicyID)
		}
		return superposition.NewStorageError("create", err)
	}
	return nil
}

// CompareAndSwap replaces the stored row when its version matches
// expectedVersion. Zero rows affected means either a version conflict or a
// vanished record; one extra point read disambiguates.
func (s *SQLiteStore) CompareAndSwap(ctx context.Context, record *superposition.PolicyRecord, expectedVersion uint64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE policies
		SET w_approved = ?, w_rejected = ?, w_pending = ?,
		    resolved = ?, resolved_state = ?, version = version + 1
		WHERE policy_id = ? AND version = ?`,
		record.Weights.Approved, record.Weights.Rejected, record.Weights.Pending,
		boolToInt(record.Resolved),
		string(record.ResolvedState),
		record.PolicyID,
		expectedVersion,
	)
	if err != nil {
		return superposition.NewStorageError("compare_and_swap", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return superposition.NewStorageError("compare_and_swap", err)
	}
	if affected == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM policies WHERE policy_id = ?`,
			record.PolicyID).Scan(&exists)
		if err != nil {
			return superposition.NewStorageError("compare_and_swap", err)
		}
		if exists == 0 {
			return superposition.NewNotFound(record.PolicyID)
		}
		return superposition.ErrVersionConflict
	}

	record.Version = expectedVersion + 1
	return nil
}

// Delete removes a record. Deleting an absent record is a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, policyID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM policies WHERE policy_id = ?`, policyID)
	if err != nil {
		return superposition.NewStorageError("delete", err)
	}
	return nil
}

// List iterates all records.
func (s *SQLiteStore) List(ctx context.Context, fn func(*superposition.PolicyRecord) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT policy_id, w_approved, w_rejected, w_pending, criticality,
		       deadline, deterministic_mode, entanglement_tag, resolved,
		       resolved_state, created_at, version
		FROM policies`)
	if err != nil {
		return superposition.NewStorageError("list", err)
	}
	defer rows.Close()

	for rows.Next() {
		record, err := scanPolicy(rows)
		if err != nil {
			return superposition.NewStorageError("list", err)
		}
		if err := fn(record); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return superposition.NewStorageError("list", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPolicy decodes one policies row into a record.
func scanPolicy(row rowScanner) (*superposition.PolicyRecord, error) {
	var (
		record               superposition.PolicyRecord
		criticality          string
		resolvedState        string
		deadlineNS, createNS int64
		deterministic        int
		resolved             int
	)

	err := row.Scan(
		&record.PolicyID,
		&record.Weights.Approved, &record.Weights.Rejected, &record.Weights.Pending,
		&criticality,
		&deadlineNS,
		&deterministic,
		&record.EntanglementTag,
		&resolved,
		&resolvedState,
		&createNS,
		&record.Version,
	)
	if err != nil {
		return nil, err
	}

	record.Criticality = superposition.Criticality(criticality)
	record.Deadline = time.Unix(0, deadlineNS).UTC()
	record.DeterministicMode = deterministic != 0
	record.Resolved = resolved != 0
	record.ResolvedState = superposition.State(resolvedState)
	record.CreatedAt = time.Unix(0, createNS).UTC()

	return &record, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation detects a primary-key collision from the driver error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
