package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"polaris-hq/superpose/pkg/audit"
)

// SQLiteConfig contains configuration for the SQLite audit backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/audit.db",
		MaxOpenConns: 10,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements audit.Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens (or creates) the audit database and initializes the
// schema.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: slog.Default().With("component", "audit.storage.sqlite"),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("audit storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

// initialize sets up the schema and pragmas.
func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return audit.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busyTimeoutMS := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMS)); err != nil {
		return audit.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return audit.NewStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return audit.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return audit.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return audit.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Store persists one audit record.
func (s *SQLiteStorage) Store(ctx context.Context, record *audit.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_records (id, policy_id, entanglement_tag,
			resolution_reason, resolved_state, observer_id, observer_reason,
			timestamp, baseline_key_id, trade_off_constant,
			uncertainty_lambda_at_time, downstream_verdict, downstream_warning)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.PolicyID,
		record.EntanglementTag,
		record.ResolutionReason,
		record.ResolvedState,
		record.ObserverID,
		record.ObserverReason,
		record.Timestamp.UnixNano(),
		record.BaselineKeyID,
		record.TradeOffConstant,
		record.UncertaintyLambdaAtTime,
		record.DownstreamVerdict,
		boolToInt(record.DownstreamWarning),
	)
	if err != nil {
		return audit.NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Query retrieves matching records, newest first.
func (s *SQLiteStorage) Query(ctx context.Context, query *audit.Query) ([]*audit.Record, error) {
	where, args := buildWhere(query)

	sqlQuery := `
		SELECT id, policy_id, entanglement_tag, resolution_reason,
		       resolved_state, observer_id, observer_reason, timestamp,
		       baseline_key_id, trade_off_constant,
		       uncertainty_lambda_at_time, downstream_verdict,
		       downstream_warning
		FROM audit_records` + where + ` ORDER BY timestamp DESC`

	if query != nil && query.Limit > 0 {
		sqlQuery += fmt.Sprintf(" LIMIT %d OFFSET %d", query.Limit, query.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	var results []*audit.Record
	for rows.Next() {
		var (
			record      audit.Record
			timestampNS int64
			warning     int
		)
		err := rows.Scan(
			&record.ID,
			&record.PolicyID,
			&record.EntanglementTag,
			&record.ResolutionReason,
			&record.ResolvedState,
			&record.ObserverID,
			&record.ObserverReason,
			&timestampNS,
			&record.BaselineKeyID,
			&record.TradeOffConstant,
			&record.UncertaintyLambdaAtTime,
			&record.DownstreamVerdict,
			&warning,
		)
		if err != nil {
			return nil, audit.NewStorageError("sqlite", "query", err)
		}
		record.Timestamp = time.Unix(0, timestampNS).UTC()
		record.DownstreamWarning = warning != 0
		results = append(results, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError("sqlite", "query", err)
	}

	return results, nil
}

// Count returns the number of matching records.
func (s *SQLiteStorage) Count(ctx context.Context, query *audit.Query) (int64, error) {
	where, args := buildWhere(query)

	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM audit_records`+where, args...).Scan(&count)
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Delete removes matching records.
func (s *SQLiteStorage) Delete(ctx context.Context, query *audit.Query) (int64, error) {
	where, args := buildWhere(query)

	result, err := s.db.ExecContext(ctx, `DELETE FROM audit_records`+where, args...)
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "delete", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "delete", err)
	}
	return deleted, nil
}

// Close closes the underlying database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// buildWhere assembles the WHERE clause for a query.
func buildWhere(query *audit.Query) (string, []any) {
	if query == nil {
		return "", nil
	}

	var clauses []string
	var args []any

	if query.PolicyID != "" {
		clauses = append(clauses, "policy_id = ?")
		args = append(args, query.PolicyID)
	}
	if query.ResolutionReason != "" {
		clauses = append(clauses, "resolution_reason = ?")
		args = append(args, query.ResolutionReason)
	}
	if query.ObserverID != "" {
		clauses = append(clauses, "observer_id = ?")
		args = append(args, query.ObserverID)
	}
	if query.StartTime != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, query.StartTime.UnixNano())
	}
	if query.EndTime != nil {
		clauses = append(clauses, "timestamp < ?")
		args = append(args, query.EndTime.UnixNano())
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
