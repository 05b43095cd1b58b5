package config

import "time"

// Config is the root configuration structure for the superpose service.
// It contains all configuration sections for the HTTP server, the record
// store, entanglement baseline secrets, resolution tunables, the compliance
// backend, the audit trail, and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, and header limits.
	Server ServerConfig `yaml:"server"`

	// Store contains configuration for the policy record store backend.
	Store StoreConfig `yaml:"store"`

	// Baseline contains configuration for the organizational baseline key
	// used to derive entanglement tags.
	Baseline BaselineConfig `yaml:"baseline"`

	// Resolution contains tunables for the resolution engine.
	Resolution ResolutionConfig `yaml:"resolution"`

	// Uncertainty contains the initial global uncertainty parameter.
	Uncertainty UncertaintyConfig `yaml:"uncertainty"`

	// Compliance contains configuration for the downstream compliance
	// backend and the fail-open policy on backend outage.
	Compliance ComplianceConfig `yaml:"compliance"`

	// Audit contains configuration for audit record storage, the async
	// recorder, and retention.
	Audit AuditConfig `yaml:"audit"`

	// Sweep contains configuration for the background deadline sweep.
	Sweep SweepConfig `yaml:"sweep"`

	// Telemetry contains configuration for logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Watch enables automatic reloading of resolution and compliance
	// tunables when the configuration file changes.
	// Default: false
	Watch bool `yaml:"watch"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8420").
	// Default: "127.0.0.1:8420"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response writes.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum time to wait for the next request when
	// keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// StoreConfig contains configuration for the policy record store.
type StoreConfig struct {
	// Backend selects the store implementation.
	// Options: "memory", "sqlite", "badger"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// Path is the database file (sqlite) or directory (badger).
	// Default: "data/policies.db"
	Path string `yaml:"path"`

	// SyncWrites forces synchronous writes for the badger backend.
	// Default: true
	SyncWrites bool `yaml:"sync_writes"`

	// BusyTimeout is the sqlite busy timeout.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// BaselineConfig contains configuration for the baseline key source.
// The key material itself is never stored in the configuration file.
type BaselineConfig struct {
	// Provider selects where the baseline key is read from.
	// Options: "env" (SUPERPOSE_SECRET_BASELINE_KEY), "file"
	// Default: "env"
	Provider string `yaml:"provider"`

	// Dir is the directory holding one secret per file when Provider
	// is "file".
	Dir string `yaml:"dir"`
}

// ResolutionConfig contains tunables for the resolution engine.
type ResolutionConfig struct {
	// HighStakesCriticality is the criticality level that triggers the
	// pending bias under high uncertainty.
	// Default: "HIGH"
	HighStakesCriticality string `yaml:"high_stakes_criticality"`

	// HighStakesLambdaThreshold is the uncertainty level above which
	// high-stakes observations resolve to pending for human review.
	// Default: 0.7
	HighStakesLambdaThreshold float64 `yaml:"high_stakes_lambda_threshold"`

	// TieBreakOrder lists the states in tie-break precedence for
	// deadline-triggered resolution.
	// Default: ["APPROVED", "REJECTED", "PENDING"]
	TieBreakOrder []string `yaml:"tie_break_order"`
}

// UncertaintyConfig contains the initial uncertainty parameter.
type UncertaintyConfig struct {
	// InitialLambda is the global uncertainty parameter at startup,
	// in [0, 1]. Low values favor resolution speed, high values favor
	// deliberation.
	// Default: 0.5
	InitialLambda float64 `yaml:"initial_lambda"`
}

// ComplianceConfig contains configuration for the downstream compliance
// backend.
type ComplianceConfig struct {
	// Backend selects the compliance integration.
	// Options: "http", "none"
	// Default: "none"
	Backend string `yaml:"backend"`

	// BaseURL is the compliance backend base URL when Backend is "http".
	BaseURL string `yaml:"base_url"`

	// Timeout is the maximum duration for compliance backend calls.
	// Default: 2s
	Timeout time.Duration `yaml:"timeout"`

	// FailOpen lets LOW and MEDIUM criticality policies receive an allow
	// verdict when the backend is unavailable. HIGH criticality always
	// fails closed regardless of this setting.
	// Default: false
	FailOpen bool `yaml:"fail_open"`
}

// AuditConfig contains configuration for the audit trail.
type AuditConfig struct {
	// Enabled controls whether resolutions are recorded.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend selects the audit storage implementation.
	// Options: "sqlite", "memory"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains sqlite-specific audit storage settings.
	SQLite AuditSQLiteConfig `yaml:"sqlite"`

	// Recorder contains async recorder settings.
	Recorder AuditRecorderConfig `yaml:"recorder"`

	// Retention contains audit retention settings.
	Retention AuditRetentionConfig `yaml:"retention"`
}

// AuditSQLiteConfig contains sqlite settings for audit storage.
type AuditSQLiteConfig struct {
	// Path is the audit database file.
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// BusyTimeout is the sqlite busy timeout.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// AuditRecorderConfig contains async recorder settings.
type AuditRecorderConfig struct {
	// AsyncBuffer is the channel buffer size for pending audit writes.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds how long an enqueue waits when the buffer
	// is full before the record is dropped.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// AuditRetentionConfig contains audit retention settings.
type AuditRetentionConfig struct {
	// Days is how long audit records are kept. Zero disables pruning.
	// Default: 90
	Days int `yaml:"days"`

	// Schedule is the cron expression for prune runs.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`
}

// SweepConfig contains configuration for the background deadline sweep.
type SweepConfig struct {
	// Enabled turns the background sweep on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Schedule is a cron expression or descriptor for sweep runs.
	// Default: "@every 1m"
	Schedule string `yaml:"schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging settings.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics settings.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format selects the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes source file and line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the metrics endpoint path.
	// Default: "/metrics"
	Path string `yaml:"path"`
}
