package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8420"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Store defaults
	DefaultStoreBackend     = "sqlite"
	DefaultStorePath        = "data/policies.db"
	DefaultStoreSyncWrites  = true
	DefaultStoreBusyTimeout = 5 * time.Second

	// Baseline defaults
	DefaultBaselineProvider = "env"

	// Resolution defaults
	DefaultHighStakesCriticality     = "HIGH"
	DefaultHighStakesLambdaThreshold = 0.7

	// Uncertainty defaults
	DefaultInitialLambda = 0.5

	// Compliance defaults
	DefaultComplianceBackend = "none"
	DefaultComplianceTimeout = 2 * time.Second

	// Audit defaults
	DefaultAuditEnabled              = true
	DefaultAuditBackend              = "sqlite"
	DefaultAuditSQLitePath           = "data/audit.db"
	DefaultAuditSQLiteBusyTimeout    = 5 * time.Second
	DefaultAuditRecorderAsyncBuffer  = 1000
	DefaultAuditRecorderWriteTimeout = 5 * time.Second
	DefaultAuditRetentionDays        = 90
	DefaultAuditRetentionSchedule    = "0 3 * * *"

	// Sweep defaults
	DefaultSweepSchedule = "@every 1m"

	// Telemetry defaults
	DefaultLoggingLevel   = "info"
	DefaultLoggingFormat  = "json"
	DefaultMetricsEnabled = true
	DefaultMetricsPath    = "/metrics"
)

// DefaultTieBreakOrder is the state precedence used to break weight ties
// during deadline-triggered resolution.
var DefaultTieBreakOrder = []string{"APPROVED", "REJECTED", "PENDING"}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultStoreBackend
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath
	}
	if cfg.Store.BusyTimeout == 0 {
		cfg.Store.BusyTimeout = DefaultStoreBusyTimeout
	}

	if cfg.Baseline.Provider == "" {
		cfg.Baseline.Provider = DefaultBaselineProvider
	}

	if cfg.Resolution.HighStakesCriticality == "" {
		cfg.Resolution.HighStakesCriticality = DefaultHighStakesCriticality
	}
	if cfg.Resolution.HighStakesLambdaThreshold == 0 {
		cfg.Resolution.HighStakesLambdaThreshold = DefaultHighStakesLambdaThreshold
	}
	if len(cfg.Resolution.TieBreakOrder) == 0 {
		cfg.Resolution.TieBreakOrder = append([]string(nil), DefaultTieBreakOrder...)
	}

	if cfg.Uncertainty.InitialLambda == 0 {
		cfg.Uncertainty.InitialLambda = DefaultInitialLambda
	}

	if cfg.Compliance.Backend == "" {
		cfg.Compliance.Backend = DefaultComplianceBackend
	}
	if cfg.Compliance.Timeout == 0 {
		cfg.Compliance.Timeout = DefaultComplianceTimeout
	}

	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Audit.SQLite.Path == "" {
		cfg.Audit.SQLite.Path = DefaultAuditSQLitePath
	}
	if cfg.Audit.SQLite.BusyTimeout == 0 {
		cfg.Audit.SQLite.BusyTimeout = DefaultAuditSQLiteBusyTimeout
	}
	if cfg.Audit.Recorder.AsyncBuffer == 0 {
		cfg.Audit.Recorder.AsyncBuffer = DefaultAuditRecorderAsyncBuffer
	}
	if cfg.Audit.Recorder.WriteTimeout == 0 {
		cfg.Audit.Recorder.WriteTimeout = DefaultAuditRecorderWriteTimeout
	}
	if cfg.Audit.Retention.Days == 0 {
		cfg.Audit.Retention.Days = DefaultAuditRetentionDays
	}
	if cfg.Audit.Retention.Schedule == "" {
		cfg.Audit.Retention.Schedule = DefaultAuditRetentionSchedule
	}

	if cfg.Sweep.Schedule == "" {
		cfg.Sweep.Schedule = DefaultSweepSchedule
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
}

// NewDefaultConfig returns a Config populated entirely with default values.
// Boolean fields that default to true are set explicitly since ApplyDefaults
// cannot distinguish false from unset.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Store.SyncWrites = DefaultStoreSyncWrites
	cfg.Audit.Enabled = DefaultAuditEnabled
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	ApplyDefaults(cfg)
	return cfg
}
