package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// Defaults are applied first so that fields absent from the file keep their
// default values, including booleans that default to true. The result is
// validated before being returned.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := NewDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention SUPERPOSE_SECTION_FIELD (e.g., SUPERPOSE_SERVER_LISTEN_ADDRESS)
// and always take precedence over file-based configuration.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Variables use the format SUPERPOSE_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	setString(&cfg.Server.ListenAddress, "SUPERPOSE_SERVER_LISTEN_ADDRESS")
	setDuration(&cfg.Server.ReadTimeout, "SUPERPOSE_SERVER_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "SUPERPOSE_SERVER_WRITE_TIMEOUT")
	setDuration(&cfg.Server.IdleTimeout, "SUPERPOSE_SERVER_IDLE_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "SUPERPOSE_SERVER_SHUTDOWN_TIMEOUT")
	setInt(&cfg.Server.MaxHeaderBytes, "SUPERPOSE_SERVER_MAX_HEADER_BYTES")

	// Store overrides
	setString(&cfg.Store.Backend, "SUPERPOSE_STORE_BACKEND")
	setString(&cfg.Store.Path, "SUPERPOSE_STORE_PATH")
	setBool(&cfg.Store.SyncWrites, "SUPERPOSE_STORE_SYNC_WRITES")
	setDuration(&cfg.Store.BusyTimeout, "SUPERPOSE_STORE_BUSY_TIMEOUT")

	// Baseline overrides
	setString(&cfg.Baseline.Provider, "SUPERPOSE_BASELINE_PROVIDER")
	setString(&cfg.Baseline.Dir, "SUPERPOSE_BASELINE_DIR")

	// Resolution overrides
	setString(&cfg.Resolution.HighStakesCriticality, "SUPERPOSE_RESOLUTION_HIGH_STAKES_CRITICALITY")
	setFloat(&cfg.Resolution.HighStakesLambdaThreshold, "SUPERPOSE_RESOLUTION_HIGH_STAKES_LAMBDA_THRESHOLD")
	if val := os.Getenv("SUPERPOSE_RESOLUTION_TIE_BREAK_ORDER"); val != "" {
		cfg.Resolution.TieBreakOrder = splitAndTrim(val)
	}

	// Uncertainty overrides
	setFloat(&cfg.Uncertainty.InitialLambda, "SUPERPOSE_UNCERTAINTY_INITIAL_LAMBDA")

	// Compliance overrides
	setString(&cfg.Compliance.Backend, "SUPERPOSE_COMPLIANCE_BACKEND")
	setString(&cfg.Compliance.BaseURL, "SUPERPOSE_COMPLIANCE_BASE_URL")
	setDuration(&cfg.Compliance.Timeout, "SUPERPOSE_COMPLIANCE_TIMEOUT")
	setBool(&cfg.Compliance.FailOpen, "SUPERPOSE_COMPLIANCE_FAIL_OPEN")

	// Audit overrides
	setBool(&cfg.Audit.Enabled, "SUPERPOSE_AUDIT_ENABLED")
	setString(&cfg.Audit.Backend, "SUPERPOSE_AUDIT_BACKEND")
	setString(&cfg.Audit.SQLite.Path, "SUPERPOSE_AUDIT_SQLITE_PATH")
	setInt(&cfg.Audit.Recorder.AsyncBuffer, "SUPERPOSE_AUDIT_RECORDER_ASYNC_BUFFER")
	setInt(&cfg.Audit.Retention.Days, "SUPERPOSE_AUDIT_RETENTION_DAYS")
	setString(&cfg.Audit.Retention.Schedule, "SUPERPOSE_AUDIT_RETENTION_SCHEDULE")

	// Sweep overrides
	setBool(&cfg.Sweep.Enabled, "SUPERPOSE_SWEEP_ENABLED")
	setString(&cfg.Sweep.Schedule, "SUPERPOSE_SWEEP_SCHEDULE")

	// Telemetry overrides
	setString(&cfg.Telemetry.Logging.Level, "SUPERPOSE_TELEMETRY_LOGGING_LEVEL")
	setString(&cfg.Telemetry.Logging.Format, "SUPERPOSE_TELEMETRY_LOGGING_FORMAT")
	setBool(&cfg.Telemetry.Metrics.Enabled, "SUPERPOSE_TELEMETRY_METRICS_ENABLED")
	setString(&cfg.Telemetry.Metrics.Path, "SUPERPOSE_TELEMETRY_METRICS_PATH")
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setBool(dst *bool, key string) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func setInt(dst *int, key string) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func setFloat(dst *float64, key string) {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
