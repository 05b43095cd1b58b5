package config

import (
	"fmt"
	"net/url"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field
	// (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateBaseline(&cfg.Baseline)...)
	errs = append(errs, validateResolution(&cfg.Resolution)...)
	errs = append(errs, validateUncertainty(&cfg.Uncertainty)...)
	errs = append(errs, validateCompliance(&cfg.Compliance)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}

	return errs
}

func validateStore(cfg *StoreConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory", "sqlite", "badger":
	default:
		errs = append(errs, FieldError{
			Field:   "store.backend",
			Message: fmt.Sprintf("unknown backend %q (must be memory, sqlite, or badger)", cfg.Backend),
		})
	}
	if cfg.Backend != "memory" && cfg.Path == "" {
		errs = append(errs, FieldError{
			Field:   "store.path",
			Message: "path is required for persistent backends",
		})
	}

	return errs
}

func validateBaseline(cfg *BaselineConfig) []FieldError {
	var errs []FieldError

	switch cfg.Provider {
	case "env":
	case "file":
		if cfg.Dir == "" {
			errs = append(errs, FieldError{
				Field:   "baseline.dir",
				Message: "dir is required when provider is file",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "baseline.provider",
			Message: fmt.Sprintf("unknown provider %q (must be env or file)", cfg.Provider),
		})
	}

	return errs
}

func validateResolution(cfg *ResolutionConfig) []FieldError {
	var errs []FieldError

	switch cfg.HighStakesCriticality {
	case "LOW", "MEDIUM", "HIGH":
	default:
		errs = append(errs, FieldError{
			Field:   "resolution.high_stakes_criticality",
			Message: fmt.Sprintf("unknown criticality %q (must be LOW, MEDIUM, or HIGH)", cfg.HighStakesCriticality),
		})
	}
	if cfg.HighStakesLambdaThreshold < 0 || cfg.HighStakesLambdaThreshold > 1 {
		errs = append(errs, FieldError{
			Field:   "resolution.high_stakes_lambda_threshold",
			Message: "threshold must be in [0, 1]",
		})
	}

	seen := make(map[string]bool)
	for _, state := range cfg.TieBreakOrder {
		switch state {
		case "APPROVED", "REJECTED", "PENDING":
		default:
			errs = append(errs, FieldError{
				Field:   "resolution.tie_break_order",
				Message: fmt.Sprintf("unknown state %q", state),
			})
			continue
		}
		if seen[state] {
			errs = append(errs, FieldError{
				Field:   "resolution.tie_break_order",
				Message: fmt.Sprintf("state %q listed more than once", state),
			})
		}
		seen[state] = true
	}
	if len(cfg.TieBreakOrder) != 3 || len(seen) != 3 {
		errs = append(errs, FieldError{
			Field:   "resolution.tie_break_order",
			Message: "must list each of APPROVED, REJECTED, PENDING exactly once",
		})
	}

	return errs
}

func validateUncertainty(cfg *UncertaintyConfig) []FieldError {
	var errs []FieldError

	if cfg.InitialLambda < 0 || cfg.InitialLambda > 1 {
		errs = append(errs, FieldError{
			Field:   "uncertainty.initial_lambda",
			Message: "initial lambda must be in [0, 1]",
		})
	}

	return errs
}

func validateCompliance(cfg *ComplianceConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "none":
	case "http":
		if cfg.BaseURL == "" {
			errs = append(errs, FieldError{
				Field:   "compliance.base_url",
				Message: "base_url is required when backend is http",
			})
		} else if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   "compliance.base_url",
				Message: fmt.Sprintf("invalid URL %q", cfg.BaseURL),
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "compliance.backend",
			Message: fmt.Sprintf("unknown backend %q (must be none or http)", cfg.Backend),
		})
	}
	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "compliance.timeout",
			Message: "timeout must be positive",
		})
	}

	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory", "sqlite":
	default:
		errs = append(errs, FieldError{
			Field:   "audit.backend",
			Message: fmt.Sprintf("unknown backend %q (must be memory or sqlite)", cfg.Backend),
		})
	}
	if cfg.Backend == "sqlite" && cfg.SQLite.Path == "" {
		errs = append(errs, FieldError{
			Field:   "audit.sqlite.path",
			Message: "path is required for the sqlite backend",
		})
	}
	if cfg.Recorder.AsyncBuffer < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.recorder.async_buffer",
			Message: "buffer size must be non-negative",
		})
	}
	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.retention.days",
			Message: "retention days must be non-negative",
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown level %q (must be debug, info, warn, or error)", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown format %q (must be json or text)", cfg.Logging.Format),
		})
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}

	return errs
}
