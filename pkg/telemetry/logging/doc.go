// Package logging provides the structured logger for the evaluator, a thin
// wrapper over log/slog with level and format parsing and request-scoped
// context fields. The configured logger is installed as the slog default so
// component loggers (slog.Default().With("component", ...)) inherit it.
package logging
