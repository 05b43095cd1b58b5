// Package cli provides shared helpers for the superpose command line:
// signal-aware contexts, command error types, and output formatting for
// subcommands that print structured data.
package cli
