package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "superpose",
	Short: "Superpose - policy superposition evaluator",
	Long: `Superpose is a decision-state service that holds policy evaluations in
superposition: a weighted distribution over APPROVED, REJECTED, and PENDING
that collapses to a single permanent state when resolved.

It provides:
  - Weighted, deterministic, and deadline-triggered resolution
  - HMAC entanglement tags binding records to an organizational baseline
  - A global uncertainty parameter trading speed against deliberation
  - Compliance backend forwarding with fail-open/fail-closed handling
  - An async audit trail with retention and export`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
