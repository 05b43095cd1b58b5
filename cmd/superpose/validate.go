package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"polaris-hq/superpose/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Validate the configuration file without starting the server.

Checks YAML syntax, applies defaults and environment overrides, and runs the
full validation rules. Exits non-zero on the first invalid configuration.

Examples:
  # Validate the default config
  superpose validate

  # Validate a specific config
  superpose validate --config /etc/superpose/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Configuration valid: %s\n", cfgFile)
	if verbose {
		fmt.Printf("  listen address: %s\n", cfg.Server.ListenAddress)
		fmt.Printf("  store backend:  %s\n", cfg.Store.Backend)
		fmt.Printf("  audit backend:  %s\n", cfg.Audit.Backend)
		fmt.Printf("  compliance:     %s\n", cfg.Compliance.Backend)
		fmt.Printf("  initial lambda: %g\n", cfg.Uncertainty.InitialLambda)
	}
	return nil
}
