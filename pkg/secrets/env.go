package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// defaultEnvPrefix namespaces evaluator secrets in the environment.
const defaultEnvPrefix = "SUPERPOSE_SECRET_"

// EnvProvider loads secrets from environment variables.
//
// Secret names are converted to uppercase environment variable names with
// hyphens replaced by underscores, namespaced by the configured prefix.
//
// Example:
//   - Secret name: "baseline-key"
//   - Env var name: "SUPERPOSE_SECRET_BASELINE_KEY"
type EnvProvider struct {
	Prefix string // Optional prefix for environment variables
}

// NewEnvProvider creates a new environment variable secret provider.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{Prefix: prefix}
}

// GetSecret retrieves a secret from an environment variable.
func (p *EnvProvider) GetSecret(ctx context.Context, name string) (string, error) {
	envVar := p.Prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))

	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("secret not found in environment: %s (env var: %s)", name, envVar)
	}
	return value, nil
}

// Provider returns the provider name.
func (p *EnvProvider) Provider() string {
	return "env"
}
