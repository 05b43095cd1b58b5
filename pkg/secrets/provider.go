package secrets

import (
	"context"
	"fmt"
)

// Provider resolves named secrets from an external source.
type Provider interface {
	// GetSecret retrieves a secret by name. An empty value is an error.
	GetSecret(ctx context.Context, name string) (string, error)

	// Provider returns the provider name for logging.
	Provider() string
}

// NewProvider creates a provider by source name. Supported sources: "env"
// (environment variables) and "file" (one secret per file under a directory).
func NewProvider(source, location string) (Provider, error) {
	switch source {
	case "env", "":
		return NewEnvProvider(defaultEnvPrefix), nil
	case "file":
		return NewFileProvider(location)
	default:
		return nil, fmt.Errorf("unknown secret source: %q", source)
	}
}
