package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileProvider loads secrets from files in a directory, one secret per file.
// This matches the layout of mounted secret volumes: the file name is the
// secret name, the trimmed file contents are the value.
type FileProvider struct {
	dir string
}

// NewFileProvider creates a file-based secret provider rooted at dir.
func NewFileProvider(dir string) (*FileProvider, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("secret directory inaccessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secret path is not a directory: %s", dir)
	}
	return &FileProvider{dir: dir}, nil
}

// GetSecret reads the secret file named after the secret.
func (p *FileProvider) GetSecret(ctx context.Context, name string) (string, error) {
	path := filepath.Join(p.dir, filepath.Base(name))

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("secret not found in directory: %s: %w", name, err)
	}

	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", fmt.Errorf("secret file is empty: %s", name)
	}
	return value, nil
}

// Provider returns the provider name.
func (p *FileProvider) Provider() string {
	return "file"
}
