package compliance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"polaris-hq/superpose/pkg/superposition"
)

// HTTPConfig configures the HTTP compliance backend client.
type HTTPConfig struct {
	// BaseURL is the backend's base URL; Evaluate posts to
	// BaseURL + "/evaluate".
	BaseURL string

	// Timeout bounds one evaluation round trip.
	// Default: 2 seconds
	Timeout time.Duration
}

// HTTPBackend calls a remote compliance backend over HTTP JSON.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

// NewHTTPBackend creates an HTTP compliance backend client.
func NewHTTPBackend(cfg HTTPConfig) (*HTTPBackend, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("compliance backend: base URL cannot be empty")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}

	return &HTTPBackend{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Evaluate posts the action context to the backend and decodes its verdict.
// Transport failures and non-2xx responses surface as DownstreamUnavailable.
func (b *HTTPBackend) Evaluate(ctx context.Context, actionContext ActionContext) (*Verdict, error) {
	body, err := json.Marshal(actionContext)
	if err != nil {
		return nil, fmt.Errorf("encoding action context: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/evaluate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building evaluate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, superposition.NewDownstreamUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, superposition.NewDownstreamUnavailable(
			fmt.Errorf("backend returned status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, superposition.NewDownstreamUnavailable(err)
	}

	var verdict Verdict
	if err := json.Unmarshal(data, &verdict); err != nil {
		return nil, superposition.NewDownstreamUnavailable(
			fmt.Errorf("decoding verdict: %w", err))
	}
	if verdict.Source == "" {
		verdict.Source = "compliance-backend"
	}
	return &verdict, nil
}
