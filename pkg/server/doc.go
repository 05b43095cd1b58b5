// Package server provides the HTTP surface of the superpose service.
//
// It exposes the four public operations plus record inspection and weight
// administration under /v1, and the operational endpoints /health, /ready,
// and /metrics. Requests pass through a middleware chain of panic recovery,
// request-id propagation, structured request logging, and a per-request
// timeout. Domain errors map to HTTP status codes by their machine-readable
// kind; response bodies are JSON.
package server
