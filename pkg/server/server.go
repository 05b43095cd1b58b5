package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"polaris-hq/superpose/pkg/config"
	"polaris-hq/superpose/pkg/service"
)

// readinessProbeID is the reserved policy id used by the readiness probe.
// Lookups for it are expected to return NotFound.
const readinessProbeID = "__readiness_probe__"

// Server is the HTTP front of the superpose service.
type Server struct {
	cfg            *config.ServerConfig
	svc            *service.Service
	metricsPath    string
	metricsHandler http.Handler
	httpServer     *http.Server

	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates an HTTP server over the assembled service. metricsHandler
// may be nil when metrics are disabled.
func NewServer(cfg *config.ServerConfig, svc *service.Service, metricsPath string, metricsHandler http.Handler) *Server {
	return &Server{
		cfg:            cfg,
		svc:            svc,
		metricsPath:    metricsPath,
		metricsHandler: metricsHandler,
		shutdownChan:   make(chan struct{}),
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:           s.cfg.ListenAddress,
		Handler:        s.setupRoutes(),
		ReadTimeout:    s.cfg.ReadTimeout,
		WriteTimeout:   s.cfg.WriteTimeout,
		IdleTimeout:    s.cfg.IdleTimeout,
		MaxHeaderBytes: s.cfg.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting HTTP server", "address", s.cfg.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		slog.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown", "timeout", s.cfg.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("HTTP server stopped")
	})

	return shutdownErr
}

// setupRoutes builds the route table and wraps it in the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/policies", s.handleRegister)
	mux.HandleFunc("GET /v1/policies/{id}", s.handleGetPolicy)
	mux.HandleFunc("POST /v1/policies/{id}/resolve", s.handleResolve)
	mux.HandleFunc("POST /v1/policies/{id}/observe", s.handleObserve)
	mux.HandleFunc("PUT /v1/policies/{id}/weights", s.handleUpdateWeights)
	mux.HandleFunc("PUT /v1/uncertainty", s.handleSetUncertainty)
	mux.HandleFunc("GET /v1/uncertainty", s.handleGetUncertainty)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)

	if s.metricsHandler != nil {
		path := s.metricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, s.metricsHandler)
	}

	var handler http.Handler = mux
	handler = timeoutMiddleware(s.cfg.WriteTimeout)(handler)
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(handler)
	return handler
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}
