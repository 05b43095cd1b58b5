// Package sweep provides the optional low-priority background sweep that
// proactively resolves deadline-expired records. The sweep is not required
// for correctness (deadline checks run inline on every touch); it only keeps
// the store from accumulating expired superpositions nobody asks about.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"polaris-hq/superpose/pkg/resolve"
	"polaris-hq/superpose/pkg/superposition"
)

// Resolver is the narrow service hook the sweeper needs: resolve a record
// only if its deadline passed.
type Resolver interface {
	ResolveExpired(ctx context.Context, policyID string) (*resolve.Outcome, error)
}

// Config contains configuration for the sweeper.
type Config struct {
	// Enabled turns the background sweep on.
	Enabled bool

	// Schedule is a cron expression or descriptor for sweep runs.
	// Default: "@every 1m"
	Schedule string
}

// DefaultConfig returns the default sweep configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:  false,
		Schedule: "@every 1m",
	}
}

// Sweeper periodically scans the store and resolves expired records.
type Sweeper struct {
	store    superposition.Store
	resolver Resolver
	cfg      Config
	cron     *cron.Cron
	logger   *slog.Logger
	mu       sync.Mutex
	running  bool
	now      func() time.Time
}

// NewSweeper creates a sweeper over the given store and resolver.
func NewSweeper(store superposition.Store, resolver Resolver, cfg Config) *Sweeper {
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 1m"
	}
	return &Sweeper{
		store:    store,
		resolver: resolver,
		cfg:      cfg,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "sweep"),
		now:      time.Now,
	}
}

// Run performs one sweep pass and returns how many records it resolved.
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	var expired []string
	now := s.now()

	err := s.store.List(ctx, func(record *superposition.PolicyRecord) error {
		if !record.Resolved && record.DeadlineExpired(now) {
			expired = append(expired, record.PolicyID)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("listing records for sweep: %w", err)
	}

	resolved := 0
	for _, policyID := range expired {
		outcome, err := s.resolver.ResolveExpired(ctx, policyID)
		if err != nil {
			s.logger.Error("sweep resolution failed",
				"policy_id", policyID,
				"error", err,
			)
			continue
		}
		if outcome != nil && outcome.ResolvedByThisCall {
			resolved++
		}
	}

	if resolved > 0 {
		s.logger.Info("sweep pass completed",
			"expired_found", len(expired),
			"resolved", resolved,
		)
	}
	return resolved, nil
}

// Start schedules sweep passes per the configured schedule. The sweeper stops
// when ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled {
		s.logger.Info("deadline sweep disabled")
		return nil
	}

	if _, err := cron.ParseStandard(s.cfg.Schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.cfg.Schedule, err)
	}

	_, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		if _, err := s.Run(ctx); err != nil {
			s.logger.Error("sweep pass failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("deadline sweep started", "schedule", s.cfg.Schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts the scheduler and waits for a running pass to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("deadline sweep stopped")
}
