// Package retention enforces the configured audit retention horizon: records
// older than the horizon are pruned on a cron schedule. Retention is an
// operational concern, not a correctness requirement; the evaluator never
// depends on old audit records.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"polaris-hq/superpose/pkg/audit"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to retain audit records.
	// 0 means keep records forever (no pruning).
	RetentionDays int

	// PruneSchedule is a cron expression for scheduling pruning.
	// Example: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 90,
		PruneSchedule: "0 3 * * *",
	}
}

// Pruner deletes audit records older than the retention horizon, optionally
// on a cron schedule.
type Pruner struct {
	storage audit.Storage
	config  *Config
	cron    *cron.Cron
	logger  *slog.Logger
	mu      sync.Mutex
	running bool
	now     func() time.Time
}

// NewPruner creates a retention pruner.
func NewPruner(storage audit.Storage, config *Config) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}
	return &Pruner{
		storage: storage,
		config:  config,
		cron:    cron.New(),
		logger:  slog.Default().With("component", "audit.retention"),
		now:     time.Now,
	}
}

// Prune deletes all records older than the retention horizon and returns the
// number removed. A zero RetentionDays disables pruning.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.config.RetentionDays <= 0 {
		return 0, nil
	}

	cutoff := p.now().UTC().AddDate(0, 0, -p.config.RetentionDays)
	deleted, err := p.storage.Delete(ctx, &audit.Query{EndTime: &cutoff})
	if err != nil {
		return 0, fmt.Errorf("pruning audit records before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	if deleted > 0 {
		p.logger.Info("audit records pruned",
			"deleted_count", deleted,
			"cutoff", cutoff.Format(time.RFC3339),
			"retention_days", p.config.RetentionDays,
		)
	}
	return deleted, nil
}

// Start schedules pruning per the configured cron expression. An empty
// schedule disables the scheduler. The scheduler stops when ctx is cancelled.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config.PruneSchedule == "" || p.config.RetentionDays <= 0 {
		p.logger.Info("audit retention scheduler disabled")
		return nil
	}

	if _, err := cron.ParseStandard(p.config.PruneSchedule); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", p.config.PruneSchedule, err)
	}

	_, err := p.cron.AddFunc(p.config.PruneSchedule, func() {
		if _, err := p.Prune(ctx); err != nil {
			p.logger.Error("scheduled audit pruning failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule audit pruning: %w", err)
	}

	p.cron.Start()
	p.running = true

	p.logger.Info("audit retention scheduler started",
		"schedule", p.config.PruneSchedule,
		"retention_days", p.config.RetentionDays,
	)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	return nil
}

// Stop halts the scheduler and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	<-p.cron.Stop().Done()
	p.running = false
	p.logger.Info("audit retention scheduler stopped")
}
