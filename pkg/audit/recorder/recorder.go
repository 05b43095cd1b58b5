// Package recorder provides asynchronous, non-blocking persistence of audit
// records. Resolutions must stay in the low-millisecond range, so the write
// path is a buffered channel drained by a background worker; a slow or full
// backend drops the record with an error rather than stalling the caller.
package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"polaris-hq/superpose/pkg/audit"
)

// Config contains configuration for the audit recorder.
type Config struct {
	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout is the timeout for writing a record to storage, and the
	// longest an enqueue will wait on a full channel.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder writes audit records to storage asynchronously.
type Recorder struct {
	storage    audit.Storage
	config     *Config
	recordChan chan *audit.Record
	wg         sync.WaitGroup
	done       chan struct{}
	closeOnce  sync.Once
	logger     *slog.Logger
}

// NewRecorder creates an audit recorder with the provided storage backend and
// starts its background worker.
func NewRecorder(storage audit.Storage, config *Config) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = 1000
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}

	r := &Recorder{
		storage:    storage,
		config:     config,
		recordChan: make(chan *audit.Record, config.AsyncBuffer),
		done:       make(chan struct{}),
		logger:     slog.Default().With("component", "audit.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	return r
}

// Record assigns the record an ID and enqueues it for async writing. It
// returns immediately in the common case; a full channel waits up to
// WriteTimeout before dropping the record with an error.
func (r *Recorder) Record(ctx context.Context, record *audit.Record) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	select {
	case r.recordChan <- record:
		return nil
	default:
	}

	// Channel full: wait bounded by the write timeout.
	timer := time.NewTimer(r.config.WriteTimeout)
	defer timer.Stop()

	select {
	case r.recordChan <- record:
		return nil
	case <-timer.C:
		r.logger.Error("audit channel full, dropping record",
			"record_id", record.ID,
			"policy_id", record.PolicyID,
			"channel_capacity", r.config.AsyncBuffer,
		)
		return audit.NewRecorderError(record.ID, context.DeadlineExceeded)
	case <-r.done:
		r.logger.Warn("recorder shutting down, dropping record",
			"record_id", record.ID,
			"policy_id", record.PolicyID,
		)
		return audit.NewRecorderError(record.ID, context.Canceled)
	}
}

// Close shuts down the recorder, draining the channel and waiting for all
// pending writes to complete. Safe to call more than once.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
	return nil
}

// worker drains the record channel and writes to storage.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.recordChan:
			r.writeRecord(record)

		case <-r.done:
			for {
				select {
				case record := <-r.recordChan:
					r.writeRecord(record)
				default:
					return
				}
			}
		}
	}
}

// writeRecord writes a single record to storage.
func (r *Recorder) writeRecord(record *audit.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.storage.Store(ctx, record); err != nil {
		r.logger.Error("failed to store audit record",
			"record_id", record.ID,
			"policy_id", record.PolicyID,
			"error", err,
		)
		return
	}

	r.logger.Debug("audit record stored",
		"record_id", record.ID,
		"policy_id", record.PolicyID,
		"reason", record.ResolutionReason,
	)
}
