package recorder

import (
	"context"
	"errors"
	"testing"
	"time"

	"polaris-hq/superpose/pkg/audit"
	"polaris-hq/superpose/pkg/audit/storage"
)

func TestRecorderWritesAsync(t *testing.T) {
	st := storage.NewMemoryStorage()
	defer st.Close()

	r := NewRecorder(st, nil)

	for i := 0; i < 10; i++ {
		err := r.Record(context.Background(), &audit.Record{
			PolicyID:         "p-1",
			ResolutionReason: "measurement",
			ResolvedState:    "APPROVED",
		})
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	// Close drains the channel before returning.
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	count, err := st.Count(context.Background(), nil)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 10 {
		t.Errorf("stored records = %d, want 10", count)
	}
}

func TestRecorderAssignsIDAndTimestamp(t *testing.T) {
	st := storage.NewMemoryStorage()
	defer st.Close()

	r := NewRecorder(st, nil)

	record := &audit.Record{PolicyID: "p-1"}
	if err := r.Record(context.Background(), record); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if record.ID == "" {
		t.Error("Record() left ID empty")
	}
	if record.Timestamp.IsZero() {
		t.Error("Record() left Timestamp zero")
	}
	r.Close()
}

func TestRecorderPreservesExplicitID(t *testing.T) {
	st := storage.NewMemoryStorage()
	defer st.Close()

	r := NewRecorder(st, nil)
	defer r.Close()

	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	record := &audit.Record{ID: "explicit-id", PolicyID: "p-1", Timestamp: ts}
	if err := r.Record(context.Background(), record); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if record.ID != "explicit-id" {
		t.Errorf("ID = %q, want explicit-id", record.ID)
	}
	if !record.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", record.Timestamp, ts)
	}
}

func TestRecorderCloseIdempotent(t *testing.T) {
	r := NewRecorder(storage.NewMemoryStorage(), nil)

	if err := r.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestRecorderDropsAfterClose(t *testing.T) {
	st := storage.NewMemoryStorage()
	defer st.Close()

	r := NewRecorder(st, &Config{AsyncBuffer: 1, WriteTimeout: 50 * time.Millisecond})
	r.Close()

	// Fill the buffer, then the next enqueue must be rejected rather than
	// blocking forever.
	_ = r.Record(context.Background(), &audit.Record{PolicyID: "p-1"})
	err := r.Record(context.Background(), &audit.Record{PolicyID: "p-2"})
	if err == nil {
		t.Error("Record() after Close succeeded, want drop error")
	}
	var recErr *audit.RecorderError
	if err != nil && !errors.As(err, &recErr) {
		t.Errorf("Record() error = %T, want *audit.RecorderError", err)
	}
}
