package store

import (
	"fmt"
	"time"

	"polaris-hq/superpose/pkg/superposition"
)

// Backend identifies a store implementation.
type Backend string

const (
	// BackendMemory is the in-memory store.
	BackendMemory Backend = "memory"
	// BackendSQLite is the SQLite store.
	BackendSQLite Backend = "sqlite"
	// BackendBadger is the embedded BadgerDB store.
	BackendBadger Backend = "badger"
)

// Config selects and configures a store backend.
type Config struct {
	// Backend selects the implementation. Default: memory.
	Backend Backend

	// Path is the database file (sqlite) or directory (badger).
	Path string

	// SyncWrites enables synchronous writes for the badger backend.
	SyncWrites bool

	// BusyTimeout is the lock wait for the sqlite backend.
	BusyTimeout time.Duration
}

// Open creates the store selected by the configuration.
func Open(cfg Config) (superposition.Store, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendSQLite:
		return NewSQLiteStore(SQLiteConfig{Path: cfg.Path, BusyTimeout: cfg.BusyTimeout})
	case BackendBadger:
		return NewBadgerStore(BadgerConfig{Path: cfg.Path, SyncWrites: cfg.SyncWrites})
	default:
		return nil, fmt.Errorf("unknown store backend: %q", cfg.Backend)
	}
}
