// Package store is the highlight/session correlation store. It owns two SQLite
// connections: the viewer's local database (document hash lookups only) and the
// shared database holding highlights, AI sessions and their messages.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// TimeLayout is the stored timestamp format: UTC with microseconds, so that
// lexical order in SQL equals chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// DefaultExactTolerance is the per-axis window within which two selections
// are treated as the same highlight.
const DefaultExactTolerance = 1e-2

// DB wraps the local and shared connections with correlation-store operations.
type DB struct {
	local  *sql.DB
	shared *sql.DB
	logger *slog.Logger

	exactTolerance float64
	now            func() time.Time

	closeOnce sync.Once
	closeErr  error
}

// Option customises a DB at Open time.
type Option func(*DB)

// WithExactTolerance overrides the find-or-create matching window.
func WithExactTolerance(tol float64) Option {
	return func(db *DB) {
		if tol > 0 {
			db.exactTolerance = tol
		}
	}
}

// WithClock replaces the time source used for created/updated stamps.
func WithClock(now func() time.Time) Option {
	return func(db *DB) {
		if now != nil {
			db.now = now
		}
	}
}

// Open opens both databases and brings the shared schema up to date.
// Foreign-key enforcement is enabled on the shared connection so that deleting
// a highlight or a session cascades to its dependents.
func Open(localPath, sharedPath string, logger *slog.Logger, opts ...Option) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	local, err := openConn(localPath, "_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: open local db: %w", err)
	}
	shared, err := openConn(sharedPath, "_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		local.Close()
		return nil, fmt.Errorf("store: open shared db: %w", err)
	}

	db := &DB{
		local:          local,
		shared:         shared,
		logger:         logger,
		exactTolerance: DefaultExactTolerance,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(db)
	}

	if _, err := local.Exec(localSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply local schema: %w", err)
	}
	if err := db.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func openConn(path, params string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", "file:"+filepath.Clean(path)+"?"+params)
	if err != nil {
		return nil, err
	}
	// One connection keeps per-connection pragmas stable and matches SQLite's
	// single-writer model.
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// Close releases both connections. Calls after the first return the first result.
func (db *DB) Close() error {
	db.closeOnce.Do(func() {
		db.closeErr = errors.Join(db.local.Close(), db.shared.Close())
	})
	return db.closeErr
}

func (db *DB) timestamp() string {
	return db.now().UTC().Format(TimeLayout)
}
