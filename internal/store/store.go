package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

// walJournalSizeLimit caps the WAL file at 64 MiB.
const walJournalSizeLimit = 67108864

// Store is the singleton connection to the embedded database. The connection
// is established lazily on first use; concurrent callers serialize on the same
// in-flight open. After an unrecoverable driver error the handle is nulled and
// transparently re-established on the next call rather than failing forever.
type Store struct {
	path   string
	logger *slog.Logger

	mu       sync.Mutex
	db       *sql.DB
	closed   bool
	strategy IndexQueryStrategy
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithScanFallback forces the full-scan index strategy regardless of the
// startup feature probe. Used by tests to exercise the fallback path and by
// deployments on engines with broken multi-value index semantics.
func WithScanFallback() Option {
	return func(s *Store) {
		s.strategy = &scanStrategy{}
	}
}

// Open creates a Store for the database at path. The connection itself is not
// established until first use. Use ":memory:" for tests.
func Open(path string, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{path: path, logger: logger}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// conn returns the live database handle, opening it if necessary.
func (s *Store) conn(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errConnClosed
	}

	if s.db != nil {
		return s.db, nil
	}

	db, err := openDatabase(ctx, s.path, s.logger)
	if err != nil {
		return nil, err
	}

	if s.strategy == nil {
		s.strategy = probeIndexStrategy(ctx, db, s.logger)
	}

	s.db = db

	return db, nil
}

// openDatabase opens the SQLite file, sets pragmas, and runs migrations.
func openDatabase(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	logger.Info("opening collection database", "path", path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}

	// Single connection: SQLite is sole-writer and the in-memory DSN would
	// otherwise give each pooled connection its own empty database.
	db.SetMaxOpenConns(1)

	if err := setPragmas(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("collection database ready", "path", path)

	return db, nil
}

// setPragmas configures SQLite for WAL mode and safety.
func setPragmas(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	pragmas := []struct {
		sql  string
		desc string
	}{
		{"PRAGMA journal_mode = WAL", "WAL mode"},
		{"PRAGMA synchronous = FULL", "synchronous FULL"},
		{"PRAGMA foreign_keys = ON", "foreign keys"},
		{fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit), "journal size limit"},
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p.sql); err != nil {
			return fmt.Errorf("store: set pragma %s: %w", p.desc, err)
		}

		logger.Debug("pragma set", "pragma", p.desc)
	}

	return nil
}

// noteErr inspects an operation error and, if it indicates a dead connection,
// discards the handle so the next call re-opens cleanly.
func (s *Store) noteErr(err error) {
	if !isConnError(err) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		s.logger.Warn("database connection invalidated, will re-open on next use", "error", err)
		s.db.Close()
		s.db = nil
	}
}

// WithTx runs fn inside a read-write transaction spanning all four stores.
// If fn returns an error the transaction rolls back and the original error is
// surfaced to the caller, not a generic abort error. Commit failures go
// through the quota taxonomy so callers can distinguish SQLITE_FULL.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return s.withTx(ctx, nil, fn)
}

// ReadTx runs fn inside a read-only transaction, giving multi-store reads a
// consistent snapshot.
func (s *Store) ReadTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return s.withTx(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}

func (s *Store) withTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		s.noteErr(err)
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		s.noteErr(err)
		return classify("commit tx", err)
	}

	return nil
}

// ClearAll atomically wipes all four stores in one transaction.
// Destructive; used only for testing and explicit reset.
func (s *Store) ClearAll(ctx context.Context) error {
	s.logger.Warn("clearing all stores")

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"tasks", "tabs", "folders", "collections"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return classify("clear "+table, err)
			}
		}

		return nil
	})
}

// Close releases the database connection. Subsequent calls fail with a
// connection-closed error; Close is not reversible.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	if s.db == nil {
		return nil
	}

	s.logger.Info("closing collection database")

	db := s.db
	s.db = nil

	if err := db.Close(); err != nil {
		return fmt.Errorf("store: close database: %w", err)
	}

	return nil
}
