package store

import (
	"errors"
	"fmt"

	sqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// Sentinel errors for the storage layer.
// Use errors.Is(err, store.ErrNotFound) to check.
var (
	// ErrNotFound is returned by explicit-contract lookups (e.g. loading a
	// collection that the caller asserts exists). Best-effort point lookups
	// return (nil, nil) instead.
	ErrNotFound = errors.New("store: not found")

	// ErrQuotaExceeded indicates the database hit a storage quota
	// (SQLITE_FULL). Callers can offer data-reduction remedies instead of
	// treating it as a generic failure.
	ErrQuotaExceeded = errors.New("store: quota exceeded")
)

// QuotaError wraps a quota-exhaustion failure with the operation that hit it,
// so the presentation layer can name what was being written when space ran out.
type QuotaError struct {
	Op  string
	Err error
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("store: %s: quota exceeded: %v", e.Op, e.Err)
}

func (e *QuotaError) Unwrap() error {
	return e.Err
}

// Is reports ErrQuotaExceeded so errors.Is(err, ErrQuotaExceeded) matches.
func (e *QuotaError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// classify maps a driver error to the storage taxonomy: quota exhaustion
// becomes a *QuotaError, everything else is wrapped with the operation name.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqlitelib.SQLITE_FULL {
		return &QuotaError{Op: op, Err: err}
	}

	return fmt.Errorf("store: %s: %w", op, err)
}

// isConnError reports whether an error indicates the underlying connection
// is unusable and should be discarded so the next call re-opens cleanly.
func isConnError(err error) bool {
	if err == nil {
		return false
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlitelib.SQLITE_MISUSE, sqlitelib.SQLITE_NOMEM, sqlitelib.SQLITE_INTERNAL:
			return true
		}
	}

	return errors.Is(err, errConnClosed)
}

// errConnClosed marks operations attempted against an explicitly closed store.
var errConnClosed = errors.New("store: connection closed")
