package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// IndexQueryStrategy answers multi-valued (tags) index lookups. The native
// strategy queries the JSON index directly; the scan strategy falls back to a
// full-store scan filtered by array membership for engines whose multi-value
// index semantics are unreliable. Both must produce identical results.
type IndexQueryStrategy interface {
	Name() string
	CollectionsByTag(ctx context.Context, q queryer, tag string) ([]*Collection, error)
	TasksByTag(ctx context.Context, q queryer, tag string) ([]*Task, error)
}

// probeIndexStrategy feature-probes the engine's JSON table-valued function
// support once at open and picks the strategy. The probe is explicit rather
// than a runtime check of driver internals, so tests can force either path.
func probeIndexStrategy(ctx context.Context, db *sql.DB, logger *slog.Logger) IndexQueryStrategy {
	var n int

	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM json_each('["probe"]') WHERE value = 'probe'`).Scan(&n)
	if err != nil || n != 1 {
		logger.Warn("json index probe failed, using scan fallback", "error", err)
		return &scanStrategy{}
	}

	logger.Debug("index strategy selected", "strategy", "native")

	return &nativeStrategy{}
}

// nativeStrategy resolves tag lookups with json_each against the stored
// JSON array column.
type nativeStrategy struct{}

func (nativeStrategy) Name() string { return "native" }

func (nativeStrategy) CollectionsByTag(ctx context.Context, q queryer, tag string) ([]*Collection, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+collectionColumns+` FROM collections
		 WHERE EXISTS (SELECT 1 FROM json_each(collections.tags) WHERE value = ?)
		 ORDER BY last_accessed DESC`, tag)
	if err != nil {
		return nil, fmt.Errorf("store: collections by tag %q: %w", tag, err)
	}
	defer rows.Close()

	return scanCollectionRows(rows)
}

func (nativeStrategy) TasksByTag(ctx context.Context, q queryer, tag string) ([]*Task, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE EXISTS (SELECT 1 FROM json_each(tasks.tags) WHERE value = ?)
		 ORDER BY created_at`, tag)
	if err != nil {
		return nil, fmt.Errorf("store: tasks by tag %q: %w", tag, err)
	}
	defer rows.Close()

	return scanTaskRows(rows)
}

// scanStrategy loads the full store and filters by array membership in Go.
// Slower but independent of the engine's JSON support; results must match the
// native strategy exactly.
type scanStrategy struct{}

func (scanStrategy) Name() string { return "scan" }

func (scanStrategy) CollectionsByTag(ctx context.Context, q queryer, tag string) ([]*Collection, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+collectionColumns+` FROM collections ORDER BY last_accessed DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: collections scan for tag %q: %w", tag, err)
	}
	defer rows.Close()

	all, err := scanCollectionRows(rows)
	if err != nil {
		return nil, err
	}

	var matched []*Collection

	for _, c := range all {
		if slices.Contains(c.Tags, tag) {
			matched = append(matched, c)
		}
	}

	return matched, nil
}

func (scanStrategy) TasksByTag(ctx context.Context, q queryer, tag string) ([]*Task, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("store: tasks scan for tag %q: %w", tag, err)
	}
	defer rows.Close()

	all, err := scanTaskRows(rows)
	if err != nil {
		return nil, err
	}

	var matched []*Task

	for _, t := range all {
		if slices.Contains(t.Tags, tag) {
			matched = append(matched, t)
		}
	}

	return matched, nil
}
