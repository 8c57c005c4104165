package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// collectionColumns is the column list shared by all collection queries.
const collectionColumns = `id, name, is_active, window_id, tags,
	tracking_enabled, sync_debounce_ms, auto_sync,
	created_at, last_accessed, tab_count, folder_count`

const sqlUpsertCollection = `INSERT INTO collections (` + collectionColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name             = excluded.name,
		is_active        = excluded.is_active,
		window_id        = excluded.window_id,
		tags             = excluded.tags,
		tracking_enabled = excluded.tracking_enabled,
		sync_debounce_ms = excluded.sync_debounce_ms,
		auto_sync        = excluded.auto_sync,
		last_accessed    = excluded.last_accessed,
		tab_count        = excluded.tab_count,
		folder_count     = excluded.folder_count`

// scanCollection scans a single collection row.
func scanCollection(row interface{ Scan(...any) error }) (*Collection, error) {
	c := &Collection{}

	var tagsJSON string

	err := row.Scan(
		&c.ID, &c.Name, &c.IsActive, &c.WindowID, &tagsJSON,
		&c.TrackingEnabled, &c.SyncDebounceMs, &c.AutoSync,
		&c.CreatedAt, &c.LastAccessed, &c.TabCount, &c.FolderCount,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tagsJSON), &c.Tags); err != nil {
		return nil, fmt.Errorf("store: parsing tags for collection %s: %w", c.ID, err)
	}

	return c, nil
}

// scanCollectionRows iterates over sql.Rows and collects Collections.
func scanCollectionRows(rows *sql.Rows) ([]*Collection, error) {
	var result []*Collection

	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan collection row: %w", err)
		}

		result = append(result, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate collection rows: %w", err)
	}

	return result, nil
}

// encodeTags marshals a tag slice to the stored JSON representation.
// nil encodes as an empty array so scans round-trip cleanly.
func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}

	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("store: encoding tags: %w", err)
	}

	return string(b), nil
}

// GetCollection retrieves a collection by id. Returns (nil, nil) when no
// collection exists — callers use the nil to distinguish "unknown id" from
// lookup failure.
func (s *Store) GetCollection(ctx context.Context, id string) (*Collection, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	c, err := scanCollection(db.QueryRowContext(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		s.noteErr(err)
		return nil, fmt.Errorf("store: get collection %s: %w", id, err)
	}

	return c, nil
}

// SaveCollection inserts or updates a collection record.
func (s *Store) SaveCollection(ctx context.Context, c *Collection) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	tags, err := encodeTags(c.Tags)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, sqlUpsertCollection,
		c.ID, c.Name, c.IsActive, c.WindowID, tags,
		c.TrackingEnabled, c.SyncDebounceMs, c.AutoSync,
		c.CreatedAt, c.LastAccessed, c.TabCount, c.FolderCount,
	)
	if err != nil {
		s.noteErr(err)
		return classify(fmt.Sprintf("save collection %s", c.ID), err)
	}

	return nil
}

// SaveCollectionTx is SaveCollection scoped to an open transaction.
func SaveCollectionTx(ctx context.Context, tx *sql.Tx, c *Collection) error {
	tags, err := encodeTags(c.Tags)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, sqlUpsertCollection,
		c.ID, c.Name, c.IsActive, c.WindowID, tags,
		c.TrackingEnabled, c.SyncDebounceMs, c.AutoSync,
		c.CreatedAt, c.LastAccessed, c.TabCount, c.FolderCount,
	)
	if err != nil {
		return classify(fmt.Sprintf("save collection %s", c.ID), err)
	}

	return nil
}

// DeleteCollection removes a collection and cascades to its folders, tabs,
// and tasks in one transaction.
func (s *Store) DeleteCollection(ctx context.Context, id string) error {
	s.logger.Info("deleting collection", "collection_id", id)

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		// The schema declares ON DELETE CASCADE, but the deletes are issued
		// explicitly so the wipe does not depend on the foreign_keys pragma
		// surviving a connection re-open.
		for _, q := range []string{
			`DELETE FROM tasks WHERE collection_id = ?`,
			`DELETE FROM tabs WHERE collection_id = ?`,
			`DELETE FROM folders WHERE collection_id = ?`,
			`DELETE FROM collections WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return classify(fmt.Sprintf("delete collection %s", id), err)
			}
		}

		return nil
	})
}

// CollectionsByActive returns collections filtered on the is_active index.
func (s *Store) CollectionsByActive(ctx context.Context, active bool) ([]*Collection, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+collectionColumns+` FROM collections
		 WHERE is_active = ? ORDER BY last_accessed DESC`, active)
	if err != nil {
		s.noteErr(err)
		return nil, fmt.Errorf("store: collections by active: %w", err)
	}
	defer rows.Close()

	return scanCollectionRows(rows)
}

// CollectionsByTag returns all collections whose tags array contains tag,
// resolved through the configured index strategy.
func (s *Store) CollectionsByTag(ctx context.Context, tag string) ([]*Collection, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.strategy.CollectionsByTag(ctx, db, tag)
	if err != nil {
		s.noteErr(err)
	}

	return result, err
}

// ListCollections returns every collection ordered by last access.
func (s *Store) ListCollections(ctx context.Context) ([]*Collection, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+collectionColumns+` FROM collections ORDER BY last_accessed DESC`)
	if err != nil {
		s.noteErr(err)
		return nil, fmt.Errorf("store: list collections: %w", err)
	}
	defer rows.Close()

	return scanCollectionRows(rows)
}

// FindCollectionByWindow returns the active collection bound to the given
// live window, or (nil, nil) when no collection is bound to it.
func (s *Store) FindCollectionByWindow(ctx context.Context, windowID int64) (*Collection, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	c, err := scanCollection(db.QueryRowContext(ctx,
		`SELECT `+collectionColumns+` FROM collections
		 WHERE is_active = 1 AND window_id = ?`, windowID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		s.noteErr(err)
		return nil, fmt.Errorf("store: find collection by window %d: %w", windowID, err)
	}

	return c, nil
}

// UnbindCollection clears the window binding: isActive=false, windowID=NULL.
// Called on window close and explicit unbind; the persisted folders and tabs
// are untouched (last synced snapshot preserved).
func (s *Store) UnbindCollection(ctx context.Context, id string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`UPDATE collections SET is_active = 0, window_id = NULL WHERE id = ?`, id)
	if err != nil {
		s.noteErr(err)
		return classify(fmt.Sprintf("unbind collection %s", id), err)
	}

	return nil
}

// UnbindWindowTx clears the binding of whichever collection currently holds
// the given window. Used inside the capture transaction to enforce the
// one-collection-per-window invariant.
func UnbindWindowTx(ctx context.Context, tx *sql.Tx, windowID int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE collections SET is_active = 0, window_id = NULL
		 WHERE is_active = 1 AND window_id = ?`, windowID)
	if err != nil {
		return classify(fmt.Sprintf("unbind window %d", windowID), err)
	}

	return nil
}

// RecountCollectionTotals recomputes tabCount and folderCount from the
// actual stored rows (grouped and ungrouped) and persists them on the
// collection record. Counts are always recomputed, never incrementally
// tracked, to avoid drift from missed events.
func (s *Store) RecountCollectionTotals(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		var folders, tabs int64

		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM folders WHERE collection_id = ?`, id).Scan(&folders)
		if err != nil {
			return fmt.Errorf("store: count folders for %s: %w", id, err)
		}

		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM tabs WHERE collection_id = ?`, id).Scan(&tabs)
		if err != nil {
			return fmt.Errorf("store: count tabs for %s: %w", id, err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE collections SET folder_count = ?, tab_count = ?, last_accessed = ?
			 WHERE id = ?`, folders, tabs, NowNano(), id)
		if err != nil {
			return classify(fmt.Sprintf("update counts for %s", id), err)
		}

		return nil
	})
}
