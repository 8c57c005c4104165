package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// tabColumns is the column list shared by all tab queries.
const tabColumns = `id, collection_id, folder_id, url, title, favicon, note,
	position, is_pinned, tab_id`

const sqlUpsertTab = `INSERT INTO tabs (` + tabColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		folder_id = excluded.folder_id,
		url       = excluded.url,
		title     = excluded.title,
		favicon   = excluded.favicon,
		note      = excluded.note,
		position  = excluded.position,
		is_pinned = excluded.is_pinned,
		tab_id    = excluded.tab_id`

func scanTab(row interface{ Scan(...any) error }) (*Tab, error) {
	t := &Tab{}

	err := row.Scan(&t.ID, &t.CollectionID, &t.FolderID, &t.URL, &t.Title,
		&t.Favicon, &t.Note, &t.Position, &t.IsPinned, &t.TabID)
	if err != nil {
		return nil, err
	}

	return t, nil
}

func scanTabRows(rows *sql.Rows) ([]*Tab, error) {
	var result []*Tab

	for rows.Next() {
		t, err := scanTab(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan tab row: %w", err)
		}

		result = append(result, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate tab rows: %w", err)
	}

	return result, nil
}

// GetTab retrieves a tab record by id. Returns (nil, nil) when not found.
func (s *Store) GetTab(ctx context.Context, id string) (*Tab, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	t, err := scanTab(db.QueryRowContext(ctx,
		`SELECT `+tabColumns+` FROM tabs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		s.noteErr(err)
		return nil, fmt.Errorf("store: get tab %s: %w", id, err)
	}

	return t, nil
}

// SaveTab inserts or updates a tab record.
func (s *Store) SaveTab(ctx context.Context, t *Tab) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, sqlUpsertTab,
		t.ID, t.CollectionID, t.FolderID, t.URL, t.Title,
		t.Favicon, t.Note, t.Position, t.IsPinned, t.TabID)
	if err != nil {
		s.noteErr(err)
		return classify(fmt.Sprintf("save tab %s", t.ID), err)
	}

	return nil
}

// SaveTabTx is SaveTab scoped to an open transaction.
func SaveTabTx(ctx context.Context, tx *sql.Tx, t *Tab) error {
	_, err := tx.ExecContext(ctx, sqlUpsertTab,
		t.ID, t.CollectionID, t.FolderID, t.URL, t.Title,
		t.Favicon, t.Note, t.Position, t.IsPinned, t.TabID)
	if err != nil {
		return classify(fmt.Sprintf("save tab %s", t.ID), err)
	}

	return nil
}

// DeleteTab removes a tab record.
func (s *Store) DeleteTab(ctx context.Context, id string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `DELETE FROM tabs WHERE id = ?`, id)
	if err != nil {
		s.noteErr(err)
		return classify(fmt.Sprintf("delete tab %s", id), err)
	}

	return nil
}

// TabsByFolder returns the tabs of one folder on the folder_id index,
// ordered by position.
func (s *Store) TabsByFolder(ctx context.Context, folderID string) ([]*Tab, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+tabColumns+` FROM tabs WHERE folder_id = ? ORDER BY position`, folderID)
	if err != nil {
		s.noteErr(err)
		return nil, fmt.Errorf("store: tabs by folder %s: %w", folderID, err)
	}
	defer rows.Close()

	return scanTabRows(rows)
}

// TabsByCollection returns every tab of a collection (grouped and ungrouped),
// ordered by position. A folder_id referencing a folder that no longer exists
// is tolerated and reads as a normal tab; callers treat it as ungrouped.
func (s *Store) TabsByCollection(ctx context.Context, collectionID string) ([]*Tab, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+tabColumns+` FROM tabs WHERE collection_id = ? ORDER BY position`, collectionID)
	if err != nil {
		s.noteErr(err)
		return nil, fmt.Errorf("store: tabs by collection %s: %w", collectionID, err)
	}
	defer rows.Close()

	return scanTabRows(rows)
}

// FindTabByRuntimeID returns the stored tab correlated with a live browser
// tab id, or (nil, nil) when the tab was never synced or already removed.
func (s *Store) FindTabByRuntimeID(ctx context.Context, collectionID string, tabID int64) (*Tab, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	t, err := scanTab(db.QueryRowContext(ctx,
		`SELECT `+tabColumns+` FROM tabs
		 WHERE collection_id = ? AND tab_id = ?`, collectionID, tabID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		s.noteErr(err)
		return nil, fmt.Errorf("store: find tab by runtime id %d: %w", tabID, err)
	}

	return t, nil
}
