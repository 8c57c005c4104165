package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// folderColumns is the column list shared by all folder queries.
const folderColumns = `id, collection_id, name, color, collapsed, position, group_id`

const sqlUpsertFolder = `INSERT INTO folders (` + folderColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name      = excluded.name,
		color     = excluded.color,
		collapsed = excluded.collapsed,
		position  = excluded.position,
		group_id  = excluded.group_id`

func scanFolder(row interface{ Scan(...any) error }) (*Folder, error) {
	f := &Folder{}

	err := row.Scan(&f.ID, &f.CollectionID, &f.Name, &f.Color, &f.Collapsed, &f.Position, &f.GroupID)
	if err != nil {
		return nil, err
	}

	return f, nil
}

func scanFolderRows(rows *sql.Rows) ([]*Folder, error) {
	var result []*Folder

	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan folder row: %w", err)
		}

		result = append(result, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate folder rows: %w", err)
	}

	return result, nil
}

// GetFolder retrieves a folder by id. Returns (nil, nil) when not found.
func (s *Store) GetFolder(ctx context.Context, id string) (*Folder, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	f, err := scanFolder(db.QueryRowContext(ctx,
		`SELECT `+folderColumns+` FROM folders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		s.noteErr(err)
		return nil, fmt.Errorf("store: get folder %s: %w", id, err)
	}

	return f, nil
}

// SaveFolder inserts or updates a folder record.
func (s *Store) SaveFolder(ctx context.Context, f *Folder) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, sqlUpsertFolder,
		f.ID, f.CollectionID, f.Name, f.Color, f.Collapsed, f.Position, f.GroupID)
	if err != nil {
		s.noteErr(err)
		return classify(fmt.Sprintf("save folder %s", f.ID), err)
	}

	return nil
}

// SaveFolderTx is SaveFolder scoped to an open transaction.
func SaveFolderTx(ctx context.Context, tx *sql.Tx, f *Folder) error {
	_, err := tx.ExecContext(ctx, sqlUpsertFolder,
		f.ID, f.CollectionID, f.Name, f.Color, f.Collapsed, f.Position, f.GroupID)
	if err != nil {
		return classify(fmt.Sprintf("save folder %s", f.ID), err)
	}

	return nil
}

// FoldersByCollection returns the folders of a collection on the
// collection_id index, ordered by position.
func (s *Store) FoldersByCollection(ctx context.Context, collectionID string) ([]*Folder, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+folderColumns+` FROM folders
		 WHERE collection_id = ? ORDER BY position`, collectionID)
	if err != nil {
		s.noteErr(err)
		return nil, fmt.Errorf("store: folders by collection %s: %w", collectionID, err)
	}
	defer rows.Close()

	return scanFolderRows(rows)
}

// FindFolderByGroup returns the folder of a collection that references the
// given live browser group, or (nil, nil) when no folder tracks it yet.
func (s *Store) FindFolderByGroup(ctx context.Context, collectionID string, groupID int64) (*Folder, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	f, err := scanFolder(db.QueryRowContext(ctx,
		`SELECT `+folderColumns+` FROM folders
		 WHERE collection_id = ? AND group_id = ?`, collectionID, groupID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		s.noteErr(err)
		return nil, fmt.Errorf("store: find folder by group %d: %w", groupID, err)
	}

	return f, nil
}

// RemoveFolder detaches all tabs pointing at the folder (folder_id → NULL,
// tabs preserved) and then deletes the folder record, atomically in one
// transaction. Tabs are never deleted by a folder removal.
func (s *Store) RemoveFolder(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE tabs SET folder_id = NULL WHERE folder_id = ?`, id); err != nil {
			return classify(fmt.Sprintf("detach tabs from folder %s", id), err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM folders WHERE id = ?`, id); err != nil {
			return classify(fmt.Sprintf("delete folder %s", id), err)
		}

		return nil
	})
}
