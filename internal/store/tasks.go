package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// taskColumns is the column list shared by all task queries.
const taskColumns = `id, collection_id, title, note, status, priority,
	due_date, tags, tab_refs, created_at`

const sqlUpsertTask = `INSERT INTO tasks (` + taskColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		collection_id = excluded.collection_id,
		title         = excluded.title,
		note          = excluded.note,
		status        = excluded.status,
		priority      = excluded.priority,
		due_date      = excluded.due_date,
		tags          = excluded.tags,
		tab_refs      = excluded.tab_refs`

func scanTask(row interface{ Scan(...any) error }) (*Task, error) {
	t := &Task{}

	var tagsJSON, refsJSON string

	err := row.Scan(&t.ID, &t.CollectionID, &t.Title, &t.Note, &t.Status,
		&t.Priority, &t.DueDate, &tagsJSON, &refsJSON, &t.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tagsJSON), &t.Tags); err != nil {
		return nil, fmt.Errorf("store: parsing tags for task %s: %w", t.ID, err)
	}

	if err := json.Unmarshal([]byte(refsJSON), &t.TabRefs); err != nil {
		return nil, fmt.Errorf("store: parsing tab refs for task %s: %w", t.ID, err)
	}

	return t, nil
}

func scanTaskRows(rows *sql.Rows) ([]*Task, error) {
	var result []*Task

	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan task row: %w", err)
		}

		result = append(result, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate task rows: %w", err)
	}

	return result, nil
}

// GetTask retrieves a task by id. Returns (nil, nil) when not found.
func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	t, err := scanTask(db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		s.noteErr(err)
		return nil, fmt.Errorf("store: get task %s: %w", id, err)
	}

	return t, nil
}

// SaveTask inserts or updates a task record.
func (s *Store) SaveTask(ctx context.Context, t *Task) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	tags, err := encodeTags(t.Tags)
	if err != nil {
		return err
	}

	refs, err := encodeTags(t.TabRefs)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, sqlUpsertTask,
		t.ID, t.CollectionID, t.Title, t.Note, t.Status,
		t.Priority, t.DueDate, tags, refs, t.CreatedAt)
	if err != nil {
		s.noteErr(err)
		return classify(fmt.Sprintf("save task %s", t.ID), err)
	}

	return nil
}

// DeleteTask removes a task record.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		s.noteErr(err)
		return classify(fmt.Sprintf("delete task %s", id), err)
	}

	return nil
}

// TasksByCollection returns the tasks associated with a collection on the
// collection_id index.
func (s *Store) TasksByCollection(ctx context.Context, collectionID string) ([]*Task, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE collection_id = ? ORDER BY created_at`, collectionID)
	if err != nil {
		s.noteErr(err)
		return nil, fmt.Errorf("store: tasks by collection %s: %w", collectionID, err)
	}
	defer rows.Close()

	return scanTaskRows(rows)
}

// TasksByStatus returns tasks filtered on the status index.
func (s *Store) TasksByStatus(ctx context.Context, status string) ([]*Task, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE status = ? ORDER BY created_at`, status)
	if err != nil {
		s.noteErr(err)
		return nil, fmt.Errorf("store: tasks by status %q: %w", status, err)
	}
	defer rows.Close()

	return scanTaskRows(rows)
}

// TasksByTag returns all tasks whose tags array contains tag, resolved
// through the configured index strategy.
func (s *Store) TasksByTag(ctx context.Context, tag string) ([]*Task, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.strategy.TasksByTag(ctx, db, tag)
	if err != nil {
		s.noteErr(err)
	}

	return result, err
}
