package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Stats computes read-only aggregate counts across all four stores inside a
// single read transaction so the numbers are mutually consistent.
func (s *Store) Stats(ctx context.Context) (*DBStats, error) {
	stats := &DBStats{TasksByStatus: make(map[string]int64)}

	err := s.ReadTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT
				COUNT(CASE WHEN is_active = 1 THEN 1 END),
				COUNT(CASE WHEN is_active = 0 THEN 1 END)
			 FROM collections`).Scan(&stats.ActiveCollections, &stats.SavedCollections)
		if err != nil {
			return fmt.Errorf("store: count collections: %w", err)
		}

		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM folders`).Scan(&stats.Folders); err != nil {
			return fmt.Errorf("store: count folders: %w", err)
		}

		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM tabs`).Scan(&stats.Tabs); err != nil {
			return fmt.Errorf("store: count tabs: %w", err)
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT status, COUNT(*) FROM tasks GROUP BY status`)
		if err != nil {
			return fmt.Errorf("store: count tasks: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var status string

			var n int64

			if err := rows.Scan(&status, &n); err != nil {
				return fmt.Errorf("store: scan task count: %w", err)
			}

			stats.TasksByStatus[status] = n
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("store: iterate task counts: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return stats, nil
}
