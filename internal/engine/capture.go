package engine

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/tabvault/tabvault/internal/browser"
	"github.com/tabvault/tabvault/internal/store"
)

// CaptureWindow creates an active collection bound to a live window from a
// snapshot of its tabs and groups, persists everything in one transaction,
// and starts tracking the new collection. Any collection previously bound to
// the window is unbound in the same transaction — exactly one collection may
// hold a live window at a time.
func (e *Engine) CaptureWindow(
	ctx context.Context,
	name string,
	windowID int64,
	tabs []browser.Tab,
	groups []browser.TabGroup,
) (*store.Collection, error) {
	now := store.NowNano()
	debounce := e.fallbackDebounce()

	collection := &store.Collection{
		ID:              uuid.New().String(),
		Name:            name,
		IsActive:        true,
		WindowID:        int64Ptr(windowID),
		TrackingEnabled: true,
		SyncDebounceMs:  debounce.Milliseconds(),
		CreatedAt:       now,
		LastAccessed:    now,
		TabCount:        int64(len(tabs)),
		FolderCount:     int64(len(groups)),
	}

	// Folder records for each live group, positioned in snapshot order.
	folders := make([]*store.Folder, 0, len(groups))
	folderByGroup := make(map[int64]string, len(groups))

	for i, g := range groups {
		name := g.Title
		if name == "" {
			name = defaultFolderName
		}

		f := &store.Folder{
			ID:           uuid.New().String(),
			CollectionID: collection.ID,
			Name:         name,
			Color:        g.Color,
			Collapsed:    g.Collapsed,
			Position:     int64(i),
			GroupID:      int64Ptr(g.ID),
		}
		folders = append(folders, f)
		folderByGroup[g.ID] = f.ID
	}

	records := make([]*store.Tab, 0, len(tabs))

	for _, t := range tabs {
		rec := &store.Tab{
			ID:           uuid.New().String(),
			CollectionID: collection.ID,
			URL:          t.URL,
			Title:        t.Title,
			Favicon:      t.Favicon,
			Position:     t.Index,
			IsPinned:     t.Pinned,
			TabID:        int64Ptr(t.ID),
		}

		if folderID, ok := folderByGroup[t.GroupID]; ok && t.GroupID != browser.GroupNone {
			rec.FolderID = &folderID
		}

		records = append(records, rec)
	}

	err := e.store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := store.UnbindWindowTx(ctx, tx, windowID); err != nil {
			return err
		}

		if err := store.SaveCollectionTx(ctx, tx, collection); err != nil {
			return err
		}

		for _, f := range folders {
			if err := store.SaveFolderTx(ctx, tx, f); err != nil {
				return err
			}
		}

		for _, rec := range records {
			if err := store.SaveTabTx(ctx, tx, rec); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	// The previous holder of this window was unbound in storage above; evict
	// its cache entry too so events can never gate to the stale binding.
	for id, ts := range e.tracked {
		if ts.windowID == windowID {
			delete(e.tracked, id)
			delete(e.meta, id)
		}
	}

	e.tracked[collection.ID] = trackState{
		enabled:  true,
		debounce: debounce,
		windowID: windowID,
	}
	e.mu.Unlock()

	e.logger.Info("window captured",
		"collection_id", collection.ID,
		"window_id", windowID,
		"tabs", len(records),
		"folders", len(folders),
	)

	return collection, nil
}

// Unbind detaches a collection from its window without deleting any data:
// pending changes flush first, then the cache entry is evicted and the
// stored record unbound.
func (e *Engine) Unbind(ctx context.Context, collectionID string) error {
	if err := e.UntrackCollection(ctx, collectionID); err != nil {
		return err
	}

	return e.store.UnbindCollection(ctx, collectionID)
}
