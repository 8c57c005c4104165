package engine

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tabvault/tabvault/internal/browser"
	"github.com/tabvault/tabvault/internal/store"
)

// defaultFolderName is used when a tab-group has no title.
const defaultFolderName = "Untitled Group"

// Flush force-applies pending changes for every collection with a non-empty
// queue. Collections flush in parallel and independently: one collection's
// failure does not block another's.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	ids := make([]string, 0, len(e.queues))

	for id, queue := range e.queues {
		if len(queue) > 0 {
			ids = append(ids, id)
		}
	}
	e.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}

	var g errgroup.Group

	for _, id := range ids {
		g.Go(func() error {
			return e.FlushCollection(ctx, id)
		})
	}

	return g.Wait()
}

// FlushCollection drains one collection's queue: cancel the debounce timer,
// snapshot and clear the queue in one step, apply the changes in original
// arrival order, recompute aggregate counts, and update sync metadata.
// Changes queued after the snapshot wait for the next cycle; they are never
// interleaved into this one. An empty queue is a no-op with no storage
// writes. A single change's failure is logged and the batch continues; the
// queue is still cleared so applied changes are never replayed.
func (e *Engine) FlushCollection(ctx context.Context, collectionID string) error {
	e.sched.Cancel(collectionID)

	e.mu.Lock()
	batch := e.queues[collectionID]
	delete(e.queues, collectionID)
	e.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	e.logger.Info("flushing collection",
		"collection_id", collectionID, "changes", len(batch))

	failed := 0

	for _, c := range batch {
		if err := e.applyChange(ctx, collectionID, c); err != nil {
			failed++

			e.logger.Warn("change application failed, continuing batch",
				"collection_id", collectionID,
				"type", c.Type.String(),
				"key", c.Key,
				"error", err,
			)
		}
	}

	// Aggregate counts are recomputed from stored rows after every batch,
	// never incrementally tracked, to avoid drift from missed events.
	if err := e.store.RecountCollectionTotals(ctx, collectionID); err != nil {
		return err
	}

	e.mu.Lock()
	m := e.metaLocked(collectionID)
	m.lastSyncTime = store.NowNano()
	m.pendingChanges = len(e.queues[collectionID])
	e.mu.Unlock()

	e.logger.Info("flush complete",
		"collection_id", collectionID, "applied", len(batch)-failed, "failed", failed)

	return nil
}

// applyChange applies one queued change to storage.
func (e *Engine) applyChange(ctx context.Context, collectionID string, c *pendingChange) error {
	switch c.Type {
	case ChangeTabCreated:
		return e.applyTabCreated(ctx, collectionID, c.Tab)
	case ChangeTabRemoved:
		return e.applyTabRemoved(ctx, collectionID, c.Key)
	case ChangeTabUpdated:
		return e.applyTabUpdated(ctx, collectionID, c.Tab)
	case ChangeTabMoved:
		return e.applyTabMoved(ctx, collectionID, c.Tab)
	case ChangeFolderCreated, ChangeFolderUpdated:
		return e.applyFolderUpsert(ctx, collectionID, c.Folder)
	case ChangeFolderRemoved:
		return e.applyFolderRemoved(ctx, collectionID, c.Key)
	case ChangeFolderMoved:
		// Group reordering implies reordering unrelated folders too, so
		// position math is deferred to the next full capture rather than
		// computed incrementally.
		e.logger.Debug("folder move deferred",
			"collection_id", collectionID, "group_id", c.Key)
		return nil
	default:
		return errors.New("unknown change type")
	}
}

// applyTabCreated persists a new tab record. A tab inside a live group gets
// its folder resolved find-or-create; an ungrouped tab is stored with a nil
// folder id but still attached to the collection, preserving window-level
// ordering. Folder creation and tab creation commit in one transaction.
func (e *Engine) applyTabCreated(ctx context.Context, collectionID string, tc *TabChange) error {
	folder, err := e.resolveFolder(ctx, collectionID, tc.GroupID)
	if err != nil {
		return err
	}

	tab := &store.Tab{
		ID:           uuid.New().String(),
		CollectionID: collectionID,
		TabID:        int64Ptr(tc.TabID),
	}

	if folder != nil {
		tab.FolderID = &folder.ID
	}

	applyTabFields(tab, tc)

	return e.store.WithTx(ctx, func(tx *sql.Tx) error {
		if folder != nil && folder.fresh {
			if err := store.SaveFolderTx(ctx, tx, folder.Folder); err != nil {
				return err
			}
		}

		return store.SaveTabTx(ctx, tx, tab)
	})
}

// applyTabRemoved deletes the stored tab correlated with a live tab id.
// A missing record (already removed or never synced) is logged and skipped —
// not an error.
func (e *Engine) applyTabRemoved(ctx context.Context, collectionID string, tabID int64) error {
	tab, err := e.store.FindTabByRuntimeID(ctx, collectionID, tabID)
	if err != nil {
		return err
	}

	if tab == nil {
		e.logger.Debug("tab to remove not found, skipping",
			"collection_id", collectionID, "tab_id", tabID)
		return nil
	}

	return e.store.DeleteTab(ctx, tab.ID)
}

// applyTabUpdated merges only the fields present in the change payload onto
// the stored record; absent fields are left untouched. A group change also
// re-resolves the owning folder.
func (e *Engine) applyTabUpdated(ctx context.Context, collectionID string, tc *TabChange) error {
	tab, err := e.store.FindTabByRuntimeID(ctx, collectionID, tc.TabID)
	if err != nil {
		return err
	}

	if tab == nil {
		e.logger.Debug("tab to update not found, skipping",
			"collection_id", collectionID, "tab_id", tc.TabID)
		return nil
	}

	applyTabFields(tab, tc)

	if tc.GroupID == nil {
		return e.store.SaveTab(ctx, tab)
	}

	folder, err := e.resolveFolder(ctx, collectionID, tc.GroupID)
	if err != nil {
		return err
	}

	if folder == nil {
		tab.FolderID = nil
		return e.store.SaveTab(ctx, tab)
	}

	tab.FolderID = &folder.ID

	return e.store.WithTx(ctx, func(tx *sql.Tx) error {
		if folder.fresh {
			if err := store.SaveFolderTx(ctx, tx, folder.Folder); err != nil {
				return err
			}
		}

		return store.SaveTabTx(ctx, tx, tab)
	})
}

// applyTabMoved updates only the stored position.
func (e *Engine) applyTabMoved(ctx context.Context, collectionID string, tc *TabChange) error {
	tab, err := e.store.FindTabByRuntimeID(ctx, collectionID, tc.TabID)
	if err != nil {
		return err
	}

	if tab == nil {
		e.logger.Debug("tab to move not found, skipping",
			"collection_id", collectionID, "tab_id", tc.TabID)
		return nil
	}

	if tc.Index != nil {
		tab.Position = *tc.Index
	}

	return e.store.SaveTab(ctx, tab)
}

// applyFolderUpsert find-or-creates the folder for a live group and merges
// name/color/collapsed from the change payload.
func (e *Engine) applyFolderUpsert(ctx context.Context, collectionID string, fc *FolderChange) error {
	folder, err := e.store.FindFolderByGroup(ctx, collectionID, fc.GroupID)
	if err != nil {
		return err
	}

	if folder == nil {
		folder = &store.Folder{
			ID:           uuid.New().String(),
			CollectionID: collectionID,
			Name:         defaultFolderName,
			GroupID:      int64Ptr(fc.GroupID),
		}
	}

	if fc.Name != nil && *fc.Name != "" {
		folder.Name = *fc.Name
	}

	if fc.Color != nil {
		folder.Color = *fc.Color
	}

	if fc.Collapsed != nil {
		folder.Collapsed = *fc.Collapsed
	}

	return e.store.SaveFolder(ctx, folder)
}

// applyFolderRemoved reassigns the folder's tabs to ungrouped (tabs are
// preserved, never deleted) and deletes the folder record atomically.
func (e *Engine) applyFolderRemoved(ctx context.Context, collectionID string, groupID int64) error {
	folder, err := e.store.FindFolderByGroup(ctx, collectionID, groupID)
	if err != nil {
		return err
	}

	if folder == nil {
		e.logger.Debug("folder to remove not found, skipping",
			"collection_id", collectionID, "group_id", groupID)
		return nil
	}

	return e.store.RemoveFolder(ctx, folder.ID)
}

// resolvedFolder pairs a folder with whether it was created by this
// resolution (and therefore still needs persisting).
type resolvedFolder struct {
	*store.Folder
	fresh bool
}

// resolveFolder maps a live group id to the collection's folder record,
// creating a new record when the group is previously unseen. Returns nil for
// ungrouped (nil or GroupNone). When a Snapshot source is available the new
// folder takes its name and color from the live group.
func (e *Engine) resolveFolder(ctx context.Context, collectionID string, groupID *int64) (*resolvedFolder, error) {
	if groupID == nil || *groupID == browser.GroupNone {
		return nil, nil
	}

	existing, err := e.store.FindFolderByGroup(ctx, collectionID, *groupID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		return &resolvedFolder{Folder: existing}, nil
	}

	folder := &store.Folder{
		ID:           uuid.New().String(),
		CollectionID: collectionID,
		Name:         defaultFolderName,
		GroupID:      groupID,
	}

	if snap := e.snapshot(); snap != nil {
		group, err := snap.Group(ctx, *groupID)
		if err != nil {
			e.logger.Debug("group snapshot failed, using defaults",
				"group_id", *groupID, "error", err)
		} else if group != nil {
			if group.Title != "" {
				folder.Name = group.Title
			}

			folder.Color = group.Color
			folder.Collapsed = group.Collapsed
		}
	}

	return &resolvedFolder{Folder: folder, fresh: true}, nil
}

// applyTabFields overlays the change payload's set fields onto a tab record.
func applyTabFields(tab *store.Tab, tc *TabChange) {
	if tc.URL != nil {
		tab.URL = *tc.URL
	}

	if tc.Title != nil {
		tab.Title = *tc.Title
	}

	if tc.Favicon != nil {
		tab.Favicon = *tc.Favicon
	}

	if tc.Pinned != nil {
		tab.IsPinned = *tc.Pinned
	}

	if tc.Index != nil {
		tab.Position = *tc.Index
	}
}
