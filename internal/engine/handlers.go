package engine

import (
	"context"

	"github.com/tabvault/tabvault/internal/browser"
)

// The engine implements browser.Handler. Every handler is a boundary: it
// gates on the tracked-collection cache, decodes into a typed change, and
// queues. Failures are logged here and never propagate to the event
// dispatcher, which could otherwise deregister the listener.

// OnTabCreated queues a tab-created change carrying the full tab snapshot.
func (e *Engine) OnTabCreated(ctx context.Context, tab browser.Tab) {
	collectionID, debounce, ok := e.gate(ctx, tab.WindowID)
	if !ok {
		return
	}

	e.queueChange(collectionID, debounce, &pendingChange{
		Type: ChangeTabCreated,
		Key:  tab.ID,
		Tab: &TabChange{
			TabID:    tab.ID,
			WindowID: tab.WindowID,
			Index:    int64Ptr(tab.Index),
			GroupID:  int64Ptr(tab.GroupID),
			URL:      strPtr(tab.URL),
			Title:    strPtr(tab.Title),
			Favicon:  strPtr(tab.Favicon),
			Pinned:   boolPtr(tab.Pinned),
		},
	})
}

// OnTabRemoved queues a tab-removed change. Removals that are part of a
// window teardown are ignored entirely: OnWindowRemoved discards the queue
// and preserves the last synced snapshot.
func (e *Engine) OnTabRemoved(ctx context.Context, tabID, windowID int64, isWindowClosing bool) {
	if isWindowClosing {
		e.logger.Debug("ignoring tab removal during window teardown",
			"tab_id", tabID, "window_id", windowID)
		return
	}

	collectionID, debounce, ok := e.gate(ctx, windowID)
	if !ok {
		return
	}

	e.queueChange(collectionID, debounce, &pendingChange{
		Type: ChangeTabRemoved,
		Key:  tabID,
		Tab:  &TabChange{TabID: tabID, WindowID: windowID},
	})
}

// OnTabUpdated queues a tab-updated change carrying only the changed fields.
func (e *Engine) OnTabUpdated(ctx context.Context, tabID, windowID int64, delta browser.TabDelta) {
	if delta.Empty() {
		return
	}

	collectionID, debounce, ok := e.gate(ctx, windowID)
	if !ok {
		return
	}

	e.queueChange(collectionID, debounce, &pendingChange{
		Type: ChangeTabUpdated,
		Key:  tabID,
		Tab: &TabChange{
			TabID:    tabID,
			WindowID: windowID,
			URL:      delta.URL,
			Title:    delta.Title,
			Favicon:  delta.Favicon,
			Pinned:   delta.Pinned,
			GroupID:  delta.GroupID,
		},
	})
}

// OnTabMoved queues a position-only change. A move followed by another move
// coalesces to the final position.
func (e *Engine) OnTabMoved(ctx context.Context, tabID, windowID, toIndex int64) {
	collectionID, debounce, ok := e.gate(ctx, windowID)
	if !ok {
		return
	}

	e.queueChange(collectionID, debounce, &pendingChange{
		Type: ChangeTabMoved,
		Key:  tabID,
		Tab:  &TabChange{TabID: tabID, WindowID: windowID, Index: int64Ptr(toIndex)},
	})
}

// OnTabAttached handles a tab reparented into a window. The attach event
// carries only ids, so the full tab is fetched on demand and queued as a
// creation in the new window's collection.
func (e *Engine) OnTabAttached(ctx context.Context, tabID, newWindowID int64) {
	if _, _, ok := e.gate(ctx, newWindowID); !ok {
		return
	}

	snap := e.snapshot()
	if snap == nil {
		e.logger.Warn("tab attached but no snapshot source connected", "tab_id", tabID)
		return
	}

	tab, err := snap.Tab(ctx, tabID)
	if err != nil {
		e.logger.Error("tab snapshot failed", "tab_id", tabID, "error", err)
		return
	}

	if tab == nil {
		e.logger.Debug("attached tab already gone", "tab_id", tabID)
		return
	}

	tab.WindowID = newWindowID
	e.OnTabCreated(ctx, *tab)
}

// OnTabDetached queues a removal from the old window's collection; the
// matching attach event re-creates the tab in its destination.
func (e *Engine) OnTabDetached(ctx context.Context, tabID, oldWindowID int64) {
	collectionID, debounce, ok := e.gate(ctx, oldWindowID)
	if !ok {
		return
	}

	e.queueChange(collectionID, debounce, &pendingChange{
		Type: ChangeTabRemoved,
		Key:  tabID,
		Tab:  &TabChange{TabID: tabID, WindowID: oldWindowID},
	})
}

// OnGroupCreated queues a folder-created change.
func (e *Engine) OnGroupCreated(ctx context.Context, group browser.TabGroup) {
	e.queueGroupChange(ctx, ChangeFolderCreated, group, nil)
}

// OnGroupUpdated queues a folder-updated change.
func (e *Engine) OnGroupUpdated(ctx context.Context, group browser.TabGroup) {
	e.queueGroupChange(ctx, ChangeFolderUpdated, group, nil)
}

// OnGroupMoved queues a folder-moved change; position math is deferred.
func (e *Engine) OnGroupMoved(ctx context.Context, group browser.TabGroup, toIndex int64) {
	e.queueGroupChange(ctx, ChangeFolderMoved, group, int64Ptr(toIndex))
}

// OnGroupRemoved queues a folder-removed change and then flushes the
// collection immediately, bypassing the debounce: group deletion is a rare,
// critical event where staleness is unacceptable (the user may recreate a
// similarly named group right away).
func (e *Engine) OnGroupRemoved(ctx context.Context, group browser.TabGroup) {
	collectionID, debounce, ok := e.gate(ctx, group.WindowID)
	if !ok {
		return
	}

	e.queueChange(collectionID, debounce, &pendingChange{
		Type:   ChangeFolderRemoved,
		Key:    group.ID,
		Folder: &FolderChange{GroupID: group.ID, WindowID: group.WindowID},
	})

	if err := e.FlushCollection(ctx, collectionID); err != nil {
		e.logger.Error("immediate flush after group removal failed",
			"collection_id", collectionID, "error", err)
	}
}

// queueGroupChange is the shared path for non-destructive group events.
func (e *Engine) queueGroupChange(ctx context.Context, typ ChangeType, group browser.TabGroup, index *int64) {
	collectionID, debounce, ok := e.gate(ctx, group.WindowID)
	if !ok {
		return
	}

	e.queueChange(collectionID, debounce, &pendingChange{
		Type: typ,
		Key:  group.ID,
		Folder: &FolderChange{
			GroupID:   group.ID,
			WindowID:  group.WindowID,
			Name:      strPtr(group.Title),
			Color:     strPtr(group.Color),
			Collapsed: boolPtr(group.Collapsed),
			Index:     index,
		},
	})
}

// OnWindowRemoved discards (not flushes) the bound collection's pending
// queue and unbinds the collection. The browser emits a tab-removed event
// for every tab during teardown; applying those would erase the collection's
// last good state. "Close window" means "preserve last synced snapshot".
func (e *Engine) OnWindowRemoved(ctx context.Context, windowID int64) {
	collectionID := e.findCollectionByWindow(ctx, windowID)
	if collectionID == "" {
		return
	}

	dropped := e.discardQueue(collectionID)

	e.mu.Lock()
	delete(e.tracked, collectionID)
	e.mu.Unlock()

	if err := e.store.UnbindCollection(ctx, collectionID); err != nil {
		e.logger.Error("unbinding collection after window close failed",
			"collection_id", collectionID, "error", err)
		return
	}

	e.logger.Info("window closed, collection unbound",
		"collection_id", collectionID,
		"window_id", windowID,
		"discarded_changes", dropped,
	)
}

// Compile-time interface check.
var _ browser.Handler = (*Engine)(nil)
