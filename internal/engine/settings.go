package engine

import (
	"context"
	"fmt"

	"github.com/tabvault/tabvault/internal/store"
)

// shouldTrack reports whether events for the collection should be queued.
// Absence from the cache means "do not track" — fail-closed, never an error.
func (e *Engine) shouldTrack(collectionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	ts, ok := e.tracked[collectionID]

	return ok && ts.enabled
}

// RefreshSettings re-reads a collection from storage and re-syncs the cache:
// still-active collections are upserted (including the current window
// binding), inactive ones are evicted along with their sync metadata.
// Returns store.ErrNotFound if the collection no longer exists at all —
// that is a caller programming error, not best-effort event processing.
func (e *Engine) RefreshSettings(ctx context.Context, collectionID string) error {
	c, err := e.store.GetCollection(ctx, collectionID)
	if err != nil {
		return err
	}

	if c == nil {
		return fmt.Errorf("refresh settings for %s: %w", collectionID, store.ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !c.IsActive || c.WindowID == nil {
		delete(e.tracked, collectionID)
		delete(e.meta, collectionID)

		e.logger.Info("collection no longer active, evicted from cache",
			"collection_id", collectionID)

		return nil
	}

	e.tracked[collectionID] = trackState{
		enabled:  c.TrackingEnabled,
		debounce: c.Debounce(e.defaultDebounce),
		windowID: *c.WindowID,
	}

	e.logger.Debug("settings refreshed",
		"collection_id", collectionID,
		"tracking_enabled", c.TrackingEnabled,
		"debounce", c.Debounce(e.defaultDebounce),
	)

	return nil
}

// TrackCollection starts tracking a collection that was just bound to a
// window. Thin wrapper over RefreshSettings; exists as the public entry point
// for the bind path.
func (e *Engine) TrackCollection(ctx context.Context, collectionID string) error {
	return e.RefreshSettings(ctx, collectionID)
}

// UntrackCollection stops tracking a collection. Pending queued changes are
// flushed first so unbinding never silently loses data, then the cache entry
// and sync metadata are evicted.
func (e *Engine) UntrackCollection(ctx context.Context, collectionID string) error {
	if err := e.FlushCollection(ctx, collectionID); err != nil {
		return err
	}

	e.sched.Cancel(collectionID)

	e.mu.Lock()
	delete(e.tracked, collectionID)
	delete(e.meta, collectionID)
	e.mu.Unlock()

	e.logger.Info("collection untracked", "collection_id", collectionID)

	return nil
}
