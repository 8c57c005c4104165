package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tabvault/tabvault/internal/browser"
	"github.com/tabvault/tabvault/internal/store"
)

// DefaultDebounce is used for collections with no configured interval.
const DefaultDebounce = 500 * time.Millisecond

// Config holds the options for New.
type Config struct {
	Store           *store.Store
	Snapshot        browser.Snapshot // optional; enables full-object fetches
	Logger          *slog.Logger
	DefaultDebounce time.Duration // zero means DefaultDebounce
}

// trackState is the cached tracking configuration of one active collection.
type trackState struct {
	enabled  bool
	debounce time.Duration
	windowID int64
}

// syncMeta is the in-memory sync metadata of one tracked collection.
type syncMeta struct {
	lastSyncTime   int64
	pendingChanges int
}

// Engine coordinates the settings cache, the per-collection change queues,
// the debounce scheduler, and the flush engine. All maps are guarded by mu;
// every check-then-act sequence on them completes under one lock hold with
// no suspension points inside, so queue decisions can never race a flush.
type Engine struct {
	store  *store.Store
	logger *slog.Logger
	sched  *scheduler

	mu              sync.Mutex
	initialized     bool
	snap            browser.Snapshot
	defaultDebounce time.Duration
	tracked         map[string]trackState
	queues          map[string][]*pendingChange
	meta            map[string]*syncMeta
}

// New creates an Engine. Call Initialize before feeding it events.
func New(cfg Config) *Engine {
	debounce := cfg.DefaultDebounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		store:           cfg.Store,
		snap:            cfg.Snapshot,
		logger:          logger,
		defaultDebounce: debounce,
		sched:           newScheduler(),
		tracked:         make(map[string]trackState),
		queues:          make(map[string][]*pendingChange),
		meta:            make(map[string]*syncMeta),
	}
}

// Initialize populates the settings cache from all active collections.
// Idempotent and additive: a later call upserts entries for the collections
// active at that point but does not evict ones deactivated in storage since
// the previous call. Eviction of stale entries happens through
// RefreshSettings, UntrackCollection, or window-close handling, which are the
// only paths that deactivate a collection while the engine is running.
func (e *Engine) Initialize(ctx context.Context) error {
	active, err := e.store.CollectionsByActive(ctx, true)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, c := range active {
		if c.WindowID == nil {
			// isActive without a window binding violates the collection
			// invariant; skip rather than track a windowless collection.
			e.logger.Warn("active collection has no window binding, skipping",
				"collection_id", c.ID)
			continue
		}

		e.tracked[c.ID] = trackState{
			enabled:  c.TrackingEnabled,
			debounce: c.Debounce(e.defaultDebounce),
			windowID: *c.WindowID,
		}
	}

	e.initialized = true

	e.logger.Info("sync engine initialized", "tracked_collections", len(e.tracked))

	return nil
}

// Close cancels all pending debounce timers. Queued changes are not flushed;
// callers that want a final flush call Flush first.
func (e *Engine) Close() {
	e.sched.CancelAll()
	e.logger.Info("sync engine closed")
}

// SetDefaultDebounce updates the fallback debounce interval. Applies on the
// next settings refresh of each collection; cached per-collection intervals
// are not rewritten.
func (e *Engine) SetDefaultDebounce(d time.Duration) {
	if d <= 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.defaultDebounce = d
}

// fallbackDebounce returns the current default debounce interval.
func (e *Engine) fallbackDebounce() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.defaultDebounce
}

// SetSnapshot installs or clears the source for on-demand tab and group
// fetches. The serve loop installs the bridge client after each successful
// dial and clears it with nil when the connection drops.
func (e *Engine) SetSnapshot(snap browser.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.snap = snap
}

// snapshot returns the current snapshot source, or nil if none is connected.
func (e *Engine) snapshot() browser.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.snap
}

// SyncStatus returns the sync metadata for a collection. Zero values if the
// collection is not tracked.
func (e *Engine) SyncStatus(collectionID string) SyncStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.meta[collectionID]
	if !ok {
		return SyncStatus{}
	}

	return SyncStatus{LastSyncTime: m.lastSyncTime, PendingChanges: m.pendingChanges}
}

// findCollectionByWindow resolves a live window to its bound collection id:
// cache fast path first, storage query on miss. Returns "" when no collection
// is bound to the window.
func (e *Engine) findCollectionByWindow(ctx context.Context, windowID int64) string {
	e.mu.Lock()
	for id, ts := range e.tracked {
		if ts.windowID == windowID {
			e.mu.Unlock()
			return id
		}
	}
	e.mu.Unlock()

	c, err := e.store.FindCollectionByWindow(ctx, windowID)
	if err != nil {
		e.logger.Error("window lookup failed", "window_id", windowID, "error", err)
		return ""
	}

	if c == nil {
		return ""
	}

	return c.ID
}

// gate resolves a window to a tracked collection and its debounce interval.
// Fail-closed: anything not in the cache with tracking enabled is not
// tracked, never an error.
func (e *Engine) gate(ctx context.Context, windowID int64) (string, time.Duration, bool) {
	id := e.findCollectionByWindow(ctx, windowID)
	if id == "" {
		return "", 0, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ts, ok := e.tracked[id]
	if !ok || !ts.enabled {
		return "", 0, false
	}

	return id, ts.debounce, true
}
