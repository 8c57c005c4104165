package engine

import (
	"context"
	"time"
)

// queueChange coalesces a change into the collection's pending queue and
// (re)arms the debounce timer. Dedup is keyed on (entity key, change type):
// tab-updated merges field-by-field so rapid sequential field changes are all
// preserved; every other type is latest-wins in place, keeping the original
// queue position so changes still apply in arrival order.
func (e *Engine) queueChange(collectionID string, debounce time.Duration, c *pendingChange) {
	e.mu.Lock()

	queue := e.queues[collectionID]

	merged := false

	for _, existing := range queue {
		if existing.Key != c.Key || existing.Type != c.Type {
			continue
		}

		if c.Type == ChangeTabUpdated {
			existing.Tab.merge(c.Tab)
		} else {
			existing.Tab = c.Tab
			existing.Folder = c.Folder
		}

		merged = true

		break
	}

	if !merged {
		queue = append(queue, c)
		e.queues[collectionID] = queue
	}

	e.metaLocked(collectionID).pendingChanges = len(queue)

	e.mu.Unlock()

	e.logger.Debug("change queued",
		"collection_id", collectionID,
		"type", c.Type.String(),
		"key", c.Key,
		"merged", merged,
		"pending", len(queue),
	)

	e.scheduleFlush(collectionID, debounce)
}

// scheduleFlush arms a one-shot debounced flush for the collection, canceling
// any previous pending timer — the timer resets on every new event (pure
// debounce, not throttle).
func (e *Engine) scheduleFlush(collectionID string, debounce time.Duration) {
	if debounce <= 0 {
		debounce = e.fallbackDebounce()
	}

	e.sched.Schedule(collectionID, debounce, func() {
		if err := e.FlushCollection(context.Background(), collectionID); err != nil {
			e.logger.Error("debounced flush failed",
				"collection_id", collectionID, "error", err)
		}
	})
}

// metaLocked returns the sync metadata entry for a collection, creating it if
// absent. Caller must hold e.mu.
func (e *Engine) metaLocked(collectionID string) *syncMeta {
	m, ok := e.meta[collectionID]
	if !ok {
		m = &syncMeta{}
		e.meta[collectionID] = m
	}

	return m
}

// discardQueue drops all pending changes and timer for a collection without
// applying them. Used on window close, where the browser's teardown events
// would otherwise erase the collection's last good state.
func (e *Engine) discardQueue(collectionID string) int {
	e.sched.Cancel(collectionID)

	e.mu.Lock()
	defer e.mu.Unlock()

	dropped := len(e.queues[collectionID])
	delete(e.queues, collectionID)
	delete(e.meta, collectionID)

	return dropped
}
