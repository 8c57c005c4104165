package engine

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabvault/tabvault/internal/browser"
	"github.com/tabvault/tabvault/internal/store"
)

// Long enough that a debounce timer never fires inside a test that inspects
// the queue before flushing.
const testHoldOff = time.Hour

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(&testWriter{t: t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// testWriter adapts testing.T to io.Writer for slog output.
type testWriter struct {
	t *testing.T
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// fakeSnapshot is an in-memory browser.Snapshot.
type fakeSnapshot struct {
	tabs   map[int64]*browser.Tab
	groups map[int64]*browser.TabGroup
}

func (f *fakeSnapshot) Tab(_ context.Context, tabID int64) (*browser.Tab, error) {
	return f.tabs[tabID], nil
}

func (f *fakeSnapshot) Group(_ context.Context, groupID int64) (*browser.TabGroup, error) {
	return f.groups[groupID], nil
}

// testEnv bundles an engine, its backing store, and one tracked collection
// bound to window 100.
type testEnv struct {
	engine *Engine
	store  *store.Store
	snap   *fakeSnapshot

	collectionID string
	windowID     int64
}

func newTestEnv(t *testing.T, debounce time.Duration) *testEnv {
	t.Helper()

	ctx := context.Background()

	st := store.Open(":memory:", testLogger(t))
	t.Cleanup(func() {
		require.NoError(t, st.Close())
	})

	windowID := int64(100)
	now := store.NowNano()

	c := &store.Collection{
		ID:              "col-1",
		Name:            "Tracked",
		IsActive:        true,
		WindowID:        &windowID,
		TrackingEnabled: true,
		SyncDebounceMs:  debounce.Milliseconds(),
		CreatedAt:       now,
		LastAccessed:    now,
	}
	require.NoError(t, st.SaveCollection(ctx, c))

	snap := &fakeSnapshot{
		tabs:   make(map[int64]*browser.Tab),
		groups: make(map[int64]*browser.TabGroup),
	}

	eng := New(Config{
		Store:           st,
		Snapshot:        snap,
		Logger:          testLogger(t),
		DefaultDebounce: debounce,
	})
	require.NoError(t, eng.Initialize(ctx))
	t.Cleanup(eng.Close)

	return &testEnv{
		engine:       eng,
		store:        st,
		snap:         snap,
		collectionID: c.ID,
		windowID:     windowID,
	}
}

// pendingTypes returns the change types currently queued for the collection,
// in queue order.
func (env *testEnv) pendingTypes() []ChangeType {
	env.engine.mu.Lock()
	defer env.engine.mu.Unlock()

	queue := env.engine.queues[env.collectionID]
	types := make([]ChangeType, len(queue))

	for i, c := range queue {
		types[i] = c.Type
	}

	return types
}

func makeTab(id, windowID, index int64, url string) browser.Tab {
	return browser.Tab{
		ID:       id,
		WindowID: windowID,
		Index:    index,
		GroupID:  browser.GroupNone,
		URL:      url,
		Title:    "title of " + url,
	}
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()

	t.Run("loads active collections", func(t *testing.T) {
		env := newTestEnv(t, testHoldOff)
		assert.True(t, env.engine.shouldTrack(env.collectionID))
	})

	t.Run("ignores saved collections", func(t *testing.T) {
		env := newTestEnv(t, testHoldOff)

		saved := &store.Collection{
			ID: "saved-1", Name: "Dormant", TrackingEnabled: true,
			CreatedAt: store.NowNano(), LastAccessed: store.NowNano(),
		}
		require.NoError(t, env.store.SaveCollection(ctx, saved))

		require.NoError(t, env.engine.Initialize(ctx))
		assert.False(t, env.engine.shouldTrack("saved-1"))
	})

	t.Run("skips active collection without window binding", func(t *testing.T) {
		env := newTestEnv(t, testHoldOff)

		// Violates the binding invariant; must be skipped, not tracked.
		broken := &store.Collection{
			ID: "broken-1", Name: "No window", IsActive: true, TrackingEnabled: true,
			CreatedAt: store.NowNano(), LastAccessed: store.NowNano(),
		}
		require.NoError(t, env.store.SaveCollection(ctx, broken))

		require.NoError(t, env.engine.Initialize(ctx))
		assert.False(t, env.engine.shouldTrack("broken-1"))
		assert.True(t, env.engine.shouldTrack(env.collectionID), "existing entry survives re-init")
	})
}

func TestSyncStatus(t *testing.T) {
	env := newTestEnv(t, testHoldOff)
	ctx := context.Background()

	t.Run("zero before any activity", func(t *testing.T) {
		status := env.engine.SyncStatus(env.collectionID)
		assert.Zero(t, status.LastSyncTime)
		assert.Zero(t, status.PendingChanges)
	})

	t.Run("counts queued changes", func(t *testing.T) {
		env.engine.OnTabCreated(ctx, makeTab(1, env.windowID, 0, "https://a.test"))
		env.engine.OnTabCreated(ctx, makeTab(2, env.windowID, 1, "https://b.test"))

		status := env.engine.SyncStatus(env.collectionID)
		assert.Equal(t, 2, status.PendingChanges)
		assert.Zero(t, status.LastSyncTime, "not flushed yet")
	})

	t.Run("flush updates timestamp and drains count", func(t *testing.T) {
		before := store.NowNano()
		require.NoError(t, env.engine.FlushCollection(ctx, env.collectionID))

		status := env.engine.SyncStatus(env.collectionID)
		assert.GreaterOrEqual(t, status.LastSyncTime, before)
		assert.Zero(t, status.PendingChanges)
	})
}

func TestSetDefaultDebounce(t *testing.T) {
	env := newTestEnv(t, testHoldOff)

	env.engine.SetDefaultDebounce(123 * time.Millisecond)
	assert.Equal(t, 123*time.Millisecond, env.engine.fallbackDebounce())

	t.Run("non-positive values are ignored", func(t *testing.T) {
		env.engine.SetDefaultDebounce(0)
		assert.Equal(t, 123*time.Millisecond, env.engine.fallbackDebounce())
	})
}
