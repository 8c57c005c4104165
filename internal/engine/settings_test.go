package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabvault/tabvault/internal/store"
)

func TestRefreshSettings(t *testing.T) {
	ctx := context.Background()

	t.Run("missing collection is an error", func(t *testing.T) {
		env := newTestEnv(t, testHoldOff)

		err := env.engine.RefreshSettings(ctx, "does-not-exist")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("picks up a tracking toggle", func(t *testing.T) {
		env := newTestEnv(t, testHoldOff)

		c, err := env.store.GetCollection(ctx, env.collectionID)
		require.NoError(t, err)
		c.TrackingEnabled = false
		require.NoError(t, env.store.SaveCollection(ctx, c))

		// Stale cache still tracks until refreshed.
		assert.True(t, env.engine.shouldTrack(env.collectionID))

		require.NoError(t, env.engine.RefreshSettings(ctx, env.collectionID))
		assert.False(t, env.engine.shouldTrack(env.collectionID))

		c.TrackingEnabled = true
		require.NoError(t, env.store.SaveCollection(ctx, c))
		require.NoError(t, env.engine.RefreshSettings(ctx, env.collectionID))
		assert.True(t, env.engine.shouldTrack(env.collectionID))
	})

	t.Run("deactivated collection is evicted", func(t *testing.T) {
		env := newTestEnv(t, testHoldOff)

		require.NoError(t, env.store.UnbindCollection(ctx, env.collectionID))
		require.NoError(t, env.engine.RefreshSettings(ctx, env.collectionID))

		assert.False(t, env.engine.shouldTrack(env.collectionID))
	})

	t.Run("picks up a debounce change", func(t *testing.T) {
		env := newTestEnv(t, testHoldOff)

		c, err := env.store.GetCollection(ctx, env.collectionID)
		require.NoError(t, err)
		c.SyncDebounceMs = 750
		require.NoError(t, env.store.SaveCollection(ctx, c))
		require.NoError(t, env.engine.RefreshSettings(ctx, env.collectionID))

		env.engine.mu.Lock()
		ts := env.engine.tracked[env.collectionID]
		env.engine.mu.Unlock()

		assert.Equal(t, 750*time.Millisecond, ts.debounce)
	})
}

func TestUntrackCollection(t *testing.T) {
	env := newTestEnv(t, testHoldOff)
	ctx := context.Background()

	env.engine.OnTabCreated(ctx, makeTab(1, env.windowID, 0, "https://a.test"))

	require.NoError(t, env.engine.UntrackCollection(ctx, env.collectionID))

	// Untracking flushes pending work first; nothing may be lost.
	tabs, err := env.store.TabsByCollection(ctx, env.collectionID)
	require.NoError(t, err)
	assert.Len(t, tabs, 1)

	assert.False(t, env.engine.shouldTrack(env.collectionID))
}

func TestTrackCollection(t *testing.T) {
	env := newTestEnv(t, testHoldOff)
	ctx := context.Background()

	windowID := int64(300)
	c := &store.Collection{
		ID: "col-new", Name: "New", IsActive: true, WindowID: &windowID,
		TrackingEnabled: true, CreatedAt: store.NowNano(), LastAccessed: store.NowNano(),
	}
	require.NoError(t, env.store.SaveCollection(ctx, c))

	require.NoError(t, env.engine.TrackCollection(ctx, "col-new"))
	assert.True(t, env.engine.shouldTrack("col-new"))

	env.engine.OnTabCreated(ctx, makeTab(1, windowID, 0, "https://a.test"))

	env.engine.mu.Lock()
	pending := len(env.engine.queues["col-new"])
	env.engine.mu.Unlock()

	assert.Equal(t, 1, pending)
}
