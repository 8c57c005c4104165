package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("empty database", func(t *testing.T) {
		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Zero(t, stats.ActiveCollections)
		assert.Zero(t, stats.SavedCollections)
		assert.Zero(t, stats.Folders)
		assert.Zero(t, stats.Tabs)
		assert.Empty(t, stats.TasksByStatus)
	})

	t.Run("populated database", func(t *testing.T) {
		live := makeTestCollection("c1", "Live")
		live.IsActive = true
		live.WindowID = int64p(1)
		require.NoError(t, s.SaveCollection(ctx, live))

		require.NoError(t, s.SaveCollection(ctx, makeTestCollection("c2", "Saved")))
		require.NoError(t, s.SaveCollection(ctx, makeTestCollection("c3", "Saved too")))

		require.NoError(t, s.SaveFolder(ctx, &Folder{ID: "f1", CollectionID: "c1"}))

		require.NoError(t, s.SaveTab(ctx, &Tab{ID: "t1", CollectionID: "c1"}))
		require.NoError(t, s.SaveTab(ctx, &Tab{ID: "t2", CollectionID: "c2"}))

		require.NoError(t, s.SaveTask(ctx, makeTestTask("k1", "a", TaskStatusOpen)))
		require.NoError(t, s.SaveTask(ctx, makeTestTask("k2", "b", TaskStatusOpen)))
		require.NoError(t, s.SaveTask(ctx, makeTestTask("k3", "c", TaskStatusDone)))

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.ActiveCollections)
		assert.Equal(t, int64(2), stats.SavedCollections)
		assert.Equal(t, int64(1), stats.Folders)
		assert.Equal(t, int64(2), stats.Tabs)
		assert.Equal(t, map[string]int64{TaskStatusOpen: 2, TaskStatusDone: 1}, stats.TasksByStatus)
	})
}
