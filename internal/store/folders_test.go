package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFolder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("not found returns nil, nil", func(t *testing.T) {
		f, err := s.GetFolder(ctx, "missing")
		assert.NoError(t, err)
		assert.Nil(t, f)
	})

	t.Run("round-trips all fields", func(t *testing.T) {
		require.NoError(t, s.SaveCollection(ctx, makeTestCollection("c1", "Work")))

		want := &Folder{
			ID:           "f1",
			CollectionID: "c1",
			Name:         "News",
			Color:        "blue",
			Collapsed:    true,
			Position:     2,
			GroupID:      int64p(1001),
		}
		require.NoError(t, s.SaveFolder(ctx, want))

		got, err := s.GetFolder(ctx, "f1")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

func TestFoldersByCollection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCollection(ctx, makeTestCollection("c1", "Work")))
	require.NoError(t, s.SaveCollection(ctx, makeTestCollection("c2", "Other")))
	require.NoError(t, s.SaveFolder(ctx, &Folder{ID: "f2", CollectionID: "c1", Position: 1}))
	require.NoError(t, s.SaveFolder(ctx, &Folder{ID: "f1", CollectionID: "c1", Position: 0}))
	require.NoError(t, s.SaveFolder(ctx, &Folder{ID: "other", CollectionID: "c2", Position: 0}))

	got, err := s.FoldersByCollection(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "f1", got[0].ID, "ordered by position")
	assert.Equal(t, "f2", got[1].ID)
}

func TestFindFolderByGroup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCollection(ctx, makeTestCollection("c1", "Work")))
	require.NoError(t, s.SaveCollection(ctx, makeTestCollection("c2", "Other")))
	require.NoError(t, s.SaveFolder(ctx, &Folder{ID: "f1", CollectionID: "c1", GroupID: int64p(7)}))
	// Same group id in a different collection must not match.
	require.NoError(t, s.SaveFolder(ctx, &Folder{ID: "f2", CollectionID: "c2", GroupID: int64p(7)}))

	f, err := s.FindFolderByGroup(ctx, "c1", 7)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "f1", f.ID)

	f, err = s.FindFolderByGroup(ctx, "c1", 8)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestRemoveFolder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCollection(ctx, makeTestCollection("c1", "Work")))
	require.NoError(t, s.SaveFolder(ctx, &Folder{ID: "f1", CollectionID: "c1", GroupID: int64p(7)}))

	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, s.SaveTab(ctx, &Tab{
			ID: id, CollectionID: "c1", FolderID: strp("f1"), URL: "https://" + id + ".test",
		}))
	}

	require.NoError(t, s.RemoveFolder(ctx, "f1"))

	f, err := s.GetFolder(ctx, "f1")
	require.NoError(t, err)
	assert.Nil(t, f)

	// Every tab survives as ungrouped.
	tabs, err := s.TabsByCollection(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, tabs, 3)

	for _, tab := range tabs {
		assert.Nil(t, tab.FolderID)
	}
}
