package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTestTask(id, title, status string) *Task {
	return &Task{
		ID:        id,
		Title:     title,
		Status:    status,
		Priority:  "normal",
		CreatedAt: NowNano(),
	}
}

func TestGetTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("not found returns nil, nil", func(t *testing.T) {
		task, err := s.GetTask(ctx, "missing")
		assert.NoError(t, err)
		assert.Nil(t, task)
	})

	t.Run("round-trips all fields", func(t *testing.T) {
		require.NoError(t, s.SaveCollection(ctx, makeTestCollection("c1", "Work")))

		want := &Task{
			ID:           "k1",
			CollectionID: strp("c1"),
			Title:        "triage reading list",
			Note:         "start with the ml papers",
			Status:       TaskStatusOpen,
			Priority:     "high",
			DueDate:      int64p(NowNano()),
			Tags:         []string{"reading", "ml"},
			TabRefs:      []string{"t1", "t2"},
			CreatedAt:    NowNano(),
		}
		require.NoError(t, s.SaveTask(ctx, want))

		got, err := s.GetTask(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

func TestTasksByStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTask(ctx, makeTestTask("k1", "a", TaskStatusOpen)))
	require.NoError(t, s.SaveTask(ctx, makeTestTask("k2", "b", TaskStatusDone)))
	require.NoError(t, s.SaveTask(ctx, makeTestTask("k3", "c", TaskStatusOpen)))

	open, err := s.TasksByStatus(ctx, TaskStatusOpen)
	require.NoError(t, err)
	assert.Len(t, open, 2)

	done, err := s.TasksByStatus(ctx, TaskStatusDone)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "k2", done[0].ID)
}

func TestTasksByCollection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCollection(ctx, makeTestCollection("c1", "Work")))

	t1 := makeTestTask("k1", "a", TaskStatusOpen)
	t1.CollectionID = strp("c1")
	require.NoError(t, s.SaveTask(ctx, t1))

	t2 := makeTestTask("k2", "b", TaskStatusOpen)
	require.NoError(t, s.SaveTask(ctx, t2))

	got, err := s.TasksByCollection(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "k1", got[0].ID)
}

func TestTasksByTag(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts []Option
	}{
		{"native strategy", nil},
		{"scan fallback", []Option{WithScanFallback()}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestStore(t, tc.opts...)
			ctx := context.Background()

			t1 := makeTestTask("k1", "a", TaskStatusOpen)
			t1.Tags = []string{"reading"}
			require.NoError(t, s.SaveTask(ctx, t1))

			t2 := makeTestTask("k2", "b", TaskStatusOpen)
			t2.Tags = []string{"chores"}
			require.NoError(t, s.SaveTask(ctx, t2))

			got, err := s.TasksByTag(ctx, "reading")
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "k1", got[0].ID)

			got, err = s.TasksByTag(ctx, "absent")
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}
