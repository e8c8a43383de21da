package repository

import (
	"context"
	"testing"

	"github.com/gogotex/records/internal/record"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every Store backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	v, err := s.ReadCounter(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(0), v)

	if inc, ok := s.(CounterIncrementer); ok {
		n, err := inc.IncrementCounter(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(1), n)
		n, err = inc.IncrementCounter(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(2), n)
	}
	require.NoError(t, s.WriteCounter(ctx, 5))
	v, err = s.ReadCounter(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(5), v)

	_, err = s.Get(ctx, "alice", 1)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "alice", &record.Record{ID: 1, Title: "T1", Content: "C1", CreatedAt: 100, UpdatedAt: 100}))
	require.NoError(t, s.Put(ctx, "bob", &record.Record{ID: 1, Title: "bob", Content: "x", CreatedAt: 1, UpdatedAt: 1}))
	require.NoError(t, s.Put(ctx, "alice", &record.Record{ID: 3, Title: "T3", CreatedAt: 300, UpdatedAt: 300}))
	require.NoError(t, s.Put(ctx, "alice", &record.Record{ID: 2, Title: "T2", CreatedAt: 200, UpdatedAt: 200}))

	got, err := s.Get(ctx, "alice", 1)
	require.NoError(t, err)
	require.Equal(t, &record.Record{ID: 1, Title: "T1", Content: "C1", CreatedAt: 100, UpdatedAt: 100}, got)

	got, err = s.Get(ctx, "bob", 1)
	require.NoError(t, err)
	require.Equal(t, "bob", got.Title)

	list, err := s.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, r := range list {
		require.Equal(t, uint64(i+1), r.ID)
	}

	list, err = s.List(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, list)

	// upsert overwrites in place
	require.NoError(t, s.Put(ctx, "alice", &record.Record{ID: 1, Title: "T1b", Content: "C1b", CreatedAt: 100, UpdatedAt: 150}))
	got, err = s.Get(ctx, "alice", 1)
	require.NoError(t, err)
	require.Equal(t, "T1b", got.Title)
	require.Equal(t, uint64(150), got.UpdatedAt)

	require.NoError(t, s.Remove(ctx, "alice", 42))
	require.NoError(t, s.Remove(ctx, "carol", 1))
	require.NoError(t, s.Remove(ctx, "alice", 1))
	_, err = s.Get(ctx, "alice", 1)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.Remove(ctx, "alice", 1))

	got, err = s.Get(ctx, "bob", 1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), got.ID)

	list, err = s.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
}
