package repository

import (
	"context"
	"math"
	"testing"

	"github.com/gogotex/records/internal/record"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepoContract(t *testing.T) {
	exerciseStore(t, NewMemoryRepo())
}

func TestMemoryRepoDoesNotAlias(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	rec := &record.Record{ID: 1, Title: "a"}
	require.NoError(t, r.Put(ctx, "alice", rec))
	rec.Title = "mutated"

	got, err := r.Get(ctx, "alice", 1)
	require.NoError(t, err)
	require.Equal(t, "a", got.Title)

	got.Title = "also mutated"
	again, err := r.Get(ctx, "alice", 1)
	require.NoError(t, err)
	require.Equal(t, "a", again.Title)
}

func TestMemoryRepoCounterOverflow(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	require.NoError(t, r.WriteCounter(ctx, math.MaxUint64))

	_, err := r.IncrementCounter(ctx)
	require.ErrorIs(t, err, ErrCounterOverflow)
	v, err := r.ReadCounter(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64), v)
}
