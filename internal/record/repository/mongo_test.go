package repository

import (
	"context"
	"math"
	"testing"

	"github.com/gogotex/records/internal/record"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

// lastCommand returns the most recent command named name sent by the client.
func lastCommand(mt *mtest.T, name string) bson.Raw {
	mt.Helper()
	evs := mt.GetAllStartedEvents()
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i].CommandName == name {
			return evs[i].Command
		}
	}
	mt.Fatalf("no %s command sent", name)
	return nil
}

func newMockMongoRepo(mt *mtest.T) *MongoRepo {
	mt.Helper()
	mt.AddMockResponses(
		mtest.CreateSuccessResponse(),
		mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
	)
	repo, err := NewMongoRepo(context.Background(), mt.Coll, mt.DB.Collection("counters"))
	require.NoError(mt, err)
	return repo
}

func TestMongoRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("setup creates unique index and seeds counter", func(mt *mtest.T) {
		newMockMongoRepo(mt)

		idx := lastCommand(mt, "createIndexes")
		require.True(mt, idx.Lookup("indexes", "0", "unique").Boolean())
		require.Equal(mt, "owner_1_id_1", idx.Lookup("indexes", "0", "name").StringValue())

		seed := lastCommand(mt, "update")
		require.Equal(mt, "counters", seed.Lookup("update").StringValue())
		require.Equal(mt, "records", seed.Lookup("updates", "0", "q", "_id").StringValue())
		require.Equal(mt, int64(0), seed.Lookup("updates", "0", "u", "$setOnInsert", "value").Int64())
		require.True(mt, seed.Lookup("updates", "0", "upsert").Boolean())
	})

	mt.Run("increment returns updated document", func(mt *mtest.T) {
		repo := newMockMongoRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "value", Value: bson.D{{Key: "_id", Value: "records"}, {Key: "value", Value: int64(1)}}},
		))

		n, err := repo.IncrementCounter(ctx)
		require.NoError(mt, err)
		require.Equal(mt, uint64(1), n)

		cmd := lastCommand(mt, "findAndModify")
		require.True(mt, cmd.Lookup("new").Boolean())
		require.Equal(mt, int64(1), cmd.Lookup("update", "$inc", "value").Int64())
		require.Equal(mt, int64(math.MaxInt64), cmd.Lookup("query", "value", "$lt").Int64())
	})

	mt.Run("increment at the top of the range overflows", func(mt *mtest.T) {
		repo := newMockMongoRepo(mt)
		ns := mt.DB.Name() + ".counters"
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
				bson.D{{Key: "_id", Value: "records"}, {Key: "value", Value: int64(math.MaxInt64)}}),
		)

		_, err := repo.IncrementCounter(ctx)
		require.ErrorIs(mt, err, ErrCounterOverflow)
	})

	mt.Run("increment without seeded counter fails", func(mt *mtest.T) {
		repo := newMockMongoRepo(mt)
		ns := mt.DB.Name() + ".counters"
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
		)

		_, err := repo.IncrementCounter(ctx)
		require.Error(mt, err)
		require.NotErrorIs(mt, err, ErrCounterOverflow)
	})

	mt.Run("put stores owner and signed fields", func(mt *mtest.T) {
		repo := newMockMongoRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		rec := &record.Record{ID: 7, Title: "T", Content: "C", CreatedAt: 100, UpdatedAt: 200}
		require.NoError(mt, repo.Put(ctx, "alice", rec))

		cmd := lastCommand(mt, "update")
		require.Equal(mt, "alice", cmd.Lookup("updates", "0", "q", "owner").StringValue())
		require.Equal(mt, int64(7), cmd.Lookup("updates", "0", "q", "id").Int64())
		require.Equal(mt, "alice", cmd.Lookup("updates", "0", "u", "owner").StringValue())
		require.Equal(mt, int64(7), cmd.Lookup("updates", "0", "u", "id").Int64())
		require.Equal(mt, int64(100), cmd.Lookup("updates", "0", "u", "createdAt").Int64())
		require.Equal(mt, int64(200), cmd.Lookup("updates", "0", "u", "updatedAt").Int64())
		require.True(mt, cmd.Lookup("updates", "0", "upsert").Boolean())
	})

	mt.Run("get decodes unsigned fields", func(mt *mtest.T) {
		repo := newMockMongoRepo(mt)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "owner", Value: "alice"},
			{Key: "id", Value: int64(7)},
			{Key: "title", Value: "T"},
			{Key: "content", Value: "C"},
			{Key: "createdAt", Value: int64(100)},
			{Key: "updatedAt", Value: int64(200)},
		}))

		got, err := repo.Get(ctx, "alice", 7)
		require.NoError(mt, err)
		require.Equal(mt, &record.Record{ID: 7, Title: "T", Content: "C", CreatedAt: 100, UpdatedAt: 200}, got)

		cmd := lastCommand(mt, "find")
		require.Equal(mt, "alice", cmd.Lookup("filter", "owner").StringValue())
		require.Equal(mt, int64(7), cmd.Lookup("filter", "id").Int64())
	})

	mt.Run("get missing record", func(mt *mtest.T) {
		repo := newMockMongoRepo(mt)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := repo.Get(ctx, "alice", 9)
		require.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("list sorts by id", func(mt *mtest.T) {
		repo := newMockMongoRepo(mt)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "owner", Value: "alice"}, {Key: "id", Value: int64(1)}, {Key: "title", Value: "a"}},
			bson.D{{Key: "owner", Value: "alice"}, {Key: "id", Value: int64(4)}, {Key: "title", Value: "b"}},
		))

		list, err := repo.List(ctx, "alice")
		require.NoError(mt, err)
		require.Len(mt, list, 2)
		require.Equal(mt, uint64(1), list[0].ID)
		require.Equal(mt, uint64(4), list[1].ID)

		cmd := lastCommand(mt, "find")
		require.Equal(mt, "alice", cmd.Lookup("filter", "owner").StringValue())
		require.Equal(mt, int32(1), cmd.Lookup("sort", "id").Int32())
	})

	mt.Run("remove deletes by composite key", func(mt *mtest.T) {
		repo := newMockMongoRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		require.NoError(mt, repo.Remove(ctx, "alice", 7))

		cmd := lastCommand(mt, "delete")
		require.Equal(mt, "alice", cmd.Lookup("deletes", "0", "q", "owner").StringValue())
		require.Equal(mt, int64(7), cmd.Lookup("deletes", "0", "q", "id").Int64())
	})

	mt.Run("values beyond int64 never reach the server", func(mt *mtest.T) {
		repo := newMockMongoRepo(mt)
		mt.ClearEvents()

		require.ErrorIs(mt, repo.WriteCounter(ctx, MaxStoredValue+1), ErrOutOfRange)
		require.ErrorIs(mt, repo.Put(ctx, "alice", &record.Record{ID: math.MaxUint64}), ErrOutOfRange)
		require.ErrorIs(mt, repo.Put(ctx, "alice", &record.Record{ID: 1, CreatedAt: MaxStoredValue + 1}), ErrOutOfRange)
		_, err := repo.Get(ctx, "alice", math.MaxUint64)
		require.ErrorIs(mt, err, ErrNotFound)
		require.NoError(mt, repo.Remove(ctx, "alice", math.MaxUint64))

		require.Empty(mt, mt.GetAllStartedEvents())
	})
}
