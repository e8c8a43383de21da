package repository

import (
	"context"
	"fmt"

	"github.com/gogotex/records/internal/record"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const counterDocID = "records"

// mongoRecord is the stored shape: the record plus its owner.
type mongoRecord struct {
	Owner         string `bson:"owner"`
	record.Record `bson:",inline"`
}

// MongoRepo implements Store on two collections: one holding records keyed
// by a unique {owner, id} index and one holding the NextId counter document.
type MongoRepo struct {
	col      *mongo.Collection
	counters *mongo.Collection
}

func NewMongoRepo(ctx context.Context, col, counters *mongo.Collection) (*MongoRepo, error) {
	idxModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "owner", Value: 1}, {Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := col.Indexes().CreateOne(ctx, idxModel); err != nil {
		return nil, fmt.Errorf("create records index: %w", err)
	}
	// seed NextId = 0 without clobbering an existing counter
	_, err := counters.UpdateOne(ctx,
		bson.M{"_id": counterDocID},
		bson.M{"$setOnInsert": bson.M{"value": int64(0)}},
		options.Update().SetUpsert(true))
	if err != nil {
		return nil, fmt.Errorf("seed counter: %w", err)
	}
	return &MongoRepo{col: col, counters: counters}, nil
}

func key(owner string, id uint64) bson.M {
	return bson.M{"owner": owner, "id": int64(id)}
}

func (m *MongoRepo) Get(ctx context.Context, owner string, id uint64) (*record.Record, error) {
	if checkRange(id) != nil {
		return nil, ErrNotFound
	}
	var d mongoRecord
	err := m.col.FindOne(ctx, key(owner, id)).Decode(&d)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d.Record, nil
}

func (m *MongoRepo) Put(ctx context.Context, owner string, rec *record.Record) error {
	if err := checkRange(rec.ID, rec.CreatedAt, rec.UpdatedAt); err != nil {
		return fmt.Errorf("put record %d: %w", rec.ID, err)
	}
	doc := mongoRecord{Owner: owner, Record: *rec}
	_, err := m.col.ReplaceOne(ctx, key(owner, rec.ID), doc, options.Replace().SetUpsert(true))
	return err
}

func (m *MongoRepo) Remove(ctx context.Context, owner string, id uint64) error {
	if checkRange(id) != nil {
		return nil
	}
	_, err := m.col.DeleteOne(ctx, key(owner, id))
	return err
}

func (m *MongoRepo) List(ctx context.Context, owner string) ([]*record.Record, error) {
	cur, err := m.col.Find(ctx, bson.M{"owner": owner}, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*record.Record{}
	for cur.Next(ctx) {
		var d mongoRecord
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		r := d.Record
		out = append(out, &r)
	}
	return out, cur.Err()
}

type counterDoc struct {
	Value int64 `bson:"value"`
}

func (m *MongoRepo) ReadCounter(ctx context.Context) (uint64, error) {
	var c counterDoc
	err := m.counters.FindOne(ctx, bson.M{"_id": counterDocID}).Decode(&c)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, nil
		}
		return 0, err
	}
	return uint64(c.Value), nil
}

func (m *MongoRepo) WriteCounter(ctx context.Context, v uint64) error {
	if err := checkRange(v); err != nil {
		return fmt.Errorf("write counter: %w", err)
	}
	_, err := m.counters.UpdateOne(ctx,
		bson.M{"_id": counterDocID},
		bson.M{"$set": bson.M{"value": int64(v)}},
		options.Update().SetUpsert(true))
	return err
}

// IncrementCounter bumps the counter seeded by NewMongoRepo with $inc and
// returns the new value. The document is left untouched once it holds
// MaxStoredValue.
func (m *MongoRepo) IncrementCounter(ctx context.Context) (uint64, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var c counterDoc
	err := m.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": counterDocID, "value": bson.M{"$lt": int64(MaxStoredValue)}},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		opts).Decode(&c)
	if err == mongo.ErrNoDocuments {
		cur, rerr := m.ReadCounter(ctx)
		if rerr != nil {
			return 0, rerr
		}
		if cur == MaxStoredValue {
			return 0, ErrCounterOverflow
		}
		return 0, fmt.Errorf("increment counter: counter document %q missing", counterDocID)
	}
	if err != nil {
		return 0, err
	}
	return uint64(c.Value), nil
}
