package repository

import (
	"context"
	"errors"
	"math"

	"github.com/gogotex/records/internal/record"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrCounterOverflow is returned when NextId is already at the largest
	// value the store can hold.
	ErrCounterOverflow = errors.New("record counter overflow")
	// ErrOutOfRange is returned when an id, timestamp or counter value does
	// not fit the store's signed 64-bit columns.
	ErrOutOfRange = errors.New("value exceeds storage range")
)

// MaxStoredValue bounds ids, timestamps and NextId in the SQL and MongoDB
// stores, and NextId in Redis, all of which keep them as signed 64-bit
// integers.
const MaxStoredValue uint64 = math.MaxInt64

// checkRange rejects values the signed 64-bit stores cannot represent.
func checkRange(vals ...uint64) error {
	for _, v := range vals {
		if v > MaxStoredValue {
			return ErrOutOfRange
		}
	}
	return nil
}

// Store is the durable (owner, id) -> Record mapping plus the deployment-wide
// NextId counter cell. It performs no validation; callers enforce invariants.
type Store interface {
	Get(ctx context.Context, owner string, id uint64) (*record.Record, error)
	// Put upserts rec under (owner, rec.ID).
	Put(ctx context.Context, owner string, rec *record.Record) error
	// Remove deletes (owner, id). Removing an absent key is not an error.
	Remove(ctx context.Context, owner string, id uint64) error
	// List returns the owner's records ordered by id.
	List(ctx context.Context, owner string) ([]*record.Record, error)

	ReadCounter(ctx context.Context) (uint64, error)
	WriteCounter(ctx context.Context, v uint64) error
}

// CounterIncrementer is implemented by stores that can atomically increment
// NextId and return the new value in one storage round trip. It fails with
// ErrCounterOverflow instead of wrapping.
type CounterIncrementer interface {
	IncrementCounter(ctx context.Context) (uint64, error)
}
