package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/gogotex/records/internal/record/repository"
)

var ErrIDSpaceExhausted = errors.New("record id space exhausted")

// Allocator hands out record ids from the store's NextId cell. Ids start at 1
// and are never reissued.
type Allocator struct {
	mu    sync.Mutex
	store repository.Store
}

func NewAllocator(store repository.Store) *Allocator {
	return &Allocator{store: store}
}

// Next increments NextId and returns the incremented value. Stores with a
// native atomic increment are used directly; otherwise the read and write
// happen under the allocator's lock. Once the store's counter cannot grow,
// Next fails with ErrIDSpaceExhausted and NextId is left unchanged.
func (a *Allocator) Next(ctx context.Context) (uint64, error) {
	if inc, ok := a.store.(repository.CounterIncrementer); ok {
		id, err := inc.IncrementCounter(ctx)
		if errors.Is(err, repository.ErrCounterOverflow) {
			return 0, ErrIDSpaceExhausted
		}
		if err != nil {
			return 0, fmt.Errorf("allocate id: %w", err)
		}
		return id, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	cur, err := a.store.ReadCounter(ctx)
	if err != nil {
		return 0, fmt.Errorf("allocate id: %w", err)
	}
	if cur == math.MaxUint64 {
		return 0, ErrIDSpaceExhausted
	}
	next := cur + 1
	if err := a.store.WriteCounter(ctx, next); err != nil {
		if errors.Is(err, repository.ErrOutOfRange) {
			return 0, ErrIDSpaceExhausted
		}
		return 0, fmt.Errorf("allocate id: %w", err)
	}
	return next, nil
}
