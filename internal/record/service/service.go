package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gogotex/records/internal/record"
	"github.com/gogotex/records/internal/record/repository"
	"github.com/gogotex/records/pkg/logger"
	"github.com/gogotex/records/pkg/metrics"
)

var (
	ErrNotFound = errors.New("not found")
)

// Service defines the record operations used by the handler layer. owner is
// always the caller's verified identity.
type Service interface {
	Create(ctx context.Context, owner, title, content string, now uint64) (*record.Record, error)
	Get(ctx context.Context, owner string, id uint64) (*record.Record, error)
	List(ctx context.Context, owner string) ([]*record.Record, error)
	Update(ctx context.Context, owner string, id uint64, title, content string, now uint64) (*record.Record, error)
	Delete(ctx context.Context, owner string, id uint64) error
}

// Notifier receives committed mutations, e.g. to fan them out to subscribers.
type Notifier interface {
	Publish(owner string, ev record.Event)
}

// Options tune a record service.
type Options struct {
	// StrictDelete makes Delete of an absent id fail with ErrNotFound
	// instead of being a no-op.
	StrictDelete bool
	Notifier     Notifier
}

// New returns a Service over store. Every operation runs to completion under
// one lock, so id allocation and read-modify-write sequences never interleave.
func New(store repository.Store, opts Options) Service {
	return &recordService{
		store:        store,
		ids:          NewAllocator(store),
		strictDelete: opts.StrictDelete,
		notifier:     opts.Notifier,
	}
}

// NewMemoryService returns a Service backed by the in-memory repository.
func NewMemoryService() Service {
	return New(repository.NewMemoryRepo(), Options{})
}

type recordService struct {
	mu           sync.Mutex
	store        repository.Store
	ids          *Allocator
	strictDelete bool
	notifier     Notifier
}

func (s *recordService) Create(ctx context.Context, owner, title, content string, now uint64) (*record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.ids.Next(ctx)
	if err != nil {
		return nil, s.fail("create", err)
	}
	rec := &record.Record{ID: id, Title: title, Content: content, CreatedAt: now, UpdatedAt: now}
	if err := s.store.Put(ctx, owner, rec); err != nil {
		return nil, s.fail("create", err)
	}
	observe("create", nil)
	logger.Debugf("record created: owner=%s id=%d", owner, id)
	s.publish(owner, record.Event{Type: record.EventCreated, ID: id, Record: rec.Clone()})
	return rec, nil
}

func (s *recordService) Get(ctx context.Context, owner string, id uint64) (*record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load(ctx, owner, id)
	if err != nil {
		return nil, s.fail("get", err)
	}
	observe("get", nil)
	return rec, nil
}

func (s *recordService) List(ctx context.Context, owner string) ([]*record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.store.List(ctx, owner)
	if err != nil {
		return nil, s.fail("list", err)
	}
	observe("list", nil)
	return list, nil
}

func (s *recordService) Update(ctx context.Context, owner string, id uint64, title, content string, now uint64) (*record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load(ctx, owner, id)
	if err != nil {
		return nil, s.fail("update", err)
	}
	rec.Title = title
	rec.Content = content
	rec.UpdatedAt = now
	if err := s.store.Put(ctx, owner, rec); err != nil {
		return nil, s.fail("update", err)
	}
	observe("update", nil)
	logger.Debugf("record updated: owner=%s id=%d", owner, id)
	s.publish(owner, record.Event{Type: record.EventUpdated, ID: id, Record: rec.Clone()})
	return rec, nil
}

func (s *recordService) Delete(ctx context.Context, owner string, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existed := true
	if _, err := s.load(ctx, owner, id); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return s.fail("delete", err)
		}
		existed = false
	}
	if !existed && s.strictDelete {
		return s.fail("delete", ErrNotFound)
	}
	if err := s.store.Remove(ctx, owner, id); err != nil {
		return s.fail("delete", err)
	}
	observe("delete", nil)
	if existed {
		logger.Debugf("record deleted: owner=%s id=%d", owner, id)
		s.publish(owner, record.Event{Type: record.EventDeleted, ID: id})
	}
	return nil
}

// load maps the repository's not-found into ErrNotFound.
func (s *recordService) load(ctx context.Context, owner string, id uint64) (*record.Record, error) {
	rec, err := s.store.Get(ctx, owner, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load record %d: %w", id, err)
	}
	return rec, nil
}

func (s *recordService) fail(op string, err error) error {
	observe(op, err)
	if !errors.Is(err, ErrNotFound) {
		logger.Errorf("record %s failed: %v", op, err)
	}
	return err
}

func (s *recordService) publish(owner string, ev record.Event) {
	if s.notifier != nil {
		s.notifier.Publish(owner, ev)
	}
}

func observe(op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	default:
		result = "error"
	}
	metrics.RecordOperations.WithLabelValues(op, result).Inc()
}
