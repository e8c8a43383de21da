package repository

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/gogotex/records/internal/record"
)

// MemoryRepo is an in-memory Store used for tests and single-process
// deployments without a database.
type MemoryRepo struct {
	mu     sync.RWMutex
	owners map[string]map[uint64]*record.Record
	nextID uint64
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{owners: make(map[string]map[uint64]*record.Record)}
}

func (m *MemoryRepo) Get(_ context.Context, owner string, id uint64) (*record.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.owners[owner][id]; ok {
		return r.Clone(), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) Put(_ context.Context, owner string, rec *record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.owners[owner]
	if !ok {
		ns = make(map[uint64]*record.Record)
		m.owners[owner] = ns
	}
	ns[rec.ID] = rec.Clone()
	return nil
}

func (m *MemoryRepo) Remove(_ context.Context, owner string, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.owners[owner]
	if !ok {
		return nil
	}
	delete(ns, id)
	if len(ns) == 0 {
		delete(m.owners, owner)
	}
	return nil
}

func (m *MemoryRepo) List(_ context.Context, owner string) ([]*record.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ns := m.owners[owner]
	out := make([]*record.Record, 0, len(ns))
	for _, r := range ns {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepo) ReadCounter(_ context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nextID, nil
}

func (m *MemoryRepo) WriteCounter(_ context.Context, v uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID = v
	return nil
}

func (m *MemoryRepo) IncrementCounter(_ context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nextID == math.MaxUint64 {
		return 0, ErrCounterOverflow
	}
	m.nextID++
	return m.nextID, nil
}
