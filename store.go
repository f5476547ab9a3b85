package main

import (
	"context"
	"sync"
)

// Store persists todo records keyed by id. Every method is a single round trip
// to the backend.
type Store interface {
	// Get returns ErrNotFound when no record has the id.
	Get(ctx context.Context, id string) (*ToDo, error)
	// List returns the records passing f, in no particular order.
	List(ctx context.Context, f Filter) ([]ToDo, error)
	// Upsert inserts t or replaces the whole record stored under t.ID.
	Upsert(ctx context.Context, t ToDo) error
	// Delete removes the record. A missing id is not an error.
	Delete(ctx context.Context, id string) error
	Close(ctx context.Context) error
}

// MemoryStore keeps records in process memory. Used for local runs and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]ToDo
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]ToDo)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*ToDo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *MemoryStore) List(_ context.Context, f Filter) ([]ToDo, error) {
	out := []ToDo{}
	if f.Empty() {
		return out, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.items {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MemoryStore) Upsert(_ context.Context, t ToDo) error {
	m.mu.Lock()
	m.items[t.ID] = t
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.items, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close(context.Context) error { return nil }
