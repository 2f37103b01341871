package core

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// MemoryStore is an in-process [Store]. It backs tests and
// DATABASE_DRIVER=memory.
type MemoryStore struct {
	mu     sync.RWMutex
	order  []string
	byBIN  map[string]Bridge
	closed bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byBIN: make(map[string]Bridge)}
}

var errStoreClosed = errors.New("memory store closed")

func (m *MemoryStore) List(ctx context.Context) ([]Bridge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errStoreClosed
	}
	out := make([]Bridge, 0, len(m.order))
	for _, bin := range m.order {
		out = append(out, m.byBIN[bin])
	}
	return out, nil
}

func (m *MemoryStore) Get(ctx context.Context, bin string) (Bridge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Bridge{}, errStoreClosed
	}
	b, ok := m.byBIN[bin]
	if !ok {
		return Bridge{}, ErrNotFound
	}
	return b, nil
}

func (m *MemoryStore) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, errStoreClosed
	}
	return int64(len(m.order)), nil
}

func (m *MemoryStore) Insert(ctx context.Context, b Bridge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errStoreClosed
	}
	if _, ok := m.byBIN[b.BIN]; ok {
		return ErrConflict
	}
	m.byBIN[b.BIN] = b
	m.order = append(m.order, b.BIN)
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, b Bridge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errStoreClosed
	}
	if _, ok := m.byBIN[b.BIN]; !ok {
		return ErrNotFound
	}
	m.byBIN[b.BIN] = b
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, bin string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errStoreClosed
	}
	if _, ok := m.byBIN[bin]; !ok {
		return ErrNotFound
	}
	delete(m.byBIN, bin)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == bin })
	return nil
}

func (m *MemoryStore) Upsert(ctx context.Context, bin string, u Update) (Bridge, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Bridge{}, false, errStoreClosed
	}
	b, exists := m.byBIN[bin]
	if !exists {
		b = Bridge{BIN: bin}
		m.order = append(m.order, bin)
	}
	u.Apply(&b)
	m.byBIN[bin] = b
	return b, !exists, nil
}

func (m *MemoryStore) Clear(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errStoreClosed
	}
	n := int64(len(m.order))
	m.order = nil
	m.byBIN = make(map[string]Bridge)
	return n, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return errStoreClosed
	}
	return ctx.Err()
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
