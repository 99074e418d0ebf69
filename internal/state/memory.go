package state

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Persistence used by tests and the memory driver.
type MemoryStore struct {
	mu     sync.Mutex
	data   []byte
	legacy []byte
	saves  int
}

// NewMemoryStore returns a store seeded with an optional current and legacy payload.
func NewMemoryStore(current, legacy []byte) *MemoryStore {
	return &MemoryStore{data: clone(current), legacy: clone(legacy)}
}

// Load returns a copy of the stored payload.
func (m *MemoryStore) Load(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.data), nil
}

// LoadLegacy returns a copy of the legacy payload.
func (m *MemoryStore) LoadLegacy(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.legacy), nil
}

// Save replaces the stored payload.
func (m *MemoryStore) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = clone(data)
	m.saves++
	return nil
}

// Saves returns how many times Save was called.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
