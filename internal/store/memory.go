package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
)

// MemoryStore keeps entries in an ordered in-process map. It is the default
// backend and the one used by tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries *treemap.Map
	closed  bool
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: treemap.NewWithStringComparator()}
}

// Set stores a copy of value under key
func (m *MemoryStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	if key == "" {
		return ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.entries.Put(key, append(json.RawMessage(nil), value...))
	return nil
}

// Get returns a copy of the value under key
func (m *MemoryStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	value, found := m.entries.Get(key)
	if !found {
		return nil, ErrKeyNotFound
	}
	return append(json.RawMessage(nil), value.(json.RawMessage)...), nil
}

// List returns every key in ascending order
func (m *MemoryStore) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	keys := make([]string, 0, m.entries.Size())
	for _, k := range m.entries.Keys() {
		keys = append(keys, k.(string))
	}
	return keys, nil
}

// Count returns the number of keys
func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrClosed
	}
	return m.entries.Size(), nil
}

// Ping reports whether the store is still open
func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close drops all entries
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.entries.Clear()
	return nil
}
