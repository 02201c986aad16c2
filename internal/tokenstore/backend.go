package tokenstore

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Backend.Get when a slot has never been written
// or has been deleted.
var ErrNotFound = errors.New("tokenstore: slot not found")

// Backend is the durable key-value storage behind a Store.
type Backend interface {
	// Get returns the raw slot value or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// SetMany writes all entries so that no reader sees a partial write.
	SetMany(ctx context.Context, entries map[string][]byte) error
	// Delete removes the given slots. Missing slots are not an error.
	Delete(ctx context.Context, keys ...string) error
}

// MemoryBackend keeps slots in process memory. It is used when persistence
// is disabled and in tests.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryBackend) SetMany(_ context.Context, entries map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range entries {
		m.data[k] = append([]byte(nil), v...)
	}
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// Len returns the number of stored slots.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
