// Package progress persists per-module and per-topic learning progress on top of
// a pluggable key-value store.
package progress

import (
	"context"
	"sync"
	"time"
)

const dbTimeout = 5 * time.Second

// KV is the persistence port of the progress store: string keys, string values.
type KV interface {
	Get(key string) (value string, found bool, err error)
	Set(key, value string) error
	Delete(keys ...string) error
}

// HealthChecker is implemented by KV backends that can report connectivity.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// MemoryKV is an in-memory KV for tests and ephemeral runs.
type MemoryKV struct {
	values map[string]string
	mu     sync.RWMutex
}

// NewMemoryKV creates an empty in-memory KV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		values: make(map[string]string),
	}
}

func (m *MemoryKV) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryKV) Delete(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryKV) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}
