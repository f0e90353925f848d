package risk

import (
	"context"
	"sync"
)

// CounterStore is the atomic counter collaborator backing the daily risk
// state. Keys are fully-qualified strings ("risk:{user}:{date}:{metric}")
// so concurrent sessions for the same user, even in separate processes,
// mutate the same counters.
type CounterStore interface {
	IncrInt(ctx context.Context, key string, by int64) (int64, error)
	IncrFloat(ctx context.Context, key string, by float64) (float64, error)
	GetInt(ctx context.Context, key string) (int64, error)
	GetFloat(ctx context.Context, key string) (float64, error)
	SetFlag(ctx context.Context, key string) error
	GetFlag(ctx context.Context, key string) (bool, error)
}

// MemoryCounterStore is an in-process CounterStore used in tests and as
// a degraded mode when no shared store is configured.
type MemoryCounterStore struct {
	mu     sync.Mutex
	ints   map[string]int64
	floats map[string]float64
	flags  map[string]bool
}

// NewMemoryCounterStore creates an empty in-memory counter store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		ints:   make(map[string]int64),
		floats: make(map[string]float64),
		flags:  make(map[string]bool),
	}
}

func (m *MemoryCounterStore) IncrInt(_ context.Context, key string, by int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ints[key] += by
	return m.ints[key], nil
}

func (m *MemoryCounterStore) IncrFloat(_ context.Context, key string, by float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.floats[key] += by
	return m.floats[key], nil
}

func (m *MemoryCounterStore) GetInt(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ints[key], nil
}

func (m *MemoryCounterStore) GetFloat(_ context.Context, key string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.floats[key], nil
}

func (m *MemoryCounterStore) SetFlag(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[key] = true
	return nil
}

func (m *MemoryCounterStore) GetFlag(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags[key], nil
}
