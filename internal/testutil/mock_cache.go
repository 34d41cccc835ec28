package testutil

import (
	"context"
	"sync"

	"github.com/afreidah/origin-gateway/internal/storage"
)

// MockCache is an in-memory HashCache for unit testing. Negative entries are
// tracked separately so tests can distinguish "cached miss" from "not
// cached".
type MockCache struct {
	Mu       sync.Mutex
	Entries  map[string]storage.HashData
	Negative map[string]bool

	GetErr error
	SetErr error

	SetCalls         int
	SetNegativeCalls int
	DeleteCalls      []string
}

// Compile-time check.
var _ storage.HashCache = (*MockCache)(nil)

// NewMockCache returns an empty cache.
func NewMockCache() *MockCache {
	return &MockCache{
		Entries:  make(map[string]storage.HashData),
		Negative: make(map[string]bool),
	}
}

func (m *MockCache) Get(_ context.Context, hash string) (storage.HashData, bool, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.GetErr != nil {
		return storage.HashData{}, false, m.GetErr
	}
	if m.Negative[hash] {
		return storage.HashData{}, true, storage.ErrNotFound
	}
	data, ok := m.Entries[hash]
	return data, ok, nil
}

func (m *MockCache) Set(_ context.Context, hash string, data storage.HashData) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.SetCalls++
	if m.SetErr != nil {
		return m.SetErr
	}
	delete(m.Negative, hash)
	m.Entries[hash] = data
	return nil
}

func (m *MockCache) SetNegative(_ context.Context, hash string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.SetNegativeCalls++
	delete(m.Entries, hash)
	m.Negative[hash] = true
	return nil
}

func (m *MockCache) Delete(_ context.Context, hash string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.DeleteCalls = append(m.DeleteCalls, hash)
	delete(m.Entries, hash)
	delete(m.Negative, hash)
	return nil
}
