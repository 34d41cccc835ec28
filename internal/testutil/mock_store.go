// Package testutil provides shared test helpers and mocks.
package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/afreidah/origin-gateway/internal/storage"
)

// MockStore is an in-memory MetadataStore for unit testing. Records live in a
// map keyed by hash; error fields force failures per method. Call tracking
// fields allow assertions on what the caller invoked.
type MockStore struct {
	Mu      sync.Mutex
	Records map[string]storage.HashData // keyed by hash

	// --- Forced errors ---
	GetErr    error
	PutErr    error
	DeleteErr error
	ListErr   error
	PrepErr   error
	VerifyErr error

	// --- Call tracking ---
	GetCalls    int
	PutCalls    int
	DeleteCalls []string
	PrepCalls   int
}

// Compile-time check.
var _ storage.MetadataStore = (*MockStore)(nil)

// NewMockStore returns an empty store.
func NewMockStore() *MockStore {
	return &MockStore{Records: make(map[string]storage.HashData)}
}

func (m *MockStore) GetHashData(_ context.Context, _ int, hash string) (storage.HashData, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.GetCalls++
	if m.GetErr != nil {
		return storage.HashData{}, m.GetErr
	}
	data, ok := m.Records[hash]
	if !ok {
		return storage.HashData{}, storage.ErrNotFound
	}
	return data, nil
}

func (m *MockStore) PutHashData(_ context.Context, _ int, hash string, data storage.HashData) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.PutCalls++
	if m.PutErr != nil {
		return m.PutErr
	}
	m.Records[hash] = data
	return nil
}

func (m *MockStore) DeleteHashData(_ context.Context, _ int, hash string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.DeleteCalls = append(m.DeleteCalls, hash)
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	if _, ok := m.Records[hash]; !ok {
		return storage.ErrNotFound
	}
	delete(m.Records, hash)
	return nil
}

func (m *MockStore) ListContainers(_ context.Context, account, marker string, limit int, enabledOnly *bool) ([]storage.ContainerListing, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var rows []storage.ContainerListing
	for _, data := range m.Records {
		if data.Account != account {
			continue
		}
		if marker != "" && data.Container <= marker {
			continue
		}
		if enabledOnly != nil && data.CDNEnabled != *enabledOnly {
			continue
		}
		rows = append(rows, storage.ContainerListing{Container: data.Container, Data: data})
	}
	sortListings(rows)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (m *MockStore) Prep(_ context.Context, _ int, _ string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.PrepCalls++
	return m.PrepErr
}

func (m *MockStore) VerifyFingerprint(_ context.Context, _ int, _ string) error {
	return m.VerifyErr
}

func (m *MockStore) Close() {}

func sortListings(rows []storage.ContainerListing) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Container < rows[j].Container })
}
