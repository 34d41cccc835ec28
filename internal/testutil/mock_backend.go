package testutil

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/afreidah/origin-gateway/internal/storage"
)

// MockBackend is a configurable ObjectBackend for unit testing. Objects are
// keyed by "account/container/object".
type MockBackend struct {
	Mu      sync.Mutex
	Objects map[string]MockObject

	FetchErr error
	ListErr  error

	FetchCalls []storage.FetchRequest
}

// MockObject is one stored object's content and metadata.
type MockObject struct {
	Body        string
	ContentType string
	ETag        string
}

// Compile-time check.
var _ storage.ObjectBackend = (*MockBackend)(nil)

// NewMockBackend returns an empty backend.
func NewMockBackend() *MockBackend {
	return &MockBackend{Objects: make(map[string]MockObject)}
}

// Put stores an object for later fetching.
func (m *MockBackend) Put(account, container, object string, obj MockObject) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Objects[account+"/"+container+"/"+object] = obj
}

func (m *MockBackend) Fetch(_ context.Context, req storage.FetchRequest) (*storage.FetchResult, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.FetchCalls = append(m.FetchCalls, req)
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	obj, ok := m.Objects[req.Account+"/"+req.Container+"/"+req.Object]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	res := &storage.FetchResult{
		StatusCode:    200,
		ContentLength: int64(len(obj.Body)),
		ContentType:   obj.ContentType,
		ETag:          obj.ETag,
	}
	if !req.Head {
		res.Body = io.NopCloser(strings.NewReader(obj.Body))
	}
	return res, nil
}

func (m *MockBackend) ListObjects(_ context.Context, account, container, marker string, limit int) ([]string, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	base := account + "/" + container + "/"
	var names []string
	for key := range m.Objects {
		if !strings.HasPrefix(key, base) {
			continue
		}
		name := strings.TrimPrefix(key, base)
		if marker != "" && name <= marker {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}
	return names, nil
}
