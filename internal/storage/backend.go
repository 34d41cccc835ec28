// -------------------------------------------------------------------------------
// Object Backend Interface
//
// Author: Alex Freidah
//
// Contract for the backing object store the gateway fronts. The routing core
// never touches this; only the CDN-plane handler fetches bytes, and only after
// a hash has resolved to an enabled account/container. Conditional request
// headers pass through so edges can revalidate cheaply.
// -------------------------------------------------------------------------------

package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned when the backend has no such object.
var ErrObjectNotFound = errors.New("object not found in backend")

// FetchRequest describes one object fetch on behalf of a CDN edge.
type FetchRequest struct {
	Account   string
	Container string
	Object    string
	Head      bool // HEAD instead of GET

	// Conditional headers passed through from the edge.
	IfModifiedSince string
	IfMatch         string
	Range           string
}

// FetchResult carries the backend response. Body is nil for HEAD requests
// and for 304 results; otherwise the caller owns closing it.
type FetchResult struct {
	StatusCode         int // 200, 206, or 304
	Body               io.ReadCloser
	ContentLength      int64
	ContentType        string
	ContentRange       string
	ContentEncoding    string
	ContentDisposition string
	ETag               string
	LastModified       time.Time
}

// ObjectBackend reads objects and listings from the backing store.
type ObjectBackend interface {
	// Fetch retrieves an object (or its headers). Returns ErrObjectNotFound
	// when absent; a 304 result is returned as a FetchResult, not an error.
	Fetch(ctx context.Context, req FetchRequest) (*FetchResult, error)

	// ListObjects returns object names in a container, ordered, starting
	// after marker. limit <= 0 means backend default.
	ListObjects(ctx context.Context, account, container, marker string, limit int) ([]string, error)
}
