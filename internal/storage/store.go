// -------------------------------------------------------------------------------
// Metadata Store Interface
//
// Author: Alex Freidah
//
// Contract between the HTTP boundary and the hash metadata store. The store
// keys records by (container index, hash), where the container index is the
// deterministic allocation computed by the routing core. Implementations must
// be safe for concurrent use.
// -------------------------------------------------------------------------------

package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a hash record or listing does not exist.
var ErrNotFound = errors.New("metadata record not found")

// ErrFingerprintMismatch is returned when the deployment fingerprint stored
// at prep time does not match the running configuration. The container count
// and hash path suffix can never change once hashes are issued; startup must
// fail fast on drift.
var ErrFingerprintMismatch = errors.New("deployment fingerprint mismatch")

// ErrStoreUnavailable is returned by the circuit breaker when the metadata
// store is known to be down and the call was short-circuited.
var ErrStoreUnavailable = errors.New("metadata store unavailable")

// ContainerListing is one row of a management-plane account listing.
type ContainerListing struct {
	Container string
	Data      HashData
}

// MetadataStore tracks HashData records across the fixed set of hash
// containers.
type MetadataStore interface {
	// GetHashData fetches the record for a hash from its container.
	// Returns ErrNotFound when absent.
	GetHashData(ctx context.Context, containerIndex int, hash string) (HashData, error)

	// PutHashData upserts the record for a hash.
	PutHashData(ctx context.Context, containerIndex int, hash string, data HashData) error

	// DeleteHashData removes the record for a hash. Returns ErrNotFound when
	// it was already absent.
	DeleteHashData(ctx context.Context, containerIndex int, hash string) error

	// ListContainers returns an account's container records ordered by
	// container name, starting after marker. A nil enabledOnly returns all
	// records; otherwise only records whose CDNEnabled matches. limit <= 0
	// means no limit.
	ListContainers(ctx context.Context, account, marker string, limit int, enabledOnly *bool) ([]ContainerListing, error)

	// Prep provisions the store for this deployment: schema plus the
	// deployment fingerprint (container count, hash suffix digest).
	Prep(ctx context.Context, containerCount int, suffixDigest string) error

	// VerifyFingerprint checks the stored deployment fingerprint against the
	// running configuration. Returns ErrFingerprintMismatch on drift, nil
	// when matching or when the store has not been prepped yet.
	VerifyFingerprint(ctx context.Context, containerCount int, suffixDigest string) error

	// Close releases the underlying connections.
	Close()
}

// HashCache is a read-through cache in front of the metadata store. A miss
// may be cached negatively for a short period.
type HashCache interface {
	// Get returns the cached record. The second result is false on a cache
	// miss; ErrNotFound with true means a cached negative entry.
	Get(ctx context.Context, hash string) (HashData, bool, error)

	// Set caches a record.
	Set(ctx context.Context, hash string, data HashData) error

	// SetNegative caches the absence of a record.
	SetNegative(ctx context.Context, hash string) error

	// Delete drops a cached record.
	Delete(ctx context.Context, hash string) error
}
