// -------------------------------------------------------------------------------
// Hash Lookup - Cache-Backed Metadata Reads
//
// Author: Alex Freidah
//
// Read-through composition of the hash-data cache and the metadata store.
// Cache failures degrade to store reads and are logged, never surfaced; the
// store stays the source of truth. Writes go through to the store and update
// the cache on success.
// -------------------------------------------------------------------------------

package storage

import (
	"context"
	"errors"
	"log/slog"
)

// Lookup is the cache-backed view of the metadata store the HTTP handlers
// read and write through. A nil cache disables caching.
type Lookup struct {
	Store MetadataStore
	Cache HashCache
}

// Get fetches the record for a hash, consulting the cache first. A store
// miss is cached negatively. Returns ErrNotFound when the record is absent.
func (l *Lookup) Get(ctx context.Context, containerIndex int, hash string) (HashData, error) {
	if l.Cache != nil {
		data, ok, err := l.Cache.Get(ctx, hash)
		if ok {
			return data, err
		}
		if err != nil {
			slog.Warn("Hash cache read failed", "hash", hash, "error", err)
		}
	}

	data, err := l.Store.GetHashData(ctx, containerIndex, hash)
	if errors.Is(err, ErrNotFound) {
		if l.Cache != nil {
			if cerr := l.Cache.SetNegative(ctx, hash); cerr != nil {
				slog.Warn("Hash cache negative set failed", "hash", hash, "error", cerr)
			}
		}
		return HashData{}, err
	}
	if err != nil {
		return HashData{}, err
	}

	if l.Cache != nil {
		if cerr := l.Cache.Set(ctx, hash, data); cerr != nil {
			slog.Warn("Hash cache set failed", "hash", hash, "error", cerr)
		}
	}
	return data, nil
}

// Put upserts the record and refreshes the cache.
func (l *Lookup) Put(ctx context.Context, containerIndex int, hash string, data HashData) error {
	if err := l.Store.PutHashData(ctx, containerIndex, hash, data); err != nil {
		return err
	}
	if l.Cache != nil {
		if cerr := l.Cache.Set(ctx, hash, data); cerr != nil {
			slog.Warn("Hash cache set failed", "hash", hash, "error", cerr)
		}
	}
	return nil
}

// Delete removes the record and drops the cache entry. The cache entry is
// dropped even when the store had no record, so a stale positive entry
// cannot outlive an explicit delete.
func (l *Lookup) Delete(ctx context.Context, containerIndex int, hash string) error {
	if l.Cache != nil {
		if cerr := l.Cache.Delete(ctx, hash); cerr != nil {
			slog.Warn("Hash cache delete failed", "hash", hash, "error", cerr)
		}
	}
	return l.Store.DeleteHashData(ctx, containerIndex, hash)
}
