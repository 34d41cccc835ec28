// -------------------------------------------------------------------------------
// Background Service Definitions
//
// Author: Alex Freidah
//
// Service types for the lifecycle manager. The health probe periodically
// pings the metadata store and the hash-data cache so the /health endpoint
// and logs reflect dependency state without putting a database round trip on
// the request path.
// -------------------------------------------------------------------------------

package main

import (
	"context"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/afreidah/origin-gateway/internal/config"
	"github.com/afreidah/origin-gateway/internal/storage"
)

// -------------------------------------------------------------------------
// HASH-DATA CACHE
// -------------------------------------------------------------------------

// newHashCache connects the optional Redis hash-data cache. An empty address
// disables it; the gateway then runs cache-less with every lookup hitting
// the metadata store.
func newHashCache(ctx context.Context, cfg *config.CacheConfig) (*storage.RedisCache, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	return storage.NewRedisCache(ctx, cfg)
}

// -------------------------------------------------------------------------
// HEALTH PROBE
// -------------------------------------------------------------------------

type healthService struct {
	store   *storage.PostgresStore
	cache   *storage.RedisCache
	healthy atomic.Bool
}

func newHealthService(store *storage.PostgresStore, cache *storage.RedisCache) *healthService {
	h := &healthService{store: store, cache: cache}
	h.healthy.Store(true)
	return h
}

// Healthy reports the result of the most recent probe. The cache being down
// degrades performance but not correctness, so only the store counts.
func (h *healthService) Healthy() bool {
	return h.healthy.Load()
}

func (h *healthService) Run(ctx context.Context) error {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			storeErr := h.store.Ping(probeCtx)
			var cacheErr error
			if h.cache != nil {
				cacheErr = h.cache.Ping(probeCtx)
			}
			cancel()

			wasHealthy := h.healthy.Load()
			h.healthy.Store(storeErr == nil)

			if storeErr != nil && wasHealthy {
				slog.Error("Metadata store unreachable", "error", storeErr)
			} else if storeErr == nil && !wasHealthy {
				slog.Info("Metadata store recovered")
			}
			if cacheErr != nil {
				slog.Warn("Hash-data cache unreachable", "error", cacheErr)
			}
		case <-ctx.Done():
			return nil
		}
	}
}
