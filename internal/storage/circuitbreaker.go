// -------------------------------------------------------------------------------
// CircuitBreakerStore - Self-Healing Database Degradation Wrapper
//
// Author: Alex Freidah
//
// Wraps a MetadataStore with a three-state circuit breaker that detects
// database outages and returns ErrStoreUnavailable when the circuit is open.
// While the circuit is open the CDN plane still serves everything the Redis
// cache can answer; only cache misses and management writes see the sentinel.
// When the database recovers, the circuit auto-closes.
//
// States: closed (healthy) → open (DB down) → half-open (probing) → closed.
// -------------------------------------------------------------------------------

package storage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/afreidah/origin-gateway/internal/config"
	"github.com/afreidah/origin-gateway/internal/telemetry"
)

// -------------------------------------------------------------------------
// STATE
// -------------------------------------------------------------------------

type circuitState int

const (
	stateClosed   circuitState = iota // healthy — all calls pass through
	stateOpen                         // DB down — return ErrStoreUnavailable
	stateHalfOpen                     // probing — one call allowed through
)

// String returns the human-readable name of the circuit state.
func (s circuitState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// -------------------------------------------------------------------------
// CIRCUIT BREAKER STORE
// -------------------------------------------------------------------------

// CircuitBreakerStore implements MetadataStore by wrapping a real store with
// circuit breaker logic. When the database is unreachable, it returns
// ErrStoreUnavailable instead of passing through to the real store.
type CircuitBreakerStore struct {
	real          MetadataStore
	mu            sync.RWMutex
	state         circuitState
	failures      int
	lastFailure   time.Time
	openedAt      time.Time // tracks when the circuit opened for degraded_duration
	failThreshold int
	openTimeout   time.Duration
	probeInFlight atomic.Bool
}

// Compile-time check.
var _ MetadataStore = (*CircuitBreakerStore)(nil)

// NewCircuitBreakerStore wraps a real MetadataStore with circuit breaker logic.
func NewCircuitBreakerStore(real MetadataStore, cfg config.CircuitBreakerConfig) *CircuitBreakerStore {
	return &CircuitBreakerStore{
		real:          real,
		state:         stateClosed,
		failThreshold: cfg.FailureThreshold,
		openTimeout:   cfg.OpenTimeout,
	}
}

// IsHealthy returns true when the circuit is closed (database is reachable).
func (cb *CircuitBreakerStore) IsHealthy() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state == stateClosed
}

// -------------------------------------------------------------------------
// STATE MACHINE
// -------------------------------------------------------------------------

// preCheck returns ErrStoreUnavailable when the circuit is open. Transitions
// open → half-open when the timeout has elapsed, allowing one probe request.
func (cb *CircuitBreakerStore) preCheck() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateClosed:
		return nil
	case stateOpen:
		if time.Since(cb.lastFailure) >= cb.openTimeout {
			if !cb.probeInFlight.CompareAndSwap(false, true) {
				return ErrStoreUnavailable // another probe already in flight
			}
			cb.transition(stateHalfOpen)
			return nil // allow this request as the probe
		}
		return ErrStoreUnavailable
	case stateHalfOpen:
		return ErrStoreUnavailable
	}
	return nil
}

// postCheck records the result of a real store call and transitions state.
// When a DB error causes the circuit to open (or reopen), the original error
// is replaced with ErrStoreUnavailable so callers always see the canonical
// sentinel for "database down".
func (cb *CircuitBreakerStore) postCheck(err error) error {
	if !isStoreError(err) {
		cb.onSuccess()
		return err
	}
	cb.onFailure()
	if !cb.IsHealthy() {
		return ErrStoreUnavailable
	}
	return err
}

// onSuccess resets failures and transitions half-open → closed.
func (cb *CircuitBreakerStore) onSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == stateHalfOpen {
		cb.probeInFlight.Store(false)
		cb.transition(stateClosed)
	}
	cb.failures = 0
}

// onFailure increments the failure counter and transitions to open if the
// threshold is reached.
func (cb *CircuitBreakerStore) onFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()

	switch cb.state {
	case stateHalfOpen:
		cb.probeInFlight.Store(false)
		cb.transition(stateOpen)
	case stateClosed:
		if cb.failures >= cb.failThreshold {
			cb.transition(stateOpen)
		}
	}
}

// transition changes the circuit state and emits metrics + structured logs.
// Caller must hold cb.mu.
func (cb *CircuitBreakerStore) transition(to circuitState) {
	from := cb.state
	cb.state = to
	telemetry.CircuitBreakerState.Set(float64(to))
	telemetry.CircuitBreakerTransitionsTotal.WithLabelValues(from.String(), to.String()).Inc()

	switch {
	case to == stateOpen && from == stateClosed:
		cb.openedAt = time.Now()
		slog.Warn("Circuit breaker opened: failure threshold reached",
			"from", from.String(),
			"to", to.String(),
			"failures", cb.failures,
			"threshold", cb.failThreshold)

	case to == stateOpen && from == stateHalfOpen:
		slog.Warn("Circuit breaker reopened: probe failed",
			"from", from.String(),
			"to", to.String(),
			"failures", cb.failures)

	case to == stateHalfOpen:
		slog.Info("Circuit breaker half-open: probing database",
			"from", from.String(),
			"to", to.String(),
			"open_duration", time.Since(cb.openedAt).Round(time.Millisecond).String())

	case to == stateClosed:
		slog.Info("Circuit breaker closed: database recovered",
			"from", from.String(),
			"to", to.String(),
			"degraded_duration", time.Since(cb.openedAt).Round(time.Millisecond).String())
	}
}

// isStoreError returns true for genuine database failures. Application-level
// outcomes (missing record, fingerprint conflict) do not trip the breaker.
func isStoreError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrFingerprintMismatch) {
		return false
	}
	return true
}

// -------------------------------------------------------------------------
// FORWARDING HELPERS
// -------------------------------------------------------------------------

// cbCall wraps a store call that returns (T, error) with circuit breaker logic.
func cbCall[T any](cb *CircuitBreakerStore, fn func() (T, error)) (T, error) {
	var zero T
	if err := cb.preCheck(); err != nil {
		return zero, err
	}
	result, err := fn()
	return result, cb.postCheck(err)
}

// cbCallNoResult wraps a store call that returns only error with circuit breaker logic.
func cbCallNoResult(cb *CircuitBreakerStore, fn func() error) error {
	if err := cb.preCheck(); err != nil {
		return err
	}
	return cb.postCheck(fn())
}

// -------------------------------------------------------------------------
// FORWARDING METHODS
// -------------------------------------------------------------------------

// GetHashData delegates to the real store with circuit breaker protection.
func (cb *CircuitBreakerStore) GetHashData(ctx context.Context, containerIndex int, hash string) (HashData, error) {
	return cbCall(cb, func() (HashData, error) { return cb.real.GetHashData(ctx, containerIndex, hash) })
}

// PutHashData delegates to the real store with circuit breaker protection.
func (cb *CircuitBreakerStore) PutHashData(ctx context.Context, containerIndex int, hash string, data HashData) error {
	return cbCallNoResult(cb, func() error { return cb.real.PutHashData(ctx, containerIndex, hash, data) })
}

// DeleteHashData delegates to the real store with circuit breaker protection.
func (cb *CircuitBreakerStore) DeleteHashData(ctx context.Context, containerIndex int, hash string) error {
	return cbCallNoResult(cb, func() error { return cb.real.DeleteHashData(ctx, containerIndex, hash) })
}

// ListContainers delegates to the real store with circuit breaker protection.
func (cb *CircuitBreakerStore) ListContainers(ctx context.Context, account, marker string, limit int, enabledOnly *bool) ([]ContainerListing, error) {
	return cbCall(cb, func() ([]ContainerListing, error) {
		return cb.real.ListContainers(ctx, account, marker, limit, enabledOnly)
	})
}

// Prep delegates to the real store with circuit breaker protection.
func (cb *CircuitBreakerStore) Prep(ctx context.Context, containerCount int, suffixDigest string) error {
	return cbCallNoResult(cb, func() error { return cb.real.Prep(ctx, containerCount, suffixDigest) })
}

// VerifyFingerprint delegates to the real store with circuit breaker protection.
func (cb *CircuitBreakerStore) VerifyFingerprint(ctx context.Context, containerCount int, suffixDigest string) error {
	return cbCallNoResult(cb, func() error { return cb.real.VerifyFingerprint(ctx, containerCount, suffixDigest) })
}

// Close delegates to the real store.
func (cb *CircuitBreakerStore) Close() {
	cb.real.Close()
}
