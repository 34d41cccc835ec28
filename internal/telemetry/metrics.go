// -------------------------------------------------------------------------------
// Metrics - Prometheus Instrumentation
//
// Author: Alex Freidah
//
// Prometheus metric definitions for the origin gateway. Tracks request counts
// and latencies per plane, CDN fetch outcomes, hash-data cache effectiveness,
// URL synthesis, and backend operations. All metrics are prefixed with
// 'origin_' for easy identification in dashboards and alerting rules.
// -------------------------------------------------------------------------------

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Version is the binary version, set at build time via -ldflags.
var Version = "dev"

// -------------------------------------------------------------------------
// METRIC DEFINITIONS
// -------------------------------------------------------------------------

var (
	// --- Request metrics ---

	// RequestsTotal counts all HTTP requests by plane, method, and status code.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "origin_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"plane", "method", "status_code"},
	)

	// RequestDuration tracks request latency distribution by plane and method.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "origin_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"plane", "method"},
	)

	// InflightRequests tracks currently processing requests per plane.
	InflightRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "origin_inflight_requests",
			Help: "Number of requests currently being processed",
		},
		[]string{"plane"},
	)

	// --- Routing metrics ---

	// URLParseTotal counts incoming CDN URL parse outcomes.
	URLParseTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "origin_url_parse_total",
			Help: "Incoming CDN URL parse attempts by outcome",
		},
		[]string{"outcome"}, // matched, unrecognized, invalid_hash
	)

	// SynthesizedURLsTotal counts outgoing URL set synthesis by format tag.
	SynthesizedURLsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "origin_synthesized_urls_total",
			Help: "Outgoing URL sets synthesized by format",
		},
		[]string{"format"},
	)

	// --- Cache metrics ---

	// CacheOpsTotal counts hash-data cache operations by outcome.
	CacheOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "origin_hashdata_cache_ops_total",
			Help: "Hash-data cache operations by outcome",
		},
		[]string{"op", "outcome"}, // get/set/delete x hit/miss/negative/error/ok
	)

	// --- Backend metrics ---

	// BackendRequestsTotal counts object backend operations by type and status.
	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "origin_backend_requests_total",
			Help: "Total number of object backend operations",
		},
		[]string{"operation", "status"},
	)

	// BackendDuration tracks backend operation latency.
	BackendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "origin_backend_duration_seconds",
			Help:    "Object backend operation latency in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"operation"},
	)

	// CircuitBreakerState tracks the metadata store circuit breaker state
	// (0=closed, 1=open, 2=half-open).
	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "origin_store_circuit_breaker_state",
			Help: "Metadata store circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
	)

	// CircuitBreakerTransitionsTotal counts breaker state transitions.
	CircuitBreakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "origin_store_circuit_breaker_transitions_total",
			Help: "Metadata store circuit breaker state transitions",
		},
		[]string{"from", "to"},
	)

	// --- Guard metrics ---

	// RateLimitRejectionsTotal counts requests rejected by the rate limiter.
	RateLimitRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "origin_ratelimit_rejections_total",
			Help: "Requests rejected by the per-IP rate limiter",
		},
	)

	// AuditEventsTotal counts structured audit events by type.
	AuditEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "origin_audit_events_total",
			Help: "Structured audit events emitted",
		},
		[]string{"event"},
	)

	// --- Info metric ---

	// BuildInfo exposes version information.
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "origin_build_info",
			Help: "Build information for the origin gateway",
		},
		[]string{"version", "go_version"},
	)
)
