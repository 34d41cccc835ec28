// -------------------------------------------------------------------------------
// Audit - Request ID Tracing and Access Logging
//
// Author: Alex Freidah
//
// Context-based request ID propagation and structured logging for the origin
// gateway. Generates unique request IDs (honoring a client-provided
// X-Request-Id) and emits structured slog entries with an "audit" marker for
// log pipeline filtering. AccessLog reproduces the origin access log: client,
// method, host, request, status, and elapsed time per request.
// -------------------------------------------------------------------------------

package audit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/afreidah/origin-gateway/internal/telemetry"
)

// -------------------------------------------------------------------------
// CONTEXT KEYS
// -------------------------------------------------------------------------

type contextKey int

const (
	requestIDKey contextKey = iota
)

// -------------------------------------------------------------------------
// REQUEST ID
// -------------------------------------------------------------------------

// NewID generates a hex-encoded 16-byte random ID suitable for request
// correlation. Falls back to a timestamp-based ID if crypto/rand fails.
func NewID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// Fallback: should never happen with a healthy OS
		return hex.EncodeToString([]byte(time.Now().Format("20060102150405.000000000")))
	}
	return hex.EncodeToString(b)
}

// WithRequestID stores a request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID extracts the request ID from the context. Returns empty string
// if no request ID is set.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// -------------------------------------------------------------------------
// AUDIT LOGGING
// -------------------------------------------------------------------------

// Log emits a structured audit log entry at Info level. Automatically
// includes the request ID from context and increments the audit event
// counter.
func Log(ctx context.Context, event string, attrs ...slog.Attr) {
	telemetry.AuditEventsTotal.WithLabelValues(event).Inc()

	base := []slog.Attr{
		slog.Bool("audit", true),
		slog.String("event", event),
	}

	if id := RequestID(ctx); id != "" {
		base = append(base, slog.String("request_id", id))
	}

	base = append(base, attrs...)

	slog.LogAttrs(ctx, slog.LevelInfo, "audit", base...)
}

// -------------------------------------------------------------------------
// ACCESS LOGGING
// -------------------------------------------------------------------------

// ClientIP returns the best-known client address for a request: the
// X-Cluster-Client-Ip header if present, else the first X-Forwarded-For hop,
// else the direct remote address.
func ClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Cluster-Client-Ip"); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	}
	return r.RemoteAddr
}

// AccessLog records one handled request. Callers gate this on the
// log_access_requests setting.
func AccessLog(ctx context.Context, r *http.Request, status int, start time.Time) {
	request := r.URL.Path
	if r.URL.RawQuery != "" {
		request += "?" + r.URL.RawQuery
	}
	Log(ctx, "origin.Access",
		slog.String("client", ClientIP(r)),
		slog.String("remote", r.RemoteAddr),
		slog.String("method", r.Method),
		slog.String("host", r.Host),
		slog.String("request", request),
		slog.String("referer", headerOrDash(r, "Referer")),
		slog.String("user_agent", headerOrDash(r, "User-Agent")),
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
	)
}

func headerOrDash(r *http.Request, name string) string {
	if v := r.Header.Get(name); v != "" {
		return v
	}
	return "-"
}
