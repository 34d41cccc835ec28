// -------------------------------------------------------------------------------
// HTTP Server - Origin Request Dispatch
//
// Author: Alex Freidah
//
// HTTP boundary for the origin gateway. Classifies each request by its Host
// header into the management plane (origin database operations) or the CDN
// plane (edge fetches), with admin operations selected by path prefix. Two
// request families exist: management calls that enable, inspect, list, and
// disable containers for CDN access, and GET/HEAD calls from CDN providers
// for publicly available content.
// -------------------------------------------------------------------------------

package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/afreidah/origin-gateway/internal/audit"
	"github.com/afreidah/origin-gateway/internal/auth"
	"github.com/afreidah/origin-gateway/internal/config"
	"github.com/afreidah/origin-gateway/internal/origin"
	"github.com/afreidah/origin-gateway/internal/storage"
	"github.com/afreidah/origin-gateway/internal/telemetry"
)

// -------------------------------------------------------------------------
// SERVER
// -------------------------------------------------------------------------

// Cache lifetimes for negative CDN responses, in seconds. Unrecognized URLs
// are cached long so edges stop re-requesting garbage; plain misses are
// cached short in case the container is being enabled right now.
const (
	cacheBadURL = 86400
	cache404    = 30
)

// Server handles HTTP requests and routes them through the gateway core.
type Server struct {
	Gateway *origin.Gateway
	Lookup  *storage.Lookup
	Backend storage.ObjectBackend
	Guard   *auth.AdminGuard
	Allow   *auth.IPAllowlist

	Account        string // account holding origin metadata containers
	Prefix         string // path prefix selecting admin operations
	DeleteEnabled  bool
	MaxCDNFileSize int64
	LogAccess      bool
}

// New builds a Server from the loaded configuration and its collaborators.
func New(cfg *config.Config, gw *origin.Gateway, lookup *storage.Lookup, backend storage.ObjectBackend) *Server {
	return &Server{
		Gateway:        gw,
		Lookup:         lookup,
		Backend:        backend,
		Guard:          auth.NewAdminGuard(cfg.Origin.AdminKey, cfg.Origin.AdminKeyHash),
		Allow:          auth.NewIPAllowlist(cfg.Origin.AllowedRemoteIPs),
		Account:        cfg.Origin.Account,
		Prefix:         cfg.Origin.Prefix,
		DeleteEnabled:  cfg.Origin.DeleteEnabled,
		MaxCDNFileSize: cfg.Server.MaxCDNFileSize,
		LogAccess:      cfg.LogAccessRequests(),
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	method := r.Method

	// --- Generate or adopt request ID ---
	requestID := r.Header.Get("X-Request-Id")
	if requestID == "" {
		requestID = audit.NewID()
	}
	ctx := audit.WithRequestID(r.Context(), requestID)
	w.Header().Set("X-Request-Id", requestID)

	// --- Classify plane by host; admin operations win on path prefix ---
	plane := s.Gateway.Classify(r.Host)
	planeLabel := plane.String()
	isAdmin := s.Prefix != "" && strings.HasPrefix(r.URL.Path, s.Prefix)
	if isAdmin {
		planeLabel = "admin"
	}

	// --- Track inflight requests ---
	telemetry.InflightRequests.WithLabelValues(planeLabel).Inc()
	defer telemetry.InflightRequests.WithLabelValues(planeLabel).Dec()

	// --- Remote IP allowlist runs before any parsing. Checked against the
	// direct peer, not forwarded headers, which are client-controlled. ---
	if !s.Allow.Allowed(r.RemoteAddr) {
		s.recordRequest(planeLabel, method, http.StatusForbidden, start)
		audit.Log(ctx, "origin.RemoteDenied",
			slog.String("method", method),
			slog.String("path", r.URL.Path),
			slog.String("remote", r.RemoteAddr),
			slog.Int("status", http.StatusForbidden),
			slog.Duration("duration", time.Since(start)),
		)
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	// --- Start tracing span ---
	ctx, span := telemetry.StartSpan(ctx, fmt.Sprintf("HTTP %s", method),
		append(telemetry.RequestAttributes(method, r.URL.Path, r.Host, planeLabel, r.RemoteAddr),
			telemetry.AttrRequestID.String(requestID))...,
	)
	defer span.End()

	// --- Route by plane and track operation name ---
	var status int
	var operation string
	var err error

	switch {
	case isAdmin:
		operation = "Admin"
		status, err = s.handleAdmin(ctx, w, r)
	case plane == origin.PlaneManagement:
		operation = "OriginDB"
		status, err = s.handleManagement(ctx, w, r)
	case plane == origin.PlaneCDN:
		operation = "CDN"
		status, err = s.handleCDN(ctx, w, r)
	default:
		operation = "Unrouted"
		status = http.StatusNotFound
		writeError(w, http.StatusNotFound, "host matches no origin plane")
	}

	// --- Record metrics ---
	s.recordRequest(planeLabel, method, status, start)

	// --- Update span status ---
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
	span.SetAttributes(attribute.Int("http.status_code", status))

	// --- Access log ---
	if s.LogAccess {
		audit.AccessLog(ctx, r, status, start)
	}
	if err != nil {
		audit.Log(ctx, "origin."+operation+"Failure",
			slog.String("method", method),
			slog.String("path", r.URL.Path),
			slog.String("host", r.Host),
			slog.String("remote", r.RemoteAddr),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()),
		)
	}
}

// recordRequest updates Prometheus metrics for a completed request.
func (s *Server) recordRequest(plane, method string, status int, start time.Time) {
	telemetry.RequestsTotal.WithLabelValues(plane, method, strconv.Itoa(status)).Inc()
	telemetry.RequestDuration.WithLabelValues(plane, method).Observe(time.Since(start).Seconds())
}

// -------------------------------------------------------------------------
// RESPONSE HELPERS
// -------------------------------------------------------------------------

// writeError writes a plain-text error body with the given status.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if msg != "" {
		fmt.Fprintln(w, msg)
	}
}

// setCacheHeaders stamps edge cache-control headers for a response that may
// be held for ttl seconds. Edge providers parse these formats as-is.
func setCacheHeaders(w http.ResponseWriter, ttl int) {
	w.Header().Set("Expires", time.Now().UTC().Add(time.Duration(ttl)*time.Second).
		Format("Mon, 02 Jan 2006 15:04:05 GMT"))
	w.Header().Set("Cache-Control", fmt.Sprintf("max-age:%d, public", ttl))
}

// requestURL reconstructs the absolute URL the edge requested, which is what
// the incoming URL patterns match against.
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.Path
}

// parseFlag interprets the truth spellings deployments put in headers.
func parseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "t", "true", "on", "y", "yes":
		return true
	}
	return false
}
