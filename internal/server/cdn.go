// -------------------------------------------------------------------------------
// CDN Plane - Edge Fetch Handler
//
// Author: Alex Freidah
//
// Serves GET and HEAD requests arriving from CDN edges on the CDN host plane.
// The request URL is matched against the configured incoming patterns to
// recover the container hash, the hash record is looked up through the
// read-through cache, and the object (or a container listing) is streamed
// from the object backend. Negative outcomes carry cache headers so edges
// stop retrying: unrecognized URLs for a day, plain misses for thirty
// seconds.
// -------------------------------------------------------------------------------

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/afreidah/origin-gateway/internal/audit"
	"github.com/afreidah/origin-gateway/internal/origin"
	"github.com/afreidah/origin-gateway/internal/storage"
	"github.com/afreidah/origin-gateway/internal/telemetry"
)

// handleCDN serves a single edge request.
func (s *Server) handleCDN(ctx context.Context, w http.ResponseWriter, r *http.Request) (int, error) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		setCacheHeaders(w, cacheBadURL)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed on CDN plane")
		return http.StatusMethodNotAllowed, nil
	}

	// --- Recover the container hash from the request URL ---
	route, err := s.Gateway.ParseIncoming(requestURL(r))
	if err != nil {
		switch {
		case errors.Is(err, origin.ErrInvalidHash):
			setCacheHeaders(w, cacheBadURL)
			writeError(w, http.StatusBadRequest, "invalid container hash")
			return http.StatusBadRequest, nil
		default:
			setCacheHeaders(w, cacheBadURL)
			writeError(w, http.StatusNotFound, "unrecognized URL")
			return http.StatusNotFound, nil
		}
	}

	ctx, span := telemetry.StartSpan(ctx, "cdn.Fetch",
		telemetry.RouteAttributes(route.Hash, route.HashMod, route.ContainerIndex, route.ObjectName)...)
	defer span.End()

	// --- Look up the hash record through the cache ---
	data, err := s.Lookup.Get(ctx, route.ContainerIndex, route.Hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			setCacheHeaders(w, cache404)
			writeError(w, http.StatusNotFound, "container not found")
			return http.StatusNotFound, nil
		}
		writeError(w, http.StatusServiceUnavailable, "origin metadata unavailable")
		return http.StatusServiceUnavailable, fmt.Errorf("hash lookup %s: %w", route.Hash, err)
	}
	if !data.CDNEnabled {
		setCacheHeaders(w, cache404)
		writeError(w, http.StatusNotFound, "container not CDN-enabled")
		return http.StatusNotFound, nil
	}

	// Edge TTLs honor the configured bounds even if the stored record
	// predates a policy change.
	ttl := s.Gateway.TTL().Clamp(data.TTL)

	// --- Container listing when no object name was captured ---
	if route.ObjectName == "" {
		return s.serveCDNListing(ctx, w, r, data, ttl)
	}

	return s.serveCDNObject(ctx, w, r, route, data, ttl)
}

// serveCDNObject streams one object from the backend to the edge.
func (s *Server) serveCDNObject(ctx context.Context, w http.ResponseWriter, r *http.Request, route origin.CDNRoute, data storage.HashData, ttl int) (int, error) {
	req := storage.FetchRequest{
		Account:         data.Account,
		Container:       data.Container,
		Object:          route.ObjectName,
		Head:            r.Method == http.MethodHead,
		IfModifiedSince: r.Header.Get("If-Modified-Since"),
		IfMatch:         r.Header.Get("If-Match"),
		Range:           r.Header.Get("Range"),
	}

	res, err := s.Backend.Fetch(ctx, req)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			setCacheHeaders(w, cache404)
			writeError(w, http.StatusNotFound, "object not found")
			return http.StatusNotFound, nil
		}
		writeError(w, http.StatusServiceUnavailable, "object backend unavailable")
		return http.StatusServiceUnavailable, fmt.Errorf("backend fetch %s/%s/%s: %w", data.Account, data.Container, route.ObjectName, err)
	}
	if res.Body != nil {
		defer res.Body.Close()
	}

	switch res.StatusCode {
	case http.StatusNotModified, http.StatusMovedPermanently, http.StatusRequestedRangeNotSatisfiable:
		// Conditional, redirect, and unsatisfiable-range outcomes from the
		// backend pass through under the record's cache lifetime.
		if res.ContentRange != "" {
			w.Header().Set("Content-Range", res.ContentRange)
		}
		setCacheHeaders(w, ttl)
		w.WriteHeader(res.StatusCode)
		return res.StatusCode, nil
	}

	// --- Refuse objects too large for edge delivery ---
	if s.MaxCDNFileSize > 0 && res.ContentLength > s.MaxCDNFileSize {
		setCacheHeaders(w, cache404)
		writeError(w, http.StatusBadRequest, "object exceeds maximum CDN file size")
		return http.StatusBadRequest, nil
	}

	// --- Propagate object headers ---
	if res.ContentType != "" {
		w.Header().Set("Content-Type", res.ContentType)
	}
	if res.ContentEncoding != "" {
		w.Header().Set("Content-Encoding", res.ContentEncoding)
	}
	if res.ContentDisposition != "" {
		w.Header().Set("Content-Disposition", res.ContentDisposition)
	}
	if res.ETag != "" {
		w.Header().Set("Etag", res.ETag)
	}
	if !res.LastModified.IsZero() {
		w.Header().Set("Last-Modified", res.LastModified.UTC().Format(http.TimeFormat))
	}
	if res.ContentRange != "" {
		w.Header().Set("Content-Range", res.ContentRange)
	}
	if res.ContentLength >= 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", res.ContentLength))
	}
	setCacheHeaders(w, ttl)

	w.WriteHeader(res.StatusCode)
	if r.Method == http.MethodHead || res.Body == nil {
		return res.StatusCode, nil
	}

	if _, err := io.Copy(w, res.Body); err != nil {
		// Headers are already on the wire; all we can do is note it.
		audit.Log(ctx, "origin.StreamAborted",
			slog.String("hash", route.Hash),
			slog.String("object", route.ObjectName),
			slog.String("error", err.Error()),
		)
	}
	return res.StatusCode, nil
}

// serveCDNListing answers a hash-only URL with the container's object names,
// one per line, mirroring what a direct container GET would return.
func (s *Server) serveCDNListing(ctx context.Context, w http.ResponseWriter, r *http.Request, data storage.HashData, ttl int) (int, error) {
	q := r.URL.Query()
	names, err := s.Backend.ListObjects(ctx, data.Account, data.Container, q.Get("marker"), listingLimit(q.Get("limit")))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "object backend unavailable")
		return http.StatusServiceUnavailable, fmt.Errorf("backend list %s/%s: %w", data.Account, data.Container, err)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	setCacheHeaders(w, ttl)
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead && len(names) > 0 {
		io.WriteString(w, strings.Join(names, "\n")+"\n")
	}
	return http.StatusOK, nil
}

// listingLimit parses a limit query parameter, defaulting and capping at the
// standard page size.
func listingLimit(v string) int {
	const maxListing = 10000
	if n, err := strconv.Atoi(v); err == nil && n > 0 && n < maxListing {
		return n
	}
	return maxListing
}
