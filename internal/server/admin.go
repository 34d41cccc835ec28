// -------------------------------------------------------------------------------
// Admin Plane - Provisioning Handler
//
// Author: Alex Freidah
//
// Handles privileged origin operations selected by the configured path
// prefix. The only operation today is .prep, which provisions the metadata
// store's hash container partitions and records the deployment fingerprint.
// Every admin request must carry the admin identity and key headers; failures
// answer 403 without revealing which check failed.
// -------------------------------------------------------------------------------

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/afreidah/origin-gateway/internal/audit"
	"github.com/afreidah/origin-gateway/internal/storage"
)

// handleAdmin dispatches one admin-prefixed request.
func (s *Server) handleAdmin(ctx context.Context, w http.ResponseWriter, r *http.Request) (int, error) {
	if !s.Guard.Check(r) {
		audit.Log(ctx, "origin.AdminDenied",
			slog.String("path", r.URL.Path),
			slog.String("remote", r.RemoteAddr),
		)
		writeError(w, http.StatusForbidden, "forbidden")
		return http.StatusForbidden, nil
	}

	op := strings.TrimPrefix(r.URL.Path, s.Prefix)
	switch op {
	case ".prep":
		return s.handlePrep(ctx, w, r)
	default:
		writeError(w, http.StatusNotFound, "unknown admin operation")
		return http.StatusNotFound, nil
	}
}

// handlePrep provisions the metadata store for this deployment's container
// count and hash suffix. Safe to repeat; refuses to run against a store
// prepped with different settings.
func (s *Server) handlePrep(ctx context.Context, w http.ResponseWriter, r *http.Request) (int, error) {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, ".prep requires POST")
		return http.StatusMethodNotAllowed, nil
	}

	err := s.Lookup.Store.Prep(ctx, s.Gateway.ContainerCount(), s.Gateway.HashSuffixDigest())
	if err != nil {
		if errors.Is(err, storage.ErrFingerprintMismatch) {
			writeError(w, http.StatusConflict, "store was prepped with different deployment settings")
			return http.StatusConflict, nil
		}
		writeError(w, http.StatusServiceUnavailable, "origin metadata unavailable")
		return http.StatusServiceUnavailable, fmt.Errorf("prep: %w", err)
	}

	audit.Log(ctx, "origin.Prep",
		slog.Int("container_count", s.Gateway.ContainerCount()),
		slog.String("remote", r.RemoteAddr),
	)
	w.WriteHeader(http.StatusNoContent)
	return http.StatusNoContent, nil
}
