// -------------------------------------------------------------------------------
// Management Plane - Origin Database Handler
//
// Author: Alex Freidah
//
// Handles the origin database API on the management host plane: enabling a
// container for CDN delivery, inspecting or updating its settings, listing an
// account's CDN containers, and (when permitted) removing a container's
// record. Paths follow /v1/{account}[/{container}]. Successful writes and
// HEADs answer with the synthesized outgoing URL set as response headers so
// clients learn their edge URLs without a second round trip.
// -------------------------------------------------------------------------------

package server

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/afreidah/origin-gateway/internal/origin"
	"github.com/afreidah/origin-gateway/internal/storage"
)

// Headers carried on management requests and responses.
const (
	headerTTL          = "X-TTL"
	headerCDNEnabled   = "X-CDN-Enabled"
	headerLogRetention = "X-Log-Retention"
)

// handleManagement dispatches one origin database request.
func (s *Server) handleManagement(ctx context.Context, w http.ResponseWriter, r *http.Request) (int, error) {
	account, container, ok := splitDBPath(r.URL.Path)
	if !ok {
		writeError(w, http.StatusBadRequest, "expected /v1/{account}[/{container}]")
		return http.StatusBadRequest, nil
	}

	if container == "" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "account paths only support GET listings")
			return http.StatusMethodNotAllowed, nil
		}
		return s.handleListing(ctx, w, r, account)
	}

	switch r.Method {
	case http.MethodPut, http.MethodPost:
		return s.handleUpsert(ctx, w, r, account, container)
	case http.MethodHead, http.MethodGet:
		return s.handleInspect(ctx, w, account, container)
	case http.MethodDelete:
		return s.handleDelete(ctx, w, account, container)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not supported")
		return http.StatusMethodNotAllowed, nil
	}
}

// splitDBPath parses /v1/{account}[/{container}] into its parts.
func splitDBPath(path string) (account, container string, ok bool) {
	parts := strings.SplitN(strings.Trim(path, "/"), "/", 3)
	if len(parts) < 2 || len(parts) > 3 {
		return "", "", false
	}
	if v := parts[0]; v != "v1" && v != "v1.0" {
		return "", "", false
	}
	account = parts[1]
	if account == "" {
		return "", "", false
	}
	if len(parts) == 3 {
		container = parts[2]
	}
	return account, container, true
}

// -------------------------------------------------------------------------
// WRITE PATH
// -------------------------------------------------------------------------

// handleUpsert enables or updates a container's CDN record. PUT creates, POST
// requires the record to already exist.
func (s *Server) handleUpsert(ctx context.Context, w http.ResponseWriter, r *http.Request, account, container string) (int, error) {
	hash := s.Gateway.HashPath(account, container)
	index, err := s.Gateway.HashContainer(hash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "hash allocation failed")
		return http.StatusInternalServerError, err
	}

	existing, err := s.Lookup.Get(ctx, index, hash)
	found := err == nil
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusServiceUnavailable, "origin metadata unavailable")
		return http.StatusServiceUnavailable, fmt.Errorf("hash lookup %s: %w", hash, err)
	}
	if r.Method == http.MethodPost && !found {
		writeError(w, http.StatusNotFound, "container has not been CDN-enabled")
		return http.StatusNotFound, nil
	}

	policy := s.Gateway.TTL()
	data := storage.HashData{
		Account:     account,
		Container:   container,
		TTL:         policy.Default,
		CDNEnabled:  true,
		LogsEnabled: false,
	}
	if found {
		data = existing
		data.Account = account
		data.Container = container
	}

	// --- Apply request headers ---
	if v := r.Header.Get(headerTTL); v != "" {
		ttl, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid X-TTL")
			return http.StatusBadRequest, nil
		}
		if !policy.Contains(ttl) {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("invalid X-TTL, must be between %d and %d", policy.Min, policy.Max))
			return http.StatusBadRequest, nil
		}
		data.TTL = ttl
	}
	if v := r.Header.Get(headerCDNEnabled); v != "" {
		data.CDNEnabled = parseFlag(v)
	}
	if v := r.Header.Get(headerLogRetention); v != "" {
		data.LogsEnabled = parseFlag(v)
	}

	if err := s.Lookup.Put(ctx, index, hash, data); err != nil {
		writeError(w, http.StatusServiceUnavailable, "origin metadata unavailable")
		return http.StatusServiceUnavailable, fmt.Errorf("hash put %s: %w", hash, err)
	}

	if err := s.writeRecordHeaders(w, hash, data); err != nil {
		writeError(w, http.StatusInternalServerError, "URL synthesis failed")
		return http.StatusInternalServerError, err
	}
	status := http.StatusAccepted
	if r.Method == http.MethodPut {
		status = http.StatusCreated
	}
	w.WriteHeader(status)
	return status, nil
}

// handleInspect answers HEAD (and GET on a container path) with the record's
// settings and synthesized URLs, body-less.
func (s *Server) handleInspect(ctx context.Context, w http.ResponseWriter, account, container string) (int, error) {
	hash := s.Gateway.HashPath(account, container)
	index, err := s.Gateway.HashContainer(hash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "hash allocation failed")
		return http.StatusInternalServerError, err
	}

	data, err := s.Lookup.Get(ctx, index, hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "container has not been CDN-enabled")
			return http.StatusNotFound, nil
		}
		writeError(w, http.StatusServiceUnavailable, "origin metadata unavailable")
		return http.StatusServiceUnavailable, fmt.Errorf("hash lookup %s: %w", hash, err)
	}

	if err := s.writeRecordHeaders(w, hash, data); err != nil {
		writeError(w, http.StatusInternalServerError, "URL synthesis failed")
		return http.StatusInternalServerError, err
	}
	w.WriteHeader(http.StatusNoContent)
	return http.StatusNoContent, nil
}

// handleDelete removes a container's record entirely. Disabled unless the
// deployment opts in.
func (s *Server) handleDelete(ctx context.Context, w http.ResponseWriter, account, container string) (int, error) {
	if !s.DeleteEnabled {
		writeError(w, http.StatusMethodNotAllowed, "DELETE is not enabled")
		return http.StatusMethodNotAllowed, nil
	}

	hash := s.Gateway.HashPath(account, container)
	index, err := s.Gateway.HashContainer(hash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "hash allocation failed")
		return http.StatusInternalServerError, err
	}

	if err := s.Lookup.Delete(ctx, index, hash); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "container has not been CDN-enabled")
			return http.StatusNotFound, nil
		}
		writeError(w, http.StatusServiceUnavailable, "origin metadata unavailable")
		return http.StatusServiceUnavailable, fmt.Errorf("hash delete %s: %w", hash, err)
	}
	w.WriteHeader(http.StatusNoContent)
	return http.StatusNoContent, nil
}

// writeRecordHeaders stamps a record's settings and its HEAD-format URL set
// onto the response.
func (s *Server) writeRecordHeaders(w http.ResponseWriter, hash string, data storage.HashData) error {
	urls, err := s.Gateway.SynthesizeURLs(hash, http.MethodHead, origin.FormatNone)
	if err != nil {
		return fmt.Errorf("synthesize %s: %w", hash, err)
	}
	for key, u := range urls {
		w.Header().Set(key, u)
	}
	w.Header().Set(headerTTL, strconv.Itoa(data.TTL))
	w.Header().Set(headerCDNEnabled, flagString(data.CDNEnabled))
	w.Header().Set(headerLogRetention, flagString(data.LogsEnabled))
	return nil
}

func flagString(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// -------------------------------------------------------------------------
// ACCOUNT LISTING
// -------------------------------------------------------------------------

// containerEntry is one row of a rendered account listing.
type containerEntry struct {
	XMLName      xml.Name          `json:"-" xml:"container"`
	Name         string            `json:"name" xml:"name"`
	CDNEnabled   bool              `json:"cdn_enabled" xml:"cdn_enabled"`
	TTL          int               `json:"ttl" xml:"ttl"`
	LogRetention bool              `json:"log_retention" xml:"log_retention"`
	URLs         map[string]string `json:"urls" xml:"-"`
	XMLURLs      []xmlURL          `json:"-" xml:"url"`
}

type xmlURL struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

type accountListing struct {
	XMLName    xml.Name         `xml:"account"`
	Name       string           `xml:"name,attr"`
	Containers []containerEntry `xml:"container"`
}

// handleListing renders an account's CDN containers in the requested format.
func (s *Server) handleListing(ctx context.Context, w http.ResponseWriter, r *http.Request, account string) (int, error) {
	q := r.URL.Query()
	format := strings.ToLower(q.Get("format"))
	switch format {
	case "", "plain", "json", "xml":
	default:
		writeError(w, http.StatusBadRequest, "format must be plain, json, or xml")
		return http.StatusBadRequest, nil
	}

	var enabledOnly *bool
	if v := q.Get("enabled"); v != "" {
		b := parseFlag(v)
		enabledOnly = &b
	}

	rows, err := s.Lookup.Store.ListContainers(ctx, account, q.Get("marker"), listingLimit(q.Get("limit")), enabledOnly)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "origin metadata unavailable")
		return http.StatusServiceUnavailable, fmt.Errorf("list containers %s: %w", account, err)
	}

	if format == "" || format == "plain" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		for _, row := range rows {
			fmt.Fprintln(w, row.Container)
		}
		return http.StatusOK, nil
	}

	// --- Rich formats embed the per-container GET URL set ---
	tag := origin.FormatNone
	if format == "json" {
		tag = origin.FormatJSON
	} else {
		tag = origin.FormatXML
	}

	entries := make([]containerEntry, 0, len(rows))
	for _, row := range rows {
		hash := s.Gateway.HashPath(account, row.Container)
		urls, err := s.Gateway.SynthesizeURLs(hash, http.MethodGet, tag)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "URL synthesis failed")
			return http.StatusInternalServerError, fmt.Errorf("synthesize %s: %w", hash, err)
		}
		entry := containerEntry{
			Name:         row.Container,
			CDNEnabled:   row.Data.CDNEnabled,
			TTL:          row.Data.TTL,
			LogRetention: row.Data.LogsEnabled,
			URLs:         urls,
		}
		for key, u := range urls {
			entry.XMLURLs = append(entry.XMLURLs, xmlURL{Key: key, Value: u})
		}
		entries = append(entries, entry)
	}

	if format == "json" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			return http.StatusOK, fmt.Errorf("encode listing: %w", err)
		}
		return http.StatusOK, nil
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, xml.Header)
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(accountListing{Name: account, Containers: entries}); err != nil {
		return http.StatusOK, fmt.Errorf("encode listing: %w", err)
	}
	enc.Flush()
	fmt.Fprintln(w)
	return http.StatusOK, nil
}
