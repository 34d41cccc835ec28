// -------------------------------------------------------------------------------
// Rate Limiter Tests
//
// Author: Alex Freidah
//
// Tests for per-client token bucket limiting, stale entry sweeping, trusted
// proxy client IP extraction, and the middleware response.
// -------------------------------------------------------------------------------

package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/afreidah/origin-gateway/internal/config"
)

func newTestLimiter(t *testing.T, cfg config.RateLimitConfig) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(cfg)
	t.Cleanup(rl.Close)
	return rl
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := newTestLimiter(t, config.RateLimitConfig{RequestsPerSec: 1, Burst: 3})

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d within burst rejected", i)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("request beyond burst allowed")
	}
	// Separate clients have separate buckets.
	if !rl.Allow("10.0.0.2") {
		t.Error("fresh client rejected")
	}
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := newTestLimiter(t, config.RateLimitConfig{RequestsPerSec: 1, Burst: 1})

	rl.Allow("10.0.0.1")
	rl.mu.Lock()
	rl.clients["10.0.0.1"].lastSeen = time.Now().Add(-time.Hour)
	rl.mu.Unlock()

	rl.sweep(10 * time.Minute)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.clients["10.0.0.1"]; ok {
		t.Error("stale entry survived sweep")
	}
}

func TestRateLimiter_UpdateLimits(t *testing.T) {
	rl := newTestLimiter(t, config.RateLimitConfig{RequestsPerSec: 1, Burst: 1})
	rl.Allow("10.0.0.1")
	if rl.Allow("10.0.0.1") {
		t.Fatal("second request allowed at burst 1")
	}

	rl.UpdateLimits(100, 50)

	// New clients get the new limits; the old client keeps its bucket.
	for i := 0; i < 10; i++ {
		if !rl.Allow("10.0.0.9") {
			t.Fatalf("request %d rejected under raised limits", i)
		}
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := newTestLimiter(t, config.RateLimitConfig{RequestsPerSec: 1, Burst: 1})
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusNoContent {
		t.Fatalf("first request status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("throttled request status = %d, want 429", w.Code)
	}
}

// -------------------------------------------------------------------------
// CLIENT IP EXTRACTION
// -------------------------------------------------------------------------

func TestExtractIP(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		remote  string
		xff     string
		want    string
	}{
		{
			name:   "no proxies configured",
			remote: "203.0.113.5:1234",
			xff:    "198.51.100.7",
			want:   "203.0.113.5",
		},
		{
			name:    "peer not trusted ignores xff",
			trusted: []string{"10.0.0.0/8"},
			remote:  "203.0.113.5:1234",
			xff:     "198.51.100.7",
			want:    "203.0.113.5",
		},
		{
			name:    "trusted peer takes rightmost untrusted",
			trusted: []string{"10.0.0.0/8"},
			remote:  "10.0.0.1:1234",
			xff:     "198.51.100.7, 10.0.0.2",
			want:    "198.51.100.7",
		},
		{
			name:    "client spoofed entries stay left",
			trusted: []string{"10.0.0.0/8"},
			remote:  "10.0.0.1:1234",
			xff:     "1.2.3.4, 198.51.100.7",
			want:    "198.51.100.7",
		},
		{
			name:    "all hops trusted falls back to leftmost",
			trusted: []string{"10.0.0.0/8"},
			remote:  "10.0.0.1:1234",
			xff:     "10.0.0.3, 10.0.0.2",
			want:    "10.0.0.3",
		},
		{
			name:    "trusted peer without xff",
			trusted: []string{"10.0.0.0/8"},
			remote:  "10.0.0.1:1234",
			want:    "10.0.0.1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := newTestLimiter(t, config.RateLimitConfig{
				RequestsPerSec: 1, Burst: 1, TrustedProxies: tt.trusted,
			})
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := rl.extractIP(r); got != tt.want {
				t.Errorf("extractIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseCIDRs_SkipsInvalid(t *testing.T) {
	nets := parseCIDRs([]string{"10.0.0.0/8", "garbage", "192.168.0.0/16"})
	if len(nets) != 2 {
		t.Errorf("parsed %d nets, want 2", len(nets))
	}
}
