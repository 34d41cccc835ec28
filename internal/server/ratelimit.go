// -------------------------------------------------------------------------------
// Rate Limiter - Per-Client Token Bucket Throttling
//
// Author: Alex Freidah
//
// Per-client token bucket rate limiter with automatic cleanup of stale
// entries, wrapped around the whole origin listener. CDN edges fan out from a
// small set of addresses, so the burst must be sized for edge fill traffic;
// management clients are few and never notice the limiter. When
// trusted_proxies is configured, only requests arriving from a trusted proxy
// CIDR have their X-Forwarded-For header inspected, and the rightmost
// untrusted IP in the chain is taken as the client (the entry appended by
// the first trusted hop).
// -------------------------------------------------------------------------------

package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/afreidah/origin-gateway/internal/config"
	"github.com/afreidah/origin-gateway/internal/telemetry"
)

// RateLimiter provides per-client token-bucket rate limiting.
type RateLimiter struct {
	mu             sync.Mutex
	clients        map[string]*clientLimiter
	rate           rate.Limit
	burst          int
	trustedProxies []*net.IPNet
	stop           chan struct{}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter with the given configuration and
// starts its stale-entry sweeper.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		clients:        make(map[string]*clientLimiter),
		rate:           rate.Limit(cfg.RequestsPerSec),
		burst:          cfg.Burst,
		trustedProxies: parseCIDRs(cfg.TrustedProxies),
		stop:           make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(3 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.sweep(10 * time.Minute)
			case <-rl.stop:
				return
			}
		}
	}()

	return rl
}

// Close stops the background sweeper goroutine.
func (rl *RateLimiter) Close() {
	close(rl.stop)
}

// UpdateLimits changes the rate and burst for new clients. Existing per-IP
// limiters keep their old rates until they expire and are recreated.
func (rl *RateLimiter) UpdateLimits(requestsPerSec float64, burst int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.rate = rate.Limit(requestsPerSec)
	rl.burst = burst
}

// Allow checks whether a request from the given client IP may proceed.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	c, ok := rl.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[ip] = c
	}
	c.lastSeen = time.Now()
	rl.mu.Unlock()

	return c.limiter.Allow()
}

// sweep removes entries not seen within the given duration.
func (rl *RateLimiter) sweep(maxAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	for ip, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

// Middleware wraps an http.Handler with per-client rate limiting.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(rl.extractIP(r)) {
			telemetry.RateLimitRejectionsTotal.Inc()
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractIP resolves the client IP. When trusted_proxies is configured and
// the direct peer matches a trusted CIDR, the rightmost untrusted IP in the
// X-Forwarded-For chain is used. Otherwise RemoteAddr is authoritative.
func (rl *RateLimiter) extractIP(r *http.Request) string {
	peerIP := stripPort(r.RemoteAddr)

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" || len(rl.trustedProxies) == 0 || !ipInNets(peerIP, rl.trustedProxies) {
		return peerIP
	}

	parts := strings.Split(xff, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		ip := strings.TrimSpace(parts[i])
		if ip != "" && !ipInNets(ip, rl.trustedProxies) {
			return ip
		}
	}
	// Every hop in the chain is trusted; fall back to the leftmost entry.
	return strings.TrimSpace(parts[0])
}

// ipInNets checks whether the given IP string falls within any of the
// provided CIDR networks.
func ipInNets(ipStr string, nets []*net.IPNet) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// parseCIDRs parses a list of CIDR strings into net.IPNet values, skipping
// any that fail to parse.
func parseCIDRs(cidrs []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, s := range cidrs {
		_, n, err := net.ParseCIDR(s)
		if err != nil {
			continue
		}
		nets = append(nets, n)
	}
	return nets
}

// stripPort removes the port from a host:port address.
func stripPort(addr string) string {
	ip, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return ip
}
