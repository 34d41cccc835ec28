// -------------------------------------------------------------------------------
// Authentication - Admin Key Guard and Remote IP Allowlist
//
// Author: Alex Freidah
//
// Guard layer that runs before the routing core. Management-plane admin
// operations must present the origin admin user and key headers; the key is
// compared in constant time, or verified against a bcrypt hash when the
// deployment stores the key hashed. CDN-plane requests may additionally be
// restricted to an allowlist of edge node addresses.
// -------------------------------------------------------------------------------

package auth

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AdminUser is the only identity allowed to perform origin admin operations.
const AdminUser = ".origin_admin"

// Admin request headers.
const (
	HeaderAdminUser = "X-Origin-Admin-User"
	HeaderAdminKey  = "X-Origin-Admin-Key"
)

// -------------------------------------------------------------------------
// ADMIN GUARD
// -------------------------------------------------------------------------

// AdminGuard verifies origin admin credentials. Exactly one of key or
// keyHash is set; with neither, every check fails closed.
type AdminGuard struct {
	key     []byte
	keyHash []byte
}

// NewAdminGuard builds a guard from a plain admin key or a bcrypt hash of
// one. Both empty yields a guard that rejects everything.
func NewAdminGuard(key, keyHash string) *AdminGuard {
	g := &AdminGuard{}
	if key != "" {
		g.key = []byte(key)
	}
	if keyHash != "" {
		g.keyHash = []byte(keyHash)
	}
	return g
}

// Check reports whether the request presents valid origin admin credentials.
// The admin user header must name the origin admin identity and the key must
// match the configured secret.
func (g *AdminGuard) Check(r *http.Request) bool {
	if r.Header.Get(HeaderAdminUser) != AdminUser {
		return false
	}
	presented := r.Header.Get(HeaderAdminKey)
	if presented == "" {
		return false
	}
	if len(g.keyHash) > 0 {
		return bcrypt.CompareHashAndPassword(g.keyHash, []byte(presented)) == nil
	}
	if len(g.key) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(g.key, []byte(presented)) == 1
}

// -------------------------------------------------------------------------
// IP ALLOWLIST
// -------------------------------------------------------------------------

// IPAllowlist restricts CDN-plane requests to known edge node addresses. An
// empty allowlist permits everything.
type IPAllowlist struct {
	ips map[string]struct{}
}

// NewIPAllowlist parses the configured addresses. Invalid entries were
// rejected at config validation; anything unparseable here is skipped.
func NewIPAllowlist(addrs []string) *IPAllowlist {
	al := &IPAllowlist{}
	for _, a := range addrs {
		ip := net.ParseIP(strings.TrimSpace(a))
		if ip == nil {
			continue
		}
		if al.ips == nil {
			al.ips = make(map[string]struct{})
		}
		al.ips[ip.String()] = struct{}{}
	}
	return al
}

// Empty reports whether no addresses are configured.
func (al *IPAllowlist) Empty() bool { return len(al.ips) == 0 }

// Allowed reports whether remoteAddr (host or host:port) is permitted.
func (al *IPAllowlist) Allowed(remoteAddr string) bool {
	if al.Empty() {
		return true
	}
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	_, ok := al.ips[ip.String()]
	return ok
}
