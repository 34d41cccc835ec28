// -------------------------------------------------------------------------------
// Account Router - Request Plane Classification
//
// Author: Alex Freidah
//
// Classifies an incoming Host header as management-plane (exact match against
// the origin DB host set) or CDN-plane (suffix match against the CDN host
// suffixes). Suffix matching enforces a label boundary so that a host like
// "evilorigin-cdn.example" cannot match the suffix "origin-cdn.example".
// -------------------------------------------------------------------------------

package origin

import (
	"net"
	"strings"
)

// Plane identifies which request plane a host belongs to.
type Plane int

const (
	// PlaneUnrouted means the host matched neither plane. Not an error; the
	// caller decides (typically 404).
	PlaneUnrouted Plane = iota

	// PlaneManagement is the origin database plane: account registration,
	// container CDN enablement, listings.
	PlaneManagement

	// PlaneCDN is the edge-facing plane: hash-addressed object fetches.
	PlaneCDN
)

func (p Plane) String() string {
	switch p {
	case PlaneManagement:
		return "management"
	case PlaneCDN:
		return "cdn"
	default:
		return "unrouted"
	}
}

// AccountRouter classifies request hosts. Immutable after construction; safe
// for concurrent use.
type AccountRouter struct {
	dbHosts     map[string]struct{}
	cdnSuffixes []string
}

// NewAccountRouter builds a router from the configured management hosts and
// CDN host suffixes. Hostnames are compared case-insensitively with any port
// stripped.
func NewAccountRouter(dbHosts, cdnSuffixes []string) *AccountRouter {
	r := &AccountRouter{dbHosts: make(map[string]struct{}, len(dbHosts))}
	for _, h := range dbHosts {
		if h = normalizeHost(h); h != "" {
			r.dbHosts[h] = struct{}{}
		}
	}
	for _, s := range cdnSuffixes {
		if s = strings.TrimPrefix(normalizeHost(s), "."); s != "" {
			r.cdnSuffixes = append(r.cdnSuffixes, s)
		}
	}
	return r
}

// Classify returns the plane for a request host. Management matches take
// precedence over CDN suffix matches, mirroring dispatch order.
func (r *AccountRouter) Classify(host string) Plane {
	host = normalizeHost(host)
	if host == "" {
		return PlaneUnrouted
	}
	if _, ok := r.dbHosts[host]; ok {
		return PlaneManagement
	}
	for _, suffix := range r.cdnSuffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return PlaneCDN
		}
	}
	return PlaneUnrouted
}

// normalizeHost lowercases a hostname and strips any port.
func normalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(host)
}
