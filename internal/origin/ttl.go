// -------------------------------------------------------------------------------
// TTL Policy - Cache Lifetime Bounds
//
// Author: Alex Freidah
//
// Global cache-control policy: a default TTL plus the inclusive bounds that
// any object-specified TTL is clamped into. The ordering invariant
// min <= default <= max is validated once at load; at request time the policy
// only supplies values.
// -------------------------------------------------------------------------------

package origin

// TTLPolicy bounds cache lifetimes, in seconds.
type TTLPolicy struct {
	Default int `yaml:"default_ttl"`
	Min     int `yaml:"min_ttl"`
	Max     int `yaml:"max_ttl"`
}

// Validate checks the ordering invariant. Returns a ConfigError on
// non-negative or inverted bounds; fatal at startup.
func (p TTLPolicy) Validate() error {
	if p.Min < 0 || p.Default < 0 || p.Max < 0 {
		return configErrorf("ttl", "ttl values must be non-negative")
	}
	if p.Min > p.Default {
		return configErrorf("ttl", "min_ttl (%d) exceeds default_ttl (%d)", p.Min, p.Default)
	}
	if p.Default > p.Max {
		return configErrorf("ttl", "default_ttl (%d) exceeds max_ttl (%d)", p.Default, p.Max)
	}
	return nil
}

// Clamp forces an object-specified TTL into [Min, Max].
func (p TTLPolicy) Clamp(ttl int) int {
	if ttl < p.Min {
		return p.Min
	}
	if ttl > p.Max {
		return p.Max
	}
	return ttl
}

// Contains reports whether a TTL lies within [Min, Max]. Management requests
// reject out-of-range TTLs rather than silently clamping them.
func (p TTLPolicy) Contains(ttl int) bool {
	return ttl >= p.Min && ttl <= p.Max
}
