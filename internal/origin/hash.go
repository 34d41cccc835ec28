// -------------------------------------------------------------------------------
// Hash Routing - Shard and Container Selection
//
// Author: Alex Freidah
//
// Deterministic mappings from a content hash to its DNS shard value and its
// tracking container. These mappings are consumed by external infrastructure
// (DNS-level sharding, the metadata store), so they can never change once
// hashes are in production. Both are pure functions of the hash plus fixed
// deployment constants.
// -------------------------------------------------------------------------------

package origin

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// HashLength is the required length of a content hash: an MD5 digest in hex.
const HashLength = 32

// ValidateHash checks that h is a well-formed content hash and returns its
// normalized (lowercase) form. Returns ErrInvalidHash on wrong length or
// charset.
func ValidateHash(h string) (string, error) {
	if len(h) != HashLength {
		return "", fmt.Errorf("%w: length %d, want %d", ErrInvalidHash, len(h), HashLength)
	}
	h = strings.ToLower(h)
	for i := 0; i < len(h); i++ {
		c := h[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("%w: non-hex character %q", ErrInvalidHash, c)
		}
	}
	return h, nil
}

// StripToken removes a signed-URL token prefix from an incoming hash. Signed
// URLs arrive with the hash's leading label in the form "token-hash"; the
// token is everything before the first hyphen.
func StripToken(h string) string {
	if i := strings.IndexByte(h, '-'); i >= 0 {
		return h[i+1:]
	}
	return h
}

// HashMod returns the shard value for a hash: the decimal value of its last
// two hex characters, in [0, 255]. Deployments assign traffic to one of
// number_dns_shards backend replicas from this value; producing it is where
// the router's job ends.
func HashMod(h string) (int, error) {
	h, err := ValidateHash(h)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(h[HashLength-2:], 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return int(v), nil
}

// ContainerIndex returns the tracking container for a hash, in [0, n). It
// projects the first eight hex characters so the assignment is independent of
// HashMod, which uses the tail. The container count n is fixed at deployment
// time; changing it invalidates every previously issued assignment.
func ContainerIndex(h string, n int) (int, error) {
	if n <= 0 {
		return 0, configErrorf("number_hash_id_containers", "must be positive, got %d", n)
	}
	h, err := ValidateHash(h)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(h[:8], 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return int(v % uint64(n)), nil
}

// HashPath computes the content hash for an account/container pair, keyed by
// the deployment's secret suffix. The suffix can never change: every issued
// hash depends on it.
func HashPath(account, container, suffix string) string {
	sum := md5.Sum([]byte("/" + account + "/" + container + "/" + suffix))
	return hex.EncodeToString(sum[:])
}
