// -------------------------------------------------------------------------------
// Signed URL Tokens - HMAC Hostname Signing
//
// Author: Alex Freidah
//
// Derives a truncated HMAC-SHA1 token from the hostname of each outgoing URL
// and splices it into the host as a "token-" prefix. Truncation keeps the
// combined token-hash label within the 63-character DNS label limit; the
// default length of 30 leaves headroom for a 32-character hash plus hyphen.
// Tokens are pure functions of (secret, hostname) and are never stored.
// -------------------------------------------------------------------------------

package origin

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
)

// DefaultTokenLength is the default truncation length for signed URL tokens.
const DefaultTokenLength = 30

// Signer generates signed URL tokens. A Signer with no secret is a disabled
// no-op, not an error. Immutable after construction; safe for concurrent use.
type Signer struct {
	secret []byte
	length int
}

// NewSigner builds a Signer from the configured secret and truncation length.
// An empty secret disables signing. A non-positive length falls back to the
// default.
func NewSigner(secret string, length int) *Signer {
	if length <= 0 {
		length = DefaultTokenLength
	}
	s := &Signer{length: length}
	if secret != "" {
		s.secret = []byte(secret)
	}
	return s
}

// Enabled reports whether signing is configured. A nil Signer is disabled.
func (s *Signer) Enabled() bool { return s != nil && len(s.secret) > 0 }

// Token computes the signed token for a hostname: the first length characters
// of the hex HMAC-SHA1 digest of the hostname under the configured secret.
func (s *Signer) Token(hostname string) string {
	mac := hmac.New(sha1.New, s.secret)
	mac.Write([]byte(hostname))
	token := hex.EncodeToString(mac.Sum(nil))
	if len(token) > s.length {
		token = token[:s.length]
	}
	return token
}

// SignURL rewrites an outgoing URL so its hostname carries the signed token
// as a leading "token-" prefix. The token is computed from the hostname of
// the URL being built, not the incoming request.
func (s *Signer) SignURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("sign url %q: not a parseable absolute URL", raw)
	}
	host := s.Token(u.Hostname()) + "-" + u.Hostname()
	if port := u.Port(); port != "" {
		host += ":" + port
	}
	u.Host = host
	return u.String(), nil
}
