// -------------------------------------------------------------------------------
// Origin Errors - Typed Routing Failures
//
// Author: Alex Freidah
//
// Sentinel errors returned by the routing core. All are non-retriable at this
// layer; the HTTP boundary maps them to 4xx responses. Configuration problems
// are reported through ConfigError at load time and are fatal.
// -------------------------------------------------------------------------------

package origin

import (
	"errors"
	"fmt"
)

var (
	// ErrUnrouted means the request host matched neither the management host
	// set nor any CDN host suffix.
	ErrUnrouted = errors.New("host matches no configured plane")

	// ErrUnrecognizedURL means no configured incoming pattern matched the
	// request URL.
	ErrUnrecognizedURL = errors.New("no incoming URL pattern matched")

	// ErrInvalidHash means the extracted hash failed structural validation.
	ErrInvalidHash = errors.New("invalid hash")
)

// ConfigError reports an invalid routing configuration detected at load time.
// The process must refuse to start rather than run with invalid routing state.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("origin config: %s: %s", e.Field, e.Msg)
}

func configErrorf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Msg: fmt.Sprintf(format, args...)}
}
