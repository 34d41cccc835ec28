// -------------------------------------------------------------------------------
// URL Format Synthesizer Tests
//
// Author: Alex Freidah
//
// Tests for outgoing URL synthesis: placeholder rendering, layered set
// resolution (catch-all, method, method+format), trailing-slash trimming, and
// compile-time rejection of unknown placeholders.
// -------------------------------------------------------------------------------

package origin

import (
	"errors"
	"strings"
	"testing"
)

const testHash = "d41d8cd98f00b204e9800998ecf8427e" // hash_mod 126

func newTestSynthesizer(t *testing.T, cfg FormatConfig, signer *Signer) *Synthesizer {
	t.Helper()
	s, err := NewSynthesizer(cfg, signer)
	if err != nil {
		t.Fatalf("NewSynthesizer: %v", err)
	}
	return s
}

// -------------------------------------------------------------------------
// COMPILATION
// -------------------------------------------------------------------------

func TestNewSynthesizer_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  FormatConfig
	}{
		{"empty catch_all", FormatConfig{}},
		{"unknown placeholder", FormatConfig{
			CatchAll: map[string]string{"X-CDN-URI": "http://cdn/%(bogus)s"},
		}},
		{"wrong verb for hash", FormatConfig{
			CatchAll: map[string]string{"X-CDN-URI": "http://cdn/%(hash)d"},
		}},
		{"malformed placeholder", FormatConfig{
			CatchAll: map[string]string{"X-CDN-URI": "http://cdn/%(hash"},
		}},
		{"bad template in method set", FormatConfig{
			CatchAll: map[string]string{"X-CDN-URI": "http://cdn/%(hash)s"},
			Head:     map[string]string{"X-CDN-URI": "http://cdn/%(nope)s"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSynthesizer(tt.cfg, NewSigner("", 0))
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("NewSynthesizer err = %v, want ConfigError", err)
			}
		})
	}
}

// -------------------------------------------------------------------------
// RENDERING
// -------------------------------------------------------------------------

func TestSynthesize_Placeholders(t *testing.T) {
	s := newTestSynthesizer(t, FormatConfig{
		CatchAll: map[string]string{
			"X-CDN-URI":     "http://%(hash)s.r%(hash_mod)d.origin-cdn.example.com",
			"X-CDN-SSL-URI": "https://%(hash)s.ssl.origin-cdn.example.com",
			"X-Static":      "http://static.origin-cdn.example.com",
		},
	}, nil)

	urls, err := s.Synthesize(testHash, "GET", FormatNone)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"X-CDN-URI":     "http://" + testHash + ".r126.origin-cdn.example.com",
		"X-CDN-SSL-URI": "https://" + testHash + ".ssl.origin-cdn.example.com",
		"X-Static":      "http://static.origin-cdn.example.com",
	}
	for key, wantURL := range want {
		if urls[key] != wantURL {
			t.Errorf("urls[%q] = %q, want %q", key, urls[key], wantURL)
		}
	}
	if len(urls) != len(want) {
		t.Errorf("got %d URLs, want %d", len(urls), len(want))
	}
}

func TestSynthesize_TrimsTrailingSlash(t *testing.T) {
	s := newTestSynthesizer(t, FormatConfig{
		CatchAll: map[string]string{"X-CDN-URI": "http://%(hash)s.cdn.example.com/"},
	}, nil)
	urls, err := s.Synthesize(testHash, "GET", FormatNone)
	if err != nil {
		t.Fatal(err)
	}
	if got := urls["X-CDN-URI"]; strings.HasSuffix(got, "/") {
		t.Errorf("trailing slash not trimmed: %q", got)
	}
}

func TestSynthesize_LayeredResolution(t *testing.T) {
	cfg := FormatConfig{
		CatchAll: map[string]string{
			"X-CDN-URI": "http://all.cdn/%(hash)s",
			"X-Extra":   "http://extra.cdn/%(hash)s",
		},
		Head: map[string]string{
			"X-CDN-URI": "http://head.cdn/%(hash)s",
		},
		Get: map[string]string{
			"X-CDN-URI": "http://get.cdn/%(hash)s",
		},
		GetXML: map[string]string{
			"X-CDN-URI": "http://get-xml.cdn/%(hash)s",
		},
	}
	s := newTestSynthesizer(t, cfg, nil)

	tests := []struct {
		name   string
		method string
		tag    string
		want   string
	}{
		{"head overrides catch-all", "HEAD", FormatNone, "http://head.cdn/" + testHash},
		{"get overrides catch-all", "GET", FormatNone, "http://get.cdn/" + testHash},
		{"get_xml overrides get", "GET", FormatXML, "http://get-xml.cdn/" + testHash},
		{"no get_json set falls back to get", "GET", FormatJSON, "http://get.cdn/" + testHash},
		{"unknown method falls back to catch-all", "POST", FormatNone, "http://all.cdn/" + testHash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			urls, err := s.Synthesize(testHash, tt.method, tt.tag)
			if err != nil {
				t.Fatal(err)
			}
			if urls["X-CDN-URI"] != tt.want {
				t.Errorf("X-CDN-URI = %q, want %q", urls["X-CDN-URI"], tt.want)
			}
			// Keys the override sets never define always fall through.
			if urls["X-Extra"] != "http://extra.cdn/"+testHash {
				t.Errorf("X-Extra = %q, want catch-all value", urls["X-Extra"])
			}
		})
	}
}

func TestSynthesize_InvalidHash(t *testing.T) {
	s := newTestSynthesizer(t, FormatConfig{
		CatchAll: map[string]string{"X-CDN-URI": "http://cdn/%(hash)s"},
	}, nil)
	if _, err := s.Synthesize("short", "GET", FormatNone); !errors.Is(err, ErrInvalidHash) {
		t.Errorf("err = %v, want ErrInvalidHash", err)
	}
}

func TestSynthesize_Signed(t *testing.T) {
	signer := NewSigner("signing-secret", 0)
	s := newTestSynthesizer(t, FormatConfig{
		CatchAll: map[string]string{"X-CDN-URI": "http://cdn.example.com/%(hash)s"},
	}, signer)

	urls, err := s.Synthesize(testHash, "GET", FormatNone)
	if err != nil {
		t.Fatal(err)
	}
	got := urls["X-CDN-URI"]
	wantPrefix := "http://" + signer.Token("cdn.example.com") + "-cdn.example.com/"
	if !strings.HasPrefix(got, wantPrefix) {
		t.Errorf("signed URL = %q, want prefix %q", got, wantPrefix)
	}
}
