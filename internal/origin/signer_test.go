// -------------------------------------------------------------------------------
// Signed URL Token Tests
//
// Author: Alex Freidah
//
// Tests for HMAC hostname tokens: determinism, truncation, the disabled
// zero-secret state, and token splicing into URL hosts.
// -------------------------------------------------------------------------------

package origin

import "testing"

func TestSigner_Token(t *testing.T) {
	s := NewSigner("signing-secret", 0)

	// Fixed vector: hex(HMAC-SHA1("signing-secret", "cdn.example.com"))
	// truncated to the default length.
	got := s.Token("cdn.example.com")
	want := "77efc536ce07276c63f754046230c9"
	if got != want {
		t.Errorf("Token = %q, want %q", got, want)
	}
	if len(got) != DefaultTokenLength {
		t.Errorf("token length = %d, want %d", len(got), DefaultTokenLength)
	}

	if s.Token("cdn.example.com") != got {
		t.Error("token not deterministic")
	}
	if s.Token("other.example.com") == got {
		t.Error("distinct hostnames produced the same token")
	}
}

func TestSigner_TruncationLength(t *testing.T) {
	s := NewSigner("signing-secret", 12)
	if got := s.Token("cdn.example.com"); len(got) != 12 {
		t.Errorf("token length = %d, want 12", len(got))
	}

	// A length beyond the digest size returns the full 40-char hex digest.
	long := NewSigner("signing-secret", 100)
	if got := long.Token("cdn.example.com"); len(got) != 40 {
		t.Errorf("token length = %d, want 40", len(got))
	}
}

func TestSigner_Enabled(t *testing.T) {
	if NewSigner("", 0).Enabled() {
		t.Error("empty-secret signer reports enabled")
	}
	if !NewSigner("s", 0).Enabled() {
		t.Error("signer with secret reports disabled")
	}
	var nilSigner *Signer
	if nilSigner.Enabled() {
		t.Error("nil signer reports enabled")
	}
}

func TestSigner_SignURL(t *testing.T) {
	s := NewSigner("signing-secret", 0)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"plain host",
			"http://cdn.example.com/v1/abc",
			"http://77efc536ce07276c63f754046230c9-cdn.example.com/v1/abc",
		},
		{
			"host with port keeps port",
			"http://cdn.example.com:8080/v1/abc",
			"http://77efc536ce07276c63f754046230c9-cdn.example.com:8080/v1/abc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.SignURL(tt.in)
			if err != nil {
				t.Fatalf("SignURL(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("SignURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSigner_SignURL_Invalid(t *testing.T) {
	s := NewSigner("signing-secret", 0)
	for _, raw := range []string{"", "not a url", "/relative/path"} {
		if _, err := s.SignURL(raw); err == nil {
			t.Errorf("SignURL(%q) succeeded, want error", raw)
		}
	}
}
