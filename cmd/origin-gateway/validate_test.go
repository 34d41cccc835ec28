// -------------------------------------------------------------------------------
// Validate Subcommand Tests
//
// Author: Alex Freidah
// -------------------------------------------------------------------------------

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validYAML = `
server:
  listen_addr: ":8080"
origin:
  db_hosts:
    - origin-db.example.com
  cdn_host_suffixes:
    - origin-cdn.example.com
  hash_path_suffix: secret-suffix
incoming_url_patterns:
  - key: subdomain
    regex: 'https?://(?P<hash>[^.]+)\.origin-cdn\.example\.com/?(?P<object_name>.*)'
outgoing_url_formats:
  catch_all:
    X-CDN-URI: "http://%(hash)s.r%(hash_mod)d.origin-cdn.example.com"
database:
  host: localhost
  database: origin
  user: origin
backend:
  bucket: origin-objects
  access_key_id: test-key
  secret_access_key: test-secret
`

func TestValidateConfig_Valid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := validateConfig(path, &buf); err != nil {
		t.Fatalf("validateConfig: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"valid", "db_hosts:        1", "cdn_suffixes:    1", "url_patterns:    1", "hash_containers: 100"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestValidateConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	broken := strings.Replace(validYAML, "hash_path_suffix: secret-suffix", "", 1)
	if err := os.WriteFile(path, []byte(broken), 0o600); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	err := validateConfig(path, &buf)
	if err == nil {
		t.Fatal("invalid config validated")
	}
	if !strings.Contains(err.Error(), "hash_path_suffix") {
		t.Errorf("err = %v, want hash_path_suffix mention", err)
	}
}

func TestValidateConfig_MissingFile(t *testing.T) {
	var buf bytes.Buffer
	if err := validateConfig("/nonexistent/config.yaml", &buf); err == nil {
		t.Error("expected error for missing file")
	}
}
