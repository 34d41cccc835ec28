// -------------------------------------------------------------------------------
// Configuration Tests
//
// Author: Alex Freidah
//
// Tests for config loading, environment variable expansion, defaulting, and
// validation error collection.
// -------------------------------------------------------------------------------

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// -------------------------------------------------------------------------
// TEST HELPERS
// -------------------------------------------------------------------------

// minimalYAML is the smallest configuration that passes validation.
const minimalYAML = `
server:
  listen_addr: ":8080"
origin:
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

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func loadMinimal(t *testing.T, mutate func(string) string) *Config {
	t.Helper()
	content := minimalYAML
	if mutate != nil {
		content = mutate(content)
	}
	cfg, err := LoadConfig(writeConfig(t, content))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	return cfg
}

// -------------------------------------------------------------------------
// LOADING
// -------------------------------------------------------------------------

func TestLoadConfig_Minimal(t *testing.T) {
	cfg := loadMinimal(t, nil)

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if len(cfg.Origin.CDNHostSuffixes) != 1 {
		t.Errorf("CDNHostSuffixes = %v", cfg.Origin.CDNHostSuffixes)
	}
	if len(cfg.Patterns) != 1 || cfg.Patterns[0].Key != "subdomain" {
		t.Errorf("Patterns = %+v", cfg.Patterns)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not: valid")
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadConfig_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_ORIGIN_SUFFIX", "env-secret-suffix")
	cfg := loadMinimal(t, func(s string) string {
		return strings.Replace(s, "hash_path_suffix: secret-suffix",
			"hash_path_suffix: ${TEST_ORIGIN_SUFFIX}", 1)
	})
	if cfg.Origin.HashPathSuffix != "env-secret-suffix" {
		t.Errorf("HashPathSuffix = %q, want env-expanded value", cfg.Origin.HashPathSuffix)
	}
}

// -------------------------------------------------------------------------
// DEFAULTS
// -------------------------------------------------------------------------

func TestDefaults(t *testing.T) {
	cfg := loadMinimal(t, nil)

	if cfg.Origin.Account != ".origin" {
		t.Errorf("Account = %q, want .origin", cfg.Origin.Account)
	}
	if cfg.Origin.Prefix != "/origin/" {
		t.Errorf("Prefix = %q, want /origin/", cfg.Origin.Prefix)
	}
	if cfg.Origin.DNSShards != 100 {
		t.Errorf("DNSShards = %d, want 100", cfg.Origin.DNSShards)
	}
	if cfg.Origin.ContainerCount != 100 {
		t.Errorf("ContainerCount = %d, want 100", cfg.Origin.ContainerCount)
	}
	if !cfg.LogAccessRequests() {
		t.Error("LogAccessRequests default should be true")
	}
	if cfg.TTL.Default != 259200 || cfg.TTL.Min != 900 || cfg.TTL.Max != 3155692600 {
		t.Errorf("TTL = %+v", cfg.TTL)
	}
	if cfg.Server.MaxCDNFileSize != 10*1024*1024*1024 {
		t.Errorf("MaxCDNFileSize = %d", cfg.Server.MaxCDNFileSize)
	}
	if cfg.Server.BackendTimeout != 30*time.Second {
		t.Errorf("BackendTimeout = %v", cfg.Server.BackendTimeout)
	}
	if cfg.Database.Port != 5432 || cfg.Database.SSLMode != "require" {
		t.Errorf("Database defaults = %+v", cfg.Database)
	}
	if cfg.Cache.TTL != time.Hour || cfg.Cache.NegativeTTL != 30*time.Second {
		t.Errorf("Cache defaults = %+v", cfg.Cache)
	}
	if cfg.Signing.TokenLength != 30 {
		t.Errorf("TokenLength = %d, want 30", cfg.Signing.TokenLength)
	}
	if cfg.Breaker.FailureThreshold != 5 || cfg.Breaker.OpenTimeout != 10*time.Second {
		t.Errorf("Breaker defaults = %+v", cfg.Breaker)
	}
	if cfg.Telemetry.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q", cfg.Telemetry.Metrics.Path)
	}
}

func TestPrefix_TrailingSlashAdded(t *testing.T) {
	cfg := loadMinimal(t, func(s string) string {
		return strings.Replace(s, "origin:\n", "origin:\n  prefix: /admin\n", 1)
	})
	if cfg.Origin.Prefix != "/admin/" {
		t.Errorf("Prefix = %q, want /admin/", cfg.Origin.Prefix)
	}
}

func TestLogAccessRequests_ExplicitFalse(t *testing.T) {
	cfg := loadMinimal(t, func(s string) string {
		return strings.Replace(s, "origin:\n", "origin:\n  log_access_requests: false\n", 1)
	})
	if cfg.LogAccessRequests() {
		t.Error("LogAccessRequests = true, want false")
	}
}

// -------------------------------------------------------------------------
// VALIDATION
// -------------------------------------------------------------------------

func TestValidation_CollectsAllErrors(t *testing.T) {
	var cfg Config
	err := cfg.SetDefaultsAndValidate()
	if err == nil {
		t.Fatal("empty config validated")
	}
	msg := err.Error()
	for _, want := range []string{
		"server.listen_addr is required",
		"origin.cdn_host_suffixes is required",
		"origin.hash_path_suffix is required",
		"database.host is required",
		"backend.bucket is required",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error missing %q: %s", want, msg)
		}
	}
}

func TestValidation_AdminKeyMutualExclusion(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, strings.Replace(minimalYAML, "origin:\n",
		"origin:\n  admin_key: plain\n  admin_key_hash: \"$2a$10$x\"\n", 1)))
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("err = %v, want mutual exclusion error", err)
	}
}

func TestValidation_InvalidAllowedIP(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, strings.Replace(minimalYAML, "origin:\n",
		"origin:\n  allowed_remote_ips: [\"not-an-ip\"]\n", 1)))
	if err == nil || !strings.Contains(err.Error(), "allowed_remote_ips") {
		t.Errorf("err = %v, want allowed_remote_ips error", err)
	}
}

func TestValidation_TLSRequiresBothFiles(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, strings.Replace(minimalYAML,
		"  listen_addr: \":8080\"\n",
		"  listen_addr: \":8080\"\n  tls:\n    cert_file: /tmp/cert.pem\n", 1)))
	if err == nil || !strings.Contains(err.Error(), "cert_file and key_file") {
		t.Errorf("err = %v, want TLS pairing error", err)
	}
}

func TestValidation_BadRoutingConfig(t *testing.T) {
	// A pattern without a hash group is a routing error surfaced through
	// the throwaway-gateway build.
	_, err := LoadConfig(writeConfig(t, strings.Replace(minimalYAML,
		`regex: 'https?://(?P<hash>[^.]+)\.origin-cdn\.example\.com/?(?P<object_name>.*)'`,
		`regex: 'https?://nohash\.example\.com'`, 1)))
	if err == nil || !strings.Contains(err.Error(), "hash") {
		t.Errorf("err = %v, want pattern hash-group error", err)
	}
}

func TestValidation_TracingRequiresEndpoint(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, minimalYAML+"\ntelemetry:\n  tracing:\n    enabled: true\n"))
	if err == nil || !strings.Contains(err.Error(), "tracing.endpoint") {
		t.Errorf("err = %v, want tracing endpoint error", err)
	}
}

// -------------------------------------------------------------------------
// DERIVED VALUES
// -------------------------------------------------------------------------

func TestGatewayOptions(t *testing.T) {
	cfg := loadMinimal(t, nil)
	opts := cfg.GatewayOptions()

	if opts.HashPathSuffix != "secret-suffix" {
		t.Errorf("HashPathSuffix = %q", opts.HashPathSuffix)
	}
	if opts.ContainerCount != 100 || opts.ShardCount != 100 {
		t.Errorf("counts = %d/%d", opts.ContainerCount, opts.ShardCount)
	}
	if len(opts.Patterns) != 1 {
		t.Errorf("Patterns = %+v", opts.Patterns)
	}
}

func TestConnectionString_EscapesCredentials(t *testing.T) {
	db := DatabaseConfig{
		Host:     "db.example.com",
		Port:     5432,
		Database: "origin",
		User:     "svc",
		Password: "p@ss:w/rd",
		SSLMode:  "require",
	}
	got := db.ConnectionString()
	if !strings.HasPrefix(got, "postgres://svc:") {
		t.Errorf("ConnectionString = %q", got)
	}
	if strings.Contains(got, "p@ss:w/rd") {
		t.Errorf("password not escaped: %q", got)
	}
	if !strings.Contains(got, "sslmode=require") {
		t.Errorf("missing sslmode: %q", got)
	}
}
