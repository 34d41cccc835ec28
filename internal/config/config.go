// -------------------------------------------------------------------------------
// Configuration - Origin Gateway Settings
//
// Author: Alex Freidah
//
// Configuration types and loader for the origin gateway. Supports environment
// variable expansion in YAML values using ${VAR} syntax. Validates required
// fields and the routing configuration (patterns, templates, TTL bounds) before
// returning, so the process refuses to start with invalid routing state.
// -------------------------------------------------------------------------------

package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/afreidah/origin-gateway/internal/origin"
)

// -------------------------------------------------------------------------
// CONFIGURATION TYPES
// -------------------------------------------------------------------------

// Config holds the complete service configuration.
type Config struct {
	Server    ServerConfig           `yaml:"server"`
	Origin    OriginConfig           `yaml:"origin"`
	TTL       origin.TTLPolicy       `yaml:"ttl"`
	Signing   SigningConfig          `yaml:"signing"`
	Patterns  []origin.PatternConfig `yaml:"incoming_url_patterns"`
	Formats   origin.FormatConfig    `yaml:"outgoing_url_formats"`
	Database  DatabaseConfig         `yaml:"database"`
	Cache     CacheConfig            `yaml:"cache"`
	Backend   BackendConfig          `yaml:"backend"`
	Telemetry TelemetryConfig        `yaml:"telemetry"`
	RateLimit RateLimitConfig        `yaml:"rate_limit"`
	Breaker   CircuitBreakerConfig   `yaml:"circuit_breaker"`
	Vault     VaultConfig            `yaml:"vault"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	ListenAddr     string        `yaml:"listen_addr"`
	MaxCDNFileSize int64         `yaml:"max_cdn_file_size"` // Max object size served to edges in bytes (default: 10GB)
	BackendTimeout time.Duration `yaml:"backend_timeout"`   // Per-operation timeout for backend calls (default: 30s)
	TLS            TLSConfig     `yaml:"tls"`
}

// TLSConfig holds optional TLS settings for the HTTP server. When CertFile
// and KeyFile are both set, the server listens with TLS.
type TLSConfig struct {
	CertFile   string `yaml:"cert_file"`   // Path to PEM-encoded certificate (or chain)
	KeyFile    string `yaml:"key_file"`    // Path to PEM-encoded private key
	MinVersion string `yaml:"min_version"` // Minimum TLS version: "1.2" (default) or "1.3"
}

// OriginConfig holds the origin routing surface. ContainerCount and
// HashPathSuffix are immutable post-deployment: every issued hash depends on
// them, and the metadata store refuses to start on drift.
type OriginConfig struct {
	DBHosts          []string `yaml:"db_hosts"`                  // origin_db_hosts: exact management hostnames
	CDNHostSuffixes  []string `yaml:"cdn_host_suffixes"`         // origin_cdn_host_suffixes
	Account          string   `yaml:"account"`                   // origin_account (default: ".origin")
	Prefix           string   `yaml:"prefix"`                    // origin_prefix (default: "/origin/")
	AdminKey         string   `yaml:"admin_key"`                 // origin_admin_key, plain secret
	AdminKeyHash     string   `yaml:"admin_key_hash"`            // bcrypt hash alternative to admin_key
	HashPathSuffix   string   `yaml:"hash_path_suffix"`          // secret, never change
	DNSShards        int      `yaml:"number_dns_shards"`         // default: 100
	ContainerCount   int      `yaml:"number_hash_id_containers"` // immutable post-deployment, default: 100
	DeleteEnabled    bool     `yaml:"delete_enabled"`
	LogAccessReqs    *bool    `yaml:"log_access_requests"` // default: true
	AllowedRemoteIPs []string `yaml:"allowed_remote_ips"`  // allowed_origin_remote_ips, optional
}

// SigningConfig holds optional HMAC URL signing settings.
type SigningConfig struct {
	Secret      string `yaml:"hmac_signed_url_secret"` // empty disables signing
	TokenLength int    `yaml:"hmac_token_length"`      // default: 30
}

// DatabaseConfig holds PostgreSQL connection settings for the metadata store.
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxConns        int32         `yaml:"max_conns"`         // Max pool connections (default: 10)
	MinConns        int32         `yaml:"min_conns"`         // Min idle connections (default: 2)
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"` // Max connection age (default: 5m)
}

// CacheConfig holds Redis settings for the hash-data cache. Leaving Addr
// empty disables the cache; every lookup then hits the metadata store.
type CacheConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	TTL         time.Duration `yaml:"ttl"`          // Positive-entry lifetime (default: 1h)
	NegativeTTL time.Duration `yaml:"negative_ttl"` // Miss-entry lifetime (default: 30s)
}

// BackendConfig holds the S3-compatible object store the gateway fronts.
type BackendConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sample_rate"`
	Insecure   bool    `yaml:"insecure"` // Use insecure connection (no TLS)
}

// RateLimitConfig holds per-IP rate limiting settings. Disabled by default.
type RateLimitConfig struct {
	Enabled        bool     `yaml:"enabled"`
	RequestsPerSec float64  `yaml:"requests_per_sec"` // Token refill rate (default: 100)
	Burst          int      `yaml:"burst"`            // Max burst size (default: 200)
	TrustedProxies []string `yaml:"trusted_proxies"`  // CIDRs whose X-Forwarded-For is trusted
}

// CircuitBreakerConfig holds settings for the metadata store circuit
// breaker.
type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"` // Consecutive failures before opening (default: 5)
	OpenTimeout      time.Duration `yaml:"open_timeout"`      // Wait before probing a downed store (default: 10s)
}

// VaultConfig holds optional Vault settings for resolving "vault:" secret
// references in admin_key, hash_path_suffix, the signing secret, and the
// database password.
type VaultConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`  // defaults to VAULT_ADDR
	Token   string `yaml:"token"` // defaults to VAULT_TOKEN
}

// -------------------------------------------------------------------------
// CONFIGURATION LOADER
// -------------------------------------------------------------------------

// LoadConfig reads and parses the configuration file with environment variable
// expansion. Returns an error if the file cannot be read, parsed, or validated.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// --- Expand environment variables ---
	expanded := os.Expand(string(data), os.Getenv)

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.SetDefaultsAndValidate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// -------------------------------------------------------------------------
// VALIDATION
// -------------------------------------------------------------------------

// SetDefaultsAndValidate applies default values for optional fields and checks
// that all required configuration values are present. Routing configuration
// (patterns, templates, TTL bounds) is validated by building a throwaway
// gateway, so anything that would be fatal at request time is caught here.
func (c *Config) SetDefaultsAndValidate() error {
	var errors []string

	// --- Server validation ---
	if c.Server.ListenAddr == "" {
		errors = append(errors, "server.listen_addr is required")
	}
	if c.Server.MaxCDNFileSize == 0 {
		c.Server.MaxCDNFileSize = 10 * 1024 * 1024 * 1024 // 10 GB
	}
	if c.Server.MaxCDNFileSize < 0 {
		errors = append(errors, "server.max_cdn_file_size must not be negative")
	}
	if c.Server.BackendTimeout == 0 {
		c.Server.BackendTimeout = 30 * time.Second
	}

	// --- TLS validation ---
	hasCert := c.Server.TLS.CertFile != ""
	hasKey := c.Server.TLS.KeyFile != ""
	if hasCert != hasKey {
		errors = append(errors, "server.tls requires both cert_file and key_file")
	}
	if hasCert && hasKey {
		if c.Server.TLS.MinVersion == "" {
			c.Server.TLS.MinVersion = "1.2"
		}
		if c.Server.TLS.MinVersion != "1.2" && c.Server.TLS.MinVersion != "1.3" {
			errors = append(errors, "server.tls.min_version must be \"1.2\" or \"1.3\"")
		}
	}

	// --- Origin defaults ---
	if c.Origin.Account == "" {
		c.Origin.Account = ".origin"
	}
	if c.Origin.Prefix == "" {
		c.Origin.Prefix = "/origin/"
	}
	if !strings.HasSuffix(c.Origin.Prefix, "/") {
		c.Origin.Prefix += "/"
	}
	if c.Origin.DNSShards == 0 {
		c.Origin.DNSShards = 100
	}
	if c.Origin.ContainerCount == 0 {
		c.Origin.ContainerCount = 100
	}
	if c.Origin.LogAccessReqs == nil {
		t := true
		c.Origin.LogAccessReqs = &t
	}

	// --- Origin validation ---
	if len(c.Origin.CDNHostSuffixes) == 0 {
		errors = append(errors, "origin.cdn_host_suffixes is required")
	}
	if c.Origin.HashPathSuffix == "" {
		errors = append(errors, "origin.hash_path_suffix is required")
	}
	if c.Origin.AdminKey != "" && c.Origin.AdminKeyHash != "" {
		errors = append(errors, "origin.admin_key and origin.admin_key_hash are mutually exclusive")
	}
	for _, ip := range c.Origin.AllowedRemoteIPs {
		if net.ParseIP(strings.TrimSpace(ip)) == nil {
			errors = append(errors, fmt.Sprintf("origin.allowed_remote_ips: invalid IP %q", ip))
		}
	}

	// --- TTL defaults ---
	if c.TTL == (origin.TTLPolicy{}) {
		c.TTL = origin.TTLPolicy{Default: 259200, Min: 900, Max: 3155692600}
	}

	// --- Signing defaults ---
	if c.Signing.TokenLength == 0 {
		c.Signing.TokenLength = origin.DefaultTokenLength
	}
	if c.Signing.TokenLength < 0 {
		errors = append(errors, "signing.hmac_token_length must be positive")
	}

	// --- Routing validation: build a throwaway gateway ---
	if c.Origin.HashPathSuffix != "" && len(c.Origin.CDNHostSuffixes) > 0 {
		if _, err := origin.NewGateway(c.GatewayOptions()); err != nil {
			errors = append(errors, err.Error())
		}
	}

	// --- Database validation ---
	if c.Database.Host == "" {
		errors = append(errors, "database.host is required")
	}
	if c.Database.Database == "" {
		errors = append(errors, "database.database is required")
	}
	if c.Database.User == "" {
		errors = append(errors, "database.user is required")
	}

	// --- Database defaults ---
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "require"
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 10
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = 2
	}
	if c.Database.MaxConnLifetime == 0 {
		c.Database.MaxConnLifetime = 5 * time.Minute
	}

	// --- Cache defaults ---
	if c.Cache.TTL == 0 {
		c.Cache.TTL = time.Hour
	}
	if c.Cache.NegativeTTL == 0 {
		c.Cache.NegativeTTL = 30 * time.Second
	}

	// --- Backend validation ---
	if c.Backend.Bucket == "" {
		errors = append(errors, "backend.bucket is required")
	}
	if c.Backend.AccessKeyID == "" {
		errors = append(errors, "backend.access_key_id is required")
	}
	if c.Backend.SecretAccessKey == "" {
		errors = append(errors, "backend.secret_access_key is required")
	}

	// --- Telemetry defaults ---
	if c.Telemetry.Metrics.Path == "" {
		c.Telemetry.Metrics.Path = "/metrics"
	}
	if c.Telemetry.Tracing.SampleRate == 0 && c.Telemetry.Tracing.Enabled {
		c.Telemetry.Tracing.SampleRate = 1.0
	}
	if c.Telemetry.Tracing.Enabled && c.Telemetry.Tracing.Endpoint == "" {
		errors = append(errors, "telemetry.tracing.endpoint is required when tracing is enabled")
	}

	// --- Rate limit defaults ---
	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSec == 0 {
			c.RateLimit.RequestsPerSec = 100
		}
		if c.RateLimit.Burst == 0 {
			c.RateLimit.Burst = 200
		}
		if c.RateLimit.RequestsPerSec <= 0 {
			errors = append(errors, "rate_limit.requests_per_sec must be positive")
		}
		if c.RateLimit.Burst <= 0 {
			errors = append(errors, "rate_limit.burst must be positive")
		}
	}

	// --- Circuit breaker defaults ---
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 5
	}
	if c.Breaker.OpenTimeout == 0 {
		c.Breaker.OpenTimeout = 10 * time.Second
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}
	return nil
}

// GatewayOptions maps the configuration onto the routing core's options.
func (c *Config) GatewayOptions() origin.Options {
	return origin.Options{
		DBHosts:         c.Origin.DBHosts,
		CDNHostSuffixes: c.Origin.CDNHostSuffixes,
		Patterns:        c.Patterns,
		Formats:         c.Formats,
		TTL:             c.TTL,
		HashPathSuffix:  c.Origin.HashPathSuffix,
		ContainerCount:  c.Origin.ContainerCount,
		ShardCount:      c.Origin.DNSShards,
		SigningSecret:   c.Signing.Secret,
		TokenLength:     c.Signing.TokenLength,
	}
}

// LogAccessRequests reports whether access logging is enabled.
func (c *Config) LogAccessRequests() bool {
	return c.Origin.LogAccessReqs == nil || *c.Origin.LogAccessReqs
}

// ConnectionString returns a PostgreSQL connection URI with properly escaped
// credentials, safe for passwords containing special characters.
func (c *DatabaseConfig) ConnectionString() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.Database,
		RawQuery: fmt.Sprintf("sslmode=%s", url.QueryEscape(c.SSLMode)),
	}
	return u.String()
}
