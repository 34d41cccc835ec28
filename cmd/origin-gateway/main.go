// -------------------------------------------------------------------------------
// Origin Gateway - CDN Origin Server
//
// Author: Alex Freidah
//
// Entry point for the origin gateway. Dispatches to subcommands: "serve"
// (default) starts the HTTP server, "prep" provisions the metadata store,
// "validate" checks a configuration file, "version" prints build info.
// -------------------------------------------------------------------------------

package main

import (
	"context"
	"crypto/tls"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/afreidah/origin-gateway/internal/config"
	"github.com/afreidah/origin-gateway/internal/lifecycle"
	"github.com/afreidah/origin-gateway/internal/origin"
	"github.com/afreidah/origin-gateway/internal/secrets"
	"github.com/afreidah/origin-gateway/internal/server"
	"github.com/afreidah/origin-gateway/internal/storage"
	"github.com/afreidah/origin-gateway/internal/telemetry"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "prep":
			os.Args = os.Args[1:]
			runPrep()
			return
		case "validate":
			os.Args = os.Args[1:]
			runValidate()
			return
		case "version":
			runVersion()
			return
		case "serve":
			os.Args = os.Args[1:]
		}
	}
	runServe()
}

// loadAndResolve loads the configuration and resolves any Vault secret
// references in it. Shared by serve and prep.
func loadAndResolve(ctx context.Context, path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := secrets.ResolveConfig(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// --- Initialize structured logger ---
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx := context.Background()

	// --- Load configuration and resolve secrets ---
	cfg, err := loadAndResolve(ctx, *configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// --- Initialize tracing ---
	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry.Tracing)
	if err != nil {
		slog.Error("Failed to initialize tracer", "error", err)
		os.Exit(1)
	}

	// --- Set build info metric ---
	telemetry.BuildInfo.WithLabelValues(telemetry.Version, runtime.Version()).Set(1)

	// --- Build the routing core ---
	gw, err := origin.NewGateway(cfg.GatewayOptions())
	if err != nil {
		slog.Error("Invalid origin configuration", "error", err)
		os.Exit(1)
	}

	// --- Initialize PostgreSQL metadata store ---
	store, err := storage.NewPostgresStore(ctx, &cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Database,
	)

	// --- Run database migrations ---
	if err := store.RunMigrations(ctx); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migrations applied")

	// --- Refuse to serve against a store prepped for another deployment ---
	if err := store.VerifyFingerprint(ctx, gw.ContainerCount(), gw.HashSuffixDigest()); err != nil {
		slog.Error("Deployment fingerprint check failed; container count or hash suffix changed since prep",
			"error", err)
		os.Exit(1)
	}

	// --- Initialize Redis hash-data cache (optional) ---
	cache, err := newHashCache(ctx, &cfg.Cache)
	if err != nil {
		slog.Error("Failed to connect to cache", "error", err)
		os.Exit(1)
	}
	if cache != nil {
		slog.Info("Connected to Redis", "addr", cfg.Cache.Addr)
	} else {
		slog.Info("Hash-data cache disabled; lookups hit the metadata store directly")
	}

	// --- Initialize object backend ---
	backend, err := storage.NewS3Backend(&cfg.Backend, cfg.Server.BackendTimeout)
	if err != nil {
		slog.Error("Failed to initialize object backend", "error", err)
		os.Exit(1)
	}
	slog.Info("Object backend initialized",
		"endpoint", cfg.Backend.Endpoint,
		"region", cfg.Backend.Region,
		"bucket", cfg.Backend.Bucket,
	)

	// --- Wrap store with circuit breaker for runtime ---
	cbStore := storage.NewCircuitBreakerStore(store, cfg.Breaker)

	// A nil *RedisCache must not land in the interface field, or the nil
	// checks downstream stop working.
	lookup := &storage.Lookup{Store: cbStore}
	if cache != nil {
		lookup.Cache = cache
	}

	// --- Create server ---
	srv := server.New(cfg, gw, lookup, backend)

	// --- Start background services with lifecycle manager ---
	health := newHealthService(store, cache)
	sm := lifecycle.NewManager()
	sm.Register("health-probe", health)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	bgDone := make(chan struct{})
	go func() {
		sm.Run(bgCtx)
		close(bgDone)
	}()

	// --- Setup HTTP mux ---
	mux := http.NewServeMux()

	// Metrics endpoint
	if cfg.Telemetry.Metrics.Enabled {
		mux.Handle(cfg.Telemetry.Metrics.Path, promhttp.Handler())
		slog.Info("Metrics endpoint enabled", "path", cfg.Telemetry.Metrics.Path)
	}

	// Health check endpoint — always 200 so the service stays in load
	// balancer rotation. Body reflects dependency state for monitoring.
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if health.Healthy() && cbStore.IsHealthy() {
			_, _ = w.Write([]byte("ok"))
		} else {
			_, _ = w.Write([]byte("degraded"))
		}
	})

	// Origin handler (all other paths), optionally rate-limited
	var rl *server.RateLimiter
	var originHandler http.Handler = srv
	if cfg.RateLimit.Enabled {
		rl = server.NewRateLimiter(cfg.RateLimit)
		originHandler = rl.Middleware(srv)
		slog.Info("Rate limiting enabled",
			"requests_per_sec", cfg.RateLimit.RequestsPerSec,
			"burst", cfg.RateLimit.Burst,
		)
	}
	mux.Handle("/", originHandler)

	httpServer := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// --- Configure TLS if cert and key are provided ---
	var certReloader *server.CertReloader
	if cfg.Server.TLS.CertFile != "" {
		certReloader, err = server.NewCertReloader(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		if err != nil {
			slog.Error("Failed to load TLS certificate", "error", err)
			os.Exit(1)
		}
		httpServer.TLSConfig = &tls.Config{
			GetCertificate: certReloader.GetCertificate,
			MinVersion:     parseTLSVersion(cfg.Server.TLS.MinVersion),
		}
	}

	// --- Handle SIGHUP for config reload ---
	hupChan := make(chan os.Signal, 1)
	signal.Notify(hupChan, syscall.SIGHUP)
	go func() {
		for range hupChan {
			slog.Info("SIGHUP received, reloading", "path", *configPath)

			newCfg, err := loadAndResolve(context.Background(), *configPath)
			if err != nil {
				slog.Error("Config reload failed, keeping current config", "error", err)
				continue
			}

			// Routing settings are load-time only; warn when they drift.
			if newCfg.Origin.ContainerCount != cfg.Origin.ContainerCount ||
				newCfg.Origin.HashPathSuffix != cfg.Origin.HashPathSuffix {
				slog.Warn("Routing settings changed on disk; restart required to apply")
			}

			// Reload TLS certificate from disk
			if certReloader != nil {
				if err := certReloader.Reload(); err != nil {
					slog.Error("Failed to reload TLS certificate", "error", err)
				}
			}

			// Reload rate limiter settings
			if rl != nil && newCfg.RateLimit.Enabled {
				rl.UpdateLimits(newCfg.RateLimit.RequestsPerSec, newCfg.RateLimit.Burst)
				slog.Info("Reloaded rate limits",
					"requests_per_sec", newCfg.RateLimit.RequestsPerSec,
					"burst", newCfg.RateLimit.Burst,
				)
			}

			slog.Info("Configuration reload complete")
		}
	}()

	// --- Handle graceful shutdown ---
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		slog.Info("Shutting down")

		// Stop SIGHUP handler so it can't race with shutdown
		signal.Stop(hupChan)
		close(hupChan)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Drain inflight HTTP requests first so edges get responses quickly
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}

		// Stop rate limiter cleanup goroutine
		if rl != nil {
			rl.Close()
		}

		// Stop background services and wait for them to finish
		bgCancel()
		<-bgDone
		sm.Stop(10 * time.Second)

		// Close cache and database connections
		if cache != nil {
			cache.Close()
		}
		store.Close()

		// Flush traces
		if err := shutdownTracer(shutdownCtx); err != nil {
			slog.Error("Tracer shutdown error", "error", err)
		}
	}()

	// --- Log startup info ---
	slog.Info("Origin gateway starting",
		"version", telemetry.Version,
		"listen_addr", cfg.Server.ListenAddr,
		"db_hosts", cfg.Origin.DBHosts,
		"cdn_host_suffixes", cfg.Origin.CDNHostSuffixes,
		"hash_containers", gw.ContainerCount(),
		"dns_shards", gw.ShardCount(),
		"delete_enabled", cfg.Origin.DeleteEnabled,
	)

	if cfg.Telemetry.Tracing.Enabled {
		slog.Info("Tracing enabled",
			"endpoint", cfg.Telemetry.Tracing.Endpoint,
			"sample_rate", cfg.Telemetry.Tracing.SampleRate,
			"insecure", cfg.Telemetry.Tracing.Insecure,
		)
	}

	if cfg.Server.TLS.CertFile != "" {
		slog.Info("TLS enabled",
			"cert_file", cfg.Server.TLS.CertFile,
			"min_version", cfg.Server.TLS.MinVersion,
		)
	}

	// --- Start server ---
	if httpServer.TLSConfig != nil {
		err = httpServer.ListenAndServeTLS("", "") // certs provided via GetCertificate
	} else {
		err = httpServer.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	// Wait for shutdown goroutine to finish cleanup
	<-shutdownDone

	slog.Info("Server stopped")
}

// parseTLSVersion maps a config string to a tls.VersionTLS constant.
func parseTLSVersion(v string) uint16 {
	switch v {
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}
