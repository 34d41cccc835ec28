// -------------------------------------------------------------------------------
// Prep Subcommand - Provision the Metadata Store
//
// Author: Alex Freidah
//
// One-time deployment provisioning: applies migrations, creates the hash
// container partitions, and records the deployment fingerprint (container
// count plus hash suffix digest). Safe to re-run with unchanged settings;
// refuses to run if the store was prepped for a different deployment. The
// same operation is reachable over HTTP via the admin .prep endpoint.
// -------------------------------------------------------------------------------

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/afreidah/origin-gateway/internal/origin"
	"github.com/afreidah/origin-gateway/internal/storage"
)

// runPrep parses flags and provisions the store, exiting with the
// appropriate status code.
func runPrep() {
	fs := flag.NewFlagSet("prep", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	_ = fs.Parse(os.Args[1:])

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx := context.Background()
	cfg, err := loadAndResolve(ctx, *configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	gw, err := origin.NewGateway(cfg.GatewayOptions())
	if err != nil {
		slog.Error("Invalid origin configuration", "error", err)
		os.Exit(1)
	}

	store, err := storage.NewPostgresStore(ctx, &cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.RunMigrations(ctx); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	if err := store.Prep(ctx, gw.ContainerCount(), gw.HashSuffixDigest()); err != nil {
		slog.Error("Prep failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("prepped %d hash containers\n", gw.ContainerCount())
}
