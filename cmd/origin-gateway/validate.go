// -------------------------------------------------------------------------------
// Validate Subcommand - Check Configuration File
//
// Author: Alex Freidah
//
// Loads and validates a configuration file without starting the server. Exits
// 0 on success with a brief summary, or exits 1 with validation errors.
// -------------------------------------------------------------------------------

package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/afreidah/origin-gateway/internal/config"
)

// runValidate parses flags and delegates to validateConfig, exiting with the
// appropriate status code.
func runValidate() {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	_ = fs.Parse(os.Args[1:])

	if err := validateConfig(*configPath, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// validateConfig loads and validates a configuration file, writing a summary
// to the given writer on success or returning the validation error.
func validateConfig(path string, w io.Writer) error {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "config %s: valid\n", path)
	fmt.Fprintf(w, "  db_hosts:        %d\n", len(cfg.Origin.DBHosts))
	fmt.Fprintf(w, "  cdn_suffixes:    %d\n", len(cfg.Origin.CDNHostSuffixes))
	fmt.Fprintf(w, "  url_patterns:    %d\n", len(cfg.Patterns))
	fmt.Fprintf(w, "  hash_containers: %d\n", cfg.Origin.ContainerCount)
	return nil
}
