// -------------------------------------------------------------------------------
// Secrets - Vault Reference Resolution
//
// Author: Alex Freidah
//
// Optional HashiCorp Vault integration. Configuration values of the form
// "vault:secret/data/origin#field" are replaced at startup by the referenced
// Vault field, so neither the admin key, signing secret, hash path suffix,
// nor database password need to live in the config file. KV v2 responses
// (nested under "data") and flat secrets are both handled.
// -------------------------------------------------------------------------------

package secrets

import (
	"context"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"

	"github.com/afreidah/origin-gateway/internal/config"
)

// refPrefix marks a config value as a Vault reference.
const refPrefix = "vault:"

// Resolver reads secret references from Vault.
type Resolver struct {
	client *vault.Client
}

// NewResolver builds a Vault client. Addr and Token fall back to the
// standard VAULT_ADDR and VAULT_TOKEN environment variables.
func NewResolver(cfg config.VaultConfig) (*Resolver, error) {
	vcfg := vault.DefaultConfig()
	if cfg.Addr != "" {
		vcfg.Address = cfg.Addr
	}
	client, err := vault.NewClient(vcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	return &Resolver{client: client}, nil
}

// ResolveConfig replaces every Vault reference in the secret-bearing config
// fields. A no-op when Vault is disabled.
func ResolveConfig(ctx context.Context, cfg *config.Config) error {
	if !cfg.Vault.Enabled {
		return nil
	}
	r, err := NewResolver(cfg.Vault)
	if err != nil {
		return err
	}
	fields := []*string{
		&cfg.Origin.AdminKey,
		&cfg.Origin.AdminKeyHash,
		&cfg.Origin.HashPathSuffix,
		&cfg.Signing.Secret,
		&cfg.Database.Password,
		&cfg.Cache.Password,
		&cfg.Backend.SecretAccessKey,
	}
	for _, f := range fields {
		resolved, err := r.Resolve(ctx, *f)
		if err != nil {
			return err
		}
		*f = resolved
	}
	return nil
}

// Resolve returns the value behind a "vault:path#field" reference, or the
// input unchanged when it is not a reference.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {
	if !strings.HasPrefix(value, refPrefix) {
		return value, nil
	}
	ref := strings.TrimPrefix(value, refPrefix)
	path, field, ok := strings.Cut(ref, "#")
	if !ok || path == "" || field == "" {
		return "", fmt.Errorf("malformed vault reference %q, want vault:path#field", value)
	}

	secret, err := r.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to read vault path %q: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("vault path %q not found", path)
	}

	data := secret.Data
	// KV v2 nests the payload one level down.
	if nested, ok := data["data"].(map[string]any); ok {
		data = nested
	}
	v, ok := data[field].(string)
	if !ok {
		return "", fmt.Errorf("vault path %q has no string field %q", path, field)
	}
	return v, nil
}
