// -------------------------------------------------------------------------------
// PostgreSQL Metadata Store
//
// Author: Alex Freidah
//
// pgx-backed implementation of MetadataStore. Hash containers are a virtual
// partitioning: every record carries its container index, computed once by the
// routing core and never recomputed here. Schema management runs through goose
// migrations embedded in the binary. The deployment fingerprint row pins the
// container count and hash suffix digest so a misconfigured restart fails
// before serving traffic.
// -------------------------------------------------------------------------------

package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/afreidah/origin-gateway/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements MetadataStore on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to PostgreSQL with the configured pool limits and
// OpenTelemetry query tracing.
func NewPostgresStore(ctx context.Context, cfg *config.DatabaseConfig) (*PostgresStore, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	pcfg.MaxConns = cfg.MaxConns
	pcfg.MinConns = cfg.MinConns
	pcfg.MaxConnLifetime = cfg.MaxConnLifetime
	pcfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// RunMigrations applies pending goose migrations from the embedded filesystem.
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	db := stdlib.OpenDBFromPool(s.pool)
	defer func() { _ = db.Close() }()
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Ping checks database reachability.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// -------------------------------------------------------------------------
// HASH RECORDS
// -------------------------------------------------------------------------

// GetHashData fetches the record for a hash from its container partition.
func (s *PostgresStore) GetHashData(ctx context.Context, containerIndex int, hash string) (HashData, error) {
	var d HashData
	err := s.pool.QueryRow(ctx, `
		SELECT account, container, ttl, cdn_enabled, logs_enabled
		FROM hash_records
		WHERE container_index = $1 AND hash = $2`,
		containerIndex, hash,
	).Scan(&d.Account, &d.Container, &d.TTL, &d.CDNEnabled, &d.LogsEnabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return HashData{}, ErrNotFound
	}
	if err != nil {
		return HashData{}, fmt.Errorf("get hash record: %w", err)
	}
	return d, nil
}

// PutHashData upserts the record for a hash.
func (s *PostgresStore) PutHashData(ctx context.Context, containerIndex int, hash string, data HashData) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO hash_records
			(container_index, hash, account, container, ttl, cdn_enabled, logs_enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (hash) DO UPDATE SET
			ttl = EXCLUDED.ttl,
			cdn_enabled = EXCLUDED.cdn_enabled,
			logs_enabled = EXCLUDED.logs_enabled,
			updated_at = now()`,
		containerIndex, hash, data.Account, data.Container,
		data.TTL, data.CDNEnabled, data.LogsEnabled,
	)
	if err != nil {
		return fmt.Errorf("put hash record: %w", err)
	}
	return nil
}

// DeleteHashData removes the record for a hash.
func (s *PostgresStore) DeleteHashData(ctx context.Context, containerIndex int, hash string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM hash_records
		WHERE container_index = $1 AND hash = $2`,
		containerIndex, hash,
	)
	if err != nil {
		return fmt.Errorf("delete hash record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListContainers returns an account's container records ordered by container
// name, starting after marker.
func (s *PostgresStore) ListContainers(ctx context.Context, account, marker string, limit int, enabledOnly *bool) ([]ContainerListing, error) {
	query := `
		SELECT container, account, ttl, cdn_enabled, logs_enabled
		FROM hash_records
		WHERE account = $1 AND container > $2`
	args := []any{account, marker}
	if enabledOnly != nil {
		query += ` AND cdn_enabled = $3`
		args = append(args, *enabledOnly)
	}
	query += ` ORDER BY container`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	defer rows.Close()

	var listings []ContainerListing
	for rows.Next() {
		var l ContainerListing
		if err := rows.Scan(&l.Container, &l.Data.Account, &l.Data.TTL,
			&l.Data.CDNEnabled, &l.Data.LogsEnabled); err != nil {
			return nil, fmt.Errorf("scan listing row: %w", err)
		}
		l.Data.Container = l.Container
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	return listings, nil
}

// -------------------------------------------------------------------------
// DEPLOYMENT FINGERPRINT
// -------------------------------------------------------------------------

// Prep records the deployment fingerprint. Idempotent when the configuration
// has not drifted; a second prep with a different fingerprint fails.
func (s *PostgresStore) Prep(ctx context.Context, containerCount int, suffixDigest string) error {
	if err := s.VerifyFingerprint(ctx, containerCount, suffixDigest); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO deployment_fingerprint (id, container_count, suffix_digest)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO NOTHING`,
		containerCount, suffixDigest,
	)
	if err != nil {
		return fmt.Errorf("record deployment fingerprint: %w", err)
	}
	return nil
}

// VerifyFingerprint checks the stored fingerprint against the running
// configuration. A store that has never been prepped passes; the prep
// subcommand establishes the baseline.
func (s *PostgresStore) VerifyFingerprint(ctx context.Context, containerCount int, suffixDigest string) error {
	var storedCount int
	var storedDigest string
	err := s.pool.QueryRow(ctx, `
		SELECT container_count, suffix_digest
		FROM deployment_fingerprint
		WHERE id = 1`,
	).Scan(&storedCount, &storedDigest)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read deployment fingerprint: %w", err)
	}
	if storedCount != containerCount || storedDigest != suffixDigest {
		return fmt.Errorf("%w: stored container_count=%d, configured %d",
			ErrFingerprintMismatch, storedCount, containerCount)
	}
	return nil
}

var _ MetadataStore = (*PostgresStore)(nil)
