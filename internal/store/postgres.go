package store

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

// PostgresStore holds the credential table behind the resolver. Raw keys are
// never stored; rows are addressed by the keyed lookup hash.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema() error {
	_, err := p.pool.Exec(context.Background(), schemaSQL)
	return err
}

// Ping is used by the health endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

// LookupKey returns the identity owning a non-revoked key hash, or
// found=false when no such credential exists.
func (p *PostgresStore) LookupKey(ctx context.Context, keyHash string) (string, string, bool, error) {
	var projectID, workspaceID string
	err := p.pool.QueryRow(ctx, `
		SELECT project_id, workspace_id
		FROM api_keys
		WHERE key_hash = $1
		  AND revoked_at IS NULL
	`, keyHash).Scan(&projectID, &workspaceID)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}
	return projectID, workspaceID, true, nil
}

// TouchKey updates the credential's last-used timestamp. Callers treat this
// as best-effort; it is an analytics signal, not a correctness dependency.
func (p *PostgresStore) TouchKey(ctx context.Context, keyHash string) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE api_keys
		SET last_used_at = now()
		WHERE key_hash = $1
	`, keyHash)
	return err
}
