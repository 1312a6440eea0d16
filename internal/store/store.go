// Package store persists chunks and vectors for a repository, deduplicates
// writes by commit hash, and manages the reindex strategy, generalizing the
// teacher's single-table pgx/pgvector store into a two-table repo_index +
// code_chunks schema.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxPool is the subset of *pgxpool.Pool the Store uses; pgxmock's pool
// satisfies it as well.
type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Store provides methods to interact with the Postgres + pgvector backend.
type Store struct {
	pool pgxPool
}

// New creates a Store connected to the given database URL.
func New(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// NewFromPool wraps an existing pool (a *pgxpool.Pool or a test mock),
// letting callers share one pool across a Store and a JobStore without
// re-parsing the DSN.
func NewFromPool(pool pgxPool) *Store { return &Store{pool: pool} }

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Migrate applies schema setup. dim is the embedding vector width declared
// by the active embedding provider.
func (s *Store) Migrate(ctx context.Context, dim int) error {
	_, err := s.pool.Exec(ctx, schemaSQL(dim))
	return err
}

// GetRepositories returns every repository id with an index record.
func (s *Store) GetRepositories(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT repo_id FROM repo_index ORDER BY repo_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var repos []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}
