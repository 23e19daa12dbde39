// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/github-stars-crawler/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RepoStoreConfig controls the Postgres connection pool used for
// repository rows.
type RepoStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type txPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// RepoStore upserts repository batches into Postgres. Each batch is one
// transaction; a failure rolls the whole batch back.
type RepoStore struct {
	pool   txPool
	table  string
	logger *zap.Logger
}

// NewRepoStore creates a Postgres-backed RepoStore using the provided config.
func NewRepoStore(ctx context.Context, cfg RepoStoreConfig, logger *zap.Logger) (*RepoStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "repositories"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RepoStore{pool: pool, table: table, logger: logger}, nil
}

// NewRepoStoreWithPool constructs a store from an existing pool (primarily
// for testing).
func NewRepoStoreWithPool(pool txPool, table string, logger *zap.Logger) (*RepoStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "repositories"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RepoStore{pool: pool, table: table, logger: logger}, nil
}

// Close releases the underlying pool resources.
func (s *RepoStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// SaveRepositories writes a batch of repositories in a single transaction
// using insert-or-update-on-conflict keyed by the repository ID. Existing
// rows get their owner, name, url, and stars overwritten and updated_at
// refreshed, so re-crawling the same repository is idempotent. The
// secondary unique constraint on (owner, name) can fail the whole batch
// when two distinct IDs collide on the pair; that surfaces as an ordinary
// batch failure.
func (s *RepoStore) SaveRepositories(ctx context.Context, repos []crawler.Repository) (int, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("repository store is not configured")
	}
	if len(repos) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, owner, name, url, stars)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
	owner = EXCLUDED.owner,
	name = EXCLUDED.name,
	url = EXCLUDED.url,
	stars = EXCLUDED.stars,
	updated_at = NOW()`, s.table)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin batch: %w", err)
	}
	for _, repo := range repos {
		if repo.ID == "" {
			s.rollback(ctx, tx)
			return 0, fmt.Errorf("repository id is required")
		}
		if _, err := tx.Exec(ctx, query, repo.ID, repo.Owner, repo.Name, repo.URL, repo.Stars); err != nil {
			s.rollback(ctx, tx)
			return 0, fmt.Errorf("upsert repository %s/%s: %w", repo.Owner, repo.Name, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}

	s.logger.Info("Saved repositories to the database", zap.Int("count", len(repos)))
	return len(repos), nil
}

// EnsureSchema creates the repositories table and its secondary unique
// index on (owner, name) if they do not exist.
func (s *RepoStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("repository store is not configured")
	}
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id VARCHAR(255) PRIMARY KEY,
	owner VARCHAR(255) NOT NULL,
	name VARCHAR(255) NOT NULL,
	url VARCHAR(2048) NOT NULL,
	stars INT NOT NULL,
	crawled_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_%[1]s_owner_name ON %[1]s (owner, name);`, s.table)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin schema setup: %w", err)
	}
	if _, err := tx.Exec(ctx, ddl); err != nil {
		s.rollback(ctx, tx)
		return fmt.Errorf("create schema: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit schema setup: %w", err)
	}
	return nil
}

func (s *RepoStore) rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
		s.logger.Warn("Failed to roll back batch", zap.Error(err))
	}
}
