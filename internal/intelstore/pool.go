// Package intelstore implements the C11 intelligence store named in
// spec.md §6's IntelligenceStore port: blacklist lookups for the safety
// gate and success-story archival, backed by Postgres with a best-effort
// local BoltDB mirror so ingest never loses data when the database is
// briefly unreachable.
package intelstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps pgxpool.Pool, grounded on the same thin wrapper
// VladislavFirsov-solana-token-lab/internal/storage/postgres/postgres.go
// uses for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse intelstore dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect intelstore postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping intelstore postgres: %w", err)
	}
	return &Pool{Pool: pool}, nil
}

func (p *Pool) Close() {
	p.Pool.Close()
}
