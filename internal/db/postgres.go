// Package db provides database connection helpers.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The pipeline writes sequentially and the HTTP surface is low-traffic,
// so a small warm pool is enough; long embedding runs hold a connection
// for minutes, hence the generous idle time.
const (
	poolMaxConns     = 8
	poolMinConns     = 2
	poolMaxConnIdle  = 15 * time.Minute
	poolHealthPeriod = time.Minute
)

// NewPostgresPool creates and verifies a pgxpool connection pool tuned
// for the ingestion workload.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	cfg.MaxConns = poolMaxConns
	cfg.MinConns = poolMinConns
	cfg.MaxConnIdleTime = poolMaxConnIdle
	cfg.HealthCheckPeriod = poolHealthPeriod

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return pool, nil
}
