// Package db provides PostgreSQL-backed repository implementations for the
// Blueprint platform. All repositories accept a DBTX interface that is
// satisfied by both *pgxpool.Pool (for normal queries) and pgx.Tx (for
// transactional execution), enabling clean transaction support.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
// Repositories accept this so the same code works inside or outside a
// transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PoolConfig carries connection pool tuning. Zero values fall back to
// pgxpool defaults.
type PoolConfig struct {
	MaxConns          int
	MinConns          int
	MaxConnLifetime   time.Duration
	AcquireTimeout    time.Duration
	HealthCheckPeriod time.Duration
}

// NewPool creates a connection pool, applies tuning, and verifies
// connectivity before returning it.
func NewPool(ctx context.Context, databaseURL string, tuning PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	if tuning.MaxConns > 0 {
		poolCfg.MaxConns = int32(tuning.MaxConns)
	}
	if tuning.MinConns > 0 {
		poolCfg.MinConns = int32(tuning.MinConns)
	}
	if tuning.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = tuning.MaxConnLifetime
	}
	if tuning.HealthCheckPeriod > 0 {
		poolCfg.HealthCheckPeriod = tuning.HealthCheckPeriod
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	pingCtx := ctx
	if tuning.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, tuning.AcquireTimeout)
		defer cancel()
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
