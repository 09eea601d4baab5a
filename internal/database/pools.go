package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atmx/cachedb/internal/config"
)

// Connect creates the read connection pool.
func Connect(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	connStr := BuildConnString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// DialWriter opens the single connection owned by the persistence worker.
func DialWriter(ctx context.Context, cfg config.PostgresConfig) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, BuildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect writer: %w", err)
	}
	return conn, nil
}
