package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/atmx/cachedb/internal/config"
)

// CreateDatabase connects to the server's maintenance database and creates
// cfg.DBName if it doesn't exist.
func CreateDatabase(ctx context.Context, cfg config.PostgresConfig) error {
	db, err := sql.Open("postgres", buildConnString(cfg, "postgres"))
	if err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	defer db.Close()

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1);`
	if err := db.QueryRowContext(ctx, query, cfg.DBName).Scan(&exists); err != nil {
		return fmt.Errorf("check db exists failed: %w", err)
	}

	if exists {
		return nil
	}

	if _, err := db.ExecContext(ctx, "CREATE DATABASE "+quoteIdentifier(cfg.DBName)); err != nil {
		return fmt.Errorf("create db failed: %w", err)
	}

	return nil
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
