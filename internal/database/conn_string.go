package database

import (
	"fmt"
	"net/url"

	"github.com/atmx/cachedb/internal/config"
)

// BuildConnString builds a PostgreSQL connection URL from config.
func BuildConnString(cfg config.PostgresConfig) string {
	return buildConnString(cfg, cfg.DBName)
}

func buildConnString(cfg config.PostgresConfig, dbname string) string {
	// URL-encode password to handle special characters
	escapedPassword := url.QueryEscape(cfg.Password)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		escapedPassword,
		cfg.Host,
		cfg.Port,
		dbname,
		sslMode,
	)
}
