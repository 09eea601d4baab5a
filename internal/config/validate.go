package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if err := c.Postgres.validate("postgres"); err != nil {
		return err
	}

	if c.Queue.Capacity < 1 {
		return errors.New("queue.capacity must be >= 1")
	}
	if c.Queue.FlushInterval < 0 {
		return errors.New("queue.flush_interval must be >= 0")
	}
	if c.Queue.BatchSize < 1 {
		return errors.New("queue.batch_size must be >= 1")
	}
	if c.Queue.WriteTimeout <= 0 {
		return errors.New("queue.write_timeout must be > 0")
	}
	if c.Queue.MaxRetries < 0 {
		return errors.New("queue.max_retries must be >= 0")
	}
	if c.Queue.RetryBackoffMax < c.Queue.RetryBackoff {
		return fmt.Errorf("queue.retry_backoff (%s) cannot exceed retry_backoff_max (%s)",
			c.Queue.RetryBackoff, c.Queue.RetryBackoffMax)
	}

	if c.Redis.TTL < 0 {
		return errors.New("redis.ttl must be >= 0")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}

	return nil
}

func (db *PostgresConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Port < 1 || db.Port > 65535 {
		return fmt.Errorf("%s.port must be between 1 and 65535, got %d", prefix, db.Port)
	}
	if db.DBName == "" {
		return fmt.Errorf("%s.dbname is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
