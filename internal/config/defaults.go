package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultDBHost          = "localhost"
	DefaultDBPort          = 5432
	DefaultDBUser          = "postgres"
	DefaultDBPassword      = "pass"
	DefaultDBName          = "nautilus"
	DefaultDBSSLMode       = "disable"
	DefaultMaxConns        = 10
	DefaultMinConns        = 1
	DefaultQueueCapacity   = 1000
	DefaultBatchSize       = 500
	DefaultWriteTimeout    = 5 * time.Second
	DefaultMaxRetries      = 3
	DefaultRetryBackoff    = 100 * time.Millisecond
	DefaultRetryBackoffMax = 5 * time.Second
	DefaultRedisTTL        = 5 * time.Minute
	DefaultHTTPAddr        = ":8080"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills zero values. FlushInterval is left alone: zero is a
// meaningful setting.
func (c *Config) applyDefaults() {
	applyDBDefaults(&c.Postgres)

	if c.Queue.Capacity == 0 {
		c.Queue.Capacity = DefaultQueueCapacity
	}
	if c.Queue.BatchSize == 0 {
		c.Queue.BatchSize = DefaultBatchSize
	}
	if c.Queue.WriteTimeout == 0 {
		c.Queue.WriteTimeout = DefaultWriteTimeout
	}
	if c.Queue.RetryBackoff == 0 {
		c.Queue.RetryBackoff = DefaultRetryBackoff
	}
	if c.Queue.RetryBackoffMax == 0 {
		c.Queue.RetryBackoffMax = DefaultRetryBackoffMax
	}

	if c.Redis.TTL == 0 {
		c.Redis.TTL = DefaultRedisTTL
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *PostgresConfig) {
	if db.Host == "" {
		db.Host = DefaultDBHost
	}
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.User == "" {
		db.User = DefaultDBUser
	}
	if db.Password == "" && db.PasswordParameter == "" {
		db.Password = DefaultDBPassword
	}
	if db.DBName == "" {
		db.DBName = DefaultDBName
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
