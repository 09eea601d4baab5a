package config

import "time"

// Config is the root configuration for a cachedb instance.
type Config struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Redis    RedisConfig    `mapstructure:"redis"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Log      LogConfig      `mapstructure:"log"`
}

// PostgresConfig holds the connection shared by the write session and the
// read pool.
type PostgresConfig struct {
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	PasswordParameter string `mapstructure:"password_parameter"` // SSM parameter name, overrides Password
	DBName            string `mapstructure:"dbname"`
	SSLMode           string `mapstructure:"sslmode"`
	MaxConns          int    `mapstructure:"max_conns"`
	MinConns          int    `mapstructure:"min_conns"`
	CreateDatabase    bool   `mapstructure:"create_database"`
	AutoMigrate       bool   `mapstructure:"auto_migrate"`
}

// QueueConfig holds write-behind queue and worker settings.
type QueueConfig struct {
	Capacity        int           `mapstructure:"capacity"`
	FlushInterval   time.Duration `mapstructure:"flush_interval"` // 0 flushes as soon as anything is buffered
	BatchSize       int           `mapstructure:"batch_size"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	RetryBackoffMax time.Duration `mapstructure:"retry_backoff_max"`
}

// RedisConfig enables the read-through cache when URL is set.
type RedisConfig struct {
	URL string        `mapstructure:"url"`
	TTL time.Duration `mapstructure:"ttl"`
}

// HTTPConfig holds the API listener settings.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level      string `mapstructure:"level"`       // "debug", "info", "warn", "error"
	Format     string `mapstructure:"format"`      // "json" or "text"
	OutputFile string `mapstructure:"output_file"` // rotated log file (optional)
}
