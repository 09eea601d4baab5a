package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CACHEDB"

// Load reads configuration from path (optional) and overrides it with
// CACHEDB_* environment variables. An empty path loads defaults and the
// environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that
// are absent from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("postgres.host", DefaultDBHost)
	v.SetDefault("postgres.port", DefaultDBPort)
	v.SetDefault("postgres.user", DefaultDBUser)
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.password_parameter", "")
	v.SetDefault("postgres.dbname", DefaultDBName)
	v.SetDefault("postgres.sslmode", DefaultDBSSLMode)
	v.SetDefault("postgres.max_conns", DefaultMaxConns)
	v.SetDefault("postgres.min_conns", DefaultMinConns)
	v.SetDefault("postgres.create_database", false)
	v.SetDefault("postgres.auto_migrate", false)

	v.SetDefault("queue.capacity", DefaultQueueCapacity)
	v.SetDefault("queue.flush_interval", "0s")
	v.SetDefault("queue.batch_size", DefaultBatchSize)
	v.SetDefault("queue.write_timeout", DefaultWriteTimeout.String())
	v.SetDefault("queue.max_retries", DefaultMaxRetries)
	v.SetDefault("queue.retry_backoff", DefaultRetryBackoff.String())
	v.SetDefault("queue.retry_backoff_max", DefaultRetryBackoffMax.String())

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.ttl", DefaultRedisTTL.String())

	v.SetDefault("http.addr", DefaultHTTPAddr)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("log.output_file", "")
}
