// Package config loads cachedb configuration from a YAML file with
// environment overrides.
//
// Every key can be overridden by an environment variable prefixed with
// CACHEDB_ and with dots replaced by underscores, e.g.
// CACHEDB_POSTGRES_HOST or CACHEDB_QUEUE_FLUSH_INTERVAL.
package config
