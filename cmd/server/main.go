package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/atmx/cachedb/internal/config"
	"github.com/atmx/cachedb/internal/database"
	"github.com/atmx/cachedb/internal/logging"
	"github.com/atmx/cachedb/internal/persist"
	"github.com/atmx/cachedb/internal/schema"
)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:           "cachedb",
		Short:         "Write-behind PostgreSQL persistence for the trading cache",
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (env CACHEDB_* overrides)")

	root.AddCommand(
		serveCmd(&cfgPath),
		migrateCmd(&cfgPath),
		dumpCmd(&cfgPath),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		slog.Error("cachedb failed", "err", err)
		os.Exit(1)
	}
}

// setup loads and validates configuration, resolves the database password
// and installs the configured logger as the default.
func setup(ctx context.Context, cfgPath string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadAndValidate(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Postgres.ResolvePassword(ctx, config.SSMParameter); err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// prepareDatabase runs the optional create and migrate steps.
func prepareDatabase(ctx context.Context, pg config.PostgresConfig, logger *slog.Logger) error {
	if pg.CreateDatabase {
		if err := database.CreateDatabase(ctx, pg); err != nil {
			return fmt.Errorf("create database: %w", err)
		}
	}
	if pg.AutoMigrate {
		if err := schema.Migrate(ctx, database.BuildConnString(pg)); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("schema migrated", "dbname", pg.DBName)
	}
	return nil
}

func queueConfig(q config.QueueConfig) persist.Config {
	return persist.Config{
		Capacity:        q.Capacity,
		FlushInterval:   q.FlushInterval,
		BatchSize:       q.BatchSize,
		WriteTimeout:    q.WriteTimeout,
		MaxRetries:      q.MaxRetries,
		RetryBackoff:    q.RetryBackoff,
		RetryBackoffMax: q.RetryBackoffMax,
	}
}
