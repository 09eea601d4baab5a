package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atmx/cachedb/internal/database"
	"github.com/atmx/cachedb/internal/model"
	"github.com/atmx/cachedb/internal/persist"
	"github.com/atmx/cachedb/internal/schema"
)

func migrateCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database if configured and apply the schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, err := setup(ctx, *cfgPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.CreateDatabase {
				if err := database.CreateDatabase(ctx, cfg.Postgres); err != nil {
					return fmt.Errorf("create database: %w", err)
				}
			}
			if err := schema.Migrate(ctx, database.BuildConnString(cfg.Postgres)); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info("schema migrated", "dbname", cfg.Postgres.DBName)
			return nil
		},
	}
}

// snapshot is the dump output: everything the read path can hydrate.
type snapshot struct {
	General     map[string][]byte `json:"general"`
	Currencies  []model.Currency  `json:"currencies"`
	Instruments []json.RawMessage `json:"instruments"`
}

func dumpCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print the persisted cache contents as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, err := setup(ctx, *cfgPath)
			if err != nil {
				return err
			}

			handle, err := persist.Connect(ctx, cfg.Postgres, queueConfig(cfg.Queue), persist.WithLogger(logger))
			if err != nil {
				return err
			}
			defer handle.Shutdown(context.Background())

			snap, err := load(ctx, handle)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		},
	}
}

func load(ctx context.Context, h *persist.Handle) (*snapshot, error) {
	general, err := h.Load(ctx)
	if err != nil {
		return nil, err
	}
	currencies, err := h.LoadCurrencies(ctx)
	if err != nil {
		return nil, err
	}
	instruments, err := h.LoadInstruments(ctx)
	if err != nil {
		return nil, err
	}

	snap := &snapshot{General: general, Currencies: currencies}
	for _, inst := range instruments {
		data, err := model.MarshalInstrument(inst)
		if err != nil {
			return nil, err
		}
		snap.Instruments = append(snap.Instruments, data)
	}
	return snap, nil
}
