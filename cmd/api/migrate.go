package main

import (
	"fmt"

	"github.com/dhima/reading-log/internal/storage"
	"github.com/dhima/reading-log/pkg/config"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the log table and exit",
		Long:  "Runs the additive schema check against DATABASE_URL. Existing rows are kept; missing columns and indexes are added.",
		Args:  cobra.NoArgs,
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := storage.Open(ctx, cfg.DatabaseURL, storage.Options{
		Table:          cfg.LogTable,
		MaxOpenConns:   1,
		AcquireTimeout: cfg.DBAcquireTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer client.Close()

	if err := client.EnsureSchema(ctx); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "table %s ready (%s)\n", client.Table(), client.Dialect())
	return nil
}
