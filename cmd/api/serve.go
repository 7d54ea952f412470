package main

import (
	"fmt"

	"github.com/dhima/reading-log/internal/api"
	"github.com/dhima/reading-log/internal/logging"
	"github.com/dhima/reading-log/pkg/config"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  "Connects to DATABASE_URL, ensures the log table and serves /save, /logs, /health and /metrics until interrupted.",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.FromEnv()

	logger, err := logging.NewLogger(cfg.Environment, cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	srv, err := api.Bootstrap(ctx, cfg, logger, version)
	if err != nil {
		_ = logger.Sync()
		return fmt.Errorf("start server: %w", err)
	}

	return srv.Serve(ctx)
}
