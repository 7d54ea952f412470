package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/dhima/reading-log/docs" // Import generated docs
	"github.com/spf13/cobra"
)

var version = "1.0.0"

// @title Reading Log API
// @version 1.0
// @description Records what each reader is looking at and returns their reading history, newest first.
// @description
// @description Readers are identified by an opaque token passed as the token query parameter or cookie.
// @description Consecutive saves of the same title and url are stored once.

// @contact.name API Support
// @contact.url https://github.com/dhima/reading-log

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	rootCmd := &cobra.Command{
		Use:           "readinglog",
		Short:         "Reading log HTTP service",
		Long:          "Stores per-reader reading history and serves it over HTTP. Configuration comes from the environment.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		// serving is the default
		RunE: serve.RunE,
	}
	rootCmd.AddCommand(serve, newMigrateCmd())
	return rootCmd
}
