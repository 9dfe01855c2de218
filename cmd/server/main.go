// Package main is the entry point for the recipe box server.
//
// MAIN PACKAGE IN GO:
// main stays minimal. Its job is to:
// 1. Read configuration (flags, env vars, optional config file)
// 2. Create the logger
// 3. Build and start the server
//
// All actual logic lives in the internal/ packages.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/recipe-box/internal/config"
	"github.com/sakif/recipe-box/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "recipe-box",
		Short: "Serve a personal recipe collection over HTTP",
		Long: `recipe-box serves a JSON API and a small web page for managing recipes.

Every setting can come from a flag, an environment variable (PORT,
DATA_PATH, UPLOAD_DIR, ...) or a YAML file passed with --config.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags(), configFile)
			if err != nil {
				return err
			}
			return run(*cfg)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "path to a YAML config file")
	config.RegisterFlags(cmd.Flags())

	return cmd
}

func run(cfg config.Config) error {
	// Text handler for humans at the terminal; the level comes from config.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		return fmt.Errorf("creating server: %w", err)
	}

	// Start blocks until the server is shut down (Ctrl+C or SIGTERM).
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}
