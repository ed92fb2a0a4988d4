// Package main is the entry point for the snippet-share server.
//
// The main package is kept minimal. Its job is to:
// 1. Parse the command line (cobra)
// 2. Load configuration and build the logger
// 3. Hand off to internal/server or run a maintenance command
//
// COMMANDS:
//
//	snippet-share serve            run the HTTP API (default)
//	snippet-share migrate          create or update the database schema
//	snippet-share promote <email>  grant the admin role to an account
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sakif/snippet-share/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app is what every subcommand needs after startup.
type app struct {
	configDir string
	cfg       *config.Config
	logger    *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "snippet-share",
		Short: "A code snippet sharing API",
		Long: `snippet-share stores code snippets with tags, likes and bookmarks,
and serves them over a JSON HTTP API.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		// Running the bare binary starts the server.
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve()
		},
	}

	root.PersistentFlags().StringVar(&a.configDir, "config", "./configs", "directory containing config.yaml")

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newPromoteCmd(a),
	)
	return root
}

// load reads the configuration and builds the logger.
//
// slog.NewTextHandler writes human-readable key=value lines. The level comes
// from log.level (debug, info, warn, error).
func (a *app) load() error {
	cfg, err := config.Load(a.configDir)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}))
	slog.SetDefault(a.logger)
	return nil
}

// ensureDBDir creates the database's parent directory, like `mkdir -p`.
func (a *app) ensureDBDir() error {
	if a.cfg.Database.Path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(a.cfg.Database.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating database directory %s: %w", dir, err)
	}
	return nil
}
