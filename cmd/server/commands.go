package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/snippet-share/internal/auth"
	sqliteRepo "github.com/sakif/snippet-share/internal/repository/sqlite"
	"github.com/sakif/snippet-share/internal/server"
	"github.com/sakif/snippet-share/internal/service"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve()
		},
	}
}

func (a *app) serve() error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	if err := a.ensureDBDir(); err != nil {
		return err
	}

	srv, err := server.New(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Start blocks until Ctrl+C or SIGTERM.
	return srv.Start()
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long: `Connects to the configured SQLite database and creates every table and
index that does not exist yet. Safe to run repeatedly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ensureDBDir(); err != nil {
				return err
			}

			// New runs the migrations as part of opening the database.
			db, err := sqliteRepo.New(a.cfg.Database.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			a.logger.Info("database migrated", slog.String("path", a.cfg.Database.Path))
			return nil
		},
	}
}

func newPromoteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "promote <email>",
		Short: "Grant the admin role to an account",
		Long: `Admins can bulk-import tags. There is no HTTP endpoint that grants the
role, so the first admin is promoted from the command line.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := sqliteRepo.New(a.cfg.Database.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			// Promotion never issues a token, so any secret satisfies the
			// constructor when none is configured.
			secret := a.cfg.Auth.JWTSecret
			if len(secret) < auth.MinSecretLen {
				secret = "promote-only-unused-secret"
			}
			tokens, err := auth.NewTokenService(secret, time.Hour)
			if err != nil {
				return err
			}

			accounts := service.NewAuthService(db, tokens, auth.NewPasswordHasher(a.cfg.Auth.BcryptCost), a.logger)

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := accounts.PromoteAdmin(ctx, args[0]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s is now an admin\n", args[0])
			return nil
		},
	}
}
