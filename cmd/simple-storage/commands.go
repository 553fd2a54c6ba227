package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tendant/simple-storage/pkg/simplestorage/config"
	repopg "github.com/tendant/simple-storage/pkg/simplestorage/repo/postgres"
	reposqlite "github.com/tendant/simple-storage/pkg/simplestorage/repo/sqlite"
)

func NewServeCommand(env *Env) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the cleanup scheduler and the ops endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []config.Option
			if port != "" {
				opts = append(opts, config.WithPort(port))
			}
			cfg, err := loadConfig(env, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, env.ShutdownTimeout, slog.Default())
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "ops server port (overrides PORT)")
	return cmd
}

func serve(ctx context.Context, cfg *config.ServerConfig, shutdownTimeout time.Duration, logger *slog.Logger) error {
	app, err := cfg.Build(ctx, logger)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("Failed to release resources", "err", err)
		}
	}()

	if err := app.Scheduler.Start(ctx); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           NewOpsServer(app, app.Scheduler, app.Registry, cfg).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Simple Storage starting",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"database", cfg.DatabaseType,
			"storage", cfg.DefaultStorageBackend,
			"cleanup_interval", cfg.CleanupInterval)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("ops server failed: %w", err)
	}
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func NewCleanupCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Purge expired temporaries once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(env)
			if err != nil {
				return err
			}
			logger := slog.Default()

			app, err := cfg.Build(cmd.Context(), logger)
			if err != nil {
				return fmt.Errorf("failed to build application: %w", err)
			}
			defer app.Close()

			result, err := app.Scheduler.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired=%d purged=%d failed=%d duration=%s\n",
				result.Expired, result.Purged, result.Failed, result.Duration)
			if result.Failed > 0 {
				return fmt.Errorf("%d expired temporaries could not be purged", result.Failed)
			}
			return nil
		},
	}
}

func NewMigrateCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the metadata schema to the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(env)
			if err != nil {
				return err
			}
			logger := slog.Default()

			switch cfg.DatabaseType {
			case "postgres":
				if err := repopg.Migrate(cmd.Context(), cfg.DatabaseURL, cfg.DBSchema, logger); err != nil {
					return err
				}
			case "sqlite":
				// the sqlite schema is applied when the database is opened
				db, err := reposqlite.Open(cfg.SQLitePath)
				if err != nil {
					return err
				}
				if err := db.Close(); err != nil {
					return err
				}
			default:
				return fmt.Errorf("database type %q has no schema to migrate", cfg.DatabaseType)
			}
			logger.Info("Schema is up to date", "database", cfg.DatabaseType)
			return nil
		},
	}
}
