package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/business/backup"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/platform/config"
	apirouter "github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/platform/http"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/platform/logger"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/platform/sqlite"
	"github.com/amBITionV2/Crazy-developers-527A-AI-09/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          serviceName,
		Short:        "BloodAid donor matching API with eRaktKosh backup cache",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(refreshCmd())
	rootCmd.AddCommand(cacheHealthCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logger.New(cfg.LogLevel, cfg.LogFormat, serviceName)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and the background refresh loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	gin.SetMode(cfg.GinMode)

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		return err
	}
	defer a.close()

	refresher := backup.NewRefresher(a.backup, cfg.RefreshInterval, cfg.RetryInterval, log.Named("refresher"))
	refresherDone := make(chan struct{})
	go func() {
		defer close(refresherDone)
		refresher.Run(ctx)
	}()

	router := apirouter.NewRouter(ctx, a.search, a.backup, cfg.AllowedOrigins, log.Named("http"))
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	log.Info("server listening", zap.String("port", cfg.Port))

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		log.Error("server error", zap.Error(err))
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown error", zap.Error(err))
	}
	if a.backup.CancelRefresh() {
		log.Info("canceled in-flight refresh")
	}
	select {
	case <-refresherDone:
	case <-shutdownCtx.Done():
		log.Warn("refresh loop did not stop before shutdown deadline")
	}
	log.Info("server exited")
	return nil
}

func refreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Run one backup cache refresh cycle and print its metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.backup.Refresh(ctx, force)
			if printErr := printJSON(cmd, res); printErr != nil {
				return printErr
			}
			if err != nil {
				return err
			}
			if res.Status == backup.StatusFailed {
				return errors.New("refresh failed")
			}
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Refresh even when the cache has not expired")
	return cmd
}

func cacheHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cache-health",
		Short: "Print the backup cache health report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			report := a.backup.Health(ctx)
			if err := printJSON(cmd, report); err != nil {
				return err
			}
			if report.Status == backup.HealthError {
				return errors.New(report.Error)
			}
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQLite backup cache schema",
	}
	cmd.PersistentFlags().String("db", "", "SQLite path (defaults to SQLITE_PATH)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrationDB(cmd, func(db *sql.DB) error {
				if err := goose.Up(db, "."); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrationDB(cmd, func(db *sql.DB) error {
				return goose.Status(db, ".")
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrationDB(cmd, func(db *sql.DB) error {
				if err := goose.Down(db, "."); err != nil {
					return fmt.Errorf("rollback failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Rolled back one migration.")
				return nil
			})
		},
	})
	return cmd
}

func withMigrationDB(cmd *cobra.Command, fn func(db *sql.DB) error) error {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		config.LoadDotEnv()
		path = os.Getenv("SQLITE_PATH")
	}
	if path == "" {
		return errors.New("set --db or SQLITE_PATH")
	}
	db, err := sqlite.OpenRaw(path)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := migrations.Setup(); err != nil {
		return err
	}
	return fn(db)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
