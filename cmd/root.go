package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eam/internal/config"
	"eam/internal/core/container"
	"eam/internal/core/logger"
	"eam/internal/core/routes"
	"eam/internal/database"
	"eam/internal/health"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func loadConfig(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(file)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.NewLogger(cfg.Log.Level, cfg.Log.Development), nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, zapLogger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer zapLogger.Sync()

			c, err := container.NewAppContainer(cmd.Context(), cfg, zapLogger)
			if err != nil {
				zapLogger.Error("failed to initialise services", zap.Error(err))
				return err
			}
			defer c.Close()

			srv := &http.Server{
				Addr:         cfg.Server.Addr(),
				Handler:      routes.NewRouter(c),
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				zapLogger.Info("starting server", zap.String("addr", srv.Addr), zap.String("version", cfg.Server.Version))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				zapLogger.Error("server failed", zap.Error(err))
				return err
			case <-quit:
			}

			zapLogger.Info("shutting down server")
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				zapLogger.Error("server forced to shutdown", zap.Error(err))
				return err
			}
			zapLogger.Info("server exited")
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run migrations manually.",
		Long:  `Applies every pending migration to the configured database.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, zapLogger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer zapLogger.Sync()

			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.Database.MigrationsDir
			}

			if err := database.RunMigrations(cfg.Database.URL, dir, zapLogger); err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("dir", "", "Directory containing the migration files (default database.migrations_dir)")
	return cmd
}

func newHealthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Change the health status of a running server.",
	}
	cmd.AddCommand(newHealthSetCmd())
	return cmd
}

func newHealthSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set the health status served on /api/health.",
		Long:  `Switches a running server into or out of maintenance. The status is ok, maintenance or error.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, _ := cmd.Flags().GetString("status")
			message, _ := cmd.Flags().GetString("message")
			eta, _ := cmd.Flags().GetString("eta")
			baseURL, _ := cmd.Flags().GetString("url")

			if _, err := health.NewStatus(status); err != nil {
				return err
			}
			return postHealth(cmd.Context(), cmd.OutOrStdout(), baseURL, health.Update{
				Status:                status,
				Message:               message,
				EstimatedRecoveryTime: eta,
			})
		},
	}
	cmd.Flags().String("status", "", "New status: ok, maintenance or error")
	cmd.Flags().String("message", "", "Message shown on the maintenance page")
	cmd.Flags().String("eta", "", "Estimated recovery time")
	cmd.Flags().String("url", "http://localhost:8080", "Base URL of the running server")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func postHealth(ctx context.Context, out io.Writer, baseURL string, u health.Update) error {
	body, err := json.Marshal(u)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/health", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("update health status: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("update health status: %s: %s", resp.Status, raw)
	}
	fmt.Fprintln(out, string(raw))
	return nil
}

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "eam",
		Short:         "Offshore wind maintenance service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to the config file (default ./configs/config.yaml)")
	rootCmd.AddCommand(newServeCmd(), newMigrateCmd(), newHealthCmd())
	return rootCmd
}

func Execute(ctx context.Context) {
	// Load .env file, but don't overwrite system environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables.")
	}

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
