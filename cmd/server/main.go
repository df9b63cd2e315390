// Package main is the CRM WhatsApp service entry point
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"crm-whatsapp/internal/adapters/repository"
	"crm-whatsapp/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "crm-whatsapp",
	Short:         "WhatsApp Business inbox, handoff and ad conversion service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and exit",
	RunE:  runMigrate,
}

func init() {
	serveCmd.Flags().Bool("migrate", false, "apply the database schema before serving")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogger(cfg.App)

	db, err := connectMariaDB(cfg.DB, 5, 2*time.Second)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repository.Migrate(cmd.Context(), db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	slog.Info("Schema applied", "database", cfg.DB.Database)
	return nil
}

// setupLogger installs the process-wide slog handler
func setupLogger(cfg config.AppConfig) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.LogFormat == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h).With("service", "crm-whatsapp", "version", cfg.Version))
}

// connectMariaDB retries because the database container may still be starting
func connectMariaDB(cfg config.DBConfig, maxRetries int, retryDelay time.Duration) (*sqlx.DB, error) {
	dsn := cfg.GetDSN()

	var err error
	for i := 1; i <= maxRetries; i++ {
		var db *sqlx.DB
		db, err = sqlx.Open("mysql", dsn)
		if err != nil {
			slog.Warn("Failed to configure DB driver", "attempt", i, "max", maxRetries, "error", err)
			time.Sleep(retryDelay)
			continue
		}

		if err = db.Ping(); err == nil {
			db.SetMaxOpenConns(25)
			db.SetMaxIdleConns(5)
			db.SetConnMaxLifetime(5 * time.Minute)
			slog.Info("MariaDB connection established", "host", cfg.Host, "database", cfg.Database)
			return db, nil
		}

		slog.Warn("Cannot ping MariaDB", "attempt", i, "max", maxRetries, "error", err)
		db.Close()

		if i < maxRetries {
			time.Sleep(retryDelay)
		}
	}

	return nil, fmt.Errorf("cannot connect to MariaDB after %d attempts: %w", maxRetries, err)
}

// connectRedis returns nil when Redis stays unreachable; callers fall back to in-process dedup
func connectRedis(cfg config.RedisConfig, maxRetries int, retryDelay time.Duration) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx := context.Background()
	var err error
	for i := 1; i <= maxRetries; i++ {
		if err = rdb.Ping(ctx).Err(); err == nil {
			slog.Info("Redis connection established", "addr", cfg.Addr)
			return rdb
		}

		slog.Warn("Cannot ping Redis", "attempt", i, "max", maxRetries, "error", err)
		if i < maxRetries {
			time.Sleep(retryDelay)
		}
	}

	slog.Error("Redis unreachable, using in-process dedup", "addr", cfg.Addr, "error", err)
	rdb.Close()
	return nil
}
