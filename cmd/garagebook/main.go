package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"garagebook/internal/config"
	"garagebook/internal/store/postgres"
)

const serviceName = "garagebook"

func main() {
	rootCmd := &cobra.Command{
		Use:   serviceName,
		Short: "Workshop appointment scheduling server",
		Long: `garagebook books service appointments at workshops and hands out available
start times. Configuration comes from GARAGEBOOK_* environment variables.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and installs the JSON logger at the configured level.
func bootstrap() (config.Config, *slog.Logger, error) {
	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		return config.Config{}, nil, err
	}

	log = newLogger(parseLogLevel(cfg.LogLevel))
	slog.SetDefault(log)
	return cfg, log, nil
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).With(
		slog.String("service", serviceName),
	)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			db, err := openDatabase(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := postgres.Close(db); err != nil {
					log.Warn("database close failed", slog.Any("err", err))
				}
			}()

			applied, err := postgres.Migrate(ctx, db)
			if err != nil {
				log.Error("migration failed", slog.Any("err", err))
				return err
			}
			if len(applied) == 0 {
				log.Info("schema up to date")
				return nil
			}
			log.Info("migrations applied", slog.Any("versions", applied))
			return nil
		},
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
