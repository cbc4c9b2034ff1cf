package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/formbricks/feedback-insights/internal/config"
	"github.com/formbricks/feedback-insights/internal/observability"
	"github.com/formbricks/feedback-insights/internal/repository"
	"github.com/formbricks/feedback-insights/pkg/database"
)

const shutdownTimeout = 30 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)

		return 1
	}

	observability.SetupLogging(cfg.LogLevel)

	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)

		return 1
	}
	defer db.Close()

	if err := migrate(ctx, cfg, db); err != nil {
		slog.Error("Failed to migrate database", "error", err)

		return 1
	}

	app, err := NewApp(ctx, cfg, db)
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)

		return 1
	}

	exitCode := 0

	if err := app.Run(ctx); err != nil {
		slog.Error("Application stopped with error", "error", err)

		exitCode = 1
	}

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown failed", "error", err)

		exitCode = 1
	}

	slog.Info("Server exited")

	return exitCode
}

// migrate brings the application schema up to date, plus River's tables when async analysis is on.
func migrate(ctx context.Context, cfg *config.Config, db *pgxpool.Pool) error {
	if err := repository.Migrate(ctx, db); err != nil {
		return err
	}

	if !cfg.RiverEnabled {
		return nil
	}

	migrator, err := rivermigrate.New(riverpgxv5.New(db), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}

	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("river migrate: %w", err)
	}

	if len(res.Versions) > 0 {
		slog.Info("River migrations applied", "count", len(res.Versions))
	}

	return nil
}
