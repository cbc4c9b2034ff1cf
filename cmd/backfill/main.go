// Package main provides a CLI tool to enqueue analysis for feedback that was never analyzed.
// It inserts one River job per pending item; the jobs are processed by an API server running
// with RIVER_ENABLED=true.
//
// Usage:
//
//	go run ./cmd/backfill -limit 500
//
// Environment variables:
//   - DATABASE_URL: PostgreSQL connection string (required)
//   - RIVER_MAX_ATTEMPTS: attempts per job before it is discarded (default: 3)
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/formbricks/feedback-insights/internal/config"
	"github.com/formbricks/feedback-insights/internal/observability"
	"github.com/formbricks/feedback-insights/internal/repository"
	"github.com/formbricks/feedback-insights/internal/service"
	"github.com/formbricks/feedback-insights/pkg/database"
)

const defaultLimit = 1000

func main() {
	limit := flag.Int("limit", defaultLimit, "maximum number of pending items to enqueue")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	observability.SetupLogging(cfg.LogLevel)

	if *limit <= 0 {
		slog.Error("limit must be positive", "limit", *limit)
		os.Exit(1)
	}

	slog.Info("Starting analysis backfill...", "limit", *limit)

	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Insert-only client: no queues or workers, jobs run in the API process.
	riverClient, err := river.NewClient[pgx.Tx](riverpgxv5.New(db), &river.Config{
		MaxAttempts: cfg.RiverMaxAttempts,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	jobs := service.NewAnalysisJobs(riverClient, repository.NewFeedbackRepository(db), cfg.RiverMaxAttempts, nil)

	enqueued, err := jobs.EnqueuePending(ctx, *limit)
	if err != nil {
		slog.Error("Backfill failed", "error", err, "enqueued", enqueued)
	}

	fmt.Println()
	fmt.Println("Backfill Summary")
	fmt.Println("================")
	fmt.Printf("Analysis jobs enqueued: %d\n", enqueued)
	fmt.Println()

	if enqueued == 0 {
		slog.Info("No pending feedback needs analysis")
	} else {
		fmt.Println("Jobs have been enqueued. They will be processed by the running API server.")
	}

	if err != nil {
		os.Exit(1)
	}

	slog.Info("Backfill complete")
}
