// Package main provides a CLI tool to ingest feedback from a CSV file through the API.
// The CSV needs a header row with source, title and body columns (any order, extra columns ignored).
//
// Usage:
//
//	go run ./cmd/ingest -file /path/to/feedback.csv -api-url http://localhost:8080 -analyze
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/formbricks/feedback-insights/internal/models"
	"github.com/formbricks/feedback-insights/internal/observability"
	"github.com/formbricks/feedback-insights/internal/service"
	"github.com/formbricks/feedback-insights/pkg/insights"
)

// Config holds the CLI configuration
type Config struct {
	FilePath   string
	APIBaseURL string
	Delay      time.Duration
	DryRun     bool
	Analyze    bool
}

// Stats tracks ingestion statistics
type Stats struct {
	TotalRows       int
	SkippedRows     int
	SuccessfulPosts int
	FailedPosts     int
	Enqueued        int
}

var requiredColumns = []string{"source", "title", "body"}

func main() {
	cfg := parseFlags()
	observability.SetupLogging("info")

	if cfg.FilePath == "" {
		fmt.Fprintln(os.Stderr, "-file is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	file, err := os.Open(cfg.FilePath)
	if err != nil {
		slog.Error("Failed to open CSV file", "error", err)
		os.Exit(1)
	}
	defer func() { _ = file.Close() }()

	items, skipped, err := readFeedbackCSV(file)
	if err != nil {
		slog.Error("Failed to parse CSV file", "error", err)
		os.Exit(1)
	}

	stats := Stats{TotalRows: len(items) + skipped, SkippedRows: skipped}

	if cfg.DryRun {
		fmt.Printf("Dry run: %d rows parsed, %d skipped\n", len(items), skipped)

		return
	}

	ingest(ctx, insights.NewClient(cfg.APIBaseURL), cfg, items, &stats)
	printStats(stats)

	if stats.FailedPosts > 0 {
		os.Exit(1)
	}
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.FilePath, "file", "", "Path to CSV file (required)")
	flag.StringVar(&cfg.APIBaseURL, "api-url", "http://localhost:8080", "API base URL")
	flag.DurationVar(&cfg.Delay, "delay", 100*time.Millisecond, "Delay between API calls")
	flag.BoolVar(&cfg.DryRun, "dry-run", false, "Parse CSV but don't make API calls")
	flag.BoolVar(&cfg.Analyze, "analyze", false, "Enqueue a background analysis for each new item")

	flag.Parse()

	return cfg
}

// readFeedbackCSV parses rows into create requests. Rows with an empty required column are skipped.
func readFeedbackCSV(r io.Reader) ([]models.CreateFeedbackRequest, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, errors.New("CSV file is empty")
		}

		return nil, 0, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}

	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, 0, fmt.Errorf("missing required column %q", col)
		}
	}

	var (
		items   []models.CreateFeedbackRequest
		skipped int
	)

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, 0, fmt.Errorf("read row: %w", err)
		}

		item := models.CreateFeedbackRequest{
			Source: safeGet(row, index["source"]),
			Title:  safeGet(row, index["title"]),
			Body:   safeGet(row, index["body"]),
		}

		if item.Source == "" || item.Title == "" || item.Body == "" {
			skipped++

			continue
		}

		items = append(items, item)
	}

	return items, skipped, nil
}

type feedbackAPI interface {
	CreateFeedback(ctx context.Context, req *models.CreateFeedbackRequest) (*models.Feedback, error)
	EnqueueAnalysis(ctx context.Context, id int64, force bool) (*service.EnqueueResult, error)
}

func ingest(ctx context.Context, client feedbackAPI, cfg Config, items []models.CreateFeedbackRequest, stats *Stats) {
	for i := range items {
		if ctx.Err() != nil {
			return
		}

		feedback, err := client.CreateFeedback(ctx, &items[i])
		if err != nil {
			stats.FailedPosts++
			slog.Warn("Failed to create feedback", "item", i, "error", err)

			continue
		}

		stats.SuccessfulPosts++

		if cfg.Analyze && feedback.AnalysisStatus == models.AnalysisStatusPending {
			if _, err := client.EnqueueAnalysis(ctx, feedback.ID, false); err != nil {
				slog.Warn("Failed to enqueue analysis", "feedback_id", feedback.ID, "error", err)
			} else {
				stats.Enqueued++
			}
		}

		if cfg.Delay > 0 {
			time.Sleep(cfg.Delay)
		}
	}
}

func printStats(stats Stats) {
	fmt.Println()
	fmt.Println("Ingestion Summary")
	fmt.Println("=================")
	fmt.Printf("Rows read:        %d\n", stats.TotalRows)
	fmt.Printf("Rows skipped:     %d\n", stats.SkippedRows)
	fmt.Printf("Created:          %d\n", stats.SuccessfulPosts)
	fmt.Printf("Failed:           %d\n", stats.FailedPosts)
	fmt.Printf("Analysis queued:  %d\n", stats.Enqueued)
}

func safeGet(row []string, index int) string {
	if index < len(row) {
		return strings.TrimSpace(row[index])
	}

	return ""
}
