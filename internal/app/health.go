package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/S4DIB/news-hud-sub001/internal/cli"
	"github.com/S4DIB/news-hud-sub001/internal/db"
	"github.com/S4DIB/news-hud-sub001/internal/globaltime"
)

type engineChecker interface {
	Ping(ctx context.Context) error
	QueryEngineStats(ctx context.Context) (*db.EngineStats, error)
}

type healthReport struct {
	Status         string     `json:"status"`
	ActiveClusters int64      `json:"active_clusters"`
	Batches        int64      `json:"batches"`
	LastBatchAt    *time.Time `json:"last_batch_at,omitempty"`
	Stale          bool       `json:"stale"`
}

// checkHealth pings the store and reads cluster totals. A positive maxBatchAge
// marks the report stale when no batch has been recorded within that age.
func checkHealth(ctx context.Context, checker engineChecker, now time.Time, maxBatchAge time.Duration) (healthReport, error) {
	if err := checker.Ping(ctx); err != nil {
		return healthReport{Status: "down"}, fmt.Errorf("ping database: %w", err)
	}
	stats, err := checker.QueryEngineStats(ctx)
	if err != nil {
		return healthReport{Status: "down"}, fmt.Errorf("query engine stats: %w", err)
	}

	report := healthReport{
		Status:         "ok",
		ActiveClusters: stats.ActiveClusters,
		Batches:        stats.Batches,
		LastBatchAt:    stats.LastBatchAt,
	}
	if maxBatchAge > 0 && (stats.LastBatchAt == nil || now.Sub(*stats.LastBatchAt) > maxBatchAge) {
		report.Status = "stale"
		report.Stale = true
	}
	return report, nil
}

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Second, "Database timeout")
	maxBatchAge := fs.Duration("max-batch-age", 0, "Fail when the newest batch is older than this (0 disables)")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *maxBatchAge < 0 {
		fmt.Fprintln(os.Stderr, "--max-batch-age must be >= 0")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	ctx, cancel, pool, err := connectReadPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	report, err := checkHealth(ctx, pool, globaltime.UTC(), *maxBatchAge)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(report); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
	} else {
		lastBatch := formatUTCTimestampPtr(report.LastBatchAt)
		if lastBatch == "" {
			lastBatch = "never"
		}
		fmt.Printf("%s: %d active clusters, %d batches, last batch %s\n",
			report.Status, report.ActiveClusters, report.Batches, lastBatch)
	}

	if report.Stale {
		return 1
	}
	return 0
}
