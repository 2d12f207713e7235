package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/S4DIB/news-hud-sub001/internal/cli"
)

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "stats does not accept positional arguments")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	ctx, cancel, pool, err := connectReadPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	stats, err := pool.QueryEngineStats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query engine stats: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(stats); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	totals := [][]string{
		{"articles", fmt.Sprintf("%d", stats.Articles)},
		{"active_clusters", fmt.Sprintf("%d", stats.ActiveClusters)},
		{"retired_clusters", fmt.Sprintf("%d", stats.RetiredClusters)},
		{"batches", fmt.Sprintf("%d", stats.Batches)},
		{"fallback_batches", fmt.Sprintf("%d", stats.FallbackBatches)},
		{"duplicates_removed", fmt.Sprintf("%d", stats.DuplicatesRemoved)},
		{"last_batch_at", formatUTCTimestampPtr(stats.LastBatchAt)},
	}
	if err := writeTable([]string{"metric", "value"}, totals); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render totals table: %v\n", err)
		return 1
	}

	fmt.Println()
	topicRows := make([][]string, 0, len(stats.Topics))
	for _, row := range stats.Topics {
		topicRows = append(topicRows, []string{row.Topic, fmt.Sprintf("%d", row.Clusters)})
	}
	if err := writeTable([]string{"topic", "active_clusters"}, topicRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render topic table: %v\n", err)
		return 1
	}
	return 0
}
