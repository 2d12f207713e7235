package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/S4DIB/news-hud-sub001/internal/cli"
	"github.com/S4DIB/news-hud-sub001/internal/db"
)

func runClusters(args []string) int {
	fs := flag.NewFlagSet("clusters", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	topic := fs.String("topic", "", "Only clusters with this topic")
	status := fs.String("status", db.ClusterStatusActive, "active, retired or all")
	sort := fs.String("sort", "updated", "updated, created, score or velocity")
	limit := fs.Int("limit", 25, "Maximum clusters to list")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "clusters does not accept positional arguments")
		return 2
	}
	if *limit <= 0 || *limit > 1000 {
		fmt.Fprintln(os.Stderr, "--limit must be between 1 and 1000")
		return 2
	}
	if !db.IsClusterSort(*sort) {
		fmt.Fprintln(os.Stderr, "--sort must be updated, created, score or velocity")
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

	items, err := pool.ListClusters(ctx, db.ClusterListOptions{
		Topic:  strings.TrimSpace(*topic),
		Status: *status,
		Sort:   *sort,
		Limit:  *limit,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list clusters: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(items); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ClusterUUID,
			item.Topic,
			fmt.Sprintf("%d", item.MemberCount),
			fmt.Sprintf("%.2f", item.Score),
			fmt.Sprintf("%.2f", item.Velocity),
			item.Status,
			formatUTCTimestamp(item.UpdatedAt),
			truncateForTable(item.RepresentativeTitle, 60),
		})
	}
	if err := writeTable([]string{"cluster_uuid", "topic", "members", "score", "velocity", "status", "updated_at", "representative"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render clusters table: %v\n", err)
		return 1
	}
	return 0
}
