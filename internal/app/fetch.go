package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/S4DIB/news-hud-sub001/internal/cli"
	"github.com/S4DIB/news-hud-sub001/internal/feeds"
	"github.com/S4DIB/news-hud-sub001/internal/ingest"
	"github.com/S4DIB/news-hud-sub001/internal/reader"
)

func runFetch(args []string) int {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	feedsPath := fs.String("feeds", "", "Path to feeds.yaml (defaults to FEEDS_CONFIG_PATH)")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	httpTimeout := fs.Duration("http-timeout", 20*time.Second, "Per-request HTTP timeout")
	fullText := fs.Bool("full-text", false, "Fetch article pages for items without a summary")
	concurrency := fs.Int("concurrency", 4, "Parallel page fetches when --full-text is set")
	dryRun := fs.Bool("dry-run", false, "Cluster against an empty in-memory store and persist nothing")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "--concurrency must be > 0")
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	path := strings.TrimSpace(*feedsPath)
	if path == "" {
		path = cfg.FeedsConfigPath
	}
	feedCfg, err := feeds.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid feeds config: %v\n", err)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := &http.Client{Timeout: *httpTimeout}
	articles := feeds.NewFetcher(client, logger).FetchAll(ctx, feedCfg.Enabled())
	if len(articles) == 0 {
		fmt.Fprintln(os.Stderr, "No articles fetched from configured feeds")
		return 1
	}

	filled := 0
	if *fullText {
		fetchText := func(ctx context.Context, pageURL string) (string, error) {
			return reader.FetchText(ctx, pageURL, reader.FetchOptions{HTTPClient: client})
		}
		filled = ingest.NewEnricher(fetchText, *concurrency, logger).FillSummaries(ctx, articles)
	}

	result, err := processArticles(ctx, cfg, logger, articles, *dryRun)
	if err != nil {
		logger.Error().Err(err).Int("articles", len(articles)).Msg("fetch batch failed")
		fmt.Fprintf(os.Stderr, "Fetch failed: %v\n", err)
		return 1
	}

	logger.Info().
		Int("feeds", len(feedCfg.Enabled())).
		Int("articles", len(articles)).
		Int("summaries_filled", filled).
		Msg("feeds fetched")
	printBatchSummary("fetch", len(articles), result, *dryRun)
	return 0
}
