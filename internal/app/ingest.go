package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/S4DIB/news-hud-sub001/internal/cli"
	"github.com/S4DIB/news-hud-sub001/internal/ingest"
	"github.com/S4DIB/news-hud-sub001/internal/news"
)

func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	dir := fs.String("dir", "testdata/articles", "Directory containing .json article files")
	recursive := fs.Bool("recursive", true, "Recursively scan subdirectories")
	timeout := fs.Duration("timeout", 60*time.Second, "Command timeout")
	dryRun := fs.Bool("dry-run", false, "Cluster against an empty in-memory store and persist nothing")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	files, err := collectJSONFiles(strings.TrimSpace(*dir), *recursive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest setup failed: %v\n", err)
		return 1
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "No .json files found under %s\n", strings.TrimSpace(*dir))
		return 1
	}

	articles, err := loadArticleFiles(files)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := processArticles(ctx, cfg, logger, articles, *dryRun)
	if err != nil {
		logger.Error().Err(err).Int("articles", len(articles)).Msg("ingest batch failed")
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		return 1
	}

	printBatchSummary("ingest", len(articles), result, *dryRun)
	return 0
}

// loadArticleFiles validates and converts every file, in path order. A bad file
// fails the whole run so a batch is never partially ingested.
func loadArticleFiles(files []string) ([]news.Article, error) {
	var articles []news.Article
	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		items, err := decodePayloadFile(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		converted, err := ingest.FromPayloads(items)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		articles = append(articles, converted...)
	}
	return articles, nil
}
