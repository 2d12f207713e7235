package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/S4DIB/news-hud-sub001/internal/cli"
	"github.com/S4DIB/news-hud-sub001/internal/cluster"
	"github.com/S4DIB/news-hud-sub001/internal/config"
	"github.com/S4DIB/news-hud-sub001/internal/db"
	"github.com/S4DIB/news-hud-sub001/internal/logging"
	"github.com/S4DIB/news-hud-sub001/internal/news"
	"github.com/S4DIB/news-hud-sub001/internal/pipeline"
	payloadschema "github.com/S4DIB/news-hud-sub001/schema"
)

const (
	outputFormatTable = "table"
	outputFormatJSON  = "json"
)

// loadRuntime loads the optional .env file, the config and a logger.
func loadRuntime(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func connectReadPool(timeout time.Duration, envLoader *cli.EnvLoader) (context.Context, context.CancelFunc, *db.Pool, error) {
	cfg, _, err := loadRuntime(envLoader)
	if err != nil {
		return nil, nil, nil, err
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return ctx, cancel, pool, nil
}

func clusterOptions(cfg *config.Config) cluster.Options {
	return cluster.Options{
		MaxActiveClusters: cfg.MaxActiveClusters,
		Window:            cfg.ClusterRetention(),
	}
}

// processArticles runs one batch through the Postgres store, or through an
// empty in-memory store when dryRun is set.
func processArticles(ctx context.Context, cfg *config.Config, logger zerolog.Logger, articles []news.Article, dryRun bool) (pipeline.Result, error) {
	if dryRun {
		svc := pipeline.NewService(pipeline.NewMemoryStore(), logger, clusterOptions(cfg))
		return svc.ProcessBatch(ctx, articles)
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	svc := pipeline.NewService(pool, logger, clusterOptions(cfg))
	return svc.ProcessBatch(ctx, articles)
}

func printBatchSummary(command string, articlesIn int, result pipeline.Result, dryRun bool) {
	fmt.Printf(
		"%s articles=%d duplicates_removed=%d exact=%d near=%d clusters_formed=%d clusters_touched=%d unclustered=%d fallback=%t dry_run=%t\n",
		command,
		articlesIn,
		result.DuplicatesRemoved,
		result.ExactDuplicates,
		len(result.NearDuplicates),
		result.ClustersFormed,
		len(result.Touched),
		len(result.Unclustered),
		result.Fallback,
		dryRun,
	)
	if result.Fallback && result.Err != nil {
		fmt.Fprintf(os.Stderr, "Warning: batch fell back to its input: %v\n", result.Err)
	}
}

// decodePayloadFile accepts a single article object, a JSON array of
// articles, or an {"articles": [...]} envelope.
func decodePayloadFile(raw []byte) ([]payloadschema.ArticlePayload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("file is empty")
	}
	if trimmed[0] == '[' {
		return payloadschema.ValidateBatchPayload(json.RawMessage(trimmed))
	}

	var shape map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &shape); err != nil {
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}
	if _, ok := shape["articles"]; ok {
		return payloadschema.ValidateBatchPayload(json.RawMessage(trimmed))
	}

	item, err := payloadschema.ValidateArticlePayload(json.RawMessage(trimmed))
	if err != nil {
		return nil, err
	}
	return []payloadschema.ArticlePayload{*item}, nil
}

func parseOutputFormat(raw, defaultFormat string) (string, error) {
	format := strings.TrimSpace(strings.ToLower(raw))
	if format == "" {
		format = strings.TrimSpace(strings.ToLower(defaultFormat))
	}
	switch format {
	case outputFormatTable, outputFormatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("--format must be table or json")
	}
}

func truncateForTable(value string, maxLen int) string {
	trimmed := strings.TrimSpace(value)
	if maxLen <= 0 {
		return trimmed
	}
	if utf8.RuneCountInString(trimmed) <= maxLen {
		return trimmed
	}

	runes := []rune(trimmed)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

func formatUTCTimestamp(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func formatUTCTimestampPtr(value *time.Time) string {
	if value == nil {
		return ""
	}
	return formatUTCTimestamp(*value)
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func writeTable(headers []string, rows [][]string) error {
	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(writer, strings.Join(headers, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(writer, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return writer.Flush()
}
