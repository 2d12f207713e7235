package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/S4DIB/news-hud-sub001/internal/cli"
	"github.com/S4DIB/news-hud-sub001/internal/db"
	"github.com/S4DIB/news-hud-sub001/internal/globaltime"
)

type clusterRetirer interface {
	RetireClusters(ctx context.Context, cutoff time.Time) (int64, error)
}

func runRetire(args []string) int {
	fs := flag.NewFlagSet("retire", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	olderThan := fs.Duration("older-than", 0, "Retire clusters created before now minus this duration (defaults to CLUSTER_RETENTION_HOURS)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *olderThan < 0 {
		fmt.Fprintln(os.Stderr, "--older-than must be >= 0")
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	retention := *olderThan
	if retention == 0 {
		retention = cfg.ClusterRetention()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	n, err := retireOnce(ctx, pool, retention, globaltime.UTC(), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Retire failed: %v\n", err)
		return 1
	}
	fmt.Printf("retire retired=%d older_than=%s\n", n, retention)
	return 0
}

func retireOnce(ctx context.Context, r clusterRetirer, retention time.Duration, now time.Time, logger zerolog.Logger) (int64, error) {
	cutoff := now.Add(-retention)
	n, err := r.RetireClusters(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	logger.Info().
		Int64("retired", n).
		Time("cutoff", cutoff).
		Msg("clusters retired")
	return n, nil
}

// retireLoop retires expired clusters every interval until ctx is done.
func retireLoop(ctx context.Context, r clusterRetirer, retention, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := retireOnce(ctx, r, retention, globaltime.UTC(), logger); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("periodic cluster retirement failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
