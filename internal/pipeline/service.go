package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/S4DIB/news-hud-sub001/internal/cluster"
	"github.com/S4DIB/news-hud-sub001/internal/globaltime"
	"github.com/S4DIB/news-hud-sub001/internal/news"
)

// Store supplies the active clusters for a batch and persists its outcome.
type Store interface {
	LoadActiveClusters(ctx context.Context, limit int) ([]news.Cluster, error)
	SaveBatch(ctx context.Context, batch BatchRecord) error
}

// BatchRecord is what a Store persists after one batch.
type BatchRecord struct {
	BatchID   string
	Articles  []news.Article
	Result    Result
	CreatedAt time.Time
}

// Service serializes load, batch and persist so that two batches never run
// first-fit against the same clusters at once.
type Service struct {
	mu          sync.Mutex
	store       Store
	runner      *Runner
	logger      zerolog.Logger
	activeLimit int
}

func NewService(store Store, logger zerolog.Logger, opts cluster.Options) *Service {
	activeLimit := opts.MaxActiveClusters
	if activeLimit <= 0 {
		activeLimit = cluster.DefaultMaxActiveClusters
	}
	return &Service{
		store:       store,
		runner:      NewRunner(logger, opts),
		logger:      logger,
		activeLimit: activeLimit,
	}
}

// ProcessBatch runs one batch against the store's active clusters and persists
// the result. Store errors are returned; engine faults surface as Result.Fallback.
func (s *Service) ProcessBatch(ctx context.Context, articles []news.Article) (Result, error) {
	if s == nil || s.store == nil || s.runner == nil {
		return Result{}, fmt.Errorf("pipeline service is not initialized")
	}
	if len(articles) == 0 {
		return Result{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.LoadActiveClusters(ctx, s.activeLimit)
	if err != nil {
		return Result{}, fmt.Errorf("load active clusters: %w", err)
	}

	started := globaltime.UTC()
	result := s.runner.DeduplicateAndCluster(articles, existing)

	batch := BatchRecord{
		BatchID:   uuid.NewString(),
		Articles:  articles,
		Result:    result,
		CreatedAt: started,
	}
	if err := s.store.SaveBatch(ctx, batch); err != nil {
		return result, fmt.Errorf("save batch %s: %w", batch.BatchID, err)
	}

	event := s.logger.Info()
	if result.Fallback {
		event = s.logger.Warn().Err(result.Err)
	} else if result.NoImprovement(len(articles)) {
		event = s.logger.Warn()
	}
	event.
		Str("batch_id", batch.BatchID).
		Int("articles", len(articles)).
		Int("existing_clusters", len(existing)).
		Int("duplicates_removed", result.DuplicatesRemoved).
		Int("clusters_formed", result.ClustersFormed).
		Int("clusters_touched", len(result.Touched)).
		Int("unclustered", len(result.Unclustered)).
		Bool("fallback", result.Fallback).
		Dur("elapsed", globaltime.UTC().Sub(started)).
		Msg("dedup batch processed")

	return result, nil
}
