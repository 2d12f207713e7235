package pipeline

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/S4DIB/news-hud-sub001/internal/cluster"
	"github.com/S4DIB/news-hud-sub001/internal/dedup"
	"github.com/S4DIB/news-hud-sub001/internal/news"
)

// Result is the outcome of one deduplicate-and-cluster batch.
type Result struct {
	Clusters          []news.Cluster
	Unclustered       []news.Article
	DuplicatesRemoved int
	ClustersFormed    int

	ExactDuplicates int
	NearDuplicates  []NearDuplicate
	Touched         []string
	Fallback        bool
	Err             error
}

// NearDuplicate pairs a dropped article with the verdict that dropped it.
type NearDuplicate struct {
	Article news.Article
	news.DuplicateResult
}

// NoImprovement reports whether the batch left its input as it found it. Callers
// log this; it is not an outage.
func (r Result) NoImprovement(inputArticles int) bool {
	return r.DuplicatesRemoved == 0 && r.ClustersFormed == 0 && len(r.Unclustered) == inputArticles
}

type assignFunc func(articles []news.Article, clusters []news.Cluster) cluster.Assignment

// Runner executes the dedup and clustering stages for a single batch. It holds no
// state between calls.
type Runner struct {
	logger zerolog.Logger
	assign assignFunc
}

func NewRunner(logger zerolog.Logger, opts cluster.Options) *Runner {
	engine := cluster.NewEngine(logger, opts)
	return &Runner{
		logger: logger,
		assign: engine.Assign,
	}
}

// DeduplicateAndCluster runs exact dedup, near dedup, clustering and metric updates.
// The caller's clusters are never modified. Any internal fault yields the
// fallback result: existing clusters unchanged and every article unclustered.
func (r *Runner) DeduplicateAndCluster(articles []news.Article, existing []news.Cluster) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			result = r.fallback(articles, existing, fmt.Errorf("batch panicked: %v", rec))
		}
	}()

	for _, c := range existing {
		if err := c.Validate(); err != nil {
			return r.fallback(articles, existing, fmt.Errorf("invalid input cluster: %w", err))
		}
	}

	working := news.CloneClusters(existing)
	unique, exactRemoved := dedup.FilterExact(articles)
	kept, dropped, verdicts := dedup.FilterNear(unique)
	nearResults := make([]NearDuplicate, 0, len(dropped))
	for i := range dropped {
		nearResults = append(nearResults, NearDuplicate{Article: dropped[i], DuplicateResult: verdicts[i]})
	}

	assignment := r.assign(kept, working)
	cluster.UpdateMetrics(assignment.Clusters, assignment.Touched, assignment.Now)

	touched := make([]string, 0, len(assignment.Touched))
	for _, c := range assignment.Clusters {
		if _, ok := assignment.Touched[c.ID]; ok {
			touched = append(touched, c.ID)
		}
	}

	return Result{
		Clusters:          assignment.Clusters,
		Unclustered:       assignment.Unclustered,
		DuplicatesRemoved: exactRemoved + len(nearResults),
		ClustersFormed:    assignment.Formed,
		ExactDuplicates:   exactRemoved,
		NearDuplicates:    nearResults,
		Touched:           touched,
	}
}

func (r *Runner) fallback(articles []news.Article, existing []news.Cluster, err error) Result {
	r.logger.Warn().
		Err(err).
		Int("articles", len(articles)).
		Int("clusters", len(existing)).
		Msg("dedup batch failed; returning input unchanged")

	return Result{
		Clusters:    news.CloneClusters(existing),
		Unclustered: append([]news.Article(nil), articles...),
		Fallback:    true,
		Err:         err,
	}
}
