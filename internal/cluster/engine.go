// Package cluster groups deduplicated articles into event clusters.
package cluster

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/S4DIB/news-hud-sub001/internal/dedup"
	"github.com/S4DIB/news-hud-sub001/internal/globaltime"
	"github.com/S4DIB/news-hud-sub001/internal/news"
)

const (
	// DefaultMaxActiveClusters caps how many clusters a single Assign call
	// keeps open.
	DefaultMaxActiveClusters = 50

	// DefaultWindow is the maximum distance between an article's publish time
	// and a cluster's creation time.
	DefaultWindow = 72 * time.Hour

	admitThreshold = 0.70
)

var clusterNamespace = uuid.MustParse("6f1c2a8e-4b7d-5e39-9a0c-3d2f8b6e1c47")

// Options tunes the engine. Zero values fall back to the defaults.
type Options struct {
	MaxActiveClusters int
	MaxClusterSize    int
	Window            time.Duration
	Now               func() time.Time
}

// Engine assigns articles to clusters with a first-fit policy.
type Engine struct {
	opts   Options
	logger zerolog.Logger
}

// Assignment is the outcome of one Assign call.
type Assignment struct {
	Clusters    []news.Cluster
	Unclustered []news.Article
	Formed      int
	Touched     map[string]struct{}
	Now         time.Time
}

// NewEngine returns an Engine with opts normalized: non-positive limits fall
// back to the defaults and MaxClusterSize never exceeds news.MaxClusterSize.
func NewEngine(logger zerolog.Logger, opts Options) *Engine {
	if opts.MaxActiveClusters <= 0 {
		opts.MaxActiveClusters = DefaultMaxActiveClusters
	}
	if opts.MaxClusterSize <= 0 || opts.MaxClusterSize > news.MaxClusterSize {
		opts.MaxClusterSize = news.MaxClusterSize
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Now == nil {
		opts.Now = globaltime.UTC
	}
	return &Engine{opts: opts, logger: logger}
}

// Assign walks articles in order and places each one into the first admitting
// cluster, a new cluster, or the unclustered remainder. The clusters slice is
// modified in place and returned sorted by UpdatedAt, newest first.
func (e *Engine) Assign(articles []news.Article, clusters []news.Cluster) Assignment {
	now := e.opts.Now().UTC()
	out := Assignment{
		Clusters: clusters,
		Touched:  make(map[string]struct{}),
		Now:      now,
	}

	for _, article := range articles {
		if placed(article, out.Clusters) {
			continue
		}
		if idx := e.firstFit(article, out.Clusters); idx >= 0 {
			e.admit(&out.Clusters[idx], article, now)
			out.Touched[out.Clusters[idx].ID] = struct{}{}
			continue
		}

		if len(out.Clusters) >= e.opts.MaxActiveClusters {
			e.logger.Debug().
				Str("article_id", article.ID).
				Int("active_clusters", len(out.Clusters)).
				Msg("active cluster cap reached; article left unclustered")
			out.Unclustered = append(out.Unclustered, article)
			continue
		}

		created := e.newCluster(article, now, len(out.Clusters))
		out.Clusters = append(out.Clusters, created)
		out.Touched[created.ID] = struct{}{}
		out.Formed++
	}

	sort.SliceStable(out.Clusters, func(i, j int) bool {
		return out.Clusters[i].UpdatedAt.After(out.Clusters[j].UpdatedAt)
	})
	return out
}

// placed reports whether article already belongs to one of clusters, as
// happens when a feed item is ingested again in a later batch.
func placed(article news.Article, clusters []news.Cluster) bool {
	for i := range clusters {
		if clusters[i].HasMember(article.ID) {
			return true
		}
	}
	return false
}

func (e *Engine) firstFit(article news.Article, clusters []news.Cluster) int {
	limit := min(len(clusters), e.opts.MaxActiveClusters)
	for i := 0; i < limit; i++ {
		if e.Admits(clusters[i], article) {
			return i
		}
	}
	return -1
}

// Admits reports whether article may join c. An article that is already a
// member is never admitted a second time.
func (e *Engine) Admits(c news.Cluster, article news.Article) bool {
	if c.HasMember(article.ID) {
		return false
	}
	if absDuration(article.PublishedAt.Sub(c.CreatedAt)) > e.opts.Window {
		return false
	}
	if len(c.Members) >= e.opts.MaxClusterSize {
		return false
	}
	if dedup.Compare(article, c.Representative).Overall > admitThreshold {
		return true
	}
	return TopicSimilarity(article, c.Representative) > admitThreshold
}

func (e *Engine) admit(c *news.Cluster, article news.Article, now time.Time) {
	c.Members = append(c.Members, article)
	c.UpdatedAt = now
	if ReplacesRepresentative(article, c.Representative) {
		c.Representative = article
	}
}

func (e *Engine) newCluster(article news.Article, now time.Time, ordinal int) news.Cluster {
	seed := fmt.Sprintf("%s|%s|%s|%d", article.ID, article.URL, now.Format(time.RFC3339Nano), ordinal)
	return news.Cluster{
		ID:             uuid.NewSHA1(clusterNamespace, []byte(seed)).String(),
		Representative: article,
		Members:        []news.Article{article},
		Score:          article.Popularity,
		Topic:          ClassifyTopic(article.Title),
		CreatedAt:      now,
		UpdatedAt:      now,
		Velocity:       1,
	}
}

// ReplacesRepresentative reports whether candidate should become the
// representative: strictly higher popularity, or otherwise a strictly more
// reputable source.
func ReplacesRepresentative(candidate, current news.Article) bool {
	if candidate.Popularity > current.Popularity {
		return true
	}
	return SourceReputation(candidate.Source) > SourceReputation(current.Source)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
