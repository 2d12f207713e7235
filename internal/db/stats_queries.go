package db

import (
	"context"
	"fmt"
	"time"
)

// TopicCount is the number of active clusters per topic.
type TopicCount struct {
	Topic    string `json:"topic"`
	Clusters int64  `json:"clusters"`
}

// EngineStats is the read model returned by the stats endpoint.
type EngineStats struct {
	Articles          int64        `json:"articles"`
	ActiveClusters    int64        `json:"active_clusters"`
	RetiredClusters   int64        `json:"retired_clusters"`
	Batches           int64        `json:"batches"`
	FallbackBatches   int64        `json:"fallback_batches"`
	DuplicatesRemoved int64        `json:"duplicates_removed"`
	LastBatchAt       *time.Time   `json:"last_batch_at,omitempty"`
	Topics            []TopicCount `json:"topics"`
}

// QueryEngineStats returns article, cluster and batch totals.
func (p *Pool) QueryEngineStats(ctx context.Context) (*EngineStats, error) {
	const totalsQuery = `
SELECT
	(SELECT COUNT(*) FROM news.articles)::BIGINT,
	(SELECT COUNT(*) FROM news.clusters WHERE status = 'active')::BIGINT,
	(SELECT COUNT(*) FROM news.clusters WHERE status = 'retired')::BIGINT,
	(SELECT COUNT(*) FROM news.batch_runs)::BIGINT,
	(SELECT COUNT(*) FROM news.batch_runs WHERE fallback)::BIGINT,
	(SELECT COALESCE(SUM(duplicates_removed), 0) FROM news.batch_runs)::BIGINT,
	(SELECT MAX(created_at) FROM news.batch_runs)
`

	stats := &EngineStats{Topics: make([]TopicCount, 0, 8)}
	if err := p.QueryRow(ctx, totalsQuery).Scan(
		&stats.Articles,
		&stats.ActiveClusters,
		&stats.RetiredClusters,
		&stats.Batches,
		&stats.FallbackBatches,
		&stats.DuplicatesRemoved,
		&stats.LastBatchAt,
	); err != nil {
		return nil, fmt.Errorf("query engine totals: %w", err)
	}
	if stats.LastBatchAt != nil {
		last := stats.LastBatchAt.UTC()
		stats.LastBatchAt = &last
	}

	const topicsQuery = `
SELECT topic, COUNT(*)::BIGINT
FROM news.clusters
WHERE status = 'active'
GROUP BY topic
ORDER BY COUNT(*) DESC, topic
`
	rows, err := p.Query(ctx, topicsQuery)
	if err != nil {
		return nil, fmt.Errorf("query topic counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item TopicCount
		if err := rows.Scan(&item.Topic, &item.Clusters); err != nil {
			return nil, fmt.Errorf("scan topic count: %w", err)
		}
		stats.Topics = append(stats.Topics, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topic counts: %w", err)
	}
	return stats, nil
}
