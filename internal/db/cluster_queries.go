package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/S4DIB/news-hud-sub001/internal/news"
	"github.com/S4DIB/news-hud-sub001/internal/pipeline"
	"github.com/S4DIB/news-hud-sub001/internal/textnorm"
)

const (
	ClusterStatusActive  = "active"
	ClusterStatusRetired = "retired"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// LoadActiveClusters returns up to limit active clusters, most recently updated
// first, with their members in admission order.
func (p *Pool) LoadActiveClusters(ctx context.Context, limit int) ([]news.Cluster, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	c.cluster_uuid::text,
	c.representative_article_key,
	c.topic,
	c.score,
	c.velocity,
	c.created_at,
	c.updated_at
FROM news.clusters c
WHERE c.status = 'active'
ORDER BY c.updated_at DESC, c.cluster_uuid
LIMIT $1
`

	rows, err := p.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query active clusters: %w", err)
	}
	defer rows.Close()

	clusters := make([]news.Cluster, 0, limit)
	repKeys := make(map[string]string, limit)
	for rows.Next() {
		var (
			c      news.Cluster
			repKey string
		)
		if err := rows.Scan(&c.ID, &repKey, &c.Topic, &c.Score, &c.Velocity, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan active cluster: %w", err)
		}
		c.CreatedAt = c.CreatedAt.UTC()
		c.UpdatedAt = c.UpdatedAt.UTC()
		repKeys[c.ID] = repKey
		clusters = append(clusters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active clusters: %w", err)
	}
	if len(clusters) == 0 {
		return clusters, nil
	}

	ids := make([]string, 0, len(clusters))
	for _, c := range clusters {
		ids = append(ids, c.ID)
	}
	members, err := p.loadMembers(ctx, ids)
	if err != nil {
		return nil, err
	}

	for i := range clusters {
		clusters[i].Members = members[clusters[i].ID]
		repKey := repKeys[clusters[i].ID]
		for _, m := range clusters[i].Members {
			if m.ID == repKey {
				clusters[i].Representative = m
				break
			}
		}
	}
	return clusters, nil
}

func (p *Pool) loadMembers(ctx context.Context, clusterIDs []string) (map[string][]news.Article, error) {
	q, args, err := psql.
		Select(
			"m.cluster_uuid::text",
			"a.article_key",
			"a.title",
			"a.summary",
			"a.url",
			"a.source",
			"a.published_at",
			"a.popularity",
			"a.language",
		).
		From("news.cluster_members m").
		Join("news.articles a ON a.article_key = m.article_key").
		Where(sq.Eq{"m.cluster_uuid::text": clusterIDs}).
		OrderBy("m.cluster_uuid", "m.position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build member query: %w", err)
	}

	rows, err := p.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query cluster members: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]news.Article, len(clusterIDs))
	for rows.Next() {
		var (
			clusterID string
			a         news.Article
		)
		if err := rows.Scan(&clusterID, &a.ID, &a.Title, &a.Summary, &a.URL, &a.Source, &a.PublishedAt, &a.Popularity, &a.Language); err != nil {
			return nil, fmt.Errorf("scan cluster member: %w", err)
		}
		a.PublishedAt = a.PublishedAt.UTC()
		out[clusterID] = append(out[clusterID], a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cluster members: %w", err)
	}
	return out, nil
}

// SaveBatch persists the articles seen in a batch, every cluster the batch
// touched and one batch_runs row, in a single transaction.
func (p *Pool) SaveBatch(ctx context.Context, batch pipeline.BatchRecord) error {
	touched := make(map[string]struct{}, len(batch.Result.Touched))
	for _, id := range batch.Result.Touched {
		touched[id] = struct{}{}
	}

	return p.WithTx(ctx, func(tx Tx) error {
		for _, a := range batchArticles(batch) {
			if err := upsertArticle(ctx, tx, a); err != nil {
				return err
			}
		}
		for _, c := range batch.Result.Clusters {
			if _, ok := touched[c.ID]; !ok {
				continue
			}
			if err := upsertCluster(ctx, tx, c); err != nil {
				return err
			}
		}
		return insertBatchRun(ctx, tx, batch)
	})
}

func insertBatchRun(ctx context.Context, tx Tx, batch pipeline.BatchRecord) error {
	var errMessage *string
	if batch.Result.Err != nil {
		msg := batch.Result.Err.Error()
		errMessage = &msg
	}

	const q = `
INSERT INTO news.batch_runs (
	batch_uuid,
	articles_in,
	duplicates_removed,
	exact_duplicates,
	clusters_formed,
	clusters_touched,
	unclustered,
	fallback,
	error_message,
	created_at
) VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`
	if _, err := tx.Exec(ctx, q,
		batch.BatchID,
		len(batch.Articles),
		batch.Result.DuplicatesRemoved,
		batch.Result.ExactDuplicates,
		batch.Result.ClustersFormed,
		len(batch.Result.Touched),
		len(batch.Result.Unclustered),
		batch.Result.Fallback,
		errMessage,
		batch.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("insert batch run %s: %w", batch.BatchID, err)
	}
	return nil
}

// batchArticles returns the input articles plus any member of a touched
// cluster, first occurrence winning.
func batchArticles(batch pipeline.BatchRecord) []news.Article {
	seen := make(map[string]struct{}, len(batch.Articles))
	out := make([]news.Article, 0, len(batch.Articles))
	add := func(a news.Article) {
		if _, ok := seen[a.ID]; ok {
			return
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	for _, a := range batch.Articles {
		add(a)
	}
	touched := make(map[string]struct{}, len(batch.Result.Touched))
	for _, id := range batch.Result.Touched {
		touched[id] = struct{}{}
	}
	for _, c := range batch.Result.Clusters {
		if _, ok := touched[c.ID]; !ok {
			continue
		}
		for _, m := range c.Members {
			add(m)
		}
	}
	return out
}

func upsertArticle(ctx context.Context, tx Tx, a news.Article) error {
	const q = `
INSERT INTO news.articles (
	article_key,
	source,
	title,
	summary,
	url,
	canonical_url,
	language,
	published_at,
	popularity
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (article_key) DO UPDATE SET
	title = EXCLUDED.title,
	summary = EXCLUDED.summary,
	popularity = EXCLUDED.popularity,
	language = EXCLUDED.language,
	updated_at = now()
`
	language := strings.TrimSpace(a.Language)
	if language == "" {
		language = "und"
	}
	if _, err := tx.Exec(ctx, q,
		a.ID,
		a.Source,
		a.Title,
		a.Summary,
		a.URL,
		textnorm.CanonicalURL(a.URL),
		language,
		a.PublishedAt.UTC(),
		a.Popularity,
	); err != nil {
		return fmt.Errorf("upsert article %s: %w", a.ID, err)
	}
	return nil
}

func upsertCluster(ctx context.Context, tx Tx, c news.Cluster) error {
	const q = `
INSERT INTO news.clusters (
	cluster_uuid,
	representative_article_key,
	topic,
	score,
	velocity,
	status,
	created_at,
	updated_at
) VALUES ($1::uuid, $2, $3, $4, $5, 'active', $6, $7)
ON CONFLICT (cluster_uuid) DO UPDATE SET
	representative_article_key = EXCLUDED.representative_article_key,
	topic = EXCLUDED.topic,
	score = EXCLUDED.score,
	velocity = EXCLUDED.velocity,
	updated_at = EXCLUDED.updated_at
`
	if _, err := tx.Exec(ctx, q,
		c.ID,
		c.Representative.ID,
		c.Topic,
		c.Score,
		c.Velocity,
		c.CreatedAt.UTC(),
		c.UpdatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("upsert cluster %s: %w", c.ID, err)
	}

	const insertMember = `
INSERT INTO news.cluster_members (cluster_uuid, article_key, position)
VALUES ($1::uuid, $2, $3)
ON CONFLICT (cluster_uuid, article_key) DO UPDATE SET position = EXCLUDED.position
`
	for i, m := range c.Members {
		if _, err := tx.Exec(ctx, insertMember, c.ID, m.ID, i); err != nil {
			return fmt.Errorf("insert member %s of cluster %s: %w", m.ID, c.ID, err)
		}
	}
	return nil
}

// RetireClusters marks active clusters created before cutoff as retired.
func (p *Pool) RetireClusters(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `
UPDATE news.clusters
SET status = 'retired',
	retired_at = now()
WHERE status = 'active'
  AND created_at < $1
`
	tag, err := p.Exec(ctx, q, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("retire clusters: %w", err)
	}
	return tag.RowsAffected(), nil
}
