package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// ClusterSummary is the read model for cluster list endpoints.
type ClusterSummary struct {
	ClusterUUID         string    `json:"cluster_uuid"`
	Topic               string    `json:"topic"`
	Score               float64   `json:"score"`
	Velocity            float64   `json:"velocity"`
	Status              string    `json:"status"`
	MemberCount         int       `json:"member_count"`
	RepresentativeKey   string    `json:"representative_article_key"`
	RepresentativeTitle string    `json:"representative_title"`
	RepresentativeURL   string    `json:"representative_url"`
	RepresentativeFrom  string    `json:"representative_source"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// ClusterListOptions filters ListClusters. Empty fields are ignored.
type ClusterListOptions struct {
	Topic  string
	Status string
	Since  time.Time
	Sort   string
	Limit  int
	Offset int
}

// ClusterDetail is one cluster with its members in admission order.
type ClusterDetail struct {
	Cluster ClusterSummary     `json:"cluster"`
	Members []ClusterMemberRow `json:"members"`
}

// ClusterMemberRow is an article row within a cluster.
type ClusterMemberRow struct {
	Position    int       `json:"position"`
	ArticleKey  string    `json:"article_key"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Language    string    `json:"language"`
	Popularity  float64   `json:"popularity"`
	PublishedAt time.Time `json:"published_at"`
}

var clusterSortColumns = map[string]string{
	"":         "c.updated_at DESC",
	"updated":  "c.updated_at DESC",
	"score":    "c.score DESC",
	"velocity": "c.velocity DESC",
	"created":  "c.created_at DESC",
}

// IsClusterSort reports whether ListClusters accepts sort.
func IsClusterSort(sort string) bool {
	_, ok := clusterSortColumns[strings.ToLower(strings.TrimSpace(sort))]
	return ok
}

func clusterSummaryQuery() sq.SelectBuilder {
	return psql.
		Select(
			"c.cluster_uuid::text",
			"c.topic",
			"c.score",
			"c.velocity",
			"c.status",
			"(SELECT COUNT(*) FROM news.cluster_members m WHERE m.cluster_uuid = c.cluster_uuid) AS member_count",
			"c.representative_article_key",
			"COALESCE(a.title, '')",
			"COALESCE(a.url, '')",
			"COALESCE(a.source, '')",
			"c.created_at",
			"c.updated_at",
		).
		From("news.clusters c").
		LeftJoin("news.articles a ON a.article_key = c.representative_article_key")
}

// BuildListClustersQuery renders the SQL and arguments for ListClusters.
func BuildListClustersQuery(opts ClusterListOptions) (string, []any, error) {
	if opts.Limit <= 0 {
		return "", nil, fmt.Errorf("limit must be > 0")
	}
	if opts.Offset < 0 {
		return "", nil, fmt.Errorf("offset must be >= 0")
	}
	order, ok := clusterSortColumns[strings.ToLower(strings.TrimSpace(opts.Sort))]
	if !ok {
		return "", nil, fmt.Errorf("unsupported sort %q", opts.Sort)
	}

	query := clusterSummaryQuery()
	if topic := strings.TrimSpace(opts.Topic); topic != "" {
		query = query.Where(sq.Eq{"c.topic": topic})
	}
	switch status := strings.ToLower(strings.TrimSpace(opts.Status)); status {
	case "", "all":
	case ClusterStatusActive, ClusterStatusRetired:
		query = query.Where(sq.Eq{"c.status": status})
	default:
		return "", nil, fmt.Errorf("unsupported status %q", opts.Status)
	}
	if !opts.Since.IsZero() {
		query = query.Where(sq.GtOrEq{"c.updated_at": opts.Since.UTC()})
	}

	return query.
		OrderBy(order, "c.cluster_uuid").
		Limit(uint64(opts.Limit)).
		Offset(uint64(opts.Offset)).
		ToSql()
}

// ListClusters returns cluster summaries matching opts.
func (p *Pool) ListClusters(ctx context.Context, opts ClusterListOptions) ([]ClusterSummary, error) {
	q, args, err := BuildListClustersQuery(opts)
	if err != nil {
		return nil, err
	}

	rows, err := p.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query clusters: %w", err)
	}
	defer rows.Close()

	items := make([]ClusterSummary, 0, opts.Limit)
	for rows.Next() {
		item, err := scanClusterSummary(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clusters: %w", err)
	}
	return items, nil
}

// GetCluster loads one cluster by UUID. It returns ErrNoRows when absent.
func (p *Pool) GetCluster(ctx context.Context, clusterUUID string) (*ClusterDetail, error) {
	q, args, err := clusterSummaryQuery().
		Where(sq.Eq{"c.cluster_uuid::text": strings.TrimSpace(clusterUUID)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build cluster query: %w", err)
	}

	rows, err := p.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query cluster %s: %w", clusterUUID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query cluster %s: %w", clusterUUID, err)
		}
		return nil, ErrNoRows
	}
	summary, err := scanClusterSummary(rows)
	if err != nil {
		return nil, err
	}
	rows.Close()

	const membersQuery = `
SELECT
	m.position,
	a.article_key,
	a.title,
	a.url,
	a.source,
	a.language,
	a.popularity,
	a.published_at
FROM news.cluster_members m
JOIN news.articles a
	ON a.article_key = m.article_key
WHERE m.cluster_uuid = $1::uuid
ORDER BY m.position
`
	memberRows, err := p.Query(ctx, membersQuery, summary.ClusterUUID)
	if err != nil {
		return nil, fmt.Errorf("query members of cluster %s: %w", clusterUUID, err)
	}
	defer memberRows.Close()

	detail := &ClusterDetail{Cluster: summary, Members: make([]ClusterMemberRow, 0, summary.MemberCount)}
	for memberRows.Next() {
		var m ClusterMemberRow
		if err := memberRows.Scan(&m.Position, &m.ArticleKey, &m.Title, &m.URL, &m.Source, &m.Language, &m.Popularity, &m.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan cluster member: %w", err)
		}
		m.PublishedAt = m.PublishedAt.UTC()
		detail.Members = append(detail.Members, m)
	}
	if err := memberRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cluster members: %w", err)
	}
	return detail, nil
}

func scanClusterSummary(rows *Rows) (ClusterSummary, error) {
	var item ClusterSummary
	if err := rows.Scan(
		&item.ClusterUUID,
		&item.Topic,
		&item.Score,
		&item.Velocity,
		&item.Status,
		&item.MemberCount,
		&item.RepresentativeKey,
		&item.RepresentativeTitle,
		&item.RepresentativeURL,
		&item.RepresentativeFrom,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return ClusterSummary{}, fmt.Errorf("scan cluster summary: %w", err)
	}
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return item, nil
}
