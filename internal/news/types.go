package news

import (
	"fmt"
	"time"
)

// MaxClusterSize bounds the number of members a cluster may hold.
const MaxClusterSize = 10

// Article is one harvested item as produced by a feed adapter.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	Popularity  float64   `json:"popularity"`
	Language    string    `json:"language,omitempty"`
}

// Text returns the title and summary joined for keyword extraction.
func (a Article) Text() string {
	if a.Summary == "" {
		return a.Title
	}
	return a.Title + " " + a.Summary
}

// Cluster groups articles believed to describe the same event.
type Cluster struct {
	ID             string    `json:"id"`
	Representative Article   `json:"representative"`
	Members        []Article `json:"members"`
	Score          float64   `json:"score"`
	Topic          string    `json:"topic"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Velocity       float64   `json:"velocity"`
}

// Clone returns a copy that shares no slice storage with c.
func (c Cluster) Clone() Cluster {
	out := c
	out.Members = append([]Article(nil), c.Members...)
	return out
}

// Validate reports the first violated cluster invariant.
func (c Cluster) Validate() error {
	if len(c.Members) == 0 {
		return fmt.Errorf("cluster %q has no members", c.ID)
	}
	if len(c.Members) > MaxClusterSize {
		return fmt.Errorf("cluster %q has %d members, max %d", c.ID, len(c.Members), MaxClusterSize)
	}
	if !c.HasMember(c.Representative.ID) {
		return fmt.Errorf("cluster %q representative %q is not a member", c.ID, c.Representative.ID)
	}
	if c.UpdatedAt.Before(c.CreatedAt) {
		return fmt.Errorf("cluster %q updated_at precedes created_at", c.ID)
	}
	return nil
}

// HasMember reports whether an article with the given ID belongs to the cluster.
func (c Cluster) HasMember(articleID string) bool {
	for _, m := range c.Members {
		if m.ID == articleID {
			return true
		}
	}
	return false
}

// CloneClusters deep-copies a cluster collection.
func CloneClusters(clusters []Cluster) []Cluster {
	if clusters == nil {
		return nil
	}
	out := make([]Cluster, len(clusters))
	for i, c := range clusters {
		out[i] = c.Clone()
	}
	return out
}

// DuplicateResult is the verdict of comparing one article against earlier ones.
type DuplicateResult struct {
	IsDuplicate bool
	Similarity  float64
	Original    *Article
	Reasoning   string
}
