// Package dedup removes exact and near-duplicate articles from a batch.
package dedup

import (
	"strings"

	"github.com/S4DIB/news-hud-sub001/internal/news"
	"github.com/S4DIB/news-hud-sub001/internal/textnorm"
)

// ExactKey is the identity used for exact-duplicate detection.
func ExactKey(a news.Article) string {
	return textnorm.CanonicalURL(a.URL) + "::" + strings.ToLower(strings.TrimSpace(a.Title))
}

// FilterExact keeps the first article for every exact key and counts the rest.
func FilterExact(articles []news.Article) ([]news.Article, int) {
	seen := make(map[string]struct{}, len(articles))
	unique := make([]news.Article, 0, len(articles))
	removed := 0
	for _, article := range articles {
		key := ExactKey(article)
		if _, ok := seen[key]; ok {
			removed++
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, article)
	}
	return unique, removed
}
