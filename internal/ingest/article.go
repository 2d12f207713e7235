// Package ingest converts adapter payloads into news.Article values ready for a
// dedup batch.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/S4DIB/news-hud-sub001/internal/langdetect"
	"github.com/S4DIB/news-hud-sub001/internal/news"
	"github.com/S4DIB/news-hud-sub001/internal/reader"
	payloadschema "github.com/S4DIB/news-hud-sub001/schema"
)

// FromPayload maps a validated payload to an Article. HTML bodies are reduced to
// a plain-text summary when no summary was supplied.
func FromPayload(p payloadschema.ArticlePayload) (news.Article, error) {
	published, err := p.PublishedTime()
	if err != nil {
		return news.Article{}, err
	}

	article := news.Article{
		ID:          strings.TrimSpace(p.ID),
		Title:       p.Title,
		URL:         strings.TrimSpace(p.URL),
		Source:      p.Source,
		PublishedAt: published,
		Popularity:  p.Popularity,
	}
	if p.Summary != nil {
		article.Summary = *p.Summary
	}
	if strings.TrimSpace(article.Summary) == "" && p.BodyHTML != nil {
		text, err := reader.HTMLToText(*p.BodyHTML)
		if err != nil {
			return news.Article{}, fmt.Errorf("extract body_html of %s: %w", article.ID, err)
		}
		article.Summary = text
	}
	if p.Language != nil {
		article.Language = *p.Language
	}
	return Finish(article), nil
}

// FromPayloads converts a batch, stopping at the first bad item.
func FromPayloads(items []payloadschema.ArticlePayload) ([]news.Article, error) {
	out := make([]news.Article, 0, len(items))
	for i, item := range items {
		article, err := FromPayload(item)
		if err != nil {
			return nil, fmt.Errorf("articles[%d]: %w", i, err)
		}
		out = append(out, article)
	}
	return out, nil
}

// Finish trims text fields, clamps popularity to [0,1], flattens the summary and
// resolves the language tag.
func Finish(a news.Article) news.Article {
	a.Title = strings.Join(strings.Fields(a.Title), " ")
	a.Source = strings.ToLower(strings.TrimSpace(a.Source))
	a.URL = strings.TrimSpace(a.URL)
	a.PublishedAt = a.PublishedAt.UTC()
	a.Summary = reader.Summarize(a.Summary, reader.DefaultSummaryRunes)
	a.Popularity = min(1, max(0, a.Popularity))
	a.Language = langdetect.Resolve(a.Language, a.Text())
	return a
}

// TextFetcher retrieves readable text for a page URL.
type TextFetcher func(ctx context.Context, pageURL string) (string, error)

// Enricher fills empty summaries from the article page itself.
type Enricher struct {
	fetch       TextFetcher
	concurrency int
	logger      zerolog.Logger
}

func NewEnricher(fetch TextFetcher, concurrency int, logger zerolog.Logger) *Enricher {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Enricher{fetch: fetch, concurrency: concurrency, logger: logger}
}

// FillSummaries fetches text for every article without a summary and returns
// how many were filled. Fetch failures are logged and skipped.
func (e *Enricher) FillSummaries(ctx context.Context, articles []news.Article) int {
	if e == nil || e.fetch == nil {
		return 0
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		filled int
		sem    = make(chan struct{}, e.concurrency)
	)
	for i := range articles {
		if strings.TrimSpace(articles[i].Summary) != "" || articles[i].URL == "" {
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			text, err := e.fetch(ctx, articles[i].URL)
			if err != nil {
				e.logger.Debug().Err(err).Str("article_id", articles[i].ID).Str("url", articles[i].URL).Msg("full-text fetch failed")
				return
			}
			articles[i].Summary = reader.Summarize(text, reader.DefaultSummaryRunes)
			articles[i].Language = langdetect.Resolve(articles[i].Language, articles[i].Text())

			mu.Lock()
			filled++
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	return filled
}
