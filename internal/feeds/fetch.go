package feeds

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/S4DIB/news-hud-sub001/internal/globaltime"
	"github.com/S4DIB/news-hud-sub001/internal/ingest"
	"github.com/S4DIB/news-hud-sub001/internal/news"
	"github.com/S4DIB/news-hud-sub001/internal/reader"
)

const (
	DefaultTimeout = 20 * time.Second
	userAgent      = "news-hud-feeds/1.0"
)

// Fetcher downloads feeds and converts their items.
type Fetcher struct {
	client *http.Client
	logger zerolog.Logger
	now    func() time.Time
}

func NewFetcher(client *http.Client, logger zerolog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Fetcher{client: client, logger: logger, now: globaltime.UTC}
}

// FetchAll pulls every feed in order. A failing feed is logged and skipped so
// one broken source does not block the batch.
func (f *Fetcher) FetchAll(ctx context.Context, feeds []Feed) []news.Article {
	var articles []news.Article
	ok := 0
	for _, feed := range feeds {
		items, err := f.Fetch(ctx, feed)
		if err != nil {
			f.logger.Warn().Err(err).Str("feed", feed.Name).Str("url", feed.URL).Msg("feed fetch failed")
			continue
		}
		ok++
		articles = append(articles, items...)
		f.logger.Debug().Str("feed", feed.Name).Int("items", len(items)).Msg("feed fetched")
	}
	f.logger.Info().Int("feeds_ok", ok).Int("feeds_total", len(feeds)).Int("articles", len(articles)).Msg("feeds processed")
	return articles
}

// Fetch downloads and parses one feed.
func (f *Fetcher) Fetch(ctx context.Context, feed Feed) ([]news.Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	parsed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return f.convert(feed, parsed), nil
}

// ParseString converts an in-memory feed document. Used by tests and by
// callers that already hold the body.
func (f *Fetcher) ParseString(feed Feed, body string) ([]news.Article, error) {
	parsed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return f.convert(feed, parsed), nil
}

func (f *Fetcher) convert(feed Feed, parsed *gofeed.Feed) []news.Article {
	fetchedAt := f.now()
	out := make([]news.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil || strings.TrimSpace(item.Title) == "" || strings.TrimSpace(item.Link) == "" {
			continue
		}

		key := strings.TrimSpace(item.GUID)
		if key == "" {
			key = strings.TrimSpace(item.Link)
		}

		published := fetchedAt
		switch {
		case item.PublishedParsed != nil:
			published = *item.PublishedParsed
		case item.UpdatedParsed != nil:
			published = *item.UpdatedParsed
		}

		summary := item.Description
		if strings.TrimSpace(summary) == "" {
			summary = item.Content
		}
		text, err := reader.HTMLToText(summary)
		if err != nil {
			f.logger.Debug().Err(err).Str("feed", feed.Name).Str("item", key).Msg("item description is not parseable html")
			text = ""
		}

		out = append(out, ingest.Finish(news.Article{
			ID:          feed.Name + ":" + key,
			Title:       item.Title,
			Summary:     text,
			URL:         item.Link,
			Source:      feed.SourceName(),
			PublishedAt: published,
			Popularity:  feed.BasePopularity(),
			Language:    parsed.Language,
		}))
	}
	return out
}
