package dedup

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/S4DIB/news-hud-sub001/internal/news"
)

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func article(id, title, url, source string) news.Article {
	return news.Article{
		ID:          id,
		Title:       title,
		URL:         url,
		Source:      source,
		PublishedAt: baseTime,
		Popularity:  0.5,
	}
}

func TestFilterExact_RemovesSameURLAndTitle(t *testing.T) {
	t.Parallel()

	articles := []news.Article{
		article("a", "Acme ships orbital drone", "https://example.com/drone?utm_source=rss", "reddit"),
		article("b", "  ACME ships orbital drone ", "https://EXAMPLE.com/drone#top", "hackernews"),
		article("c", "Acme ships orbital drone", "https://other.example.org/drone", "reddit"),
	}

	unique, removed := FilterExact(articles)
	if removed != 1 {
		t.Fatalf("unexpected removed count: got %d want 1", removed)
	}
	if len(unique) != 2 || unique[0].ID != "a" || unique[1].ID != "c" {
		t.Fatalf("unexpected survivors: %+v", unique)
	}
}

func TestFilterExact_Idempotent(t *testing.T) {
	t.Parallel()

	articles := []news.Article{
		article("a", "One", "https://x.test/1", "s"),
		article("b", "one", "https://x.test/1", "s"),
		article("c", "Two", "https://x.test/2", "s"),
		article("d", "Two", "https://x.test/2?page=3", "s"),
	}

	once, removed := FilterExact(articles)
	if removed != 2 {
		t.Fatalf("unexpected first pass removal: %d", removed)
	}
	twice, removedAgain := FilterExact(once)
	if removedAgain != 0 {
		t.Fatalf("expected second pass to remove nothing, removed %d", removedAgain)
	}
	if len(twice) != len(once) {
		t.Fatalf("second pass changed length: %d != %d", len(twice), len(once))
	}
}

func TestURLSimilarity(t *testing.T) {
	t.Parallel()

	if got := URLSimilarity("https://a.test/x/story?ref=1", "https://A.test/x/story"); got != 1 {
		t.Fatalf("expected identical canonical urls to score 1, got %f", got)
	}
	if got := URLSimilarity("https://a.test/news/acme-drone", "https://b.test/news/acme-drone"); got != 0 {
		t.Fatalf("expected different hosts to score 0, got %f", got)
	}
	got := URLSimilarity("https://a.test/news/acme-drone-launch", "https://a.test/news/acme-drone-delay")
	if got <= 0 || got >= 1 {
		t.Fatalf("expected partial path overlap in (0,1), got %f", got)
	}
}

func TestTimeProximity(t *testing.T) {
	t.Parallel()

	if got := TimeProximity(baseTime, baseTime); got != 1 {
		t.Fatalf("expected 1 for equal timestamps, got %f", got)
	}
	if got := TimeProximity(baseTime, baseTime.Add(-12*time.Hour)); got != 0.5 {
		t.Fatalf("expected 0.5 for 12h apart, got %f", got)
	}
	if got := TimeProximity(baseTime, baseTime.Add(30*time.Hour)); got != 0 {
		t.Fatalf("expected 0 beyond 24h, got %f", got)
	}
}

func TestCompare_OverallWeights(t *testing.T) {
	t.Parallel()

	a := article("a", "Acme ships orbital drone", "https://a.test/1", "reddit")
	a.Summary = "the drone reaches low orbit"
	b := article("b", "Acme ships orbital drone", "https://b.test/2", "reddit")
	b.Summary = "the drone reaches low orbit"

	sim := Compare(a, b)
	if sim.Title != 1 || sim.Content != 1 || sim.TimeProximity != 1 || sim.SourceMatch != 1 {
		t.Fatalf("unexpected components: %+v", sim)
	}
	if math.Abs(sim.Overall-1) > 1e-9 {
		t.Fatalf("unexpected overall: %f", sim.Overall)
	}

	b.Source = "hackernews"
	if got := Compare(a, b).Overall; math.Abs(got-0.9) > 1e-9 {
		t.Fatalf("expected overall 0.9 without source match, got %f", got)
	}
}

func TestCheck_NearDuplicateTitleScenario(t *testing.T) {
	t.Parallel()

	first := article("a", "Company X raises $50M Series B", "https://techwire.test/company-x-funding", "reddit")
	second := article("b", "company x raises $50m series b funding round", "https://startupdaily.test/x-series-b", "hackernews")
	second.PublishedAt = first.PublishedAt.Add(10 * time.Minute)

	result := Check(second, []news.Article{first})
	if !result.IsDuplicate {
		t.Fatalf("expected near duplicate, got %+v", result)
	}
	if result.Original == nil || result.Original.ID != "a" {
		t.Fatalf("expected original to be article a, got %+v", result.Original)
	}
	if !strings.Contains(result.Reasoning, "title similarity") {
		t.Fatalf("expected reasoning to cite title similarity, got %q", result.Reasoning)
	}
}

func TestCheck_URLSimilarityShortCircuits(t *testing.T) {
	t.Parallel()

	first := article("a", "Totally different headline", "https://news.test/story/123?src=rss", "reddit")
	second := article("b", "Another wording entirely", "https://news.test/story/123", "twitter")

	result := Check(second, []news.Article{first})
	if !result.IsDuplicate || result.Reasoning != "URL similarity 1.00" {
		t.Fatalf("expected url-based duplicate, got %+v", result)
	}
	if result.Similarity != 1 {
		t.Fatalf("expected similarity 1, got %f", result.Similarity)
	}
}

func TestCheck_TitleAndContentPair(t *testing.T) {
	t.Parallel()

	first := article("a", "Central bank raises interest rates again this week", "https://a.test/1", "reddit")
	first.Summary = "policy makers lifted the benchmark rate by a quarter point citing inflation pressure"
	second := article("b", "Central bank raises interest rates again", "https://b.test/2", "twitter")
	second.Summary = "policy makers lifted the benchmark rate by a quarter point citing inflation"

	result := Check(second, []news.Article{first})
	if !result.IsDuplicate {
		t.Fatalf("expected title+content duplicate, got %+v", result)
	}
	if !strings.Contains(result.Reasoning, "content similarity") {
		t.Fatalf("unexpected reasoning: %q", result.Reasoning)
	}
}

func TestCheck_DissimilarIsNotDuplicate(t *testing.T) {
	t.Parallel()

	first := article("a", "Acme ships orbital drone", "https://a.test/1", "reddit")
	second := article("b", "Parliament passes budget bill", "https://b.test/2", "reddit")

	result := Check(second, []news.Article{first})
	if result.IsDuplicate {
		t.Fatalf("did not expect duplicate: %+v", result)
	}
	if result.Original != nil {
		t.Fatalf("expected no original for non-duplicate")
	}
}

func TestFilterNear_KeepsFirstOccurrence(t *testing.T) {
	t.Parallel()

	first := article("a", "Company X raises $50M Series B", "https://a.test/1", "reddit")
	second := article("b", "company x raises $50m series b funding round", "https://b.test/2", "hackernews")
	third := article("c", "Parliament passes budget bill", "https://c.test/3", "twitter")

	kept, dups, results := FilterNear([]news.Article{second, first, third})
	if len(kept) != 2 || kept[0].ID != "b" || kept[1].ID != "c" {
		t.Fatalf("unexpected kept articles: %+v", kept)
	}
	if len(dups) != 1 || dups[0].ID != "a" {
		t.Fatalf("unexpected duplicates: %+v", dups)
	}
	if len(results) != 1 || results[0].Original.ID != "b" {
		t.Fatalf("unexpected results: %+v", results)
	}
}
