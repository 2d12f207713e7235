package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/S4DIB/news-hud-sub001/internal/cluster"
	"github.com/S4DIB/news-hud-sub001/internal/globaltime"
	"github.com/S4DIB/news-hud-sub001/internal/news"
)

var batchNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func testOptions() cluster.Options {
	return cluster.Options{Now: globaltime.Fixed(batchNow)}
}

func newsArticle(id, title, url, source string) news.Article {
	return news.Article{
		ID:          id,
		Title:       title,
		URL:         url,
		Source:      source,
		PublishedAt: batchNow,
		Popularity:  0.5,
	}
}

func TestDeduplicateAndCluster_ExactAndNearDuplicates(t *testing.T) {
	t.Parallel()

	articles := []news.Article{
		newsArticle("a", "Company X raises $50M Series B", "https://techwire.test/company-x-funding", "reddit"),
		newsArticle("a2", "Company X raises $50M Series B", "https://techwire.test/company-x-funding?utm_source=feed", "reddit"),
		newsArticle("b", "company x raises $50m series b funding round", "https://startupdaily.test/x-series-b", "hackernews"),
	}
	articles[2].PublishedAt = batchNow.Add(10 * time.Minute)

	result := NewRunner(zerolog.Nop(), testOptions()).DeduplicateAndCluster(articles, nil)

	if result.Fallback {
		t.Fatalf("unexpected fallback: %v", result.Err)
	}
	if result.DuplicatesRemoved != 2 || result.ExactDuplicates != 1 || len(result.NearDuplicates) != 1 {
		t.Fatalf("unexpected duplicate counts: removed=%d exact=%d near=%d", result.DuplicatesRemoved, result.ExactDuplicates, len(result.NearDuplicates))
	}
	if result.ClustersFormed != 1 || len(result.Clusters) != 1 {
		t.Fatalf("expected one cluster, got formed=%d clusters=%d", result.ClustersFormed, len(result.Clusters))
	}
	c := result.Clusters[0]
	if len(c.Members) != 1 || c.Representative.ID != "a" {
		t.Fatalf("unexpected cluster: %+v", c)
	}
	if c.Topic != "Markets & Finance" {
		t.Fatalf("unexpected topic: %q", c.Topic)
	}
	if len(result.Touched) != 1 || result.Touched[0] != c.ID {
		t.Fatalf("unexpected touched set: %v", result.Touched)
	}
}

func TestDeduplicateAndCluster_DoesNotModifyCallerClusters(t *testing.T) {
	t.Parallel()

	created := batchNow.Add(-time.Hour)
	seed := newsArticle("seed", "Wildfire spreads across northern valley", "https://a.test/fire", "reddit")
	seed.PublishedAt = created
	existing := []news.Cluster{{
		ID:             "c1",
		Representative: seed,
		Members:        []news.Article{seed},
		Score:          0.5,
		Topic:          "General",
		CreatedAt:      created,
		UpdatedAt:      created,
		Velocity:       1,
	}}

	incoming := newsArticle("n", "Wildfire spreads across northern valley", "https://b.test/valley-fire", "bbc")
	result := NewRunner(zerolog.Nop(), testOptions()).DeduplicateAndCluster([]news.Article{incoming}, existing)

	if len(result.Clusters) != 1 || len(result.Clusters[0].Members) != 2 {
		t.Fatalf("expected article to join c1, got %+v", result.Clusters)
	}
	if !result.Clusters[0].UpdatedAt.Equal(batchNow) || result.Clusters[0].Velocity != 2 {
		t.Fatalf("expected refreshed metrics, got updated=%s velocity=%f", result.Clusters[0].UpdatedAt, result.Clusters[0].Velocity)
	}
	if len(existing[0].Members) != 1 || !existing[0].UpdatedAt.Equal(created) {
		t.Fatalf("caller cluster was modified: %+v", existing[0])
	}
}

func TestDeduplicateAndCluster_FallbackOnInvalidCluster(t *testing.T) {
	t.Parallel()

	existing := []news.Cluster{{ID: "empty", CreatedAt: batchNow, UpdatedAt: batchNow}}
	articles := []news.Article{
		newsArticle("a", "Acme unveils orbital delivery drone", "https://a.test/1", "reddit"),
		newsArticle("b", "Acme unveils orbital delivery drone", "https://a.test/1", "reddit"),
	}

	result := NewRunner(zerolog.Nop(), testOptions()).DeduplicateAndCluster(articles, existing)

	if !result.Fallback || result.Err == nil {
		t.Fatalf("expected fallback with error, got %+v", result)
	}
	if result.DuplicatesRemoved != 0 || result.ClustersFormed != 0 {
		t.Fatalf("fallback must report zero counters, got removed=%d formed=%d", result.DuplicatesRemoved, result.ClustersFormed)
	}
	if len(result.Unclustered) != 2 || len(result.Clusters) != 1 || result.Clusters[0].ID != "empty" {
		t.Fatalf("fallback must return input unchanged, got %+v", result)
	}
	if !result.NoImprovement(len(articles)) {
		t.Fatalf("expected fallback to report no improvement")
	}
}

func TestDeduplicateAndCluster_FallbackOnPanic(t *testing.T) {
	t.Parallel()

	runner := NewRunner(zerolog.Nop(), testOptions())
	runner.assign = func([]news.Article, []news.Cluster) cluster.Assignment {
		panic("index out of range")
	}

	articles := []news.Article{newsArticle("a", "Acme unveils orbital delivery drone", "https://a.test/1", "reddit")}
	result := runner.DeduplicateAndCluster(articles, nil)

	if !result.Fallback || result.Err == nil {
		t.Fatalf("expected panic to be converted into fallback, got %+v", result)
	}
	if len(result.Unclustered) != 1 || result.Unclustered[0].ID != "a" || len(result.Clusters) != 0 {
		t.Fatalf("unexpected fallback payload: %+v", result)
	}
}

func TestDeduplicateAndCluster_EmptyInput(t *testing.T) {
	t.Parallel()

	result := NewRunner(zerolog.Nop(), testOptions()).DeduplicateAndCluster(nil, nil)
	if result.Fallback || result.DuplicatesRemoved != 0 || result.ClustersFormed != 0 || len(result.Clusters) != 0 {
		t.Fatalf("unexpected result for empty input: %+v", result)
	}
}

func TestService_PersistsAcrossBatches(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	svc := NewService(store, zerolog.Nop(), testOptions())
	ctx := context.Background()

	first := newsArticle("a", "Acme unveils orbital delivery drone", "https://a.test/drone", "reddit")
	if _, err := svc.ProcessBatch(ctx, []news.Article{first}); err != nil {
		t.Fatalf("first batch: %v", err)
	}

	second := newsArticle("b", "Acme unveils orbital delivery drone", "https://b.test/acme-drone", "reuters")
	second.Popularity = 0.2
	result, err := svc.ProcessBatch(ctx, []news.Article{second})
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if result.ClustersFormed != 0 {
		t.Fatalf("expected second article to join the stored cluster")
	}

	clusters := store.Clusters()
	if len(clusters) != 1 || len(clusters[0].Members) != 2 {
		t.Fatalf("unexpected stored clusters: %+v", clusters)
	}
	if clusters[0].Representative.ID != "b" {
		t.Fatalf("expected reuters article to become representative, got %s", clusters[0].Representative.ID)
	}
	if store.Batches() != 2 {
		t.Fatalf("expected two batch records, got %d", store.Batches())
	}
}

func TestService_ReingestedBatchDoesNotGrowClusters(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	svc := NewService(store, zerolog.Nop(), testOptions())
	ctx := context.Background()

	article := newsArticle("a1", "Volcano erupts near remote island village", "https://a.test/volcano", "reddit")
	for i := 0; i < 3; i++ {
		result, err := svc.ProcessBatch(ctx, []news.Article{article})
		if err != nil {
			t.Fatalf("batch %d: %v", i, err)
		}
		if i > 0 && result.ClustersFormed != 0 {
			t.Fatalf("batch %d: expected no new cluster, got %d", i, result.ClustersFormed)
		}
	}

	clusters := store.Clusters()
	if len(clusters) != 1 {
		t.Fatalf("expected one stored cluster, got %d", len(clusters))
	}
	c := clusters[0]
	if len(c.Members) != 1 || c.Members[0].ID != "a1" {
		t.Fatalf("expected a single member, got %+v", c.Members)
	}
	if c.Score != 0.5 || c.Velocity != 1 {
		t.Fatalf("expected metrics unchanged, got score=%f velocity=%f", c.Score, c.Velocity)
	}
}

func TestService_SerializesConcurrentBatches(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	svc := NewService(store, zerolog.Nop(), testOptions())

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a := newsArticle(fmt.Sprintf("a%d", i), "Satellite launch delayed by weather", fmt.Sprintf("https://wire%d.test/launch", i), "reddit")
			if _, err := svc.ProcessBatch(context.Background(), []news.Article{a}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("batch failed: %v", err)
	}

	clusters := store.Clusters()
	if len(clusters) != 1 {
		t.Fatalf("expected concurrent batches to converge on one cluster, got %d", len(clusters))
	}
	if len(clusters[0].Members) != 8 {
		t.Fatalf("expected 8 members, got %d", len(clusters[0].Members))
	}
}

type failingStore struct {
	loadErr error
	saveErr error
}

func (s failingStore) LoadActiveClusters(context.Context, int) ([]news.Cluster, error) {
	return nil, s.loadErr
}

func (s failingStore) SaveBatch(context.Context, BatchRecord) error {
	return s.saveErr
}

func TestService_ReturnsStoreErrors(t *testing.T) {
	t.Parallel()

	articles := []news.Article{newsArticle("a", "Acme unveils orbital delivery drone", "https://a.test/1", "reddit")}

	loadErr := errors.New("connection refused")
	svc := NewService(failingStore{loadErr: loadErr}, zerolog.Nop(), testOptions())
	if _, err := svc.ProcessBatch(context.Background(), articles); !errors.Is(err, loadErr) {
		t.Fatalf("expected wrapped load error, got %v", err)
	}

	saveErr := errors.New("deadlock detected")
	svc = NewService(failingStore{saveErr: saveErr}, zerolog.Nop(), testOptions())
	result, err := svc.ProcessBatch(context.Background(), articles)
	if !errors.Is(err, saveErr) {
		t.Fatalf("expected wrapped save error, got %v", err)
	}
	if result.ClustersFormed != 1 {
		t.Fatalf("expected the computed result to be returned alongside the save error")
	}
}

func TestMemoryStore_RetireClusters(t *testing.T) {
	t.Parallel()

	old := news.Article{ID: "o", Title: "old"}
	fresh := news.Article{ID: "f", Title: "fresh"}
	store := NewMemoryStore(
		news.Cluster{ID: "old", Representative: old, Members: []news.Article{old}, CreatedAt: batchNow.Add(-80 * time.Hour), UpdatedAt: batchNow.Add(-80 * time.Hour)},
		news.Cluster{ID: "fresh", Representative: fresh, Members: []news.Article{fresh}, CreatedAt: batchNow, UpdatedAt: batchNow},
	)

	n, err := store.RetireClusters(context.Background(), batchNow.Add(-72*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("unexpected retire result: n=%d err=%v", n, err)
	}
	active, _ := store.LoadActiveClusters(context.Background(), 50)
	if len(active) != 1 || active[0].ID != "fresh" {
		t.Fatalf("unexpected active clusters: %+v", active)
	}
}
