package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/S4DIB/news-hud-sub001/internal/news"
)

// MemoryStore keeps clusters in process. It backs --dry-run runs and tests.
type MemoryStore struct {
	mu       sync.Mutex
	clusters map[string]news.Cluster
	retired  map[string]struct{}
	batches  []BatchRecord
}

func NewMemoryStore(seed ...news.Cluster) *MemoryStore {
	s := &MemoryStore{
		clusters: make(map[string]news.Cluster, len(seed)),
		retired:  make(map[string]struct{}),
	}
	for _, c := range seed {
		s.clusters[c.ID] = c.Clone()
	}
	return s
}

func (s *MemoryStore) LoadActiveClusters(_ context.Context, limit int) ([]news.Cluster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]news.Cluster, 0, len(s.clusters))
	for id, c := range s.clusters {
		if _, gone := s.retired[id]; gone {
			continue
		}
		active = append(active, c.Clone())
	}
	sortClusters(active)
	if limit > 0 && len(active) > limit {
		active = active[:limit]
	}
	return active, nil
}

func (s *MemoryStore) SaveBatch(_ context.Context, batch BatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	touched := make(map[string]struct{}, len(batch.Result.Touched))
	for _, id := range batch.Result.Touched {
		touched[id] = struct{}{}
	}
	for _, c := range batch.Result.Clusters {
		if _, ok := touched[c.ID]; ok {
			s.clusters[c.ID] = c.Clone()
		}
	}
	s.batches = append(s.batches, batch)
	return nil
}

// RetireClusters marks clusters created before cutoff as retired.
func (s *MemoryStore) RetireClusters(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, c := range s.clusters {
		if _, gone := s.retired[id]; gone {
			continue
		}
		if c.CreatedAt.Before(cutoff) {
			s.retired[id] = struct{}{}
			n++
		}
	}
	return n, nil
}

// Clusters returns every stored cluster, newest update first.
func (s *MemoryStore) Clusters() []news.Cluster {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]news.Cluster, 0, len(s.clusters))
	for _, c := range s.clusters {
		out = append(out, c.Clone())
	}
	sortClusters(out)
	return out
}

// Batches returns the number of batches saved so far.
func (s *MemoryStore) Batches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func sortClusters(clusters []news.Cluster) {
	sort.SliceStable(clusters, func(i, j int) bool {
		if !clusters[i].UpdatedAt.Equal(clusters[j].UpdatedAt) {
			return clusters[i].UpdatedAt.After(clusters[j].UpdatedAt)
		}
		return clusters[i].ID < clusters[j].ID
	})
}
