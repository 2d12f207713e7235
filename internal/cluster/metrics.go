package cluster

import (
	"math"
	"time"

	"github.com/S4DIB/news-hud-sub001/internal/news"
)

// UpdateMetrics recomputes Score and Velocity for every cluster whose ID is in
// touched. Nothing else on the cluster changes.
func UpdateMetrics(clusters []news.Cluster, touched map[string]struct{}, now time.Time) {
	for i := range clusters {
		if _, ok := touched[clusters[i].ID]; !ok {
			continue
		}
		clusters[i].Score = MeanPopularity(clusters[i].Members)
		clusters[i].Velocity = Velocity(len(clusters[i].Members), clusters[i].CreatedAt, now)
	}
}

// MeanPopularity is the arithmetic mean of member popularity scores.
func MeanPopularity(members []news.Article) float64 {
	if len(members) == 0 {
		return 0
	}
	var sum float64
	for _, m := range members {
		sum += m.Popularity
	}
	return sum / float64(len(members))
}

// Velocity is members per hour of cluster age, with age floored at one hour.
func Velocity(members int, createdAt, now time.Time) float64 {
	age := math.Max(1, now.Sub(createdAt).Hours())
	return float64(members) / age
}
