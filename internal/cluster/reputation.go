package cluster

import "strings"

// DefaultSourceReputation applies to sources missing from the reputation table.
const DefaultSourceReputation = 0.5

var sourceReputation = map[string]float64{
	"reuters":     0.95,
	"apnews":      0.95,
	"bbc":         0.90,
	"bloomberg":   0.90,
	"arstechnica": 0.85,
	"techcrunch":  0.85,
	"theverge":    0.80,
	"hackernews":  0.75,
	"lobsters":    0.70,
	"newsletter":  0.70,
	"reddit":      0.60,
	"mastodon":    0.55,
	"bluesky":     0.55,
	"twitter":     0.50,
	"x":           0.50,
}

// SourceReputation returns the static reputation score of a source name.
func SourceReputation(source string) float64 {
	key := strings.ToLower(strings.TrimSpace(source))
	if score, ok := sourceReputation[key]; ok {
		return score
	}
	return DefaultSourceReputation
}
