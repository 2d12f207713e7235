package dedup

import (
	"fmt"
	"math"
	"time"

	"github.com/S4DIB/news-hud-sub001/internal/news"
	"github.com/S4DIB/news-hud-sub001/internal/textnorm"
)

const (
	urlDuplicateThreshold    = 0.90
	titleDuplicateThreshold  = 0.85
	titlePairedThreshold     = 0.70
	contentPairedThreshold   = 0.75
	containedTitleMinJaccard = 0.60
	containedTitleMinOverlap = 4
	timeProximityWindow      = 24 * time.Hour
	overallTitleWeight       = 0.4
	overallContentWeight     = 0.3
	overallTimeWeight        = 0.2
	overallSourceWeight      = 0.1
)

// Similarity holds the component scores of one pairwise comparison.
type Similarity struct {
	URL           float64
	Title         float64
	Content       float64
	TimeProximity float64
	SourceMatch   float64
	Overall       float64

	titleContainment float64
	titleOverlap     int
}

// Compare scores article a against article b.
func Compare(a, b news.Article) Similarity {
	var s Similarity
	s.URL = URLSimilarity(a.URL, b.URL)

	titleA := textnorm.TokenSet(textnorm.Tokenize(a.Title))
	titleB := textnorm.TokenSet(textnorm.Tokenize(b.Title))
	s.Title = textnorm.Jaccard(titleA, titleB)
	s.titleContainment, s.titleOverlap = textnorm.Containment(titleA, titleB)

	s.Content = textnorm.Jaccard(
		textnorm.TokenSet(textnorm.Tokenize(a.Summary)),
		textnorm.TokenSet(textnorm.Tokenize(b.Summary)),
	)
	s.TimeProximity = TimeProximity(a.PublishedAt, b.PublishedAt)
	if a.Source == b.Source {
		s.SourceMatch = 1
	}

	s.Overall = overallTitleWeight*s.Title +
		overallContentWeight*s.Content +
		overallTimeWeight*s.TimeProximity +
		overallSourceWeight*s.SourceMatch
	return s
}

// URLSimilarity is 1 for identical canonical URLs, the Jaccard of path tokens when
// the hosts match, and 0 otherwise.
func URLSimilarity(left, right string) float64 {
	canonicalLeft := textnorm.CanonicalURL(left)
	canonicalRight := textnorm.CanonicalURL(right)
	if canonicalLeft != "" && canonicalLeft == canonicalRight {
		return 1
	}
	hostLeft := textnorm.Host(canonicalLeft)
	if hostLeft == "" || hostLeft != textnorm.Host(canonicalRight) {
		return 0
	}
	return textnorm.Jaccard(
		textnorm.TokenSet(textnorm.PathTokens(canonicalLeft)),
		textnorm.TokenSet(textnorm.PathTokens(canonicalRight)),
	)
}

// TimeProximity decays linearly from 1 at equal timestamps to 0 at 24 hours apart.
func TimeProximity(a, b time.Time) float64 {
	delta := math.Abs(a.Sub(b).Hours())
	return math.Max(0, 1-delta/timeProximityWindow.Hours())
}

// Verdict turns a comparison into a duplicate decision. The overall score is
// reported but only URL, title and content similarity decide.
func (s Similarity) Verdict() (bool, string) {
	switch {
	case s.URL > urlDuplicateThreshold:
		return true, fmt.Sprintf("URL similarity %.2f", s.URL)
	case s.Title > titleDuplicateThreshold:
		return true, fmt.Sprintf("title similarity %.2f", s.Title)
	case s.Title > titlePairedThreshold && s.Content > contentPairedThreshold:
		return true, fmt.Sprintf("title similarity %.2f with content similarity %.2f", s.Title, s.Content)
	case s.titleContainment == 1 && s.titleOverlap >= containedTitleMinOverlap && s.Title > containedTitleMinJaccard:
		return true, fmt.Sprintf("title similarity %.2f, shorter title fully contained", s.Title)
	default:
		return false, fmt.Sprintf("not a duplicate (title %.2f, content %.2f, overall %.2f)", s.Title, s.Content, s.Overall)
	}
}

// Score is the similarity reported alongside a verdict.
func (s Similarity) Score() float64 {
	if s.URL > urlDuplicateThreshold {
		return s.URL
	}
	return s.Overall
}
