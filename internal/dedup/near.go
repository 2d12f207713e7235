package dedup

import "github.com/S4DIB/news-hud-sub001/internal/news"

// Check compares candidate with every accepted article in order and returns the
// first duplicate verdict, or a non-duplicate result carrying the best score seen.
func Check(candidate news.Article, accepted []news.Article) news.DuplicateResult {
	best := news.DuplicateResult{Reasoning: "no earlier article to compare"}
	for i := range accepted {
		sim := Compare(candidate, accepted[i])
		isDup, reasoning := sim.Verdict()
		if isDup {
			original := accepted[i]
			return news.DuplicateResult{
				IsDuplicate: true,
				Similarity:  sim.Score(),
				Original:    &original,
				Reasoning:   reasoning,
			}
		}
		if i == 0 || sim.Score() > best.Similarity {
			best = news.DuplicateResult{Similarity: sim.Score(), Reasoning: reasoning}
		}
	}
	return best
}

// FilterNear walks articles left to right and drops every article that is a
// near-duplicate of one already kept. The first member of a group always survives.
func FilterNear(articles []news.Article) (kept []news.Article, duplicates []news.Article, results []news.DuplicateResult) {
	kept = make([]news.Article, 0, len(articles))
	for _, article := range articles {
		result := Check(article, kept)
		if result.IsDuplicate {
			duplicates = append(duplicates, article)
			results = append(results, result)
			continue
		}
		kept = append(kept, article)
	}
	return kept, duplicates, results
}
