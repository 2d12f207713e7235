package cluster

import (
	"strings"
	"unicode"

	"github.com/S4DIB/news-hud-sub001/internal/news"
	"github.com/S4DIB/news-hud-sub001/internal/textnorm"
)

// DefaultTopic labels clusters whose seed title matches no bucket.
const DefaultTopic = "General"

type topicBucket struct {
	Label    string
	Keywords map[string]struct{}
}

func bucket(label string, keywords ...string) topicBucket {
	return topicBucket{Label: label, Keywords: textnorm.TokenSet(keywords)}
}

// topicBuckets is evaluated in order; the first bucket sharing a word with the title wins.
var topicBuckets = []topicBucket{
	bucket("AI & Automation",
		"ai", "artificial", "intelligence", "machine", "learning", "llm", "llms", "gpt",
		"openai", "anthropic", "neural", "model", "models", "chatbot", "agent", "agents",
		"automation", "robot", "robots", "robotics"),
	bucket("Markets & Finance",
		"market", "markets", "stock", "stocks", "shares", "finance", "funding", "raises",
		"ipo", "investors", "investment", "bank", "banks", "economy", "inflation", "rates",
		"crypto", "bitcoin", "earnings", "revenue", "valuation"),
	bucket("Policy & Governance",
		"government", "policy", "regulation", "regulators", "law", "laws", "congress",
		"senate", "parliament", "election", "court", "ban", "minister", "president",
		"bill", "tariff", "tariffs", "sanctions", "eu"),
	bucket("Security",
		"security", "breach", "hack", "hacked", "hackers", "vulnerability", "ransomware",
		"malware", "exploit", "cyber", "cve", "leak", "leaked", "phishing"),
	bucket("Science & Health",
		"science", "research", "researchers", "study", "space", "nasa", "climate",
		"vaccine", "health", "medical", "disease", "drug", "physics", "biology"),
	bucket("Developer Tools",
		"github", "programming", "developer", "developers", "rust", "golang", "python",
		"javascript", "typescript", "framework", "library", "api", "database", "compiler",
		"linux", "kubernetes"),
	bucket("Business",
		"startup", "startups", "acquisition", "acquires", "merger", "layoffs", "ceo",
		"company", "companies", "launches", "product"),
}

// ClassifyTopic labels a title with the first matching topic bucket.
func ClassifyTopic(title string) string {
	words := titleWords(title)
	for _, b := range topicBuckets {
		for _, w := range words {
			if _, ok := b.Keywords[w]; ok {
				return b.Label
			}
		}
	}
	return DefaultTopic
}

// TopicSimilarity is the Jaccard similarity of the keyword sets extracted from
// both articles' title and summary.
func TopicSimilarity(a, b news.Article) float64 {
	return textnorm.Jaccard(
		textnorm.TokenSet(textnorm.Keywords(a.Text())),
		textnorm.TokenSet(textnorm.Keywords(b.Text())),
	)
}

// titleWords keeps short words so acronyms such as "AI" or "EU" can match a bucket.
func titleWords(title string) []string {
	return strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
