// Package textnorm canonicalizes URLs and turns free text into comparable tokens.
package textnorm

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minTokenRunes   = 3
	minKeywordRunes = 4
	maxKeywords     = 10
)

var stopWords = map[string]struct{}{
	"about": {}, "after": {}, "again": {}, "also": {}, "been": {}, "before": {},
	"being": {}, "between": {}, "could": {}, "does": {}, "each": {}, "from": {},
	"have": {}, "here": {}, "into": {}, "just": {}, "like": {}, "made": {},
	"make": {}, "many": {}, "more": {}, "most": {}, "much": {}, "only": {},
	"other": {}, "over": {}, "said": {}, "says": {}, "should": {}, "some": {},
	"still": {}, "such": {}, "than": {}, "that": {}, "their": {}, "them": {},
	"then": {}, "there": {}, "these": {}, "they": {}, "this": {}, "those": {},
	"through": {}, "under": {}, "very": {}, "were": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "while": {}, "will": {}, "with": {}, "would": {},
	"your": {},
}

// CanonicalURL strips the query string and fragment and lower-cases the result.
// A URL that cannot be parsed degrades to a lower-cased copy of the raw input.
func CanonicalURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return strings.ToLower(trimmed)
	}
	parsed.RawQuery = ""
	parsed.ForceQuery = false
	parsed.Fragment = ""
	parsed.RawFragment = ""
	return strings.ToLower(parsed.String())
}

// Host returns the lower-cased hostname of a URL, or "" when it has none.
func Host(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

// PathTokens tokenizes the path component of a URL.
func PathTokens(raw string) []string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	return Tokenize(parsed.Path)
}

// Tokenize splits text on non-alphanumeric runes, drops tokens shorter than three
// runes and lower-cases the rest. Order and repeats are preserved.
func Tokenize(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if utf8.RuneCountInString(p) < minTokenRunes {
			continue
		}
		tokens = append(tokens, strings.ToLower(p))
	}
	return tokens
}

// Keywords extracts up to ten distinct topic keywords: tokens of at least four runes
// that are not stop words, in first-seen order.
func Keywords(text string) []string {
	seen := make(map[string]struct{})
	keywords := make([]string, 0, maxKeywords)
	for _, token := range Tokenize(text) {
		if utf8.RuneCountInString(token) < minKeywordRunes {
			continue
		}
		if _, stop := stopWords[token]; stop {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		keywords = append(keywords, token)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}

// TokenSet builds a set from a token slice.
func TokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}
	return set
}

// Jaccard returns |a ∩ b| / |a ∪ b|, or 0 when either set is empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := intersectionSize(a, b)
	if intersection == 0 {
		return 0
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// Containment returns |a ∩ b| divided by the size of the smaller set, and the
// intersection size itself.
func Containment(a, b map[string]struct{}) (float64, int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0
	}
	intersection := intersectionSize(a, b)
	return float64(intersection) / float64(min(len(a), len(b))), intersection
}

func intersectionSize(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for token := range a {
		if _, ok := b[token]; ok {
			n++
		}
	}
	return n
}
