// Package langdetect tags articles with an ISO 639-1 language code.
package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

// Undetermined is stored when neither the payload nor the detector yields a code.
const Undetermined = "und"

const minLetters = 6

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// DetectISO6391 guesses the language of text. It returns "" when the sample has
// too few letters or the detector is not confident.
func DetectISO6391(text string) string {
	sample := strings.TrimSpace(text)
	if countLetters(sample) < minLetters {
		return ""
	}

	language, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return ""
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

// Resolve prefers a declared language tag and falls back to detection over text.
func Resolve(declared, text string) string {
	if code := PrimaryCode(declared); code != "" {
		return code
	}
	if code := DetectISO6391(text); code != "" {
		return code
	}
	return Undetermined
}

// PrimaryCode returns the primary subtag of a BCP 47 style tag ("en" from
// "en_US"), or "" when the tag is blank or malformed.
func PrimaryCode(tag string) string {
	trimmed := strings.ToLower(strings.TrimSpace(tag))
	if trimmed == "" || trimmed == Undetermined {
		return ""
	}
	primary, _, _ := strings.Cut(strings.ReplaceAll(trimmed, "_", "-"), "-")
	if len(primary) < 2 || len(primary) > 3 {
		return ""
	}
	for _, r := range primary {
		if r < 'a' || r > 'z' {
			return ""
		}
	}
	return primary
}

func countLetters(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(lingua.English, lingua.German, lingua.French, lingua.Spanish, lingua.Italian,
				lingua.Portuguese, lingua.Dutch, lingua.Russian, lingua.Chinese, lingua.Japanese).
			Build()
	})
	return detector
}
