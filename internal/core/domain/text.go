package domain

import (
	"strings"
	"unicode"
)

// Tokenize lower-cases text and splits it into runs of letters and digits.
// It is the single tokenizer shared by indexing, retrieval and grounding so
// that term statistics agree across components.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// TermCounts returns term frequencies for text.
func TermCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, tok := range Tokenize(text) {
		counts[tok]++
	}
	return counts
}

// TermSet returns the distinct terms in text.
func TermSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokenize(text) {
		set[tok] = struct{}{}
	}
	return set
}
