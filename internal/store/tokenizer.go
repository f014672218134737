package store

import (
	"regexp"
	"strings"
)

// wordRegex matches word tokens: alphanumeric sequences plus underscores.
var wordRegex = regexp.MustCompile(`[0-9A-Za-z_]+`)

// Tokenize splits text into case-folded word tokens.
// Deterministic for fixed input; used for both queries and chunk text so
// the two sides of BM25 scoring always agree.
func Tokenize(text string) []string {
	words := wordRegex.FindAllString(text, -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		tokens = append(tokens, strings.ToLower(w))
	}
	return tokens
}

// TokenSet returns the distinct tokens of text as a set.
func TokenSet(text string) map[string]struct{} {
	tokens := Tokenize(text)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
