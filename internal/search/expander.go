package search

import (
	"strings"

	"github.com/carekb/carekb/internal/store"
)

// QueryExpander expands search queries with synonyms for the lexical
// channel. The vector channel always receives the unexpanded query: the
// embedding model handles semantic similarity natively, and expansion
// would only add noise to the vector it produces.
type QueryExpander struct {
	synonyms map[string][]string
}

// NewQueryExpander creates a query expander over the given synonym table.
// A nil table uses the built-in default.
func NewQueryExpander(synonyms map[string][]string) *QueryExpander {
	if synonyms == nil {
		synonyms = DefaultSynonyms
	}
	return &QueryExpander{synonyms: synonyms}
}

// Expand returns the query's tokens with each matched token's synonyms
// appended directly after it, preserving query order.
func (e *QueryExpander) Expand(query string) []string {
	terms := store.Tokenize(query)
	if len(terms) == 0 {
		return terms
	}

	expanded := make([]string, 0, len(terms))
	for _, term := range terms {
		expanded = append(expanded, term)
		for _, syn := range e.synonyms[term] {
			expanded = append(expanded, strings.ToLower(syn))
		}
	}
	return expanded
}
