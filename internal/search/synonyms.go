// Package search provides hybrid search over the document corpus,
// combining BM25 lexical scoring and embedding similarity. Results are
// fused using Reciprocal Rank Fusion (RRF).
package search

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultSynonyms is the built-in care-domain synonym table, used when no
// external synonym file is configured.
var DefaultSynonyms = map[string][]string{
	"baby":        {"infant", "newborn", "child", "toddler"},
	"temperature": {"temp", "fever", "热度", "体温"},
	"feeding":     {"nursing", "breastfeeding", "bottle", "milk"},
	"sleep":       {"nap", "rest", "bedtime", "sleeping"},
	"crying":      {"fussing", "upset", "distressed"},
	"diaper":      {"nappy", "changing"},
	"safety":      {"secure", "protection", "safe"},
}

// LoadSynonyms reads a word → synonyms table from a JSON file. An empty
// path, a missing file, or a malformed file all fall back to the built-in
// default table; a synonym table is an optional aid, never a hard
// dependency.
func LoadSynonyms(path string) map[string][]string {
	if path == "" {
		return DefaultSynonyms
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultSynonyms
	}

	var table map[string][]string
	if err := json.Unmarshal(data, &table); err != nil {
		return DefaultSynonyms
	}
	if len(table) == 0 {
		return DefaultSynonyms
	}
	return table
}

// ValidateSynonyms checks a synonym table for empty keys or values.
// Used when a user supplies a custom table file.
func ValidateSynonyms(table map[string][]string) error {
	for word, syns := range table {
		if word == "" {
			return fmt.Errorf("synonym table contains an empty key")
		}
		for _, s := range syns {
			if s == "" {
				return fmt.Errorf("synonym list for %q contains an empty entry", word)
			}
		}
	}
	return nil
}
