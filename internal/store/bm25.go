package store

import (
	"math"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
)

// BM25Config configures the lexical scorer.
type BM25Config struct {
	// K1 is the term frequency saturation parameter (default: 1.5).
	K1 float64

	// B is the length normalization parameter (default: 0.75).
	B float64

	// TokenCacheSize is the capacity of the per-chunk token cache.
	TokenCacheSize int
}

// DefaultBM25Config returns the default BM25 configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:             1.5,
		B:              0.75,
		TokenCacheSize: 4096,
	}
}

// BM25Scorer scores chunks against a query using term statistics computed
// over the current corpus. Corpus statistics are recomputed per query;
// only per-chunk tokenization is cached. Chunks are immutable and chunk
// IDs are content-derived, so cache entries never go stale.
type BM25Scorer struct {
	config BM25Config
	tokens *lru.Cache[string, []string]
}

// NewBM25Scorer creates a BM25 scorer.
func NewBM25Scorer(cfg BM25Config) *BM25Scorer {
	if cfg.K1 <= 0 {
		cfg.K1 = 1.5
	}
	if cfg.B < 0 || cfg.B > 1 {
		cfg.B = 0.75
	}
	if cfg.TokenCacheSize <= 0 {
		cfg.TokenCacheSize = 4096
	}
	cache, _ := lru.New[string, []string](cfg.TokenCacheSize)
	return &BM25Scorer{config: cfg, tokens: cache}
}

// Score ranks every chunk in the corpus against the query terms.
//
// score(chunk) = Σ over query terms t present in the chunk:
//
//	idf(t) · tf·(k1+1) / (tf + k1·(1 − b + b·dl/avgdl))
//
// with idf(t) = ln((N − df(t) + 0.5)/(df(t) + 0.5)).
//
// Every chunk stays in the output, including those scoring 0 (no term
// overlap). An empty query term set yields an empty result. Ties keep the
// chunks' original corpus order.
func (s *BM25Scorer) Score(queryTerms []string, chunks []Chunk) []LexicalResult {
	if len(queryTerms) == 0 || len(chunks) == 0 {
		return []LexicalResult{}
	}

	n := len(chunks)
	chunkTokens := make([][]string, n)
	totalLen := 0
	for i, c := range chunks {
		chunkTokens[i] = s.tokenize(c)
		totalLen += len(chunkTokens[i])
	}
	avgLen := float64(totalLen) / float64(n)

	// Document frequency per query term.
	df := make(map[string]int, len(queryTerms))
	for i := range chunks {
		seen := make(map[string]struct{}, len(chunkTokens[i]))
		for _, t := range chunkTokens[i] {
			seen[t] = struct{}{}
		}
		for _, term := range queryTerms {
			if _, ok := seen[term]; ok {
				df[term]++
			}
		}
	}

	k1, b := s.config.K1, s.config.B
	results := make([]LexicalResult, 0, n)
	for i := range chunks {
		dl := float64(len(chunkTokens[i]))
		if dl == 0 {
			results = append(results, LexicalResult{ChunkIndex: i})
			continue
		}

		tf := make(map[string]int)
		for _, t := range chunkTokens[i] {
			tf[t]++
		}

		score := 0.0
		for _, term := range queryTerms {
			freq := float64(tf[term])
			if freq == 0 {
				continue
			}
			idf := math.Log((float64(n) - float64(df[term]) + 0.5) / (float64(df[term]) + 0.5))
			score += idf * (freq * (k1 + 1)) / (freq + k1*(1-b+b*dl/avgLen))
		}
		results = append(results, LexicalResult{ChunkIndex: i, Score: score})
	}

	// Stable: ties keep original corpus order.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results
}

// tokenize returns the token list for a chunk, consulting the cache first.
func (s *BM25Scorer) tokenize(c Chunk) []string {
	if c.ChunkID != "" {
		if tokens, ok := s.tokens.Get(c.ChunkID); ok {
			return tokens
		}
	}
	tokens := Tokenize(c.Text)
	if c.ChunkID != "" {
		s.tokens.Add(c.ChunkID, tokens)
	}
	return tokens
}
