package search

import (
	"sort"

	"github.com/carekb/carekb/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
// k=60 is empirically validated across domains (used by Azure AI Search,
// OpenSearch, etc.).
const DefaultRRFConstant = 60

// FusedResult is a single result after RRF fusion.
type FusedResult struct {
	ChunkIndex int     // Position in the corpus chunk sequence
	Score      float64 // Combined RRF score
	LexRank    int     // Position in lexical list (1-indexed, 0 if absent)
	VecRank    int     // Position in vector list (1-indexed, 0 if absent)
}

// RRFFusion merges lexical and vector candidate rankings into one
// ordering.
//
// Algorithm: score(d) = 1/(k + rank_lexical) + 1/(k + rank_vector)
//
// A chunk present in only one list contributes the other list's length
// plus one as its missing rank: a small, non-zero contribution, never an
// outright exclusion. This convention subtly boosts items absent from the
// lists' overlap; it is intentional and kept as-is.
type RRFFusion struct {
	K int // RRF smoothing constant (default: 60)
}

// NewRRFFusion creates an RRF fusion instance with default k=60.
func NewRRFFusion() *RRFFusion {
	return &RRFFusion{K: DefaultRRFConstant}
}

// NewRRFFusionWithK creates an RRF fusion with custom k value.
// If k <= 0, defaults to 60.
func NewRRFFusionWithK(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

// Fuse combines lexical and vector results. Both inputs are assumed
// ranked descending by their native scores (1-based ranks follow list
// position). If one list is empty, fusion is skipped and the other list's
// native order is returned unchanged.
func (f *RRFFusion) Fuse(lexical []store.LexicalResult, vector []store.VectorResult) []FusedResult {
	switch {
	case len(lexical) == 0 && len(vector) == 0:
		return []FusedResult{}
	case len(vector) == 0:
		return lexicalOnly(lexical)
	case len(lexical) == 0:
		return vectorOnly(vector)
	}

	lexRanks := make(map[int]int, len(lexical))
	for rank, r := range lexical {
		lexRanks[r.ChunkIndex] = rank + 1
	}
	vecRanks := make(map[int]int, len(vector))
	for rank, r := range vector {
		vecRanks[r.ChunkIndex] = rank + 1
	}

	// Candidate enumeration: vector-only entries first (vector order),
	// then the lexical list in its own order. The stable sort below
	// preserves this order among equal fused scores, so chunks ranked by
	// both channels tie-break by lexical position while a vector-only
	// chunk edges out a lexical-only one at the same score.
	candidates := make([]int, 0, len(lexical)+len(vector))
	for _, r := range vector {
		if _, ok := lexRanks[r.ChunkIndex]; !ok {
			candidates = append(candidates, r.ChunkIndex)
		}
	}
	for _, r := range lexical {
		candidates = append(candidates, r.ChunkIndex)
	}

	missingLex := len(lexical) + 1
	missingVec := len(vector) + 1

	results := make([]FusedResult, 0, len(candidates))
	for _, idx := range candidates {
		lexRank, inLex := lexRanks[idx]
		if !inLex {
			lexRank = missingLex
		}
		vecRank, inVec := vecRanks[idx]
		if !inVec {
			vecRank = missingVec
		}

		fr := FusedResult{
			ChunkIndex: idx,
			Score:      1.0/float64(f.K+lexRank) + 1.0/float64(f.K+vecRank),
		}
		if inLex {
			fr.LexRank = lexRank
		}
		if inVec {
			fr.VecRank = vecRank
		}
		results = append(results, fr)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results
}

// lexicalOnly maps lexical results into fused results, native order
// preserved.
func lexicalOnly(lexical []store.LexicalResult) []FusedResult {
	results := make([]FusedResult, 0, len(lexical))
	for rank, r := range lexical {
		results = append(results, FusedResult{
			ChunkIndex: r.ChunkIndex,
			Score:      r.Score,
			LexRank:    rank + 1,
		})
	}
	return results
}

// vectorOnly maps vector results into fused results, native order
// preserved.
func vectorOnly(vector []store.VectorResult) []FusedResult {
	results := make([]FusedResult, 0, len(vector))
	for rank, r := range vector {
		results = append(results, FusedResult{
			ChunkIndex: r.ChunkIndex,
			Score:      r.Similarity,
			VecRank:    rank + 1,
		})
	}
	return results
}
