package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunkList(texts ...string) []Chunk {
	chunks := make([]Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = Chunk{
			ChunkID: ChunkIDFor("doc", i),
			DocID:   "doc",
			Ordinal: i,
			Text:    text,
		}
	}
	return chunks
}

func TestBM25_EmptyInputs(t *testing.T) {
	s := NewBM25Scorer(DefaultBM25Config())

	assert.Empty(t, s.Score(nil, chunkList("some text")))
	assert.Empty(t, s.Score([]string{"term"}, nil))
}

func TestBM25_AllChunksRetained(t *testing.T) {
	// Chunks with zero term overlap stay in the output with score 0.
	s := NewBM25Scorer(DefaultBM25Config())
	chunks := chunkList(
		"feeding schedule for newborns",
		"completely unrelated gardening advice",
		"pruning roses in late winter",
		"composting kitchen scraps",
	)

	results := s.Score([]string{"feeding"}, chunks)

	require.Len(t, results, len(chunks))
	seen := map[int]bool{}
	for _, r := range results {
		seen[r.ChunkIndex] = true
	}
	assert.Len(t, seen, len(chunks))

	assert.Equal(t, 0, results[0].ChunkIndex)
	assert.Greater(t, results[0].Score, 0.0)
	for _, r := range results[1:] {
		assert.Equal(t, 0.0, r.Score)
	}
}

func TestBM25_MatchOutranksNonMatch(t *testing.T) {
	s := NewBM25Scorer(DefaultBM25Config())
	chunks := chunkList(
		"the weather is nice today",
		"baby sleep schedule and nap routine",
		"stock prices were flat this quarter",
	)

	results := s.Score([]string{"sleep", "baby"}, chunks)

	require.Len(t, results, 3)
	assert.Equal(t, 1, results[0].ChunkIndex)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestBM25_TermFrequencyMonotonic(t *testing.T) {
	// Adding one more occurrence of a query term to a chunk, all else
	// fixed, never decreases its score.
	s := NewBM25Scorer(DefaultBM25Config())

	base := []Chunk{
		{ChunkID: "a_0", Text: "fever fever symptoms in infants"},
		{ChunkID: "a_1", Text: "filler text with no match"},
		{ChunkID: "a_2", Text: "more filler without the term"},
	}
	more := []Chunk{
		{ChunkID: "b_0", Text: "fever fever fever symptoms in infants"},
		{ChunkID: "b_1", Text: "filler text with no match"},
		{ChunkID: "b_2", Text: "more filler without the term"},
	}

	baseScore := scoreFor(t, s.Score([]string{"fever"}, base), 0)
	moreScore := scoreFor(t, s.Score([]string{"fever"}, more), 0)

	assert.Greater(t, baseScore, 0.0)
	assert.GreaterOrEqual(t, moreScore, baseScore)
}

func scoreFor(t *testing.T, results []LexicalResult, chunkIndex int) float64 {
	t.Helper()
	for _, r := range results {
		if r.ChunkIndex == chunkIndex {
			return r.Score
		}
	}
	t.Fatalf("chunk %d not in results", chunkIndex)
	return 0
}

func TestBM25_StableTies(t *testing.T) {
	// Identical chunks score identically; ties keep corpus order.
	s := NewBM25Scorer(DefaultBM25Config())
	chunks := []Chunk{
		{ChunkID: "t_0", Text: "diaper changing basics"},
		{ChunkID: "t_1", Text: "diaper changing basics"},
		{ChunkID: "t_2", Text: "diaper changing basics"},
	}

	results := s.Score([]string{"diaper"}, chunks)

	require.Len(t, results, 3)
	assert.Equal(t, 0, results[0].ChunkIndex)
	assert.Equal(t, 1, results[1].ChunkIndex)
	assert.Equal(t, 2, results[2].ChunkIndex)
	assert.Equal(t, results[0].Score, results[1].Score)
	assert.Equal(t, results[1].Score, results[2].Score)
}

func TestBM25_RoomTemperatureScenario(t *testing.T) {
	// A temperature question must surface the temperature chunk with a
	// nonzero lexical score, with no vector channel involved at all.
	s := NewBM25Scorer(DefaultBM25Config())
	chunks := chunkList(
		"Room temperature should be 16–29°C (60–85°F) for newborns.",
		"Feed on demand, usually every two to three hours.",
		"Burp the baby after each feed to release swallowed air.",
	)

	results := s.Score(Tokenize("baby room temperature"), chunks)

	require.NotEmpty(t, results)
	assert.Equal(t, 0, results[0].ChunkIndex)
	assert.NotZero(t, results[0].Score)
}

func TestBM25_TokenCacheConsistency(t *testing.T) {
	// Scoring the same corpus twice returns identical results; the
	// token cache must not change outcomes.
	s := NewBM25Scorer(BM25Config{K1: 1.5, B: 0.75, TokenCacheSize: 2})
	chunks := chunkList(
		"sleep training methods",
		"safe sleep positions",
		"feeding and burping routines",
	)

	first := s.Score([]string{"sleep"}, chunks)
	second := s.Score([]string{"sleep"}, chunks)

	assert.Equal(t, first, second)
}
