package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kberrors "github.com/carekb/carekb/internal/errors"
)

func TestNew_RejectsBadOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"zero size", Options{ChunkSize: 0, Overlap: 0}},
		{"negative size", Options{ChunkSize: -10, Overlap: 0}},
		{"negative overlap", Options{ChunkSize: 100, Overlap: -1}},
		{"overlap equals size", Options{ChunkSize: 100, Overlap: 100}},
		{"overlap exceeds size", Options{ChunkSize: 100, Overlap: 150}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			require.Error(t, err)
			assert.Equal(t, kberrors.ErrCodeInvalidChunk, kberrors.GetCode(err))
		})
	}
}

func TestChunk_EmptyContent(t *testing.T) {
	c, err := New(Options{ChunkSize: 100, Overlap: 20})
	require.NoError(t, err)

	for _, content := range []string{"", "   ", "\n\t\n"} {
		_, err := c.Chunk(content, "doc1")
		assert.Error(t, err)
	}
}

func TestChunk_ShortContentSingleChunk(t *testing.T) {
	c, err := New(Options{ChunkSize: 1000, Overlap: 200})
	require.NoError(t, err)

	chunks, err := c.Chunk("A short note about swaddling.", "doc1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "A short note about swaddling.", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Ordinal)
	assert.Equal(t, "doc1_0", chunks[0].ChunkID)
}

func TestChunk_Idempotent(t *testing.T) {
	c, err := New(Options{ChunkSize: 80, Overlap: 20})
	require.NoError(t, err)

	content := strings.Repeat("Newborns sleep a lot. Feed every few hours. ", 20)

	first, err := c.Chunk(content, "doc1")
	require.NoError(t, err)
	second, err := c.Chunk(content, "doc1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestChunk_SnapsToSentenceBoundary(t *testing.T) {
	c, err := New(Options{ChunkSize: 50, Overlap: 10})
	require.NoError(t, err)

	content := "First sentence here. Second sentence follows on. Third one closes it out."
	chunks, err := c.Chunk(content, "doc1")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	// Every non-terminal chunk should end at a sentence terminal since
	// one always falls within the search window of this content.
	for _, ch := range chunks[:len(chunks)-1] {
		last := ch.Text[len(ch.Text)-1]
		assert.Contains(t, []byte{'.', '!', '?'}, last, "chunk %q", ch.Text)
	}
}

func TestChunk_SpansCoverContent(t *testing.T) {
	c, err := New(Options{ChunkSize: 60, Overlap: 15})
	require.NoError(t, err)

	content := "Bathing tips. Use warm water! Check the temperature first? Dry gently. Keep the room warm. Wrap after."
	chunks, err := c.Chunk(content, "doc7")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	// Spans align with the original content and, minus overlaps,
	// reconstruct it losslessly.
	for _, ch := range chunks {
		assert.Equal(t, ch.Text, strings.TrimSpace(content[ch.StartPos:ch.EndPos]))
	}
	assert.Equal(t, 0, chunks[0].StartPos)
	assert.Equal(t, len(content), chunks[len(chunks)-1].EndPos)
	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, chunks[i].StartPos, chunks[i-1].EndPos,
			"gap between chunk %d and %d", i-1, i)
	}
}

func TestChunk_OrdinalsDense(t *testing.T) {
	c, err := New(Options{ChunkSize: 40, Overlap: 10})
	require.NoError(t, err)

	content := strings.Repeat("Sleep safety matters. Always on the back. ", 10)
	chunks, err := c.Chunk(content, "docA")
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Ordinal)
		assert.Equal(t, "docA", ch.DocID)
	}
}

func TestChunk_EarlySnapWithWideOverlap(t *testing.T) {
	// A sentence terminal early in the window snaps end close to start;
	// with a wide overlap the naive advance end-overlap would move
	// before start. The advance must clamp forward instead.
	c, err := New(Options{ChunkSize: 150, Overlap: 120})
	require.NoError(t, err)

	content := strings.Repeat("a", 60) + "." + strings.Repeat("b", 300)
	chunks, err := c.Chunk(content, "doc1")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for _, ch := range chunks {
		assert.GreaterOrEqual(t, ch.StartPos, 0)
		assert.Greater(t, ch.EndPos, ch.StartPos)
	}
	assert.Equal(t, len(content), chunks[len(chunks)-1].EndPos)
}

func TestChunk_NearMaximalOverlapTerminates(t *testing.T) {
	c, err := New(Options{ChunkSize: 100, Overlap: 99})
	require.NoError(t, err)

	content := strings.Repeat("x", 50) + "." + strings.Repeat("y", 500)
	chunks, err := c.Chunk(content, "doc1")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, len(content), chunks[len(chunks)-1].EndPos)
}

func TestChunk_SnapIncludesTerminalAtCut(t *testing.T) {
	// A sentence terminal sitting exactly at the raw cut position is
	// part of the chunk: the boundary lands just after it.
	c, err := New(Options{ChunkSize: 20, Overlap: 5})
	require.NoError(t, err)

	content := strings.Repeat("a", 20) + "." + strings.Repeat("b", 50)
	chunks, err := c.Chunk(content, "doc1")
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	assert.Equal(t, strings.Repeat("a", 20)+".", chunks[0].Text)
	assert.Equal(t, 21, chunks[0].EndPos)
}

func TestChunk_OverlapSharesText(t *testing.T) {
	c, err := New(Options{ChunkSize: 50, Overlap: 20})
	require.NoError(t, err)

	content := strings.Repeat("abcdefghij", 20) // no sentence terminals
	chunks, err := c.Chunk(content, "doc1")
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// Without sentence snapping, consecutive windows share exactly the
	// configured overlap.
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].EndPos-20, chunks[i].StartPos)
	}
}
