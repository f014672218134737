package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kberrors "github.com/carekb/carekb/internal/errors"
)

func testDoc(id string, chunkCount int) Document {
	return Document{
		DocID:      id,
		Title:      "Doc " + id,
		SourcePath: "/tmp/" + id + ".txt",
		AddedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ChunkCount: chunkCount,
		SizeBytes:  100,
		DocType:    "txt",
	}
}

func testChunks(docID string, texts ...string) []Chunk {
	chunks := make([]Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = Chunk{
			ChunkID: ChunkIDFor(docID, i),
			DocID:   docID,
			Ordinal: i,
			Text:    text,
		}
	}
	return chunks
}

func TestMetadataStore_MissingFileIsEmpty(t *testing.T) {
	m := NewMetadataStore(filepath.Join(t.TempDir(), "metadata.json"))

	state, err := m.Load()
	require.NoError(t, err)
	assert.Empty(t, state.Documents)
	assert.Empty(t, state.Chunks)
}

func TestMetadataStore_UpsertRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	m := NewMetadataStore(path)

	doc := testDoc("abc123", 2)
	chunks := testChunks("abc123", "first chunk", "second chunk")
	require.NoError(t, m.Upsert(doc, chunks))

	// Reopen from disk to prove durability.
	reopened := NewMetadataStore(path)
	state, err := reopened.Load()
	require.NoError(t, err)

	require.Contains(t, state.Documents, "abc123")
	assert.Equal(t, doc.Title, state.Documents["abc123"].Title)
	require.Len(t, state.Chunks, 2)
	assert.Equal(t, chunks, state.Chunks)
}

func TestMetadataStore_UpsertReplacesExistingChunks(t *testing.T) {
	m := NewMetadataStore(filepath.Join(t.TempDir(), "metadata.json"))

	require.NoError(t, m.Upsert(testDoc("d1", 2), testChunks("d1", "old a", "old b")))
	require.NoError(t, m.Upsert(testDoc("d2", 1), testChunks("d2", "other doc")))
	require.NoError(t, m.Upsert(testDoc("d1", 1), testChunks("d1", "new a")))

	state, err := m.Load()
	require.NoError(t, err)
	require.Len(t, state.Chunks, 2)
	for _, c := range state.Chunks {
		if c.DocID == "d1" {
			assert.Equal(t, "new a", c.Text)
		}
	}
}

func TestMetadataStore_RemoveCascades(t *testing.T) {
	m := NewMetadataStore(filepath.Join(t.TempDir(), "metadata.json"))

	require.NoError(t, m.Upsert(testDoc("keep", 1), testChunks("keep", "kept chunk")))
	require.NoError(t, m.Upsert(testDoc("gone", 2), testChunks("gone", "a", "b")))

	removed, err := m.Remove("gone")
	require.NoError(t, err)
	assert.True(t, removed)

	state, err := m.Load()
	require.NoError(t, err)
	assert.NotContains(t, state.Documents, "gone")
	require.Len(t, state.Chunks, 1)
	assert.Equal(t, "keep", state.Chunks[0].DocID)
}

func TestMetadataStore_RemoveUnknownIsNotError(t *testing.T) {
	m := NewMetadataStore(filepath.Join(t.TempDir(), "metadata.json"))

	removed, err := m.Remove("nope")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestMetadataStore_LegacyBareArrayUpgrade(t *testing.T) {
	// Old installs persisted a bare chunk array with "chunk"/"doc"
	// keys and the ordinal under "chunk_id". Loading must normalize it
	// into the canonical shape.
	path := filepath.Join(t.TempDir(), "metadata.json")
	legacy := `[
		{"chunk_id": 0, "chunk": "legacy first", "doc": "guide.pdf", "doc_id": "legacydoc"},
		{"chunk_id": 1, "chunk": "legacy second", "doc": "guide.pdf", "doc_id": "legacydoc"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	m := NewMetadataStore(path)
	state, err := m.Load()
	require.NoError(t, err)

	require.Len(t, state.Chunks, 2)
	assert.Equal(t, "legacy first", state.Chunks[0].Text)
	assert.Equal(t, "legacy second", state.Chunks[1].Text)
	assert.Equal(t, "legacydoc", state.Chunks[0].DocID)
	assert.Equal(t, 0, state.Chunks[0].Ordinal)
	assert.Equal(t, 1, state.Chunks[1].Ordinal)
	assert.Equal(t, ChunkIDFor("legacydoc", 0), state.Chunks[0].ChunkID)
	assert.Empty(t, state.Documents)
}

func TestMetadataStore_LegacyUpgradePersistsCanonical(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	legacy := `[{"chunk_id": 0, "chunk": "only chunk", "doc_id": "olddoc"}]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	m := NewMetadataStore(path)
	require.NoError(t, m.Upsert(testDoc("newdoc", 1), testChunks("newdoc", "fresh")))

	// The rewritten file must be the canonical object shape.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Contains(t, rec, "documents")
	assert.Contains(t, rec, "chunks")

	state, err := m.Load()
	require.NoError(t, err)
	assert.Len(t, state.Chunks, 2)
}

func TestMetadataStore_MalformedFileFailsFast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	m := NewMetadataStore(path)
	_, err := m.Load()
	require.Error(t, err)
	assert.Equal(t, kberrors.ErrCodeMetadataCorrupt, kberrors.GetCode(err))
}

func TestMetadataStore_MixedChunkShapes(t *testing.T) {
	// Canonical and legacy chunk records in one file normalize to the
	// same Chunk shape; nothing downstream branches on wire format.
	path := filepath.Join(t.TempDir(), "metadata.json")
	mixed := `{
		"documents": {},
		"chunks": [
			{"id": "d1_0", "doc_id": "d1", "chunk_id": 0, "text": "canonical", "start_pos": 0, "end_pos": 9},
			{"doc_id": "d1", "chunk": "legacy style"}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(mixed), 0o644))

	state, err := NewMetadataStore(path).Load()
	require.NoError(t, err)

	require.Len(t, state.Chunks, 2)
	assert.Equal(t, "canonical", state.Chunks[0].Text)
	assert.Equal(t, "legacy style", state.Chunks[1].Text)
	assert.Equal(t, 1, state.Chunks[1].Ordinal)
	assert.Equal(t, ChunkIDFor("d1", 1), state.Chunks[1].ChunkID)
}
