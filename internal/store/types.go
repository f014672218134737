// Package store provides the durable corpus state (metadata file), the
// BM25 lexical scorer, and the flat exact-NN vector index. It is the
// persistence layer for all indexed data; the metadata file is the single
// source of truth for corpus state.
package store

import (
	"fmt"
	"time"
)

// Document is the durable record of an ingested document.
type Document struct {
	DocID      string    `json:"doc_id"`
	Title      string    `json:"title"`
	SourcePath string    `json:"source_path"`
	AddedAt    time.Time `json:"added_at"`
	ChunkCount int       `json:"chunk_count"`
	SizeBytes  int64     `json:"size_bytes"`
	DocType    string    `json:"doc_type"`
}

// Chunk is a bounded, overlap-aware slice of a document's text, the unit
// of retrieval. Immutable once created. Ordinal is 0-based, dense,
// assigned in emission order within a document.
type Chunk struct {
	ChunkID  string `json:"chunk_id"`
	DocID    string `json:"doc_id"`
	Ordinal  int    `json:"ordinal"`
	Text     string `json:"text"`
	StartPos int    `json:"start_pos"`
	EndPos   int    `json:"end_pos"`
}

// ChunkIDFor builds the canonical chunk identifier from a document ID and
// a chunk ordinal.
func ChunkIDFor(docID string, ordinal int) string {
	return fmt.Sprintf("%s_%d", docID, ordinal)
}

// CorpusState is the ordered sequence of all chunks across all documents
// plus the documents map. The Nth row of the vector index corresponds
// exactly to the Nth element of Chunks at the time of the last rebuild;
// any mutation invalidates that alignment and mandates a full rebuild.
type CorpusState struct {
	Documents map[string]Document `json:"documents"`
	Chunks    []Chunk             `json:"chunks"`
}

// NewCorpusState returns an empty corpus state.
func NewCorpusState() CorpusState {
	return CorpusState{
		Documents: make(map[string]Document),
		Chunks:    []Chunk{},
	}
}

// LexicalResult is a single BM25 scoring result. ChunkIndex is the
// position of the chunk in the corpus chunk sequence.
type LexicalResult struct {
	ChunkIndex int
	Score      float64
}

// VectorResult is a single nearest-neighbor result. Similarity is
// 1/(1+d) for L2 distance d, bounded in (0,1].
type VectorResult struct {
	ChunkIndex int
	Similarity float64
}
