package search

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carekb/carekb/internal/embed"
	kberrors "github.com/carekb/carekb/internal/errors"
	"github.com/carekb/carekb/internal/store"
)

// DefaultEmbedWorkers bounds concurrent embedding requests during a
// rebuild. Ollama serves one model instance; a small pool keeps the
// pipeline busy without queueing timeouts.
const DefaultEmbedWorkers = 4

// VectorIndexManager owns the flat vector index over chunk embeddings.
// Row N of the index always corresponds to chunk N of the corpus
// sequence, so any corpus mutation requires a full rebuild. Build
// produces a new index without publishing it; the caller decides when
// to Install it, so the index can be swapped together with whatever
// corpus state it was derived from.
type VectorIndexManager struct {
	mu       sync.RWMutex
	index    *store.FlatIndex
	embedder embed.Embedder
	path     string
	workers  int
}

// NewVectorIndexManager loads any existing index from path. A missing
// file is a valid empty index, not an error.
func NewVectorIndexManager(embedder embed.Embedder, path string, workers int) (*VectorIndexManager, error) {
	if workers <= 0 {
		workers = DefaultEmbedWorkers
	}
	idx, err := store.LoadFlatIndex(path)
	if err != nil {
		return nil, err
	}
	return &VectorIndexManager{
		index:    idx,
		embedder: embedder,
		path:     path,
		workers:  workers,
	}, nil
}

// Len reports the number of indexed vectors.
func (v *VectorIndexManager) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.index.Len()
}

// Snapshot returns the currently installed index. The index is
// immutable once installed, so the snapshot stays valid across later
// Install calls.
func (v *VectorIndexManager) Snapshot() *store.FlatIndex {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.index
}

// Install publishes idx as the current index.
func (v *VectorIndexManager) Install(idx *store.FlatIndex) {
	v.mu.Lock()
	v.index = idx
	v.mu.Unlock()
}

// Build derives a new index from the given chunk sequence and persists
// it. Embeddings are computed with a bounded worker pool but written
// strictly in chunk order, preserving row alignment. The new index is
// returned, not installed; on any failure the previously persisted
// index file and the in-memory index are left untouched.
func (v *VectorIndexManager) Build(ctx context.Context, chunks []store.Chunk) (*store.FlatIndex, error) {
	start := time.Now()

	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)
	for i, c := range chunks {
		g.Go(func() error {
			vec, err := v.embedder.Embed(gctx, c.Text)
			if err != nil {
				return err
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, kberrors.EmbeddingError("index rebuild failed", err).
			WithDetail("chunks", strconv.Itoa(len(chunks)))
	}

	next := store.NewFlatIndex()
	for _, vec := range vectors {
		if err := next.Append(vec); err != nil {
			return nil, err
		}
	}
	next.SetFingerprint(store.ChunkFingerprint(chunks))
	if err := next.Save(v.path); err != nil {
		return nil, err
	}

	slog.Info("vector_index_rebuilt",
		"chunks", len(chunks),
		"dims", next.Dims(),
		"duration_ms", time.Since(start).Milliseconds())
	return next, nil
}

// QueryIndex embeds the text and returns the k nearest chunks in idx by
// L2 distance, with similarity 1/(1+distance). An empty index returns
// an empty slice.
func (v *VectorIndexManager) QueryIndex(ctx context.Context, idx *store.FlatIndex, text string, k int) ([]store.VectorResult, error) {
	vec, err := v.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return idx.Search(vec, k)
}

// Query runs QueryIndex against the currently installed index.
func (v *VectorIndexManager) Query(ctx context.Context, text string, k int) ([]store.VectorResult, error) {
	return v.QueryIndex(ctx, v.Snapshot(), text, k)
}
