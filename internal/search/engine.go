package search

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carekb/carekb/internal/store"
)

// DefaultTopK is the number of results returned when the caller does
// not specify one.
const DefaultTopK = 3

// DefaultCandidateWidth is how many candidates each channel feeds into
// fusion. Wider than top-k so fusion can promote chunks that rank
// mid-list in one channel and high in the other.
const DefaultCandidateWidth = 20

// EngineConfig tunes the search engine.
type EngineConfig struct {
	TopK           int
	CandidateWidth int
	BM25           store.BM25Config
	RRFConstant    int
}

// DefaultEngineConfig returns the standard engine tuning.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TopK:           DefaultTopK,
		CandidateWidth: DefaultCandidateWidth,
		BM25:           store.DefaultBM25Config(),
		RRFConstant:    DefaultRRFConstant,
	}
}

// Engine orchestrates query expansion, dual-channel retrieval, rank
// fusion, and result hydration. It also owns the ingest/remove/rebuild
// entry points, keeping the metadata store and the vector index in
// lockstep: row N of the index is chunk N of the corpus sequence.
//
// The mutex guards the cached corpus state together with index swaps so
// a concurrent search never observes a state/index pair from different
// generations.
type Engine struct {
	mu       sync.RWMutex
	state    store.CorpusState
	fp       string
	meta     *store.MetadataStore
	bm25     *store.BM25Scorer
	vectors  *VectorIndexManager
	expander *QueryExpander
	fusion   *RRFFusion
	cfg      EngineConfig
}

// NewEngine loads the current corpus state and wires the retrieval
// channels. The vector manager may have been constructed against an
// index file that no longer matches the metadata; callers that mutate
// the corpus trigger RebuildIndex, which restores alignment.
func NewEngine(meta *store.MetadataStore, vectors *VectorIndexManager, synonyms map[string][]string, cfg EngineConfig) (*Engine, error) {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.CandidateWidth <= 0 {
		cfg.CandidateWidth = DefaultCandidateWidth
	}
	state, err := meta.Load()
	if err != nil {
		return nil, err
	}
	return &Engine{
		state:    state,
		fp:       store.ChunkFingerprint(state.Chunks),
		meta:     meta,
		bm25:     store.NewBM25Scorer(cfg.BM25),
		vectors:  vectors,
		expander: NewQueryExpander(synonyms),
		fusion:   NewRRFFusionWithK(cfg.RRFConstant),
		cfg:      cfg,
	}, nil
}

// Search runs the hybrid retrieval pipeline. Synonym expansion applies
// to the lexical channel only; the vector channel embeds the raw query.
// If the vector channel fails (embedding provider down, index
// unreadable) the search degrades to lexical-only instead of failing.
// An empty corpus returns an empty slice.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]SearchResult, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = e.cfg.TopK
	}

	// Snapshot the (state, index) pair under one lock acquisition.
	// Installs happen under the same lock, so the pair is always from a
	// single generation.
	e.mu.RLock()
	state := e.state
	fp := e.fp
	idx := e.vectors.Snapshot()
	e.mu.RUnlock()

	if len(state.Chunks) == 0 {
		return []SearchResult{}, nil
	}

	start := time.Now()
	expanded := e.expander.Expand(query)

	var (
		lexical []store.LexicalResult
		vector  []store.VectorResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lexical = e.lexicalCandidates(expanded, state.Chunks)
		return nil
	})
	g.Go(func() error {
		// An index carrying a different corpus fingerprint was built
		// from another chunk sequence; its rows would hydrate as the
		// wrong chunks. This covers stale indexes left behind by a
		// failed rebuild, including across restarts.
		if idx.Fingerprint() != fp {
			slog.Warn("vector_channel_degraded",
				"reason", "index_stale",
				"indexed", idx.Len(),
				"chunks", len(state.Chunks))
			return nil
		}
		results, err := e.vectors.QueryIndex(gctx, idx, query, e.cfg.CandidateWidth)
		if err != nil {
			slog.Warn("vector_channel_degraded", "error", err)
			return nil
		}
		vector = results
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := e.fusion.Fuse(lexical, vector)
	if len(fused) > topK {
		fused = fused[:topK]
	}

	results := hydrate(fused, state)
	slog.Debug("search_complete",
		"query", query,
		"expanded_terms", len(expanded),
		"lexical", len(lexical),
		"vector", len(vector),
		"returned", len(results),
		"duration_ms", time.Since(start).Milliseconds())
	return results, nil
}

// lexicalCandidates scores every chunk and keeps the top candidates.
// Zero scores are retained by the scorer, so an all-miss query still
// yields a stable, corpus-ordered candidate list.
func (e *Engine) lexicalCandidates(terms []string, chunks []store.Chunk) []store.LexicalResult {
	results := e.bm25.Score(terms, chunks)
	if len(results) > e.cfg.CandidateWidth {
		results = results[:e.cfg.CandidateWidth]
	}
	return results
}

// hydrate resolves chunk indices into full results. Source name prefers
// the owning document's title and falls back to the stored file name.
func hydrate(fused []FusedResult, state store.CorpusState) []SearchResult {
	results := make([]SearchResult, 0, len(fused))
	for _, f := range fused {
		if f.ChunkIndex < 0 || f.ChunkIndex >= len(state.Chunks) {
			continue
		}
		c := state.Chunks[f.ChunkIndex]

		source := "Unknown Document"
		filePath := ""
		if doc, ok := state.Documents[c.DocID]; ok {
			filePath = doc.SourcePath
			if doc.Title != "" {
				source = doc.Title
			} else if doc.SourcePath != "" {
				source = filepath.Base(doc.SourcePath)
			}
		}

		results = append(results, SearchResult{
			Text:    c.Text,
			Source:  source,
			Score:   f.Score,
			ChunkID: c.ChunkID,
			Metadata: ResultMetadata{
				DocID:    c.DocID,
				Ordinal:  c.Ordinal,
				FilePath: filePath,
			},
		})
	}
	return results
}

// Ingest persists a document with its chunks and rebuilds the vector
// index so row alignment holds for the new corpus sequence.
func (e *Engine) Ingest(ctx context.Context, doc store.Document, chunks []store.Chunk) error {
	if err := e.meta.Upsert(doc, chunks); err != nil {
		return err
	}
	return e.RebuildIndex(ctx)
}

// Remove deletes a document and its chunks, then rebuilds the index.
// Removing an unknown doc_id is not an error; it reports false and
// skips the rebuild.
func (e *Engine) Remove(ctx context.Context, docID string) (bool, error) {
	removed, err := e.meta.Remove(docID)
	if err != nil {
		return false, err
	}
	if !removed {
		return false, nil
	}
	if err := e.RebuildIndex(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// RebuildIndex re-derives the vector index from the current chunk
// sequence and installs it together with the matching state. On failure
// the previously installed index and the cached state stay as they
// were.
func (e *Engine) RebuildIndex(ctx context.Context) error {
	state, err := e.meta.Load()
	if err != nil {
		return err
	}
	idx, err := e.vectors.Build(ctx, state.Chunks)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.vectors.Install(idx)
	e.state = state
	e.fp = store.ChunkFingerprint(state.Chunks)
	e.mu.Unlock()
	return nil
}

// IndexLen reports how many vectors the index currently holds.
func (e *Engine) IndexLen() int {
	return e.vectors.Len()
}

// State returns the engine's current view of the corpus.
func (e *Engine) State() store.CorpusState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Refresh reloads corpus state from disk without touching the index.
// Used after out-of-band metadata edits and after a failed rebuild left
// the index on an older corpus generation. When the reloaded state no
// longer matches the index fingerprint, searches degrade to
// lexical-only until the next successful rebuild.
func (e *Engine) Refresh() error {
	state, err := e.meta.Load()
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.state = state
	e.fp = store.ChunkFingerprint(state.Chunks)
	e.mu.Unlock()
	return nil
}
