package kb

import (
	"context"
	"sort"
	"time"

	"github.com/carekb/carekb/internal/store"
)

// Stats summarizes the corpus and index state.
type Stats struct {
	TotalDocuments int    `json:"total_documents"`
	TotalChunks    int    `json:"total_chunks"`
	IndexedVectors int    `json:"indexed_vectors"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
	EmbeddingModel string `json:"embedding_model"`
	MetadataPath   string `json:"metadata_path"`
	IndexPath      string `json:"index_path"`
}

// Stats reports corpus-level counters. IndexedVectors differing from
// TotalChunks means the index is stale and a reindex is due.
func (k *KB) Stats() (*Stats, error) {
	state, err := k.meta.Load()
	if err != nil {
		return nil, err
	}

	var size int64
	for _, d := range state.Documents {
		size += d.SizeBytes
	}

	return &Stats{
		TotalDocuments: len(state.Documents),
		TotalChunks:    len(state.Chunks),
		IndexedVectors: k.engine.IndexLen(),
		TotalSizeBytes: size,
		EmbeddingModel: k.embed.ModelName(),
		MetadataPath:   k.cfg.MetadataPath(),
		IndexPath:      k.cfg.IndexPath(),
	}, nil
}

// HealthStatus reports the outcome of a health check. Healthy means
// every component passed; Issues lists what failed otherwise.
type HealthStatus struct {
	Healthy        bool     `json:"healthy"`
	MetadataOK     bool     `json:"metadata_ok"`
	IndexAligned   bool     `json:"index_aligned"`
	EmbedderOK     bool     `json:"embedder_ok"`
	EmbeddingModel string   `json:"embedding_model"`
	Issues         []string `json:"issues,omitempty"`
}

// HealthCheck verifies the metadata store loads, the vector index row
// count matches the chunk count, and the embedding provider answers a
// probe request.
func (k *KB) HealthCheck(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		MetadataOK:     true,
		IndexAligned:   true,
		EmbedderOK:     true,
		EmbeddingModel: k.embed.ModelName(),
	}

	state, err := k.meta.Load()
	if err != nil {
		status.MetadataOK = false
		status.Issues = append(status.Issues, "metadata: "+err.Error())
	} else if indexed := k.engine.IndexLen(); indexed != len(state.Chunks) {
		status.IndexAligned = false
		status.Issues = append(status.Issues,
			"index out of sync with metadata, run reindex")
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := k.embed.Embed(probeCtx, "health check"); err != nil {
		status.EmbedderOK = false
		status.Issues = append(status.Issues, "embedder: "+err.Error())
	}

	status.Healthy = status.MetadataOK && status.IndexAligned && status.EmbedderOK
	return status
}

func sortDocuments(docs []store.Document) {
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].AddedAt.Equal(docs[j].AddedAt) {
			return docs[i].AddedAt.Before(docs[j].AddedAt)
		}
		return docs[i].DocID < docs[j].DocID
	})
}
