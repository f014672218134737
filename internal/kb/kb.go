// Package kb is the high-level knowledge-base facade. It composes the
// chunking pipeline, metadata store, vector index, and search engine
// behind the operations the CLI and MCP server call: add, remove, list,
// search, reindex, stats, health.
package kb

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/carekb/carekb/internal/chunk"
	"github.com/carekb/carekb/internal/config"
	"github.com/carekb/carekb/internal/embed"
	kberrors "github.com/carekb/carekb/internal/errors"
	"github.com/carekb/carekb/internal/search"
	"github.com/carekb/carekb/internal/store"
)

// fetchTimeout bounds URL downloads during AddURL.
const fetchTimeout = 30 * time.Second

// maxFetchSize caps a downloaded document at 32 MiB.
const maxFetchSize = 32 << 20

// KB ties the corpus stores and the search engine together. Mutating
// operations take a cross-process file lock so two CLI invocations
// cannot interleave a read-modify-write on the metadata file.
type KB struct {
	cfg     *config.Config
	meta    *store.MetadataStore
	engine  *search.Engine
	chunker *chunk.Chunker
	embed   embed.Embedder
	lock    *flock.Flock
	client  *http.Client
}

// Open wires a KB from configuration. It creates the data directories
// if needed and loads (or initializes) the metadata and vector index.
func Open(cfg *config.Config) (*KB, error) {
	for _, dir := range []string{cfg.Paths.DocumentsDir, cfg.Paths.IndexDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, kberrors.New(kberrors.ErrCodeFilePermission,
				fmt.Sprintf("cannot create data directory %s", dir), err)
		}
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	meta := store.NewMetadataStore(cfg.MetadataPath())
	vectors, err := search.NewVectorIndexManager(embedder, cfg.IndexPath(), cfg.Embeddings.Workers)
	if err != nil {
		return nil, err
	}

	chunker, err := chunk.New(chunk.Options{
		ChunkSize: cfg.Chunking.ChunkSize,
		Overlap:   cfg.Chunking.ChunkOverlap,
	})
	if err != nil {
		return nil, err
	}

	engineCfg := search.DefaultEngineConfig()
	engineCfg.TopK = cfg.Search.TopK
	engineCfg.CandidateWidth = cfg.Search.CandidateWidth
	engineCfg.RRFConstant = cfg.Search.RRFConstant
	engineCfg.BM25.K1 = cfg.Search.K1
	engineCfg.BM25.B = cfg.Search.B

	engine, err := search.NewEngine(meta, vectors, search.LoadSynonyms(cfg.Paths.SynonymsFile), engineCfg)
	if err != nil {
		return nil, err
	}

	return &KB{
		cfg:     cfg,
		meta:    meta,
		engine:  engine,
		chunker: chunker,
		embed:   embedder,
		lock:    flock.New(cfg.LockPath()),
		client:  &http.Client{Timeout: fetchTimeout},
	}, nil
}

func newEmbedder(cfg *config.Config) (embed.Embedder, error) {
	var base embed.Embedder
	switch cfg.Embeddings.Provider {
	case config.ProviderStatic:
		base = embed.NewStaticEmbedder()
	case config.ProviderOllama, "":
		base = embed.NewOllamaEmbedder(embed.OllamaConfig{
			Host:       cfg.Embeddings.OllamaHost,
			Model:      cfg.Embeddings.Model,
			Timeout:    cfg.Embeddings.Timeout,
			MaxRetries: cfg.Embeddings.MaxRetries,
		})
	default:
		return nil, kberrors.ConfigError(
			fmt.Sprintf("unknown embedding provider %q", cfg.Embeddings.Provider), nil)
	}
	return embed.NewCachedEmbedder(base, cfg.Embeddings.CacheSize), nil
}

// DocIDFor derives the stable document id from extracted text: the
// first 16 bytes of its SHA-256, hex encoded. Re-adding identical
// content therefore updates the existing document instead of
// duplicating it.
func DocIDFor(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:16])
}

// AddFile ingests a local text file. The file is copied into the
// documents directory so the corpus stays self-contained. An empty
// title falls back to the file name without its extension.
func (k *KB) AddFile(ctx context.Context, path, title string) (*store.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, kberrors.New(kberrors.ErrCodeFileNotFound, "file not found: "+path, err)
		}
		return nil, kberrors.New(kberrors.ErrCodeFilePermission, "cannot read file: "+path, err)
	}

	if strings.TrimSpace(title) == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return k.addContent(ctx, string(data), title, filepath.Base(path), docTypeFor(path))
}

// AddURL downloads a document over HTTP(S) and ingests the body as
// plain text. An empty title falls back to one derived from the URL.
func (k *KB) AddURL(ctx context.Context, url, title string) (*store.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, kberrors.New(kberrors.ErrCodeInvalidInput, "invalid url: "+url, err)
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return nil, kberrors.New(kberrors.ErrCodeFetchFailed, "fetch failed: "+url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, kberrors.New(kberrors.ErrCodeFetchFailed,
			fmt.Sprintf("fetch failed: %s returned %d", url, resp.StatusCode), nil)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize))
	if err != nil {
		return nil, kberrors.New(kberrors.ErrCodeFetchFailed, "fetch failed: "+url, err)
	}

	if strings.TrimSpace(title) == "" {
		title = titleFromURL(url)
	}
	return k.addContent(ctx, string(body), title, titleFromURL(url)+".txt", "url")
}

// AddText ingests raw text under the given title.
func (k *KB) AddText(ctx context.Context, text, title string) (*store.Document, error) {
	if strings.TrimSpace(title) == "" {
		title = "untitled"
	}
	return k.addContent(ctx, text, title, sanitizeFilename(title)+".txt", "text")
}

func (k *KB) addContent(ctx context.Context, content, title, filename, docType string) (*store.Document, error) {
	if strings.TrimSpace(content) == "" {
		return nil, kberrors.New(kberrors.ErrCodeEmptyContent, "document has no extractable text", nil)
	}

	docID := DocIDFor(content)
	chunks, err := k.chunker.Chunk(content, docID)
	if err != nil {
		return nil, err
	}

	stored := filepath.Join(k.cfg.Paths.DocumentsDir, docID+"_"+sanitizeFilename(filename))
	if err := os.WriteFile(stored, []byte(content), 0o644); err != nil {
		return nil, kberrors.New(kberrors.ErrCodeFilePermission, "cannot store document copy", err)
	}

	doc := store.Document{
		DocID:      docID,
		Title:      title,
		SourcePath: stored,
		AddedAt:    time.Now().UTC(),
		ChunkCount: len(chunks),
		SizeBytes:  int64(len(content)),
		DocType:    docType,
	}

	if err := k.withLock(func() error {
		return k.engine.Ingest(ctx, doc, chunks)
	}); err != nil {
		return nil, err
	}

	slog.Info("document_added",
		"doc_id", docID,
		"title", title,
		"chunks", len(chunks),
		"bytes", doc.SizeBytes)
	return &doc, nil
}

// RemoveDocument deletes a document, its chunks, and its stored source
// copy, then rebuilds the index. Returns false when the id is unknown.
func (k *KB) RemoveDocument(ctx context.Context, docID string) (bool, error) {
	state, err := k.meta.Load()
	if err != nil {
		return false, err
	}
	doc, known := state.Documents[docID]

	var removed bool
	err = k.withLock(func() error {
		var err error
		removed, err = k.engine.Remove(ctx, docID)
		return err
	})
	if err != nil {
		return removed, err
	}

	// Source copy cleanup is best-effort; the corpus is already
	// consistent without it.
	if removed && known && doc.SourcePath != "" {
		if rmErr := os.Remove(doc.SourcePath); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.Warn("source_copy_not_removed", "path", doc.SourcePath, "error", rmErr)
		}
	}
	if removed {
		slog.Info("document_removed", "doc_id", docID)
	}
	return removed, nil
}

// ListDocuments returns every document sorted by added_at, oldest
// first.
func (k *KB) ListDocuments() ([]store.Document, error) {
	state, err := k.meta.Load()
	if err != nil {
		return nil, err
	}
	docs := make([]store.Document, 0, len(state.Documents))
	for _, d := range state.Documents {
		docs = append(docs, d)
	}
	sortDocuments(docs)
	return docs, nil
}

// Search runs a hybrid query against the corpus.
func (k *KB) Search(ctx context.Context, query string, topK int) ([]search.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, kberrors.New(kberrors.ErrCodeInvalidInput, "query must not be empty", nil)
	}
	if err := k.engine.Refresh(); err != nil {
		return nil, err
	}
	return k.engine.Search(ctx, query, search.Options{TopK: topK})
}

// RebuildIndex forces a full vector index rebuild from the metadata
// store.
func (k *KB) RebuildIndex(ctx context.Context) error {
	return k.withLock(func() error {
		return k.engine.RebuildIndex(ctx)
	})
}

// withLock serializes corpus mutations across processes.
func (k *KB) withLock(fn func() error) error {
	if err := k.lock.Lock(); err != nil {
		return kberrors.New(kberrors.ErrCodeFilePermission, "cannot acquire corpus lock", err)
	}
	defer func() { _ = k.lock.Unlock() }()
	return fn()
}

func docTypeFor(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return "txt"
	}
	return ext
}

func titleFromURL(url string) string {
	trimmed := strings.TrimRight(url, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 && i < len(trimmed)-1 {
		base := trimmed[i+1:]
		if base != "" && !strings.Contains(base, "?") {
			return strings.TrimSuffix(base, filepath.Ext(base))
		}
	}
	return "web-document"
}

var filenameReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_",
	"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_", " ", "_",
)

func sanitizeFilename(name string) string {
	return filenameReplacer.Replace(name)
}
