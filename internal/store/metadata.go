package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	kberrors "github.com/carekb/carekb/internal/errors"
)

// MetadataStore persists documents and their ordered chunks as a single
// JSON state file, rewritten wholesale per mutation. Simple over fast;
// acceptable because document-count scale is small.
type MetadataStore struct {
	mu   sync.Mutex
	path string
}

// chunkRecord is the wire shape of a chunk. Older index files used the
// key "chunk" for text, "id" for the composite identifier, and "chunk_id"
// for the ordinal; they are normalized here, at the store boundary, so
// nothing downstream ever branches on shape.
type chunkRecord struct {
	ID        string `json:"id,omitempty"`
	DocID     string `json:"doc_id,omitempty"`
	Ordinal   *int   `json:"chunk_id,omitempty"`
	Text      string `json:"text,omitempty"`
	LegacyTxt string `json:"chunk,omitempty"`
	LegacyDoc string `json:"doc,omitempty"`
	StartPos  int    `json:"start_pos"`
	EndPos    int    `json:"end_pos"`
}

// stateRecord is the wire shape of the whole metadata file.
type stateRecord struct {
	Documents map[string]Document `json:"documents"`
	Chunks    []chunkRecord       `json:"chunks"`
}

// NewMetadataStore creates a metadata store backed by the given file path.
// The file is created lazily on first mutation.
func NewMetadataStore(path string) *MetadataStore {
	return &MetadataStore{path: path}
}

// Path returns the backing file path.
func (m *MetadataStore) Path() string {
	return m.path
}

// Load reads and normalizes the persisted corpus state.
// A missing file is a valid empty corpus, not an error. A file that used
// the legacy bare-chunk-array format is transparently upgraded to the
// canonical {documents, chunks} shape. Malformed JSON fails fast: silently
// dropping documents is worse than refusing to start.
func (m *MetadataStore) Load() (CorpusState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked()
}

// All returns the current corpus state. Alias for Load; the name mirrors
// the read-side of the contract.
func (m *MetadataStore) All() (CorpusState, error) {
	return m.Load()
}

// Upsert adds or replaces a document and its chunks, rewriting the whole
// state file. Chunks belonging to a previous version of the same document
// are dropped before the new ones are appended.
func (m *MetadataStore) Upsert(doc Document, chunks []Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.loadLocked()
	if err != nil {
		return err
	}

	kept := state.Chunks[:0]
	for _, c := range state.Chunks {
		if c.DocID != doc.DocID {
			kept = append(kept, c)
		}
	}
	state.Chunks = append(kept, chunks...)
	state.Documents[doc.DocID] = doc

	return m.saveLocked(state)
}

// Remove deletes a document and every chunk carrying its doc_id.
// Returns false if the document is unknown; that is not an error.
func (m *MetadataStore) Remove(docID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.loadLocked()
	if err != nil {
		return false, err
	}

	if _, ok := state.Documents[docID]; !ok {
		return false, nil
	}
	delete(state.Documents, docID)

	kept := state.Chunks[:0]
	for _, c := range state.Chunks {
		if c.DocID != docID {
			kept = append(kept, c)
		}
	}
	state.Chunks = kept

	if err := m.saveLocked(state); err != nil {
		return false, err
	}
	return true, nil
}

func (m *MetadataStore) loadLocked() (CorpusState, error) {
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return NewCorpusState(), nil
	}
	if err != nil {
		return CorpusState{}, kberrors.Wrap(kberrors.ErrCodeFilePermission, err)
	}

	var rec stateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		// Legacy format: a bare array of chunk records.
		var legacy []chunkRecord
		if legacyErr := json.Unmarshal(data, &legacy); legacyErr != nil {
			return CorpusState{}, kberrors.MetadataCorruptError(
				fmt.Sprintf("metadata file %s is malformed: %v", m.path, err), err)
		}
		slog.Info("metadata_legacy_upgrade",
			slog.String("path", m.path),
			slog.Int("chunks", len(legacy)))
		rec = stateRecord{Documents: map[string]Document{}, Chunks: legacy}
	}

	return normalize(rec), nil
}

// normalize converts wire records into the canonical corpus state.
func normalize(rec stateRecord) CorpusState {
	state := NewCorpusState()
	if rec.Documents != nil {
		state.Documents = rec.Documents
	}

	state.Chunks = make([]Chunk, 0, len(rec.Chunks))
	for i, cr := range rec.Chunks {
		text := cr.Text
		if text == "" {
			text = cr.LegacyTxt
		}

		ordinal := i
		if cr.Ordinal != nil {
			ordinal = *cr.Ordinal
		}

		id := cr.ID
		if id == "" {
			id = ChunkIDFor(cr.DocID, ordinal)
		}

		state.Chunks = append(state.Chunks, Chunk{
			ChunkID:  id,
			DocID:    cr.DocID,
			Ordinal:  ordinal,
			Text:     text,
			StartPos: cr.StartPos,
			EndPos:   cr.EndPos,
		})
	}

	return state
}

// saveLocked writes the whole state atomically (temp file + rename) using
// the canonical key names.
func (m *MetadataStore) saveLocked(state CorpusState) error {
	rec := stateRecord{
		Documents: state.Documents,
		Chunks:    make([]chunkRecord, 0, len(state.Chunks)),
	}
	for _, c := range state.Chunks {
		ordinal := c.Ordinal
		rec.Chunks = append(rec.Chunks, chunkRecord{
			ID:       c.ChunkID,
			DocID:    c.DocID,
			Ordinal:  &ordinal,
			Text:     c.Text,
			StartPos: c.StartPos,
			EndPos:   c.EndPos,
		})
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create metadata directory: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace metadata: %w", err)
	}

	return nil
}
