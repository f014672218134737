// Package chunk splits document text into overlapping, sentence-snapped
// windows. Chunking is deterministic: identical content and configuration
// always produce identical chunk boundaries.
package chunk

import (
	"fmt"
	"strings"

	kberrors "github.com/carekb/carekb/internal/errors"
	"github.com/carekb/carekb/internal/store"
)

// sentenceSearchWindow is how far back from a raw cut the chunker looks
// for a sentence-terminal character before giving up and keeping the cut.
const sentenceSearchWindow = 100

// Options configures a chunking run.
type Options struct {
	// ChunkSize is the target window size in characters.
	ChunkSize int

	// Overlap is the number of characters shared between consecutive
	// chunks. Must be smaller than ChunkSize or the window never
	// advances.
	Overlap int
}

// Chunker implements the chunking pipeline.
type Chunker struct {
	opts Options
}

// New creates a chunker. Fails fast on configuration that would make the
// chunk loop non-terminating.
func New(opts Options) (*Chunker, error) {
	if opts.ChunkSize <= 0 {
		return nil, kberrors.New(kberrors.ErrCodeInvalidChunk,
			fmt.Sprintf("chunk size must be positive, got %d", opts.ChunkSize), nil)
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.ChunkSize {
		return nil, kberrors.New(kberrors.ErrCodeInvalidChunk,
			fmt.Sprintf("overlap (%d) must be non-negative and smaller than chunk size (%d)",
				opts.Overlap, opts.ChunkSize), nil)
	}
	return &Chunker{opts: opts}, nil
}

// Chunk splits content into ordered chunks for the given document.
// Ordinals are 0-based, dense, assigned in emission order. Empty trimmed
// content signals an ingest failure upstream and is rejected.
func (c *Chunker) Chunk(content, docID string) ([]store.Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, kberrors.IngestError("no content to chunk", nil)
	}

	var chunks []store.Chunk
	ordinal := 0
	start := 0

	for start < len(content) {
		end := start + c.opts.ChunkSize
		if end >= len(content) {
			end = len(content)
		} else {
			end = snapToSentence(content, start, end)
		}

		text := strings.TrimSpace(content[start:end])
		if text != "" {
			chunks = append(chunks, store.Chunk{
				ChunkID:  store.ChunkIDFor(docID, ordinal),
				DocID:    docID,
				Ordinal:  ordinal,
				Text:     text,
				StartPos: start,
				EndPos:   end,
			})
			ordinal++
		}

		if end < len(content) {
			// Sentence snapping can pull end close to start; if the
			// overlapped advance would not move forward, continue from
			// end instead so the loop always progresses.
			next := end - c.opts.Overlap
			if next <= start {
				next = end
			}
			start = next
		} else {
			// Terminal chunk: no further overlap.
			start = end
		}
	}

	return chunks, nil
}

// snapToSentence searches backward from the character at the raw cut,
// up to sentenceSearchWindow characters, for a sentence terminal and
// snaps the boundary just after it. Returns the raw cut when none is
// found. Only called with end < len(content).
func snapToSentence(content string, start, end int) int {
	searchStart := end - sentenceSearchWindow
	if searchStart < start {
		searchStart = start
	}

	for i := end; i > searchStart; i-- {
		switch content[i] {
		case '.', '!', '?':
			return i + 1
		}
	}
	return end
}
