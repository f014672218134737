// Package embed provides embedding generation for chunks and queries.
// The default provider is Ollama's HTTP API; a deterministic hash-based
// embedder is available for offline use and tests.
package embed

import (
	"context"
	"time"
)

// Common embedding constants.
const (
	// DefaultTimeout bounds a single embedding request.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of retry attempts.
	DefaultMaxRetries = 3

	// DefaultModel is the default Ollama embedding model.
	DefaultModel = "nomic-embed-text"

	// DefaultHost is the default Ollama endpoint.
	DefaultHost = "http://localhost:11434"
)

// Embedder generates a fixed-length numeric vector representing text
// semantics. Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// ModelName returns the model identifier, for diagnostics and
	// cache keying.
	ModelName() string
}
