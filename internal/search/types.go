package search

// ResultMetadata carries provenance for a search hit.
type ResultMetadata struct {
	DocID    string `json:"doc_id"`
	Ordinal  int    `json:"ordinal"`
	FilePath string `json:"file_path,omitempty"`
}

// SearchResult is a fully hydrated hit returned to callers.
type SearchResult struct {
	Text     string         `json:"text"`
	Source   string         `json:"source"`
	Score    float64        `json:"score"`
	ChunkID  string         `json:"chunk_id"`
	Metadata ResultMetadata `json:"metadata"`
}

// Options tunes a single search call.
type Options struct {
	TopK int // Maximum results to return; <= 0 uses the engine default
}
