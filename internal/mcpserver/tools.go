package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	kberrors "github.com/carekb/carekb/internal/errors"
	"github.com/carekb/carekb/internal/store"
)

// SearchInput is the search_documents tool input.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"maximum number of results (default 3)"`
}

// SearchHit is one search_documents result.
type SearchHit struct {
	Text    string  `json:"text" jsonschema:"the matched passage"`
	Source  string  `json:"source" jsonschema:"document title or file name"`
	Score   float64 `json:"score" jsonschema:"fused relevance score"`
	ChunkID string  `json:"chunk_id" jsonschema:"stable chunk identifier"`
	DocID   string  `json:"doc_id" jsonschema:"owning document identifier"`
}

// SearchOutput is the search_documents tool output.
type SearchOutput struct {
	Results []SearchHit `json:"results"`
}

func (s *Server) searchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, newInvalidParamsError("query parameter is required")
	}

	results, err := s.kb.Search(ctx, input.Query, input.TopK)
	if err != nil {
		return nil, SearchOutput{}, mapError(err)
	}

	out := SearchOutput{Results: make([]SearchHit, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, SearchHit{
			Text:    r.Text,
			Source:  r.Source,
			Score:   r.Score,
			ChunkID: r.ChunkID,
			DocID:   r.Metadata.DocID,
		})
	}
	return nil, out, nil
}

// AddInput is the add_document tool input. Exactly one source field
// must be set.
type AddInput struct {
	FilePath string `json:"file_path,omitempty" jsonschema:"path to a local text file"`
	URL      string `json:"url,omitempty" jsonschema:"HTTP(S) URL to download"`
	Text     string `json:"text,omitempty" jsonschema:"inline document text"`
	Title    string `json:"title,omitempty" jsonschema:"document title, derived from the source when omitted"`
}

// AddOutput is the add_document tool output.
type AddOutput struct {
	DocID      string `json:"doc_id"`
	Title      string `json:"title"`
	ChunkCount int    `json:"chunk_count"`
}

func (s *Server) addHandler(ctx context.Context, _ *mcp.CallToolRequest, input AddInput) (
	*mcp.CallToolResult,
	AddOutput,
	error,
) {
	sources := 0
	for _, set := range []bool{input.FilePath != "", input.URL != "", input.Text != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return nil, AddOutput{}, newInvalidParamsError(
			"exactly one of file_path, url, or text must be set")
	}

	var (
		doc *store.Document
		err error
	)
	switch {
	case input.FilePath != "":
		doc, err = s.kb.AddFile(ctx, input.FilePath, input.Title)
	case input.URL != "":
		doc, err = s.kb.AddURL(ctx, input.URL, input.Title)
	default:
		doc, err = s.kb.AddText(ctx, input.Text, input.Title)
	}
	if err != nil {
		return nil, AddOutput{}, mapError(err)
	}

	return nil, AddOutput{
		DocID:      doc.DocID,
		Title:      doc.Title,
		ChunkCount: doc.ChunkCount,
	}, nil
}

// RemoveInput is the remove_document tool input.
type RemoveInput struct {
	DocID string `json:"doc_id" jsonschema:"document identifier to remove"`
}

// RemoveOutput is the remove_document tool output.
type RemoveOutput struct {
	Removed bool `json:"removed"`
}

func (s *Server) removeHandler(ctx context.Context, _ *mcp.CallToolRequest, input RemoveInput) (
	*mcp.CallToolResult,
	RemoveOutput,
	error,
) {
	if input.DocID == "" {
		return nil, RemoveOutput{}, newInvalidParamsError("doc_id parameter is required")
	}
	removed, err := s.kb.RemoveDocument(ctx, input.DocID)
	if err != nil {
		return nil, RemoveOutput{}, mapError(err)
	}
	return nil, RemoveOutput{Removed: removed}, nil
}

// ListInput is the list_documents tool input.
type ListInput struct{}

// DocumentInfo is one list_documents entry.
type DocumentInfo struct {
	DocID      string `json:"doc_id"`
	Title      string `json:"title"`
	DocType    string `json:"doc_type"`
	ChunkCount int    `json:"chunk_count"`
	SizeBytes  int64  `json:"size_bytes"`
	AddedAt    string `json:"added_at"`
}

// ListOutput is the list_documents tool output.
type ListOutput struct {
	Documents []DocumentInfo `json:"documents"`
}

func (s *Server) listHandler(_ context.Context, _ *mcp.CallToolRequest, _ ListInput) (
	*mcp.CallToolResult,
	ListOutput,
	error,
) {
	docs, err := s.kb.ListDocuments()
	if err != nil {
		return nil, ListOutput{}, mapError(err)
	}
	out := ListOutput{Documents: make([]DocumentInfo, 0, len(docs))}
	for _, d := range docs {
		out.Documents = append(out.Documents, DocumentInfo{
			DocID:      d.DocID,
			Title:      d.Title,
			DocType:    d.DocType,
			ChunkCount: d.ChunkCount,
			SizeBytes:  d.SizeBytes,
			AddedAt:    d.AddedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return nil, out, nil
}

// StatsInput is the kb_stats tool input.
type StatsInput struct{}

// StatsOutput is the kb_stats tool output.
type StatsOutput struct {
	TotalDocuments int    `json:"total_documents"`
	TotalChunks    int    `json:"total_chunks"`
	IndexedVectors int    `json:"indexed_vectors"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
	EmbeddingModel string `json:"embedding_model"`
	IndexInSync    bool   `json:"index_in_sync"`
}

func (s *Server) statsHandler(_ context.Context, _ *mcp.CallToolRequest, _ StatsInput) (
	*mcp.CallToolResult,
	StatsOutput,
	error,
) {
	stats, err := s.kb.Stats()
	if err != nil {
		return nil, StatsOutput{}, mapError(err)
	}
	return nil, StatsOutput{
		TotalDocuments: stats.TotalDocuments,
		TotalChunks:    stats.TotalChunks,
		IndexedVectors: stats.IndexedVectors,
		TotalSizeBytes: stats.TotalSizeBytes,
		EmbeddingModel: stats.EmbeddingModel,
		IndexInSync:    stats.IndexedVectors == stats.TotalChunks,
	}, nil
}

// newInvalidParamsError reports a caller mistake in MCP terms.
func newInvalidParamsError(msg string) error {
	return fmt.Errorf("invalid params: %s", msg)
}

// mapError surfaces internal errors to MCP clients. KBError messages
// already carry their structured code; anything else is passed through
// as-is.
func mapError(err error) error {
	if kberrors.IsRetryable(err) {
		return fmt.Errorf("%w (transient, retry may succeed)", err)
	}
	return err
}
