// Package mcpserver exposes the knowledge base over the Model Context
// Protocol so AI assistants can search and manage the corpus directly.
package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/carekb/carekb/internal/kb"
	"github.com/carekb/carekb/pkg/version"
)

// Server wraps the MCP server with the KB facade behind it.
type Server struct {
	kb     *kb.KB
	mcp    *mcp.Server
	logger *slog.Logger
}

// NewServer builds the MCP server and registers the KB tools.
func NewServer(knowledge *kb.KB) *Server {
	s := &Server{
		kb:     knowledge,
		logger: slog.Default(),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "carekb",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_documents",
		Description: "Search the knowledge base with hybrid keyword and semantic retrieval. Returns the most relevant passages with source attribution.",
	}, s.searchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "add_document",
		Description: "Add a document to the knowledge base from a file path, URL, or inline text. Exactly one of file_path, url, or text must be set.",
	}, s.addHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "remove_document",
		Description: "Remove a document and all of its chunks by doc_id.",
	}, s.removeHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_documents",
		Description: "List every document in the knowledge base with chunk counts and sizes.",
	}, s.listHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "kb_stats",
		Description: "Report knowledge base statistics: document, chunk, and vector counts plus index health.",
	}, s.statsHandler)

	s.logger.Info("mcp_tools_registered", "count", 5)
}

// Serve runs the server over stdio until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp_server_starting", "transport", "stdio")
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("mcp_server_stopped", "error", err)
		return err
	}
	s.logger.Info("mcp_server_stopped")
	return nil
}
