package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/carekb/carekb/internal/mcpserver"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run as an MCP server over stdio",
		Long: `Expose the knowledge base to MCP clients (Claude Code, Cursor) over
stdio. Tools: search_documents, add_document, remove_document,
list_documents, kb_stats.

Example client registration:
  claude mcp add carekb -- carekb serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			knowledge, _, err := openKB()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return mcpserver.NewServer(knowledge).Serve(ctx)
		},
	}
}
