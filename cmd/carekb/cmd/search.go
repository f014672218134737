package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carekb/carekb/internal/output"
)

func newSearchCmd() *cobra.Command {
	var (
		topK   int
		format string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the knowledge base",
		Long: `Search the corpus with hybrid retrieval: BM25 keyword scoring and
embedding similarity, merged with Reciprocal Rank Fusion.

If the embedding provider is unreachable the search falls back to
keyword-only results.

Examples:
  carekb search "safe sleeping position"
  carekb search "room temperature" -n 5
  carekb search "feeding schedule" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			knowledge, _, err := openKB()
			if err != nil {
				return err
			}

			results, err := knowledge.Search(cmd.Context(), query, topK)
			if err != nil {
				return err
			}

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}

			output.New(cmd.OutOrStdout()).SearchResults(query, results)
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}
