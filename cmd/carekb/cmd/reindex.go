package cmd

import (
	"github.com/spf13/cobra"

	"github.com/carekb/carekb/internal/output"
)

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the vector index from stored metadata",
		Long: `Rebuild the vector index from scratch. Needed after the index file
is lost or corrupted, or after changing the embedding model.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			knowledge, _, err := openKB()
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())

			out.Info("Rebuilding vector index...")
			if err := knowledge.RebuildIndex(cmd.Context()); err != nil {
				out.Errorf("reindex failed: %v", err)
				return err
			}

			stats, err := knowledge.Stats()
			if err != nil {
				return err
			}
			out.Successf("indexed %d chunks from %d documents",
				stats.IndexedVectors, stats.TotalDocuments)
			return nil
		},
	}
}
