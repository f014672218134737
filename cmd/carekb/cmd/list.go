package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/carekb/carekb/internal/output"
)

func newListCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all documents in the knowledge base",
		RunE: func(cmd *cobra.Command, _ []string) error {
			knowledge, _, err := openKB()
			if err != nil {
				return err
			}

			docs, err := knowledge.ListDocuments()
			if err != nil {
				return err
			}

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(docs)
			}

			output.New(cmd.OutOrStdout()).DocumentList(docs)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}
