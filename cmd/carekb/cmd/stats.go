package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/carekb/carekb/internal/output"
)

func newStatsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge base statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			knowledge, _, err := openKB()
			if err != nil {
				return err
			}

			stats, err := knowledge.Stats()
			if err != nil {
				return err
			}

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			output.New(cmd.OutOrStdout()).StatsReport(stats)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}
