package cmd

import (
	"github.com/spf13/cobra"

	"github.com/carekb/carekb/internal/output"
)

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <doc_id>",
		Short: "Remove a document and its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			knowledge, _, err := openKB()
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())

			removed, err := knowledge.RemoveDocument(cmd.Context(), args[0])
			if err != nil {
				out.Errorf("remove failed: %v", err)
				return err
			}
			if !removed {
				out.Warning("no document with id " + args[0])
				return nil
			}
			out.Success("removed " + args[0])
			return nil
		},
	}
}
