package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/carekb/carekb/internal/output"
	"github.com/carekb/carekb/internal/store"
)

func newAddCmd() *cobra.Command {
	var (
		fromURL string
		asText  bool
		title   string
	)

	cmd := &cobra.Command{
		Use:   "add [file|text...]",
		Short: "Add a document to the knowledge base",
		Long: `Add a document from a local file, a URL, or inline text.

Examples:
  carekb add notes/feeding-guide.md
  carekb add --url https://example.org/newborn-care.txt
  carekb add --text --title "Room temperature" "Keep the nursery at 16-20°C."`,
		RunE: func(cmd *cobra.Command, args []string) error {
			knowledge, _, err := openKB()
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())

			var doc *store.Document
			switch {
			case fromURL != "":
				doc, err = knowledge.AddURL(cmd.Context(), fromURL, title)
			case asText:
				doc, err = knowledge.AddText(cmd.Context(), strings.Join(args, " "), title)
			case len(args) == 1:
				doc, err = knowledge.AddFile(cmd.Context(), args[0], title)
			default:
				return cmd.Help()
			}
			if err != nil {
				out.Errorf("add failed: %v", err)
				return err
			}

			out.Successf("added %q (%s, %d chunks)", doc.Title, doc.DocID, doc.ChunkCount)
			return nil
		},
	}

	cmd.Flags().StringVar(&fromURL, "url", "", "Download the document from a URL")
	cmd.Flags().BoolVar(&asText, "text", false, "Treat arguments as inline document text")
	cmd.Flags().StringVar(&title, "title", "", "Document title (defaults to one derived from the source)")

	return cmd
}
