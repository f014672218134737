// Package output provides consistent CLI output formatting with colors
// for terminals and plain text for pipes.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/carekb/carekb/internal/kb"
	"github.com/carekb/carekb/internal/search"
	"github.com/carekb/carekb/internal/store"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out    io.Writer
	styles Styles
}

// New creates a Writer. Color is enabled only when out is a real
// terminal (and NO_COLOR is unset).
func New(out io.Writer) *Writer {
	return &Writer{out: out, styles: stylesFor(out)}
}

// NewPlain creates a Writer that never emits color codes.
func NewPlain(out io.Writer) *Writer {
	return &Writer{out: out, styles: NoColorStyles()}
}

func stylesFor(out io.Writer) Styles {
	if os.Getenv("NO_COLOR") != "" {
		return NoColorStyles()
	}
	f, ok := out.(*os.File)
	if !ok {
		return NoColorStyles()
	}
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return DefaultStyles()
	}
	return NoColorStyles()
}

// Errors from writing are intentionally ignored for console output.

// Success prints a success message.
func (w *Writer) Success(msg string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Success.Render("✓ ")+msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Warning.Render("! ")+msg)
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Error.Render("✗ ")+msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Info prints a plain status line.
func (w *Writer) Info(msg string) {
	_, _ = fmt.Fprintln(w.out, msg)
}

// Infof prints a formatted status line.
func (w *Writer) Infof(format string, args ...any) {
	w.Info(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// SearchResults renders hydrated hits with rank, source, and score.
func (w *Writer) SearchResults(query string, results []search.SearchResult) {
	if len(results) == 0 {
		w.Info("No results for " + quote(query))
		return
	}
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(
		fmt.Sprintf("%d result(s) for %s", len(results), quote(query))))
	for i, r := range results {
		w.Newline()
		_, _ = fmt.Fprintf(w.out, "%s %s %s\n",
			w.styles.Label.Render(fmt.Sprintf("%d.", i+1)),
			w.styles.Source.Render(r.Source),
			w.styles.Score.Render(fmt.Sprintf("(score %.4f)", r.Score)))
		for _, line := range strings.Split(strings.TrimSpace(r.Text), "\n") {
			_, _ = fmt.Fprintf(w.out, "   %s\n", line)
		}
		_, _ = fmt.Fprintf(w.out, "   %s\n",
			w.styles.Dim.Render("chunk "+r.ChunkID))
	}
}

// DocumentList renders the document table, oldest first.
func (w *Writer) DocumentList(docs []store.Document) {
	if len(docs) == 0 {
		w.Info("No documents in the knowledge base.")
		return
	}
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(
		fmt.Sprintf("%d document(s)", len(docs))))
	for _, d := range docs {
		_, _ = fmt.Fprintf(w.out, "%s  %s %s\n",
			w.styles.Dim.Render(d.DocID),
			w.styles.Source.Render(d.Title),
			w.styles.Label.Render(fmt.Sprintf("(%d chunks, %s, added %s)",
				d.ChunkCount, formatBytes(d.SizeBytes),
				d.AddedAt.Format("2006-01-02"))))
	}
}

// StatsReport renders corpus statistics.
func (w *Writer) StatsReport(s *kb.Stats) {
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render("Knowledge base"))
	w.Infof("  documents:   %d", s.TotalDocuments)
	w.Infof("  chunks:      %d", s.TotalChunks)
	w.Infof("  vectors:     %d", s.IndexedVectors)
	w.Infof("  total size:  %s", formatBytes(s.TotalSizeBytes))
	w.Infof("  model:       %s", s.EmbeddingModel)
	w.Infof("  metadata:    %s", s.MetadataPath)
	w.Infof("  index:       %s", s.IndexPath)
	if s.IndexedVectors != s.TotalChunks {
		w.Warning("index out of sync with metadata, run 'carekb reindex'")
	}
}

// HealthReport renders a health check outcome.
func (w *Writer) HealthReport(h *kb.HealthStatus) {
	if h.Healthy {
		w.Success("all checks passed (" + h.EmbeddingModel + ")")
		return
	}
	for _, issue := range h.Issues {
		w.Error(issue)
	}
}

func quote(q string) string {
	return "\"" + q + "\""
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
