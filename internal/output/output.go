// Package output provides consistent CLI output formatting with colors and progress indicators.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/search"
)

// snippetRunes bounds the content preview printed per result.
const snippetRunes = 160

// Writer provides formatted output for CLI.
type Writer struct {
	out    io.Writer
	styles Styles
}

// New creates a plain Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out, styles: NoColorStyles()}
}

// NewAuto creates a Writer that colours its output only when out is a terminal.
func NewAuto(out io.Writer) *Writer {
	w := New(out)
	if IsTerminal(out) {
		w.styles = DefaultStyles()
	}
	return w
}

// IsTerminal reports whether out is an interactive terminal.
func IsTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", w.styles.Success.Render(msg))
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", w.styles.Warning.Render(msg))
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", w.styles.Error.Render(msg))
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// JSON prints v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Progress prints an in-place progress bar; the line ends once current reaches total.
func (w *Writer) Progress(current, total int, msg string) {
	if total <= 0 {
		return
	}

	pct := float64(current) / float64(total) * 100
	bar := renderProgressBar(current, total, 30)
	_, _ = fmt.Fprintf(w.out, "\r[%s] %.0f%% %s", bar, pct, msg)
	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

// Query prints a rewritten query.
func (w *Writer) Query(rq *search.RewrittenQuery) {
	w.field("Original", rq.Original)
	w.field("Refined", rq.Refined)
	w.field("Stemmed", rq.Stemmed)
	w.field("Language", rq.Language.String())
	if rq.IsMultiQuestion {
		w.field("Questions", "")
		for i, q := range rq.Questions {
			_, _ = fmt.Fprintf(w.out, "  %d. %s\n", i+1, q)
		}
	}
}

// SearchResults prints a search response, one block per result.
func (w *Writer) SearchResults(resp *search.SearchResponse) {
	if resp.Query != nil && resp.Query.Refined != resp.Query.Original {
		w.field("Refined", resp.Query.Refined)
	}
	if resp.Count() == 0 {
		w.Warning("No results")
		return
	}

	w.Status("", w.styles.Header.Render(fmt.Sprintf("%d results (%s)", resp.Count(), resp.Mode)))
	w.Newline()

	switch resp.Mode {
	case search.ModeCosine:
		for i, m := range resp.Matches {
			w.result(i+1, m.ID, m.Source, m.Content,
				fmt.Sprintf("similarity %.4f", m.Similarity))
		}
	default:
		for i, c := range resp.Results {
			w.result(i+1, c.ID, c.Source, c.Content,
				fmt.Sprintf("fused %.4f  vector %.4f  keyword %.4f", c.FusedScore, c.VectorScore, c.NormalizedKeyword))
		}
	}
}

func (w *Writer) result(rank int, id, source, content, scores string) {
	_, _ = fmt.Fprintf(w.out, "%s %s %s\n",
		w.styles.Header.Render(fmt.Sprintf("%d.", rank)),
		id,
		w.styles.Dim.Render("("+source+")"))
	_, _ = fmt.Fprintf(w.out, "   %s\n", w.styles.Score.Render(scores))
	_, _ = fmt.Fprintf(w.out, "   %s\n", Snippet(content, snippetRunes))
}

func (w *Writer) field(label, value string) {
	_, _ = fmt.Fprintf(w.out, "%s %s\n", w.styles.Label.Render(label+":"), value)
}

// Snippet collapses whitespace in s and cuts it to n runes with an ellipsis.
func Snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}

// renderProgressBar creates a text progress bar.
func renderProgressBar(current, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}

	filled := int(float64(current) / float64(total) * float64(width))
	filled = max(0, min(filled, width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
