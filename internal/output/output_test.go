package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/lang"
	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/search"
)

func TestWriter_StatusIcons(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		icon  string
		text  string
	}{
		{"success", func(w *Writer) { w.Success("Index complete") }, "✅", "Index complete"},
		{"warning", func(w *Writer) { w.Warningf("%d records skipped", 3) }, "⚠️", "3 records skipped"},
		{"error", func(w *Writer) { w.Errorf("store %s", "down") }, "❌", "store down"},
		{"status", func(w *Writer) { w.Statusf("🔍", "Searching %q", "gambut") }, "🔍", `Searching "gambut"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.write(New(buf))
			assert.Contains(t, buf.String(), tt.icon)
			assert.Contains(t, buf.String(), tt.text)
		})
	}
}

func TestWriter_Status_NoIconIndents(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Status("", "detail")
	assert.Equal(t, "   detail\n", buf.String())
}

func TestWriter_Progress(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Progress(0, 0, "ignored")
	assert.Empty(t, buf.String())

	w.Progress(5, 10, "embedding")
	assert.Contains(t, buf.String(), "50%")
	assert.False(t, strings.HasSuffix(buf.String(), "\n"))

	w.Progress(10, 10, "embedding")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestProgressBar_Render(t *testing.T) {
	tests := []struct {
		current, total, width, wantFull int
	}{
		{0, 100, 10, 0},
		{50, 100, 10, 5},
		{100, 100, 10, 10},
		{150, 100, 10, 10},
		{25, 100, 20, 5},
	}

	for _, tt := range tests {
		bar := renderProgressBar(tt.current, tt.total, tt.width)
		assert.Equal(t, tt.wantFull, strings.Count(bar, "█"))
		assert.Equal(t, tt.width, len([]rune(bar)))
	}
}

func TestWriter_SearchResults_Hybrid(t *testing.T) {
	buf := &bytes.Buffer{}
	resp := &search.SearchResponse{
		Mode:  search.ModeHybrid,
		Query: &search.RewrittenQuery{Original: "gambut?", Refined: "gambut"},
		Results: []*search.ScoredCandidate{
			{ID: "c1", Source: "projects", Content: "Restorasi\n\nlahan gambut", FusedScore: 0.85, VectorScore: 0.9, NormalizedKeyword: 0.7},
		},
	}

	New(buf).SearchResults(resp)

	out := buf.String()
	assert.Contains(t, out, "Refined: gambut")
	assert.Contains(t, out, "1 results (hybrid)")
	assert.Contains(t, out, "1. c1 (projects)")
	assert.Contains(t, out, "fused 0.8500")
	assert.Contains(t, out, "Restorasi lahan gambut")
}

func TestWriter_SearchResults_CosineAndEmpty(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).SearchResults(&search.SearchResponse{
		Mode:    search.ModeCosine,
		Matches: []*search.CosineMatch{{ID: "m1", Source: "reports", Similarity: 0.5}},
	})
	assert.Contains(t, buf.String(), "similarity 0.5000")

	buf.Reset()
	New(buf).SearchResults(&search.SearchResponse{Mode: search.ModeHybrid})
	assert.Contains(t, buf.String(), "No results")
}

func TestWriter_Query(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Query(&search.RewrittenQuery{
		Original:        "Apa itu gambut? Bagaimana restorasinya?",
		Refined:         "gambut restorasi",
		Stemmed:         "gambut restorasi",
		Language:        lang.Indonesian,
		IsMultiQuestion: true,
		Questions:       []string{"Apa itu gambut?", "Bagaimana restorasinya?"},
	})

	out := buf.String()
	assert.Contains(t, out, "Language: id")
	assert.Contains(t, out, "  2. Bagaimana restorasinya?")
}

func TestWriter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, New(buf).JSON(map[string]int{"count": 2}))
	assert.Equal(t, "{\n  \"count\": 2\n}\n", buf.String())
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b c", Snippet("a\n b\t\tc", 10))
	assert.Equal(t, "abc…", Snippet("abcdef", 3))
	assert.Equal(t, "hutan…", Snippet("hutan gambut", 6))
}

func TestNewAuto_NonTerminal(t *testing.T) {
	buf := &bytes.Buffer{}
	assert.False(t, IsTerminal(buf))
	NewAuto(buf).Success("ok")
	assert.Equal(t, "✅ ok\n", buf.String())
}
