package mcp

import (
	"fmt"
	"strings"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/search"
)

// ToSearchOutput converts an engine response to the tool output schema.
func ToSearchOutput(resp *search.SearchResponse) SearchOutput {
	out := SearchOutput{
		Mode:    string(resp.Mode),
		Results: make([]ResultOutput, 0, resp.Count()),
	}
	if resp.Query != nil {
		out.Query = resp.Query.Refined
		out.Language = resp.Query.Language.String()
	}

	for _, c := range resp.Results {
		out.Results = append(out.Results, ResultOutput{
			ID:           c.ID,
			Source:       c.Source,
			EntityKey:    c.EntityKey,
			Content:      c.Content,
			Score:        c.FusedScore,
			VectorScore:  c.NormalizedVector,
			KeywordScore: c.NormalizedKeyword,
		})
	}
	for _, m := range resp.Matches {
		out.Results = append(out.Results, ResultOutput{
			ID:        m.ID,
			Source:    m.Source,
			EntityKey: m.EntityKey,
			Content:   m.Content,
			Score:     m.Similarity,
		})
	}
	return out
}

// ToRewriteOutput converts a rewritten query to the tool output schema.
func ToRewriteOutput(rq *search.RewrittenQuery) RewriteOutput {
	questions := rq.Questions
	if questions == nil {
		questions = []string{}
	}
	return RewriteOutput{
		Original:        rq.Original,
		Refined:         rq.Refined,
		Stemmed:         rq.Stemmed,
		Language:        rq.Language.String(),
		IsMultiQuestion: rq.IsMultiQuestion,
		Questions:       questions,
	}
}

// FormatSearchResults renders search output as markdown.
func FormatSearchResults(out SearchOutput) string {
	var sb strings.Builder

	if len(out.Results) == 0 {
		sb.WriteString(fmt.Sprintf("No results found for: %q\n\n", out.Query))
		sb.WriteString("Try:\n")
		sb.WriteString("- Using different keywords\n")
		sb.WriteString("- Removing the entity filter\n")
		sb.WriteString("- Lowering min_similarity\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("## Results for %q (%s, %s)\n\n", out.Query, out.Mode, out.Language))
	for i, r := range out.Results {
		sb.WriteString(fmt.Sprintf("### %d. %s\n", i+1, r.ID))
		sb.WriteString(fmt.Sprintf("**Source:** %s", r.Source))
		if r.EntityKey != "" {
			sb.WriteString(fmt.Sprintf(" | **Entity:** %s", r.EntityKey))
		}
		sb.WriteString(fmt.Sprintf(" | **Score:** %.3f\n\n", r.Score))
		sb.WriteString(strings.TrimSpace(r.Content))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// FormatRewrite renders a rewritten query as markdown.
func FormatRewrite(out RewriteOutput) string {
	var sb strings.Builder
	sb.WriteString("## Query Rewrite\n\n")
	sb.WriteString(fmt.Sprintf("- **Language:** %s\n", out.Language))
	sb.WriteString(fmt.Sprintf("- **Refined:** %s\n", out.Refined))
	sb.WriteString(fmt.Sprintf("- **Stemmed:** %s\n", out.Stemmed))
	if out.IsMultiQuestion {
		sb.WriteString("- **Questions:**\n")
		for _, q := range out.Questions {
			sb.WriteString(fmt.Sprintf("  - %s\n", q))
		}
	}
	return sb.String()
}
