package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/search"
)

func TestFormatSearchResults_Empty(t *testing.T) {
	md := FormatSearchResults(SearchOutput{Query: "terumbu karang"})

	assert.Contains(t, md, `No results found for: "terumbu karang"`)
	assert.Contains(t, md, "Removing the entity filter")
}

func TestFormatSearchResults_Results(t *testing.T) {
	md := FormatSearchResults(ToSearchOutput(hybridResponse("gambut")))

	assert.Contains(t, md, `## Results for "restorasi gambut" (hybrid, id)`)
	assert.Contains(t, md, "**Source:** projects | **Entity:** riau | **Score:** 0.910")
	assert.Contains(t, md, "**Source:** reports | **Score:** 0.300")
}

func TestToRewriteOutput_Fallback(t *testing.T) {
	out := ToRewriteOutput(search.Fallback("hutan"))

	assert.Equal(t, "hutan", out.Refined)
	assert.NotNil(t, out.Questions)
}

func TestFormatRewrite_SingleQuestionOmitsList(t *testing.T) {
	md := FormatRewrite(RewriteOutput{Language: "en", Refined: "mangrove", Stemmed: "mangrov"})

	assert.Contains(t, md, "**Stemmed:** mangrov")
	assert.NotContains(t, md, "**Questions:**")
}
