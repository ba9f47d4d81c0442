// Package search normalizes free-text queries and ranks document chunks by
// blending vector similarity with lexical rank.
package search

import (
	"context"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/lang"
	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/store"
)

// Defaults shared by the fusion paths.
const (
	DefaultAlpha         = 0.7
	DefaultTopK          = 10
	DefaultMinSimilarity = 0.0
	MaxTopK              = 100
)

// Mode selects the retrieval path.
type Mode string

const (
	// ModeHybrid blends vector and lexical scores.
	ModeHybrid Mode = "hybrid"
	// ModeCosine scores every stored embedding in process.
	ModeCosine Mode = "cosine"
)

// Valid reports whether m names a known mode.
func (m Mode) Valid() bool {
	return m == ModeHybrid || m == ModeCosine
}

// RewrittenQuery is the normalized form of a raw query.
// Refined is never empty; on failure it equals Original.
type RewrittenQuery struct {
	Original        string    `json:"original"`
	Refined         string    `json:"refined"`
	Stemmed         string    `json:"stemmed"`
	Questions       []string  `json:"questions"`
	IsMultiQuestion bool      `json:"is_multi_question"`
	Language        lang.Code `json:"language"`
	Terms           []string  `json:"terms,omitempty"`
	StemmedTerms    []string  `json:"stemmed_terms,omitempty"`
}

// ScoredCandidate is a fused retrieval row.
type ScoredCandidate = store.ScoredCandidate

// RetrievalResult is the ranked output of a hybrid search.
// Candidates has at most TopK entries, all with FusedScore > 0, ordered by
// FusedScore descending and then ID ascending.
type RetrievalResult struct {
	Candidates []*ScoredCandidate `json:"candidates"`
}

// Len returns the number of candidates.
func (r *RetrievalResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Candidates)
}

// CosineMatch is one result of the in-process cosine scorer.
type CosineMatch struct {
	ID         string  `json:"id"`
	Source     string  `json:"source"`
	EntityKey  string  `json:"entity_key,omitempty"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// QueryFusionService merges several sub-questions into one retrieval query.
type QueryFusionService interface {
	Rewrite(ctx context.Context, questions []string, language lang.Code) (string, error)
}

// FuseOptions configures a hybrid fusion.
type FuseOptions struct {
	TopK  int
	Alpha float64
}

// SearchOptions configures Engine.Search.
type SearchOptions struct {
	// Mode selects hybrid or cosine retrieval (default: hybrid).
	Mode Mode

	// TopK is the maximum number of results (default: 10, max: 100).
	TopK int

	// Alpha weights the vector stream; 1-Alpha weights the lexical stream.
	// Nil uses DefaultAlpha so an explicit zero stays expressible.
	Alpha *float64

	// MinSimilarity drops vector candidates (or cosine matches) below it.
	MinSimilarity float64

	// EntityKey restricts candidates to one entity; empty disables the filter.
	EntityKey string
}

// SearchResponse is the outcome of Engine.Search.
// Results is set in hybrid mode and Matches in cosine mode.
type SearchResponse struct {
	Query   *RewrittenQuery    `json:"query"`
	Mode    Mode               `json:"mode"`
	Results []*ScoredCandidate `json:"results,omitempty"`
	Matches []*CosineMatch     `json:"matches,omitempty"`
}

// Count returns the number of results in whichever mode ran.
func (r *SearchResponse) Count() int {
	if r.Mode == ModeCosine {
		return len(r.Matches)
	}
	return len(r.Results)
}
