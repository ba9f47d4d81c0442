package search

import (
	"context"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/store"
)

// ExactVectorIndex answers vector queries with a full cosine scan.
// It lets HybridSearcher run without an approximate graph.
type ExactVectorIndex struct {
	cosine *CosineSearcher
}

// NewExactVectorIndex creates an index over every embedding in source.
func NewExactVectorIndex(source store.EmbeddingSource) *ExactVectorIndex {
	return &ExactVectorIndex{cosine: NewCosineSearcher(source)}
}

// SearchVectors returns up to limit results with similarity >= minSimilarity.
func (x *ExactVectorIndex) SearchVectors(ctx context.Context, query []float32, limit int, minSimilarity float64, filter store.Filter) ([]*store.VectorResult, error) {
	matches, err := x.cosine.SearchFiltered(ctx, query, minSimilarity, limit, filter)
	if err != nil {
		return nil, err
	}

	out := make([]*store.VectorResult, len(matches))
	for i, m := range matches {
		out[i] = &store.VectorResult{ID: m.ID, Similarity: m.Similarity, Distance: 1 - m.Similarity}
	}
	return out, nil
}

var _ store.VectorIndex = (*ExactVectorIndex)(nil)
