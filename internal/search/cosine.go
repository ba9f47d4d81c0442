package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/errors"
	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/store"
)

// CosineSimilarity returns dot(a,b) / (|a|*|b|).
//
// Vectors of different length are a caller bug and fail with
// ERR_402_DIMENSION_MISMATCH. A zero vector on either side scores 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.New(errors.ErrCodeDimensionMismatch,
			fmt.Sprintf("vector dimensions differ: %d vs %d", len(a), len(b)), nil)
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// ParseEmbedding decodes the text form of a vector, e.g. "[0.1,0.2,-0.3]".
// This is the format pgvector prints and JSON encoders produce.
func ParseEmbedding(serialized string) ([]float32, error) {
	s := strings.TrimSpace(serialized)
	if s == "" {
		return nil, errors.ParseError("empty embedding", nil)
	}

	var values []float64
	if err := json.Unmarshal([]byte(s), &values); err != nil {
		return nil, errors.ParseError("malformed embedding", err)
	}
	if len(values) == 0 {
		return nil, errors.ParseError("embedding has no components", nil)
	}

	out := make([]float32, len(values))
	for i, v := range values {
		f := float32(v)
		if math.IsNaN(v) || math.IsInf(float64(f), 0) {
			return nil, errors.ParseError(fmt.Sprintf("non-finite component at %d", i), nil)
		}
		out[i] = f
	}
	return out, nil
}

// CosineSearcher scores every stored embedding against the query in process.
// It serves deployments where the database's vector operators are bypassed.
type CosineSearcher struct {
	source store.EmbeddingSource
	logger *slog.Logger
}

// NewCosineSearcher creates a searcher over source.
func NewCosineSearcher(source store.EmbeddingSource) *CosineSearcher {
	return &CosineSearcher{
		source: source,
		logger: slog.Default().With("component", "cosine"),
	}
}

// Search returns up to topK documents with similarity >= minCosine, most
// similar first. A document whose embedding can't be parsed or has the wrong
// dimension is logged and skipped; only a source failure aborts the call.
func (c *CosineSearcher) Search(ctx context.Context, query []float32, minCosine float64, topK int) ([]*CosineMatch, error) {
	return c.SearchFiltered(ctx, query, minCosine, topK, store.Filter{})
}

// SearchFiltered is Search restricted to documents passing filter.
func (c *CosineSearcher) SearchFiltered(ctx context.Context, query []float32, minCosine float64, topK int, filter store.Filter) ([]*CosineMatch, error) {
	if topK <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidTopK, fmt.Sprintf("top_k must be positive, got %d", topK), nil)
	}

	docs, err := c.source.ListEmbeddings(ctx, filter)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreUnavailable, "failed to load embeddings", err)
	}

	matches := make([]*CosineMatch, 0, len(docs))
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		vec, err := ParseEmbedding(doc.Serialized)
		if err != nil {
			c.logger.Warn("embedding_parse_failed", append([]any{"doc_id", doc.ID}, errors.FormatForLog(err)...)...)
			continue
		}

		sim, err := CosineSimilarity(query, vec)
		if err != nil {
			c.logger.Warn("embedding_dimension_mismatch",
				"doc_id", doc.ID, "expected", len(query), "got", len(vec))
			continue
		}

		if sim >= minCosine {
			matches = append(matches, &CosineMatch{
				ID:         doc.ID,
				Source:     doc.Source,
				EntityKey:  doc.EntityKey,
				Content:    doc.Content,
				Similarity: sim,
			})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].ID < matches[j].ID
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}
