package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/errors"
	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/store"
)

// ValidateFusion checks the caller-supplied fusion parameters.
func ValidateFusion(topK int, alpha, minSimilarity float64) error {
	if topK <= 0 {
		return errors.New(errors.ErrCodeInvalidTopK, fmt.Sprintf("top_k must be positive, got %d", topK), nil)
	}
	if math.IsNaN(alpha) || alpha < 0 || alpha > 1 {
		return errors.New(errors.ErrCodeInvalidAlpha, fmt.Sprintf("alpha must be within [0,1], got %v", alpha), nil)
	}
	if math.IsNaN(minSimilarity) || minSimilarity < 0 || minSimilarity > 1 {
		return errors.ValidationError(fmt.Sprintf("min_similarity must be within [0,1], got %v", minSimilarity), nil)
	}
	return nil
}

// Fuse blends vector and lexical candidates by batch-max normalization.
//
// Candidates are joined by ID; a side missing from one list scores 0 there.
// Each stream is divided by its own maximum over the union (0 when that
// maximum is 0), then fused = alpha*vector + (1-alpha)*keyword. Rows with a
// fused score of 0 are dropped and the rest sorted by fused score
// descending, then ID ascending.
func Fuse(vector []*store.VectorResult, lexical []*store.LexicalResult, opts FuseOptions) (*RetrievalResult, error) {
	if err := ValidateFusion(opts.TopK, opts.Alpha, 0); err != nil {
		return nil, err
	}

	// Return empty slice, not nil, for consistent API behavior
	if len(vector) == 0 && len(lexical) == 0 {
		return &RetrievalResult{Candidates: []*ScoredCandidate{}}, nil
	}

	rows := make(map[string]*ScoredCandidate, len(vector)+len(lexical))
	for _, v := range vector {
		getOrCreate(rows, v.ID).VectorScore = v.Similarity
	}
	for _, l := range lexical {
		getOrCreate(rows, l.ID).KeywordScore = l.Rank
	}

	var maxVector, maxKeyword float64
	for _, r := range rows {
		maxVector = math.Max(maxVector, r.VectorScore)
		maxKeyword = math.Max(maxKeyword, r.KeywordScore)
	}

	candidates := make([]*ScoredCandidate, 0, len(rows))
	for _, r := range rows {
		r.NormalizedVector = normalize(r.VectorScore, maxVector)
		r.NormalizedKeyword = normalize(r.KeywordScore, maxKeyword)
		r.FusedScore = opts.Alpha*r.NormalizedVector + (1-opts.Alpha)*r.NormalizedKeyword
		if r.FusedScore > 0 {
			candidates = append(candidates, r)
		}
	}

	SortCandidates(candidates)

	if len(candidates) > opts.TopK {
		candidates = candidates[:opts.TopK]
	}
	return &RetrievalResult{Candidates: candidates}, nil
}

// normalize guards the divide-by-zero of an all-zero stream.
func normalize(raw, batchMax float64) float64 {
	if batchMax > 0 {
		return raw / batchMax
	}
	return 0
}

func getOrCreate(m map[string]*ScoredCandidate, id string) *ScoredCandidate {
	if r, ok := m[id]; ok {
		return r
	}
	r := &ScoredCandidate{ID: id}
	m[id] = r
	return r
}

// SortCandidates orders by fused score descending; equal scores fall back
// to ascending ID so the order is deterministic.
func SortCandidates(c []*ScoredCandidate) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].FusedScore != c[j].FusedScore {
			return c[i].FusedScore > c[j].FusedScore
		}
		return c[i].ID < c[j].ID
	})
}

// HybridSearcher performs hybrid fusion in the application layer over any
// vector and lexical index pair.
type HybridSearcher struct {
	vector  store.VectorIndex
	lexical store.LexicalIndex
	chunks  store.ChunkReader
	logger  *slog.Logger
}

// NewHybridSearcher creates a searcher. chunks resolves display fields and
// may be nil when only IDs and scores are needed.
func NewHybridSearcher(vector store.VectorIndex, lexical store.LexicalIndex, chunks store.ChunkReader) *HybridSearcher {
	return &HybridSearcher{
		vector:  vector,
		lexical: lexical,
		chunks:  chunks,
		logger:  slog.Default().With("component", "hybrid"),
	}
}

// HybridSearch retrieves 2*TopK candidates from each index and fuses them.
func (h *HybridSearcher) HybridSearch(ctx context.Context, q store.HybridQuery) ([]*ScoredCandidate, error) {
	if err := ValidateFusion(q.TopK, q.Alpha, q.MinSimilarity); err != nil {
		return nil, err
	}

	start := time.Now()
	var filter store.Filter
	if q.EntityKey != nil {
		filter.EntityKey = *q.EntityKey
	}

	limit := q.CandidateLimit()

	var vec []*store.VectorResult
	if len(q.Embedding) > 0 {
		var err error
		vec, err = h.vector.SearchVectors(ctx, q.Embedding, limit, q.MinSimilarity, filter)
		if err != nil {
			return nil, errors.New(errors.ErrCodeSearchFailed, "vector search failed", err)
		}
	}

	lex, err := h.lexical.SearchLexical(ctx, q.Text, limit, filter)
	if err != nil {
		return nil, errors.New(errors.ErrCodeSearchFailed, "lexical search failed", err)
	}

	res, err := Fuse(vec, lex, FuseOptions{TopK: q.TopK, Alpha: q.Alpha})
	if err != nil {
		return nil, err
	}

	if err := h.hydrate(ctx, res.Candidates); err != nil {
		return nil, err
	}

	h.logger.Debug("hybrid_search_done",
		"vector_candidates", len(vec),
		"lexical_candidates", len(lex),
		"results", len(res.Candidates),
		"duration_ms", time.Since(start).Milliseconds())

	return res.Candidates, nil
}

// hydrate fills display fields from the chunk reader.
func (h *HybridSearcher) hydrate(ctx context.Context, candidates []*ScoredCandidate) error {
	if h.chunks == nil || len(candidates) == 0 {
		return nil
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}

	chunks, err := h.chunks.GetChunks(ctx, ids)
	if err != nil {
		return errors.New(errors.ErrCodeStoreUnavailable, "failed to load chunks", err)
	}

	for _, c := range candidates {
		if ch, ok := chunks[c.ID]; ok {
			c.Source = ch.Source
			c.EntityKey = ch.EntityKey
			c.Content = ch.Content
		}
	}
	return nil
}
