package search

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/lang"
	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/store"
)

// stubFusion is a QueryFusionService test double.
type stubFusion struct {
	mu        sync.Mutex
	result    string
	err       error
	panicWith any
	calls     int
	questions []string
	language  lang.Code
}

func (s *stubFusion) Rewrite(_ context.Context, questions []string, language lang.Code) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.questions = questions
	s.language = language
	if s.panicWith != nil {
		panic(s.panicWith)
	}
	return s.result, s.err
}

// stubEmbedder returns a fixed vector for every text.
type stubEmbedder struct {
	vec   []float32
	err   error
	texts []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.texts = append(s.texts, text)
	if s.err != nil {
		return nil, s.err
	}
	return s.vec, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int   { return len(s.vec) }
func (s *stubEmbedder) ModelName() string { return "stub" }
func (s *stubEmbedder) Close() error      { return nil }

// memorySource is an in-memory EmbeddingSource.
type memorySource struct {
	docs []*store.StoredEmbedding
	err  error
}

func (m *memorySource) ListEmbeddings(_ context.Context, filter store.Filter) ([]*store.StoredEmbedding, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*store.StoredEmbedding
	for _, d := range m.docs {
		if filter.EntityKey == "" || filter.EntityKey == d.EntityKey {
			out = append(out, d)
		}
	}
	return out, nil
}

// stubVectorIndex returns canned vector candidates and records the call.
type stubVectorIndex struct {
	results []*store.VectorResult
	err     error

	limit  int
	minSim float64
	filter store.Filter
}

func (s *stubVectorIndex) SearchVectors(_ context.Context, _ []float32, limit int, minSimilarity float64, filter store.Filter) ([]*store.VectorResult, error) {
	s.limit, s.minSim, s.filter = limit, minSimilarity, filter
	return s.results, s.err
}

// stubLexicalIndex returns canned lexical candidates and records the call.
type stubLexicalIndex struct {
	results []*store.LexicalResult
	err     error

	query  string
	limit  int
	filter store.Filter
}

func (s *stubLexicalIndex) SearchLexical(_ context.Context, query string, limit int, filter store.Filter) ([]*store.LexicalResult, error) {
	s.query, s.limit, s.filter = query, limit, filter
	return s.results, s.err
}

// stubChunks resolves display fields from a map.
type stubChunks map[string]*store.Chunk

func (s stubChunks) GetChunks(_ context.Context, ids []string) (map[string]*store.Chunk, error) {
	out := make(map[string]*store.Chunk, len(ids))
	for _, id := range ids {
		if c, ok := s[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

// recordingHybrid captures the HybridQuery passed by the engine.
type recordingHybrid struct {
	query   store.HybridQuery
	results []*ScoredCandidate
	err     error
}

func (r *recordingHybrid) HybridSearch(_ context.Context, q store.HybridQuery) ([]*ScoredCandidate, error) {
	r.query = q
	return r.results, r.err
}

func vecResults(pairs ...any) []*store.VectorResult {
	var out []*store.VectorResult
	for i := 0; i+1 < len(pairs); i += 2 {
		sim := pairs[i+1].(float64)
		out = append(out, &store.VectorResult{ID: pairs[i].(string), Similarity: sim, Distance: 1 - sim})
	}
	return out
}

func lexResults(pairs ...any) []*store.LexicalResult {
	var out []*store.LexicalResult
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, &store.LexicalResult{ID: pairs[i].(string), Rank: pairs[i+1].(float64)})
	}
	return out
}

func floatPtr(f float64) *float64 { return &f }

// formatVector renders v in the pgvector text form.
func formatVector(v []float32) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(float64(f), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
