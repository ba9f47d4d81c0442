package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nbserrors "github.com/WRI-Indonesia/nbs-llm-sub000/internal/errors"
	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/store"
)

func TestEngine_Search_HybridUsesRefinedAndStemmed(t *testing.T) {
	// Given: an engine over a recording hybrid store
	hybrid := &recordingHybrid{results: []*ScoredCandidate{{ID: "A", FusedScore: 0.9}}}
	embedder := &stubEmbedder{vec: []float32{1, 0}}
	e := NewEngine(NewQueryRewriter(), embedder, WithHybridStore(hybrid))

	// When: searching a single Indonesian question
	resp, err := e.Search(context.Background(), "kebakaran lahan gambut", SearchOptions{EntityKey: "riau"})

	// Then: the refined text was embedded and the stemmed text searched lexically
	require.NoError(t, err)
	assert.Equal(t, ModeHybrid, resp.Mode)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 1, resp.Count())

	require.Len(t, embedder.texts, 1)
	assert.Equal(t, resp.Query.Refined, embedder.texts[0])
	assert.Equal(t, resp.Query.Stemmed, hybrid.query.Text)
	assert.Equal(t, []float32{1, 0}, hybrid.query.Embedding)
	assert.Equal(t, DefaultTopK, hybrid.query.TopK)
	assert.Equal(t, DefaultAlpha, hybrid.query.Alpha)
	require.NotNil(t, hybrid.query.EntityKey)
	assert.Equal(t, "riau", *hybrid.query.EntityKey)
}

func TestEngine_Search_LexicalOnlyFindsUnembeddedChunk(t *testing.T) {
	// Given: a SQLite store holding one chunk that has no embedding
	ctx := context.Background()
	sq, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })
	content := "Laporan deforestasi dan kebakaran hutan di Riau"
	require.NoError(t, sq.SaveChunks(ctx, []*store.Chunk{
		{ID: "r1", Source: "reports", EntityKey: "riau", Content: content},
	}))
	hybrid := NewHybridSearcher(NewExactVectorIndex(sq), sq, sq)
	e := NewEngine(NewQueryRewriter(), &stubEmbedder{vec: []float32{1, 0}}, WithHybridStore(hybrid))

	// When: searching with the keyword stream only
	resp, err := e.Search(ctx, "kebakaran hutan", SearchOptions{Alpha: floatPtr(0)})

	// Then: the stemmed query matches the indexed chunk
	require.NoError(t, err)
	assert.Contains(t, resp.Query.StemmedTerms, "hut")
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "r1", resp.Results[0].ID)
	assert.Equal(t, content, resp.Results[0].Content)
	assert.Greater(t, resp.Results[0].KeywordScore, 0.0)
	assert.InDelta(t, 1.0, resp.Results[0].FusedScore, 1e-9)
	assert.Equal(t, 0.0, resp.Results[0].VectorScore)
}

func TestEngine_Search_NoEntityMeansNilFilter(t *testing.T) {
	hybrid := &recordingHybrid{}
	e := NewEngine(nil, &stubEmbedder{vec: []float32{1}}, WithHybridStore(hybrid))

	_, err := e.Search(context.Background(), "hutan", SearchOptions{})

	require.NoError(t, err)
	assert.Nil(t, hybrid.query.EntityKey)
}

func TestEngine_Search_ExplicitZeroAlpha(t *testing.T) {
	hybrid := &recordingHybrid{}
	e := NewEngine(nil, &stubEmbedder{vec: []float32{1}}, WithHybridStore(hybrid))

	_, err := e.Search(context.Background(), "hutan", SearchOptions{Alpha: floatPtr(0)})

	require.NoError(t, err)
	assert.Equal(t, 0.0, hybrid.query.Alpha)
}

func TestEngine_Search_CosineMode(t *testing.T) {
	source := &memorySource{docs: []*store.StoredEmbedding{
		{ID: "A", Serialized: "[1,0]"},
		{ID: "B", Serialized: "[0,1]"},
	}}
	e := NewEngine(nil, &stubEmbedder{vec: []float32{1, 0}},
		WithCosineSearcher(NewCosineSearcher(source)))

	resp, err := e.Search(context.Background(), "hutan", SearchOptions{Mode: ModeCosine, MinSimilarity: 0.5})

	require.NoError(t, err)
	assert.Equal(t, ModeCosine, resp.Mode)
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, "A", resp.Matches[0].ID)
	assert.Empty(t, resp.Results)
}

func TestEngine_Search_DefaultModeFromConfig(t *testing.T) {
	source := &memorySource{docs: []*store.StoredEmbedding{{ID: "A", Serialized: "[1]"}}}
	cfg := DefaultEngineConfig()
	cfg.Mode = ModeCosine
	e := NewEngine(nil, &stubEmbedder{vec: []float32{1}},
		WithCosineSearcher(NewCosineSearcher(source)), WithEngineConfig(cfg))

	resp, err := e.Search(context.Background(), "hutan", SearchOptions{})

	require.NoError(t, err)
	assert.Equal(t, ModeCosine, resp.Mode)
}

func TestEngine_Search_FusionFailureStillSearches(t *testing.T) {
	// Given: a failing fusion service
	rewriter := NewQueryRewriter(WithFusionService(&stubFusion{err: errors.New("llm down")}))
	hybrid := &recordingHybrid{}
	e := NewEngine(rewriter, &stubEmbedder{vec: []float32{1}}, WithHybridStore(hybrid))
	query := "Apa dampak deforestasi? Bagaimana kondisi karbon?"

	// When: searching a multi-question query
	resp, err := e.Search(context.Background(), query, SearchOptions{})

	// Then: the original query is used and no error surfaces
	require.NoError(t, err)
	assert.Equal(t, query, resp.Query.Refined)
	assert.Equal(t, query, hybrid.query.Text)
}

func TestEngine_Search_Errors(t *testing.T) {
	embedder := &stubEmbedder{vec: []float32{1}}

	tests := []struct {
		name   string
		engine *Engine
		query  string
		opts   SearchOptions
		code   string
	}{
		{
			name:   "empty query",
			engine: NewEngine(nil, embedder, WithHybridStore(&recordingHybrid{})),
			query:  "  ",
			code:   nbserrors.ErrCodeQueryEmpty,
		},
		{
			name:   "bad alpha",
			engine: NewEngine(nil, embedder, WithHybridStore(&recordingHybrid{})),
			query:  "hutan",
			opts:   SearchOptions{Alpha: floatPtr(1.5)},
			code:   nbserrors.ErrCodeInvalidAlpha,
		},
		{
			name:   "negative top k",
			engine: NewEngine(nil, embedder, WithHybridStore(&recordingHybrid{})),
			query:  "hutan",
			opts:   SearchOptions{TopK: -1},
			code:   nbserrors.ErrCodeInvalidTopK,
		},
		{
			name:   "unknown mode",
			engine: NewEngine(nil, embedder, WithHybridStore(&recordingHybrid{})),
			query:  "hutan",
			opts:   SearchOptions{Mode: "fuzzy"},
			code:   nbserrors.ErrCodeInvalidInput,
		},
		{
			name:   "no embedder",
			engine: NewEngine(nil, nil, WithHybridStore(&recordingHybrid{})),
			query:  "hutan",
			code:   nbserrors.ErrCodeEmbedderNotConfigured,
		},
		{
			name:   "embedder failure",
			engine: NewEngine(nil, &stubEmbedder{err: errors.New("timeout")}, WithHybridStore(&recordingHybrid{})),
			query:  "hutan",
			code:   nbserrors.ErrCodeEmbeddingFailed,
		},
		{
			name:   "no hybrid backend",
			engine: NewEngine(nil, embedder),
			query:  "hutan",
			code:   nbserrors.ErrCodeConfigInvalid,
		},
		{
			name:   "no cosine backend",
			engine: NewEngine(nil, embedder),
			query:  "hutan",
			opts:   SearchOptions{Mode: ModeCosine},
			code:   nbserrors.ErrCodeConfigInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.engine.Search(context.Background(), tt.query, tt.opts)
			require.Error(t, err)
			assert.Equal(t, tt.code, nbserrors.GetCode(err))
		})
	}
}

func TestEngine_Search_ClampsTopK(t *testing.T) {
	hybrid := &recordingHybrid{}
	e := NewEngine(nil, &stubEmbedder{vec: []float32{1}}, WithHybridStore(hybrid))

	_, err := e.Search(context.Background(), "hutan", SearchOptions{TopK: 500})

	require.NoError(t, err)
	assert.Equal(t, MaxTopK, hybrid.query.TopK)
}

func TestEngine_Search_StoreErrorReturned(t *testing.T) {
	hybrid := &recordingHybrid{err: nbserrors.New(nbserrors.ErrCodeStoreUnavailable, "down", nil)}
	e := NewEngine(nil, &stubEmbedder{vec: []float32{1}}, WithHybridStore(hybrid))

	_, err := e.Search(context.Background(), "hutan", SearchOptions{})

	assert.Equal(t, nbserrors.ErrCodeStoreUnavailable, nbserrors.GetCode(err))
}

func TestEngine_Rewrite(t *testing.T) {
	e := NewEngine(nil, nil)

	rq := e.Rewrite(context.Background(), "What is the forest cover?")

	assert.False(t, rq.IsMultiQuestion)
	assert.NotEmpty(t, rq.Refined)
}
