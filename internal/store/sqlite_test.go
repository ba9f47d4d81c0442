package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nbserrors "github.com/WRI-Indonesia/nbs-llm-sub000/internal/errors"
)

func sampleChunks() []*Chunk {
	return []*Chunk{
		{ID: "c1", Source: "projects", EntityKey: "riau", Content: "Restorasi lahan gambut di Riau mengurangi emisi karbon", Embedding: []float32{1, 0, 0}},
		{ID: "c2", Source: "projects", EntityKey: "jambi", Content: "Rehabilitasi mangrove pesisir Jambi", Embedding: []float32{0, 1, 0}},
		{ID: "c3", Source: "reports", EntityKey: "riau", Content: "Kebakaran hutan gambut dan karbon", Embedding: nil},
	}
}

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.SaveChunks(context.Background(), sampleChunks()))
	return s
}

func TestSQLiteStore_SearchLexical_RanksMatchesOnly(t *testing.T) {
	// Given: three chunks, two mentioning gambut
	s := newTestSQLite(t)

	// When: searching for gambut
	results, err := s.SearchLexical(context.Background(), "gambut", 10, Filter{})

	// Then: only the matching chunks come back with positive rank
	require.NoError(t, err)
	require.Len(t, results, 2)
	ids := []string{results[0].ID, results[1].ID}
	assert.ElementsMatch(t, []string{"c1", "c3"}, ids)
	for _, r := range results {
		assert.Greater(t, r.Rank, 0.0)
		assert.Equal(t, []string{"gambut"}, r.MatchedTerms)
	}
	assert.GreaterOrEqual(t, results[0].Rank, results[1].Rank)
}

func TestSQLiteStore_SearchLexical_MatchesStemmedTerms(t *testing.T) {
	// Given: c3 contains "kebakaran hutan", indexed with its stems
	s := newTestSQLite(t)

	// When: searching with the stemmed form of the query
	results, err := s.SearchLexical(context.Background(), "bakar hut", 10, Filter{})

	// Then: the affixed words are found through their stems
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c3", results[0].ID)

	// Display content is unchanged by the stem column
	chunks, err := s.GetChunks(context.Background(), []string{"c3"})
	require.NoError(t, err)
	assert.Equal(t, "Kebakaran hutan gambut dan karbon", chunks["c3"].Content)
}

func TestSQLiteStore_SearchLexical_AnyTermMatches(t *testing.T) {
	s := newTestSQLite(t)

	results, err := s.SearchLexical(context.Background(), "mangrove karbon", 10, Filter{})

	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSQLiteStore_SearchLexical_EntityFilter(t *testing.T) {
	s := newTestSQLite(t)

	results, err := s.SearchLexical(context.Background(), "karbon", 10, Filter{EntityKey: "riau"})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = s.SearchLexical(context.Background(), "karbon", 10, Filter{EntityKey: "jambi"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSQLiteStore_SearchLexical_EmptyQueries(t *testing.T) {
	s := newTestSQLite(t)

	tests := []struct {
		name  string
		query string
		limit int
	}{
		{"blank", "   ", 10},
		{"stop words only", "yang dan di", 10},
		{"punctuation", "?!()", 10},
		{"zero limit", "gambut", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := s.SearchLexical(context.Background(), tt.query, tt.limit, Filter{})
			require.NoError(t, err)
			assert.NotNil(t, results)
			assert.Empty(t, results)
		})
	}
}

func TestSQLiteStore_SearchLexical_FTSSyntaxIsQuoted(t *testing.T) {
	s := newTestSQLite(t)

	// Bare FTS5 operators in user text must not be a syntax error
	_, err := s.SearchLexical(context.Background(), `gambut" OR NEAR( AND *`, 10, Filter{})
	assert.NoError(t, err)
}

func TestSQLiteStore_ListEmbeddings_SkipsNull(t *testing.T) {
	s := newTestSQLite(t)

	embs, err := s.ListEmbeddings(context.Background(), Filter{})

	require.NoError(t, err)
	require.Len(t, embs, 2)
	assert.Equal(t, "c1", embs[0].ID)
	assert.Equal(t, "[1,0,0]", embs[0].Serialized)
	assert.Equal(t, "c2", embs[1].ID)

	filtered, err := s.ListEmbeddings(context.Background(), Filter{EntityKey: "jambi"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "c2", filtered[0].ID)
}

func TestSQLiteStore_SaveChunks_Replaces(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	// When: c2 is rewritten without mangrove
	require.NoError(t, s.SaveChunks(ctx, []*Chunk{{ID: "c2", Source: "projects", Content: "Agroforestri kopi"}}))

	// Then: the old FTS row is gone and the count is unchanged
	results, err := s.SearchLexical(ctx, "mangrove", 10, Filter{})
	require.NoError(t, err)
	assert.Empty(t, results)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	chunks, err := s.GetChunks(ctx, []string{"c2"})
	require.NoError(t, err)
	assert.Equal(t, "Agroforestri kopi", chunks["c2"].Content)
}

func TestSQLiteStore_GetChunks(t *testing.T) {
	s := newTestSQLite(t)

	chunks, err := s.GetChunks(context.Background(), []string{"c1", "c3", "missing"})

	require.NoError(t, err)
	assert.Len(t, chunks, 2)
	assert.Equal(t, "riau", chunks["c1"].EntityKey)
	assert.Equal(t, "reports", chunks["c3"].Source)
	assert.NotContains(t, chunks, "missing")

	empty, err := s.GetChunks(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSQLiteStore_Delete(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Delete(ctx, []string{"c1", "c3"}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := s.SearchLexical(ctx, "gambut", 10, Filter{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSQLiteStore_Closed_ReturnsStoreUnavailable(t *testing.T) {
	s, err := NewSQLiteStore("")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.SearchLexical(context.Background(), "gambut", 10, Filter{})
	assert.Equal(t, nbserrors.ErrCodeStoreUnavailable, nbserrors.GetCode(err))
}

func TestSQLiteStore_FileBacked_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "chunks.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveChunks(ctx, sampleChunks()))
	assert.Equal(t, path, s.Path())
	require.NoError(t, s.Close())

	// Reopen and search
	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	results, err := s.SearchLexical(ctx, "mangrove", 10, Filter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c2", results[0].ID)
}

func TestSerializeEmbedding(t *testing.T) {
	v, err := SerializeEmbedding([]float32{0.5, -1, 2})
	require.NoError(t, err)
	assert.Equal(t, "[0.5,-1,2]", v)

	v, err = SerializeEmbedding(nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}
