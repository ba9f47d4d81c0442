// Package store provides the storage adapters of the retrieval engine:
// a Postgres/pgvector store that fuses scores in SQL, a SQLite FTS5 store,
// a bleve lexical index and an in-process HNSW vector index.
package store

import (
	"context"
	"fmt"
)

// Chunk is a retrievable unit of document text.
// A nil Embedding excludes the chunk from vector scoring; it can still
// match lexically.
type Chunk struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`               // Owning table or document reference
	EntityKey string    `json:"entity_key,omitempty"` // Optional pre-filter key (project, region)
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// StoredEmbedding is a chunk whose embedding is still in its serialized
// text form, e.g. "[0.12,-0.5,0.33]".
type StoredEmbedding struct {
	ID         string
	Source     string
	EntityKey  string
	Content    string
	Serialized string
}

// VectorResult is a vector candidate.
// Similarity is 1 - cosine distance.
type VectorResult struct {
	ID         string
	Distance   float64
	Similarity float64
}

// LexicalResult is a full-text candidate.
// Rank is positive and larger for better matches.
type LexicalResult struct {
	ID           string
	Rank         float64
	MatchedTerms []string
}

// ScoredCandidate is one fused row.
// NormalizedVector and NormalizedKeyword lie in [0,1] and FusedScore is
// alpha*NormalizedVector + (1-alpha)*NormalizedKeyword.
type ScoredCandidate struct {
	ID                string  `json:"id"`
	Source            string  `json:"source"`
	EntityKey         string  `json:"entity_key,omitempty"`
	Content           string  `json:"content"`
	VectorScore       float64 `json:"vector_score"`
	KeywordScore      float64 `json:"keyword_score"`
	NormalizedVector  float64 `json:"normalized_vector_score"`
	NormalizedKeyword float64 `json:"normalized_keyword_score"`
	FusedScore        float64 `json:"fused_score"`
}

// HybridQuery holds the inputs of a storage-side hybrid fusion.
type HybridQuery struct {
	Text          string
	Embedding     []float32
	TopK          int
	MinSimilarity float64
	Alpha         float64
	EntityKey     *string // nil disables the entity filter
}

// CandidateLimit is the per-stream candidate budget: twice the requested top-K.
func (q HybridQuery) CandidateLimit() int {
	return 2 * q.TopK
}

// Filter restricts candidate retrieval. An empty EntityKey matches all chunks.
type Filter struct {
	EntityKey string
}

// VectorIndex returns vector candidates ordered by ascending distance.
type VectorIndex interface {
	SearchVectors(ctx context.Context, query []float32, limit int, minSimilarity float64, filter Filter) ([]*VectorResult, error)
}

// LexicalIndex returns full-text candidates ordered by descending rank.
// Only chunks that actually match the query are returned.
type LexicalIndex interface {
	SearchLexical(ctx context.Context, query string, limit int, filter Filter) ([]*LexicalResult, error)
}

// EmbeddingSource lists every chunk that has a serialized embedding.
type EmbeddingSource interface {
	ListEmbeddings(ctx context.Context, filter Filter) ([]*StoredEmbedding, error)
}

// ChunkReader resolves chunk ids to their display fields.
type ChunkReader interface {
	GetChunks(ctx context.Context, ids []string) (map[string]*Chunk, error)
}

// ChunkWriter persists chunks; existing ids are replaced.
type ChunkWriter interface {
	SaveChunks(ctx context.Context, chunks []*Chunk) error
}

// HybridStore fuses vector and lexical scores inside the storage engine.
type HybridStore interface {
	HybridSearch(ctx context.Context, q HybridQuery) ([]*ScoredCandidate, error)
}

// ErrDimensionMismatch is returned when vector dimensions don't match.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// matchesFilter reports whether entityKey passes f.
func matchesFilter(f Filter, entityKey string) bool {
	return f.EntityKey == "" || f.EntityKey == entityKey
}
