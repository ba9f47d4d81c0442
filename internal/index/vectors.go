package index

import (
	"context"
	"log/slog"
	"os"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/search"
	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/store"
)

// VectorPath returns where the HNSW graph for the database at dbPath lives.
func VectorPath(dbPath string) string {
	return dbPath + ".hnsw"
}

// LexicalPath returns where the bleve index for the database at dbPath lives.
func LexicalPath(dbPath string) string {
	return dbPath + ".bleve"
}

// BuildHNSW builds an HNSW index from every stored embedding. Embeddings
// that fail to parse are logged and skipped.
func BuildHNSW(ctx context.Context, source store.EmbeddingSource, cfg store.HNSWConfig) (*store.HNSWIndex, error) {
	stored, err := source.ListEmbeddings(ctx, store.Filter{})
	if err != nil {
		return nil, err
	}

	idx := store.NewHNSWIndex(cfg)
	chunks := make([]*store.Chunk, 0, len(stored))
	for _, s := range stored {
		vec, err := search.ParseEmbedding(s.Serialized)
		if err != nil {
			slog.Warn("embedding_parse_failed", slog.String("id", s.ID), slog.String("error", err.Error()))
			continue
		}
		chunks = append(chunks, &store.Chunk{ID: s.ID, EntityKey: s.EntityKey, Embedding: vec})
	}
	if err := idx.Add(ctx, chunks); err != nil {
		return nil, err
	}

	slog.Debug("hnsw_built", slog.Int("vectors", idx.Count()))
	return idx, nil
}

// OpenHNSW loads the saved graph at path, or builds one from source when
// none has been saved or the saved one cannot be read.
func OpenHNSW(ctx context.Context, path string, source store.EmbeddingSource, cfg store.HNSWConfig) (*store.HNSWIndex, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			idx, err := store.LoadHNSWIndex(path)
			if err == nil {
				return idx, nil
			}
			slog.Warn("hnsw_load_failed", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
	return BuildHNSW(ctx, source, cfg)
}

// hnswSink adds indexed chunks to an HNSW index and saves it.
type hnswSink struct {
	idx  *store.HNSWIndex
	path string
}

// NewHNSWSink returns a sink that keeps idx current and persists it to path
// after each run. An empty path skips persistence.
func NewHNSWSink(idx *store.HNSWIndex, path string) ChunkSink {
	return &hnswSink{idx: idx, path: path}
}

func (s *hnswSink) Index(ctx context.Context, chunks []*store.Chunk) error {
	if err := s.idx.Add(ctx, chunks); err != nil {
		return err
	}
	if s.path == "" {
		return nil
	}
	return s.idx.Save(s.path)
}
