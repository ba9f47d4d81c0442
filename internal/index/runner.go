// Package index loads document chunks into the retrieval stores: it reads
// JSONL chunk files, embeds chunks that arrive without a vector and writes
// them to the configured stores and indexes.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/embed"
	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/errors"
	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/store"
)

// Runner defaults.
const (
	DefaultWorkers   = 4
	DefaultWriteSize = 500
)

// ChunkSink receives every stored chunk, e.g. a bleve or HNSW index.
type ChunkSink interface {
	Index(ctx context.Context, chunks []*store.Chunk) error
}

// ProgressFunc is called after each embedding batch with the number of
// chunks embedded so far.
type ProgressFunc func(done, total int)

// RunnerConfig configures an indexing run.
type RunnerConfig struct {
	// Path is the JSONL chunk file.
	Path string

	// LockPath, when set, is the database path guarded by a WriteLock.
	LockPath string

	// BatchSize is the number of texts per embedding call.
	BatchSize int

	// Workers bounds concurrent embedding calls.
	Workers int
}

// RunnerResult contains the outcome of an indexing run.
type RunnerResult struct {
	Chunks   int           // chunks written
	Embedded int           // chunks embedded during the run
	Dropped  int           // supplied embeddings discarded for a dimension mismatch
	Skipped  []error       // records that could not be read
	Duration time.Duration // total run time
}

// RunnerDependencies contains the injected dependencies for Runner.
type RunnerDependencies struct {
	// Writer persists chunks (required).
	Writer store.ChunkWriter

	// Embedder fills in missing embeddings (required).
	Embedder embed.Embedder

	// Sinks are indexed after the writer succeeds.
	Sinks []ChunkSink

	// Progress is optional.
	Progress ProgressFunc
}

// Runner executes indexing runs.
type Runner struct {
	writer   store.ChunkWriter
	embedder embed.Embedder
	sinks    []ChunkSink
	progress ProgressFunc
	logger   *slog.Logger
}

// NewRunner creates a Runner with injected dependencies.
func NewRunner(deps RunnerDependencies) (*Runner, error) {
	if deps.Writer == nil {
		return nil, fmt.Errorf("chunk writer is required")
	}
	if deps.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	return &Runner{
		writer:   deps.Writer,
		embedder: deps.Embedder,
		sinks:    deps.Sinks,
		progress: deps.Progress,
		logger:   slog.Default().With("component", "index"),
	}, nil
}

// Run reads cfg.Path and indexes its chunks.
func (r *Runner) Run(ctx context.Context, cfg RunnerConfig) (*RunnerResult, error) {
	start := time.Now()

	if cfg.LockPath != "" {
		lock := NewWriteLock(cfg.LockPath)
		if err := lock.Lock(); err != nil {
			return nil, errors.New(errors.ErrCodeStoreUnavailable, "failed to lock index", err).
				WithDetail("path", lock.Path())
		}
		defer func() { _ = lock.Unlock() }()
	}

	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeDocumentParse, "failed to open chunk file", err).
			WithDetail("path", cfg.Path)
	}
	defer f.Close()

	read, err := ReadChunks(f)
	if err != nil {
		return nil, err
	}

	res, err := r.IndexChunks(ctx, read.Chunks, cfg)
	if err != nil {
		return nil, err
	}
	res.Skipped = read.Skipped
	res.Duration = time.Since(start)

	r.logger.Info("index_complete",
		slog.String("path", cfg.Path),
		slog.Int("chunks", res.Chunks),
		slog.Int("embedded", res.Embedded),
		slog.Int("dropped", res.Dropped),
		slog.Int("skipped", len(res.Skipped)),
		slog.Int64("duration_ms", res.Duration.Milliseconds()))

	return res, nil
}

// IndexChunks embeds, writes and indexes chunks.
func (r *Runner) IndexChunks(ctx context.Context, chunks []*store.Chunk, cfg RunnerConfig) (*RunnerResult, error) {
	res := &RunnerResult{Chunks: len(chunks)}
	if len(chunks) == 0 {
		return res, nil
	}

	res.Dropped = r.dropMismatched(chunks)

	embedded, err := r.embedMissing(ctx, chunks, cfg)
	if err != nil {
		return nil, err
	}
	res.Embedded = embedded

	for i := 0; i < len(chunks); i += DefaultWriteSize {
		end := min(i+DefaultWriteSize, len(chunks))
		if err := r.writer.SaveChunks(ctx, chunks[i:end]); err != nil {
			return nil, err
		}
	}

	for _, sink := range r.sinks {
		if err := sink.Index(ctx, chunks); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// dropMismatched clears supplied embeddings whose dimension differs from
// the embedder's so the chunk is re-embedded consistently.
func (r *Runner) dropMismatched(chunks []*store.Chunk) int {
	dims := r.embedder.Dimensions()
	dropped := 0
	for _, c := range chunks {
		if len(c.Embedding) > 0 && len(c.Embedding) != dims {
			r.logger.Warn("chunk_embedding_dimension_mismatch",
				slog.String("id", c.ID),
				slog.Int("got", len(c.Embedding)),
				slog.Int("expected", dims))
			c.Embedding = nil
			dropped++
		}
	}
	return dropped
}

// embedMissing embeds chunks without a vector in batches, with at most
// cfg.Workers batches in flight.
func (r *Runner) embedMissing(ctx context.Context, chunks []*store.Chunk, cfg RunnerConfig) (int, error) {
	var missing []*store.Chunk
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}

	batchSize := embed.ClampBatchSize(cfg.BatchSize)
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var done atomic.Int64
	for i := 0; i < len(missing); i += batchSize {
		batch := missing[i:min(i+batchSize, len(missing))]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for j, c := range batch {
				texts[j] = c.Content
			}

			vecs, err := r.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return errors.New(errors.ErrCodeEmbeddingFailed, "failed to embed chunk batch", err).
					WithDetail("first_id", batch[0].ID)
			}
			if len(vecs) != len(batch) {
				return errors.New(errors.ErrCodeEmbeddingFailed,
					fmt.Sprintf("embedder returned %d vectors for %d chunks", len(vecs), len(batch)), nil)
			}
			for j, c := range batch {
				c.Embedding = vecs[j]
			}

			n := done.Add(int64(len(batch)))
			if r.progress != nil {
				r.progress(int(n), len(missing))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(missing), nil
}
