package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/config"
	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/embed"
	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/index"
	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/llm"
	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/search"
	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/store"
)

// app holds the components wired from a configuration.
type app struct {
	cfg      *config.Config
	embedder embed.Embedder
	engine   *search.Engine

	// writer and sinks are the indexing targets.
	writer   store.ChunkWriter
	sinks    []index.ChunkSink
	lockPath string

	closers []io.Closer
}

// openApp builds the embedder, rewriter, stores and engine for cfg.
func openApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.embedder, err = embed.NewEmbedder(ctx, embed.Config{
		Provider:   cfg.Embeddings.Provider,
		Model:      cfg.Embeddings.Model,
		BaseURL:    cfg.Embeddings.BaseURL,
		APIKeyEnv:  cfg.Embeddings.APIKeyEnv,
		Dimensions: cfg.Embeddings.Dimensions,
		CacheSize:  cfg.Embeddings.CacheSize,
		BatchSize:  cfg.Embeddings.BatchSize,
		Timeout:    cfg.Embeddings.Timeout,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.embedder)

	var hybrid store.HybridStore
	var source store.EmbeddingSource

	switch cfg.Search.Backend {
	case "postgres":
		pg, err := store.OpenPostgres(ctx, cfg.Database.PostgresDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		hybrid, source, a.writer = pg, pg, pg
	default:
		path := cfg.Database.SQLitePath
		sq, err := store.NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, sq)
		a.writer, source, a.lockPath = sq, sq, path

		var lexical store.LexicalIndex = sq
		if cfg.Search.LexicalBackend == "bleve" {
			bl, err := store.NewBleveIndex(index.LexicalPath(path))
			if err != nil {
				return nil, err
			}
			a.closers = append(a.closers, bl)
			a.sinks = append(a.sinks, bl)
			lexical = bl
		}

		var vector store.VectorIndex = search.NewExactVectorIndex(sq)
		if cfg.Search.VectorBackend == "hnsw" {
			vectorPath := index.VectorPath(path)
			hn, err := index.OpenHNSW(ctx, vectorPath, sq, store.HNSWConfig{Dimensions: a.embedder.Dimensions()})
			if err != nil {
				return nil, err
			}
			a.closers = append(a.closers, hn)
			a.sinks = append(a.sinks, index.NewHNSWSink(hn, vectorPath))
			vector = hn
		}

		hybrid = search.NewHybridSearcher(vector, lexical, sq)
	}

	a.engine = search.NewEngine(newRewriter(cfg), a.embedder,
		search.WithHybridStore(hybrid),
		search.WithCosineSearcher(search.NewCosineSearcher(source)),
		search.WithEngineConfig(search.EngineConfig{
			Mode:          search.Mode(cfg.Search.Mode),
			TopK:          cfg.Search.TopK,
			Alpha:         cfg.Search.Alpha,
			MinSimilarity: cfg.Search.MinSimilarity,
		}))

	slog.Debug("app_opened",
		slog.String("backend", cfg.Search.Backend),
		slog.String("lexical", cfg.Search.LexicalBackend),
		slog.String("vector", cfg.Search.VectorBackend),
		slog.String("model", a.embedder.ModelName()))

	return a, nil
}

// newRewriter builds the query rewriter; it needs no store or embedder.
func newRewriter(cfg *config.Config) *search.QueryRewriter {
	opts := []search.RewriterOption{
		search.WithExpander(search.NewQueryExpander(search.WithMaxExpansions(cfg.Search.MaxExpansions))),
	}
	if cfg.FusionConfigured() {
		opts = append(opts, search.WithFusionService(llm.NewQueryFusion(llm.Config{
			BaseURL:     cfg.Fusion.BaseURL,
			Model:       cfg.Fusion.Model,
			APIKeyEnv:   cfg.Fusion.APIKeyEnv,
			Timeout:     cfg.Fusion.Timeout,
			Temperature: &cfg.Fusion.Temperature,
			MaxTokens:   cfg.Fusion.MaxTokens,
		})))
	}
	return search.NewQueryRewriter(opts...)
}

// Close releases components in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
