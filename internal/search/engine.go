package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/embed"
	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/errors"
	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/store"
)

// EngineConfig holds the defaults applied to SearchOptions left unset.
type EngineConfig struct {
	Mode          Mode
	TopK          int
	Alpha         float64
	MinSimilarity float64
}

// DefaultEngineConfig returns the engine defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Mode:          ModeHybrid,
		TopK:          DefaultTopK,
		Alpha:         DefaultAlpha,
		MinSimilarity: DefaultMinSimilarity,
	}
}

// Engine runs the full retrieval pipeline: rewrite, embed, then hybrid
// fusion or the cosine fallback.
type Engine struct {
	rewriter *QueryRewriter
	embedder embed.Embedder
	hybrid   store.HybridStore
	cosine   *CosineSearcher
	config   EngineConfig
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithHybridStore sets the backend used in hybrid mode.
func WithHybridStore(h store.HybridStore) EngineOption {
	return func(e *Engine) {
		e.hybrid = h
	}
}

// WithCosineSearcher sets the backend used in cosine mode.
func WithCosineSearcher(c *CosineSearcher) EngineOption {
	return func(e *Engine) {
		e.cosine = c
	}
}

// WithEngineConfig overrides the engine defaults.
func WithEngineConfig(cfg EngineConfig) EngineOption {
	return func(e *Engine) {
		e.config = cfg
	}
}

// NewEngine creates an engine. At least one of WithHybridStore and
// WithCosineSearcher must be given for Search to succeed.
func NewEngine(rewriter *QueryRewriter, embedder embed.Embedder, opts ...EngineOption) *Engine {
	if rewriter == nil {
		rewriter = NewQueryRewriter()
	}
	e := &Engine{
		rewriter: rewriter,
		embedder: embedder,
		config:   DefaultEngineConfig(),
		logger:   slog.Default().With("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rewrite exposes the query rewriter.
func (e *Engine) Rewrite(ctx context.Context, query string) *RewrittenQuery {
	return e.rewriter.Rewrite(ctx, query)
}

// Search rewrites query, embeds the refined text and ranks chunks.
//
// Rewriting never fails the call. Validation errors, a missing backend and
// embedding or store failures are returned.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error) {
	start := time.Now()

	if strings.TrimSpace(query) == "" {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "query is empty", nil).
			WithSuggestion("Provide a search query")
	}

	opts = e.applyDefaults(opts)
	if !opts.Mode.Valid() {
		return nil, errors.ValidationError(fmt.Sprintf("unknown search mode %q", opts.Mode), nil).
			WithSuggestion("Use 'hybrid' or 'cosine'")
	}
	if err := ValidateFusion(opts.TopK, *opts.Alpha, opts.MinSimilarity); err != nil {
		return nil, err
	}
	if opts.TopK > MaxTopK {
		opts.TopK = MaxTopK
	}

	rq := e.rewriter.Rewrite(ctx, query)

	vec, err := e.embedQuery(ctx, rq.Refined)
	if err != nil {
		return nil, err
	}

	resp := &SearchResponse{Query: rq, Mode: opts.Mode}

	switch opts.Mode {
	case ModeCosine:
		if e.cosine == nil {
			return nil, errors.ConfigurationError("cosine search is not configured", nil)
		}
		resp.Matches, err = e.cosine.SearchFiltered(ctx, vec, opts.MinSimilarity, opts.TopK,
			store.Filter{EntityKey: opts.EntityKey})
	default:
		if e.hybrid == nil {
			return nil, errors.ConfigurationError("hybrid search is not configured", nil)
		}
		q := store.HybridQuery{
			Text:          rq.Stemmed,
			Embedding:     vec,
			TopK:          opts.TopK,
			MinSimilarity: opts.MinSimilarity,
			Alpha:         *opts.Alpha,
		}
		if opts.EntityKey != "" {
			key := opts.EntityKey
			q.EntityKey = &key
		}
		resp.Results, err = e.hybrid.HybridSearch(ctx, q)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Info("search_done",
		"mode", opts.Mode,
		"language", rq.Language,
		"multi_question", rq.IsMultiQuestion,
		"results", resp.Count(),
		"duration_ms", time.Since(start).Milliseconds())

	return resp, nil
}

func (e *Engine) embedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.embedder == nil {
		return nil, errors.New(errors.ErrCodeEmbedderNotConfigured, "no embedder configured", nil)
	}
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.New(errors.ErrCodeEmbeddingFailed, "failed to embed query", err)
	}
	return vec, nil
}

func (e *Engine) applyDefaults(opts SearchOptions) SearchOptions {
	if opts.Mode == "" {
		opts.Mode = e.config.Mode
	}
	if opts.TopK == 0 {
		opts.TopK = e.config.TopK
	}
	if opts.Alpha == nil {
		alpha := e.config.Alpha
		opts.Alpha = &alpha
	}
	if opts.MinSimilarity == 0 {
		opts.MinSimilarity = e.config.MinSimilarity
	}
	return opts
}
