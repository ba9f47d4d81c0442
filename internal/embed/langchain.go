package embed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tmc/langchaingo/embeddings"

	nbserrors "github.com/WRI-Indonesia/nbs-llm-sub000/internal/errors"
)

// dimensionProbe is embedded once when the provider's dimension is unknown.
const dimensionProbe = "dimension probe"

// LangChainEmbedder adapts a langchaingo embeddings client to Embedder.
// The client is any langchaingo LLM that can create embeddings, typically
// llms/openai or llms/ollama.
type LangChainEmbedder struct {
	embedder   embeddings.Embedder
	provider   ProviderType
	model      string
	dimensions int
	timeout    time.Duration
	logger     *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// LangChainOption configures a LangChainEmbedder.
type LangChainOption func(*LangChainEmbedder)

// WithDimensions fixes the embedding dimension and skips the startup probe.
func WithDimensions(dims int) LangChainOption {
	return func(e *LangChainEmbedder) {
		if dims > 0 {
			e.dimensions = dims
		}
	}
}

// WithProvider records which provider the client talks to.
func WithProvider(p ProviderType) LangChainOption {
	return func(e *LangChainEmbedder) {
		e.provider = p
	}
}

// WithRequestTimeout bounds each provider call.
func WithRequestTimeout(d time.Duration) LangChainOption {
	return func(e *LangChainEmbedder) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewLangChainEmbedder wraps client. When no dimension is configured one probe
// embedding is requested so Dimensions is known before any index is touched.
func NewLangChainEmbedder(ctx context.Context, client embeddings.EmbedderClient, model string, batchSize int, opts ...LangChainOption) (*LangChainEmbedder, error) {
	inner, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(ClampBatchSize(batchSize)),
	)
	if err != nil {
		return nil, nbserrors.ConfigurationError("failed to create embedder", err)
	}

	e := &LangChainEmbedder{
		embedder: inner,
		provider: ProviderOpenAI,
		model:    model,
		timeout:  DefaultTimeout,
		logger:   slog.Default().With("component", "langchain-embedder"),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.dimensions == 0 {
		vec, err := e.Embed(ctx, dimensionProbe)
		if err != nil {
			return nil, err
		}
		if len(vec) == 0 {
			return nil, nbserrors.New(nbserrors.ErrCodeEmbeddingFailed,
				"embedding provider returned an empty vector", nil)
		}
		e.dimensions = len(vec)
		e.logger.Debug("embedding_dimensions_probed",
			slog.String("model", model),
			slog.Int("dimensions", e.dimensions))
	}

	return e, nil
}

// Embed generates embedding for a single text.
func (e *LangChainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		e.logger.Warn("embedding_failed", slog.String("model", e.model), slog.String("error", err.Error()))
		return nil, nbserrors.New(nbserrors.ErrCodeEmbeddingFailed, "embedding request failed", err)
	}
	if e.dimensions > 0 && len(vec) != e.dimensions {
		return nil, nbserrors.New(nbserrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("provider returned %d dimensions, expected %d", len(vec), e.dimensions), nil)
	}
	return vec, nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *LangChainEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Warn("embedding_batch_failed",
			slog.String("model", e.model),
			slog.Int("count", len(texts)),
			slog.String("error", err.Error()))
		return nil, nbserrors.New(nbserrors.ErrCodeEmbeddingFailed, "batch embedding request failed", err)
	}
	if len(vecs) != len(texts) {
		return nil, nbserrors.New(nbserrors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("provider returned %d embeddings for %d texts", len(vecs), len(texts)), nil)
	}
	return vecs, nil
}

// Dimensions returns the embedding dimension.
func (e *LangChainEmbedder) Dimensions() int {
	return e.dimensions
}

// Provider returns the provider the client talks to.
func (e *LangChainEmbedder) Provider() ProviderType {
	return e.provider
}

// ModelName returns the model identifier.
func (e *LangChainEmbedder) ModelName() string {
	return e.model
}

// Close marks the embedder closed. The HTTP clients need no teardown.
func (e *LangChainEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *LangChainEmbedder) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return fmt.Errorf("embedder is closed")
	}
	return nil
}
