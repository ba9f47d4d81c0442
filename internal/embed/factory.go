package embed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	nbserrors "github.com/WRI-Indonesia/nbs-llm-sub000/internal/errors"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderStatic uses hash-based embeddings (offline, deterministic)
	ProviderStatic ProviderType = "static"

	// ProviderOpenAI uses any OpenAI-compatible embeddings endpoint
	ProviderOpenAI ProviderType = "openai"

	// ProviderOllama uses a local Ollama server
	ProviderOllama ProviderType = "ollama"
)

// Default provider settings.
const (
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultOllamaModel = "nomic-embed-text"
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultAPIKeyEnv   = "OPENAI_API_KEY"
)

// Config selects and configures an embedding provider.
type Config struct {
	Provider   string
	Model      string
	BaseURL    string
	APIKeyEnv  string
	Dimensions int
	CacheSize  int // 0 uses the default, negative disables the cache
	BatchSize  int
	Timeout    time.Duration
}

// NewEmbedder creates an embedder for cfg, wrapped in a query cache unless
// disabled. Remote providers are contacted once to learn their dimension when
// cfg.Dimensions is zero.
func NewEmbedder(ctx context.Context, cfg Config) (Embedder, error) {
	var embedder Embedder
	var err error

	switch ParseProvider(cfg.Provider) {
	case ProviderOpenAI:
		embedder, err = newOpenAIEmbedder(ctx, cfg)
	case ProviderOllama:
		embedder, err = newOllamaEmbedder(ctx, cfg)
	default:
		embedder = NewStaticEmbedderWithDimensions(cfg.Dimensions)
	}
	if err != nil {
		return nil, err
	}

	slog.Debug("embedder_created",
		slog.String("provider", string(ParseProvider(cfg.Provider))),
		slog.String("model", embedder.ModelName()),
		slog.Int("dimensions", embedder.Dimensions()))

	if cfg.CacheSize < 0 {
		return embedder, nil
	}
	return NewCachedEmbedder(embedder, cfg.CacheSize), nil
}

func newOpenAIEmbedder(ctx context.Context, cfg Config) (Embedder, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = DefaultAPIKeyEnv
	}
	token := os.Getenv(keyEnv)
	if token == "" {
		if cfg.BaseURL == "" {
			return nil, nbserrors.ConfigurationError(
				fmt.Sprintf("openai embeddings need %s or a base_url", keyEnv), nil).
				WithSuggestion("Set embeddings.base_url for a local OpenAI-compatible server, or export " + keyEnv)
		}
		// Local OpenAI-compatible servers accept any token
		token = "none"
	}

	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, nbserrors.ConfigurationError("failed to create openai client", err)
	}
	return newRemote(ctx, client, ProviderOpenAI, model, cfg)
}

func newOllamaEmbedder(ctx context.Context, cfg Config) (Embedder, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultOllamaModel
	}
	url := cfg.BaseURL
	if url == "" {
		url = DefaultOllamaURL
	}

	client, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(url))
	if err != nil {
		return nil, nbserrors.ConfigurationError("failed to create ollama client", err)
	}
	return newRemote(ctx, client, ProviderOllama, model, cfg)
}

func newRemote(ctx context.Context, client embeddings.EmbedderClient, provider ProviderType, model string, cfg Config) (Embedder, error) {
	return NewLangChainEmbedder(ctx, client, model, cfg.BatchSize,
		WithProvider(provider),
		WithDimensions(cfg.Dimensions),
		WithRequestTimeout(cfg.Timeout))
}

// ParseProvider converts a string to ProviderType. Unknown values select static.
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai":
		return ProviderOpenAI
	case "ollama":
		return ProviderOllama
	default:
		return ProviderStatic
	}
}

// String returns the string representation of ProviderType
func (p ProviderType) String() string {
	return string(p)
}

// ValidProviders returns all valid provider names
func ValidProviders() []string {
	return []string{
		string(ProviderStatic),
		string(ProviderOpenAI),
		string(ProviderOllama),
	}
}

// IsValidProvider checks if a provider name is valid
func IsValidProvider(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range ValidProviders() {
		if lower == p {
			return true
		}
	}
	return false
}

// EmbedderInfo contains information about an embedder
type EmbedderInfo struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Cached     bool
}

// GetInfo returns information about an embedder
func GetInfo(embedder Embedder) EmbedderInfo {
	info := EmbedderInfo{
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
	}

	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.inner
		info.Cached = true
	}

	info.Provider = ProviderStatic
	if lc, ok := inner.(*LangChainEmbedder); ok {
		info.Provider = lc.Provider()
	}

	return info
}
