package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/errors"
	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/lang"
)

// Generation defaults.
const (
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 100
	DefaultTimeout     = 10 * time.Second
	DefaultAPIKeyEnv   = "OPENAI_API_KEY"
)

// Config configures the chat-completion client used for query fusion.
type Config struct {
	BaseURL     string
	Model       string
	APIKeyEnv   string
	Timeout     time.Duration
	Temperature *float64 // nil uses DefaultTemperature; 0 is greedy decoding
	MaxTokens   int
}

// QueryFusion merges several questions into one retrieval query with an
// OpenAI-compatible chat model. The client is created on first use so that
// missing configuration only matters for multi-question queries.
type QueryFusion struct {
	cfg         Config
	temperature float64
	logger      *slog.Logger

	mu     sync.Mutex
	client llms.Model
}

// Option configures a QueryFusion.
type Option func(*QueryFusion)

// WithClient uses model instead of building an OpenAI client.
func WithClient(model llms.Model) Option {
	return func(f *QueryFusion) {
		f.client = model
	}
}

// NewQueryFusion creates a fusion adapter. Unset generation settings take
// the defaults.
func NewQueryFusion(cfg Config, opts ...Option) *QueryFusion {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	temperature := DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = DefaultAPIKeyEnv
	}

	f := &QueryFusion{
		cfg:         cfg,
		temperature: temperature,
		logger:      slog.Default().With("component", "query-fusion"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Rewrite returns a single query covering every question.
func (f *QueryFusion) Rewrite(ctx context.Context, questions []string, language lang.Code) (string, error) {
	if len(questions) == 0 {
		return "", errors.ValidationError("no questions to fuse", nil)
	}

	client, err := f.getClient()
	if err != nil {
		return "", err
	}

	prompt := PromptFor(language)
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(prompt.System)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(prompt.UserPrompt(questions))},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := client.GenerateContent(ctx, content,
		llms.WithTemperature(f.temperature),
		llms.WithMaxTokens(f.cfg.MaxTokens),
	)
	if err != nil {
		// ctx.Err() distinguishes our deadline from a transport failure
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", errors.ExternalServiceError("fusion request timed out", ctxErr)
		}
		return "", errors.ExternalServiceError("fusion request failed", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.ExternalServiceError("fusion returned no choices", nil)
	}

	fused := CleanResponse(resp.Choices[0].Content)
	if fused == "" {
		return "", errors.ExternalServiceError("fusion returned an empty query", nil)
	}

	f.logger.Debug("fusion_done",
		slog.Int("questions", len(questions)),
		slog.String("language", language.String()),
		slog.Duration("duration", time.Since(start)))
	return fused, nil
}

func (f *QueryFusion) getClient() (llms.Model, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.client != nil {
		return f.client, nil
	}

	if strings.TrimSpace(f.cfg.Model) == "" {
		return nil, errors.New(errors.ErrCodeFusionNotConfigured, "fusion model is not configured", nil).
			WithSuggestion("Set fusion.model or NBS_FUSION_MODEL")
	}
	token := os.Getenv(f.cfg.APIKeyEnv)
	if token == "" {
		if f.cfg.BaseURL == "" {
			return nil, errors.New(errors.ErrCodeFusionNotConfigured,
				fmt.Sprintf("fusion needs %s or a base_url", f.cfg.APIKeyEnv), nil).
				WithSuggestion("Export " + f.cfg.APIKeyEnv + " or set fusion.base_url for a local server")
		}
		// Local OpenAI-compatible servers accept any token
		token = "none"
	}

	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(f.cfg.Model),
	}
	if f.cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(f.cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFusionNotConfigured, "failed to create fusion client", err)
	}
	f.client = client
	return client, nil
}
