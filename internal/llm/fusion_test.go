package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	nbserrors "github.com/WRI-Indonesia/nbs-llm-sub000/internal/errors"
	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/lang"
)

// fakeModel records the last request and returns a canned reply.
type fakeModel struct {
	reply    string
	err      error
	noChoice bool
	block    bool

	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, opt := range options {
		opt(&m.opts)
	}
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.noChoice {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func textOf(mc llms.MessageContent) string {
	var b strings.Builder
	for _, p := range mc.Parts {
		if tp, ok := p.(llms.TextContent); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

func TestQueryFusion_Rewrite_BuildsPromptContract(t *testing.T) {
	// Given: a fake chat model
	model := &fakeModel{reply: "dampak deforestasi terhadap stok karbon hutan"}
	f := NewQueryFusion(Config{}, WithClient(model))

	// When: fusing two Indonesian questions
	got, err := f.Rewrite(context.Background(),
		[]string{"Apa dampak deforestasi?", "Bagaimana kondisi karbon?"}, lang.Indonesian)

	// Then: system + user roles are sent with the enumerated questions
	require.NoError(t, err)
	assert.Equal(t, "dampak deforestasi terhadap stok karbon hutan", got)

	require.Len(t, model.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Contains(t, textOf(model.messages[0]), "Maksimal 30 kata")
	assert.Equal(t, "Pertanyaan:\n1. Apa dampak deforestasi?\n2. Bagaimana kondisi karbon?", textOf(model.messages[1]))

	assert.Equal(t, DefaultTemperature, model.opts.Temperature)
	assert.Equal(t, DefaultMaxTokens, model.opts.MaxTokens)
}

func TestQueryFusion_Rewrite_NonIndonesianUsesEnglish(t *testing.T) {
	for _, code := range []lang.Code{lang.English, lang.Malay, lang.Thai, lang.Vietnamese} {
		model := &fakeModel{reply: "forest carbon"}
		f := NewQueryFusion(Config{}, WithClient(model))

		_, err := f.Rewrite(context.Background(), []string{"a?", "b?"}, code)

		require.NoError(t, err)
		assert.Contains(t, textOf(model.messages[0]), "At most 30 words", code)
	}
}

func TestQueryFusion_Rewrite_CleansResponse(t *testing.T) {
	long := strings.Repeat("hutan ", 40)
	model := &fakeModel{reply: "\"" + long + "\""}
	f := NewQueryFusion(Config{}, WithClient(model))

	got, err := f.Rewrite(context.Background(), []string{"a?", "b?"}, lang.Indonesian)

	require.NoError(t, err)
	assert.Len(t, strings.Fields(got), MaxQueryWords)
	assert.NotContains(t, got, "\"")
}

func TestQueryFusion_Rewrite_Errors(t *testing.T) {
	tests := []struct {
		name  string
		model *fakeModel
		code  string
	}{
		{"client failure", &fakeModel{err: errors.New("503")}, nbserrors.ErrCodeFusionFailed},
		{"no choices", &fakeModel{noChoice: true}, nbserrors.ErrCodeFusionFailed},
		{"blank reply", &fakeModel{reply: "  \"\"  "}, nbserrors.ErrCodeFusionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewQueryFusion(Config{}, WithClient(tt.model))
			_, err := f.Rewrite(context.Background(), []string{"a?", "b?"}, lang.English)
			require.Error(t, err)
			assert.Equal(t, tt.code, nbserrors.GetCode(err))
			assert.Equal(t, nbserrors.CategoryExternal, nbserrors.GetCategory(err))
		})
	}
}

func TestQueryFusion_Rewrite_Timeout(t *testing.T) {
	// Given: a model that never answers
	f := NewQueryFusion(Config{Timeout: 20 * time.Millisecond}, WithClient(&fakeModel{block: true}))

	// When: the call exceeds the configured timeout
	_, err := f.Rewrite(context.Background(), []string{"a?", "b?"}, lang.English)

	// Then: it is reported as a fusion timeout
	assert.Equal(t, nbserrors.ErrCodeFusionTimeout, nbserrors.GetCode(err))
}

func TestQueryFusion_Rewrite_NoQuestions(t *testing.T) {
	f := NewQueryFusion(Config{}, WithClient(&fakeModel{reply: "x"}))

	_, err := f.Rewrite(context.Background(), nil, lang.English)

	assert.Equal(t, nbserrors.CategoryValidation, nbserrors.GetCategory(err))
}

func TestQueryFusion_LazyClient_MissingConfiguration(t *testing.T) {
	t.Setenv("NBS_TEST_FUSION_KEY", "")

	tests := []struct {
		name string
		cfg  Config
	}{
		{"no model", Config{APIKeyEnv: "NBS_TEST_FUSION_KEY", BaseURL: "http://localhost:1"}},
		{"no key and no base url", Config{APIKeyEnv: "NBS_TEST_FUSION_KEY", Model: "gpt-4o-mini"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Construction never fails
			f := NewQueryFusion(tt.cfg)

			_, err := f.Rewrite(context.Background(), []string{"a?", "b?"}, lang.English)

			require.Error(t, err)
			assert.Equal(t, nbserrors.ErrCodeFusionNotConfigured, nbserrors.GetCode(err))
			assert.Equal(t, nbserrors.CategoryConfig, nbserrors.GetCategory(err))
		})
	}
}

func TestQueryFusion_LazyClient_BuildsOnce(t *testing.T) {
	t.Setenv("NBS_TEST_FUSION_KEY", "")
	f := NewQueryFusion(Config{APIKeyEnv: "NBS_TEST_FUSION_KEY", Model: "m", BaseURL: "http://127.0.0.1:1/v1"})

	first, err := f.getClient()
	require.NoError(t, err)
	second, err := f.getClient()
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestNewQueryFusion_Defaults(t *testing.T) {
	f := NewQueryFusion(Config{})

	assert.Equal(t, DefaultTimeout, f.cfg.Timeout)
	assert.Equal(t, DefaultTemperature, f.temperature)
	assert.Equal(t, DefaultMaxTokens, f.cfg.MaxTokens)
	assert.Equal(t, DefaultAPIKeyEnv, f.cfg.APIKeyEnv)
}

func TestQueryFusion_Rewrite_ZeroTemperatureIsKept(t *testing.T) {
	// Given: a config that asks for greedy decoding
	zero := 0.0
	model := &fakeModel{reply: "stok karbon hutan"}
	f := NewQueryFusion(Config{Temperature: &zero}, WithClient(model))

	// When: fusing
	_, err := f.Rewrite(context.Background(), []string{"Apa?", "Bagaimana?"}, lang.Indonesian)

	// Then: temperature 0 reaches the model instead of the default
	require.NoError(t, err)
	assert.Equal(t, 0.0, model.opts.Temperature)
}
