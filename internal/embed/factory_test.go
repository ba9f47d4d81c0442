package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nbserrors "github.com/WRI-Indonesia/nbs-llm-sub000/internal/errors"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in   string
		want ProviderType
	}{
		{"static", ProviderStatic},
		{"OpenAI", ProviderOpenAI},
		{" ollama ", ProviderOllama},
		{"", ProviderStatic},
		{"mlx", ProviderStatic},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseProvider(tt.in))
		})
	}
}

func TestIsValidProvider(t *testing.T) {
	assert.True(t, IsValidProvider("static"))
	assert.True(t, IsValidProvider("OLLAMA"))
	assert.False(t, IsValidProvider("hugot"))
	assert.Len(t, ValidProviders(), 3)
}

func TestNewEmbedder_StaticIsCachedByDefault(t *testing.T) {
	// Given: the default static provider
	e, err := NewEmbedder(context.Background(), Config{Provider: "static", Dimensions: 128})

	// Then: it is wrapped in the query cache
	require.NoError(t, err)
	cached, ok := e.(*CachedEmbedder)
	require.True(t, ok)
	assert.IsType(t, &StaticEmbedder{}, cached.Inner())
	assert.Equal(t, 128, e.Dimensions())

	info := GetInfo(e)
	assert.Equal(t, ProviderStatic, info.Provider)
	assert.True(t, info.Cached)
	assert.Equal(t, "static-128", info.Model)
}

func TestNewEmbedder_NegativeCacheSizeDisablesCache(t *testing.T) {
	e, err := NewEmbedder(context.Background(), Config{CacheSize: -1})

	require.NoError(t, err)
	assert.IsType(t, &StaticEmbedder{}, e)
	assert.False(t, GetInfo(e).Cached)
}

func TestNewEmbedder_OpenAIWithoutKeyOrURL(t *testing.T) {
	t.Setenv("NBS_TEST_EMPTY_KEY", "")

	_, err := NewEmbedder(context.Background(), Config{Provider: "openai", APIKeyEnv: "NBS_TEST_EMPTY_KEY"})

	require.Error(t, err)
	assert.Equal(t, nbserrors.CategoryConfig, nbserrors.GetCategory(err))
}

func TestNewEmbedder_RemoteWithDimensionsSkipsNetwork(t *testing.T) {
	// A fixed dimension means construction never contacts the server
	e, err := NewEmbedder(context.Background(), Config{
		Provider:   "ollama",
		BaseURL:    "http://127.0.0.1:1",
		Dimensions: 768,
	})

	require.NoError(t, err)
	info := GetInfo(e)
	assert.Equal(t, ProviderOllama, info.Provider)
	assert.Equal(t, DefaultOllamaModel, info.Model)
	assert.Equal(t, 768, info.Dimensions)
}
