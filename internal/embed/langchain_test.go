package embed

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nbserrors "github.com/WRI-Indonesia/nbs-llm-sub000/internal/errors"
)

// fakeClient implements the langchaingo embeddings client.
type fakeClient struct {
	dims  int
	err   error
	calls [][]string
	short bool
}

func (f *fakeClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	n := len(texts)
	if f.short && n > 0 {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		vec := make([]float32, f.dims)
		vec[0] = float32(len(texts[i]))
		out[i] = vec
	}
	return out, nil
}

func TestLangChainEmbedder_ProbesDimensions(t *testing.T) {
	// Given: a provider returning 3-dimension vectors
	client := &fakeClient{dims: 3}

	// When: no dimension is configured
	e, err := NewLangChainEmbedder(context.Background(), client, "test-model", 0)

	// Then: one probe call learns the dimension
	require.NoError(t, err)
	assert.Equal(t, 3, e.Dimensions())
	assert.Equal(t, "test-model", e.ModelName())
	require.Len(t, client.calls, 1)
	assert.Equal(t, []string{dimensionProbe}, client.calls[0])
}

func TestLangChainEmbedder_ConfiguredDimensionsSkipProbe(t *testing.T) {
	client := &fakeClient{dims: 4}

	e, err := NewLangChainEmbedder(context.Background(), client, "m", 0,
		WithDimensions(4), WithProvider(ProviderOllama))

	require.NoError(t, err)
	assert.Empty(t, client.calls)
	assert.Equal(t, ProviderOllama, e.Provider())
}

func TestLangChainEmbedder_Embed_StripsNewLines(t *testing.T) {
	client := &fakeClient{dims: 2}
	e, err := NewLangChainEmbedder(context.Background(), client, "m", 0, WithDimensions(2))
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "hutan\ngambut")

	require.NoError(t, err)
	require.Len(t, client.calls, 1)
	assert.False(t, strings.Contains(client.calls[0][0], "\n"))
}

func TestLangChainEmbedder_Embed_DimensionMismatch(t *testing.T) {
	client := &fakeClient{dims: 5}
	e, err := NewLangChainEmbedder(context.Background(), client, "m", 0, WithDimensions(3))
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "hutan")

	assert.Equal(t, nbserrors.ErrCodeDimensionMismatch, nbserrors.GetCode(err))
}

func TestLangChainEmbedder_ProviderErrorsAreExternal(t *testing.T) {
	client := &fakeClient{dims: 2, err: errors.New("connection refused")}

	_, err := NewLangChainEmbedder(context.Background(), client, "m", 0)
	require.Error(t, err)
	assert.Equal(t, nbserrors.ErrCodeEmbeddingFailed, nbserrors.GetCode(err))
	assert.Equal(t, nbserrors.CategoryExternal, nbserrors.GetCategory(err))

	e, err := NewLangChainEmbedder(context.Background(), client, "m", 0, WithDimensions(2))
	require.NoError(t, err)
	_, err = e.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.Equal(t, nbserrors.ErrCodeEmbeddingFailed, nbserrors.GetCode(err))
}

func TestLangChainEmbedder_EmbedBatch(t *testing.T) {
	client := &fakeClient{dims: 2}
	e, err := NewLangChainEmbedder(context.Background(), client, "m", 2, WithDimensions(2))
	require.NoError(t, err)

	got, err := e.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})

	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, float32(3), got[2][0])
	// batch size 2 splits three texts into two requests
	assert.Len(t, client.calls, 2)

	empty, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLangChainEmbedder_EmbedBatch_CountMismatch(t *testing.T) {
	client := &fakeClient{dims: 2, short: true}
	e, err := NewLangChainEmbedder(context.Background(), client, "m", 0, WithDimensions(2))
	require.NoError(t, err)

	_, err = e.EmbedBatch(context.Background(), []string{"a", "b"})

	assert.Equal(t, nbserrors.ErrCodeEmbeddingFailed, nbserrors.GetCode(err))
}

func TestLangChainEmbedder_Close(t *testing.T) {
	e, err := NewLangChainEmbedder(context.Background(), &fakeClient{dims: 2}, "m", 0, WithDimensions(2))
	require.NoError(t, err)

	require.NoError(t, e.Close())

	_, err = e.Embed(context.Background(), "x")
	assert.Error(t, err)
}
