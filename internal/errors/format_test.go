package errors

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForCLI_IncludesHintAndCode(t *testing.T) {
	err := New(ErrCodeFusionNotConfigured, "fusion model is not configured", nil).
		WithSuggestion("Set NBS_FUSION_MODEL or fusion.model")

	result := FormatForCLI(err)

	assert.Contains(t, result, "Error: fusion model is not configured")
	assert.Contains(t, result, "Hint: Set NBS_FUSION_MODEL")
	assert.Contains(t, result, "Code: ERR_103_FUSION_NOT_CONFIGURED")
}

func TestFormatForCLI_StandardErrorWrappedAsInternal(t *testing.T) {
	result := FormatForCLI(errors.New("disk on fire"))

	assert.Contains(t, result, "disk on fire")
	assert.Contains(t, result, ErrCodeInternal)
	assert.Equal(t, "", FormatForCLI(nil))
}

func TestFormatJSON_RoundTripsFields(t *testing.T) {
	err := New(ErrCodeEmbeddingParse, "bad vector", errors.New("unexpected token")).
		WithDetail("document_id", "doc-9")

	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ErrCodeEmbeddingParse, decoded["code"])
	assert.Equal(t, "PARSE", decoded["category"])
	assert.Equal(t, "unexpected token", decoded["cause"])
	assert.Equal(t, "doc-9", decoded["details"].(map[string]any)["document_id"])
}

func TestFormatForLog_ProducesKeyValuePairs(t *testing.T) {
	err := New(ErrCodeFusionFailed, "llm error", errors.New("503")).WithDetail("model", "gpt")

	attrs := FormatForLog(err)

	require.Equal(t, 0, len(attrs)%2, "attrs must be key/value pairs")
	assert.Contains(t, attrs, "error_code")
	assert.Contains(t, attrs, ErrCodeFusionFailed)
	assert.Contains(t, attrs, "detail_model")

	assert.Equal(t, []any{"error", "plain"}, FormatForLog(errors.New("plain")))
	assert.Nil(t, FormatForLog(nil))
}
