package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiGeneratorDefaultTokenCap(t *testing.T) {
	gen, err := NewGeminiGenerator(context.Background(), GeminiConfig{APIKey: "test-key"})
	require.NoError(t, err)

	require.NotNil(t, gen.config.MaxOutputTokens)
	assert.Equal(t, int32(DefaultMaxReplyTokens), *gen.config.MaxOutputTokens)
	assert.Equal(t, DefaultGeminiChatModel, gen.model)
}

func TestGeminiGeneratorCustomTokenCap(t *testing.T) {
	gen, err := NewGeminiGenerator(context.Background(), GeminiConfig{
		APIKey:    "test-key",
		MaxTokens: 200,
	})
	require.NoError(t, err)

	require.NotNil(t, gen.config.MaxOutputTokens)
	assert.Equal(t, int32(200), *gen.config.MaxOutputTokens)
}

func TestGeminiGeneratorRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	_, err := NewGeminiGenerator(context.Background(), GeminiConfig{})
	assert.Error(t, err)
}
