package chat

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIConfig holds configuration for the OpenAI text generator.
type OpenAIConfig struct {
	// Model is the chat model to use (default: gpt-4o-mini)
	Model string
	// APIKey is the OpenAI API key
	APIKey string
	// MaxTokens caps the response length (0 = provider default)
	MaxTokens int
}

// OpenAIGenerator implements Generator using the OpenAI Chat Completion API.
// It exists as a drop-in alternative to the Gemini generator, selectable by
// configuration.
type OpenAIGenerator struct {
	client    *openai.Client
	model     string
	maxTokens int
}

var _ Generator = (*OpenAIGenerator)(nil)

// NewOpenAIGenerator creates an OpenAI-backed generator.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAIGenerator{
		client:    &client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Generate performs one non-streaming chat completion call.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: shared.ChatModel(g.model),
	}
	if g.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(g.maxTokens))
	}

	completion, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("completion error: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}

	return completion.Choices[0].Message.Content, nil
}
