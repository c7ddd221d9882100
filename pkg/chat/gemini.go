package chat

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"
)

// DefaultGeminiChatModel is the default model for the text chat path.
const DefaultGeminiChatModel = "gemini-2.0-flash-lite"

// DefaultMaxReplyTokens caps the length of one chat reply.
const DefaultMaxReplyTokens = 500

// GeminiConfig holds configuration for the Gemini text generator.
type GeminiConfig struct {
	// Model is the Gemini model to use (default: gemini-2.0-flash-lite)
	Model string
	// APIKey is the Google API key (default: from GEMINI_API_KEY env)
	APIKey string
	// MaxTokens caps the response length (default: DefaultMaxReplyTokens)
	MaxTokens int
}

// GeminiGenerator implements Generator using the Gemini GenerateContent API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

var _ Generator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a Gemini-backed generator.
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiChatModel
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxReplyTokens
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiGenerator{
		client: client,
		model:  model,
		config: &genai.GenerateContentConfig{
			MaxOutputTokens: genai.Ptr(int32(maxTokens)),
		},
	}, nil
}

// Generate performs one GenerateContent call and returns the first text part.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}, g.config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				return part.Text, nil
			}
		}
	}

	return "", fmt.Errorf("no text in model response")
}
