package ai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure OpenAILLM implements LLMService
var _ driven.LLMService = (*OpenAILLM)(nil)

const (
	defaultOpenAIChatModel = "gpt-4o-mini"
	defaultMaxTokens       = 500
)

// OpenAILLM answers questions through the chat completions API
type OpenAILLM struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature *float32
}

// NewOpenAILLM creates an OpenAI chat service from settings
func NewOpenAILLM(settings *domain.LLMSettings) (*OpenAILLM, error) {
	if settings.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	config := openai.DefaultConfig(settings.APIKey)
	if settings.BaseURL != "" {
		config.BaseURL = strings.TrimRight(settings.BaseURL, "/")
	}

	model := settings.Model
	if model == "" {
		model = defaultOpenAIChatModel
	}
	maxTokens := settings.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	temperature := float32(settings.Temperature)
	return &OpenAILLM{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		maxTokens:   maxTokens,
		temperature: &temperature,
	}, nil
}

// GenerateAnswer asks the model to answer from the numbered sources
func (l *OpenAILLM) GenerateAnswer(ctx context.Context, query string, sources []*domain.Source) (string, error) {
	return l.complete(ctx, systemPrompt, buildUserPrompt(query, sources), l.maxTokens, l.temperature)
}

// SuggestQueries asks for related questions about the named documents
func (l *OpenAILLM) SuggestQueries(ctx context.Context, query string, filenames []string) (string, error) {
	temperature := float32(suggestTemperature)
	return l.complete(ctx, suggestSystemPrompt, buildSuggestPrompt(query, filenames), suggestMaxTokens, &temperature)
}

func (l *OpenAILLM) complete(ctx context.Context, system, user string, maxTokens int, temperature *float32) (string, error) {
	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: l.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Model returns the model name being used
func (l *OpenAILLM) Model() string {
	return l.model
}

// Ping lists models to verify the endpoint and key
func (l *OpenAILLM) Ping(ctx context.Context) error {
	if _, err := l.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Close is a no-op; the client holds no resources of its own
func (l *OpenAILLM) Close() error {
	return nil
}
