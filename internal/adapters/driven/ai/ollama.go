package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

var (
	_ driven.EmbeddingService = (*OllamaEmbedding)(nil)
	_ driven.LLMService       = (*OllamaLLM)(nil)
)

const defaultOllamaURL = "http://localhost:11434"

func newOllamaClient(baseURL string) (*ollama.Client, *http.Client, error) {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid ollama base URL: %w", err)
	}
	hc := &http.Client{Timeout: 120 * time.Second}
	return ollama.NewClient(parsed, hc), hc, nil
}

// OllamaEmbedding implements EmbeddingService with a local Ollama server
type OllamaEmbedding struct {
	client     *ollama.Client
	http       *http.Client
	model      string
	dimensions int
}

// NewOllamaEmbedding creates an Ollama embedding service. Ollama does not
// report vector sizes, so dimensions is required.
func NewOllamaEmbedding(baseURL, model string, dimensions int) (*OllamaEmbedding, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama embedding model is required")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions required for model %s", model)
	}
	client, hc, err := newOllamaClient(baseURL)
	if err != nil {
		return nil, err
	}
	return &OllamaEmbedding{client: client, http: hc, model: model, dimensions: dimensions}, nil
}

// Embed generates one vector per text, in input order
func (e *OllamaEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.Embed(ctx, &ollama.EmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	for _, v := range resp.Embeddings {
		if len(v) != e.dimensions {
			return nil, fmt.Errorf("%w: model %s returned %d components, expected %d",
				domain.ErrEmbeddingDimensionMismatch, e.model, len(v), e.dimensions)
		}
	}
	return resp.Embeddings, nil
}

// EmbedQuery generates the vector for a question
func (e *OllamaEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embeddings, err := e.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// Dimensions returns the configured vector size
func (e *OllamaEmbedding) Dimensions() int {
	return e.dimensions
}

// Model returns the model name being used
func (e *OllamaEmbedding) Model() string {
	return e.model
}

// HealthCheck pings the Ollama server
func (e *OllamaEmbedding) HealthCheck(ctx context.Context) error {
	return e.client.Heartbeat(ctx)
}

// Close releases idle connections
func (e *OllamaEmbedding) Close() error {
	e.http.CloseIdleConnections()
	return nil
}

// OllamaLLM answers questions with a local Ollama chat model
type OllamaLLM struct {
	client      *ollama.Client
	http        *http.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewOllamaLLM creates an Ollama chat service from settings
func NewOllamaLLM(settings *domain.LLMSettings) (*OllamaLLM, error) {
	if settings.Model == "" {
		return nil, fmt.Errorf("ollama chat model is required")
	}
	client, hc, err := newOllamaClient(settings.BaseURL)
	if err != nil {
		return nil, err
	}
	maxTokens := settings.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &OllamaLLM{
		client:      client,
		http:        hc,
		model:       settings.Model,
		temperature: settings.Temperature,
		maxTokens:   maxTokens,
	}, nil
}

// GenerateAnswer asks the model to answer from the numbered sources
func (l *OllamaLLM) GenerateAnswer(ctx context.Context, query string, sources []*domain.Source) (string, error) {
	return l.chat(ctx, systemPrompt, buildUserPrompt(query, sources), l.maxTokens, l.temperature)
}

// SuggestQueries asks for related questions about the named documents
func (l *OllamaLLM) SuggestQueries(ctx context.Context, query string, filenames []string) (string, error) {
	return l.chat(ctx, suggestSystemPrompt, buildSuggestPrompt(query, filenames), suggestMaxTokens, suggestTemperature)
}

func (l *OllamaLLM) chat(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	stream := false
	var answer strings.Builder
	err := l.client.Chat(ctx, &ollama.ChatRequest{
		Model: l.model,
		Messages: []ollama.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream: &stream,
		Options: map[string]any{
			"temperature": temperature,
			"num_predict": maxTokens,
		},
	}, func(resp ollama.ChatResponse) error {
		answer.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return strings.TrimSpace(answer.String()), nil
}

// Model returns the model name being used
func (l *OllamaLLM) Model() string {
	return l.model
}

// Ping checks the Ollama server
func (l *OllamaLLM) Ping(ctx context.Context) error {
	return l.client.Heartbeat(ctx)
}

// Close releases idle connections
func (l *OllamaLLM) Close() error {
	l.http.CloseIdleConnections()
	return nil
}
