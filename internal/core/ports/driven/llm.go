package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// LLMService writes answers grounded on retrieved sources
type LLMService interface {
	// GenerateAnswer answers query using only the given sources.
	// Sources are ordered by relevance and numbered from 1 in the prompt.
	GenerateAnswer(ctx context.Context, query string, sources []*domain.Source) (string, error)

	// SuggestQueries asks for follow-up questions about the named
	// documents and returns the raw model text, one question per line
	SuggestQueries(ctx context.Context, query string, filenames []string) (string, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
