package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

var _ driven.LLMService = (*MockLLMService)(nil)

// MockLLMService answers with a fixed template naming the sources it saw
type MockLLMService struct {
	mu    sync.Mutex
	calls int

	GenerateFn func(query string, sources []*domain.Source) (string, error)
	SuggestFn  func(query string, filenames []string) (string, error)
}

// NewMockLLMService creates a new MockLLMService
func NewMockLLMService() *MockLLMService {
	return &MockLLMService{}
}

func (m *MockLLMService) GenerateAnswer(ctx context.Context, query string, sources []*domain.Source) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.GenerateFn != nil {
		return m.GenerateFn(query, sources)
	}
	return fmt.Sprintf("answer to %q from %d sources", query, len(sources)), nil
}

// SuggestQueries returns one numbered question per filename unless SuggestFn is set
func (m *MockLLMService) SuggestQueries(ctx context.Context, query string, filenames []string) (string, error) {
	if m.SuggestFn != nil {
		return m.SuggestFn(query, filenames)
	}
	var b strings.Builder
	for i, name := range filenames {
		fmt.Fprintf(&b, "%d. What does %s say?\n", i+1, name)
	}
	return b.String(), nil
}

func (m *MockLLMService) Model() string {
	return "mock-llm"
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	return nil
}

func (m *MockLLMService) Close() error {
	return nil
}

// Calls returns how many answers were generated
func (m *MockLLMService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
