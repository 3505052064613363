package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

var (
	_ driven.EmbeddingCache = (*MockEmbeddingCache)(nil)
	_ driven.EventPublisher = (*MockEventPublisher)(nil)
	_ driven.ObjectLocator  = (*MockObjectLocator)(nil)
	_ driven.VectorIndex    = (*MockVectorIndex)(nil)
)

// MockEmbeddingCache is an in-memory EmbeddingCache that ignores TTL
type MockEmbeddingCache struct {
	mu      sync.Mutex
	vectors map[string][]float32
	hits    int
}

// NewMockEmbeddingCache creates an empty cache
func NewMockEmbeddingCache() *MockEmbeddingCache {
	return &MockEmbeddingCache{vectors: make(map[string][]float32)}
}

func (m *MockEmbeddingCache) Get(ctx context.Context, model, text string) ([]float32, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vectors[model+"|"+text]
	if ok {
		m.hits++
	}
	return v, ok, nil
}

func (m *MockEmbeddingCache) Set(ctx context.Context, model, text string, vector []float32, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[model+"|"+text] = vector
	return nil
}

// Hits returns how many lookups were served from the cache
func (m *MockEmbeddingCache) Hits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits
}

// MockEventPublisher records published audit events
type MockEventPublisher struct {
	mu     sync.Mutex
	events []*domain.AuditEvent

	PublishErr error
}

// NewMockEventPublisher creates a recording publisher
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...*domain.AuditEvent) error {
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) Close() error {
	return nil
}

// Events returns the events published so far
func (m *MockEventPublisher) Events() []*domain.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.AuditEvent(nil), m.events...)
}

// Types returns the types of the events published so far
func (m *MockEventPublisher) Types() []domain.AuditEventType {
	var types []domain.AuditEventType
	for _, e := range m.Events() {
		types = append(types, e.Type)
	}
	return types
}

// MockObjectLocator returns fake presigned URLs
type MockObjectLocator struct{}

func (m *MockObjectLocator) PresignedURL(ctx context.Context, locator string, expiry time.Duration) (string, error) {
	if locator == "" {
		return "", domain.ErrNotFound
	}
	return fmt.Sprintf("https://objects.test/%s?expires=%d", locator, int(expiry.Seconds())), nil
}

// MockVectorIndex delegates nearest-neighbour search to NearestFn
type MockVectorIndex struct {
	NearestFn func(vector []float32, folderIDs []string, limit int) ([]*domain.ScoredChunk, error)
}

func (m *MockVectorIndex) NearestChunks(ctx context.Context, vector []float32, folderIDs []string, limit int) ([]*domain.ScoredChunk, error) {
	if m.NearestFn == nil {
		return nil, nil
	}
	return m.NearestFn(vector, folderIDs, limit)
}
