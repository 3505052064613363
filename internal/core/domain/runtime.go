package domain

import "sync"

// RuntimeConfig tracks which services are available at runtime.
// Thread-safe for concurrent access.
type RuntimeConfig struct {
	mu sync.RWMutex

	// Static (set at startup, read-only)
	StorageBackend string // "postgres" or "sqlite"

	// Dynamic capability flags (updated when AI services change)
	embeddingAvailable bool
	llmAvailable       bool
}

// NewRuntimeConfig creates a new RuntimeConfig with initial values
func NewRuntimeConfig(storageBackend string) *RuntimeConfig {
	return &RuntimeConfig{
		StorageBackend: storageBackend,
	}
}

// EmbeddingAvailable returns whether embedding service is available
func (c *RuntimeConfig) EmbeddingAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.embeddingAvailable
}

// LLMAvailable returns whether LLM service is available
func (c *RuntimeConfig) LLMAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.llmAvailable
}

// SetEmbeddingAvailable updates the embedding availability flag
func (c *RuntimeConfig) SetEmbeddingAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.embeddingAvailable = available
}

// SetLLMAvailable updates the LLM availability flag
func (c *RuntimeConfig) SetLLMAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.llmAvailable = available
}

// CanQuery returns true if questions can be embedded and retrieved
func (c *RuntimeConfig) CanQuery() bool {
	return c.EmbeddingAvailable()
}

// CanGenerate returns true if answers can be written by a language model.
// Without one, answers fall back to extractive summaries of the sources.
func (c *RuntimeConfig) CanGenerate() bool {
	return c.LLMAvailable()
}

// AIStatus is a point-in-time view of the runtime providers
type AIStatus struct {
	StorageBackend      string
	EmbeddingAvailable  bool
	EmbeddingModel      string
	EmbeddingDimensions int
	LLMAvailable        bool
	LLMModel            string
}
