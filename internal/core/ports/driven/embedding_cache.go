package driven

import (
	"context"
	"time"
)

// EmbeddingCache remembers query vectors so repeated questions skip the
// embedding provider (Redis)
type EmbeddingCache interface {
	// Get returns the cached vector for (model, text).
	// A miss returns nil, false, nil.
	Get(ctx context.Context, model, text string) ([]float32, bool, error)

	// Set stores a vector for (model, text) with the given TTL
	Set(ctx context.Context, model, text string, vector []float32, ttl time.Duration) error
}
