package redis

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.EmbeddingCache = (*EmbeddingCache)(nil)

const embeddingPrefix = "sercha-rag:embedding:"

// EmbeddingCache stores query vectors as little-endian float32 strings
// keyed by a hash of model and text
type EmbeddingCache struct {
	client redis.UniversalClient
}

// NewEmbeddingCache creates a Redis-backed embedding cache
func NewEmbeddingCache(client redis.UniversalClient) *EmbeddingCache {
	return &EmbeddingCache{client: client}
}

func embeddingKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return embeddingPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached vector for (model, text)
func (c *EmbeddingCache) Get(ctx context.Context, model, text string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, embeddingKey(model, text)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: embedding cache get: %v", domain.ErrServiceUnavailable, err)
	}
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, false, nil
	}

	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, true, nil
}

// Set stores a vector for (model, text)
func (c *EmbeddingCache) Set(ctx context.Context, model, text string, vector []float32, ttl time.Duration) error {
	buf := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	if err := c.client.Set(ctx, embeddingKey(model, text), buf, ttl).Err(); err != nil {
		return fmt.Errorf("%w: embedding cache set: %v", domain.ErrServiceUnavailable, err)
	}
	return nil
}
