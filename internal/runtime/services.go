// Package runtime holds the AI providers the core reads on every call, so
// they can be replaced while the server runs.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Services owns the live embedding and answer providers. Either may be nil:
// without an embedder ingestion and querying report ErrServiceUnavailable,
// without an LLM answers are extractive.
type Services struct {
	mu        sync.RWMutex
	config    *domain.RuntimeConfig
	embedding driven.EmbeddingService
	llm       driven.LLMService
}

func NewServices(config *domain.RuntimeConfig) *Services {
	return &Services{config: config}
}

// Config exposes the storage backend and availability flags
func (s *Services) Config() *domain.RuntimeConfig {
	return s.config
}

func (s *Services) EmbeddingService() driven.EmbeddingService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embedding
}

func (s *Services) LLMService() driven.LLMService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.llm
}

// Status describes both providers as of one instant
func (s *Services) Status() domain.AIStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := domain.AIStatus{
		StorageBackend:     s.config.StorageBackend,
		EmbeddingAvailable: s.config.CanQuery(),
		LLMAvailable:       s.config.CanGenerate(),
	}
	if s.embedding != nil {
		st.EmbeddingModel = s.embedding.Model()
		st.EmbeddingDimensions = s.embedding.Dimensions()
	}
	if s.llm != nil {
		st.LLMModel = s.llm.Model()
	}
	return st
}

// SetEmbeddingService installs svc (nil clears it) and closes the provider it replaces
func (s *Services) SetEmbeddingService(svc driven.EmbeddingService) {
	s.mu.Lock()
	old := s.embedding
	s.embedding = svc
	s.config.SetEmbeddingAvailable(svc != nil)
	s.mu.Unlock()

	if old != nil && old != svc {
		_ = old.Close()
	}
}

// SetLLMService installs svc (nil clears it) and closes the provider it replaces
func (s *Services) SetLLMService(svc driven.LLMService) {
	s.mu.Lock()
	old := s.llm
	s.llm = svc
	s.config.SetLLMAvailable(svc != nil)
	s.mu.Unlock()

	if old != nil && old != svc {
		_ = old.Close()
	}
}

// ValidateAndSetEmbedding installs svc only if its health check passes.
// A failing provider is closed and the current one kept.
func (s *Services) ValidateAndSetEmbedding(ctx context.Context, svc driven.EmbeddingService) error {
	if svc != nil {
		if err := svc.HealthCheck(ctx); err != nil {
			_ = svc.Close()
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	s.SetEmbeddingService(svc)
	return nil
}

// ValidateAndSetLLM installs svc only if it answers a ping.
// A failing provider is closed and the current one kept.
func (s *Services) ValidateAndSetLLM(ctx context.Context, svc driven.LLMService) error {
	if svc != nil {
		if err := svc.Ping(ctx); err != nil {
			_ = svc.Close()
			return fmt.Errorf("llm ping: %w", err)
		}
	}
	s.SetLLMService(svc)
	return nil
}

// Configure builds providers from settings and installs the ones that pass
// their health check. An unreachable provider is logged and left unset so
// the server still starts; an invalid provider name is an error.
func (s *Services) Configure(
	ctx context.Context,
	factory driven.AIServiceFactory,
	embedding *domain.EmbeddingSettings,
	llm *domain.LLMSettings,
	logger *zap.Logger,
) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	emb, err := factory.CreateEmbeddingService(embedding)
	if err != nil {
		return fmt.Errorf("create embedding service: %w", err)
	}
	if err := s.ValidateAndSetEmbedding(ctx, emb); err != nil {
		logger.Warn("embedding service unavailable", zap.Error(err))
	} else if emb != nil {
		logger.Info("embedding service ready",
			zap.String("model", emb.Model()),
			zap.Int("dimensions", emb.Dimensions()),
		)
	}

	gen, err := factory.CreateLLMService(llm)
	if err != nil {
		return fmt.Errorf("create llm service: %w", err)
	}
	if err := s.ValidateAndSetLLM(ctx, gen); err != nil {
		logger.Warn("llm service unavailable, answers will be extractive", zap.Error(err))
	} else if gen != nil {
		logger.Info("llm service ready", zap.String("model", gen.Model()))
	}
	return nil
}

// Close releases both providers and marks them unavailable
func (s *Services) Close() error {
	s.mu.Lock()
	emb, llm := s.embedding, s.llm
	s.embedding, s.llm = nil, nil
	s.config.SetEmbeddingAvailable(false)
	s.config.SetLLMAvailable(false)
	s.mu.Unlock()

	var errs []error
	if emb != nil {
		errs = append(errs, emb.Close())
	}
	if llm != nil {
		errs = append(errs, llm.Close())
	}
	return errors.Join(errs...)
}
