package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/runtime"
)

// DefaultEmbeddingCacheTTL is how long query vectors stay cached
const DefaultEmbeddingCacheTTL = 24 * time.Hour

// Ensure queryService implements QueryService
var _ driving.QueryService = (*queryService)(nil)

// QueryServiceConfig holds dependencies for the query service.
// Cache is optional.
type QueryServiceConfig struct {
	Retrieval   driving.RetrievalService
	Chat        driving.ChatService
	Permissions driving.PermissionService
	Folders     driven.FolderStore
	Documents   driven.DocumentStore
	Chunks      driven.ChunkStore
	Services    *runtime.Services
	Cache       driven.EmbeddingCache

	CacheTTL        time.Duration
	DefaultMinScore float64
	Logger          *zap.Logger
}

type queryService struct {
	retrieval   driving.RetrievalService
	chat        driving.ChatService
	permissions driving.PermissionService
	folders     driven.FolderStore
	documents   driven.DocumentStore
	chunks      driven.ChunkStore
	services    *runtime.Services
	cache       driven.EmbeddingCache
	cacheTTL    time.Duration
	minScore    float64
	logger      *zap.Logger
}

// NewQueryService creates a new QueryService
func NewQueryService(cfg QueryServiceConfig) driving.QueryService {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultEmbeddingCacheTTL
	}
	return &queryService{
		retrieval:   cfg.Retrieval,
		chat:        cfg.Chat,
		permissions: cfg.Permissions,
		folders:     cfg.Folders,
		documents:   cfg.Documents,
		chunks:      cfg.Chunks,
		services:    cfg.Services,
		cache:       cfg.Cache,
		cacheTTL:    ttl,
		minScore:    cfg.DefaultMinScore,
		logger:      loggerOrNop(cfg.Logger),
	}
}

// Query answers a question from the folders the user may read and records
// the exchange in the session
func (s *queryService) Query(ctx context.Context, userID string, req *domain.QueryRequest) (*domain.QueryResponse, error) {
	start := time.Now()

	if err := s.validate(req); err != nil {
		return nil, err
	}
	if _, err := s.chat.GetSession(ctx, userID, req.SessionID); err != nil {
		return nil, err
	}
	if req.RequestID != "" {
		if prior, err := s.replay(ctx, userID, req); err != nil || prior != nil {
			return prior, err
		}
	}

	embedder := s.services.EmbeddingService()
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedding service not configured", domain.ErrServiceUnavailable)
	}
	vector, err := s.embed(ctx, embedder, req.Query)
	if err != nil {
		return nil, err
	}

	minScore := s.minScore
	if req.MinScore != nil {
		minScore = *req.MinScore
	}
	result, err := s.retrieval.Search(ctx, userID, &domain.SearchRequest{
		Vector:    vector,
		FolderIDs: req.FolderIDs,
		Limit:     req.Limit,
		MinScore:  minScore,
	})
	if err != nil {
		return nil, err
	}

	answer, llmModel, err := s.answer(ctx, req.Query, result.Sources)
	if err != nil {
		return nil, err
	}

	metadata := map[string]any{
		domain.MetaTotalChunks:    result.ChunksConsidered,
		domain.MetaProcessingMs:   domain.ElapsedMillis(time.Since(start)),
		domain.MetaEmbeddingModel: embedder.Model(),
		domain.MetaScope:          result.Scope,
	}
	if llmModel != "" {
		metadata[domain.MetaLLMModel] = llmModel
	}

	msg, err := s.chat.AppendMessage(ctx, userID, &domain.ChatMessage{
		SessionID: req.SessionID,
		Query:     req.Query,
		Answer:    answer,
		Sources:   result.Sources,
		Metadata:  metadata,
		RequestID: req.RequestID,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("query answered",
		zap.String("user_id", userID),
		zap.String("session_id", req.SessionID),
		zap.Int("sources", len(msg.Sources)),
		zap.Int("chunks_considered", result.ChunksConsidered),
		zap.Duration("took", time.Since(start)),
	)
	return responseFromMessage(msg), nil
}

func (s *queryService) validate(req *domain.QueryRequest) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return domain.NewValidationError("query", "must not be empty")
	}
	if req.SessionID == "" {
		return domain.NewValidationError("session_id", "must not be empty")
	}
	if req.Limit < 0 {
		return domain.NewValidationError("limit", "must not be negative")
	}
	if req.MinScore != nil && (*req.MinScore < 0 || *req.MinScore > 1) {
		return domain.NewValidationError("min_score", "must be between 0 and 1")
	}
	return nil
}

// replay returns the stored response for a request id already answered in the session
func (s *queryService) replay(ctx context.Context, userID string, req *domain.QueryRequest) (*domain.QueryResponse, error) {
	messages, err := s.chat.ListMessages(ctx, userID, req.SessionID)
	if err != nil {
		return nil, err
	}
	for _, m := range messages {
		if m.RequestID == req.RequestID {
			return responseFromMessage(m), nil
		}
	}
	return nil, nil
}

// embed returns the query vector, consulting the cache first.
// Cache failures are logged and never fail the query.
func (s *queryService) embed(ctx context.Context, embedder driven.EmbeddingService, query string) ([]float32, error) {
	model := embedder.Model()
	if s.cache != nil {
		vector, ok, err := s.cache.Get(ctx, model, query)
		if err != nil {
			s.logger.Warn("embedding cache read failed", zap.Error(err))
		} else if ok {
			return vector, nil
		}
	}

	vector, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, transient("embed query", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, model, query, vector, s.cacheTTL); err != nil {
			s.logger.Warn("embedding cache write failed", zap.Error(err))
		}
	}
	return vector, nil
}

// answer writes the reply. No sources means the fixed no-results answer
// without calling a model; no model means an extractive answer.
func (s *queryService) answer(ctx context.Context, query string, sources []*domain.Source) (string, string, error) {
	if len(sources) == 0 {
		return domain.NoResultsAnswer, "", nil
	}
	llm := s.services.LLMService()
	if llm == nil {
		return domain.ExtractiveAnswer(sources), "", nil
	}
	answer, err := llm.GenerateAnswer(ctx, query, sources)
	if err != nil {
		return "", "", transient("generate answer", err)
	}
	return answer, llm.Model(), nil
}

// QueryableFolders lists readable folders with their document and chunk counts
func (s *queryService) QueryableFolders(ctx context.Context, userID string) ([]*domain.QueryableFolder, error) {
	ids, err := s.permissions.AccessibleFolders(ctx, userID, domain.CapabilityRead)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*domain.QueryableFolder{}, nil
	}

	var (
		folders  []*domain.Folder
		access   map[string]domain.Access
		docCount map[string]int
		chunkCnt map[string]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if folders, err = s.folders.GetMany(gctx, ids); err != nil {
			return err
		}
		access, err = s.permissions.ResolveMany(gctx, userID, folders)
		return err
	})
	g.Go(func() (err error) {
		docCount, err = s.documents.CountByFolders(gctx, ids)
		return err
	})
	g.Go(func() (err error) {
		chunkCnt, err = s.chunks.CountInFolders(gctx, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.Folder, len(folders))
	for _, f := range folders {
		byID[f.ID] = f
	}
	out := make([]*domain.QueryableFolder, 0, len(ids))
	for _, id := range ids {
		f, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, &domain.QueryableFolder{
			ID:            f.ID,
			Name:          f.Name,
			Path:          f.Path,
			ParentID:      f.ParentID,
			DocumentCount: docCount[id],
			ChunkCount:    chunkCnt[id],
			Access:        access[id].Capabilities,
		})
	}
	return out, nil
}

// SuggestQueries asks the model for related questions about the documents
// the user can read. A failing model yields no suggestions, not an error.
func (s *queryService) SuggestQueries(ctx context.Context, userID string, req *domain.SuggestRequest) ([]string, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return nil, domain.NewValidationError("query", "must not be empty")
	}

	accessible, err := s.permissions.AccessibleFolders(ctx, userID, domain.CapabilityRead)
	if err != nil {
		return nil, err
	}
	scope := domain.IntersectScope(accessible, req.FolderIDs)
	llm := s.services.LLMService()
	if len(scope) == 0 || llm == nil {
		return []string{}, nil
	}

	names, err := s.documents.RecentFilenames(ctx, scope, domain.SuggestionDocuments)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return []string{}, nil
	}

	text, err := llm.SuggestQueries(ctx, req.Query, names)
	if err != nil {
		s.logger.Warn("query suggestions failed",
			zap.String("user_id", userID),
			zap.String("model", llm.Model()),
			zap.Error(err),
		)
		return []string{}, nil
	}
	return domain.ParseSuggestions(text), nil
}

// Stats reports what the user can query and which AI services are up
func (s *queryService) Stats(ctx context.Context, userID string) (*domain.RAGStats, error) {
	ids, err := s.permissions.AccessibleFolders(ctx, userID, domain.CapabilityRead)
	if err != nil {
		return nil, err
	}
	stats := &domain.RAGStats{AccessibleFolders: len(ids)}

	if len(ids) > 0 {
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			counts, err := s.documents.CountByFolders(gctx, ids)
			mu.Lock()
			defer mu.Unlock()
			stats.Documents = sum(counts)
			return err
		})
		g.Go(func() error {
			counts, err := s.chunks.CountInFolders(gctx, ids)
			mu.Lock()
			defer mu.Unlock()
			stats.Chunks = sum(counts)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	ai := s.services.Status()
	stats.StorageBackend = ai.StorageBackend
	stats.EmbeddingAvailable = ai.EmbeddingAvailable
	stats.EmbeddingModel = ai.EmbeddingModel
	stats.EmbeddingDimensions = ai.EmbeddingDimensions
	stats.LLMAvailable = ai.LLMAvailable
	stats.LLMModel = ai.LLMModel
	return stats, nil
}

func sum(counts map[string]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

func responseFromMessage(m *domain.ChatMessage) *domain.QueryResponse {
	return &domain.QueryResponse{
		MessageID:        m.ID,
		SessionID:        m.SessionID,
		Answer:           m.Answer,
		Sources:          m.Sources,
		TotalChunks:      int(metaInt(m.Metadata[domain.MetaTotalChunks])),
		ProcessingTimeMs: metaInt(m.Metadata[domain.MetaProcessingMs]),
	}
}

// metaInt reads a number from message metadata, which may have been
// through a JSON round trip
func metaInt(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}
