package services

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// DefaultSearchTimeout bounds a single retrieval
const DefaultSearchTimeout = 10 * time.Second

// Ensure retrievalService implements RetrievalService
var _ driving.RetrievalService = (*retrievalService)(nil)

// RetrievalConfig holds dependencies for the retrieval service.
type RetrievalConfig struct {
	Permissions driving.PermissionService
	Folders     driven.FolderStore
	Chunks      driven.ChunkStore
	// Index is optional; without it chunks are scanned and scored in process
	Index         driven.VectorIndex
	SearchTimeout time.Duration
	Logger        *zap.Logger
}

type retrievalService struct {
	permissions driving.PermissionService
	folders     driven.FolderStore
	chunks      driven.ChunkStore
	index       driven.VectorIndex
	timeout     time.Duration
	logger      *zap.Logger
}

// NewRetrievalService creates a new RetrievalService
func NewRetrievalService(cfg RetrievalConfig) driving.RetrievalService {
	timeout := cfg.SearchTimeout
	if timeout <= 0 {
		timeout = DefaultSearchTimeout
	}
	return &retrievalService{
		permissions: cfg.Permissions,
		folders:     cfg.Folders,
		chunks:      cfg.Chunks,
		index:       cfg.Index,
		timeout:     timeout,
		logger:      loggerOrNop(cfg.Logger),
	}
}

// Search returns the chunks most similar to req.Vector within the part of
// req.FolderIDs the user can read
func (s *retrievalService) Search(ctx context.Context, userID string, req *domain.SearchRequest) (*domain.SearchResult, error) {
	start := time.Now()

	if len(req.Vector) == 0 {
		return nil, domain.NewValidationError("vector", "must not be empty")
	}
	if req.MinScore < 0 || req.MinScore > 1 {
		return nil, domain.NewValidationError("min_score", "must be between 0 and 1")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.search(ctx, userID, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: search exceeded %s", domain.ErrTimeout, s.timeout)
		}
		return nil, err
	}
	result.Took = time.Since(start)

	s.logger.Debug("retrieval complete",
		zap.String("user_id", userID),
		zap.Int("scope", len(result.Scope)),
		zap.Int("chunks_considered", result.ChunksConsidered),
		zap.Int("sources", len(result.Sources)),
		zap.Duration("took", result.Took),
	)
	return result, nil
}

func (s *retrievalService) search(ctx context.Context, userID string, req *domain.SearchRequest) (*domain.SearchResult, error) {
	accessible, err := s.permissions.AccessibleFolders(ctx, userID, domain.CapabilityRead)
	if err != nil {
		return nil, err
	}

	result := &domain.SearchResult{
		Sources: []*domain.Source{},
		Scope:   domain.IntersectScope(accessible, req.FolderIDs),
	}
	if len(result.Scope) == 0 {
		return result, nil
	}

	dims, err := s.chunks.Dimensions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read store dimensions: %w", err)
	}
	if dims == 0 {
		return result, nil
	}
	if dims != len(req.Vector) {
		return nil, fmt.Errorf("%w: query has %d dimensions, store has %d",
			domain.ErrEmbeddingDimensionMismatch, len(req.Vector), dims)
	}

	limit := domain.ClampLimit(req.Limit)
	var scored []*domain.ScoredChunk
	if s.index != nil {
		scored, result.ChunksConsidered, err = s.nearest(ctx, req.Vector, result.Scope, limit)
	} else {
		scored, result.ChunksConsidered, err = s.scan(ctx, req.Vector, result.Scope, limit)
	}
	if err != nil {
		return nil, err
	}

	inScope := make(map[string]bool, len(result.Scope))
	for _, id := range result.Scope {
		inScope[id] = true
	}
	kept := scored[:0]
	for _, c := range scored {
		// Results outside the scope are never returned
		if !inScope[c.Record.FolderID] || c.Score < req.MinScore {
			continue
		}
		kept = append(kept, c)
	}
	domain.SortScored(kept)
	if len(kept) > limit {
		kept = kept[:limit]
	}

	result.Sources, err = s.attachSources(ctx, kept)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *retrievalService) nearest(ctx context.Context, vector []float32, scope []string, limit int) ([]*domain.ScoredChunk, int, error) {
	counts, err := s.chunks.CountInFolders(ctx, scope)
	if err != nil {
		return nil, 0, fmt.Errorf("count chunks: %w", err)
	}
	considered := 0
	for _, n := range counts {
		considered += n
	}

	scored, err := s.index.NearestChunks(ctx, vector, scope, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("vector search: %w", err)
	}
	return scored, considered, nil
}

// scan streams every chunk in scope and keeps the best limit by cosine score
func (s *retrievalService) scan(ctx context.Context, vector []float32, scope []string, limit int) ([]*domain.ScoredChunk, int, error) {
	top := &scoredHeap{}
	considered := 0

	for record, err := range s.chunks.ChunksInFolders(ctx, scope) {
		if err != nil {
			return nil, 0, fmt.Errorf("scan chunks: %w", err)
		}
		considered++
		if len(record.Chunk.Embedding) != len(vector) {
			continue
		}
		c := &domain.ScoredChunk{
			Record: record,
			Score:  domain.ScoreFromCosine(domain.CosineSimilarity(vector, record.Chunk.Embedding)),
		}
		if top.Len() < limit {
			heap.Push(top, c)
		} else if domain.LessScored(c, (*top)[0]) {
			(*top)[0] = c
			heap.Fix(top, 0)
		}
	}
	return *top, considered, nil
}

func (s *retrievalService) attachSources(ctx context.Context, scored []*domain.ScoredChunk) ([]*domain.Source, error) {
	if len(scored) == 0 {
		return []*domain.Source{}, nil
	}

	var folderIDs []string
	for _, c := range scored {
		folderIDs = append(folderIDs, c.Record.FolderID)
	}
	folders, err := s.folders.GetMany(ctx, dedupe(folderIDs))
	if err != nil {
		return nil, fmt.Errorf("load folders: %w", err)
	}
	names := make(map[string]string, len(folders))
	for _, f := range folders {
		names[f.ID] = f.Name
	}

	sources := make([]*domain.Source, len(scored))
	for i, c := range scored {
		sources[i] = &domain.Source{
			DocumentID:   c.Record.Chunk.DocumentID,
			DocumentName: c.Record.DocumentName,
			FolderID:     c.Record.FolderID,
			FolderName:   names[c.Record.FolderID],
			ChunkIndex:   c.Record.Chunk.Index,
			ChunkText:    c.Record.Chunk.Text,
			Score:        c.Score,
			Metadata:     c.Record.Chunk.Metadata,
		}
	}
	return sources, nil
}

// scoredHeap is a min-heap in retrieval order: the root is the worst kept chunk
type scoredHeap []*domain.ScoredChunk

func (h scoredHeap) Len() int           { return len(h) }
func (h scoredHeap) Less(i, j int) bool { return domain.LessScored(h[j], h[i]) }
func (h scoredHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *scoredHeap) Push(x any)        { *h = append(*h, x.(*domain.ScoredChunk)) }
func (h *scoredHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
