package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/runtime"
)

const (
	// DefaultEmbedBatchSize is the number of texts sent per embedding call
	DefaultEmbedBatchSize = 64
	// DefaultIngestLockTTL bounds how long one ingestion may hold a document
	DefaultIngestLockTTL = 5 * time.Minute
	// DefaultDownloadExpiry is the lifetime of presigned download links
	DefaultDownloadExpiry = 15 * time.Minute
)

// Ensure documentService implements DocumentService
var _ driving.DocumentService = (*documentService)(nil)

// DocumentServiceConfig holds dependencies for the document service.
// Lock, Locator and Publisher are optional.
type DocumentServiceConfig struct {
	Documents   driven.DocumentStore
	Chunks      driven.ChunkStore
	Permissions driving.PermissionService
	Services    *runtime.Services
	Normalisers driven.NormaliserRegistry
	Pipeline    driven.PostProcessorPipeline
	Lock        driven.DistributedLock
	Locator     driven.ObjectLocator
	Publisher   driven.EventPublisher

	EmbedBatchSize int
	LockTTL        time.Duration
	DownloadExpiry time.Duration
	Logger         *zap.Logger
}

type documentService struct {
	documents   driven.DocumentStore
	chunks      driven.ChunkStore
	permissions driving.PermissionService
	services    *runtime.Services
	normalisers driven.NormaliserRegistry
	pipeline    driven.PostProcessorPipeline
	lock        driven.DistributedLock
	locator     driven.ObjectLocator
	audit       auditor
	batchSize   int
	lockTTL     time.Duration
	expiry      time.Duration
	logger      *zap.Logger
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(cfg DocumentServiceConfig) driving.DocumentService {
	logger := loggerOrNop(cfg.Logger)
	s := &documentService{
		documents:   cfg.Documents,
		chunks:      cfg.Chunks,
		permissions: cfg.Permissions,
		services:    cfg.Services,
		normalisers: cfg.Normalisers,
		pipeline:    cfg.Pipeline,
		lock:        cfg.Lock,
		locator:     cfg.Locator,
		audit:       auditor{publisher: cfg.Publisher, logger: logger},
		batchSize:   cfg.EmbedBatchSize,
		lockTTL:     cfg.LockTTL,
		expiry:      cfg.DownloadExpiry,
		logger:      logger,
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultEmbedBatchSize
	}
	if s.lockTTL <= 0 {
		s.lockTTL = DefaultIngestLockTTL
	}
	if s.expiry <= 0 {
		s.expiry = DefaultDownloadExpiry
	}
	return s
}

// Register records a document in a folder the user can write
func (s *documentService) Register(ctx context.Context, userID, folderID string, req *domain.RegisterDocumentRequest) (*domain.Document, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.permissions.Require(ctx, userID, folderID, domain.CapabilityWrite); err != nil {
		return nil, err
	}

	doc := &domain.Document{
		ID:             uuid.NewString(),
		FolderID:       folderID,
		Filename:       req.Filename,
		ContentType:    req.ContentType,
		Size:           req.Size,
		StorageLocator: req.StorageLocator,
		Metadata:       req.Metadata,
	}
	if err := s.documents.Save(ctx, doc); err != nil {
		return nil, forbidIfMissing(err)
	}
	return doc, nil
}

// Get retrieves a document in a readable folder
func (s *documentService) Get(ctx context.Context, userID, id string) (*domain.Document, error) {
	return s.authorize(ctx, userID, id, domain.CapabilityRead)
}

// ListByFolder retrieves documents in a readable folder
func (s *documentService) ListByFolder(ctx context.Context, userID, folderID string, limit, offset int) ([]*domain.Document, error) {
	if limit < 0 || offset < 0 {
		return nil, domain.NewValidationError("", "limit and offset must not be negative")
	}
	if err := s.permissions.Require(ctx, userID, folderID, domain.CapabilityRead); err != nil {
		return nil, err
	}
	limit = domain.ClampPageSize(limit, domain.DefaultDocumentPageSize, domain.MaxDocumentPageSize)
	return s.documents.ListByFolder(ctx, folderID, limit, offset)
}

// Delete removes a document and its chunks
func (s *documentService) Delete(ctx context.Context, userID, id string) error {
	doc, err := s.authorize(ctx, userID, id, domain.CapabilityDelete)
	if err != nil {
		return err
	}
	if err := s.documents.Delete(ctx, id); err != nil {
		return err
	}

	s.audit.publish(ctx, &domain.AuditEvent{
		Type:      domain.AuditDocumentDeleted,
		ActorID:   userID,
		FolderID:  doc.FolderID,
		SubjectID: id,
	})
	return nil
}

// Ingest embeds the request and swaps the document's chunk set in one write
func (s *documentService) Ingest(ctx context.Context, userID, id string, req *domain.IngestRequest) (*domain.EmbeddingStats, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	doc, err := s.authorize(ctx, userID, id, domain.CapabilityWrite)
	if err != nil {
		return nil, err
	}

	if s.lock != nil {
		name := "ingest:document:" + id
		acquired, err := s.lock.Acquire(ctx, name, s.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("%w: acquire ingest lock: %v", domain.ErrServiceUnavailable, err)
		}
		if !acquired {
			return nil, fmt.Errorf("%w: document %s is being ingested", domain.ErrBusy, id)
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), name); err != nil {
				s.logger.Warn("failed to release ingest lock", zap.String("document_id", id), zap.Error(err))
			}
		}()
	}

	inputs := req.Chunks
	if len(inputs) == 0 {
		inputs = s.split(doc, req.Text)
		if len(inputs) == 0 {
			return nil, domain.NewValidationError("text", "no indexable content after normalisation")
		}
	}

	if err := s.embedMissing(ctx, inputs); err != nil {
		return nil, err
	}

	chunks := make([]*domain.EmbeddingChunk, len(inputs))
	for i, in := range inputs {
		chunks[i] = &domain.EmbeddingChunk{
			DocumentID: id,
			Index:      i,
			Text:       in.Text,
			Embedding:  in.Embedding,
			Metadata:   in.Metadata,
		}
	}
	if err := s.chunks.ReplaceChunks(ctx, id, chunks); err != nil {
		return nil, err
	}

	stats := domain.ComputeEmbeddingStats(id, chunks)
	s.logger.Info("document ingested",
		zap.String("document_id", id),
		zap.String("folder_id", doc.FolderID),
		zap.Int("chunks", stats.TotalChunks),
		zap.Int("dimensions", stats.Dimensions),
	)
	s.audit.publish(ctx, &domain.AuditEvent{
		Type:       domain.AuditDocumentIngested,
		ActorID:    userID,
		FolderID:   doc.FolderID,
		SubjectID:  id,
		Attributes: map[string]string{"chunks": strconv.Itoa(stats.TotalChunks)},
	})
	return stats, nil
}

// split normalises text for the document's content type and chunks it
func (s *documentService) split(doc *domain.Document, text string) []*domain.ChunkInput {
	if s.normalisers != nil {
		if n := s.normalisers.Get(doc.ContentType); n != nil {
			text = n.Normalise(text, doc.ContentType)
		}
	}

	pieces := s.pipeline.Process(text)
	inputs := make([]*domain.ChunkInput, 0, len(pieces))
	for _, p := range pieces {
		inputs = append(inputs, &domain.ChunkInput{
			Text: p.Content,
			Metadata: map[string]any{
				"start_offset": p.StartOffset,
				"end_offset":   p.EndOffset,
			},
		})
	}
	return inputs
}

// embedMissing fills in vectors for inputs that arrived without one
func (s *documentService) embedMissing(ctx context.Context, inputs []*domain.ChunkInput) error {
	var pending []*domain.ChunkInput
	for _, in := range inputs {
		if len(in.Embedding) == 0 {
			pending = append(pending, in)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	embedder := s.services.EmbeddingService()
	if embedder == nil {
		return fmt.Errorf("%w: embedding service not configured", domain.ErrServiceUnavailable)
	}

	for start := 0; start < len(pending); start += s.batchSize {
		end := min(start+s.batchSize, len(pending))
		texts := make([]string, end-start)
		for i, in := range pending[start:end] {
			texts[i] = in.Text
		}

		vectors, err := embedder.Embed(ctx, texts)
		if err != nil {
			return transient("embed chunks", err)
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("%w: embedding service returned %d vectors for %d texts",
				domain.ErrServiceUnavailable, len(vectors), len(texts))
		}
		for i, v := range vectors {
			pending[start+i].Embedding = v
		}
	}
	return nil
}

// Chunks lists a document's chunks by index
func (s *documentService) Chunks(ctx context.Context, userID, id string) ([]*domain.EmbeddingChunk, error) {
	if _, err := s.authorize(ctx, userID, id, domain.CapabilityRead); err != nil {
		return nil, err
	}
	return s.chunks.GetByDocument(ctx, id)
}

// Stats summarises a document's chunk set
func (s *documentService) Stats(ctx context.Context, userID, id string) (*domain.EmbeddingStats, error) {
	chunks, err := s.Chunks(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return domain.ComputeEmbeddingStats(id, chunks), nil
}

// DownloadURL returns a presigned link to the stored file
func (s *documentService) DownloadURL(ctx context.Context, userID, id string) (string, error) {
	doc, err := s.authorize(ctx, userID, id, domain.CapabilityRead)
	if err != nil {
		return "", err
	}
	if s.locator == nil {
		return "", fmt.Errorf("%w: object storage not configured", domain.ErrServiceUnavailable)
	}
	if doc.StorageLocator == "" {
		return "", fmt.Errorf("%w: document has no stored file", domain.ErrNotFound)
	}
	return s.locator.PresignedURL(ctx, doc.StorageLocator, s.expiry)
}

// authorize loads a document and checks capability on its folder.
// Documents in folders the user has no access to are reported as not found.
func (s *documentService) authorize(ctx context.Context, userID, id string, capability domain.Capability) (*domain.Document, error) {
	doc, err := s.documents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	access, err := s.permissions.EffectiveAccess(ctx, userID, doc.FolderID)
	if err != nil {
		return nil, err
	}
	if access.Capabilities.IsZero() {
		return nil, domain.ErrNotFound
	}
	if !access.Capabilities.Has(capability) {
		return nil, fmt.Errorf("%w: %s on document %s", domain.ErrForbidden, capability, id)
	}
	return doc, nil
}

// transient maps provider failures onto retryable domain errors
func transient(op string, err error) error {
	switch {
	case domain.KindOf(err) != domain.KindInternal:
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %v", domain.ErrTimeout, op, err)
	default:
		return fmt.Errorf("%w: %s: %v", domain.ErrServiceUnavailable, op, err)
	}
}
