package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// DocumentService registers documents and maintains their chunk sets
type DocumentService interface {
	// Register records a document stored elsewhere. Needs write on the folder.
	Register(ctx context.Context, userID, folderID string, req *domain.RegisterDocumentRequest) (*domain.Document, error)

	// Get retrieves a document in a folder the user can read
	Get(ctx context.Context, userID, id string) (*domain.Document, error)

	// ListByFolder retrieves documents in a folder with pagination
	ListByFolder(ctx context.Context, userID, folderID string, limit, offset int) ([]*domain.Document, error)

	// Delete removes a document with its chunks. Needs delete on the folder.
	Delete(ctx context.Context, userID, id string) error

	// Ingest embeds and atomically replaces the document's chunks.
	// Returns ErrBusy while another ingestion of the document runs.
	Ingest(ctx context.Context, userID, id string, req *domain.IngestRequest) (*domain.EmbeddingStats, error)

	// Chunks lists a document's chunks by index
	Chunks(ctx context.Context, userID, id string) ([]*domain.EmbeddingChunk, error)

	// Stats summarises a document's chunk set
	Stats(ctx context.Context, userID, id string) (*domain.EmbeddingStats, error)

	// DownloadURL returns a presigned link to the stored file
	DownloadURL(ctx context.Context, userID, id string) (string, error)
}
