package driven

import (
	"context"
	"iter"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// DocumentStore handles document persistence (PostgreSQL, SQLite)
type DocumentStore interface {
	// Save creates or updates a document.
	// Returns ErrNotFound if the folder does not exist.
	Save(ctx context.Context, doc *domain.Document) error

	// Get retrieves a document by ID
	Get(ctx context.Context, id string) (*domain.Document, error)

	// ListByFolder retrieves documents in a folder with pagination
	ListByFolder(ctx context.Context, folderID string, limit, offset int) ([]*domain.Document, error)

	// Delete deletes a document and its chunks
	Delete(ctx context.Context, id string) error

	// CountByFolders returns document counts keyed by folder ID
	CountByFolders(ctx context.Context, folderIDs []string) (map[string]int, error)

	// RecentFilenames returns up to limit filenames from folderIDs,
	// most recently updated first
	RecentFilenames(ctx context.Context, folderIDs []string, limit int) ([]string, error)
}

// ChunkStore handles embedding chunk persistence (PostgreSQL, SQLite)
type ChunkStore interface {
	// ReplaceChunks atomically swaps a document's full chunk set.
	// On any failure the previous set stays in place. Returns
	// ErrDimensionMismatch if vectors disagree with the store.
	ReplaceChunks(ctx context.Context, documentID string, chunks []*domain.EmbeddingChunk) error

	// GetByDocument retrieves all chunks for a document ordered by index
	GetByDocument(ctx context.Context, documentID string) ([]*domain.EmbeddingChunk, error)

	// ChunksInFolders streams the chunks of documents in folderIDs.
	// Iteration stops at the first error, which is yielded.
	ChunksInFolders(ctx context.Context, folderIDs []string) iter.Seq2[*domain.ChunkRecord, error]

	// CountInFolders returns chunk counts keyed by folder ID
	CountInFolders(ctx context.Context, folderIDs []string) (map[string]int, error)

	// Dimensions returns the vector length of stored chunks, 0 when empty
	Dimensions(ctx context.Context) (int, error)
}

// VectorIndex runs similarity search inside the store (pgvector).
// Stores without an index are scanned through ChunkStore.ChunksInFolders.
type VectorIndex interface {
	// NearestChunks returns up to limit chunks in folderIDs closest to
	// vector, scored in [0,1] and ordered by score, document ID, chunk index
	NearestChunks(ctx context.Context, vector []float32, folderIDs []string, limit int) ([]*domain.ScoredChunk, error)
}
