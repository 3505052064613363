package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// FolderStore persists the folder tree (PostgreSQL, SQLite).
// Implementations keep materialized paths consistent with parent links.
type FolderStore interface {
	// Create inserts a folder; the store derives Path from the parent.
	// Returns ErrNameConflict if a sibling already uses the name and
	// ErrNotFound if the parent does not exist.
	Create(ctx context.Context, folder *domain.Folder) error

	// Get retrieves a folder by ID
	Get(ctx context.Context, id string) (*domain.Folder, error)

	// GetMany retrieves the folders that exist among ids, in no particular order
	GetMany(ctx context.Context, ids []string) ([]*domain.Folder, error)

	// ListChildren lists the direct children of parentID ordered by name.
	// A nil parentID lists the root folders owned by ownerID.
	ListChildren(ctx context.Context, parentID *string, ownerID string) ([]*domain.Folder, error)

	// Ancestors returns the ancestors of a folder, root first
	Ancestors(ctx context.Context, id string) ([]*domain.Folder, error)

	// Descendants returns every folder below id, excluding id itself
	Descendants(ctx context.Context, id string) ([]*domain.Folder, error)

	// Rename changes a folder's name.
	// Returns ErrNameConflict if a sibling already uses the name.
	Rename(ctx context.Context, id, name string) (*domain.Folder, error)

	// Move reparents a folder (nil means root) and rewrites the paths of
	// its whole subtree in one transaction. Returns ErrCycleDetected when
	// newParentID lies in the folder's subtree.
	Move(ctx context.Context, id string, newParentID *string) (*domain.Folder, error)

	// Delete removes a folder with its subtree, documents, chunks and
	// permissions as one unit. Returns the ids of the removed folders.
	Delete(ctx context.Context, id string) ([]string, error)
}
