package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// FolderService manages folder trees on behalf of a user.
// Folders the user cannot see are reported as ErrForbidden, never ErrNotFound.
type FolderService interface {
	// Create adds a folder under parentID, or a root folder when nil
	Create(ctx context.Context, userID, name string, parentID *string) (*domain.Folder, error)

	// Get retrieves a folder the user can read
	Get(ctx context.Context, userID, id string) (*domain.Folder, error)

	// List lists the children of parentID, or the user's root folders when nil
	List(ctx context.Context, userID string, parentID *string) ([]*domain.Folder, error)

	// Rename changes a folder name
	Rename(ctx context.Context, userID, id, name string) (*domain.Folder, error)

	// Move reparents a folder; a nil newParentID moves it to the root
	Move(ctx context.Context, userID, id string, newParentID *string) (*domain.Folder, error)

	// Delete removes a folder and everything below it
	Delete(ctx context.Context, userID, id string) error

	// Ancestors returns the folder's ancestors, root first
	Ancestors(ctx context.Context, userID, id string) ([]*domain.Folder, error)

	// Descendants returns every folder below id
	Descendants(ctx context.Context, userID, id string) ([]*domain.Folder, error)
}
