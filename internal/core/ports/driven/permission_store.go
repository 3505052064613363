package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// PermissionStore persists explicit folder grants (PostgreSQL, SQLite)
type PermissionStore interface {
	// Upsert creates or replaces the row for (UserID, FolderID)
	Upsert(ctx context.Context, perm *domain.Permission) error

	// Get retrieves the row for a user on a folder
	Get(ctx context.Context, userID, folderID string) (*domain.Permission, error)

	// Delete removes the row for a user on a folder.
	// Returns false if no row existed.
	Delete(ctx context.Context, userID, folderID string) (bool, error)

	// ListForUserInFolders lists a user's rows restricted to folderIDs
	ListForUserInFolders(ctx context.Context, userID string, folderIDs []string) ([]*domain.Permission, error)

	// ListForFolder lists every row on a folder
	ListForFolder(ctx context.Context, folderID string) ([]*domain.Permission, error)

	// AccessSnapshot reads the user's rows, the subtrees under the folders
	// they own or hold rows on, and those subtrees' ancestors in one
	// read-only transaction
	AccessSnapshot(ctx context.Context, userID string) (*domain.AccessSnapshot, error)
}
