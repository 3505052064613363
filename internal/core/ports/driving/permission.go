package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// PermissionService resolves and manages folder access
type PermissionService interface {
	// EffectiveAccess resolves a user's capabilities on a folder.
	// Unknown folders resolve to no access.
	EffectiveAccess(ctx context.Context, userID, folderID string) (*domain.Access, error)

	// AccessibleFolders returns every folder id where the user holds capability
	AccessibleFolders(ctx context.Context, userID string, capability domain.Capability) ([]string, error)

	// ResolveMany resolves the user's access on each folder, keyed by folder id
	ResolveMany(ctx context.Context, userID string, folders []*domain.Folder) (map[string]domain.Access, error)

	// Require returns ErrForbidden unless the user holds capability on folderID
	Require(ctx context.Context, userID, folderID string, capability domain.Capability) error

	// Grant upserts a user's row on a folder. The granter needs admin.
	Grant(ctx context.Context, granterID, userID, folderID string, caps domain.Capabilities) (*domain.Permission, error)

	// Revoke deletes a user's row and reports whether one existed. The granter needs admin.
	Revoke(ctx context.Context, granterID, userID, folderID string) (bool, error)

	// ListGrants lists the rows on a folder. The requester needs admin.
	ListGrants(ctx context.Context, requesterID, folderID string) ([]*domain.Permission, error)
}
