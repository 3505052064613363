package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ensure folderService implements FolderService
var _ driving.FolderService = (*folderService)(nil)

// folderService implements the FolderService interface
type folderService struct {
	folders     driven.FolderStore
	permissions driving.PermissionService
	audit       auditor
}

// NewFolderService creates a new FolderService.
// publisher may be nil.
func NewFolderService(
	folders driven.FolderStore,
	permissions driving.PermissionService,
	publisher driven.EventPublisher,
	logger *zap.Logger,
) driving.FolderService {
	return &folderService{
		folders:     folders,
		permissions: permissions,
		audit:       auditor{publisher: publisher, logger: loggerOrNop(logger)},
	}
}

// Create adds a folder owned by userID. Creating under a parent needs write on it.
func (s *folderService) Create(ctx context.Context, userID, name string, parentID *string) (*domain.Folder, error) {
	name, err := domain.NormalizeFolderName(name)
	if err != nil {
		return nil, err
	}
	if parentID != nil {
		if err := s.permissions.Require(ctx, userID, *parentID, domain.CapabilityWrite); err != nil {
			return nil, err
		}
	}

	folder := &domain.Folder{
		ID:       uuid.NewString(),
		Name:     name,
		ParentID: parentID,
		OwnerID:  userID,
	}
	if err := s.folders.Create(ctx, folder); err != nil {
		return nil, forbidIfMissing(err)
	}

	s.audit.publish(ctx, &domain.AuditEvent{
		Type:     domain.AuditFolderCreated,
		ActorID:  userID,
		FolderID: folder.ID,
	})
	return folder, nil
}

// Get retrieves a folder the user can read
func (s *folderService) Get(ctx context.Context, userID, id string) (*domain.Folder, error) {
	if err := s.permissions.Require(ctx, userID, id, domain.CapabilityRead); err != nil {
		return nil, err
	}
	folder, err := s.folders.Get(ctx, id)
	if err != nil {
		return nil, forbidIfMissing(err)
	}
	return folder, nil
}

// List lists readable children of parentID, or the user's root folders
func (s *folderService) List(ctx context.Context, userID string, parentID *string) ([]*domain.Folder, error) {
	if parentID == nil {
		return s.folders.ListChildren(ctx, nil, userID)
	}
	if err := s.permissions.Require(ctx, userID, *parentID, domain.CapabilityRead); err != nil {
		return nil, err
	}
	children, err := s.folders.ListChildren(ctx, parentID, userID)
	if err != nil {
		return nil, err
	}
	return s.readable(ctx, userID, children)
}

// Rename changes a folder name. Needs write on the folder.
func (s *folderService) Rename(ctx context.Context, userID, id, name string) (*domain.Folder, error) {
	name, err := domain.NormalizeFolderName(name)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.Require(ctx, userID, id, domain.CapabilityWrite); err != nil {
		return nil, err
	}
	folder, err := s.folders.Rename(ctx, id, name)
	if err != nil {
		return nil, forbidIfMissing(err)
	}
	return folder, nil
}

// Move reparents a folder. Needs admin on the folder and write on the new parent.
func (s *folderService) Move(ctx context.Context, userID, id string, newParentID *string) (*domain.Folder, error) {
	if err := s.permissions.Require(ctx, userID, id, domain.CapabilityAdmin); err != nil {
		return nil, err
	}
	if newParentID != nil {
		if err := s.permissions.Require(ctx, userID, *newParentID, domain.CapabilityWrite); err != nil {
			return nil, err
		}
	}

	folder, err := s.folders.Move(ctx, id, newParentID)
	if err != nil {
		return nil, forbidIfMissing(err)
	}

	parent := ""
	if newParentID != nil {
		parent = *newParentID
	}
	s.audit.publish(ctx, &domain.AuditEvent{
		Type:       domain.AuditFolderMoved,
		ActorID:    userID,
		FolderID:   id,
		Attributes: map[string]string{"new_parent_id": parent, "path": folder.Path},
	})
	return folder, nil
}

// Delete removes a folder and its subtree. Needs delete on the folder.
func (s *folderService) Delete(ctx context.Context, userID, id string) error {
	if err := s.permissions.Require(ctx, userID, id, domain.CapabilityDelete); err != nil {
		return err
	}
	removed, err := s.folders.Delete(ctx, id)
	if err != nil {
		return forbidIfMissing(err)
	}

	s.audit.publish(ctx, &domain.AuditEvent{
		Type:       domain.AuditFolderDeleted,
		ActorID:    userID,
		FolderID:   id,
		Attributes: map[string]string{"folders_removed": strconv.Itoa(len(removed))},
	})
	return nil
}

// Ancestors returns the readable ancestors of a folder, root first
func (s *folderService) Ancestors(ctx context.Context, userID, id string) ([]*domain.Folder, error) {
	if err := s.permissions.Require(ctx, userID, id, domain.CapabilityRead); err != nil {
		return nil, err
	}
	ancestors, err := s.folders.Ancestors(ctx, id)
	if err != nil {
		return nil, forbidIfMissing(err)
	}
	return s.readable(ctx, userID, ancestors)
}

// Descendants returns the readable folders below id
func (s *folderService) Descendants(ctx context.Context, userID, id string) ([]*domain.Folder, error) {
	if err := s.permissions.Require(ctx, userID, id, domain.CapabilityRead); err != nil {
		return nil, err
	}
	descendants, err := s.folders.Descendants(ctx, id)
	if err != nil {
		return nil, forbidIfMissing(err)
	}
	return s.readable(ctx, userID, descendants)
}

// readable keeps the folders the user can read, preserving order
func (s *folderService) readable(ctx context.Context, userID string, folders []*domain.Folder) ([]*domain.Folder, error) {
	if len(folders) == 0 {
		return folders, nil
	}
	access, err := s.permissions.ResolveMany(ctx, userID, folders)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Folder, 0, len(folders))
	for _, f := range folders {
		if access[f.ID].Capabilities.Has(domain.CapabilityRead) {
			out = append(out, f)
		}
	}
	return out, nil
}

// forbidIfMissing hides whether a folder exists from callers without access
func forbidIfMissing(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: folder not accessible", domain.ErrForbidden)
	}
	return err
}
