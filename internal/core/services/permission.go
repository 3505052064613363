package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ensure permissionService implements PermissionService
var _ driving.PermissionService = (*permissionService)(nil)

// permissionService resolves access from folder ownership and explicit
// rows. Nothing is cached: every call reads the current store state.
type permissionService struct {
	folders driven.FolderStore
	perms   driven.PermissionStore
	audit   auditor
}

// NewPermissionService creates a new PermissionService.
// publisher may be nil.
func NewPermissionService(
	folders driven.FolderStore,
	perms driven.PermissionStore,
	publisher driven.EventPublisher,
	logger *zap.Logger,
) driving.PermissionService {
	return &permissionService{
		folders: folders,
		perms:   perms,
		audit:   auditor{publisher: publisher, logger: loggerOrNop(logger)},
	}
}

// EffectiveAccess resolves a user's capabilities on a folder
func (s *permissionService) EffectiveAccess(ctx context.Context, userID, folderID string) (*domain.Access, error) {
	folder, err := s.folders.Get(ctx, folderID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.Access{FolderID: folderID, Source: domain.AccessNone}, nil
	}
	if err != nil {
		return nil, err
	}

	access, err := s.ResolveMany(ctx, userID, []*domain.Folder{folder})
	if err != nil {
		return nil, err
	}
	a := access[folder.ID]
	return &a, nil
}

// ResolveMany resolves access on several folders with one read of their
// chains and one read of the user's rows on them
func (s *permissionService) ResolveMany(ctx context.Context, userID string, folders []*domain.Folder) (map[string]domain.Access, error) {
	known := make(map[string]*domain.Folder, len(folders))
	var chainIDs []string
	for _, f := range folders {
		known[f.ID] = f
	}
	for _, f := range folders {
		chainIDs = append(chainIDs, f.Chain()...)
	}

	if err := s.loadMissing(ctx, known, chainIDs); err != nil {
		return nil, err
	}

	rows, err := s.perms.ListForUserInFolders(ctx, userID, dedupe(chainIDs))
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}

	return resolveAll(userID, folders, known, indexRows(rows)), nil
}

// AccessibleFolders returns every folder id where the user holds capability.
// Candidates are the subtrees under owned folders and under folders that
// carry one of the user's rows; each candidate is then resolved exactly as
// EffectiveAccess would.
func (s *permissionService) AccessibleFolders(ctx context.Context, userID string, capability domain.Capability) ([]string, error) {
	folders, access, err := s.accessible(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(folders))
	for _, f := range folders {
		if access[f.ID].Capabilities.Has(capability) {
			ids = append(ids, f.ID)
		}
	}
	return ids, nil
}

// accessible returns the candidate folders ordered by path with their
// resolved access. Every input comes from one store snapshot.
func (s *permissionService) accessible(ctx context.Context, userID string) ([]*domain.Folder, map[string]domain.Access, error) {
	snap, err := s.perms.AccessSnapshot(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("read access snapshot: %w", err)
	}

	known := make(map[string]*domain.Folder, len(snap.Candidates)+len(snap.Ancestors))
	unique := make([]*domain.Folder, 0, len(snap.Candidates))
	for _, f := range snap.Candidates {
		if _, dup := known[f.ID]; dup {
			continue
		}
		known[f.ID] = f
		unique = append(unique, f)
	}
	for _, f := range snap.Ancestors {
		known[f.ID] = f
	}

	sort.Slice(unique, func(i, j int) bool { return unique[i].Path < unique[j].Path })
	return unique, resolveAll(userID, unique, known, indexRows(snap.Grants)), nil
}

// Require returns ErrForbidden unless the user holds capability on folderID.
// Missing folders are indistinguishable from forbidden ones.
func (s *permissionService) Require(ctx context.Context, userID, folderID string, capability domain.Capability) error {
	access, err := s.EffectiveAccess(ctx, userID, folderID)
	if err != nil {
		return err
	}
	if !access.Capabilities.Has(capability) {
		return fmt.Errorf("%w: %s on folder %s", domain.ErrForbidden, capability, folderID)
	}
	return nil
}

// Grant upserts a user's row on a folder
func (s *permissionService) Grant(ctx context.Context, granterID, userID, folderID string, caps domain.Capabilities) (*domain.Permission, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.NewValidationError("user_id", "must not be empty")
	}
	if err := s.Require(ctx, granterID, folderID, domain.CapabilityAdmin); err != nil {
		return nil, err
	}

	perm := &domain.Permission{
		UserID:       userID,
		FolderID:     folderID,
		Capabilities: caps,
		GrantedBy:    granterID,
	}
	if err := s.perms.Upsert(ctx, perm); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrForbidden
		}
		return nil, fmt.Errorf("save permission: %w", err)
	}

	s.audit.publish(ctx, &domain.AuditEvent{
		Type:      domain.AuditPermissionGranted,
		ActorID:   granterID,
		FolderID:  folderID,
		SubjectID: userID,
		Attributes: map[string]string{
			"capabilities": joinCapabilities(caps),
		},
	})
	return perm, nil
}

// Revoke deletes a user's row; access falls back to any inherited row
func (s *permissionService) Revoke(ctx context.Context, granterID, userID, folderID string) (bool, error) {
	if err := s.Require(ctx, granterID, folderID, domain.CapabilityAdmin); err != nil {
		return false, err
	}

	existed, err := s.perms.Delete(ctx, userID, folderID)
	if err != nil {
		return false, fmt.Errorf("delete permission: %w", err)
	}
	if existed {
		s.audit.publish(ctx, &domain.AuditEvent{
			Type:      domain.AuditPermissionRevoked,
			ActorID:   granterID,
			FolderID:  folderID,
			SubjectID: userID,
		})
	}
	return existed, nil
}

// ListGrants lists the explicit rows on a folder
func (s *permissionService) ListGrants(ctx context.Context, requesterID, folderID string) ([]*domain.Permission, error) {
	if err := s.Require(ctx, requesterID, folderID, domain.CapabilityAdmin); err != nil {
		return nil, err
	}
	return s.perms.ListForFolder(ctx, folderID)
}

// loadMissing fetches the folders in ids that are not yet in known
func (s *permissionService) loadMissing(ctx context.Context, known map[string]*domain.Folder, ids []string) error {
	var missing []string
	for _, id := range dedupe(ids) {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	loaded, err := s.folders.GetMany(ctx, missing)
	if err != nil {
		return fmt.Errorf("load ancestors: %w", err)
	}
	for _, f := range loaded {
		known[f.ID] = f
	}
	return nil
}

func resolveAll(userID string, folders []*domain.Folder, known map[string]*domain.Folder, grants map[string]*domain.Permission) map[string]domain.Access {
	out := make(map[string]domain.Access, len(folders))
	for _, f := range folders {
		ids := f.Chain()
		chain := make([]*domain.Folder, 0, len(ids))
		for _, id := range ids {
			chain = append(chain, known[id])
		}
		out[f.ID] = domain.ResolveAccess(userID, chain, grants)
	}
	return out
}

func indexRows(rows []*domain.Permission) map[string]*domain.Permission {
	grants := make(map[string]*domain.Permission, len(rows))
	for _, p := range rows {
		grants[p.FolderID] = p
	}
	return grants
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func joinCapabilities(caps domain.Capabilities) string {
	list := caps.List()
	parts := make([]string, len(list))
	for i, c := range list {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}
