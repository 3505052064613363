package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PermissionStore = (*PermissionStore)(nil)

const permissionColumns = `user_id, folder_id, can_read, can_write, can_delete, can_admin, granted_by, created_at, updated_at`

// PermissionStore implements driven.PermissionStore using PostgreSQL
type PermissionStore struct {
	db *DB
}

// NewPermissionStore creates a new PermissionStore
func NewPermissionStore(db *DB) *PermissionStore {
	return &PermissionStore{db: db}
}

func scanPermission(row rowScanner) (*domain.Permission, error) {
	var p domain.Permission
	err := row.Scan(
		&p.UserID,
		&p.FolderID,
		&p.Capabilities.Read,
		&p.Capabilities.Write,
		&p.Capabilities.Delete,
		&p.Capabilities.Admin,
		&p.GrantedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func listPermissions(ctx context.Context, q queryer, query string, args ...any) ([]*domain.Permission, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var perms []*domain.Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, mapError(rows.Err())
}

// Upsert creates or replaces the row for (UserID, FolderID)
func (s *PermissionStore) Upsert(ctx context.Context, perm *domain.Permission) error {
	now := time.Now().UTC()
	if perm.CreatedAt.IsZero() {
		perm.CreatedAt = now
	}
	perm.UpdatedAt = now

	query := `
		INSERT INTO folder_permissions (` + permissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, folder_id) DO UPDATE SET
			can_read = EXCLUDED.can_read,
			can_write = EXCLUDED.can_write,
			can_delete = EXCLUDED.can_delete,
			can_admin = EXCLUDED.can_admin,
			granted_by = EXCLUDED.granted_by,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		perm.UserID,
		perm.FolderID,
		perm.Capabilities.Read,
		perm.Capabilities.Write,
		perm.Capabilities.Delete,
		perm.Capabilities.Admin,
		perm.GrantedBy,
		perm.CreatedAt,
		perm.UpdatedAt,
	).Scan(&perm.CreatedAt)
	return mapError(err)
}

// Get retrieves the row for a user on a folder
func (s *PermissionStore) Get(ctx context.Context, userID, folderID string) (*domain.Permission, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+permissionColumns+` FROM folder_permissions
		WHERE user_id = $1 AND folder_id = $2
	`, userID, folderID)
	p, err := scanPermission(row)
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

// Delete removes the row for a user on a folder
func (s *PermissionStore) Delete(ctx context.Context, userID, folderID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM folder_permissions WHERE user_id = $1 AND folder_id = $2
	`, userID, folderID)
	if err != nil {
		return false, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListForUserInFolders lists a user's rows restricted to folderIDs
func (s *PermissionStore) ListForUserInFolders(ctx context.Context, userID string, folderIDs []string) ([]*domain.Permission, error) {
	if len(folderIDs) == 0 {
		return nil, nil
	}
	return listPermissions(ctx, s.db, `
		SELECT `+permissionColumns+` FROM folder_permissions
		WHERE user_id = $1 AND folder_id = ANY($2)
	`, userID, pq.Array(folderIDs))
}

// ListForFolder lists every row on a folder
func (s *PermissionStore) ListForFolder(ctx context.Context, folderID string) ([]*domain.Permission, error) {
	return listPermissions(ctx, s.db, `
		SELECT `+permissionColumns+` FROM folder_permissions
		WHERE folder_id = $1
		ORDER BY user_id
	`, folderID)
}

// AccessSnapshot reads grants, candidate subtrees and their ancestors from
// one repeatable-read snapshot
func (s *PermissionStore) AccessSnapshot(ctx context.Context, userID string) (*domain.AccessSnapshot, error) {
	snap := &domain.AccessSnapshot{}
	err := s.db.ReadOnly(ctx, func(tx *sql.Tx) error {
		var err error
		snap.Grants, err = listPermissions(ctx, tx, `
			SELECT `+permissionColumns+` FROM folder_permissions
			WHERE user_id = $1
			ORDER BY folder_id
		`, userID)
		if err != nil {
			return err
		}

		snap.Candidates, err = queryFolders(ctx, tx, `
			SELECT `+folderColumns+` FROM folders
			WHERE EXISTS (
				SELECT 1 FROM folders r
				WHERE (r.owner_id = $1 OR r.id IN (SELECT folder_id FROM folder_permissions WHERE user_id = $1))
				  AND folders.path LIKE r.path || '%'
			)
			ORDER BY path
		`, userID)
		if err != nil {
			return err
		}

		missing := domain.MissingAncestors(snap.Candidates)
		if len(missing) == 0 {
			return nil
		}
		snap.Ancestors, err = queryFolders(ctx, tx,
			`SELECT `+folderColumns+` FROM folders WHERE id = ANY($1)`, pq.Array(missing))
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}
