package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.FolderStore = (*FolderStore)(nil)

const folderColumns = `id, name, parent_id, owner_id, path, created_at, updated_at`

// underPath matches folders whose path starts with the bound prefix.
// It takes the prefix twice.
const underPath = `substr(path, 1, length(?)) = ?`

// FolderStore implements driven.FolderStore using SQLite
type FolderStore struct {
	db *DB
}

// NewFolderStore creates a new FolderStore
func NewFolderStore(db *DB) *FolderStore {
	return &FolderStore{db: db}
}

func scanFolder(row rowScanner) (*domain.Folder, error) {
	var f domain.Folder
	var parentID sql.NullString
	var createdAt, updatedAt int64
	if err := row.Scan(&f.ID, &f.Name, &parentID, &f.OwnerID, &f.Path, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	f.ParentID = stringPtr(parentID)
	f.CreatedAt = fromNanos(createdAt)
	f.UpdatedAt = fromNanos(updatedAt)
	return &f, nil
}

func queryFolders(ctx context.Context, q queryer, query string, args ...any) ([]*domain.Folder, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var folders []*domain.Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}
	return folders, mapError(rows.Err())
}

func getFolder(ctx context.Context, q queryer, id string) (*domain.Folder, error) {
	f, err := scanFolder(q.QueryRowContext(ctx, `SELECT `+folderColumns+` FROM folders WHERE id = ?`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return f, nil
}

// Create inserts a folder, deriving its path from the parent
func (s *FolderStore) Create(ctx context.Context, folder *domain.Folder) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		parentPath := ""
		if folder.ParentID != nil {
			parent, err := getFolder(ctx, tx, *folder.ParentID)
			if err != nil {
				return err
			}
			parentPath = parent.Path
		}

		if folder.CreatedAt.IsZero() {
			folder.CreatedAt = time.Now().UTC()
		}
		folder.UpdatedAt = folder.CreatedAt
		folder.Path = domain.ChildPath(parentPath, folder.ID)

		_, err := tx.ExecContext(ctx, `
			INSERT INTO folders (`+folderColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, folder.ID, folder.Name, nullString(folder.ParentID), folder.OwnerID, folder.Path,
			toNanos(folder.CreatedAt), toNanos(folder.UpdatedAt))
		return mapError(err)
	})
}

// Get retrieves a folder by ID
func (s *FolderStore) Get(ctx context.Context, id string) (*domain.Folder, error) {
	return getFolder(ctx, s.db, id)
}

// GetMany retrieves the folders that exist among ids
func (s *FolderStore) GetMany(ctx context.Context, ids []string) ([]*domain.Folder, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	marks, args := placeholders(ids)
	return queryFolders(ctx, s.db, `SELECT `+folderColumns+` FROM folders WHERE id IN (`+marks+`)`, args...)
}

// ListChildren lists direct children ordered by name, or an owner's roots
func (s *FolderStore) ListChildren(ctx context.Context, parentID *string, ownerID string) ([]*domain.Folder, error) {
	if parentID == nil {
		return queryFolders(ctx, s.db, `
			SELECT `+folderColumns+` FROM folders
			WHERE parent_id IS NULL AND owner_id = ?
			ORDER BY name, id
		`, ownerID)
	}
	return queryFolders(ctx, s.db, `
		SELECT `+folderColumns+` FROM folders
		WHERE parent_id = ?
		ORDER BY name, id
	`, *parentID)
}

// Ancestors returns a folder's ancestors root first
func (s *FolderStore) Ancestors(ctx context.Context, id string) ([]*domain.Folder, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := f.AncestorIDs()
	if len(ids) == 0 {
		return []*domain.Folder{}, nil
	}
	marks, args := placeholders(ids)
	return queryFolders(ctx, s.db, `
		SELECT `+folderColumns+` FROM folders
		WHERE id IN (`+marks+`)
		ORDER BY length(path)
	`, args...)
}

// Descendants returns every folder below id
func (s *FolderStore) Descendants(ctx context.Context, id string) ([]*domain.Folder, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return queryFolders(ctx, s.db, `
		SELECT `+folderColumns+` FROM folders
		WHERE `+underPath+` AND id <> ?
		ORDER BY path
	`, f.Path, f.Path, id)
}

// Rename changes a folder's name
func (s *FolderStore) Rename(ctx context.Context, id, name string) (*domain.Folder, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE folders SET name = ?, updated_at = ? WHERE id = ?
	`, name, toNanos(time.Now()), id)
	if err != nil {
		return nil, mapError(err)
	}
	if err := requireRow(res, domain.ErrNotFound); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Move reparents a folder and rewrites its subtree's paths in one transaction
func (s *FolderStore) Move(ctx context.Context, id string, newParentID *string) (*domain.Folder, error) {
	var moved *domain.Folder
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		folder, err := getFolder(ctx, tx, id)
		if err != nil {
			return err
		}

		newPrefix := domain.ChildPath("", folder.ID)
		if newParentID != nil {
			parent, err := getFolder(ctx, tx, *newParentID)
			if err != nil {
				return err
			}
			if err := domain.CheckMove(folder, parent); err != nil {
				return err
			}
			newPrefix = domain.ChildPath(parent.Path, folder.ID)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE folders SET parent_id = ?, updated_at = ? WHERE id = ?
		`, nullString(newParentID), toNanos(time.Now()), id); err != nil {
			return mapError(err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE folders
			SET path = ? || substr(path, length(?) + 1)
			WHERE `+underPath,
			newPrefix, folder.Path, folder.Path, folder.Path); err != nil {
			return mapError(err)
		}

		moved, err = getFolder(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// Delete removes a folder and its subtree; foreign keys cascade
func (s *FolderStore) Delete(ctx context.Context, id string) ([]string, error) {
	var removed []string
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		folder, err := getFolder(ctx, tx, id)
		if err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx, `SELECT id FROM folders WHERE `+underPath, folder.Path, folder.Path)
		if err != nil {
			return mapError(err)
		}
		for rows.Next() {
			var rid string
			if err := rows.Scan(&rid); err != nil {
				rows.Close()
				return err
			}
			removed = append(removed, rid)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return mapError(err)
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, id)
		return mapError(err)
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// requireRow returns notFound when an update or delete touched nothing
func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
