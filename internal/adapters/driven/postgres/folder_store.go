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
var _ driven.FolderStore = (*FolderStore)(nil)

const folderColumns = `id, name, parent_id, owner_id, path, created_at, updated_at`

// FolderStore implements driven.FolderStore using PostgreSQL.
// Paths are materialized; every structural change runs under the tree lock.
type FolderStore struct {
	db *DB
}

// NewFolderStore creates a new FolderStore
func NewFolderStore(db *DB) *FolderStore {
	return &FolderStore{db: db}
}

func scanFolder(row rowScanner) (*domain.Folder, error) {
	var f domain.Folder
	var parentID sql.Null[string]
	if err := row.Scan(&f.ID, &f.Name, &parentID, &f.OwnerID, &f.Path, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.ParentID = ptr(parentID)
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

// queryer is satisfied by *DB and *sql.Tx
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Create inserts a folder, deriving its path from the parent
func (s *FolderStore) Create(ctx context.Context, folder *domain.Folder) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := lockTree(ctx, tx); err != nil {
			return mapError(err)
		}

		parentPath := ""
		if folder.ParentID != nil {
			err := tx.QueryRowContext(ctx, `SELECT path FROM folders WHERE id = $1`, *folder.ParentID).Scan(&parentPath)
			if err != nil {
				return mapError(err)
			}
		}

		now := time.Now().UTC()
		if folder.CreatedAt.IsZero() {
			folder.CreatedAt = now
		}
		folder.UpdatedAt = folder.CreatedAt
		folder.Path = domain.ChildPath(parentPath, folder.ID)

		_, err := tx.ExecContext(ctx, `
			INSERT INTO folders (id, name, parent_id, owner_id, path, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, folder.ID, folder.Name, nullable(folder.ParentID), folder.OwnerID, folder.Path, folder.CreatedAt, folder.UpdatedAt)
		return mapError(err)
	})
}

// Get retrieves a folder by ID
func (s *FolderStore) Get(ctx context.Context, id string) (*domain.Folder, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+folderColumns+` FROM folders WHERE id = $1`, id)
	f, err := scanFolder(row)
	if err != nil {
		return nil, mapError(err)
	}
	return f, nil
}

// GetMany retrieves the folders that exist among ids
func (s *FolderStore) GetMany(ctx context.Context, ids []string) ([]*domain.Folder, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return queryFolders(ctx, s.db, `SELECT `+folderColumns+` FROM folders WHERE id = ANY($1)`, pq.Array(ids))
}

// ListChildren lists direct children ordered by name, or an owner's roots
func (s *FolderStore) ListChildren(ctx context.Context, parentID *string, ownerID string) ([]*domain.Folder, error) {
	if parentID == nil {
		return queryFolders(ctx, s.db, `
			SELECT `+folderColumns+` FROM folders
			WHERE parent_id IS NULL AND owner_id = $1
			ORDER BY name, id
		`, ownerID)
	}
	return queryFolders(ctx, s.db, `
		SELECT `+folderColumns+` FROM folders
		WHERE parent_id = $1
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
	folders, err := queryFolders(ctx, s.db, `
		SELECT `+folderColumns+` FROM folders
		WHERE id = ANY($1)
		ORDER BY length(path)
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	return folders, nil
}

// Descendants returns every folder below id
func (s *FolderStore) Descendants(ctx context.Context, id string) ([]*domain.Folder, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return queryFolders(ctx, s.db, `
		SELECT `+folderColumns+` FROM folders
		WHERE path LIKE $1 AND id <> $2
		ORDER BY path
	`, likePrefix(f.Path), id)
}

// Rename changes a folder's name
func (s *FolderStore) Rename(ctx context.Context, id, name string) (*domain.Folder, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE folders SET name = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+folderColumns, id, name, time.Now().UTC())
	f, err := scanFolder(row)
	if err != nil {
		return nil, mapError(err)
	}
	return f, nil
}

// Move reparents a folder and rewrites its subtree's paths in one transaction
func (s *FolderStore) Move(ctx context.Context, id string, newParentID *string) (*domain.Folder, error) {
	var moved *domain.Folder
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := lockTree(ctx, tx); err != nil {
			return mapError(err)
		}

		folder, err := scanFolder(tx.QueryRowContext(ctx, `SELECT `+folderColumns+` FROM folders WHERE id = $1`, id))
		if err != nil {
			return mapError(err)
		}

		newPrefix := domain.ChildPath("", folder.ID)
		if newParentID != nil {
			parent, err := scanFolder(tx.QueryRowContext(ctx, `SELECT `+folderColumns+` FROM folders WHERE id = $1`, *newParentID))
			if err != nil {
				return mapError(err)
			}
			if err := domain.CheckMove(folder, parent); err != nil {
				return err
			}
			newPrefix = domain.ChildPath(parent.Path, folder.ID)
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `
			UPDATE folders SET parent_id = $2, updated_at = $3 WHERE id = $1
		`, id, nullable(newParentID), now); err != nil {
			return mapError(err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE folders
			SET path = $2 || substr(path, length($1) + 1)
			WHERE path LIKE $3
		`, folder.Path, newPrefix, likePrefix(folder.Path)); err != nil {
			return mapError(err)
		}

		moved, err = scanFolder(tx.QueryRowContext(ctx, `SELECT `+folderColumns+` FROM folders WHERE id = $1`, id))
		return mapError(err)
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// Delete removes a folder and its subtree. Foreign keys cascade to
// documents, chunks and permission rows.
func (s *FolderStore) Delete(ctx context.Context, id string) ([]string, error) {
	var removed []string
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := lockTree(ctx, tx); err != nil {
			return mapError(err)
		}

		var path string
		if err := tx.QueryRowContext(ctx, `SELECT path FROM folders WHERE id = $1`, id).Scan(&path); err != nil {
			return mapError(err)
		}

		rows, err := tx.QueryContext(ctx, `DELETE FROM folders WHERE path LIKE $1 RETURNING id`, likePrefix(path))
		if err != nil {
			return mapError(err)
		}
		defer rows.Close()
		for rows.Next() {
			var rid string
			if err := rows.Scan(&rid); err != nil {
				return err
			}
			removed = append(removed, rid)
		}
		return mapError(rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// likePrefix builds a LIKE pattern matching every path under prefix.
// Folder ids are UUIDs, so paths never contain LIKE wildcards.
func likePrefix(prefix string) string {
	return prefix + "%"
}
