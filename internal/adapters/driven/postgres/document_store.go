package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

const documentColumns = `id, folder_id, filename, content_type, size, storage_locator, metadata, chunk_count, created_at, updated_at, ingested_at`

// DocumentStore implements driven.DocumentStore using PostgreSQL
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var metadataJSON []byte
	var ingestedAt sql.Null[time.Time]

	err := row.Scan(
		&doc.ID,
		&doc.FolderID,
		&doc.Filename,
		&doc.ContentType,
		&doc.Size,
		&doc.StorageLocator,
		&metadataJSON,
		&doc.ChunkCount,
		&doc.CreatedAt,
		&doc.UpdatedAt,
		&ingestedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
			return nil, err
		}
	}
	doc.IngestedAt = ptr(ingestedAt)
	return &doc, nil
}

// Save creates or updates a document
func (s *DocumentStore) Save(ctx context.Context, doc *domain.Document) error {
	metadata := doc.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}

	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			folder_id = EXCLUDED.folder_id,
			filename = EXCLUDED.filename,
			content_type = EXCLUDED.content_type,
			size = EXCLUDED.size,
			storage_locator = EXCLUDED.storage_locator,
			metadata = EXCLUDED.metadata,
			chunk_count = EXCLUDED.chunk_count,
			updated_at = EXCLUDED.updated_at,
			ingested_at = EXCLUDED.ingested_at
	`

	_, err = s.db.ExecContext(ctx, query,
		doc.ID,
		doc.FolderID,
		doc.Filename,
		doc.ContentType,
		doc.Size,
		doc.StorageLocator,
		metadataJSON,
		doc.ChunkCount,
		doc.CreatedAt,
		doc.UpdatedAt,
		nullable(doc.IngestedAt),
	)
	return mapError(err)
}

// Get retrieves a document by ID
func (s *DocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, mapError(err)
	}
	return doc, nil
}

// ListByFolder retrieves documents in a folder with pagination
func (s *DocumentStore) ListByFolder(ctx context.Context, folderID string, limit, offset int) ([]*domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE folder_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3
	`, folderID, limit, offset)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, mapError(rows.Err())
}

// Delete deletes a document; chunks cascade
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountByFolders returns document counts keyed by folder ID
func (s *DocumentStore) CountByFolders(ctx context.Context, folderIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(folderIDs))
	if len(folderIDs) == 0 {
		return counts, nil
	}
	return counts, countInto(ctx, s.db, counts, `
		SELECT folder_id, COUNT(*) FROM documents
		WHERE folder_id = ANY($1)
		GROUP BY folder_id
	`, pq.Array(folderIDs))
}

// RecentFilenames returns up to limit filenames, most recently updated first
func (s *DocumentStore) RecentFilenames(ctx context.Context, folderIDs []string, limit int) ([]string, error) {
	if len(folderIDs) == 0 || limit <= 0 {
		return []string{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT filename FROM documents
		WHERE folder_id = ANY($1)
		ORDER BY updated_at DESC, id
		LIMIT $2
	`, pq.Array(folderIDs), limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, mapError(rows.Err())
}

// countInto scans (key, count) rows into counts
func countInto(ctx context.Context, db *DB, counts map[string]int, query string, args ...any) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		counts[key] = n
	}
	return mapError(rows.Err())
}
