package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

const documentColumns = `id, folder_id, filename, content_type, size, storage_locator, metadata, chunk_count, created_at, updated_at, ingested_at`

// DocumentStore implements driven.DocumentStore using SQLite
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var metadataJSON string
	var createdAt, updatedAt int64
	var ingestedAt sql.NullInt64

	err := row.Scan(
		&doc.ID,
		&doc.FolderID,
		&doc.Filename,
		&doc.ContentType,
		&doc.Size,
		&doc.StorageLocator,
		&metadataJSON,
		&doc.ChunkCount,
		&createdAt,
		&updatedAt,
		&ingestedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := unmarshalMetadata(metadataJSON, &doc.Metadata); err != nil {
		return nil, err
	}
	doc.CreatedAt = fromNanos(createdAt)
	doc.UpdatedAt = fromNanos(updatedAt)
	doc.IngestedAt = timePtr(ingestedAt)
	return &doc, nil
}

// Save creates or updates a document
func (s *DocumentStore) Save(ctx context.Context, doc *domain.Document) error {
	metadataJSON, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return err
	}

	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			folder_id = excluded.folder_id,
			filename = excluded.filename,
			content_type = excluded.content_type,
			size = excluded.size,
			storage_locator = excluded.storage_locator,
			metadata = excluded.metadata,
			chunk_count = excluded.chunk_count,
			updated_at = excluded.updated_at,
			ingested_at = excluded.ingested_at
	`,
		doc.ID,
		doc.FolderID,
		doc.Filename,
		doc.ContentType,
		doc.Size,
		doc.StorageLocator,
		metadataJSON,
		doc.ChunkCount,
		toNanos(doc.CreatedAt),
		toNanos(doc.UpdatedAt),
		nullNanos(doc.IngestedAt),
	)
	return mapError(err)
}

// Get retrieves a document by ID
func (s *DocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return doc, nil
}

// ListByFolder retrieves documents in a folder with pagination
func (s *DocumentStore) ListByFolder(ctx context.Context, folderID string, limit, offset int) ([]*domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE folder_id = ?
		ORDER BY created_at, id
		LIMIT ? OFFSET ?
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res, domain.ErrNotFound)
}

// CountByFolders returns document counts keyed by folder ID
func (s *DocumentStore) CountByFolders(ctx context.Context, folderIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(folderIDs))
	if len(folderIDs) == 0 {
		return counts, nil
	}
	marks, args := placeholders(folderIDs)
	return counts, countInto(ctx, s.db, counts, `
		SELECT folder_id, COUNT(*) FROM documents
		WHERE folder_id IN (`+marks+`)
		GROUP BY folder_id
	`, args...)
}

// RecentFilenames returns up to limit filenames, most recently updated first
func (s *DocumentStore) RecentFilenames(ctx context.Context, folderIDs []string, limit int) ([]string, error) {
	if len(folderIDs) == 0 || limit <= 0 {
		return []string{}, nil
	}
	marks, args := placeholders(folderIDs)
	rows, err := s.db.QueryContext(ctx, `
		SELECT filename FROM documents
		WHERE folder_id IN (`+marks+`)
		ORDER BY updated_at DESC, id
		LIMIT ?
	`, append(args, limit)...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return scanNames(rows)
}

func scanNames(rows *sql.Rows) ([]string, error) {
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

func marshalMetadata(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func unmarshalMetadata(data string, m *map[string]any) error {
	if data == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), m); err != nil {
		return err
	}
	if len(*m) == 0 {
		*m = nil
	}
	return nil
}
