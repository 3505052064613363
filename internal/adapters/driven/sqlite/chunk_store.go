package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"iter"
	"math"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ChunkStore = (*ChunkStore)(nil)

// documentPageSize bounds the documents read per query while streaming
const documentPageSize = 64

// ChunkStore implements driven.ChunkStore using SQLite. It has no vector
// index; retrieval scans ChunksInFolders.
type ChunkStore struct {
	db         *DB
	dimensions int
}

// NewChunkStore creates a new ChunkStore. A positive dimensions fixes the
// vector length for every write; with 0 the first stored chunk decides.
func NewChunkStore(db *DB, dimensions int) *ChunkStore {
	return &ChunkStore{db: db, dimensions: max(dimensions, 0)}
}

// encodeEmbedding converts a vector to a BLOB (4 bytes per float32)
func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding converts a BLOB back to a vector
func decodeEmbedding(buf []byte) []float32 {
	n := len(buf) / 4
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

// ReplaceChunks swaps a document's chunk set in one transaction
func (s *ChunkStore) ReplaceChunks(ctx context.Context, documentID string, chunks []*domain.EmbeddingChunk) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = ?)`, documentID).Scan(&exists); err != nil {
			return mapError(err)
		}
		if !exists {
			return domain.ErrNotFound
		}

		want, err := s.expectedDimensions(ctx, tx)
		if err != nil {
			return err
		}
		if _, err := domain.ValidateChunks(documentID, chunks, want); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM embedding_chunks WHERE document_id = ?`, documentID); err != nil {
			return mapError(err)
		}

		now := time.Now().UTC()
		if len(chunks) > 0 {
			stmt, err := tx.PrepareContext(ctx, `
				INSERT INTO embedding_chunks (document_id, chunk_index, text, embedding, dimensions, metadata, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`)
			if err != nil {
				return mapError(err)
			}
			defer stmt.Close()

			for _, c := range chunks {
				metadataJSON, err := marshalMetadata(c.Metadata)
				if err != nil {
					return err
				}
				createdAt := c.CreatedAt
				if createdAt.IsZero() {
					createdAt = now
				}
				if _, err := stmt.ExecContext(ctx,
					documentID,
					c.Index,
					c.Text,
					encodeEmbedding(c.Embedding),
					len(c.Embedding),
					metadataJSON,
					toNanos(createdAt),
				); err != nil {
					return mapError(err)
				}
			}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE documents SET chunk_count = ?, ingested_at = ?, updated_at = ? WHERE id = ?
		`, len(chunks), toNanos(now), toNanos(now), documentID)
		return mapError(err)
	})
}

// GetByDocument retrieves all chunks for a document ordered by index
func (s *ChunkStore) GetByDocument(ctx context.Context, documentID string) ([]*domain.EmbeddingChunk, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = ?)`, documentID).Scan(&exists); err != nil {
		return nil, mapError(err)
	}
	if !exists {
		return nil, domain.ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, chunk_index, text, embedding, metadata, created_at
		FROM embedding_chunks
		WHERE document_id = ?
		ORDER BY chunk_index
	`, documentID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	chunks := []*domain.EmbeddingChunk{}
	for rows.Next() {
		rec, err := scanChunkRecord(rows, false)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, rec.Chunk)
	}
	return chunks, mapError(rows.Err())
}

// ChunksInFolders streams chunks a batch of documents at a time. Each
// batch is read by one statement and closed before it is yielded, so a
// document's chunk set is never split between pages and a concurrent
// ReplaceChunks is seen whole or not at all. The single connection is free
// between batches for consumers that query the store while iterating.
func (s *ChunkStore) ChunksInFolders(ctx context.Context, folderIDs []string) iter.Seq2[*domain.ChunkRecord, error] {
	return func(yield func(*domain.ChunkRecord, error) bool) {
		if len(folderIDs) == 0 {
			return
		}
		folderMarks, folderArgs := placeholders(folderIDs)

		after := ""
		for {
			docIDs, err := s.documentPage(ctx, folderMarks, folderArgs, after)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(docIDs) == 0 {
				return
			}
			page, err := s.chunksOf(ctx, docIDs, folderMarks, folderArgs)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, rec := range page {
				if !yield(rec, nil) {
					return
				}
			}
			if len(docIDs) < documentPageSize {
				return
			}
			after = docIDs[len(docIDs)-1]
		}
	}
}

// documentPage returns the next document IDs after the given one, in order
func (s *ChunkStore) documentPage(ctx context.Context, folderMarks string, folderArgs []any, after string) ([]string, error) {
	args := append(append([]any{}, folderArgs...), after, documentPageSize)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM documents
		WHERE folder_id IN (`+folderMarks+`) AND id > ?
		ORDER BY id
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, mapError(rows.Err())
}

// chunksOf reads the full chunk sets of docIDs that are still in scope
func (s *ChunkStore) chunksOf(ctx context.Context, docIDs []string, folderMarks string, folderArgs []any) ([]*domain.ChunkRecord, error) {
	docMarks, args := placeholders(docIDs)
	args = append(args, folderArgs...)
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.document_id, c.chunk_index, c.text, c.embedding, c.metadata, c.created_at,
		       d.folder_id, d.filename
		FROM embedding_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.document_id IN (`+docMarks+`)
		  AND d.folder_id IN (`+folderMarks+`)
		ORDER BY c.document_id, c.chunk_index
	`, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var page []*domain.ChunkRecord
	for rows.Next() {
		rec, err := scanChunkRecord(rows, true)
		if err != nil {
			return nil, err
		}
		page = append(page, rec)
	}
	return page, mapError(rows.Err())
}

// CountInFolders returns chunk counts keyed by folder ID
func (s *ChunkStore) CountInFolders(ctx context.Context, folderIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(folderIDs))
	if len(folderIDs) == 0 {
		return counts, nil
	}
	marks, args := placeholders(folderIDs)
	return counts, countInto(ctx, s.db, counts, `
		SELECT d.folder_id, COUNT(*)
		FROM embedding_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.folder_id IN (`+marks+`)
		GROUP BY d.folder_id
	`, args...)
}

// Dimensions returns the configured vector length, or that of stored
// chunks when none is configured; 0 means nothing decides it yet
func (s *ChunkStore) Dimensions(ctx context.Context) (int, error) {
	return s.expectedDimensions(ctx, s.db)
}

// expectedDimensions reads the stored length through q so ReplaceChunks
// sees it inside its own transaction. Rows of the document being replaced
// count too: the only document cannot change the store's dimensionality.
func (s *ChunkStore) expectedDimensions(ctx context.Context, q queryer) (int, error) {
	if s.dimensions > 0 {
		return s.dimensions, nil
	}
	var dims int
	err := q.QueryRowContext(ctx, `SELECT dimensions FROM embedding_chunks LIMIT 1`).Scan(&dims)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, mapError(err)
	}
	return dims, nil
}

func scanChunkRecord(row rowScanner, joined bool) (*domain.ChunkRecord, error) {
	var c domain.EmbeddingChunk
	var blob []byte
	var metadataJSON string
	var createdAt int64
	rec := &domain.ChunkRecord{Chunk: &c}

	dest := []any{&c.DocumentID, &c.Index, &c.Text, &blob, &metadataJSON, &createdAt}
	if joined {
		dest = append(dest, &rec.FolderID, &rec.DocumentName)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	c.Embedding = decodeEmbedding(blob)
	c.CreatedAt = fromNanos(createdAt)
	if err := unmarshalMetadata(metadataJSON, &c.Metadata); err != nil {
		return nil, err
	}
	return rec, nil
}
