package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"math"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.ChunkStore  = (*ChunkStore)(nil)
	_ driven.VectorIndex = (*ChunkStore)(nil)
)

// ChunkStore implements driven.ChunkStore and driven.VectorIndex using
// PostgreSQL with the pgvector extension
type ChunkStore struct {
	db         *DB
	dimensions int
}

// NewChunkStore creates a new ChunkStore. A positive dimensions fixes the
// vector length for every write and matches the HNSW index InitSchema
// builds; with 0 the first stored chunk decides.
func NewChunkStore(db *DB, dimensions int) *ChunkStore {
	return &ChunkStore{db: db, dimensions: max(dimensions, 0)}
}

// hnswMaxEfSearch is the largest hnsw.ef_search pgvector accepts
const hnswMaxEfSearch = 1000

// ReplaceChunks swaps a document's chunk set in one transaction.
// Writers are serialised so two documents cannot race different
// dimensionalities into an empty store.
func (s *ChunkStore) ReplaceChunks(ctx context.Context, documentID string, chunks []*domain.EmbeddingChunk) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", hashLockName("chunks:write")); err != nil {
			return mapError(err)
		}

		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, documentID).Scan(&exists); err != nil {
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

		if _, err := tx.ExecContext(ctx, `DELETE FROM embedding_chunks WHERE document_id = $1`, documentID); err != nil {
			return mapError(err)
		}

		now := time.Now().UTC()
		if len(chunks) > 0 {
			stmt, err := tx.PrepareContext(ctx, `
				INSERT INTO embedding_chunks (document_id, chunk_index, text, embedding, metadata, created_at)
				VALUES ($1, $2, $3, $4, $5, $6)
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
					pgvector.NewVector(c.Embedding),
					metadataJSON,
					createdAt,
				); err != nil {
					return mapError(err)
				}
			}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE documents SET chunk_count = $2, ingested_at = $3, updated_at = $3
			WHERE id = $1
		`, documentID, len(chunks), now)
		return mapError(err)
	})
}

// GetByDocument retrieves all chunks for a document ordered by index
func (s *ChunkStore) GetByDocument(ctx context.Context, documentID string) ([]*domain.EmbeddingChunk, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, documentID).Scan(&exists); err != nil {
		return nil, mapError(err)
	}
	if !exists {
		return nil, domain.ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, chunk_index, text, embedding, metadata, created_at
		FROM embedding_chunks
		WHERE document_id = $1
		ORDER BY chunk_index
	`, documentID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	chunks := []*domain.EmbeddingChunk{}
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, mapError(rows.Err())
}

// ChunksInFolders streams chunks row by row; the cursor is closed when
// the consumer stops iterating
func (s *ChunkStore) ChunksInFolders(ctx context.Context, folderIDs []string) iter.Seq2[*domain.ChunkRecord, error] {
	return func(yield func(*domain.ChunkRecord, error) bool) {
		if len(folderIDs) == 0 {
			return
		}
		rows, err := s.db.QueryContext(ctx, `
			SELECT c.document_id, c.chunk_index, c.text, c.embedding, c.metadata, c.created_at,
			       d.folder_id, d.filename
			FROM embedding_chunks c
			JOIN documents d ON d.id = c.document_id
			WHERE d.folder_id = ANY($1)
			ORDER BY c.document_id, c.chunk_index
		`, pq.Array(folderIDs))
		if err != nil {
			yield(nil, mapError(err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanChunkRecord(rows)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, mapError(err))
		}
	}
}

// CountInFolders returns chunk counts keyed by folder ID
func (s *ChunkStore) CountInFolders(ctx context.Context, folderIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(folderIDs))
	if len(folderIDs) == 0 {
		return counts, nil
	}
	return counts, countInto(ctx, s.db, counts, `
		SELECT d.folder_id, COUNT(*)
		FROM embedding_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.folder_id = ANY($1)
		GROUP BY d.folder_id
	`, pq.Array(folderIDs))
}

// Dimensions returns the configured vector length, or that of stored
// chunks when none is configured; 0 means nothing decides it yet
func (s *ChunkStore) Dimensions(ctx context.Context) (int, error) {
	return s.expectedDimensions(ctx, s.db)
}

// expectedDimensions counts rows of the document being replaced too, so
// re-ingesting the only document cannot change the store's dimensionality
func (s *ChunkStore) expectedDimensions(ctx context.Context, q rowQueryer) (int, error) {
	if s.dimensions > 0 {
		return s.dimensions, nil
	}
	var dims int
	err := q.QueryRowContext(ctx, `SELECT vector_dims(embedding) FROM embedding_chunks LIMIT 1`).Scan(&dims)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, mapError(err)
	}
	return dims, nil
}

type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NearestChunks ranks chunks by cosine distance inside the database.
// The cast matches the expression index built by InitSchema.
//
// HNSW applies the folder filter after the graph walk, so a narrow scope
// could come back short. The query runs in its own transaction with an
// iterative strict-order scan on pgvector 0.8+, and with index scans
// disabled (an exact scan) on older versions.
func (s *ChunkStore) NearestChunks(ctx context.Context, vector []float32, folderIDs []string, limit int) ([]*domain.ScoredChunk, error) {
	if len(folderIDs) == 0 || limit <= 0 || len(vector) == 0 {
		return []*domain.ScoredChunk{}, nil
	}

	dims, err := s.Dimensions(ctx)
	if err != nil {
		return nil, err
	}
	if dims == 0 {
		return []*domain.ScoredChunk{}, nil
	}
	if dims != len(vector) {
		return nil, fmt.Errorf("%w: query has %d dimensions, store has %d",
			domain.ErrEmbeddingDimensionMismatch, len(vector), dims)
	}

	query := fmt.Sprintf(`
		SELECT c.document_id, c.chunk_index, c.text, c.embedding, c.metadata, c.created_at,
		       d.folder_id, d.filename,
		       c.embedding::vector(%[1]d) <=> $1::vector(%[1]d) AS distance
		FROM embedding_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.folder_id = ANY($2)
		ORDER BY distance, c.document_id, c.chunk_index
		LIMIT $3
	`, dims)

	var results []*domain.ScoredChunk
	err = s.db.Transaction(ctx, func(tx *sql.Tx) error {
		for _, stmt := range scopedScanSettings(s.db.iterativeScan, limit) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return mapError(err)
			}
		}

		rows, err := tx.QueryContext(ctx, query, pgvector.NewVector(vector), pq.Array(folderIDs), limit)
		if err != nil {
			return mapError(err)
		}
		defer rows.Close()

		results = []*domain.ScoredChunk{}
		for rows.Next() {
			var distance sql.NullFloat64
			rec, err := scanChunkRecord(rows, &distance)
			if err != nil {
				return err
			}
			// pgvector yields NaN for zero vectors; treat them as orthogonal
			// like the in-process scan does.
			d := 1.0
			if distance.Valid && !math.IsNaN(distance.Float64) {
				d = distance.Float64
			}
			results = append(results, &domain.ScoredChunk{Record: rec, Score: domain.ScoreFromCosineDistance(d)})
		}
		return mapError(rows.Err())
	})
	if err != nil {
		return nil, err
	}

	domain.SortScored(results)
	return results, nil
}

// scopedScanSettings returns the SET LOCAL statements that keep a filtered
// nearest-neighbour query exact over the caller's scope
func scopedScanSettings(iterative bool, limit int) []string {
	if !iterative {
		return []string{"SET LOCAL enable_indexscan = off"}
	}
	return []string{
		"SET LOCAL hnsw.iterative_scan = strict_order",
		fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", min(max(limit, 40), hnswMaxEfSearch)),
	}
}

func scanChunk(row rowScanner) (*domain.EmbeddingChunk, error) {
	var c domain.EmbeddingChunk
	var vec pgvector.Vector
	var metadataJSON []byte
	if err := row.Scan(&c.DocumentID, &c.Index, &c.Text, &vec, &metadataJSON, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Embedding = vec.Slice()
	if err := unmarshalMetadata(metadataJSON, &c.Metadata); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanChunkRecord(row rowScanner, extra ...any) (*domain.ChunkRecord, error) {
	var c domain.EmbeddingChunk
	var vec pgvector.Vector
	var metadataJSON []byte
	rec := &domain.ChunkRecord{Chunk: &c}

	dest := []any{&c.DocumentID, &c.Index, &c.Text, &vec, &metadataJSON, &c.CreatedAt, &rec.FolderID, &rec.DocumentName}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	c.Embedding = vec.Slice()
	if err := unmarshalMetadata(metadataJSON, &c.Metadata); err != nil {
		return nil, err
	}
	return rec, nil
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func unmarshalMetadata(data []byte, m *map[string]any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return err
	}
	if len(*m) == 0 {
		*m = nil
	}
	return nil
}
