package domain

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// EmbeddingChunk is one immutable segment of a document with its vector
type EmbeddingChunk struct {
	DocumentID string         `json:"document_id"`
	Index      int            `json:"index"`
	Text       string         `json:"text"`
	Embedding  []float32      `json:"-"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ChunkRecord is a chunk joined with the folder and document it belongs to
type ChunkRecord struct {
	Chunk        *EmbeddingChunk
	FolderID     string
	DocumentName string
}

// EmbeddingStats summarises a document's chunk set
type EmbeddingStats struct {
	DocumentID       string  `json:"document_id"`
	TotalChunks      int     `json:"total_chunks"`
	TotalCharacters  int     `json:"total_characters"`
	AverageChunkSize float64 `json:"average_chunk_size"`
	Dimensions       int     `json:"dimensions"`
}

// ComputeEmbeddingStats derives stats from a chunk set
func ComputeEmbeddingStats(documentID string, chunks []*EmbeddingChunk) *EmbeddingStats {
	stats := &EmbeddingStats{DocumentID: documentID, TotalChunks: len(chunks)}
	for _, c := range chunks {
		stats.TotalCharacters += utf8.RuneCountInString(c.Text)
		if stats.Dimensions == 0 {
			stats.Dimensions = len(c.Embedding)
		}
	}
	if stats.TotalChunks > 0 {
		stats.AverageChunkSize = float64(stats.TotalCharacters) / float64(stats.TotalChunks)
	}
	return stats
}

// ValidateChunks checks that chunks form a dense 0..n-1 sequence for
// documentID and share one vector length, which it returns. want is the
// store's dimensionality, or 0 when the store has none yet.
func ValidateChunks(documentID string, chunks []*EmbeddingChunk, want int) (int, error) {
	dims := want
	for i, c := range chunks {
		if c == nil {
			return 0, NewValidationError("chunks", fmt.Sprintf("chunk %d is nil", i))
		}
		if c.DocumentID != documentID {
			return 0, NewValidationError("chunks", fmt.Sprintf("chunk %d belongs to document %q", i, c.DocumentID))
		}
		if c.Index != i {
			return 0, NewValidationError("chunks", fmt.Sprintf("chunk index %d out of sequence, expected %d", c.Index, i))
		}
		if len(c.Embedding) == 0 {
			return 0, NewValidationError("chunks", fmt.Sprintf("chunk %d has an empty vector", i))
		}
		if dims == 0 {
			dims = len(c.Embedding)
		}
		if len(c.Embedding) != dims {
			return 0, fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(c.Embedding), dims)
		}
	}
	return dims, nil
}
