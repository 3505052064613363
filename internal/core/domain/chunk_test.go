package domain

import (
	"errors"
	"testing"
)

func makeChunks(doc string, dims ...int) []*EmbeddingChunk {
	chunks := make([]*EmbeddingChunk, len(dims))
	for i, d := range dims {
		chunks[i] = &EmbeddingChunk{
			DocumentID: doc,
			Index:      i,
			Text:       "chunk",
			Embedding:  make([]float32, d),
		}
		if d > 0 {
			chunks[i].Embedding[0] = 1
		}
	}
	return chunks
}

func TestValidateChunks(t *testing.T) {
	t.Run("valid set infers dimensions", func(t *testing.T) {
		dims, err := ValidateChunks("doc", makeChunks("doc", 3, 3, 3), 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dims != 3 {
			t.Errorf("expected 3 dimensions, got %d", dims)
		}
	})

	t.Run("empty set", func(t *testing.T) {
		dims, err := ValidateChunks("doc", nil, 8)
		if err != nil || dims != 8 {
			t.Errorf("expected (8, nil), got (%d, %v)", dims, err)
		}
	})

	t.Run("mixed dimensions", func(t *testing.T) {
		_, err := ValidateChunks("doc", makeChunks("doc", 3, 4), 0)
		if !errors.Is(err, ErrDimensionMismatch) {
			t.Errorf("expected dimension mismatch, got %v", err)
		}
	})

	t.Run("store dimension mismatch", func(t *testing.T) {
		_, err := ValidateChunks("doc", makeChunks("doc", 3), 4)
		if !errors.Is(err, ErrDimensionMismatch) {
			t.Errorf("expected dimension mismatch, got %v", err)
		}
	})

	t.Run("gap in indexes", func(t *testing.T) {
		chunks := makeChunks("doc", 3, 3)
		chunks[1].Index = 2
		if _, err := ValidateChunks("doc", chunks, 0); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected invalid input, got %v", err)
		}
	})

	t.Run("zero dimension vector", func(t *testing.T) {
		if _, err := ValidateChunks("doc", makeChunks("doc", 0), 0); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected invalid input, got %v", err)
		}
	})

	t.Run("foreign document", func(t *testing.T) {
		if _, err := ValidateChunks("doc", makeChunks("other", 3), 0); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected invalid input, got %v", err)
		}
	})
}

func TestComputeEmbeddingStats(t *testing.T) {
	chunks := []*EmbeddingChunk{
		{Text: "hello", Embedding: make([]float32, 4)},
		{Text: "héllo!", Embedding: make([]float32, 4)},
	}

	stats := ComputeEmbeddingStats("doc", chunks)

	if stats.TotalChunks != 2 {
		t.Errorf("expected 2 chunks, got %d", stats.TotalChunks)
	}
	if stats.TotalCharacters != 11 {
		t.Errorf("expected 11 characters, got %d", stats.TotalCharacters)
	}
	if stats.AverageChunkSize != 5.5 {
		t.Errorf("expected average 5.5, got %f", stats.AverageChunkSize)
	}
	if stats.Dimensions != 4 {
		t.Errorf("expected 4 dimensions, got %d", stats.Dimensions)
	}

	empty := ComputeEmbeddingStats("doc", nil)
	if empty.AverageChunkSize != 0 {
		t.Error("empty set should have zero average")
	}
}
