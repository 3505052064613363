package domain

import (
	"math"
	"sort"
	"time"
)

const (
	// DefaultSearchLimit is used when the caller passes no limit
	DefaultSearchLimit = 5
	// MaxSearchLimit caps the number of returned sources
	MaxSearchLimit = 50
)

// Source is one retrieved chunk cited as evidence for an answer.
// Score is normalized to [0,1], higher is more relevant.
type Source struct {
	DocumentID   string         `json:"document_id"`
	DocumentName string         `json:"document_name"`
	FolderID     string         `json:"folder_id"`
	FolderName   string         `json:"folder_name"`
	ChunkIndex   int            `json:"chunk_index"`
	ChunkText    string         `json:"chunk_text"`
	Score        float64        `json:"relevance_score"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// SearchRequest asks for the most relevant chunks inside a folder scope.
// An empty FolderIDs means no folders, never all folders.
type SearchRequest struct {
	Vector    []float32 `json:"-"`
	FolderIDs []string  `json:"folder_ids"`
	Limit     int       `json:"limit"`
	MinScore  float64   `json:"min_score"`
}

// SearchResult is the ordered output of a retrieval
type SearchResult struct {
	Sources []*Source `json:"sources"`
	// Scope is the requested scope after permission reduction
	Scope []string `json:"scope"`
	// ChunksConsidered counts chunks scored inside the scope
	ChunksConsidered int           `json:"chunks_considered"`
	Took             time.Duration `json:"took"`
}

// ScoredChunk is a chunk with its normalized score
type ScoredChunk struct {
	Record *ChunkRecord
	Score  float64
}

// ClampLimit applies the default and maximum search limits
func ClampLimit(limit int) int {
	return ClampPageSize(limit, DefaultSearchLimit, MaxSearchLimit)
}

// ClampPageSize maps a missing or zero limit to def and caps it at ceiling
func ClampPageSize(limit, def, ceiling int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, ceiling)
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched or zero-length vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ScoreFromCosine maps cosine similarity [-1,1] onto [0,1]
func ScoreFromCosine(cos float64) float64 {
	return clamp01((1 + cos) / 2)
}

// ScoreFromCosineDistance maps a cosine distance [0,2] onto [0,1]
func ScoreFromCosineDistance(distance float64) float64 {
	return clamp01(1 - distance/2)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// LessScored orders by score descending, then document id, then chunk index
func LessScored(a, b *ScoredChunk) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Record.Chunk.DocumentID != b.Record.Chunk.DocumentID {
		return a.Record.Chunk.DocumentID < b.Record.Chunk.DocumentID
	}
	return a.Record.Chunk.Index < b.Record.Chunk.Index
}

// SortScored sorts chunks into retrieval order
func SortScored(chunks []*ScoredChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		return LessScored(chunks[i], chunks[j])
	})
}

// IntersectScope keeps requested ids that are also accessible, in
// requested order without duplicates
func IntersectScope(accessible, requested []string) []string {
	allowed := make(map[string]struct{}, len(accessible))
	for _, id := range accessible {
		allowed[id] = struct{}{}
	}
	seen := make(map[string]struct{}, len(requested))
	scope := make([]string, 0, len(requested))
	for _, id := range requested {
		if _, ok := allowed[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		scope = append(scope, id)
	}
	return scope
}
