package domain

import (
	"math"
	"reflect"
	"testing"
)

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultSearchLimit},
		{-3, DefaultSearchLimit},
		{7, 7},
		{MaxSearchLimit + 1, MaxSearchLimit},
	}
	for _, tt := range tests {
		if got := ClampLimit(tt.in); got != tt.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestClampPageSize(t *testing.T) {
	if got := ClampPageSize(0, DefaultSessionPageSize, MaxSessionPageSize); got != DefaultSessionPageSize {
		t.Errorf("zero limit = %d, want default", got)
	}
	if got := ClampPageSize(500, DefaultSessionPageSize, MaxSessionPageSize); got != MaxSessionPageSize {
		t.Errorf("large limit = %d, want max", got)
	}
	if got := ClampPageSize(3, DefaultSessionPageSize, MaxSessionPageSize); got != 3 {
		t.Errorf("limit = %d, want 3", got)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1}, []float32{1, 2}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("expected %f, got %f", tt.want, got)
			}
		})
	}
}

func TestScoreNormalization(t *testing.T) {
	if ScoreFromCosine(1) != 1 || ScoreFromCosine(-1) != 0 || ScoreFromCosine(0) != 0.5 {
		t.Error("cosine must map linearly onto [0,1]")
	}
	if ScoreFromCosineDistance(0) != 1 || ScoreFromCosineDistance(2) != 0 {
		t.Error("distance must map onto [0,1] with higher meaning closer")
	}
	if ScoreFromCosineDistance(-0.01) != 1 || ScoreFromCosine(math.NaN()) != 0 {
		t.Error("out of range values must be clamped")
	}

	// Both index types must agree on the same pair of vectors.
	a := []float32{0.3, 0.4, 0.5}
	b := []float32{0.1, 0.9, 0.2}
	cos := CosineSimilarity(a, b)
	if math.Abs(ScoreFromCosine(cos)-ScoreFromCosineDistance(1-cos)) > 1e-12 {
		t.Error("cosine and distance scores disagree")
	}
}

func scored(doc string, idx int, score float64) *ScoredChunk {
	return &ScoredChunk{
		Record: &ChunkRecord{Chunk: &EmbeddingChunk{DocumentID: doc, Index: idx}},
		Score:  score,
	}
}

func TestSortScored_TieBreak(t *testing.T) {
	chunks := []*ScoredChunk{
		scored("doc-b", 0, 0.9),
		scored("doc-a", 2, 0.9),
		scored("doc-a", 1, 0.9),
		scored("doc-c", 0, 0.95),
		scored("doc-a", 0, 0.1),
	}

	SortScored(chunks)

	var got []string
	for _, c := range chunks {
		got = append(got, c.Record.Chunk.DocumentID+"#"+string(rune('0'+c.Record.Chunk.Index)))
	}
	want := []string{"doc-c#0", "doc-a#1", "doc-a#2", "doc-b#0", "doc-a#0"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestIntersectScope(t *testing.T) {
	tests := []struct {
		name       string
		accessible []string
		requested  []string
		want       []string
	}{
		{"empty request means nothing", []string{"a", "b"}, nil, []string{}},
		{"drops inaccessible", []string{"a"}, []string{"a", "x"}, []string{"a"}},
		{"keeps requested order", []string{"a", "b", "c"}, []string{"c", "a"}, []string{"c", "a"}},
		{"dedupes", []string{"a"}, []string{"a", "a"}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IntersectScope(tt.accessible, tt.requested)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
