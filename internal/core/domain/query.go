package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// QueryRequest is a question asked against a folder scope inside a session
type QueryRequest struct {
	Query     string   `json:"query"`
	FolderIDs []string `json:"folder_ids"`
	Limit     int      `json:"limit"`
	SessionID string   `json:"session_id"`
	// MinScore drops sources below this relevance; nil uses the configured default
	MinScore *float64 `json:"min_score,omitempty"`
	// RequestID makes retries of the same question idempotent
	RequestID string `json:"request_id,omitempty"`
}

// QueryResponse is the answer with the sources it was grounded on
type QueryResponse struct {
	MessageID        string    `json:"message_id"`
	SessionID        string    `json:"session_id"`
	Answer           string    `json:"answer"`
	Sources          []*Source `json:"sources"`
	TotalChunks      int       `json:"total_chunks"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
}

// RAGStats describes what a user can currently query
type RAGStats struct {
	StorageBackend      string `json:"storage_backend"`
	AccessibleFolders   int    `json:"accessible_folders"`
	Documents           int    `json:"documents"`
	Chunks              int    `json:"chunks"`
	EmbeddingAvailable  bool   `json:"embedding_available"`
	EmbeddingModel      string `json:"embedding_model,omitempty"`
	EmbeddingDimensions int    `json:"embedding_dimensions"`
	LLMAvailable        bool   `json:"llm_available"`
	LLMModel            string `json:"llm_model,omitempty"`
}

// QueryMetadata keys stored on chat messages written by the query path
const (
	MetaTotalChunks    = "total_chunks"
	MetaProcessingMs   = "processing_time_ms"
	MetaEmbeddingModel = "embedding_model"
	MetaLLMModel       = "llm_model"
	MetaScope          = "scope"
)

// ElapsedMillis converts a duration to whole milliseconds
func ElapsedMillis(d time.Duration) int64 {
	return d.Milliseconds()
}

// ExcerptLength bounds each source excerpt in an extractive answer, in runes
const ExcerptLength = 300

// ExtractiveAnswer lists the sources as numbered excerpts. It is the answer
// when no language model is configured.
func ExtractiveAnswer(sources []*Source) string {
	if len(sources) == 0 {
		return NoResultsAnswer
	}
	var b strings.Builder
	b.WriteString("Relevant excerpts:\n")
	for i, src := range sources {
		text := strings.Join(strings.Fields(src.ChunkText), " ")
		if utf8.RuneCountInString(text) > ExcerptLength {
			text = string([]rune(text)[:ExcerptLength]) + "..."
		}
		fmt.Fprintf(&b, "\n[%d] %s: %s\n", i+1, src.DocumentName, text)
	}
	return strings.TrimRight(b.String(), "\n")
}

// SuggestRequest asks for follow-up questions to a query
type SuggestRequest struct {
	Query     string   `json:"query"`
	FolderIDs []string `json:"folder_ids"`
}

const (
	// MaxSuggestions caps the related questions returned
	MaxSuggestions = 5
	// SuggestionDocuments is how many filenames are shown to the model
	SuggestionDocuments = 10
)

// ParseSuggestions extracts the numbered or bulleted questions from model
// text. Other lines are ignored.
func ParseSuggestions(text string) []string {
	out := []string{}
	for line := range strings.Lines(text) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var q string
		switch {
		case line[0] >= '0' && line[0] <= '9':
			rest := strings.TrimLeft(line, "0123456789")
			if rest == "" || (rest[0] != '.' && rest[0] != ')') {
				continue
			}
			q = rest[1:]
		case line[0] == '-' || line[0] == '*':
			q = line[1:]
		default:
			continue
		}
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
		if len(out) == MaxSuggestions {
			break
		}
	}
	return out
}
