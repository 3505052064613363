package domain

import (
	"strconv"
	"strings"
	"time"
)

const (
	DefaultDocumentPageSize = 50
	MaxDocumentPageSize     = 500
)

// Document is a file registered in a folder. The bytes live in object
// storage; only the locator is kept here.
type Document struct {
	ID             string         `json:"id"`
	FolderID       string         `json:"folder_id"`
	Filename       string         `json:"filename"`
	ContentType    string         `json:"content_type"`
	Size           int64          `json:"size"`
	StorageLocator string         `json:"storage_locator"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	ChunkCount     int            `json:"chunk_count"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	IngestedAt     *time.Time     `json:"ingested_at,omitempty"`
}

// IsIngested reports whether chunks have been written for the document
func (d *Document) IsIngested() bool {
	return d.IngestedAt != nil
}

// DetectContentType guesses a MIME type from the filename extension
func DetectContentType(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return "application/octet-stream"
	}
	switch strings.ToLower(filename[i+1:]) {
	case "txt", "text", "log":
		return "text/plain"
	case "md", "markdown":
		return "text/markdown"
	case "html", "htm":
		return "text/html"
	case "pdf":
		return "application/pdf"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "csv":
		return "text/csv"
	case "json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// RegisterDocumentRequest describes a file already placed in object storage
type RegisterDocumentRequest struct {
	Filename       string         `json:"filename"`
	ContentType    string         `json:"content_type,omitempty"`
	Size           int64          `json:"size"`
	StorageLocator string         `json:"storage_locator"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Validate checks required fields and fills the content type
func (r *RegisterDocumentRequest) Validate() error {
	if r.Filename == "" {
		return NewValidationError("filename", "must not be empty")
	}
	if r.Size < 0 {
		return NewValidationError("size", "must not be negative")
	}
	if r.ContentType == "" {
		r.ContentType = DetectContentType(r.Filename)
	}
	return nil
}

// ChunkInput is one caller-supplied chunk. A missing embedding is generated.
type ChunkInput struct {
	Text      string         `json:"text"`
	Embedding []float32      `json:"embedding,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// IngestRequest replaces a document's chunk set, either from extracted
// text that is normalised and split, or from explicit chunks
type IngestRequest struct {
	Text   string        `json:"text,omitempty"`
	Chunks []*ChunkInput `json:"chunks,omitempty"`
}

// Validate checks that exactly one input form is present
func (r *IngestRequest) Validate() error {
	hasText := strings.TrimSpace(r.Text) != ""
	switch {
	case hasText && len(r.Chunks) > 0:
		return NewValidationError("", "provide either text or chunks, not both")
	case !hasText && len(r.Chunks) == 0:
		return NewValidationError("", "text or chunks required")
	}
	for i, c := range r.Chunks {
		if c == nil || strings.TrimSpace(c.Text) == "" {
			return NewValidationError("chunks", "chunk "+strconv.Itoa(i)+" has no text")
		}
	}
	return nil
}
