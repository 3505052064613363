package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// DownloadResponse carries a presigned link
type DownloadResponse struct {
	URL string `json:"url"`
}

// handleRegisterDocument godoc
// @Summary      Register document
// @Description  Records a document stored elsewhere. Requires write on the folder.
// @Tags         Documents
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                          true  "Folder ID"
// @Param        request  body      domain.RegisterDocumentRequest  true  "Document"
// @Success      201      {object}  domain.Document
// @Router       /api/v1/folders/{id}/documents [post]
func (s *Server) handleRegisterDocument(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterDocumentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	doc, err := s.services.Documents.Register(r.Context(), userID(r), chi.URLParam(r, "id"), &req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r, domain.DefaultDocumentPageSize)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	docs, err := s.services.Documents.ListByFolder(r.Context(), userID(r), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(docs))
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.services.Documents.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Documents.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleIngest godoc
// @Summary      Replace document chunks
// @Description  Normalises and chunks text, or takes explicit chunks, embeds them and
// @Description  atomically replaces the document's chunk set
// @Tags         Documents
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                true  "Document ID"
// @Param        request  body      domain.IngestRequest  true  "Text or chunks"
// @Success      200      {object}  domain.EmbeddingStats
// @Failure      422      {object}  ErrorResponse  "Dimension mismatch"
// @Failure      503      {object}  ErrorResponse  "Ingestion already running"
// @Router       /api/v1/documents/{id}/chunks [put]
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req domain.IngestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	stats, err := s.services.Documents.Ingest(r.Context(), userID(r), chi.URLParam(r, "id"), &req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetChunks(w http.ResponseWriter, r *http.Request) {
	chunks, err := s.services.Documents.Chunks(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(chunks))
}

func (s *Server) handleDocumentStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.services.Documents.Stats(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	url, err := s.services.Documents.DownloadURL(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DownloadResponse{URL: url})
}
