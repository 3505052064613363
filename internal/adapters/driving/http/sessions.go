package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// SessionRequest creates or renames a session
type SessionRequest struct {
	Title string `json:"title" example:"Contract questions"`
}

// AppendMessageRequest records an exchange produced outside the query endpoint
type AppendMessageRequest struct {
	Query     string           `json:"query"`
	Answer    string           `json:"answer"`
	Sources   []*domain.Source `json:"sources,omitempty"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
	RequestID string           `json:"request_id,omitempty"`
}

// handleCreateSession godoc
// @Summary      Create chat session
// @Tags         Sessions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      SessionRequest  false  "Title"
// @Success      201      {object}  domain.ChatSession
// @Router       /api/v1/sessions [post]
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
	}

	session, err := s.services.Chat.CreateSession(r.Context(), userID(r), req.Title)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r, domain.DefaultSessionPageSize)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	sessions, err := s.services.Chat.ListSessions(r.Context(), userID(r), limit, offset)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(sessions))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.services.Chat.GetSession(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleRenameSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	session, err := s.services.Chat.RenameSession(r.Context(), userID(r), chi.URLParam(r, "id"), req.Title)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Chat.DeleteSession(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.services.Chat.ListMessages(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(messages))
}

// handleAppendMessage godoc
// @Summary      Append message
// @Description  Records a query/answer pair. Retries with the same request_id return
// @Description  the stored message.
// @Tags         Sessions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                true  "Session ID"
// @Param        request  body      AppendMessageRequest  true  "Message"
// @Success      201      {object}  domain.ChatMessage
// @Failure      404      {object}  ErrorResponse
// @Router       /api/v1/sessions/{id}/messages [post]
func (s *Server) handleAppendMessage(w http.ResponseWriter, r *http.Request) {
	var req AppendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	msg, err := s.services.Chat.AppendMessage(r.Context(), userID(r), &domain.ChatMessage{
		SessionID: chi.URLParam(r, "id"),
		Query:     req.Query,
		Answer:    req.Answer,
		Sources:   req.Sources,
		Metadata:  req.Metadata,
		RequestID: req.RequestID,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}
