package http

import (
	"net/http"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// handleQuery godoc
// @Summary      Ask a question
// @Description  Retrieves the most relevant chunks from readable folders, answers from
// @Description  them and records the exchange in the session
// @Tags         Query
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.QueryRequest  true  "Question"
// @Success      200      {object}  domain.QueryResponse
// @Failure      400      {object}  ErrorResponse
// @Failure      404      {object}  ErrorResponse  "Session not found"
// @Failure      503      {object}  ErrorResponse  "Embedding or LLM unavailable"
// @Router       /api/v1/query [post]
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req domain.QueryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp, err := s.services.Query.Query(r.Context(), userID(r), &req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleQueryableFolders godoc
// @Summary      Queryable folders
// @Tags         Query
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  domain.QueryableFolder
// @Router       /api/v1/query/folders [get]
func (s *Server) handleQueryableFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := s.services.Query.QueryableFolders(r.Context(), userID(r))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(folders))
}

// SuggestionsResponse lists follow-up questions
type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

// handleSuggestQueries godoc
// @Summary      Suggest related questions
// @Description  Returns follow-up questions about documents in readable folders.
// @Description  The list is empty when nothing is readable or no LLM is configured.
// @Tags         Query
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.SuggestRequest  true  "Original question"
// @Success      200      {object}  SuggestionsResponse
// @Failure      400      {object}  ErrorResponse
// @Router       /api/v1/query/suggestions [post]
func (s *Server) handleSuggestQueries(w http.ResponseWriter, r *http.Request) {
	var req domain.SuggestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	suggestions, err := s.services.Query.SuggestQueries(r.Context(), userID(r), &req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SuggestionsResponse{Suggestions: nonNil(suggestions)})
}

func (s *Server) handleQueryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.services.Query.Stats(r.Context(), userID(r))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
