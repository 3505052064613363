package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// maxBodyBytes bounds request bodies; chunk uploads carry vectors
const maxBodyBytes = 32 << 20

// readyTimeout bounds the readiness checks
const readyTimeout = 5 * time.Second

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string           `json:"error" example:"folder_id: must not be empty"`
	Kind  domain.ErrorKind `json:"kind,omitempty" example:"validation"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string            `json:"status" example:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the database, Redis and the AI providers
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  StatusResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name, p := range s.checks {
		if p != nil {
			names = append(names, name)
		}
	}
	errs := make([]error, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		p := s.checks[name]
		g.Go(func() error {
			errs[i] = p.Ping(gctx)
			return nil
		})
	}
	_ = g.Wait()

	resp := StatusResponse{Status: "ready", Checks: make(map[string]string, len(names))}
	status := http.StatusOK
	for i, name := range names {
		if errs[i] != nil {
			resp.Checks[name] = errs[i].Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			s.logger.Warn("readiness check failed", zap.String("check", name), zap.Error(errs[i]))
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeDomainError maps a service error onto a status code by its kind.
// Only validation messages are echoed; everything else gets a fixed text.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status, message := http.StatusInternalServerError, "internal server error"

	switch kind {
	case domain.KindValidation:
		status, message = http.StatusBadRequest, "invalid input"
		var ve *domain.ValidationError
		switch {
		case errors.As(err, &ve):
			message = ve.Error()
		case errors.Is(err, domain.ErrNameConflict):
			status, message = http.StatusConflict, "a sibling folder already uses this name"
		case errors.Is(err, domain.ErrInvalidProvider):
			message = "invalid AI provider"
		}
	case domain.KindAuthorization:
		status, message = http.StatusForbidden, "forbidden"
		if !errors.Is(err, domain.ErrForbidden) {
			status, message = http.StatusUnauthorized, "unauthorized"
		}
	case domain.KindConsistency:
		switch {
		case errors.Is(err, domain.ErrCycleDetected):
			status, message = http.StatusConflict, "folder cannot be moved under itself"
		default:
			status, message = http.StatusUnprocessableEntity, "embedding dimensions do not match the store"
		}
	case domain.KindNotFound:
		status, message = http.StatusNotFound, "not found"
		if errors.Is(err, domain.ErrSessionNotFound) {
			message = "session not found"
		}
	case domain.KindTransient:
		status, message = http.StatusServiceUnavailable, "service unavailable, retry later"
		if errors.Is(err, domain.ErrBusy) {
			message = "resource busy, retry later"
		}
		w.Header().Set("Retry-After", "1")
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
	writeJSON(w, status, ErrorResponse{Error: message, Kind: kind})
}

// decodeJSON reads a JSON body into v, rejecting unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.NewValidationError("", "request body is empty")
		}
		return domain.NewValidationError("", fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

// pagination reads limit and offset query parameters
func pagination(r *http.Request, defaultLimit int) (limit, offset int, err error) {
	limit, offset = defaultLimit, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			return 0, 0, domain.NewValidationError("limit", "must be a non-negative integer")
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, domain.NewValidationError("offset", "must be a non-negative integer")
		}
	}
	return limit, offset, nil
}
