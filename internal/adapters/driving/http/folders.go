package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// CreateFolderRequest creates a folder; a missing parent_id creates a root
type CreateFolderRequest struct {
	Name     string  `json:"name" example:"Contracts"`
	ParentID *string `json:"parent_id,omitempty"`
}

// RenameRequest carries a new display name
type RenameRequest struct {
	Name string `json:"name" example:"Agreements"`
}

// MoveFolderRequest reparents a folder; null moves it to the root
type MoveFolderRequest struct {
	ParentID *string `json:"parent_id"`
}

// RevokeResponse reports whether a permission row existed
type RevokeResponse struct {
	Revoked bool `json:"revoked"`
}

// handleCreateFolder godoc
// @Summary      Create folder
// @Tags         Folders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      CreateFolderRequest  true  "Folder"
// @Success      201      {object}  domain.Folder
// @Failure      400      {object}  ErrorResponse
// @Failure      403      {object}  ErrorResponse
// @Failure      409      {object}  ErrorResponse  "Sibling name conflict"
// @Router       /api/v1/folders [post]
func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req CreateFolderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	folder, err := s.services.Folders.Create(r.Context(), userID(r), req.Name, req.ParentID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

// handleListFolders godoc
// @Summary      List folders
// @Description  Lists the children of parent_id, or the caller's root folders
// @Tags         Folders
// @Produce      json
// @Security     BearerAuth
// @Param        parent_id  query     string  false  "Parent folder"
// @Success      200        {array}   domain.Folder
// @Router       /api/v1/folders [get]
func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	var parentID *string
	if v := r.URL.Query().Get("parent_id"); v != "" {
		parentID = &v
	}

	folders, err := s.services.Folders.List(r.Context(), userID(r), parentID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(folders))
}

func (s *Server) handleGetFolder(w http.ResponseWriter, r *http.Request) {
	folder, err := s.services.Folders.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

func (s *Server) handleRenameFolder(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	folder, err := s.services.Folders.Rename(r.Context(), userID(r), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

// handleMoveFolder godoc
// @Summary      Move folder
// @Description  Reparents a folder and rewrites the paths below it
// @Tags         Folders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string             true  "Folder ID"
// @Param        request  body      MoveFolderRequest  true  "New parent"
// @Success      200      {object}  domain.Folder
// @Failure      409      {object}  ErrorResponse  "Cycle or name conflict"
// @Router       /api/v1/folders/{id}/move [post]
func (s *Server) handleMoveFolder(w http.ResponseWriter, r *http.Request) {
	var req MoveFolderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	folder, err := s.services.Folders.Move(r.Context(), userID(r), chi.URLParam(r, "id"), req.ParentID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Folders.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAncestors(w http.ResponseWriter, r *http.Request) {
	folders, err := s.services.Folders.Ancestors(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(folders))
}

func (s *Server) handleDescendants(w http.ResponseWriter, r *http.Request) {
	folders, err := s.services.Folders.Descendants(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(folders))
}

// Permission endpoints

// handleEffectiveAccess godoc
// @Summary      Effective access
// @Description  Resolves the caller's capabilities on a folder, including inherited grants
// @Tags         Permissions
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Folder ID"
// @Success      200  {object}  domain.Access
// @Router       /api/v1/folders/{id}/access [get]
func (s *Server) handleEffectiveAccess(w http.ResponseWriter, r *http.Request) {
	access, err := s.services.Permissions.EffectiveAccess(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, access)
}

func (s *Server) handleListGrants(w http.ResponseWriter, r *http.Request) {
	grants, err := s.services.Permissions.ListGrants(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(grants))
}

// handleGrant godoc
// @Summary      Grant access
// @Description  Upserts a user's capabilities on a folder. Requires admin on the folder.
// @Tags         Permissions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string               true  "Folder ID"
// @Param        userId   path      string               true  "Grantee"
// @Param        request  body      domain.Capabilities  true  "Capabilities"
// @Success      200      {object}  domain.Permission
// @Failure      403      {object}  ErrorResponse
// @Router       /api/v1/folders/{id}/permissions/{userId} [put]
func (s *Server) handleGrant(w http.ResponseWriter, r *http.Request) {
	var caps domain.Capabilities
	if err := decodeJSON(w, r, &caps); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	perm, err := s.services.Permissions.Grant(r.Context(), userID(r),
		chi.URLParam(r, "userId"), chi.URLParam(r, "id"), caps)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, perm)
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	revoked, err := s.services.Permissions.Revoke(r.Context(), userID(r),
		chi.URLParam(r, "userId"), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RevokeResponse{Revoked: revoked})
}

// nonNil keeps empty lists encoded as [] instead of null
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
