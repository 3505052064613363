package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
	"github.com/custodia-labs/sercha-rag/internal/ingest"
	"github.com/custodia-labs/sercha-rag/internal/runtime"
)

type testAPI struct {
	t      *testing.T
	server *Server
	auth   *mocks.MockAuthAdapter
}

func newTestAPI(t *testing.T, checks map[string]Pinger) *testAPI {
	t.Helper()

	stores := mocks.NewMockStores()
	rt := runtime.NewServices(domain.NewRuntimeConfig("memory"))
	rt.SetEmbeddingService(mocks.NewMockEmbeddingService())
	rt.SetLLMService(mocks.NewMockLLMService())
	adapter := mocks.NewMockAuthAdapter()

	perms := services.NewPermissionService(stores.Folders, stores.Permissions, nil, nil)
	retrieval := services.NewRetrievalService(services.RetrievalConfig{
		Permissions: perms,
		Folders:     stores.Folders,
		Chunks:      stores.Chunks,
	})
	chat := services.NewChatService(stores.Chats)

	svcs := Services{
		Auth:        services.NewAuthService(adapter),
		Folders:     services.NewFolderService(stores.Folders, perms, nil, nil),
		Permissions: perms,
		Documents: services.NewDocumentService(services.DocumentServiceConfig{
			Documents:   stores.Documents,
			Chunks:      stores.Chunks,
			Permissions: perms,
			Services:    rt,
			Normalisers: ingest.DefaultRegistry(),
			Pipeline:    ingest.DefaultPipeline(),
			Lock:        mocks.NewMockDistributedLock(),
			Locator:     &mocks.MockObjectLocator{},
		}),
		Query: services.NewQueryService(services.QueryServiceConfig{
			Retrieval:   retrieval,
			Chat:        chat,
			Permissions: perms,
			Folders:     stores.Folders,
			Documents:   stores.Documents,
			Chunks:      stores.Chunks,
			Services:    rt,
		}),
		Chat: chat,
	}

	cfg := DefaultConfig()
	cfg.Version = "1.2.3"
	return &testAPI{t: t, server: NewServer(cfg, svcs, checks, nil), auth: adapter}
}

func (a *testAPI) token(user string) string {
	tok, err := a.auth.GenerateToken(&domain.TokenClaims{
		UserID:    user,
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(a.t, err)
	return tok
}

// do sends a request as user and decodes the JSON response into out
func (a *testAPI) do(user, method, path string, body any, out any) int {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+a.token(user))
	}
	rr := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(rr, req)

	if out != nil && rr.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(rr.Body.Bytes(), out), rr.Body.String())
	}
	return rr.Code
}

func TestHealthAndVersion(t *testing.T) {
	api := newTestAPI(t, nil)

	var status StatusResponse
	assert.Equal(t, http.StatusOK, api.do("", "GET", "/health", nil, &status))
	assert.Equal(t, "ok", status.Status)

	var version VersionResponse
	assert.Equal(t, http.StatusOK, api.do("", "GET", "/version", nil, &version))
	assert.Equal(t, "1.2.3", version.Version)
}

func TestReady(t *testing.T) {
	api := newTestAPI(t, map[string]Pinger{
		"database": PingFunc(func(context.Context) error { return nil }),
		"redis":    nil,
	})

	var status StatusResponse
	assert.Equal(t, http.StatusOK, api.do("", "GET", "/ready", nil, &status))
	assert.Equal(t, map[string]string{"database": "ok"}, status.Checks)

	api = newTestAPI(t, map[string]Pinger{
		"database": PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	assert.Equal(t, http.StatusServiceUnavailable, api.do("", "GET", "/ready", nil, &status))
	assert.Equal(t, "unavailable", status.Status)
}

func TestAPI_RequiresAuth(t *testing.T) {
	api := newTestAPI(t, nil)

	var errResp ErrorResponse
	assert.Equal(t, http.StatusUnauthorized, api.do("", "GET", "/api/v1/folders", nil, &errResp))
	assert.Equal(t, "missing authorization token", errResp.Error)
}

func TestFolderLifecycle(t *testing.T) {
	api := newTestAPI(t, nil)

	var legal, contracts domain.Folder
	require.Equal(t, http.StatusCreated, api.do("alice", "POST", "/api/v1/folders",
		CreateFolderRequest{Name: "Legal"}, &legal))
	require.Equal(t, http.StatusCreated, api.do("alice", "POST", "/api/v1/folders",
		CreateFolderRequest{Name: "Contracts", ParentID: &legal.ID}, &contracts))
	assert.Equal(t, "/"+legal.ID+"/"+contracts.ID+"/", contracts.Path)

	var errResp ErrorResponse
	assert.Equal(t, http.StatusConflict, api.do("alice", "POST", "/api/v1/folders",
		CreateFolderRequest{Name: "Contracts", ParentID: &legal.ID}, &errResp))
	assert.Equal(t, domain.KindValidation, errResp.Kind)

	var roots []*domain.Folder
	assert.Equal(t, http.StatusOK, api.do("alice", "GET", "/api/v1/folders", nil, &roots))
	assert.Len(t, roots, 1)

	var children []*domain.Folder
	assert.Equal(t, http.StatusOK, api.do("alice", "GET", "/api/v1/folders?parent_id="+legal.ID, nil, &children))
	assert.Len(t, children, 1)

	// Moving a folder under its own child is a cycle
	assert.Equal(t, http.StatusConflict, api.do("alice", "POST", "/api/v1/folders/"+legal.ID+"/move",
		MoveFolderRequest{ParentID: &contracts.ID}, &errResp))
	assert.Equal(t, domain.KindConsistency, errResp.Kind)

	var moved domain.Folder
	assert.Equal(t, http.StatusOK, api.do("alice", "POST", "/api/v1/folders/"+contracts.ID+"/move",
		MoveFolderRequest{}, &moved))
	assert.True(t, moved.IsRoot())

	var renamed domain.Folder
	assert.Equal(t, http.StatusOK, api.do("alice", "PATCH", "/api/v1/folders/"+contracts.ID,
		RenameRequest{Name: "Agreements"}, &renamed))
	assert.Equal(t, "Agreements", renamed.Name)

	assert.Equal(t, http.StatusNoContent, api.do("alice", "DELETE", "/api/v1/folders/"+legal.ID, nil, nil))
	assert.Equal(t, http.StatusForbidden, api.do("alice", "GET", "/api/v1/folders/"+legal.ID, nil, &errResp))
}

func TestPermissionsAndAccess(t *testing.T) {
	api := newTestAPI(t, nil)

	var legal, contracts domain.Folder
	require.Equal(t, http.StatusCreated, api.do("alice", "POST", "/api/v1/folders", CreateFolderRequest{Name: "Legal"}, &legal))
	require.Equal(t, http.StatusCreated, api.do("alice", "POST", "/api/v1/folders",
		CreateFolderRequest{Name: "Contracts", ParentID: &legal.ID}, &contracts))

	var errResp ErrorResponse
	assert.Equal(t, http.StatusForbidden, api.do("bob", "GET", "/api/v1/folders/"+contracts.ID, nil, &errResp))

	var perm domain.Permission
	require.Equal(t, http.StatusOK, api.do("alice", "PUT", "/api/v1/folders/"+legal.ID+"/permissions/bob",
		domain.Capabilities{Read: true}, &perm))
	assert.True(t, perm.Capabilities.Read)

	// Inherited from Legal
	var access domain.Access
	assert.Equal(t, http.StatusOK, api.do("bob", "GET", "/api/v1/folders/"+contracts.ID+"/access", nil, &access))
	assert.True(t, access.Capabilities.Read)
	assert.False(t, access.Capabilities.Write)

	// Bob cannot grant without admin
	assert.Equal(t, http.StatusForbidden, api.do("bob", "PUT", "/api/v1/folders/"+legal.ID+"/permissions/carol",
		domain.Capabilities{Read: true}, &errResp))

	var grants []*domain.Permission
	assert.Equal(t, http.StatusOK, api.do("alice", "GET", "/api/v1/folders/"+legal.ID+"/permissions", nil, &grants))
	assert.Len(t, grants, 1)

	var revoked RevokeResponse
	assert.Equal(t, http.StatusOK, api.do("alice", "DELETE", "/api/v1/folders/"+legal.ID+"/permissions/bob", nil, &revoked))
	assert.True(t, revoked.Revoked)
	assert.Equal(t, http.StatusOK, api.do("alice", "DELETE", "/api/v1/folders/"+legal.ID+"/permissions/bob", nil, &revoked))
	assert.False(t, revoked.Revoked)
}

func TestDocumentsAndQuery(t *testing.T) {
	api := newTestAPI(t, nil)

	var folder domain.Folder
	require.Equal(t, http.StatusCreated, api.do("alice", "POST", "/api/v1/folders", CreateFolderRequest{Name: "Legal"}, &folder))

	var doc domain.Document
	require.Equal(t, http.StatusCreated, api.do("alice", "POST", "/api/v1/folders/"+folder.ID+"/documents",
		domain.RegisterDocumentRequest{Filename: "nda.md", StorageLocator: "legal/nda.md"}, &doc))
	assert.Equal(t, "text/markdown", doc.ContentType)

	var stats domain.EmbeddingStats
	require.Equal(t, http.StatusOK, api.do("alice", "PUT", "/api/v1/documents/"+doc.ID+"/chunks",
		domain.IngestRequest{Text: "# NDA\n\nThe notice period is thirty days."}, &stats))
	assert.Positive(t, stats.TotalChunks)

	var chunks []*domain.EmbeddingChunk
	assert.Equal(t, http.StatusOK, api.do("alice", "GET", "/api/v1/documents/"+doc.ID+"/chunks", nil, &chunks))
	assert.Len(t, chunks, stats.TotalChunks)

	var docs []*domain.Document
	assert.Equal(t, http.StatusOK, api.do("alice", "GET", "/api/v1/folders/"+folder.ID+"/documents?limit=10", nil, &docs))
	assert.Len(t, docs, 1)

	var download DownloadResponse
	assert.Equal(t, http.StatusOK, api.do("alice", "GET", "/api/v1/documents/"+doc.ID+"/download", nil, &download))
	assert.Contains(t, download.URL, "legal/nda.md")

	var session domain.ChatSession
	require.Equal(t, http.StatusCreated, api.do("alice", "POST", "/api/v1/sessions", SessionRequest{}, &session))

	var resp domain.QueryResponse
	require.Equal(t, http.StatusOK, api.do("alice", "POST", "/api/v1/query", domain.QueryRequest{
		Query:     "What is the notice period?",
		FolderIDs: []string{folder.ID},
		SessionID: session.ID,
	}, &resp))
	assert.NotEmpty(t, resp.MessageID)
	require.NotEmpty(t, resp.Sources)
	assert.Equal(t, doc.ID, resp.Sources[0].DocumentID)

	// Bob sees nothing from Alice's folder
	var bobSession domain.ChatSession
	require.Equal(t, http.StatusCreated, api.do("bob", "POST", "/api/v1/sessions", nil, &bobSession))
	var bobResp domain.QueryResponse
	require.Equal(t, http.StatusOK, api.do("bob", "POST", "/api/v1/query", domain.QueryRequest{
		Query:     "What is the notice period?",
		FolderIDs: []string{folder.ID},
		SessionID: bobSession.ID,
	}, &bobResp))
	assert.Empty(t, bobResp.Sources)

	var suggestions SuggestionsResponse
	require.Equal(t, http.StatusOK, api.do("alice", "POST", "/api/v1/query/suggestions",
		domain.SuggestRequest{Query: "What is the notice period?"}, &suggestions))
	assert.Equal(t, []string{"What does nda.md say?"}, suggestions.Suggestions)
	require.Equal(t, http.StatusOK, api.do("bob", "POST", "/api/v1/query/suggestions",
		domain.SuggestRequest{Query: "What is the notice period?"}, &suggestions))
	assert.Equal(t, []string{}, suggestions.Suggestions)

	var errResp ErrorResponse
	assert.Equal(t, http.StatusBadRequest, api.do("alice", "POST", "/api/v1/query/suggestions",
		domain.SuggestRequest{}, &errResp))
	assert.Equal(t, http.StatusNotFound, api.do("alice", "GET", "/api/v1/documents/missing", nil, &errResp))
	assert.Equal(t, http.StatusNoContent, api.do("alice", "DELETE", "/api/v1/documents/"+doc.ID, nil, nil))
}

func TestSessions(t *testing.T) {
	api := newTestAPI(t, nil)

	var session domain.ChatSession
	require.Equal(t, http.StatusCreated, api.do("alice", "POST", "/api/v1/sessions", SessionRequest{Title: "Contracts"}, &session))

	var msg, replay domain.ChatMessage
	require.Equal(t, http.StatusCreated, api.do("alice", "POST", "/api/v1/sessions/"+session.ID+"/messages",
		AppendMessageRequest{Query: "q", Answer: "a", RequestID: "req-1"}, &msg))
	require.Equal(t, http.StatusCreated, api.do("alice", "POST", "/api/v1/sessions/"+session.ID+"/messages",
		AppendMessageRequest{Query: "q", Answer: "a", RequestID: "req-1"}, &replay))
	assert.Equal(t, msg.ID, replay.ID)

	var messages []*domain.ChatMessage
	assert.Equal(t, http.StatusOK, api.do("alice", "GET", "/api/v1/sessions/"+session.ID+"/messages", nil, &messages))
	assert.Len(t, messages, 1)

	var errResp ErrorResponse
	assert.Equal(t, http.StatusForbidden, api.do("bob", "GET", "/api/v1/sessions/"+session.ID+"/messages", nil, &errResp))

	var sessions []*domain.ChatSession
	assert.Equal(t, http.StatusOK, api.do("alice", "GET", "/api/v1/sessions?limit=5", nil, &sessions))
	assert.Len(t, sessions, 1)
	assert.Equal(t, http.StatusOK, api.do("alice", "GET", "/api/v1/sessions?limit=0", nil, &sessions))
	assert.Len(t, sessions, 1, "limit=0 falls back to the default page size")
	assert.Equal(t, http.StatusBadRequest, api.do("alice", "GET", "/api/v1/sessions?limit=x", nil, &errResp))

	var renamed domain.ChatSession
	assert.Equal(t, http.StatusOK, api.do("alice", "PATCH", "/api/v1/sessions/"+session.ID, SessionRequest{Title: "NDA"}, &renamed))
	assert.Equal(t, "NDA", renamed.Title)

	assert.Equal(t, http.StatusNoContent, api.do("alice", "DELETE", "/api/v1/sessions/"+session.ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, api.do("alice", "GET", "/api/v1/sessions/"+session.ID, nil, &errResp))
}

func TestWriteDomainError(t *testing.T) {
	s := NewServer(DefaultConfig(), Services{}, nil, nil)

	tests := []struct {
		err    error
		status int
	}{
		{domain.NewValidationError("name", "must not be empty"), http.StatusBadRequest},
		{domain.ErrNameConflict, http.StatusConflict},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrTokenExpired, http.StatusUnauthorized},
		{domain.ErrCycleDetected, http.StatusConflict},
		{domain.ErrEmbeddingDimensionMismatch, http.StatusUnprocessableEntity},
		{domain.ErrSessionNotFound, http.StatusNotFound},
		{domain.ErrBusy, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rr := httptest.NewRecorder()
			s.writeDomainError(rr, httptest.NewRequest("GET", "/", nil), tt.err)
			assert.Equal(t, tt.status, rr.Code)
		})
	}

	rr := httptest.NewRecorder()
	s.writeDomainError(rr, httptest.NewRequest("GET", "/", nil), domain.NewValidationError("name", "must not be empty"))
	assert.Contains(t, rr.Body.String(), "name: must not be empty")

	rr = httptest.NewRecorder()
	s.writeDomainError(rr, httptest.NewRequest("GET", "/", nil), domain.ErrServiceUnavailable)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
}
