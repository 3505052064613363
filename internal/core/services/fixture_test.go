package services

import (
	"context"
	"testing"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/ingest"
	"github.com/custodia-labs/sercha-rag/internal/runtime"
)

// testEnv wires every service over one in-memory dataset
type testEnv struct {
	stores    *mocks.MockStores
	embedder  *mocks.MockEmbeddingService
	llm       *mocks.MockLLMService
	lock      *mocks.MockDistributedLock
	cache     *mocks.MockEmbeddingCache
	publisher *mocks.MockEventPublisher
	runtime   *runtime.Services

	permissions driving.PermissionService
	folders     driving.FolderService
	documents   driving.DocumentService
	retrieval   driving.RetrievalService
	chat        driving.ChatService
	query       driving.QueryService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		stores:    mocks.NewMockStores(),
		embedder:  mocks.NewMockEmbeddingService(),
		llm:       mocks.NewMockLLMService(),
		lock:      mocks.NewMockDistributedLock(),
		cache:     mocks.NewMockEmbeddingCache(),
		publisher: mocks.NewMockEventPublisher(),
		runtime:   runtime.NewServices(domain.NewRuntimeConfig("memory")),
	}
	env.runtime.SetEmbeddingService(env.embedder)
	env.runtime.SetLLMService(env.llm)

	env.permissions = NewPermissionService(env.stores.Folders, env.stores.Permissions, env.publisher, nil)
	env.folders = NewFolderService(env.stores.Folders, env.permissions, env.publisher, nil)
	env.documents = NewDocumentService(DocumentServiceConfig{
		Documents:   env.stores.Documents,
		Chunks:      env.stores.Chunks,
		Permissions: env.permissions,
		Services:    env.runtime,
		Normalisers: ingest.DefaultRegistry(),
		Pipeline:    ingest.DefaultPipeline(),
		Lock:        env.lock,
		Locator:     &mocks.MockObjectLocator{},
		Publisher:   env.publisher,
	})
	env.retrieval = NewRetrievalService(RetrievalConfig{
		Permissions: env.permissions,
		Folders:     env.stores.Folders,
		Chunks:      env.stores.Chunks,
	})
	env.chat = NewChatService(env.stores.Chats)
	env.query = NewQueryService(QueryServiceConfig{
		Retrieval:   env.retrieval,
		Chat:        env.chat,
		Permissions: env.permissions,
		Folders:     env.stores.Folders,
		Documents:   env.stores.Documents,
		Chunks:      env.stores.Chunks,
		Services:    env.runtime,
		Cache:       env.cache,
	})
	return env
}

func (e *testEnv) mkdir(t *testing.T, owner, name string, parent *domain.Folder) *domain.Folder {
	t.Helper()
	var parentID *string
	if parent != nil {
		parentID = &parent.ID
	}
	f, err := e.folders.Create(context.Background(), owner, name, parentID)
	if err != nil {
		t.Fatalf("create folder %s: %v", name, err)
	}
	return f
}

func (e *testEnv) grant(t *testing.T, granter, user string, folder *domain.Folder, caps domain.Capabilities) {
	t.Helper()
	if _, err := e.permissions.Grant(context.Background(), granter, user, folder.ID, caps); err != nil {
		t.Fatalf("grant %s on %s: %v", user, folder.Name, err)
	}
}

// addDocument registers a document and stores one chunk per vector
func (e *testEnv) addDocument(t *testing.T, owner string, folder *domain.Folder, name string, vectors ...[]float32) *domain.Document {
	t.Helper()
	ctx := context.Background()
	doc, err := e.documents.Register(ctx, owner, folder.ID, &domain.RegisterDocumentRequest{Filename: name})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	if len(vectors) == 0 {
		return doc
	}
	inputs := make([]*domain.ChunkInput, len(vectors))
	for i, v := range vectors {
		inputs[i] = &domain.ChunkInput{Text: name + " chunk", Embedding: v}
	}
	if _, err := e.documents.Ingest(ctx, owner, doc.ID, &domain.IngestRequest{Chunks: inputs}); err != nil {
		t.Fatalf("ingest %s: %v", name, err)
	}
	return doc
}

var (
	readOnly  = domain.Capabilities{Read: true}
	readWrite = domain.Capabilities{Read: true, Write: true}
	adminOnly = domain.Capabilities{Admin: true}
	blocked   = domain.Capabilities{}
)
