package mocks

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure the in-memory stores implement their ports
var (
	_ driven.FolderStore     = (*MockFolderStore)(nil)
	_ driven.PermissionStore = (*MockPermissionStore)(nil)
	_ driven.DocumentStore   = (*MockDocumentStore)(nil)
	_ driven.ChunkStore      = (*MockChunkStore)(nil)
	_ driven.ChatStore       = (*MockChatStore)(nil)
)

// MockStores bundles in-memory stores that share one dataset, so folder
// deletion cascades and chunk scans join documents the way SQL stores do.
type MockStores struct {
	Folders     *MockFolderStore
	Permissions *MockPermissionStore
	Documents   *MockDocumentStore
	Chunks      *MockChunkStore
	Chats       *MockChatStore

	db *memoryDB
}

type memoryDB struct {
	mu         sync.RWMutex
	folders    map[string]*domain.Folder
	perms      map[string]*domain.Permission // key: userID|folderID
	docs       map[string]*domain.Document
	chunks     map[string][]*domain.EmbeddingChunk
	sessions   map[string]*domain.ChatSession
	messages   map[string][]*domain.ChatMessage
	dimensions int
}

// NewMockStores creates an empty in-memory dataset
func NewMockStores() *MockStores {
	db := &memoryDB{
		folders:  make(map[string]*domain.Folder),
		perms:    make(map[string]*domain.Permission),
		docs:     make(map[string]*domain.Document),
		chunks:   make(map[string][]*domain.EmbeddingChunk),
		sessions: make(map[string]*domain.ChatSession),
		messages: make(map[string][]*domain.ChatMessage),
	}
	return &MockStores{
		Folders:     &MockFolderStore{db: db},
		Permissions: &MockPermissionStore{db: db},
		Documents:   &MockDocumentStore{db: db},
		Chunks:      &MockChunkStore{db: db},
		Chats:       &MockChatStore{db: db},
		db:          db,
	}
}

// SetDimensions fixes the vector length accepted by the chunk store
func (s *MockStores) SetDimensions(dims int) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.dimensions = dims
}

func copyFolder(f *domain.Folder) *domain.Folder {
	c := *f
	if f.ParentID != nil {
		p := *f.ParentID
		c.ParentID = &p
	}
	return &c
}

func permKey(userID, folderID string) string {
	return userID + "|" + folderID
}

// ===== Folders =====

// MockFolderStore is an in-memory FolderStore
type MockFolderStore struct {
	db *memoryDB
}

// siblingConflict reports whether a sibling of parentID already uses name.
// Root folders are siblings only within one owner's tree.
func (db *memoryDB) siblingConflict(parentID *string, ownerID, name, exceptID string) bool {
	for _, f := range db.folders {
		if f.ID == exceptID || f.Name != name {
			continue
		}
		switch {
		case parentID == nil && f.ParentID == nil && f.OwnerID == ownerID:
			return true
		case parentID != nil && f.ParentID != nil && *f.ParentID == *parentID:
			return true
		}
	}
	return false
}

func (m *MockFolderStore) Create(ctx context.Context, folder *domain.Folder) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	if _, exists := m.db.folders[folder.ID]; exists {
		return domain.ErrNameConflict
	}
	parentPath := ""
	if folder.ParentID != nil {
		parent, ok := m.db.folders[*folder.ParentID]
		if !ok {
			return domain.ErrNotFound
		}
		parentPath = parent.Path
	}
	if m.db.siblingConflict(folder.ParentID, folder.OwnerID, folder.Name, "") {
		return domain.ErrNameConflict
	}

	now := time.Now()
	if folder.CreatedAt.IsZero() {
		folder.CreatedAt = now
	}
	folder.UpdatedAt = folder.CreatedAt
	folder.Path = domain.ChildPath(parentPath, folder.ID)
	m.db.folders[folder.ID] = copyFolder(folder)
	return nil
}

func (m *MockFolderStore) Get(ctx context.Context, id string) (*domain.Folder, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	f, ok := m.db.folders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyFolder(f), nil
}

func (m *MockFolderStore) GetMany(ctx context.Context, ids []string) ([]*domain.Folder, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	var out []*domain.Folder
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if f, ok := m.db.folders[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, copyFolder(f))
		}
	}
	return out, nil
}

func (m *MockFolderStore) ListChildren(ctx context.Context, parentID *string, ownerID string) ([]*domain.Folder, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	var out []*domain.Folder
	for _, f := range m.db.folders {
		if parentID == nil {
			if f.ParentID == nil && f.OwnerID == ownerID {
				out = append(out, copyFolder(f))
			}
			continue
		}
		if f.ParentID != nil && *f.ParentID == *parentID {
			out = append(out, copyFolder(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MockFolderStore) Ancestors(ctx context.Context, id string) ([]*domain.Folder, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	f, ok := m.db.folders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	var out []*domain.Folder
	for _, aid := range f.AncestorIDs() {
		if a, ok := m.db.folders[aid]; ok {
			out = append(out, copyFolder(a))
		}
	}
	return out, nil
}

func (m *MockFolderStore) Descendants(ctx context.Context, id string) ([]*domain.Folder, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	root, ok := m.db.folders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	var out []*domain.Folder
	for _, f := range m.db.folders {
		if f.ID != root.ID && root.Contains(f) {
			out = append(out, copyFolder(f))
		}
	}
	sortByPath(out)
	return out, nil
}

func (m *MockFolderStore) Rename(ctx context.Context, id, name string) (*domain.Folder, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	f, ok := m.db.folders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if m.db.siblingConflict(f.ParentID, f.OwnerID, name, f.ID) {
		return nil, domain.ErrNameConflict
	}
	f.Name = name
	f.UpdatedAt = time.Now()
	return copyFolder(f), nil
}

func (m *MockFolderStore) Move(ctx context.Context, id string, newParentID *string) (*domain.Folder, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	f, ok := m.db.folders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	var parent *domain.Folder
	newParentPath := ""
	if newParentID != nil {
		parent, ok = m.db.folders[*newParentID]
		if !ok {
			return nil, domain.ErrNotFound
		}
		newParentPath = parent.Path
	}
	if err := domain.CheckMove(f, parent); err != nil {
		return nil, err
	}
	if m.db.siblingConflict(newParentID, f.OwnerID, f.Name, f.ID) {
		return nil, domain.ErrNameConflict
	}

	oldPath := f.Path
	newPath := domain.ChildPath(newParentPath, f.ID)
	for _, d := range m.db.folders {
		if strings.HasPrefix(d.Path, oldPath) {
			d.Path = domain.RebasePath(d.Path, oldPath, newPath)
		}
	}
	if newParentID != nil {
		p := *newParentID
		f.ParentID = &p
	} else {
		f.ParentID = nil
	}
	f.UpdatedAt = time.Now()
	return copyFolder(f), nil
}

func (m *MockFolderStore) Delete(ctx context.Context, id string) ([]string, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	root, ok := m.db.folders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	var removed []string
	for fid, f := range m.db.folders {
		if root.Contains(f) {
			removed = append(removed, fid)
		}
	}
	gone := make(map[string]bool, len(removed))
	for _, fid := range removed {
		gone[fid] = true
		delete(m.db.folders, fid)
	}
	for key, p := range m.db.perms {
		if gone[p.FolderID] {
			delete(m.db.perms, key)
		}
	}
	for docID, d := range m.db.docs {
		if gone[d.FolderID] {
			delete(m.db.docs, docID)
			delete(m.db.chunks, docID)
		}
	}
	sort.Strings(removed)
	return removed, nil
}

func sortByPath(folders []*domain.Folder) {
	sort.Slice(folders, func(i, j int) bool { return folders[i].Path < folders[j].Path })
}

// ===== Permissions =====

// MockPermissionStore is an in-memory PermissionStore
type MockPermissionStore struct {
	db *memoryDB
}

func (m *MockPermissionStore) Upsert(ctx context.Context, perm *domain.Permission) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.folders[perm.FolderID]; !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	key := permKey(perm.UserID, perm.FolderID)
	if existing, ok := m.db.perms[key]; ok {
		perm.CreatedAt = existing.CreatedAt
	} else if perm.CreatedAt.IsZero() {
		perm.CreatedAt = now
	}
	perm.UpdatedAt = now
	c := *perm
	m.db.perms[key] = &c
	return nil
}

func (m *MockPermissionStore) Get(ctx context.Context, userID, folderID string) (*domain.Permission, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	p, ok := m.db.perms[permKey(userID, folderID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (m *MockPermissionStore) Delete(ctx context.Context, userID, folderID string) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	key := permKey(userID, folderID)
	if _, ok := m.db.perms[key]; !ok {
		return false, nil
	}
	delete(m.db.perms, key)
	return true, nil
}

func (m *MockPermissionStore) ListForUserInFolders(ctx context.Context, userID string, folderIDs []string) ([]*domain.Permission, error) {
	in := make(map[string]bool, len(folderIDs))
	for _, id := range folderIDs {
		in[id] = true
	}
	return m.list(func(p *domain.Permission) bool { return p.UserID == userID && in[p.FolderID] }), nil
}

func (m *MockPermissionStore) ListForFolder(ctx context.Context, folderID string) ([]*domain.Permission, error) {
	return m.list(func(p *domain.Permission) bool { return p.FolderID == folderID }), nil
}

// AccessSnapshot reads under one lock hold, so no write lands between parts
func (m *MockPermissionStore) AccessSnapshot(ctx context.Context, userID string) (*domain.AccessSnapshot, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()

	snap := &domain.AccessSnapshot{
		Grants: m.listLocked(func(p *domain.Permission) bool { return p.UserID == userID }),
	}
	var roots []*domain.Folder
	for _, f := range m.db.folders {
		if f.OwnerID == userID {
			roots = append(roots, f)
		}
	}
	for _, p := range snap.Grants {
		if f, ok := m.db.folders[p.FolderID]; ok {
			roots = append(roots, f)
		}
	}
	for _, f := range m.db.folders {
		for _, r := range roots {
			if r.Contains(f) {
				snap.Candidates = append(snap.Candidates, copyFolder(f))
				break
			}
		}
	}
	sortByPath(snap.Candidates)
	for _, id := range domain.MissingAncestors(snap.Candidates) {
		if f, ok := m.db.folders[id]; ok {
			snap.Ancestors = append(snap.Ancestors, copyFolder(f))
		}
	}
	return snap, nil
}

func (m *MockPermissionStore) list(match func(*domain.Permission) bool) []*domain.Permission {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	return m.listLocked(match)
}

func (m *MockPermissionStore) listLocked(match func(*domain.Permission) bool) []*domain.Permission {
	var out []*domain.Permission
	for _, p := range m.db.perms {
		if match(p) {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FolderID != out[j].FolderID {
			return out[i].FolderID < out[j].FolderID
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// ===== Documents =====

// MockDocumentStore is an in-memory DocumentStore
type MockDocumentStore struct {
	db *memoryDB
}

func (m *MockDocumentStore) Save(ctx context.Context, doc *domain.Document) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.folders[doc.FolderID]; !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	c := *doc
	m.db.docs[doc.ID] = &c
	return nil
}

func (m *MockDocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	d, ok := m.db.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *d
	return &c, nil
}

func (m *MockDocumentStore) ListByFolder(ctx context.Context, folderID string, limit, offset int) ([]*domain.Document, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	var out []*domain.Document
	for _, d := range m.db.docs {
		if d.FolderID == folderID {
			c := *d
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, limit, offset), nil
}

func (m *MockDocumentStore) Delete(ctx context.Context, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.docs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.db.docs, id)
	delete(m.db.chunks, id)
	return nil
}

func (m *MockDocumentStore) CountByFolders(ctx context.Context, folderIDs []string) (map[string]int, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	in := make(map[string]bool, len(folderIDs))
	for _, id := range folderIDs {
		in[id] = true
	}
	counts := make(map[string]int)
	for _, d := range m.db.docs {
		if in[d.FolderID] {
			counts[d.FolderID]++
		}
	}
	return counts, nil
}

func (m *MockDocumentStore) RecentFilenames(ctx context.Context, folderIDs []string, limit int) ([]string, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	in := make(map[string]bool, len(folderIDs))
	for _, id := range folderIDs {
		in[id] = true
	}
	var docs []*domain.Document
	for _, d := range m.db.docs {
		if in[d.FolderID] {
			docs = append(docs, d)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].UpdatedAt.Equal(docs[j].UpdatedAt) {
			return docs[i].UpdatedAt.After(docs[j].UpdatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	names := []string{}
	for _, d := range paginate(docs, limit, 0) {
		names = append(names, d.Filename)
	}
	return names, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// ===== Chunks =====

// MockChunkStore is an in-memory ChunkStore
type MockChunkStore struct {
	db *memoryDB

	// ReplaceFn, when set, runs before any write; a non-nil error aborts it
	ReplaceFn func(documentID string, chunks []*domain.EmbeddingChunk) error
}

// storeDimensions returns the configured dimensionality or the vector
// length of any stored chunk, including the document being replaced
func (db *memoryDB) storeDimensions() int {
	if db.dimensions > 0 {
		return db.dimensions
	}
	for _, chunks := range db.chunks {
		if len(chunks) > 0 {
			return len(chunks[0].Embedding)
		}
	}
	return 0
}

func (m *MockChunkStore) ReplaceChunks(ctx context.Context, documentID string, chunks []*domain.EmbeddingChunk) error {
	if m.ReplaceFn != nil {
		if err := m.ReplaceFn(documentID, chunks); err != nil {
			return err
		}
	}

	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	doc, ok := m.db.docs[documentID]
	if !ok {
		return domain.ErrNotFound
	}
	if _, err := domain.ValidateChunks(documentID, chunks, m.db.storeDimensions()); err != nil {
		return err
	}

	now := time.Now()
	stored := make([]*domain.EmbeddingChunk, len(chunks))
	for i, c := range chunks {
		cc := *c
		cc.Embedding = append([]float32(nil), c.Embedding...)
		if cc.CreatedAt.IsZero() {
			cc.CreatedAt = now
		}
		stored[i] = &cc
	}
	m.db.chunks[documentID] = stored
	doc.ChunkCount = len(stored)
	doc.IngestedAt = &now
	doc.UpdatedAt = now
	return nil
}

func (m *MockChunkStore) GetByDocument(ctx context.Context, documentID string) ([]*domain.EmbeddingChunk, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	if _, ok := m.db.docs[documentID]; !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]*domain.EmbeddingChunk, len(m.db.chunks[documentID]))
	for i, c := range m.db.chunks[documentID] {
		cc := *c
		out[i] = &cc
	}
	return out, nil
}

func (m *MockChunkStore) ChunksInFolders(ctx context.Context, folderIDs []string) iter.Seq2[*domain.ChunkRecord, error] {
	return func(yield func(*domain.ChunkRecord, error) bool) {
		records := m.snapshot(folderIDs)
		for _, r := range records {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

func (m *MockChunkStore) snapshot(folderIDs []string) []*domain.ChunkRecord {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	in := make(map[string]bool, len(folderIDs))
	for _, id := range folderIDs {
		in[id] = true
	}
	var docIDs []string
	for id, d := range m.db.docs {
		if in[d.FolderID] {
			docIDs = append(docIDs, id)
		}
	}
	sort.Strings(docIDs)

	var out []*domain.ChunkRecord
	for _, id := range docIDs {
		d := m.db.docs[id]
		for _, c := range m.db.chunks[id] {
			cc := *c
			out = append(out, &domain.ChunkRecord{Chunk: &cc, FolderID: d.FolderID, DocumentName: d.Filename})
		}
	}
	return out
}

func (m *MockChunkStore) CountInFolders(ctx context.Context, folderIDs []string) (map[string]int, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	in := make(map[string]bool, len(folderIDs))
	for _, id := range folderIDs {
		in[id] = true
	}
	counts := make(map[string]int)
	for id, d := range m.db.docs {
		if in[d.FolderID] {
			counts[d.FolderID] += len(m.db.chunks[id])
		}
	}
	return counts, nil
}

func (m *MockChunkStore) Dimensions(ctx context.Context) (int, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	return m.db.storeDimensions(), nil
}

// ===== Chat =====

// MockChatStore is an in-memory ChatStore
type MockChatStore struct {
	db *memoryDB

	// AppendFn, when set, runs before the write; a non-nil error aborts it
	AppendFn func(msg *domain.ChatMessage) error
}

func (m *MockChatStore) CreateSession(ctx context.Context, session *domain.ChatSession) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, exists := m.db.sessions[session.ID]; exists {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = session.CreatedAt
	c := *session
	m.db.sessions[session.ID] = &c
	return nil
}

func (m *MockChatStore) GetSession(ctx context.Context, id string) (*domain.ChatSession, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	s, ok := m.db.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	c := *s
	c.MessageCount = len(m.db.messages[id])
	return &c, nil
}

func (m *MockChatStore) ListSessions(ctx context.Context, userID string, limit, offset int) ([]*domain.ChatSession, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	var out []*domain.ChatSession
	for _, s := range m.db.sessions {
		if s.UserID == userID {
			c := *s
			c.MessageCount = len(m.db.messages[s.ID])
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, limit, offset), nil
}

func (m *MockChatStore) RenameSession(ctx context.Context, id, title string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	s, ok := m.db.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.Title = title
	s.UpdatedAt = time.Now()
	return nil
}

func (m *MockChatStore) DeleteSession(ctx context.Context, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(m.db.sessions, id)
	delete(m.db.messages, id)
	return nil
}

func (m *MockChatStore) AppendMessage(ctx context.Context, userID string, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	s, ok := m.db.sessions[msg.SessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if s.UserID != userID {
		return nil, domain.ErrForbidden
	}

	history := m.db.messages[msg.SessionID]
	if msg.RequestID != "" {
		for _, existing := range history {
			if existing.RequestID == msg.RequestID {
				c := *existing
				return &c, nil
			}
		}
	}

	if m.AppendFn != nil {
		if err := m.AppendFn(msg); err != nil {
			return nil, err
		}
	}

	stored := *msg
	var last time.Time
	stored.Seq = 1
	if n := len(history); n > 0 {
		last = history[n-1].CreatedAt
		stored.Seq = history[n-1].Seq + 1
	}
	stored.CreatedAt = domain.MonotonicTimestamp(time.Now(), last)
	if stored.ID == "" {
		stored.ID = fmt.Sprintf("%s-%d", msg.SessionID, stored.Seq)
	}

	if domain.ShouldAutoTitle(s, len(history)) {
		s.Title = domain.TitleFromQuery(stored.Query)
	}
	s.UpdatedAt = stored.CreatedAt
	m.db.messages[msg.SessionID] = append(history, &stored)

	c := stored
	return &c, nil
}

func (m *MockChatStore) ListMessages(ctx context.Context, sessionID string) ([]*domain.ChatMessage, error) {
	m.db.mu.RLock()
	defer m.db.mu.RUnlock()
	if _, ok := m.db.sessions[sessionID]; !ok {
		return nil, domain.ErrSessionNotFound
	}
	out := make([]*domain.ChatMessage, len(m.db.messages[sessionID]))
	for i, msg := range m.db.messages[sessionID] {
		c := *msg
		out[i] = &c
	}
	return out, nil
}
