package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestFolderService_Create(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	root := env.mkdir(t, "alice", "Legal", nil)
	child := env.mkdir(t, "alice", "Contracts", root)

	if child.Path != root.Path+child.ID+"/" {
		t.Errorf("unexpected child path %s", child.Path)
	}
	if child.Depth() != 1 {
		t.Errorf("expected depth 1, got %d", child.Depth())
	}

	tests := []struct {
		name    string
		user    string
		folder  string
		parent  *string
		wantErr error
	}{
		{"sibling name conflict", "alice", "Contracts", &root.ID, domain.ErrNameConflict},
		{"empty name", "alice", "  ", nil, domain.ErrInvalidInput},
		{"no write on parent", "bob", "Sneaky", &root.ID, domain.ErrForbidden},
		{"missing parent", "alice", "Orphan", strPtr("missing"), domain.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.folders.Create(ctx, tt.user, tt.folder, tt.parent)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	// Root names are scoped per owner
	if _, err := env.folders.Create(ctx, "bob", "Legal", nil); err != nil {
		t.Errorf("another user's root may reuse the name, got %v", err)
	}
}

func TestFolderService_CreateUnderSharedFolder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	shared := env.mkdir(t, "alice", "Shared", nil)
	env.grant(t, "alice", "bob", shared, readWrite)

	f, err := env.folders.Create(ctx, "bob", "Notes", &shared.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.OwnerID != "bob" {
		t.Errorf("expected creator to own the folder, got %s", f.OwnerID)
	}
}

func TestFolderService_GetHidesExistence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	secret := env.mkdir(t, "alice", "Secret", nil)

	_, errExisting := env.folders.Get(ctx, "bob", secret.ID)
	_, errMissing := env.folders.Get(ctx, "bob", "does-not-exist")

	if !errors.Is(errExisting, domain.ErrForbidden) || !errors.Is(errMissing, domain.ErrForbidden) {
		t.Errorf("expected forbidden for both, got %v and %v", errExisting, errMissing)
	}
}

func TestFolderService_List(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	root := env.mkdir(t, "alice", "Root", nil)
	public := env.mkdir(t, "alice", "Public", root)
	private := env.mkdir(t, "alice", "Private", root)
	env.grant(t, "alice", "bob", root, readOnly)
	env.grant(t, "alice", "bob", private, blocked)

	children, err := env.folders.List(ctx, "bob", &root.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(children) != 1 || children[0].ID != public.ID {
		t.Errorf("expected only the readable child, got %v", names(children))
	}

	roots, err := env.folders.List(ctx, "alice", nil)
	if err != nil || len(roots) != 1 {
		t.Errorf("expected alice's one root, got (%v, %v)", names(roots), err)
	}
	roots, err = env.folders.List(ctx, "bob", nil)
	if err != nil || len(roots) != 0 {
		t.Errorf("bob owns no roots, got (%v, %v)", names(roots), err)
	}
}

func TestFolderService_Rename(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	root := env.mkdir(t, "alice", "Root", nil)
	env.mkdir(t, "alice", "Taken", root)
	child := env.mkdir(t, "alice", "Child", root)
	env.grant(t, "alice", "bob", root, readOnly)

	renamed, err := env.folders.Rename(ctx, "alice", child.ID, "Renamed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if renamed.Name != "Renamed" || renamed.Path != child.Path {
		t.Errorf("rename must keep the path, got %+v", renamed)
	}

	if _, err := env.folders.Rename(ctx, "alice", child.ID, "Taken"); !errors.Is(err, domain.ErrNameConflict) {
		t.Errorf("expected name conflict, got %v", err)
	}
	if _, err := env.folders.Rename(ctx, "bob", child.ID, "Mine"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected forbidden for reader, got %v", err)
	}
}

func TestFolderService_Move(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.mkdir(t, "alice", "A", nil)
	b := env.mkdir(t, "alice", "B", a)
	c := env.mkdir(t, "alice", "C", b)
	e := env.mkdir(t, "alice", "E", c)
	f := env.mkdir(t, "alice", "F", e)
	g := env.mkdir(t, "alice", "G", b)
	h := env.mkdir(t, "alice", "H", a)
	d := env.mkdir(t, "alice", "D", nil)

	// wantPaths checks every folder under b against the path built from base
	wantPaths := func(t *testing.T, base string) {
		t.Helper()
		want := map[string]string{
			b.ID: base + b.ID + "/",
			c.ID: base + b.ID + "/" + c.ID + "/",
			e.ID: base + b.ID + "/" + c.ID + "/" + e.ID + "/",
			f.ID: base + b.ID + "/" + c.ID + "/" + e.ID + "/" + f.ID + "/",
			g.ID: base + b.ID + "/" + g.ID + "/",
			h.ID: a.Path + h.ID + "/",
		}
		for id, path := range want {
			got, err := env.folders.Get(ctx, "alice", id)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Path != path {
				t.Errorf("folder %s: expected path %s, got %s", got.Name, path, got.Path)
			}
		}
	}

	moved, err := env.folders.Move(ctx, "alice", b.ID, &d.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if moved.ParentID == nil || *moved.ParentID != d.ID {
		t.Errorf("expected parent %s, got %v", d.ID, moved.ParentID)
	}
	wantPaths(t, d.Path)

	grandchild, _ := env.folders.Get(ctx, "alice", e.ID)
	if grandchild.ParentID == nil || *grandchild.ParentID != c.ID {
		t.Errorf("descendant parent must not change, got %v", grandchild.ParentID)
	}
	desc, err := env.folders.Descendants(ctx, "alice", d.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(desc) != 5 {
		t.Errorf("expected the whole subtree under D, got %d folders", len(desc))
	}

	if _, err := env.folders.Move(ctx, "alice", d.ID, &f.ID); !errors.Is(err, domain.ErrCycleDetected) {
		t.Errorf("expected cycle detection, got %v", err)
	}
	if _, err := env.folders.Move(ctx, "alice", d.ID, &d.ID); !errors.Is(err, domain.ErrCycleDetected) {
		t.Errorf("expected cycle detection moving under itself, got %v", err)
	}

	root, err := env.folders.Move(ctx, "alice", b.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !root.IsRoot() {
		t.Errorf("expected b to become a root, got %+v", root)
	}
	wantPaths(t, "/")
}

func TestFolderService_MoveRequiresAdminAndWrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	src := env.mkdir(t, "alice", "Src", nil)
	dst := env.mkdir(t, "alice", "Dst", nil)
	env.grant(t, "alice", "bob", src, readWrite)
	env.grant(t, "alice", "bob", dst, readWrite)

	if _, err := env.folders.Move(ctx, "bob", src.ID, &dst.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("write alone should not allow a move, got %v", err)
	}

	env.grant(t, "alice", "bob", src, adminOnly)
	env.grant(t, "alice", "bob", dst, readOnly)
	if _, err := env.folders.Move(ctx, "bob", src.ID, &dst.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("move needs write on the destination, got %v", err)
	}

	env.grant(t, "alice", "bob", dst, readWrite)
	if _, err := env.folders.Move(ctx, "bob", src.ID, &dst.ID); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFolderService_DeleteCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	root := env.mkdir(t, "alice", "Root", nil)
	child := env.mkdir(t, "alice", "Child", root)
	doc := env.addDocument(t, "alice", child, "a.txt", []float32{1, 0})
	env.grant(t, "alice", "bob", child, readOnly)

	if err := env.folders.Delete(ctx, "bob", child.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected forbidden for reader, got %v", err)
	}
	if err := env.folders.Delete(ctx, "alice", root.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := env.stores.Folders.Get(ctx, child.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("child should be gone, got %v", err)
	}
	if _, err := env.stores.Documents.Get(ctx, doc.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("documents should be gone, got %v", err)
	}
	if grants, _ := env.stores.Permissions.ListForFolder(ctx, child.ID); len(grants) != 0 {
		t.Errorf("permission rows should be gone, got %d", len(grants))
	}
	if dims, _ := env.stores.Chunks.Dimensions(ctx); dims != 0 {
		t.Errorf("chunk store should be empty, got %d dimensions", dims)
	}
}

func TestFolderService_AncestorsAndDescendants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.mkdir(t, "alice", "A", nil)
	b := env.mkdir(t, "alice", "B", a)
	c := env.mkdir(t, "alice", "C", b)
	hidden := env.mkdir(t, "alice", "Hidden", c)
	env.grant(t, "alice", "bob", b, readOnly)
	env.grant(t, "alice", "bob", hidden, blocked)

	ancestors, err := env.folders.Ancestors(ctx, "alice", c.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := names(ancestors); got != "A,B" {
		t.Errorf("expected A,B got %s", got)
	}

	// bob cannot read A so it is left out
	ancestors, err = env.folders.Ancestors(ctx, "bob", c.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := names(ancestors); got != "B" {
		t.Errorf("expected B got %s", got)
	}

	descendants, err := env.folders.Descendants(ctx, "bob", b.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := names(descendants); got != "C" {
		t.Errorf("expected C got %s", got)
	}

	if _, err := env.folders.Descendants(ctx, "bob", a.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func names(folders []*domain.Folder) string {
	out := make([]string, len(folders))
	for i, f := range folders {
		out[i] = f.Name
	}
	return strings.Join(out, ",")
}

func strPtr(s string) *string {
	return &s
}
