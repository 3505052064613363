package domain

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func ptr(s string) *string { return &s }

func TestBuildPath(t *testing.T) {
	tests := []struct {
		name      string
		ancestors []string
		id        string
		expected  string
	}{
		{"root", nil, "a", "/a/"},
		{"child", []string{"a"}, "b", "/a/b/"},
		{"deep", []string{"a", "b", "c"}, "d", "/a/b/c/d/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildPath(tt.ancestors, tt.id); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestPathRoundTrip(t *testing.T) {
	paths := []string{"/a/", "/a/b/", "/root/x/y/z/"}

	for _, p := range paths {
		ids := PathIDs(p)
		f := &Folder{ID: ids[len(ids)-1], Path: p}
		if got := BuildPath(f.AncestorIDs(), f.ID); got != p {
			t.Errorf("round trip of %s produced %s", p, got)
		}
	}
}

func TestChildPath(t *testing.T) {
	if got := ChildPath("", "a"); got != "/a/" {
		t.Errorf("expected /a/, got %s", got)
	}
	if got := ChildPath("/a/", "b"); got != "/a/b/" {
		t.Errorf("expected /a/b/, got %s", got)
	}
}

func TestFolder_AncestorIDs(t *testing.T) {
	f := &Folder{ID: "c", Path: "/a/b/c/"}

	if !reflect.DeepEqual(f.AncestorIDs(), []string{"a", "b"}) {
		t.Errorf("unexpected ancestors %v", f.AncestorIDs())
	}
	if !reflect.DeepEqual(f.Chain(), []string{"a", "b", "c"}) {
		t.Errorf("unexpected chain %v", f.Chain())
	}
	if f.Depth() != 2 {
		t.Errorf("expected depth 2, got %d", f.Depth())
	}

	root := &Folder{ID: "a", Path: "/a/"}
	if len(root.AncestorIDs()) != 0 {
		t.Errorf("root should have no ancestors, got %v", root.AncestorIDs())
	}
	if !root.IsRoot() {
		t.Error("folder without parent should be root")
	}
}

func TestFolder_Contains(t *testing.T) {
	a := &Folder{ID: "a", Path: "/a/"}
	b := &Folder{ID: "b", ParentID: ptr("a"), Path: "/a/b/"}
	ab := &Folder{ID: "ab", Path: "/ab/"}

	if !a.Contains(b) {
		t.Error("a should contain b")
	}
	if !a.Contains(a) {
		t.Error("a should contain itself")
	}
	if b.Contains(a) {
		t.Error("b should not contain a")
	}
	if a.Contains(ab) {
		t.Error("prefix match must respect separators")
	}
}

func TestRebasePath(t *testing.T) {
	got := RebasePath("/a/b/c/", "/a/b/", "/x/b/")
	if got != "/x/b/c/" {
		t.Errorf("expected /x/b/c/, got %s", got)
	}
	if RebasePath("/z/", "/a/", "/x/") != "/z/" {
		t.Error("paths outside the subtree must not change")
	}
}

func TestCheckMove(t *testing.T) {
	a := &Folder{ID: "a", Path: "/a/"}
	b := &Folder{ID: "b", Path: "/a/b/"}
	c := &Folder{ID: "c", Path: "/a/b/c/"}
	other := &Folder{ID: "o", Path: "/o/"}

	tests := []struct {
		name      string
		folder    *Folder
		newParent *Folder
		wantErr   error
	}{
		{"to root", b, nil, nil},
		{"under self", a, a, ErrCycleDetected},
		{"under child", a, b, ErrCycleDetected},
		{"under grandchild", a, c, ErrCycleDetected},
		{"under sibling tree", b, other, nil},
		{"up to ancestor", c, a, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckMove(tt.folder, tt.newParent)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNormalizeFolderName(t *testing.T) {
	name, err := NormalizeFolderName("  Legal  ")
	if err != nil || name != "Legal" {
		t.Errorf("expected trimmed name, got %q (%v)", name, err)
	}

	invalid := []string{"", "   ", "a/b", strings.Repeat("x", MaxFolderNameLength+1)}
	for _, n := range invalid {
		if _, err := NormalizeFolderName(n); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected invalid input for %q, got %v", n, err)
		}
	}
}

func TestQueryableFolder_CanQuery(t *testing.T) {
	q := &QueryableFolder{Access: Capabilities{Read: true}, ChunkCount: 3}
	if !q.CanQuery() {
		t.Error("readable folder with chunks should be queryable")
	}
	q.ChunkCount = 0
	if q.CanQuery() {
		t.Error("empty folder should not be queryable")
	}
}
