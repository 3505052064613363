package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseCapability(t *testing.T) {
	for _, s := range []string{"read", "write", "delete", "admin"} {
		c, err := ParseCapability(s)
		if err != nil {
			t.Errorf("unexpected error for %s: %v", s, err)
		}
		if string(c) != s {
			t.Errorf("expected %s, got %s", s, c)
		}
	}

	if _, err := ParseCapability("owner"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestCapabilities_AdminImpliesAll(t *testing.T) {
	c := Capabilities{Admin: true}

	for _, capability := range []Capability{CapabilityRead, CapabilityWrite, CapabilityDelete, CapabilityAdmin} {
		if !c.Has(capability) {
			t.Errorf("admin should imply %s", capability)
		}
	}
	if c.Effective() != FullCapabilities() {
		t.Errorf("expected full capabilities, got %+v", c.Effective())
	}
}

func TestCapabilities_Independent(t *testing.T) {
	c := Capabilities{Write: true}

	if c.Has(CapabilityRead) {
		t.Error("write must not imply read")
	}
	if !c.Has(CapabilityWrite) {
		t.Error("expected write")
	}
	if c.Has(Capability("bogus")) {
		t.Error("unknown capability must be denied")
	}
	if !reflect.DeepEqual(c.List(), []Capability{CapabilityWrite}) {
		t.Errorf("unexpected list %v", c.List())
	}
	if c.IsZero() {
		t.Error("write-only set is not zero")
	}
	if !(Capabilities{}).IsZero() {
		t.Error("empty set should be zero")
	}
}

func TestResolveAccess(t *testing.T) {
	legal := &Folder{ID: "legal", OwnerID: "owner", Path: "/legal/"}
	contracts := &Folder{ID: "contracts", ParentID: ptr("legal"), OwnerID: "owner", Path: "/legal/contracts/"}
	drafts := &Folder{ID: "drafts", ParentID: ptr("contracts"), OwnerID: "carol", Path: "/legal/contracts/drafts/"}
	chain := []*Folder{legal, contracts, drafts}

	tests := []struct {
		name   string
		user   string
		chain  []*Folder
		grants map[string]*Permission
		want   Capabilities
		source AccessSource
	}{
		{
			name:   "owner of target",
			user:   "owner",
			chain:  []*Folder{legal},
			want:   FullCapabilities(),
			source: AccessOwner,
		},
		{
			name:   "owner of ancestor",
			user:   "owner",
			chain:  chain,
			want:   FullCapabilities(),
			source: AccessOwner,
		},
		{
			name:   "no grant",
			user:   "alice",
			chain:  chain,
			source: AccessNone,
		},
		{
			name:   "explicit on target",
			user:   "alice",
			chain:  []*Folder{legal, contracts},
			grants: map[string]*Permission{"contracts": {Capabilities: Capabilities{Read: true}}},
			want:   Capabilities{Read: true},
			source: AccessExplicit,
		},
		{
			name:   "inherited from ancestor",
			user:   "alice",
			chain:  chain,
			grants: map[string]*Permission{"legal": {Capabilities: Capabilities{Read: true}}},
			want:   Capabilities{Read: true},
			source: AccessInherited,
		},
		{
			name:  "nearest row overrides inherited admin",
			user:  "alice",
			chain: chain,
			grants: map[string]*Permission{
				"legal":     {Capabilities: Capabilities{Admin: true}},
				"contracts": {Capabilities: Capabilities{Read: true}},
			},
			want:   Capabilities{Read: true},
			source: AccessInherited,
		},
		{
			name:  "empty row blocks inheritance",
			user:  "alice",
			chain: []*Folder{legal, contracts},
			grants: map[string]*Permission{
				"legal":     {Capabilities: Capabilities{Read: true}},
				"contracts": {Capabilities: Capabilities{}},
			},
			want:   Capabilities{},
			source: AccessExplicit,
		},
		{
			name:   "admin grant expands",
			user:   "alice",
			chain:  []*Folder{legal},
			grants: map[string]*Permission{"legal": {Capabilities: Capabilities{Admin: true}}},
			want:   FullCapabilities(),
			source: AccessExplicit,
		},
		{
			name:   "empty chain",
			user:   "alice",
			source: AccessNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveAccess(tt.user, tt.chain, tt.grants)
			if got.Capabilities != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got.Capabilities)
			}
			if got.Source != tt.source {
				t.Errorf("expected source %s, got %s", tt.source, got.Source)
			}
		})
	}
}

func TestResolveAccess_RevokeFallsBackToInherited(t *testing.T) {
	legal := &Folder{ID: "legal", OwnerID: "owner", Path: "/legal/"}
	contracts := &Folder{ID: "contracts", OwnerID: "owner", Path: "/legal/contracts/"}
	chain := []*Folder{legal, contracts}

	grants := map[string]*Permission{
		"legal":     {Capabilities: Capabilities{Read: true}},
		"contracts": {Capabilities: Capabilities{Read: true, Write: true}},
	}
	if got := ResolveAccess("alice", chain, grants); !got.Capabilities.Write {
		t.Fatal("expected explicit write before revoke")
	}

	delete(grants, "contracts")
	got := ResolveAccess("alice", chain, grants)
	if got.Capabilities != (Capabilities{Read: true}) {
		t.Errorf("expected inherited read after revoke, got %+v", got.Capabilities)
	}
	if got.GrantFolderID != "legal" {
		t.Errorf("expected grant from legal, got %s", got.GrantFolderID)
	}

	delete(grants, "legal")
	if got := ResolveAccess("alice", chain, grants); !got.Capabilities.IsZero() {
		t.Errorf("expected no access after both revokes, got %+v", got.Capabilities)
	}
}
