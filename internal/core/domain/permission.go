package domain

import (
	"fmt"
	"time"
)

// Capability names one folder permission bit
type Capability string

const (
	CapabilityRead   Capability = "read"
	CapabilityWrite  Capability = "write"
	CapabilityDelete Capability = "delete"
	CapabilityAdmin  Capability = "admin"
)

// ParseCapability converts a string into a Capability
func ParseCapability(s string) (Capability, error) {
	switch c := Capability(s); c {
	case CapabilityRead, CapabilityWrite, CapabilityDelete, CapabilityAdmin:
		return c, nil
	default:
		return "", NewValidationError("capability", fmt.Sprintf("unknown capability %q", s))
	}
}

// Capabilities is a set of independent permission bits
type Capabilities struct {
	Read   bool `json:"read"`
	Write  bool `json:"write"`
	Delete bool `json:"delete"`
	Admin  bool `json:"admin"`
}

// FullCapabilities returns every bit set
func FullCapabilities() Capabilities {
	return Capabilities{Read: true, Write: true, Delete: true, Admin: true}
}

// Effective expands admin into the other bits
func (c Capabilities) Effective() Capabilities {
	if c.Admin {
		return FullCapabilities()
	}
	return c
}

// Has reports whether the effective set includes capability
func (c Capabilities) Has(capability Capability) bool {
	e := c.Effective()
	switch capability {
	case CapabilityRead:
		return e.Read
	case CapabilityWrite:
		return e.Write
	case CapabilityDelete:
		return e.Delete
	case CapabilityAdmin:
		return e.Admin
	default:
		return false
	}
}

// IsZero reports whether no bit is set
func (c Capabilities) IsZero() bool {
	return !c.Read && !c.Write && !c.Delete && !c.Admin
}

// List returns the set bits in canonical order
func (c Capabilities) List() []Capability {
	var out []Capability
	if c.Read {
		out = append(out, CapabilityRead)
	}
	if c.Write {
		out = append(out, CapabilityWrite)
	}
	if c.Delete {
		out = append(out, CapabilityDelete)
	}
	if c.Admin {
		out = append(out, CapabilityAdmin)
	}
	return out
}

// Permission is an explicit grant for one user on one folder.
// A row with no bits set blocks access inherited from ancestors.
type Permission struct {
	UserID       string       `json:"user_id"`
	FolderID     string       `json:"folder_id"`
	Capabilities Capabilities `json:"capabilities"`
	GrantedBy    string       `json:"granted_by"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// AccessSnapshot is everything needed to resolve which folders a user can
// reach, read at one point in time
type AccessSnapshot struct {
	// Candidates are the folders at or below the user's owned folders and
	// granted folders, ordered by path
	Candidates []*Folder
	// Ancestors are the folders on candidate chains that are not candidates
	Ancestors []*Folder
	// Grants are every row the user holds
	Grants []*Permission
}

// MissingAncestors returns the ancestor ids of folders that are not in folders
func MissingAncestors(folders []*Folder) []string {
	have := make(map[string]bool, len(folders))
	for _, f := range folders {
		have[f.ID] = true
	}
	var out []string
	for _, f := range folders {
		for _, id := range f.AncestorIDs() {
			if !have[id] {
				have[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// AccessSource explains where an effective capability set came from
type AccessSource string

const (
	AccessNone      AccessSource = "none"
	AccessOwner     AccessSource = "owner"
	AccessExplicit  AccessSource = "explicit"
	AccessInherited AccessSource = "inherited"
)

// Access is the resolved capability set of a user on a folder
type Access struct {
	FolderID     string       `json:"folder_id"`
	Capabilities Capabilities `json:"capabilities"`
	Source       AccessSource `json:"source"`
	// GrantFolderID is the folder holding the deciding permission row
	GrantFolderID string `json:"grant_folder_id,omitempty"`
}

// ResolveAccess computes a user's access on the last folder of chain.
// chain is ordered root first; grants maps folder id to the user's row.
//
// Ownership of any folder on the chain yields full access. Otherwise the
// nearest explicit row wins outright: a row on a folder overrides every
// bit inherited from rows further up.
func ResolveAccess(userID string, chain []*Folder, grants map[string]*Permission) Access {
	if len(chain) == 0 {
		return Access{Source: AccessNone}
	}
	target := chain[len(chain)-1]

	for _, f := range chain {
		if f != nil && f.OwnerID == userID {
			return Access{FolderID: target.ID, Capabilities: FullCapabilities(), Source: AccessOwner}
		}
	}

	for i := len(chain) - 1; i >= 0; i-- {
		f := chain[i]
		if f == nil {
			continue
		}
		if p, ok := grants[f.ID]; ok && p != nil {
			source := AccessInherited
			if i == len(chain)-1 {
				source = AccessExplicit
			}
			return Access{
				FolderID:      target.ID,
				Capabilities:  p.Capabilities.Effective(),
				Source:        source,
				GrantFolderID: f.ID,
			}
		}
	}

	return Access{FolderID: target.ID, Source: AccessNone}
}
