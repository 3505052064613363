package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// PathSeparator delimits folder ids in a materialized path
const PathSeparator = "/"

// MaxFolderNameLength bounds folder names in runes
const MaxFolderNameLength = 255

// Folder is a node in a user's folder tree.
// Path holds the ids of every ancestor followed by the folder's own id,
// e.g. "/root-id/parent-id/self-id/".
type Folder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  *string   `json:"parent_id,omitempty"`
	OwnerID   string    `json:"owner_id"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsRoot reports whether the folder has no parent
func (f *Folder) IsRoot() bool {
	return f.ParentID == nil
}

// AncestorIDs returns the ancestor ids encoded in the path, root first
func (f *Folder) AncestorIDs() []string {
	ids := PathIDs(f.Path)
	if len(ids) == 0 {
		return nil
	}
	return ids[:len(ids)-1]
}

// Chain returns the ancestor ids followed by the folder's own id
func (f *Folder) Chain() []string {
	return PathIDs(f.Path)
}

// Depth returns the number of ancestors
func (f *Folder) Depth() int {
	return len(f.AncestorIDs())
}

// Contains reports whether other is f or lies in f's subtree
func (f *Folder) Contains(other *Folder) bool {
	return strings.HasPrefix(other.Path, f.Path)
}

// BuildPath derives the materialized path from an ancestor chain and the folder id
func BuildPath(ancestorIDs []string, id string) string {
	var b strings.Builder
	b.WriteString(PathSeparator)
	for _, a := range ancestorIDs {
		b.WriteString(a)
		b.WriteString(PathSeparator)
	}
	b.WriteString(id)
	b.WriteString(PathSeparator)
	return b.String()
}

// ChildPath derives a child's path from its parent's path
func ChildPath(parentPath, id string) string {
	if parentPath == "" {
		return PathSeparator + id + PathSeparator
	}
	return parentPath + id + PathSeparator
}

// PathIDs splits a materialized path into its folder ids, root first
func PathIDs(path string) []string {
	trimmed := strings.Trim(path, PathSeparator)
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, PathSeparator)
}

// RebasePath rewrites a descendant path after its subtree root moved from oldPrefix to newPrefix
func RebasePath(path, oldPrefix, newPrefix string) string {
	if !strings.HasPrefix(path, oldPrefix) {
		return path
	}
	return newPrefix + strings.TrimPrefix(path, oldPrefix)
}

// CheckMove validates moving folder under newParent (nil means root).
// newParent must be loaded in the same transaction as the path rewrite.
func CheckMove(folder, newParent *Folder) error {
	if newParent == nil {
		return nil
	}
	if newParent.ID == folder.ID || folder.Contains(newParent) {
		return ErrCycleDetected
	}
	return nil
}

// NormalizeFolderName trims and validates a folder name
func NormalizeFolderName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", NewValidationError("name", "must not be empty")
	}
	if utf8.RuneCountInString(name) > MaxFolderNameLength {
		return "", NewValidationError("name", "must be at most 255 characters")
	}
	if strings.Contains(name, PathSeparator) {
		return "", NewValidationError("name", "must not contain '/'")
	}
	return name, nil
}

// QueryableFolder is a folder the user can read, with index statistics
type QueryableFolder struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Path          string       `json:"path"`
	ParentID      *string      `json:"parent_id,omitempty"`
	DocumentCount int          `json:"document_count"`
	ChunkCount    int          `json:"chunk_count"`
	Access        Capabilities `json:"access"`
}

// CanQuery reports whether the folder holds anything to retrieve
func (q *QueryableFolder) CanQuery() bool {
	return q.Access.Read && q.ChunkCount > 0
}
