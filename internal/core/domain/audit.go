package domain

import "time"

// AuditEventType identifies a state change worth recording
type AuditEventType string

const (
	AuditPermissionGranted AuditEventType = "permission.granted"
	AuditPermissionRevoked AuditEventType = "permission.revoked"
	AuditFolderCreated     AuditEventType = "folder.created"
	AuditFolderMoved       AuditEventType = "folder.moved"
	AuditFolderDeleted     AuditEventType = "folder.deleted"
	AuditDocumentIngested  AuditEventType = "document.ingested"
	AuditDocumentDeleted   AuditEventType = "document.deleted"
)

// AuditEvent is published after a mutation commits
type AuditEvent struct {
	ID         string            `json:"id"`
	Type       AuditEventType    `json:"type"`
	ActorID    string            `json:"actor_id"`
	FolderID   string            `json:"folder_id,omitempty"`
	SubjectID  string            `json:"subject_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
