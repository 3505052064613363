package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// ChatStore owns chat sessions and messages (PostgreSQL, SQLite)
type ChatStore interface {
	// CreateSession inserts a new session
	CreateSession(ctx context.Context, session *domain.ChatSession) error

	// GetSession retrieves a session. Returns ErrSessionNotFound if missing.
	GetSession(ctx context.Context, id string) (*domain.ChatSession, error)

	// ListSessions lists a user's sessions most recent first
	ListSessions(ctx context.Context, userID string, limit, offset int) ([]*domain.ChatSession, error)

	// RenameSession changes a session title
	RenameSession(ctx context.Context, id, title string) error

	// DeleteSession removes a session and all its messages as one unit
	DeleteSession(ctx context.Context, id string) error

	// AppendMessage writes msg as a single composite record. Inside one
	// transaction it checks that userID owns the session (ErrSessionNotFound,
	// ErrForbidden), assigns Seq and a monotonic CreatedAt, and renames a
	// default-titled session on its first message. A message already stored
	// under msg.RequestID is returned instead of writing a duplicate.
	AppendMessage(ctx context.Context, userID string, msg *domain.ChatMessage) (*domain.ChatMessage, error)

	// ListMessages lists a session's messages by CreatedAt, then Seq
	ListMessages(ctx context.Context, sessionID string) ([]*domain.ChatMessage, error)
}
