package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// ChatService manages a user's chat sessions. Every call checks ownership.
type ChatService interface {
	// CreateSession starts a session; an empty title uses the default
	CreateSession(ctx context.Context, userID, title string) (*domain.ChatSession, error)

	// GetSession retrieves an owned session
	GetSession(ctx context.Context, userID, id string) (*domain.ChatSession, error)

	// ListSessions lists the user's sessions most recent first
	ListSessions(ctx context.Context, userID string, limit, offset int) ([]*domain.ChatSession, error)

	// RenameSession changes a session title
	RenameSession(ctx context.Context, userID, id, title string) (*domain.ChatSession, error)

	// DeleteSession removes a session and its messages
	DeleteSession(ctx context.Context, userID, id string) error

	// AppendMessage records a query/answer exchange in an owned session
	AppendMessage(ctx context.Context, userID string, msg *domain.ChatMessage) (*domain.ChatMessage, error)

	// ListMessages lists a session's messages oldest first
	ListMessages(ctx context.Context, userID, sessionID string) ([]*domain.ChatMessage, error)
}
