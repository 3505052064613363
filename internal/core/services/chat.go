package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ensure chatService implements ChatService
var _ driving.ChatService = (*chatService)(nil)

// chatService implements the ChatService interface
type chatService struct {
	store driven.ChatStore
}

// NewChatService creates a new ChatService
func NewChatService(store driven.ChatStore) driving.ChatService {
	return &chatService{store: store}
}

// CreateSession starts a session owned by userID
func (s *chatService) CreateSession(ctx context.Context, userID, title string) (*domain.ChatSession, error) {
	title, err := domain.NormalizeSessionTitle(title)
	if err != nil {
		return nil, err
	}
	session := &domain.ChatSession{
		ID:     uuid.NewString(),
		UserID: userID,
		Title:  title,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// GetSession retrieves a session owned by userID
func (s *chatService) GetSession(ctx context.Context, userID, id string) (*domain.ChatSession, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return session, nil
}

// ListSessions lists the user's sessions most recent first
func (s *chatService) ListSessions(ctx context.Context, userID string, limit, offset int) ([]*domain.ChatSession, error) {
	if limit < 0 || offset < 0 {
		return nil, domain.NewValidationError("", "limit and offset must not be negative")
	}
	limit = domain.ClampPageSize(limit, domain.DefaultSessionPageSize, domain.MaxSessionPageSize)
	return s.store.ListSessions(ctx, userID, limit, offset)
}

// RenameSession changes the title of an owned session
func (s *chatService) RenameSession(ctx context.Context, userID, id, title string) (*domain.ChatSession, error) {
	title, err := domain.NormalizeSessionTitle(title)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetSession(ctx, userID, id); err != nil {
		return nil, err
	}
	if err := s.store.RenameSession(ctx, id, title); err != nil {
		return nil, err
	}
	return s.store.GetSession(ctx, id)
}

// DeleteSession removes an owned session and its messages
func (s *chatService) DeleteSession(ctx context.Context, userID, id string) error {
	if _, err := s.GetSession(ctx, userID, id); err != nil {
		return err
	}
	return s.store.DeleteSession(ctx, id)
}

// AppendMessage records an exchange. Ownership is checked by the store in
// the same transaction as the write.
func (s *chatService) AppendMessage(ctx context.Context, userID string, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
	if strings.TrimSpace(msg.Query) == "" {
		return nil, domain.NewValidationError("query", "must not be empty")
	}
	if msg.SessionID == "" {
		return nil, domain.NewValidationError("session_id", "must not be empty")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Sources == nil {
		msg.Sources = []*domain.Source{}
	}
	return s.store.AppendMessage(ctx, userID, msg)
}

// ListMessages lists an owned session's messages oldest first
func (s *chatService) ListMessages(ctx context.Context, userID, sessionID string) ([]*domain.ChatMessage, error) {
	if _, err := s.GetSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, sessionID)
}
