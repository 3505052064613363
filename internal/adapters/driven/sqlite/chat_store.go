package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ChatStore = (*ChatStore)(nil)

const (
	sessionSelect = `
		SELECT s.id, s.user_id, s.title,
		       (SELECT COUNT(*) FROM chat_messages m WHERE m.session_id = s.id),
		       s.created_at, s.updated_at
		FROM chat_sessions s`
	messageColumns = `id, session_id, seq, query, answer, sources, metadata, request_id, created_at`
)

// ChatStore implements driven.ChatStore using SQLite
type ChatStore struct {
	db *DB
}

// NewChatStore creates a new ChatStore
func NewChatStore(db *DB) *ChatStore {
	return &ChatStore{db: db}
}

func scanSession(row rowScanner) (*domain.ChatSession, error) {
	var s domain.ChatSession
	var createdAt, updatedAt int64
	if err := row.Scan(&s.ID, &s.UserID, &s.Title, &s.MessageCount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	s.CreatedAt = fromNanos(createdAt)
	s.UpdatedAt = fromNanos(updatedAt)
	return &s, nil
}

func scanMessage(row rowScanner) (*domain.ChatMessage, error) {
	var m domain.ChatMessage
	var sourcesJSON, metadataJSON string
	var requestID sql.NullString
	var createdAt int64
	err := row.Scan(&m.ID, &m.SessionID, &m.Seq, &m.Query, &m.Answer, &sourcesJSON, &metadataJSON, &requestID, &createdAt)
	if err != nil {
		return nil, err
	}
	m.Sources = []*domain.Source{}
	if sourcesJSON != "" {
		if err := json.Unmarshal([]byte(sourcesJSON), &m.Sources); err != nil {
			return nil, err
		}
	}
	if err := unmarshalMetadata(metadataJSON, &m.Metadata); err != nil {
		return nil, err
	}
	m.RequestID = requestID.String
	m.CreatedAt = fromNanos(createdAt)
	return &m, nil
}

// CreateSession inserts a new session
func (s *ChatStore) CreateSession(ctx context.Context, session *domain.ChatSession) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	session.UpdatedAt = session.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, user_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, session.ID, session.UserID, session.Title, toNanos(session.CreatedAt), toNanos(session.UpdatedAt))
	return mapError(err)
}

// GetSession retrieves a session with its message count
func (s *ChatStore) GetSession(ctx context.Context, id string) (*domain.ChatSession, error) {
	session, err := scanSession(s.db.QueryRowContext(ctx, sessionSelect+` WHERE s.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, mapError(err)
	}
	return session, nil
}

// ListSessions lists a user's sessions most recent first
func (s *ChatStore) ListSessions(ctx context.Context, userID string, limit, offset int) ([]*domain.ChatSession, error) {
	rows, err := s.db.QueryContext(ctx, sessionSelect+`
		WHERE s.user_id = ?
		ORDER BY s.created_at DESC, s.id
		LIMIT ? OFFSET ?
	`, userID, limit, offset)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var sessions []*domain.ChatSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, mapError(rows.Err())
}

// RenameSession changes a session title
func (s *ChatStore) RenameSession(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE chat_sessions SET title = ?, updated_at = ? WHERE id = ?
	`, title, toNanos(time.Now()), id)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res, domain.ErrSessionNotFound)
}

// DeleteSession removes a session; messages cascade
func (s *ChatStore) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res, domain.ErrSessionNotFound)
}

// AppendMessage writes a message with its seq, timestamp and any session
// rename in one transaction
func (s *ChatStore) AppendMessage(ctx context.Context, userID string, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
	var stored *domain.ChatMessage
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		var owner, title string
		err := tx.QueryRowContext(ctx, `SELECT user_id, title FROM chat_sessions WHERE id = ?`, msg.SessionID).Scan(&owner, &title)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrSessionNotFound
		}
		if err != nil {
			return mapError(err)
		}
		if owner != userID {
			return domain.ErrForbidden
		}

		if msg.RequestID != "" {
			existing, err := scanMessage(tx.QueryRowContext(ctx, `
				SELECT `+messageColumns+` FROM chat_messages
				WHERE session_id = ? AND request_id = ?
			`, msg.SessionID, msg.RequestID))
			if err == nil {
				stored = existing
				return nil
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return mapError(err)
			}
		}

		var count int
		var lastSeq, lastAt sql.NullInt64
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*), MAX(seq), MAX(created_at) FROM chat_messages WHERE session_id = ?
		`, msg.SessionID).Scan(&count, &lastSeq, &lastAt); err != nil {
			return mapError(err)
		}

		var last time.Time
		if lastAt.Valid {
			last = fromNanos(lastAt.Int64)
		}

		m := *msg
		m.Seq = lastSeq.Int64 + 1
		m.CreatedAt = domain.MonotonicTimestamp(time.Now().UTC(), last)
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.Sources == nil {
			m.Sources = []*domain.Source{}
		}

		sourcesJSON, err := json.Marshal(m.Sources)
		if err != nil {
			return err
		}
		metadataJSON, err := marshalMetadata(m.Metadata)
		if err != nil {
			return err
		}
		var requestID sql.NullString
		if m.RequestID != "" {
			requestID = sql.NullString{String: m.RequestID, Valid: true}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chat_messages (`+messageColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, m.ID, m.SessionID, m.Seq, m.Query, m.Answer, string(sourcesJSON), metadataJSON, requestID, toNanos(m.CreatedAt)); err != nil {
			return mapError(err)
		}

		newTitle := title
		if domain.ShouldAutoTitle(&domain.ChatSession{Title: title}, count) {
			newTitle = domain.TitleFromQuery(m.Query)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE chat_sessions SET title = ?, updated_at = ? WHERE id = ?
		`, newTitle, toNanos(m.CreatedAt), m.SessionID); err != nil {
			return mapError(err)
		}

		stored = &m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// ListMessages lists a session's messages by CreatedAt, then Seq
func (s *ChatStore) ListMessages(ctx context.Context, sessionID string) ([]*domain.ChatMessage, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM chat_sessions WHERE id = ?)`, sessionID).Scan(&exists); err != nil {
		return nil, mapError(err)
	}
	if !exists {
		return nil, domain.ErrSessionNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM chat_messages
		WHERE session_id = ?
		ORDER BY created_at, seq
	`, sessionID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	messages := []*domain.ChatMessage{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, mapError(rows.Err())
}
