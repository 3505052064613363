package postgres

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

const messageColumns = `id, session_id, seq, query, answer, sources, metadata, request_id, created_at`

// ChatStore implements driven.ChatStore using PostgreSQL
type ChatStore struct {
	db *DB
}

// NewChatStore creates a new ChatStore
func NewChatStore(db *DB) *ChatStore {
	return &ChatStore{db: db}
}

func scanSession(row rowScanner) (*domain.ChatSession, error) {
	var s domain.ChatSession
	if err := row.Scan(&s.ID, &s.UserID, &s.Title, &s.MessageCount, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanMessage(row rowScanner) (*domain.ChatMessage, error) {
	var m domain.ChatMessage
	var sourcesJSON, metadataJSON []byte
	var requestID sql.NullString
	err := row.Scan(&m.ID, &m.SessionID, &m.Seq, &m.Query, &m.Answer, &sourcesJSON, &metadataJSON, &requestID, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.Sources = []*domain.Source{}
	if len(sourcesJSON) > 0 {
		if err := json.Unmarshal(sourcesJSON, &m.Sources); err != nil {
			return nil, err
		}
	}
	if err := unmarshalMetadata(metadataJSON, &m.Metadata); err != nil {
		return nil, err
	}
	m.RequestID = requestID.String
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
		VALUES ($1, $2, $3, $4, $5)
	`, session.ID, session.UserID, session.Title, session.CreatedAt, session.UpdatedAt)
	return mapError(err)
}

// GetSession retrieves a session with its message count
func (s *ChatStore) GetSession(ctx context.Context, id string) (*domain.ChatSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT s.id, s.user_id, s.title,
		       (SELECT COUNT(*) FROM chat_messages m WHERE m.session_id = s.id),
		       s.created_at, s.updated_at
		FROM chat_sessions s
		WHERE s.id = $1
	`, id)
	session, err := scanSession(row)
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
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.user_id, s.title,
		       (SELECT COUNT(*) FROM chat_messages m WHERE m.session_id = s.id),
		       s.created_at, s.updated_at
		FROM chat_sessions s
		WHERE s.user_id = $1
		ORDER BY s.created_at DESC, s.id
		LIMIT $2 OFFSET $3
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
		UPDATE chat_sessions SET title = $2, updated_at = $3 WHERE id = $1
	`, id, title, time.Now().UTC())
	if err != nil {
		return mapError(err)
	}
	return requireRow(res, domain.ErrSessionNotFound)
}

// DeleteSession removes a session; messages cascade
func (s *ChatStore) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res, domain.ErrSessionNotFound)
}

// AppendMessage writes a message under the session row lock so seq and
// timestamps stay ordered across concurrent writers
func (s *ChatStore) AppendMessage(ctx context.Context, userID string, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
	var stored *domain.ChatMessage
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		var owner, title string
		err := tx.QueryRowContext(ctx, `
			SELECT user_id, title FROM chat_sessions WHERE id = $1 FOR UPDATE
		`, msg.SessionID).Scan(&owner, &title)
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
				WHERE session_id = $1 AND request_id = $2
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
		var lastSeq sql.NullInt64
		var lastAt sql.NullTime
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*), MAX(seq), MAX(created_at) FROM chat_messages WHERE session_id = $1
		`, msg.SessionID).Scan(&count, &lastSeq, &lastAt); err != nil {
			return mapError(err)
		}

		m := *msg
		m.Seq = lastSeq.Int64 + 1
		m.CreatedAt = domain.MonotonicTimestamp(time.Now().UTC(), lastAt.Time)
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
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, m.ID, m.SessionID, m.Seq, m.Query, m.Answer, sourcesJSON, metadataJSON, requestID, m.CreatedAt); err != nil {
			return mapError(err)
		}

		newTitle := title
		if domain.ShouldAutoTitle(&domain.ChatSession{Title: title}, count) {
			newTitle = domain.TitleFromQuery(m.Query)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE chat_sessions SET title = $2, updated_at = $3 WHERE id = $1
		`, m.SessionID, newTitle, m.CreatedAt); err != nil {
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
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM chat_sessions WHERE id = $1)`, sessionID).Scan(&exists); err != nil {
		return nil, mapError(err)
	}
	if !exists {
		return nil, domain.ErrSessionNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM chat_messages
		WHERE session_id = $1
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

// requireRow returns notFound when an update or delete touched nothing
func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
