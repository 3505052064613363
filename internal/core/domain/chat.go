package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DefaultSessionTitle is the placeholder title of a new session
	DefaultSessionTitle = "New Chat"
	// AutoTitleLength is the number of query runes used to rename a session
	AutoTitleLength = 50
	// MaxSessionTitleLength bounds session titles in runes
	MaxSessionTitleLength = 200
	// NoResultsAnswer is returned when retrieval yields no sources
	NoResultsAnswer = "No relevant documents found for your query."

	DefaultSessionPageSize = 20
	MaxSessionPageSize     = 100
)

// ChatSession is a conversation owned by one user
type ChatSession struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ChatMessage records one query/answer exchange with the sources used.
// Sources are stored with the message and never recomputed.
type ChatMessage struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Query     string         `json:"query"`
	Answer    string         `json:"answer"`
	Sources   []*Source      `json:"sources"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Seq       int64          `json:"seq"`
	CreatedAt time.Time      `json:"created_at"`
}

// TitleFromQuery derives a session title from the first query
func TitleFromQuery(query string) string {
	q := strings.Join(strings.Fields(query), " ")
	if utf8.RuneCountInString(q) <= AutoTitleLength {
		return q
	}
	runes := []rune(q)
	return string(runes[:AutoTitleLength])
}

// NormalizeSessionTitle trims and validates a title; empty means default
func NormalizeSessionTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return DefaultSessionTitle, nil
	}
	if utf8.RuneCountInString(title) > MaxSessionTitleLength {
		return "", NewValidationError("title", "must be at most 200 characters")
	}
	return title, nil
}

// ShouldAutoTitle reports whether appending the first message renames the session
func ShouldAutoTitle(session *ChatSession, priorMessages int) bool {
	return priorMessages == 0 && session.Title == DefaultSessionTitle
}

// MonotonicTimestamp returns now, or last when the clock has not advanced past it
func MonotonicTimestamp(now, last time.Time) time.Time {
	if !last.IsZero() && !now.After(last) {
		return last
	}
	return now
}
