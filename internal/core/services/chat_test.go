package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestChatService_SessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	session, err := env.chat.CreateSession(ctx, "alice", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Title != domain.DefaultSessionTitle {
		t.Errorf("expected default title, got %s", session.Title)
	}

	renamed, err := env.chat.RenameSession(ctx, "alice", session.ID, "  Contracts ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if renamed.Title != "Contracts" {
		t.Errorf("expected trimmed title, got %q", renamed.Title)
	}

	if _, err := env.chat.RenameSession(ctx, "alice", session.ID, strings.Repeat("x", 201)); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected invalid input for long title, got %v", err)
	}

	if err := env.chat.DeleteSession(ctx, "alice", session.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.chat.GetSession(ctx, "alice", session.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected session not found, got %v", err)
	}
}

func TestChatService_Ownership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	session, _ := env.chat.CreateSession(ctx, "alice", "Mine")

	tests := []struct {
		name string
		call func() error
	}{
		{"get", func() error { _, err := env.chat.GetSession(ctx, "bob", session.ID); return err }},
		{"rename", func() error { _, err := env.chat.RenameSession(ctx, "bob", session.ID, "x"); return err }},
		{"delete", func() error { return env.chat.DeleteSession(ctx, "bob", session.ID) }},
		{"messages", func() error { _, err := env.chat.ListMessages(ctx, "bob", session.ID); return err }},
		{"append", func() error {
			_, err := env.chat.AppendMessage(ctx, "bob", &domain.ChatMessage{SessionID: session.ID, Query: "q"})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, domain.ErrForbidden) {
				t.Errorf("expected forbidden, got %v", err)
			}
		})
	}
}

func TestChatService_ListSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, title := range []string{"one", "two", "three"} {
		if _, err := env.chat.CreateSession(ctx, "alice", title); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	_, _ = env.chat.CreateSession(ctx, "bob", "other")

	sessions, err := env.chat.ListSessions(ctx, "alice", 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("expected page of 2, got %d", len(sessions))
	}
	for _, s := range sessions {
		if s.UserID != "alice" {
			t.Errorf("listed another user's session %s", s.ID)
		}
	}

	all, err := env.chat.ListSessions(ctx, "alice", 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("zero limit should use the default page size, got %d sessions", len(all))
	}

	if _, err := env.chat.ListSessions(ctx, "alice", -1, 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestChatService_AppendMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	session, _ := env.chat.CreateSession(ctx, "alice", "")

	first, err := env.chat.AppendMessage(ctx, "alice", &domain.ChatMessage{
		SessionID: session.ID,
		Query:     "What is the termination notice period in the NDA template?",
		Answer:    "Thirty days.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID == "" || first.Sources == nil {
		t.Errorf("expected id and non-nil sources, got %+v", first)
	}

	second, err := env.chat.AppendMessage(ctx, "alice", &domain.ChatMessage{SessionID: session.ID, Query: "And for contractors?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Seq <= first.Seq || second.CreatedAt.Before(first.CreatedAt) {
		t.Errorf("messages must be ordered, got seq %d then %d", first.Seq, second.Seq)
	}

	got, _ := env.chat.GetSession(ctx, "alice", session.ID)
	if got.Title != domain.TitleFromQuery(first.Query) {
		t.Errorf("expected auto title from first query, got %q", got.Title)
	}
	if got.MessageCount != 2 {
		t.Errorf("expected 2 messages, got %d", got.MessageCount)
	}

	if _, err := env.chat.AppendMessage(ctx, "alice", &domain.ChatMessage{SessionID: session.ID, Query: " "}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
	if _, err := env.chat.AppendMessage(ctx, "alice", &domain.ChatMessage{SessionID: "missing", Query: "q"}); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected session not found, got %v", err)
	}
}

func TestChatService_AppendFailureWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	session, _ := env.chat.CreateSession(ctx, "alice", "")
	env.stores.Chats.AppendFn = func(*domain.ChatMessage) error {
		return errors.New("write failed")
	}

	if _, err := env.chat.AppendMessage(ctx, "alice", &domain.ChatMessage{SessionID: session.ID, Query: "q"}); err == nil {
		t.Fatal("expected error")
	}

	got, _ := env.chat.GetSession(ctx, "alice", session.ID)
	if got.MessageCount != 0 || got.Title != domain.DefaultSessionTitle {
		t.Errorf("failed append must leave the session untouched, got %+v", got)
	}
}

func TestChatService_ConcurrentAppendsKeepOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	session, _ := env.chat.CreateSession(ctx, "alice", "")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = env.chat.AppendMessage(ctx, "alice", &domain.ChatMessage{SessionID: session.ID, Query: "q"})
		}()
	}
	wg.Wait()

	messages, err := env.chat.ListMessages(ctx, "alice", session.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(messages) != 20 {
		t.Fatalf("expected 20 messages, got %d", len(messages))
	}
	for i, m := range messages {
		if m.Seq != int64(i+1) {
			t.Errorf("expected seq %d, got %d", i+1, m.Seq)
		}
		if i > 0 && m.CreatedAt.Before(messages[i-1].CreatedAt) {
			t.Error("timestamps must not go backwards")
		}
	}
}
