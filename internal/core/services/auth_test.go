package services

import (
	"context"
	"testing"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven/mocks"
)

func newTestAuthService() (*mocks.MockAuthAdapter, *authService) {
	adapter := mocks.NewMockAuthAdapter()
	svc := NewAuthService(adapter).(*authService)
	return adapter, svc
}

func TestAuthService_IssueAndValidate(t *testing.T) {
	_, svc := newTestAuthService()
	ctx := context.Background()

	token, err := svc.IssueToken(ctx, &domain.AuthContext{UserID: "alice", Email: "alice@example.com"}, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" {
		t.Fatal("expected token to be generated")
	}

	auth, err := svc.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auth.UserID != "alice" {
		t.Errorf("expected user alice, got %s", auth.UserID)
	}
	if auth.Role != domain.RoleMember {
		t.Errorf("expected default member role, got %s", auth.Role)
	}
}

func TestAuthService_ValidateToken_Errors(t *testing.T) {
	adapter, svc := newTestAuthService()
	ctx := context.Background()

	expired, _ := adapter.GenerateToken(&domain.TokenClaims{
		UserID:    "alice",
		IssuedAt:  time.Now().Add(-2 * time.Hour).Unix(),
		ExpiresAt: time.Now().Add(-time.Hour).Unix(),
	})

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"empty token", "", domain.ErrTokenInvalid},
		{"garbage", "not-a-token", domain.ErrTokenInvalid},
		{"expired", expired, domain.ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(ctx, tt.token)
			if err != tt.wantErr {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestAuthService_IssueToken_RequiresUser(t *testing.T) {
	_, svc := newTestAuthService()

	if _, err := svc.IssueToken(context.Background(), &domain.AuthContext{}, time.Hour); err == nil {
		t.Error("expected error for empty user id")
	}
}
