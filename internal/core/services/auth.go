package services

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// DefaultTokenTTL is used when IssueToken receives no ttl
const DefaultTokenTTL = 24 * time.Hour

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

// authService implements the AuthService interface
type authService struct {
	authAdapter driven.AuthAdapter
}

// NewAuthService creates a new AuthService
func NewAuthService(authAdapter driven.AuthAdapter) driving.AuthService {
	return &authService{authAdapter: authAdapter}
}

// ValidateToken validates a JWT token and returns the auth context
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}

	claims, err := s.authAdapter.ParseToken(token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}

	// Check expiration
	if claims.ExpiresAt != 0 && time.Now().Unix() > claims.ExpiresAt {
		return nil, domain.ErrTokenExpired
	}
	if claims.UserID == "" {
		return nil, domain.ErrTokenInvalid
	}

	return claims.ToAuthContext(), nil
}

// IssueToken signs a token for the identity
func (s *authService) IssueToken(ctx context.Context, identity *domain.AuthContext, ttl time.Duration) (string, error) {
	if identity == nil || identity.UserID == "" {
		return "", domain.NewValidationError("user_id", "must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	role := identity.Role
	if role == "" {
		role = domain.RoleMember
	}
	return s.authAdapter.GenerateToken(&domain.TokenClaims{
		UserID:    identity.UserID,
		Email:     identity.Email,
		Name:      identity.Name,
		Role:      role,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	})
}
