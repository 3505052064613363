package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// AuthService validates bearer tokens issued for this deployment
type AuthService interface {
	// ValidateToken validates a JWT token and returns the auth context
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)

	// IssueToken signs a token for the identity, valid for ttl
	IssueToken(ctx context.Context, identity *domain.AuthContext, ttl time.Duration) (string, error)
}
