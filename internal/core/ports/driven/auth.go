package driven

import "github.com/custodia-labs/sercha-rag/internal/core/domain"

// AuthAdapter handles bearer token cryptography.
// Identity is owned by the upstream issuer; no users are stored here.
type AuthAdapter interface {
	// GenerateToken signs claims into a bearer token
	GenerateToken(claims *domain.TokenClaims) (string, error)

	// ParseToken validates a token and returns its claims.
	// Returns ErrTokenExpired or ErrTokenInvalid.
	ParseToken(token string) (*domain.TokenClaims, error)
}
