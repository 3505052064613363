package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// RetrievalService finds the chunks most similar to a query vector inside
// the folders a user may read
type RetrievalService interface {
	Search(ctx context.Context, userID string, req *domain.SearchRequest) (*domain.SearchResult, error)
}
