package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// QueryService answers questions from the documents a user may read
type QueryService interface {
	// Query embeds the question, retrieves sources, writes an answer and
	// records the exchange in the session
	Query(ctx context.Context, userID string, req *domain.QueryRequest) (*domain.QueryResponse, error)

	// QueryableFolders lists readable folders with document and chunk counts
	QueryableFolders(ctx context.Context, userID string) ([]*domain.QueryableFolder, error)

	// SuggestQueries proposes follow-up questions drawn from the documents
	// in the user's readable scope. The list is empty when nothing is in
	// scope or no model is configured.
	SuggestQueries(ctx context.Context, userID string, req *domain.SuggestRequest) ([]string, error)

	// Stats reports what the user can query and which AI services are up
	Stats(ctx context.Context, userID string) (*domain.RAGStats, error)
}
