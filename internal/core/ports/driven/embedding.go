package driven

import "context"

// EmbeddingService turns text into vectors. The model is a black box: the
// core only relies on every vector from one service having Dimensions()
// components. Services report unclassified errors from it as transient.
type EmbeddingService interface {
	// Embed returns one vector per input, in input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a user question
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	Dimensions() int
	Model() string

	// HealthCheck embeds a probe string to verify credentials and reachability
	HealthCheck(ctx context.Context) error

	Close() error
}
