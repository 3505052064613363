package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// EventPublisher emits audit events after mutations commit (Kafka).
// Publishing is best-effort; callers never roll back on failure.
type EventPublisher interface {
	Publish(ctx context.Context, events ...*domain.AuditEvent) error
	Close() error
}
