package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// auditor publishes audit events after a mutation has committed.
// A nil publisher disables auditing.
type auditor struct {
	publisher driven.EventPublisher
	logger    *zap.Logger
}

func (a auditor) publish(ctx context.Context, event *domain.AuditEvent) {
	if a.publisher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.OccurredAt = time.Now().UTC()

	if err := a.publisher.Publish(ctx, event); err != nil {
		a.logger.Warn("failed to publish audit event",
			zap.String("type", string(event.Type)),
			zap.String("actor_id", event.ActorID),
			zap.Error(err),
		)
	}
}

func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
