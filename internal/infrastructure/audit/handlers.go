package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/providencia/approvals/internal/application/dispatcher"
	"github.com/providencia/approvals/internal/application/port"
	"github.com/providencia/approvals/internal/domain/event"
)

// Handler names used when subscribing
const (
	PersistHandlerName = "audit-persist"
	LogHandlerName     = "audit-log"
)

// PersistHandler stores every event in the audit repository
func PersistHandler(repo port.AuditRepository) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		return repo.Create(ctx, EntryFromEvent(evt))
	}
}

// LogHandler writes a structured line for every event
func LogHandler(logger *zap.Logger) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		logger.Info("Audit",
			zap.String("action", evt.Type.String()),
			zap.String("entity_type", evt.Subject.EntityType),
			zap.String("entity_id", evt.Subject.EntityID),
			zap.String("company_id", evt.Subject.CompanyID),
			zap.String("actor", evt.Subject.ActorName),
			zap.String("details", evt.Details),
			zap.Any("changes", evt.Payload))
		return nil
	}
}

// Register subscribes the persistence and logging handlers to every audit action
func Register(d dispatcher.Dispatcher, repo port.AuditRepository, logger *zap.Logger) {
	d.SubscribeAll(PersistHandlerName, PersistHandler(repo))
	d.SubscribeAll(LogHandlerName, LogHandler(logger))
}
