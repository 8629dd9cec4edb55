// Package audit delivers audit entries to the compliance trail. The sink turns
// every entry into a domain event on the dispatcher; subscribed handlers
// persist and log it.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/providencia/approvals/internal/application/dispatcher"
	"github.com/providencia/approvals/internal/application/port"
	"github.com/providencia/approvals/internal/domain/entity"
	"github.com/providencia/approvals/internal/domain/event"
)

// EventSink implements port.AuditSink on top of a Dispatcher
type EventSink struct {
	dispatcher dispatcher.Dispatcher
	async      bool
	now        func() time.Time
	logger     *zap.Logger
}

// SinkOption configures an EventSink
type SinkOption func(*EventSink)

// WithAsync makes Record return before the handlers run
func WithAsync(async bool) SinkOption {
	return func(s *EventSink) {
		s.async = async
	}
}

// WithClock overrides the timestamp source for entries without CreatedAt
func WithClock(now func() time.Time) SinkOption {
	return func(s *EventSink) {
		s.now = now
	}
}

// NewEventSink creates a sink publishing on d
func NewEventSink(d dispatcher.Dispatcher, logger *zap.Logger, opts ...SinkOption) *EventSink {
	s := &EventSink{
		dispatcher: d,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record publishes the entry. Failures are logged, never returned.
func (s *EventSink) Record(ctx context.Context, entry entity.AuditEntry) {
	t := event.Type(entry.Action)
	if !t.IsValid() {
		s.logger.Error("Dropping audit entry with unknown action",
			zap.String("action", entry.Action),
			zap.String("entity_id", entry.EntityID))
		return
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	evt := EventFromEntry(entry)

	if s.async {
		// The trail must outlive the request that produced it
		s.dispatcher.DispatchAsync(context.WithoutCancel(ctx), evt)
		return
	}

	if err := s.dispatcher.Dispatch(ctx, evt); err != nil {
		s.logger.Error("Failed to record audit entry",
			zap.String("action", entry.Action),
			zap.String("entity_type", entry.EntityType),
			zap.String("entity_id", entry.EntityID),
			zap.Error(err))
	}
}

// EventFromEntry converts an audit entry to its domain event
func EventFromEntry(entry entity.AuditEntry) *event.Event {
	payload := make(map[string]interface{}, len(entry.Changes))
	for k, v := range entry.Changes {
		payload[k] = v
	}

	evt := event.NewEvent(event.Type(entry.Action), event.Subject{
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		CompanyID:  entry.CompanyID,
		ActorID:    entry.ActorID,
		ActorName:  entry.ActorName,
	}, entry.Details, payload)
	evt.Timestamp = entry.CreatedAt
	return evt
}

// EntryFromEvent converts a domain event back to the stored audit entry
func EntryFromEvent(evt *event.Event) *entity.AuditEntry {
	var changes map[string]interface{}
	if len(evt.Payload) > 0 {
		changes = make(map[string]interface{}, len(evt.Payload))
		for k, v := range evt.Payload {
			changes[k] = v
		}
	}

	return &entity.AuditEntry{
		Action:     evt.Type.String(),
		EntityType: evt.Subject.EntityType,
		EntityID:   evt.Subject.EntityID,
		CompanyID:  evt.Subject.CompanyID,
		ActorID:    evt.Subject.ActorID,
		ActorName:  evt.Subject.ActorName,
		Details:    evt.Details,
		Changes:    changes,
		CreatedAt:  evt.Timestamp,
	}
}

// Verify interface compliance
var _ port.AuditSink = (*EventSink)(nil)
