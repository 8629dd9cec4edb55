package port

import (
	"context"

	"github.com/providencia/approvals/internal/domain/entity"
)

// AuditSink accepts audit entries. Record never fails the caller: delivery
// problems are handled (logged) by the sink itself.
type AuditSink interface {
	Record(ctx context.Context, entry entity.AuditEntry)
}
