package port

import (
	"context"
	"errors"

	"github.com/providencia/approvals/internal/domain/entity"
)

// Lookups return (nil, nil) when no row matches; callers decide whether a miss
// is an error.

// ErrApprovalNotPending is returned by SaveDecision when the stored approval
// was already decided
var ErrApprovalNotPending = errors.New("approval is no longer pending")

// ApprovalRepository defines persistence operations for ServiceApproval
type ApprovalRepository interface {
	// Save inserts or replaces the approval by ID
	Save(ctx context.Context, approval *entity.ServiceApproval) error

	// SaveDecision stores a decided approval only if the stored version is
	// still PENDING, otherwise it returns ErrApprovalNotPending
	SaveDecision(ctx context.Context, approval *entity.ServiceApproval) error

	// List returns every approval, newest first
	List(ctx context.Context) ([]*entity.ServiceApproval, error)

	// GetByID is a consistent read of the stored approval
	GetByID(ctx context.Context, id string) (*entity.ServiceApproval, error)

	// GetByToken may be served by an eventually consistent index
	GetByToken(ctx context.Context, token string) (*entity.ServiceApproval, error)

	// GetByVerificationHash searches across all tenants
	GetByVerificationHash(ctx context.Context, hash string) (*entity.ServiceApproval, error)

	// GetLatestByOrderID returns the approval with the greatest CreatedAt for the order
	GetLatestByOrderID(ctx context.Context, orderID string) (*entity.ServiceApproval, error)

	// ListByOrderID returns all approvals of an order, newest first
	ListByOrderID(ctx context.Context, orderID string) ([]*entity.ServiceApproval, error)
}

// SignatureRepository defines persistence operations for DigitalSignature.
// Signatures are immutable: there is no update.
type SignatureRepository interface {
	Create(ctx context.Context, sig *entity.DigitalSignature) error
	GetByID(ctx context.Context, id string) (*entity.DigitalSignature, error)
	GetByApprovalID(ctx context.Context, approvalID string) (*entity.DigitalSignature, error)
}

// EvidenceRepository defines persistence operations for uploaded signed documents
type EvidenceRepository interface {
	Create(ctx context.Context, ev *entity.Evidence) error
	GetByID(ctx context.Context, id string) (*entity.Evidence, error)
}

// OrderRepository is the service-order collaborator
type OrderRepository interface {
	Create(ctx context.Context, order *entity.ServiceOrder) error
	GetByID(ctx context.Context, id string) (*entity.ServiceOrder, error)
	Update(ctx context.Context, order *entity.ServiceOrder) error
}

// CompanyRepository resolves tenants
type CompanyRepository interface {
	Create(ctx context.Context, company *entity.Company) error
	GetByID(ctx context.Context, id string) (*entity.Company, error)
}

// AuditRepository stores the append-only audit trail
type AuditRepository interface {
	Create(ctx context.Context, entry *entity.AuditEntry) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]*entity.AuditEntry, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
