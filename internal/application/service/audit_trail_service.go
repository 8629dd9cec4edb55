package service

import (
	"context"
	"fmt"

	"github.com/providencia/approvals/internal/application/port"
	"github.com/providencia/approvals/internal/domain/entity"
)

// AuditTrailService reads the compliance trail for staff
type AuditTrailService interface {
	// ListEntityTrail returns the entries of one entity, oldest first. Entries
	// of other tenants are never returned.
	ListEntityTrail(ctx context.Context, actor *entity.Actor, entityType, entityID string) ([]*entity.AuditEntry, error)
}

type auditTrailServiceImpl struct {
	repo port.AuditRepository
}

// NewAuditTrailService creates a new AuditTrailService
func NewAuditTrailService(repo port.AuditRepository) AuditTrailService {
	return &auditTrailServiceImpl{repo: repo}
}

func (s *auditTrailServiceImpl) ListEntityTrail(ctx context.Context, actor *entity.Actor, entityType, entityID string) ([]*entity.AuditEntry, error) {
	if !actor.IsAuthenticated() {
		return nil, ErrUnauthenticated
	}
	if entityType == "" || entityID == "" {
		return nil, fmt.Errorf("%w: entity type and id are required", ErrInsufficientInput)
	}

	entries, err := s.repo.ListByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit trail: %w", err)
	}

	// Failed public verifications carry no tenant and stay visible
	visible := make([]*entity.AuditEntry, 0, len(entries))
	for _, e := range entries {
		if e.CompanyID == "" || e.CompanyID == actor.CompanyID {
			visible = append(visible, e)
		}
	}
	return visible, nil
}
