package service

import (
	"context"

	"github.com/providencia/approvals/internal/application/port"
	"github.com/providencia/approvals/internal/domain/entity"
	"github.com/providencia/approvals/internal/domain/fingerprint"
)

// publicActor labels audit entries of unauthenticated verification requests
const publicActor = "Público"

// VerificationService answers public authenticity checks. The answer is
// binary: lookup misses and infrastructure failures both yield an invalid result.
type VerificationService interface {
	VerifyDocument(ctx context.Context, hash string) *entity.PublicVerificationResult
}

type verificationServiceImpl struct {
	approvals port.ApprovalRepository
	orders    port.OrderRepository
	companies port.CompanyRepository
	audit     port.AuditSink
	logger    Logger
}

// NewVerificationService creates a new VerificationService
func NewVerificationService(
	approvals port.ApprovalRepository,
	orders port.OrderRepository,
	companies port.CompanyRepository,
	audit port.AuditSink,
	logger Logger,
) VerificationService {
	if audit == nil {
		audit = nopSink{}
	}
	return &verificationServiceImpl{
		approvals: approvals,
		orders:    orders,
		companies: companies,
		audit:     audit,
		logger:    logger,
	}
}

// VerifyDocument looks the hash up across all tenants and returns the redacted
// proof. Every attempt is audited.
func (s *verificationServiceImpl) VerifyDocument(ctx context.Context, hash string) *entity.PublicVerificationResult {
	normalized := fingerprint.Normalize(hash)

	result, approval := s.verify(ctx, normalized)

	outcome := "invalid"
	changes := map[string]interface{}{
		"hash": normalized,
	}
	entry := entity.AuditEntry{
		Action:     entity.AuditVerificationAttempt,
		EntityType: entity.EntityTypeVerification,
		EntityID:   normalized,
		ActorName:  publicActor,
		Changes:    changes,
	}
	if result.IsValid {
		outcome = "valid"
		entry.CompanyID = approval.CompanyID
		changes["service_approval_id"] = approval.ID
	}
	changes["result"] = outcome
	entry.Details = "Verificação pública de autenticidade: " + outcome

	s.audit.Record(ctx, entry)
	return result
}

func (s *verificationServiceImpl) verify(ctx context.Context, hash string) (*entity.PublicVerificationResult, *entity.ServiceApproval) {
	if hash == "" {
		return entity.InvalidVerification(), nil
	}

	approval, err := s.approvals.GetByVerificationHash(ctx, hash)
	if err != nil {
		s.logger.Error("Verification lookup failed", "error", err)
		return entity.InvalidVerification(), nil
	}
	if approval == nil || approval.Status != entity.ApprovalStatusApproved {
		return entity.InvalidVerification(), nil
	}

	order, err := s.orders.GetByID(ctx, approval.ServiceOrderID)
	if err != nil {
		s.logger.Error("Verification order lookup failed", "error", err, "approval_id", approval.ID)
		return entity.InvalidVerification(), nil
	}
	if order == nil {
		s.logger.Warn("Verification hash matches an approval without order",
			"approval_id", approval.ID,
			"service_order_id", approval.ServiceOrderID,
		)
		return entity.InvalidVerification(), nil
	}

	companyName, companyCNPJ := approval.CompanyID, ""
	company, err := s.companies.GetByID(ctx, approval.CompanyID)
	if err != nil {
		s.logger.Error("Verification company lookup failed", "error", err, "company_id", approval.CompanyID)
	}
	if company != nil {
		companyName, companyCNPJ = company.Name, company.CNPJ
	}

	approvedAt := approval.RespondedAt
	if approvedAt != nil {
		t := *approvedAt
		approvedAt = &t
	}

	return &entity.PublicVerificationResult{
		IsValid:           true,
		Hash:              approval.VerificationHash,
		CompanyName:       companyName,
		CompanyCNPJ:       companyCNPJ,
		OSProtocol:        order.ID,
		ApprovedAt:        approvedAt,
		TotalValue:        approval.TotalValue,
		CustomerFirstName: entity.FirstName(order.CustomerName),
	}, approval
}
