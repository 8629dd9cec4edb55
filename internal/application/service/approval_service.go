package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/providencia/approvals/internal/application/port"
	appwf "github.com/providencia/approvals/internal/application/workflow"
	"github.com/providencia/approvals/internal/domain/entity"
	"github.com/providencia/approvals/internal/domain/fingerprint"
	domainwf "github.com/providencia/approvals/internal/domain/workflow"
	"github.com/providencia/approvals/pkg/utils"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

const tokenPrefixLen = 8

// DecisionInput is a customer's answer submitted through the public approval link
type DecisionInput struct {
	Token       string
	Decision    entity.Decision
	Reason      string
	SignatureID string
	ReceiptURL  string
	IPAddress   string
	UserAgent   string

	// Actor is optional; without it the decision is attributed to the customer
	Actor *entity.Actor
}

// SignatureInput is a signature drawn by the customer on the public approval page
type SignatureInput struct {
	SignedName     string
	SignatureImage string
	Confirmed      bool
}

// InPersonInput is the consent captured on the shop's device
type InPersonInput struct {
	SignedName     string
	SignatureImage string
	Confirmed      bool
}

// ApprovalService issues approvals and records customer decisions
type ApprovalService interface {
	CreateApprovalRequest(ctx context.Context, actor *entity.Actor, orderID string, items []entity.ApprovalItem, description string) (*entity.ServiceApproval, error)
	ProcessApprovalDecision(ctx context.Context, in DecisionInput) (*entity.ServiceApproval, error)
	CaptureSignature(ctx context.Context, token string, in SignatureInput) (*entity.DigitalSignature, error)
	GetApprovalByToken(ctx context.Context, token string) (*entity.ServiceApproval, error)
	GetLatestApproval(ctx context.Context, actor *entity.Actor, orderID string) (*entity.ServiceApproval, error)
	ListApprovals(ctx context.Context, actor *entity.Actor, orderID string) ([]*entity.ServiceApproval, error)
	RegisterInPersonApproval(ctx context.Context, actor *entity.Actor, orderID string, items []entity.ApprovalItem, in InPersonInput) (*entity.ServiceApproval, error)
	RegisterPhysicalApproval(ctx context.Context, actor *entity.Actor, orderID string, items []entity.ApprovalItem, doc entity.DocumentUpload) (*entity.ServiceApproval, error)
}

// ApprovalServiceDeps groups the collaborators of the approval service
type ApprovalServiceDeps struct {
	Approvals  port.ApprovalRepository
	Signatures port.SignatureRepository
	Evidence   port.EvidenceRepository
	Orders     port.OrderRepository
	TxManager  port.TransactionManager
	Files      port.FileStorage
	Audit      port.AuditSink
	Logger     Logger
}

// ApprovalOption configures the approval service
type ApprovalOption func(*approvalServiceImpl)

// WithClock overrides the time source
func WithClock(now func() time.Time) ApprovalOption {
	return func(s *approvalServiceImpl) {
		s.now = now
	}
}

// WithIDGenerator overrides the generator for approval, signature and evidence ids
func WithIDGenerator(gen func() string) ApprovalOption {
	return func(s *approvalServiceImpl) {
		s.newID = gen
	}
}

// WithTokenGenerator overrides the generator for public approval tokens
func WithTokenGenerator(gen func() string) ApprovalOption {
	return func(s *approvalServiceImpl) {
		s.newToken = gen
	}
}

type approvalServiceImpl struct {
	approvals  port.ApprovalRepository
	signatures port.SignatureRepository
	evidence   port.EvidenceRepository
	orders     port.OrderRepository
	txManager  port.TransactionManager
	files      port.FileStorage
	audit      port.AuditSink
	logger     Logger

	now      func() time.Time
	newID    func() string
	newToken func() string
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(deps ApprovalServiceDeps, opts ...ApprovalOption) ApprovalService {
	s := &approvalServiceImpl{
		approvals:  deps.Approvals,
		signatures: deps.Signatures,
		evidence:   deps.Evidence,
		orders:     deps.Orders,
		txManager:  deps.TxManager,
		files:      deps.Files,
		audit:      deps.Audit,
		logger:     deps.Logger,
		now:        time.Now,
		newID:      uuid.NewString,
		newToken:   newToken,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.audit == nil {
		s.audit = nopSink{}
	}

	return s
}

// newToken returns 32 hex chars of a random (v4) uuid
func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CreateApprovalRequest issues a remote approval for a service order
func (s *approvalServiceImpl) CreateApprovalRequest(ctx context.Context, actor *entity.Actor, orderID string, items []entity.ApprovalItem, description string) (*entity.ServiceApproval, error) {
	if !actor.IsAuthenticated() {
		return nil, ErrUnauthenticated
	}
	if err := validateIssue(orderID, items); err != nil {
		return nil, err
	}

	now := s.now()
	approval := &entity.ServiceApproval{
		ID:             s.newID(),
		ServiceOrderID: orderID,
		CompanyID:      actor.CompanyID,
		Type:           entity.ApprovalTypeBudget,
		Status:         entity.ApprovalStatusPending,
		ItemsSnapshot:  entity.CloneItems(items),
		TotalValue:     entity.SumItems(items),
		Description:    utils.SanitizeString(description),
		CreatedAt:      now,
		CreatedBy:      actor.ID,
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		order, err := s.loadOrder(txCtx, actor, orderID)
		if err != nil {
			return err
		}

		token, err := s.uniqueToken(txCtx, approval.ID)
		if err != nil {
			return err
		}
		approval.Token = token

		if err := s.approvals.Save(txCtx, approval); err != nil {
			return fmt.Errorf("save approval: %w", err)
		}

		if order.Status != entity.OrderStatusAwaitingApprove {
			order.ChangeStatus(entity.OrderStatusAwaitingApprove, actor.DisplayName(), "Orçamento enviado para aprovação do cliente", now)
			if err := s.orders.Update(txCtx, order); err != nil {
				return fmt.Errorf("update order: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create approval request", "error", err, "service_order_id", orderID)
		return nil, err
	}

	s.audit.Record(ctx, entity.AuditEntry{
		Action:     entity.AuditApprovalRequested,
		EntityType: entity.EntityTypeApproval,
		EntityID:   approval.ID,
		CompanyID:  approval.CompanyID,
		ActorID:    actor.ID,
		ActorName:  actor.DisplayName(),
		Details:    fmt.Sprintf("Solicitação de aprovação enviada para a OS %s", orderID),
		Changes: map[string]interface{}{
			"service_order_id": orderID,
			"total_value":      approval.TotalValue,
			"item_count":       len(approval.ItemsSnapshot),
		},
	})

	s.logger.Info("Approval requested", "approval_id", approval.ID, "service_order_id", orderID, "total_value", approval.TotalValue)
	return approval, nil
}

// ProcessApprovalDecision consumes an approval token exactly once
func (s *approvalServiceImpl) ProcessApprovalDecision(ctx context.Context, in DecisionInput) (*entity.ServiceApproval, error) {
	token := strings.TrimSpace(in.Token)
	if token == "" {
		return nil, fmt.Errorf("%w: token is required", ErrInsufficientInput)
	}
	trigger, ok := appwf.TriggerFor(in.Decision)
	if !ok {
		return nil, fmt.Errorf("%w: decision must be %s or %s", ErrInsufficientInput, entity.DecisionApproved, entity.DecisionRejected)
	}

	approved := in.Decision == entity.DecisionApproved
	reason := utils.SanitizeString(strings.TrimSpace(in.Reason))

	var (
		approval        *entity.ServiceApproval
		orderPropagated bool
		actorLabel      = entity.ActorCustomerWeb
		auditActorID    string
		auditActorName  = entity.DefaultCustomerActor
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		approval, err = s.approvalByToken(txCtx, token)
		if err != nil {
			return err
		}

		// Staff acting on behalf of the customer are credited only inside their own tenant
		if in.Actor.IsAuthenticated() && in.Actor.CompanyID == approval.CompanyID {
			actorLabel = in.Actor.DisplayName()
			auditActorID, auditActorName = in.Actor.ID, in.Actor.DisplayName()
		}

		machine, err := appwf.MachineFor(approval)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAlreadyProcessed, err)
		}
		if _, err := machine.Fire(txCtx, trigger); err != nil {
			if errors.Is(err, domainwf.ErrInvalidTransition) {
				return fmt.Errorf("%w: approval is %s", ErrAlreadyProcessed, approval.Status)
			}
			return fmt.Errorf("apply %s: %w", trigger, err)
		}

		signatureID := strings.TrimSpace(in.SignatureID)
		switch {
		case signatureID != "":
			if err := s.checkSignature(txCtx, signatureID, approval.ID); err != nil {
				return err
			}
		case approved:
			if signatureID, err = s.capturedSignatureID(txCtx, approval.ID); err != nil {
				return err
			}
		}

		// The hash binds the pre-decision facts of the approval
		hash := ""
		if approved && signatureID != "" {
			hash = fingerprint.VerificationHash(approval.ID, approval.ServiceOrderID, approval.TotalValue, approval.CompanyID, signatureID)
		}

		now := s.now()
		approval.Status = entity.ApprovalStatus(machine.State())
		approval.RespondedAt = &now
		approval.VerificationHash = hash
		approval.Resolution = &entity.RemoteResolution{
			DigitalSignatureID: signatureID,
			ReceiptURL:         in.ReceiptURL,
			IPAddress:          in.IPAddress,
			UserAgent:          in.UserAgent,
		}
		if !approved {
			approval.RejectionReason = reason
		}

		historyReason := reason
		if approved {
			historyReason = "Aprovado pelo cliente"
			if signatureID != "" {
				historyReason = "Aprovado com assinatura digital"
			}
		}

		// The order goes first: when the approval lives outside the SQL
		// transaction, a failed conditional write still rolls the order back.
		orderPropagated, err = s.propagateToOrder(txCtx, approval, approved, actorLabel, historyReason, now)
		if err != nil {
			return err
		}

		if err := s.approvals.SaveDecision(txCtx, approval); err != nil {
			if errors.Is(err, port.ErrApprovalNotPending) {
				return fmt.Errorf("%w: approval decided concurrently", ErrAlreadyProcessed)
			}
			return fmt.Errorf("save approval: %w", err)
		}
		return nil
	})
	if err != nil {
		if !isClientError(err) {
			s.logger.Error("Failed to process approval decision", "error", err, "token_prefix", tokenPrefix(token))
		}
		return nil, err
	}

	action, verb := entity.AuditCustomerRejected, "recusou"
	if approved {
		action, verb = entity.AuditCustomerApproved, "aprovou"
	}

	changes := map[string]interface{}{
		"token_prefix":     tokenPrefix(token),
		"decision":         string(in.Decision),
		"hash_generated":   approval.VerificationHash != "",
		"order_propagated": orderPropagated,
	}
	if !approved && approval.RejectionReason != "" {
		changes["reason"] = approval.RejectionReason
	}

	s.audit.Record(ctx, entity.AuditEntry{
		Action:     action,
		EntityType: entity.EntityTypeApproval,
		EntityID:   approval.ID,
		CompanyID:  approval.CompanyID,
		ActorID:    auditActorID,
		ActorName:  auditActorName,
		Details:    fmt.Sprintf("Cliente %s o orçamento da OS %s via link (token %s...)", verb, approval.ServiceOrderID, tokenPrefix(token)),
		Changes:    changes,
	})

	s.logger.Info("Approval decision processed",
		"approval_id", approval.ID,
		"decision", in.Decision,
		"hash_generated", approval.VerificationHash != "",
	)
	return approval, nil
}

// CaptureSignature stores the signature a customer draws before deciding
func (s *approvalServiceImpl) CaptureSignature(ctx context.Context, token string, in SignatureInput) (*entity.DigitalSignature, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: token is required", ErrInsufficientInput)
	}
	if err := validateSignature(in.SignedName, in.SignatureImage, in.Confirmed); err != nil {
		return nil, err
	}

	var (
		approval *entity.ServiceApproval
		sig      *entity.DigitalSignature
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		approval, err = s.approvalByToken(txCtx, token)
		if err != nil {
			return err
		}
		if !approval.IsPending() {
			return fmt.Errorf("%w: approval is %s", ErrAlreadyProcessed, approval.Status)
		}

		existing, err := s.signatures.GetByApprovalID(txCtx, approval.ID)
		if err != nil {
			return fmt.Errorf("get signature: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("%w: signature already captured", ErrAlreadyProcessed)
		}

		sig, err = s.createSignature(txCtx, approval.ID, in.SignedName, in.SignatureImage)
		return err
	})
	if err != nil {
		if !isClientError(err) {
			s.logger.Error("Failed to capture signature", "error", err, "token_prefix", tokenPrefix(token))
		}
		return nil, err
	}

	s.audit.Record(ctx, entity.AuditEntry{
		Action:     entity.AuditSignatureCaptured,
		EntityType: entity.EntityTypeSignature,
		EntityID:   sig.ID,
		CompanyID:  approval.CompanyID,
		ActorName:  sig.SignedName,
		Details:    fmt.Sprintf("Assinatura digital capturada para a OS %s", approval.ServiceOrderID),
		Changes: map[string]interface{}{
			"service_approval_id": approval.ID,
			"token_prefix":        tokenPrefix(token),
		},
	})

	return sig, nil
}

// GetApprovalByToken returns the approval behind a public link
func (s *approvalServiceImpl) GetApprovalByToken(ctx context.Context, token string) (*entity.ServiceApproval, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: token is required", ErrInsufficientInput)
	}

	approval, err := s.approvals.GetByToken(ctx, token)
	if err != nil {
		s.logger.Error("Failed to get approval by token", "error", err, "token_prefix", tokenPrefix(token))
		return nil, err
	}
	if approval == nil {
		return nil, fmt.Errorf("%w: no approval for token", ErrNotFound)
	}
	return approval, nil
}

// GetLatestApproval returns the authoritative approval of an order: the one created last
func (s *approvalServiceImpl) GetLatestApproval(ctx context.Context, actor *entity.Actor, orderID string) (*entity.ServiceApproval, error) {
	if !actor.IsAuthenticated() {
		return nil, ErrUnauthenticated
	}
	if _, err := s.loadOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}

	approval, err := s.approvals.GetLatestByOrderID(ctx, orderID)
	if err != nil {
		s.logger.Error("Failed to get latest approval", "error", err, "service_order_id", orderID)
		return nil, err
	}
	if approval == nil {
		return nil, fmt.Errorf("%w: order %s has no approval", ErrNotFound, orderID)
	}
	return approval, nil
}

// ListApprovals returns every approval of an order, newest first
func (s *approvalServiceImpl) ListApprovals(ctx context.Context, actor *entity.Actor, orderID string) ([]*entity.ServiceApproval, error) {
	if !actor.IsAuthenticated() {
		return nil, ErrUnauthenticated
	}
	if _, err := s.loadOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}

	approvals, err := s.approvals.ListByOrderID(ctx, orderID)
	if err != nil {
		s.logger.Error("Failed to list approvals", "error", err, "service_order_id", orderID)
		return nil, err
	}
	return approvals, nil
}

// RegisterInPersonApproval records a consent signed at the counter. The
// approval is created already APPROVED and hashed.
func (s *approvalServiceImpl) RegisterInPersonApproval(ctx context.Context, actor *entity.Actor, orderID string, items []entity.ApprovalItem, in InPersonInput) (*entity.ServiceApproval, error) {
	if !actor.IsAuthenticated() {
		return nil, ErrUnauthenticated
	}
	if err := validateIssue(orderID, items); err != nil {
		return nil, err
	}
	if err := validateSignature(in.SignedName, in.SignatureImage, in.Confirmed); err != nil {
		return nil, err
	}

	now := s.now()
	approval := s.newResolvedApproval(actor, orderID, items, now)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		order, err := s.loadOrder(txCtx, actor, orderID)
		if err != nil {
			return err
		}

		token, err := s.uniqueToken(txCtx, approval.ID)
		if err != nil {
			return err
		}
		approval.Token = token

		sig, err := s.createSignature(txCtx, approval.ID, in.SignedName, in.SignatureImage)
		if err != nil {
			return err
		}

		approval.Resolution = &entity.InPersonResolution{DigitalSignatureID: sig.ID}
		approval.VerificationHash = fingerprint.VerificationHash(approval.ID, approval.ServiceOrderID, approval.TotalValue, approval.CompanyID, sig.ID)

		if err := s.approvals.Save(txCtx, approval); err != nil {
			return fmt.Errorf("save approval: %w", err)
		}

		order.ApplyDecision(true, approval.TotalValue, actor.DisplayName()+entity.ActorSuffixInPerson, "Aprovado presencialmente com assinatura digital", now)
		if err := s.orders.Update(txCtx, order); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		return nil
	})
	if err != nil {
		if !isClientError(err) {
			s.logger.Error("Failed to register in-person approval", "error", err, "service_order_id", orderID)
		}
		return nil, err
	}

	s.audit.Record(ctx, entity.AuditEntry{
		Action:     entity.AuditInPersonApproval,
		EntityType: entity.EntityTypeApproval,
		EntityID:   approval.ID,
		CompanyID:  approval.CompanyID,
		ActorID:    actor.ID,
		ActorName:  actor.DisplayName(),
		Details:    fmt.Sprintf("Aprovação presencial registrada para a OS %s", orderID),
		Changes: map[string]interface{}{
			"service_order_id":     orderID,
			"signed_name":          strings.TrimSpace(in.SignedName),
			"total_value":          approval.TotalValue,
			"digital_signature_id": approval.DigitalSignatureID(),
			"hash_generated":       true,
		},
	})

	s.logger.Info("In-person approval registered", "approval_id", approval.ID, "service_order_id", orderID)
	return approval, nil
}

// RegisterPhysicalApproval records a consent proven by an uploaded signed paper
// document. No signature exists on this path, so no verification hash is derived.
func (s *approvalServiceImpl) RegisterPhysicalApproval(ctx context.Context, actor *entity.Actor, orderID string, items []entity.ApprovalItem, doc entity.DocumentUpload) (*entity.ServiceApproval, error) {
	if !actor.IsAuthenticated() {
		return nil, ErrUnauthenticated
	}
	if err := validateIssue(orderID, items); err != nil {
		return nil, err
	}
	if doc.IsEmpty() {
		return nil, fmt.Errorf("%w: signed document is required", ErrInsufficientInput)
	}

	now := s.now()
	approval := s.newResolvedApproval(actor, orderID, items, now)

	var ev *entity.Evidence
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		order, err := s.loadOrder(txCtx, actor, orderID)
		if err != nil {
			return err
		}

		token, err := s.uniqueToken(txCtx, approval.ID)
		if err != nil {
			return err
		}
		approval.Token = token

		ev, err = s.createEvidence(txCtx, actor, approval, doc, now)
		if err != nil {
			return err
		}

		approval.Resolution = &entity.DocumentResolution{EvidenceID: ev.ID}
		if err := s.approvals.Save(txCtx, approval); err != nil {
			return fmt.Errorf("save approval: %w", err)
		}

		order.ApplyDecision(true, approval.TotalValue, actor.DisplayName()+entity.ActorSuffixDocument, "Aprovado mediante documento físico assinado", now)
		if err := s.orders.Update(txCtx, order); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		return nil
	})
	if err != nil {
		if !isClientError(err) {
			s.logger.Error("Failed to register physical approval", "error", err, "service_order_id", orderID)
		}
		return nil, err
	}

	s.audit.Record(ctx, entity.AuditEntry{
		Action:     entity.AuditPhysicalApproval,
		EntityType: entity.EntityTypeApproval,
		EntityID:   approval.ID,
		CompanyID:  approval.CompanyID,
		ActorID:    actor.ID,
		ActorName:  actor.DisplayName(),
		Details:    fmt.Sprintf("Aprovação por documento físico registrada para a OS %s", orderID),
		Changes: map[string]interface{}{
			"service_order_id": orderID,
			"evidence_id":      ev.ID,
			"document_ref":     ev.DocumentRef,
			"total_value":      approval.TotalValue,
		},
	})

	s.logger.Info("Physical approval registered", "approval_id", approval.ID, "service_order_id", orderID, "evidence_id", ev.ID)
	return approval, nil
}

func (s *approvalServiceImpl) newResolvedApproval(actor *entity.Actor, orderID string, items []entity.ApprovalItem, now time.Time) *entity.ServiceApproval {
	respondedAt := now
	return &entity.ServiceApproval{
		ID:             s.newID(),
		ServiceOrderID: orderID,
		CompanyID:      actor.CompanyID,
		Type:           entity.ApprovalTypeBudget,
		Status:         entity.ApprovalStatusApproved,
		ItemsSnapshot:  entity.CloneItems(items),
		TotalValue:     entity.SumItems(items),
		CreatedAt:      now,
		CreatedBy:      actor.ID,
		RespondedAt:    &respondedAt,
	}
}

// loadOrder resolves an order and checks it belongs to the actor's company
func (s *approvalServiceImpl) loadOrder(ctx context.Context, actor *entity.Actor, orderID string) (*entity.ServiceOrder, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if order.CompanyID != actor.CompanyID {
		return nil, fmt.Errorf("%w: %s", ErrTenantMismatch, orderID)
	}
	return order, nil
}

// propagateToOrder mirrors a remote decision on the order. A missing order
// does not fail the decision.
func (s *approvalServiceImpl) propagateToOrder(ctx context.Context, approval *entity.ServiceApproval, approved bool, actor, reason string, at time.Time) (bool, error) {
	order, err := s.orders.GetByID(ctx, approval.ServiceOrderID)
	if err != nil {
		return false, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		s.logger.Warn("Service order not found, decision kept without order update",
			"approval_id", approval.ID,
			"service_order_id", approval.ServiceOrderID,
		)
		return false, nil
	}

	order.ApplyDecision(approved, approval.TotalValue, actor, reason, at)
	if err := s.orders.Update(ctx, order); err != nil {
		return false, fmt.Errorf("update order: %w", err)
	}
	return true, nil
}

// approvalByToken resolves the token through the index, then re-reads the
// approval by id so the status is current even when the index lags
func (s *approvalServiceImpl) approvalByToken(ctx context.Context, token string) (*entity.ServiceApproval, error) {
	hit, err := s.approvals.GetByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("get approval by token: %w", err)
	}
	if hit == nil {
		return nil, fmt.Errorf("%w: no approval for token", ErrNotFound)
	}

	approval, err := s.approvals.GetByID(ctx, hit.ID)
	if err != nil {
		return nil, fmt.Errorf("get approval: %w", err)
	}
	if approval == nil {
		return nil, fmt.Errorf("%w: no approval for token", ErrNotFound)
	}
	return approval, nil
}

// checkSignature requires a client-supplied signature to exist and belong to the approval
func (s *approvalServiceImpl) checkSignature(ctx context.Context, signatureID, approvalID string) error {
	sig, err := s.signatures.GetByID(ctx, signatureID)
	if err != nil {
		return fmt.Errorf("get signature: %w", err)
	}
	if sig == nil || sig.ServiceApprovalID != approvalID {
		return fmt.Errorf("%w: signature %s does not belong to this approval", ErrInsufficientInput, signatureID)
	}
	return nil
}

func (s *approvalServiceImpl) capturedSignatureID(ctx context.Context, approvalID string) (string, error) {
	sig, err := s.signatures.GetByApprovalID(ctx, approvalID)
	if err != nil {
		return "", fmt.Errorf("get signature: %w", err)
	}
	if sig == nil {
		return "", nil
	}
	return sig.ID, nil
}

func (s *approvalServiceImpl) createSignature(ctx context.Context, approvalID, signedName, image string) (*entity.DigitalSignature, error) {
	sig := &entity.DigitalSignature{
		ID:                  s.newID(),
		ServiceApprovalID:   approvalID,
		SignatureImage:      image,
		SignedName:          strings.TrimSpace(signedName),
		ConfirmationChecked: true,
		SignedAt:            s.now(),
	}

	imagePath, err := s.storeSignatureImage(ctx, sig)
	if err != nil {
		return nil, err
	}
	sig.ImagePath = imagePath

	if err := s.signatures.Create(ctx, sig); err != nil {
		return nil, fmt.Errorf("create signature: %w", err)
	}
	return sig, nil
}

// storeSignatureImage writes a data-URL signature to file storage. Payloads
// that are not data URLs are kept inline only.
func (s *approvalServiceImpl) storeSignatureImage(ctx context.Context, sig *entity.DigitalSignature) (string, error) {
	if s.files == nil {
		return "", nil
	}

	mimeType, data, err := utils.ParseDataURL(sig.SignatureImage)
	if err != nil {
		s.logger.Info("Signature image kept inline", "signature_id", sig.ID, "reason", err.Error())
		return "", nil
	}

	rel := path.Join("signatures", sig.ServiceApprovalID, sig.ID+utils.ExtensionForMime(mimeType))
	if err := s.files.Save(ctx, rel, data); err != nil {
		return "", fmt.Errorf("store signature image: %w", err)
	}
	return rel, nil
}

func (s *approvalServiceImpl) createEvidence(ctx context.Context, actor *entity.Actor, approval *entity.ServiceApproval, doc entity.DocumentUpload, now time.Time) (*entity.Evidence, error) {
	ev := &entity.Evidence{
		ID:                s.newID(),
		ServiceApprovalID: approval.ID,
		ServiceOrderID:    approval.ServiceOrderID,
		DocumentRef:       strings.TrimSpace(doc.Reference),
		FileName:          utils.SanitizeString(path.Base(doc.FileName)),
		MimeType:          doc.MimeType,
		Size:              int64(len(doc.Content)),
		UploadedAt:        now,
		UploadedBy:        actor.ID,
	}

	if len(doc.Content) > 0 {
		if s.files == nil {
			return nil, errors.New("file storage is not configured")
		}
		ext := path.Ext(ev.FileName)
		if ext == "" {
			ext = utils.ExtensionForMime(doc.MimeType)
		}
		rel := path.Join("documents", approval.ServiceOrderID, ev.ID+ext)
		if err := s.files.Save(ctx, rel, doc.Content); err != nil {
			return nil, fmt.Errorf("store document: %w", err)
		}
		ev.DocumentRef = rel
	}

	if err := s.evidence.Create(ctx, ev); err != nil {
		return nil, fmt.Errorf("create evidence: %w", err)
	}
	return ev, nil
}

// uniqueToken draws tokens until one is unused and differs from the approval id
func (s *approvalServiceImpl) uniqueToken(ctx context.Context, approvalID string) (string, error) {
	const maxAttempts = 3
	for i := 0; i < maxAttempts; i++ {
		token := s.newToken()
		if token == "" || token == approvalID {
			continue
		}
		existing, err := s.approvals.GetByToken(ctx, token)
		if err != nil {
			return "", fmt.Errorf("check token: %w", err)
		}
		if existing == nil {
			return token, nil
		}
	}
	return "", errors.New("could not generate a unique approval token")
}

func validateIssue(orderID string, items []entity.ApprovalItem) error {
	if strings.TrimSpace(orderID) == "" {
		return fmt.Errorf("%w: service order id is required", ErrInsufficientInput)
	}
	if len(items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrInsufficientInput)
	}
	for _, it := range items {
		if err := utils.ValidateAmount(it.Price); err != nil {
			return fmt.Errorf("%w: item %q: %v", ErrInsufficientInput, it.Name, err)
		}
	}
	return nil
}

func validateSignature(signedName, image string, confirmed bool) error {
	switch {
	case strings.TrimSpace(signedName) == "":
		return fmt.Errorf("%w: signed name is required", ErrInsufficientInput)
	case strings.TrimSpace(image) == "":
		return fmt.Errorf("%w: signature image is required", ErrInsufficientInput)
	case !confirmed:
		return fmt.Errorf("%w: confirmation is required", ErrInsufficientInput)
	}
	return nil
}

// isClientError reports errors caused by the request rather than the system
func isClientError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyProcessed) ||
		errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrInsufficientInput) ||
		errors.Is(err, ErrTenantMismatch)
}

func tokenPrefix(token string) string {
	if len(token) <= tokenPrefixLen {
		return token
	}
	return token[:tokenPrefixLen]
}

type nopSink struct{}

func (nopSink) Record(context.Context, entity.AuditEntry) {}
