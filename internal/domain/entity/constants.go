package entity

// ApprovalStatus is the lifecycle status of a ServiceApproval
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
)

// ApprovalMethod records how a decision was captured
type ApprovalMethod string

const (
	ApprovalMethodRemote   ApprovalMethod = "REMOTO"
	ApprovalMethodInPerson ApprovalMethod = "PRESENCIAL"
	ApprovalMethodDocument ApprovalMethod = "PRESENCIAL_DOCUMENTO"
)

// ApprovalType identifies what is being approved
type ApprovalType string

// ApprovalTypeBudget is the only approval kind in use: a service-order estimate (orçamento)
const ApprovalTypeBudget ApprovalType = "ORCAMENTO"

// Decision is the customer's answer to an approval request
type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

// Service order statuses touched by the approval flow
const (
	OrderStatusOpen            = "ABERTO"
	OrderStatusAwaitingApprove = "AGUARDANDO_APROVACAO"
	OrderStatusApproved        = "APROVADO"
	OrderStatusRejected        = "RECUSADO"
	OrderStatusInProgress      = "EM_EXECUCAO"
	OrderStatusFinished        = "FINALIZADO"
)

// Item severity levels shown to the customer
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
)

// Audit actions emitted by the approval core
const (
	AuditApprovalRequested   = "APPROVAL_REQUESTED"
	AuditCustomerApproved    = "CUSTOMER_APPROVED"
	AuditCustomerRejected    = "CUSTOMER_REJECTED"
	AuditSignatureCaptured   = "SIGNATURE_CAPTURED"
	AuditInPersonApproval    = "IN_PERSON_APPROVAL"
	AuditPhysicalApproval    = "PHYSICAL_APPROVAL"
	AuditVerificationAttempt = "VERIFICATION_ATTEMPT"
)

// Audited entity types
const (
	EntityTypeApproval     = "SERVICE_APPROVAL"
	EntityTypeSignature    = "DIGITAL_SIGNATURE"
	EntityTypeVerification = "PUBLIC_VERIFICATION"
)

// Actor labels used in order status history
const (
	ActorCustomerWeb     = "Cliente (via web)"
	ActorSuffixInPerson  = " (Presencial)"
	ActorSuffixDocument  = " (Documento Físico)"
	DefaultCustomerActor = "Cliente"
)
