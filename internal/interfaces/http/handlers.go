package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/providencia/approvals/internal/application/service"
	"github.com/providencia/approvals/internal/application/task"
	"github.com/providencia/approvals/internal/domain/entity"
)

// maxDocumentSize bounds uploaded signed documents
const maxDocumentSize = 10 << 20

// Handlers contains all HTTP request handlers
type Handlers struct {
	approvals    service.ApprovalService
	verification service.VerificationService
	auditTrail   service.AuditTrailService
	links        linkBuilder
	verifyDelay  time.Duration
	health       HealthFunc
	logger       Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, logger Logger) *Handlers {
	return &Handlers{
		approvals:    deps.Approvals,
		verification: deps.Verification,
		auditTrail:   deps.AuditTrail,
		links:        linkBuilder{base: strings.TrimRight(deps.PublicBaseURL, "/")},
		verifyDelay:  deps.VerifyDelay,
		health:       deps.Health,
		logger:       logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// ItemRequest is one budget line in a request body
type ItemRequest struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Severity string  `json:"severity"`
}

// CreateApprovalRequest is the body of POST /api/v1/orders/:id/approvals
type CreateApprovalRequest struct {
	Items       []ItemRequest `json:"items"`
	Description string        `json:"description"`
}

// InPersonRequest is the body of POST /api/v1/orders/:id/approvals/in-person
type InPersonRequest struct {
	Items          []ItemRequest `json:"items"`
	SignedName     string        `json:"signed_name"`
	SignatureImage string        `json:"signature_image"`
	Confirmed      bool          `json:"confirmed"`
}

// SignatureRequest is the body of POST /public/approvals/:token/signature
type SignatureRequest struct {
	SignedName     string `json:"signed_name"`
	SignatureImage string `json:"signature_image"`
	Confirmed      bool   `json:"confirmed"`
}

// DecisionRequest is the body of POST /public/approvals/:token/decision
type DecisionRequest struct {
	Decision    string `json:"decision"`
	Reason      string `json:"reason"`
	SignatureID string `json:"signature_id"`
	ReceiptURL  string `json:"receipt_url"`
}

// ApprovalResponse is the staff view of an approval
type ApprovalResponse struct {
	ID                 string                `json:"id"`
	ServiceOrderID     string                `json:"service_order_id"`
	Type               entity.ApprovalType   `json:"type"`
	Status             entity.ApprovalStatus `json:"status"`
	Items              []entity.ApprovalItem `json:"items"`
	TotalValue         float64               `json:"total_value"`
	Description        string                `json:"description,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
	CreatedBy          string                `json:"created_by,omitempty"`
	RespondedAt        *time.Time            `json:"responded_at,omitempty"`
	RejectionReason    string                `json:"rejection_reason,omitempty"`
	ApprovalMethod     entity.ApprovalMethod `json:"approval_method,omitempty"`
	DigitalSignatureID string                `json:"digital_signature_id,omitempty"`
	EvidenceID         string                `json:"evidence_id,omitempty"`
	VerificationHash   string                `json:"verification_hash,omitempty"`
	ApprovalLink       string                `json:"approval_link,omitempty"`
	VerificationLink   string                `json:"verification_link,omitempty"`
}

// PublicApprovalResponse is what the customer sees behind the approval link
type PublicApprovalResponse struct {
	Token            string                `json:"token"`
	Status           entity.ApprovalStatus `json:"status"`
	Items            []entity.ApprovalItem `json:"items"`
	TotalValue       float64               `json:"total_value"`
	Description      string                `json:"description,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	RespondedAt      *time.Time            `json:"responded_at,omitempty"`
	VerificationLink string                `json:"verification_link,omitempty"`
}

// SignatureResponse is returned after a signature is captured
type SignatureResponse struct {
	ID       string    `json:"id"`
	SignedAt time.Time `json:"signed_at"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	healthy, details := true, interface{}(nil)
	if h.health != nil {
		healthy, details = h.health(c.Request.Context())
	}

	response := HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: details,
	}
	status := http.StatusOK
	if !healthy {
		response.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, Response{Success: healthy, Data: response})
}

// CreateApproval handles POST /api/v1/orders/:id/approvals
func (h *Handlers) CreateApproval(c *gin.Context) {
	var req CreateApprovalRequest
	if !h.bindJSON(c, &req) {
		return
	}

	approval, err := h.approvals.CreateApprovalRequest(c.Request.Context(), actorFrom(c), c.Param("id"), toItems(req.Items), req.Description)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: h.approvalResponse(approval)})
}

// ListApprovals handles GET /api/v1/orders/:id/approvals
func (h *Handlers) ListApprovals(c *gin.Context) {
	approvals, err := h.approvals.ListApprovals(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]ApprovalResponse, 0, len(approvals))
	for _, a := range approvals {
		out = append(out, h.approvalResponse(a))
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: out})
}

// GetLatestApproval handles GET /api/v1/orders/:id/approvals/latest
func (h *Handlers) GetLatestApproval(c *gin.Context) {
	approval, err := h.approvals.GetLatestApproval(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: h.approvalResponse(approval)})
}

// RegisterInPerson handles POST /api/v1/orders/:id/approvals/in-person
func (h *Handlers) RegisterInPerson(c *gin.Context) {
	var req InPersonRequest
	if !h.bindJSON(c, &req) {
		return
	}

	approval, err := h.approvals.RegisterInPersonApproval(c.Request.Context(), actorFrom(c), c.Param("id"), toItems(req.Items), service.InPersonInput{
		SignedName:     req.SignedName,
		SignatureImage: req.SignatureImage,
		Confirmed:      req.Confirmed,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: h.approvalResponse(approval)})
}

// RegisterDocument handles POST /api/v1/orders/:id/approvals/document.
//
// The multipart form carries "items" (JSON array) and either a "document"
// file or a "reference" field pointing at an already stored document.
func (h *Handlers) RegisterDocument(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxDocumentSize+1<<20)

	var items []ItemRequest
	if raw := c.PostForm("items"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "items must be a JSON array"})
			return
		}
	}

	doc := entity.DocumentUpload{Reference: c.PostForm("reference")}

	if header, err := c.FormFile("document"); err == nil {
		if header.Size > maxDocumentSize {
			c.JSON(http.StatusRequestEntityTooLarge, Response{Success: false, Error: "document too large"})
			return
		}
		f, err := header.Open()
		if err != nil {
			h.writeError(c, err)
			return
		}
		defer f.Close()

		content, err := io.ReadAll(f)
		if err != nil {
			h.writeError(c, err)
			return
		}
		doc.FileName = header.Filename
		doc.MimeType = header.Header.Get("Content-Type")
		doc.Content = content
	} else if !errors.Is(err, http.ErrMissingFile) {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid multipart form"})
		return
	}

	approval, err := h.approvals.RegisterPhysicalApproval(c.Request.Context(), actorFrom(c), c.Param("id"), toItems(items), doc)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: h.approvalResponse(approval)})
}

// GetAuditTrail handles GET /api/v1/audit/:entityType/:entityId
func (h *Handlers) GetAuditTrail(c *gin.Context) {
	entries, err := h.auditTrail.ListEntityTrail(c.Request.Context(), actorFrom(c), c.Param("entityType"), c.Param("entityId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if entries == nil {
		entries = []*entity.AuditEntry{}
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// GetPublicApproval handles GET /public/approvals/:token
func (h *Handlers) GetPublicApproval(c *gin.Context) {
	approval, err := h.approvals.GetApprovalByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := PublicApprovalResponse{
		Token:       approval.Token,
		Status:      approval.Status,
		Items:       approval.ItemsSnapshot,
		TotalValue:  approval.TotalValue,
		Description: approval.Description,
		CreatedAt:   approval.CreatedAt,
		RespondedAt: approval.RespondedAt,
	}
	if approval.VerificationHash != "" {
		resp.VerificationLink = h.links.verification(approval.VerificationHash)
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: resp})
}

// CaptureSignature handles POST /public/approvals/:token/signature
func (h *Handlers) CaptureSignature(c *gin.Context) {
	var req SignatureRequest
	if !h.bindJSON(c, &req) {
		return
	}

	sig, err := h.approvals.CaptureSignature(c.Request.Context(), c.Param("token"), service.SignatureInput{
		SignedName:     req.SignedName,
		SignatureImage: req.SignatureImage,
		Confirmed:      req.Confirmed,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: SignatureResponse{ID: sig.ID, SignedAt: sig.SignedAt}})
}

// SubmitDecision handles POST /public/approvals/:token/decision
func (h *Handlers) SubmitDecision(c *gin.Context) {
	var req DecisionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	approval, err := h.approvals.ProcessApprovalDecision(c.Request.Context(), service.DecisionInput{
		Token:       c.Param("token"),
		Decision:    entity.Decision(strings.ToUpper(strings.TrimSpace(req.Decision))),
		Reason:      req.Reason,
		SignatureID: req.SignatureID,
		ReceiptURL:  req.ReceiptURL,
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := PublicApprovalResponse{
		Token:       approval.Token,
		Status:      approval.Status,
		Items:       approval.ItemsSnapshot,
		TotalValue:  approval.TotalValue,
		Description: approval.Description,
		CreatedAt:   approval.CreatedAt,
		RespondedAt: approval.RespondedAt,
	}
	if approval.VerificationHash != "" {
		resp.VerificationLink = h.links.verification(approval.VerificationHash)
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: resp})
}

// VerifyDocument handles GET /public/verify?hash=...
//
// The answer is delayed by the configured latency. When the client goes away
// first, the pending result is discarded; the verification itself still runs
// to completion and is audited.
func (h *Handlers) VerifyDocument(c *gin.Context) {
	hash := c.Query("hash")
	reqCtx := c.Request.Context()
	workCtx := context.WithoutCancel(reqCtx)

	pending := task.Start(h.verifyDelay, func() *entity.PublicVerificationResult {
		return h.verification.VerifyDocument(workCtx, hash)
	})

	result, err := pending.Await(reqCtx)
	if err != nil {
		h.logger.Info("Verification request abandoned", "error", err)
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

func (h *Handlers) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return false
	}
	return true
}

// writeError maps service errors to HTTP status codes
func (h *Handlers) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, service.ErrNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrAlreadyProcessed):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrUnauthenticated):
		status, message = http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrInsufficientInput):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrTenantMismatch):
		status, message = http.StatusForbidden, err.Error()
	default:
		h.logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
	}

	c.JSON(status, Response{Success: false, Error: message})
}

func (h *Handlers) approvalResponse(a *entity.ServiceApproval) ApprovalResponse {
	resp := ApprovalResponse{
		ID:                 a.ID,
		ServiceOrderID:     a.ServiceOrderID,
		Type:               a.Type,
		Status:             a.Status,
		Items:              a.ItemsSnapshot,
		TotalValue:         a.TotalValue,
		Description:        a.Description,
		CreatedAt:          a.CreatedAt,
		CreatedBy:          a.CreatedBy,
		RespondedAt:        a.RespondedAt,
		RejectionReason:    a.RejectionReason,
		ApprovalMethod:     a.ApprovalMethod(),
		DigitalSignatureID: a.DigitalSignatureID(),
		EvidenceID:         a.EvidenceID(),
		VerificationHash:   a.VerificationHash,
	}
	if a.IsPending() {
		resp.ApprovalLink = h.links.approval(a.Token)
	}
	if a.VerificationHash != "" {
		resp.VerificationLink = h.links.verification(a.VerificationHash)
	}
	return resp
}

func toItems(in []ItemRequest) []entity.ApprovalItem {
	if len(in) == 0 {
		return nil
	}
	out := make([]entity.ApprovalItem, len(in))
	for i, it := range in {
		out[i] = entity.ApprovalItem{
			ID:       it.ID,
			Name:     it.Name,
			Price:    it.Price,
			Severity: it.Severity,
		}
	}
	return out
}

type linkBuilder struct {
	base string
}

func (l linkBuilder) approval(token string) string {
	return l.base + "/aprovacao?token=" + url.QueryEscape(token)
}

func (l linkBuilder) verification(hash string) string {
	return l.base + "/verificar?hash=" + url.QueryEscape(hash)
}
