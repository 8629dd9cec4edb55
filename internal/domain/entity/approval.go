package entity

import (
	"math"
	"time"
)

// ApprovalItem is one line of a proposed budget, frozen at issuance
type ApprovalItem struct {
	ID       string  `json:"id,omitempty"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Severity string  `json:"severity,omitempty"`
	Approved bool    `json:"approved"`
}

// ServiceApproval is one approval lifecycle for a service order.
//
// Resolution is nil while the approval is PENDING and holds exactly one of
// RemoteResolution, InPersonResolution or DocumentResolution afterwards.
type ServiceApproval struct {
	ID               string         `json:"id"`
	Token            string         `json:"token"`
	ServiceOrderID   string         `json:"service_order_id"`
	CompanyID        string         `json:"company_id"`
	Type             ApprovalType   `json:"type"`
	Status           ApprovalStatus `json:"status"`
	ItemsSnapshot    []ApprovalItem `json:"items_snapshot"`
	TotalValue       float64        `json:"total_value"`
	Description      string         `json:"description"`
	CreatedAt        time.Time      `json:"created_at"`
	CreatedBy        string         `json:"created_by"`
	RespondedAt      *time.Time     `json:"responded_at,omitempty"`
	RejectionReason  string         `json:"rejection_reason,omitempty"`
	VerificationHash string         `json:"verification_hash,omitempty"`
	Resolution       Resolution     `json:"-"`
}

// IsPending returns true while the approval still awaits a decision
func (a *ServiceApproval) IsPending() bool {
	return a.Status == ApprovalStatusPending
}

// ApprovalMethod returns the resolution method, or "" while pending
func (a *ServiceApproval) ApprovalMethod() ApprovalMethod {
	if a.Resolution == nil {
		return ""
	}
	return a.Resolution.Method()
}

// DigitalSignatureID returns the back-reference to the captured signature, if any
func (a *ServiceApproval) DigitalSignatureID() string {
	switch r := a.Resolution.(type) {
	case *RemoteResolution:
		return r.DigitalSignatureID
	case *InPersonResolution:
		return r.DigitalSignatureID
	}
	return ""
}

// EvidenceID returns the back-reference to the uploaded signed document, if any
func (a *ServiceApproval) EvidenceID() string {
	if r, ok := a.Resolution.(*DocumentResolution); ok {
		return r.EvidenceID
	}
	return ""
}

// Clone returns a deep copy so callers can mutate without touching stored state
func (a *ServiceApproval) Clone() *ServiceApproval {
	c := *a
	c.ItemsSnapshot = CloneItems(a.ItemsSnapshot)
	if a.RespondedAt != nil {
		t := *a.RespondedAt
		c.RespondedAt = &t
	}
	if a.Resolution != nil {
		c.Resolution = a.Resolution.clone()
	}
	return &c
}

// CloneItems deep-copies a list of items
func CloneItems(items []ApprovalItem) []ApprovalItem {
	if items == nil {
		return nil
	}
	out := make([]ApprovalItem, len(items))
	copy(out, items)
	return out
}

// SumItems totals item prices, rounded to cents
func SumItems(items []ApprovalItem) float64 {
	var total float64
	for _, it := range items {
		total += it.Price
	}
	return math.Round(total*100) / 100
}

// Resolution is the method-specific part of a decided approval
type Resolution interface {
	Method() ApprovalMethod
	clone() Resolution
}

// RemoteResolution is a decision taken by the customer through the public link
type RemoteResolution struct {
	DigitalSignatureID string `json:"digital_signature_id,omitempty"`
	ReceiptURL         string `json:"receipt_url,omitempty"`
	IPAddress          string `json:"ip_address,omitempty"`
	UserAgent          string `json:"user_agent,omitempty"`
}

// Method returns REMOTO
func (r *RemoteResolution) Method() ApprovalMethod { return ApprovalMethodRemote }

func (r *RemoteResolution) clone() Resolution { c := *r; return &c }

// InPersonResolution is a consent signed on the shop's device
type InPersonResolution struct {
	DigitalSignatureID string `json:"digital_signature_id"`
}

// Method returns PRESENCIAL
func (r *InPersonResolution) Method() ApprovalMethod { return ApprovalMethodInPerson }

func (r *InPersonResolution) clone() Resolution { c := *r; return &c }

// DocumentResolution is a consent proven by an uploaded signed paper document
type DocumentResolution struct {
	EvidenceID string `json:"evidence_id"`
}

// Method returns PRESENCIAL_DOCUMENTO
func (r *DocumentResolution) Method() ApprovalMethod { return ApprovalMethodDocument }

func (r *DocumentResolution) clone() Resolution { c := *r; return &c }

// ResolutionFields is the flat storage form of a Resolution
type ResolutionFields struct {
	Method             ApprovalMethod
	DigitalSignatureID string
	EvidenceID         string
	ReceiptURL         string
	IPAddress          string
	UserAgent          string
}

// Flatten converts the approval's resolution to its flat storage form
func (a *ServiceApproval) Flatten() ResolutionFields {
	f := ResolutionFields{Method: a.ApprovalMethod()}
	switch r := a.Resolution.(type) {
	case *RemoteResolution:
		f.DigitalSignatureID = r.DigitalSignatureID
		f.ReceiptURL = r.ReceiptURL
		f.IPAddress = r.IPAddress
		f.UserAgent = r.UserAgent
	case *InPersonResolution:
		f.DigitalSignatureID = r.DigitalSignatureID
	case *DocumentResolution:
		f.EvidenceID = r.EvidenceID
	}
	return f
}

// Resolution rebuilds the tagged variant from stored fields; nil when no method is set
func (f ResolutionFields) Resolution() Resolution {
	switch f.Method {
	case ApprovalMethodRemote:
		return &RemoteResolution{
			DigitalSignatureID: f.DigitalSignatureID,
			ReceiptURL:         f.ReceiptURL,
			IPAddress:          f.IPAddress,
			UserAgent:          f.UserAgent,
		}
	case ApprovalMethodInPerson:
		return &InPersonResolution{DigitalSignatureID: f.DigitalSignatureID}
	case ApprovalMethodDocument:
		return &DocumentResolution{EvidenceID: f.EvidenceID}
	}
	return nil
}
