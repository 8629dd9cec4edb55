package entity

import "time"

// DigitalSignature is the captured proof of a customer's assent. Created once, never changed.
type DigitalSignature struct {
	ID                  string    `json:"id"`
	ServiceApprovalID   string    `json:"service_approval_id"`
	SignatureImage      string    `json:"signature_image"`
	ImagePath           string    `json:"image_path,omitempty"`
	SignedName          string    `json:"signed_name"`
	ConfirmationChecked bool      `json:"confirmation_checked"`
	SignedAt            time.Time `json:"signed_at"`
}
