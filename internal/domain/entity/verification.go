package entity

import (
	"strings"
	"time"
)

// PublicVerificationResult is the redacted proof of authenticity shown on the public
// verification page. It must never carry the customer's full name or phone, line
// items or technician identity.
type PublicVerificationResult struct {
	IsValid           bool       `json:"is_valid"`
	Hash              string     `json:"hash,omitempty"`
	CompanyName       string     `json:"company_name,omitempty"`
	CompanyCNPJ       string     `json:"company_cnpj,omitempty"`
	OSProtocol        string     `json:"os_protocol,omitempty"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
	TotalValue        float64    `json:"total_value,omitempty"`
	CustomerFirstName string     `json:"customer_first_name,omitempty"`
}

// InvalidVerification is the negative verification answer
func InvalidVerification() *PublicVerificationResult {
	return &PublicVerificationResult{IsValid: false}
}

// FirstName returns the first whitespace-separated token of a name
func FirstName(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
