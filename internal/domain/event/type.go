package event

// Type identifies the type of domain event. Values match the audit action
// recorded for the event.
type Type string

const (
	TypeApprovalRequested   Type = "APPROVAL_REQUESTED"
	TypeCustomerApproved    Type = "CUSTOMER_APPROVED"
	TypeCustomerRejected    Type = "CUSTOMER_REJECTED"
	TypeSignatureCaptured   Type = "SIGNATURE_CAPTURED"
	TypeInPersonApproval    Type = "IN_PERSON_APPROVAL"
	TypePhysicalApproval    Type = "PHYSICAL_APPROVAL"
	TypeVerificationAttempt Type = "VERIFICATION_ATTEMPT"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeApprovalRequested,
		TypeCustomerApproved,
		TypeCustomerRejected,
		TypeSignatureCaptured,
		TypeInPersonApproval,
		TypePhysicalApproval,
		TypeVerificationAttempt:
		return true
	default:
		return false
	}
}

// All returns every known event type, used to subscribe catch-all handlers
func All() []Type {
	return []Type{
		TypeApprovalRequested,
		TypeCustomerApproved,
		TypeCustomerRejected,
		TypeSignatureCaptured,
		TypeInPersonApproval,
		TypePhysicalApproval,
		TypeVerificationAttempt,
	}
}
