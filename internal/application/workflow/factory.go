package workflow

import (
	"fmt"

	"github.com/providencia/approvals/internal/domain/entity"
	domainwf "github.com/providencia/approvals/internal/domain/workflow"
)

// BuildApprovalStateMachine creates a state machine configured for the approval lifecycle.
//
//	PENDING --APPROVE--> APPROVED
//	PENDING --REJECT---> REJECTED
//
// APPROVED and REJECTED are terminal.
func BuildApprovalStateMachine(initialState domainwf.State) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	builder.Configure(domainwf.StatePending).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerReject, domainwf.StateRejected)

	return builder.Build(initialState)
}

// MachineFor builds a state machine positioned at the approval's stored status
func MachineFor(approval *entity.ServiceApproval) (domainwf.StateMachine, error) {
	state := domainwf.State(approval.Status)
	if !state.IsValid() {
		return nil, fmt.Errorf("%w: %q", domainwf.ErrInvalidTransition, approval.Status)
	}
	return BuildApprovalStateMachine(state), nil
}

// TriggerFor maps a customer decision to its workflow trigger
func TriggerFor(decision entity.Decision) (domainwf.Trigger, bool) {
	switch decision {
	case entity.DecisionApproved:
		return domainwf.TriggerApprove, true
	case entity.DecisionRejected:
		return domainwf.TriggerReject, true
	default:
		return "", false
	}
}
