package entity

import "time"

// OrderItem is a line item of a service order
type OrderItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Severity string  `json:"severity,omitempty"`
	Approved bool    `json:"approved"`
}

// StatusChange is one entry of a service order's status history
type StatusChange struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
	ChangedBy string    `json:"changed_by"`
	Reason    string    `json:"reason,omitempty"`
}

// ServiceOrder is the projection of a repair ticket the approval flow reads and updates
type ServiceOrder struct {
	ID             string         `json:"id"`
	CompanyID      string         `json:"company_id"`
	CustomerName   string         `json:"customer_name"`
	CustomerPhone  string         `json:"customer_phone"`
	TechnicianName string         `json:"technician_name,omitempty"`
	Status         string         `json:"status"`
	Items          []OrderItem    `json:"items"`
	StatusHistory  []StatusChange `json:"status_history"`
	TotalValue     float64        `json:"total_value"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ApplyDecision records a transition in the order's history, marks every item
// with the decision and sets the total (approval total, or zero on rejection)
func (o *ServiceOrder) ApplyDecision(approved bool, total float64, actor, reason string, at time.Time) {
	to := OrderStatusRejected
	if approved {
		to = OrderStatusApproved
	}

	o.ChangeStatus(to, actor, reason, at)

	for i := range o.Items {
		o.Items[i].Approved = approved
	}

	if approved {
		o.TotalValue = total
	} else {
		o.TotalValue = 0
	}
}

// ChangeStatus appends a history entry and moves the order to a new status
func (o *ServiceOrder) ChangeStatus(to, actor, reason string, at time.Time) {
	o.StatusHistory = append(o.StatusHistory, StatusChange{
		From:      o.Status,
		To:        to,
		ChangedAt: at,
		ChangedBy: actor,
		Reason:    reason,
	})
	o.Status = to
	o.UpdatedAt = at
}
