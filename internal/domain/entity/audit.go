package entity

import "time"

// AuditEntry is one append-only record of the compliance trail
type AuditEntry struct {
	ID         int64                  `json:"id"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	CompanyID  string                 `json:"company_id,omitempty"`
	ActorID    string                 `json:"actor_id,omitempty"`
	ActorName  string                 `json:"actor_name,omitempty"`
	Details    string                 `json:"details"`
	Changes    map[string]interface{} `json:"changes,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}
