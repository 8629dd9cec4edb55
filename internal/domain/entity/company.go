package entity

import "time"

// Company is a tenant
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CNPJ      string    `json:"cnpj,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
