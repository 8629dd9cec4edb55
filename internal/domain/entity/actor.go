package entity

// Actor is the authenticated staff member performing an operation
type Actor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CompanyID string `json:"company_id"`
}

// IsAuthenticated returns true if the actor carries an identity and a tenant
func (a *Actor) IsAuthenticated() bool {
	return a != nil && a.ID != "" && a.CompanyID != ""
}

// DisplayName returns the actor's name, falling back to its id
func (a *Actor) DisplayName() string {
	if a == nil {
		return ""
	}
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}
