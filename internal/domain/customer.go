package domain

// Stage is a customer's position in the CRM lifecycle.
type Stage string

const (
	StageLead       Stage = "lead"
	StageProspect   Stage = "prospect"
	StageActive     Stage = "active"
	StageSubscriber Stage = "subscriber"
	StageChurned    Stage = "churned"
)

// Customer is the CRM record attached to a user within a tenant.
type Customer struct {
	ID       string
	TenantID string
	UserID   string
	Name     string
	Stage    Stage
}

// Resource returns the audit resource reference of the customer.
func (c Customer) Resource() string {
	return ResourceRef("crm", "Client", c.ID)
}
