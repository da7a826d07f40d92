package domain

// Responsibility is the coarse business classification used by the policy gate.
type Responsibility string

const (
	ResponsibilityNone              Responsibility = ""
	ResponsibilitySecurityAnalyst   Responsibility = "security_analyst"
	ResponsibilityOperationsManager Responsibility = "operations_manager"
	ResponsibilityFinance           Responsibility = "finance"
	ResponsibilitySales             Responsibility = "sales"
	ResponsibilityCustomer          Responsibility = "customer"
)

// Responsibilities lists every known responsibility tag except None.
var Responsibilities = []Responsibility{
	ResponsibilitySecurityAnalyst,
	ResponsibilityOperationsManager,
	ResponsibilityFinance,
	ResponsibilitySales,
	ResponsibilityCustomer,
}

// ParseResponsibility maps a raw tag to a known responsibility. Unknown tags
// resolve to ResponsibilityNone so that a typo can never widen access.
func ParseResponsibility(raw string) Responsibility {
	for _, r := range Responsibilities {
		if string(r) == raw {
			return r
		}
	}
	return ResponsibilityNone
}

// Actor is the identity performing an action. The zero value is anonymous.
type Actor struct {
	UserID         string
	Email          string
	Superuser      bool
	Staff          bool
	Responsibility Responsibility
	// DefaultTenant is the slug used when a request names no tenant.
	DefaultTenant string
}

// SystemActor identifies platform-initiated work such as payment webhooks.
var SystemActor = Actor{Email: "system"}

// Authenticated reports whether the actor is a signed-in user.
func (a Actor) Authenticated() bool {
	return a.UserID != ""
}

// Label is how the actor appears in audit payloads.
func (a Actor) Label() string {
	if a.Email != "" {
		return a.Email
	}
	if a.UserID != "" {
		return a.UserID
	}
	return "anonymous"
}

// Action kinds understood by the policy gate. Domains may pass other kinds,
// such as INCIDENT_ESCALATE, which are matched against rule action markers.
const (
	ActionView        = "VIEW"
	ActionCreate      = "CREATE"
	ActionUpdate      = "UPDATE"
	ActionDelete      = "DELETE"
	ActionAdminDaemon = "ADMIN_DAEMON"
)
