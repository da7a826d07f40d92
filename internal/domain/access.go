package domain

import (
	"strings"
	"time"
)

// Permission is a global catalog entry identified by a "<scope>.<action>" code.
type Permission struct {
	Code        string
	Scope       string
	Description string
}

// NewPermission builds a catalog entry, deriving the scope from the code.
func NewPermission(code, description string) Permission {
	return Permission{Code: code, Scope: ScopeOf(code), Description: description}
}

// ScopeOf returns the product scope of a permission code: everything before the
// first dot, or the whole code when it has none.
func ScopeOf(code string) string {
	scope, _, _ := strings.Cut(code, ".")
	return scope
}

// Role groups permission codes within a single tenant. Names are unique per tenant.
type Role struct {
	ID          string
	TenantID    string
	Name        string
	Permissions []string
}

// RoleAssignment links a platform user to a role.
type RoleAssignment struct {
	UserID     string
	RoleID     string
	AssignedAt time.Time
}
