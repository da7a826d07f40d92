package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrTenantNotFound       = errors.New("tenant not found")
	ErrBundleNotFound       = errors.New("bundle not found")
	ErrRoleNotFound         = errors.New("role not found")
	ErrEntityNotFound       = errors.New("entity not found")
	ErrCustomerNotFound     = errors.New("customer not found")
	ErrMissingTenantContext = errors.New("no tenant in request context")
	ErrConcurrentTransition = errors.New("entity status changed concurrently")
	ErrTenantInactive       = errors.New("tenant is deactivated")
	ErrNotPayable           = errors.New("entity is neither an order nor a subscription")
)

// SlugConflictError is returned when a tenant slug is already in use.
type SlugConflictError struct {
	Slug string
}

func (e *SlugConflictError) Error() string {
	return fmt.Sprintf("slug %q is already in use", e.Slug)
}

// RoleConflictError is returned when a role name already exists within a tenant.
type RoleConflictError struct {
	TenantID string
	Name     string
}

func (e *RoleConflictError) Error() string {
	return fmt.Sprintf("role %q already exists in tenant %q", e.Name, e.TenantID)
}

// TransitionError is returned when a requested status change is not a declared edge.
type TransitionError struct {
	Kind Kind
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %q to %q", e.Kind, e.From, e.To)
}

// UnknownKindError is returned when an entity's kind declares no transition table
// and ungoverned transitions are not allowed.
type UnknownKindError struct {
	Kind Kind
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("kind %q has no transition table", e.Kind)
}

// InvalidStatusError is returned when an entity of a governed kind is created
// in a status its kind does not declare.
type InvalidStatusError struct {
	Kind   Kind
	Status Status
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("%q is not a %s state", e.Status, e.Kind)
}

// AuthorizationDeniedError is returned when a policy or entitlement check fails.
type AuthorizationDeniedError struct {
	Actor    string
	Action   string
	Resource string
}

func (e *AuthorizationDeniedError) Error() string {
	return fmt.Sprintf("%s may not %s %s", e.Actor, e.Action, e.Resource)
}

// HandlerFailure records one subscriber that failed while handling an event.
type HandlerFailure struct {
	Event   EventName
	Handler int // registration index
	Err     error
}

// DispatchError aggregates subscriber failures for one published event. It is a
// warning: the publisher's state change has already been committed.
type DispatchError struct {
	Failures []HandlerFailure
}

func (e *DispatchError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s handler #%d: %v", f.Event, f.Handler, f.Err))
	}
	return fmt.Sprintf("%d event handler(s) failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes the individual handler errors to errors.Is and errors.As.
func (e *DispatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
