package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/controlplane/internal/app"
	"github.com/neomorfeo/controlplane/internal/domain"
)

// EntityResponse is the API representation of a workflowable entity.
type EntityResponse struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenant_id"`
	Resource  string            `json:"resource" doc:"<domain>.<Type>:<id>"`
	Kind      string            `json:"kind" doc:"Transition table tag"`
	Status    string            `json:"status"`
	Version   int               `json:"version"`
	Attrs     map[string]string `json:"attributes,omitempty"`
	UpdatedAt string            `json:"updated_at"`
}

func toEntityResponse(e domain.Entity) EntityResponse {
	return EntityResponse{
		ID:        e.ID(),
		TenantID:  e.TenantID(),
		Resource:  e.Resource(),
		Kind:      string(e.Kind()),
		Status:    string(e.Status()),
		Version:   e.Version(),
		Attrs:     e.Attributes(),
		UpdatedAt: formatTime(e.UpdatedAt()),
	}
}

// TransitionResponse reports a committed status change. Warnings lists
// subscribers that failed after the commit; the change itself stands.
type TransitionResponse struct {
	Entity   EntityResponse `json:"entity"`
	From     string         `json:"from"`
	To       string         `json:"to"`
	AuditID  string         `json:"audit_id,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
}

func toTransitionResponse(res app.TransitionResult) TransitionResponse {
	return TransitionResponse{
		Entity:   toEntityResponse(res.Entity),
		From:     string(res.From),
		To:       string(res.To),
		AuditID:  res.Entry.ID,
		Warnings: warningMessages(res.Warnings),
	}
}

// warningMessages flattens joined and dispatch errors into one line each.
func warningMessages(err error) []string {
	switch e := err.(type) {
	case nil:
		return nil
	case *domain.DispatchError:
		out := make([]string, 0, len(e.Failures))
		for _, f := range e.Failures {
			out = append(out, fmt.Sprintf("%s handler #%d: %v", f.Event, f.Handler, f.Err))
		}
		return out
	case interface{ Unwrap() []error }:
		var out []string
		for _, inner := range e.Unwrap() {
			out = append(out, warningMessages(inner)...)
		}
		return out
	}
	return []string{err.Error()}
}

type EntityIDInput struct {
	ID string `path:"id" doc:"Entity ID"`
}

type EntityOutput struct {
	Body EntityResponse
}

type TransitionInput struct {
	ID   string `path:"id" doc:"Entity ID"`
	Body struct {
		Status string `json:"status" minLength:"1" doc:"Target status"`
		Reason string `json:"reason,omitempty" maxLength:"500" doc:"Free-form justification recorded on the audit trail"`
	}
}

type TransitionOutput struct {
	Body TransitionResponse
}

func registerWorkflow(api huma.API, svc Services) {
	huma.Register(api, huma.Operation{
		OperationID: "get-entity",
		Method:      http.MethodGet,
		Path:        "/api/v1/entities/{id}",
		Summary:     "Get a workflowable entity",
		Tags:        []string{"Workflow"},
	}, func(ctx context.Context, input *EntityIDInput) (*EntityOutput, error) {
		entity, err := scopedEntity(ctx, svc, input.ID, domain.ActionView)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &EntityOutput{Body: toEntityResponse(entity)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-entity",
		Method:      http.MethodPost,
		Path:        "/api/v1/entities/{id}/transitions",
		Summary:     "Move an entity to a new status",
		Description: "The change is validated against the entity kind's transition table, " +
			"written with its audit entry in one transaction, and announced as lifecycle_transition.",
		Tags: []string{"Workflow"},
	}, func(ctx context.Context, input *TransitionInput) (*TransitionOutput, error) {
		entity, err := scopedEntity(ctx, svc, input.ID, domain.ActionUpdate)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		actor := domain.RequestFrom(ctx).Actor
		res, err := svc.Machine.Transition(ctx, entity, domain.Status(input.Body.Status), actor, input.Body.Reason)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &TransitionOutput{Body: toTransitionResponse(res)}, nil
	})
}

// scopedEntity loads an entity visible to the caller and passes it through the
// policy gate. Entities of other tenants look absent.
func scopedEntity(ctx context.Context, svc Services, id, action string) (domain.Entity, error) {
	rc := domain.RequestFrom(ctx)
	if !rc.Actor.Authenticated() {
		return domain.Entity{}, &domain.AuthorizationDeniedError{
			Actor:    rc.Actor.Label(),
			Action:   action,
			Resource: "entity:" + id,
		}
	}
	if rc.Tenant == nil && !rc.Actor.Superuser {
		return domain.Entity{}, domain.ErrMissingTenantContext
	}

	entity, err := svc.Entities.Get(ctx, id)
	if err != nil {
		return domain.Entity{}, err
	}
	if rc.Tenant != nil && entity.TenantID() != rc.Tenant.ID {
		return domain.Entity{}, fmt.Errorf("%s: %w", id, domain.ErrEntityNotFound)
	}

	// Reads are checked without writing POLICY_GRANTED.
	if action == domain.ActionView {
		if !svc.Gate.Enforce(ctx, rc.Actor, action, entity.Label()) {
			return domain.Entity{}, &domain.AuthorizationDeniedError{Actor: rc.Actor.Label(), Action: action, Resource: entity.Label()}
		}
		return entity, nil
	}
	if err := svc.Gate.Authorize(ctx, rc.Actor, action, entity.Label()); err != nil {
		return domain.Entity{}, err
	}
	return entity, nil
}
