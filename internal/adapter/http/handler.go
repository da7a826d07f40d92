package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/controlplane/internal/app"
	"github.com/neomorfeo/controlplane/internal/domain"
)

const timeFormat = "2006-01-02T15:04:05Z"

// Services bundles what the API handlers call into.
type Services struct {
	Tenants       *app.TenantService
	Access        *app.AccessService
	Entities      domain.EntityRepository
	Machine       *app.StateMachine
	Commerce      *app.CommerceService
	Gate          *app.Gate
	Entitlements  domain.Entitlements
	Audit         *app.AuditTrail
	WebhookSecret string
}

// Register adds all control-plane routes to the Huma API.
func Register(api huma.API, svc Services) {
	registerTenants(api, svc)
	registerAccess(api, svc)
	registerWorkflow(api, svc)
	registerCommerce(api, svc)
}

// TenantResponse is the API representation of a tenant.
type TenantResponse struct {
	ID        string `json:"id" doc:"Unique identifier"`
	Name      string `json:"name" doc:"Display name"`
	Slug      string `json:"slug" doc:"URL-friendly identifier"`
	BundleID  string `json:"bundle_id" doc:"Purchased bundle"`
	Active    bool   `json:"active" doc:"False once deactivated"`
	CreatedAt string `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt string `json:"updated_at" doc:"Last update timestamp (ISO 8601)"`
}

func toTenantResponse(t domain.Tenant) TenantResponse {
	return TenantResponse{
		ID:        t.ID,
		Name:      t.Name,
		Slug:      t.Slug,
		BundleID:  t.BundleID,
		Active:    t.Active,
		CreatedAt: t.CreatedAt.Format(timeFormat),
		UpdatedAt: t.UpdatedAt.Format(timeFormat),
	}
}

type CreateTenantInput struct {
	Body struct {
		Name     string `json:"name" minLength:"1" maxLength:"255" doc:"Display name"`
		Slug     string `json:"slug" minLength:"1" maxLength:"100" pattern:"^[a-z0-9]+(?:-[a-z0-9]+)*$" doc:"URL-friendly identifier (lowercase, hyphens)"`
		BundleID string `json:"bundle_id" minLength:"1" doc:"Bundle the tenant purchases"`
	}
}

type TenantOutput struct {
	Body TenantResponse
}

type TenantIDInput struct {
	ID string `path:"id" doc:"Tenant ID"`
}

type ListTenantsInput struct {
	ActiveOnly bool `query:"active_only" required:"false" doc:"Hide deactivated tenants"`
	Limit      int  `query:"limit" required:"false" default:"50" minimum:"1" maximum:"500" doc:"Max results"`
	Offset     int  `query:"offset" required:"false" default:"0" minimum:"0" doc:"Pagination offset"`
}

type ListTenantsOutput struct {
	Body []TenantResponse
}

func registerTenants(api huma.API, svc Services) {
	huma.Register(api, huma.Operation{
		OperationID: "create-tenant",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants",
		Summary:     "Provision a tenant",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *CreateTenantInput) (*TenantOutput, error) {
		if err := requireSuperuser(ctx, "tenants.Tenant"); err != nil {
			return nil, toHumaError(ctx, err)
		}
		tenant, err := svc.Tenants.Create(ctx, input.Body.Name, input.Body.Slug, input.Body.BundleID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &TenantOutput{Body: toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{id}",
		Summary:     "Get a tenant by ID",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *TenantIDInput) (*TenantOutput, error) {
		rc := domain.RequestFrom(ctx)
		if !rc.Actor.Superuser && (rc.Tenant == nil || rc.Tenant.ID != input.ID) {
			return nil, toHumaError(ctx, domain.ErrTenantNotFound)
		}
		tenant, err := svc.Tenants.GetByID(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &TenantOutput{Body: toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tenants",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants",
		Summary:     "List tenants",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *ListTenantsInput) (*ListTenantsOutput, error) {
		if err := requireSuperuser(ctx, "tenants.Tenant"); err != nil {
			return nil, toHumaError(ctx, err)
		}
		tenants, err := svc.Tenants.List(ctx, domain.ListFilter{
			ActiveOnly: input.ActiveOnly,
			Limit:      input.Limit,
			Offset:     input.Offset,
		})
		if err != nil {
			return nil, toHumaError(ctx, err)
		}

		resp := make([]TenantResponse, len(tenants))
		for i, t := range tenants {
			resp[i] = toTenantResponse(t)
		}
		return &ListTenantsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "deactivate-tenant",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{id}/deactivate",
		Summary:     "Deactivate a tenant",
		Description: "Tenants are never hard-deleted. Deactivating twice is a no-op.",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *TenantIDInput) (*TenantOutput, error) {
		if err := requireSuperuser(ctx, "tenants.Tenant:"+input.ID); err != nil {
			return nil, toHumaError(ctx, err)
		}
		tenant, err := svc.Tenants.Deactivate(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &TenantOutput{Body: toTenantResponse(tenant)}, nil
	})
}

// requireSuperuser guards platform administration routes.
func requireSuperuser(ctx context.Context, resource string) error {
	actor := domain.RequestFrom(ctx).Actor
	if actor.Authenticated() && actor.Superuser {
		return nil
	}
	return &domain.AuthorizationDeniedError{
		Actor:    actor.Label(),
		Action:   domain.ActionAdminDaemon,
		Resource: resource,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

var notFoundErrs = []error{
	domain.ErrTenantNotFound,
	domain.ErrBundleNotFound,
	domain.ErrRoleNotFound,
	domain.ErrEntityNotFound,
	domain.ErrCustomerNotFound,
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(ctx context.Context, err error) error {
	var (
		deniedErr  *domain.AuthorizationDeniedError
		slugErr    *domain.SlugConflictError
		roleErr    *domain.RoleConflictError
		trErr      *domain.TransitionError
		unknownErr *domain.UnknownKindError
		statusErr  *domain.InvalidStatusError
	)

	switch {
	case errors.As(err, &deniedErr):
		return huma.Error403Forbidden(deniedErr.Error())
	case errors.Is(err, domain.ErrMissingTenantContext), errors.Is(err, domain.ErrTenantInactive):
		return huma.Error403Forbidden(err.Error())
	case errors.As(err, &slugErr):
		return huma.Error409Conflict(slugErr.Error())
	case errors.As(err, &roleErr):
		return huma.Error409Conflict(roleErr.Error())
	case errors.Is(err, domain.ErrConcurrentTransition):
		return huma.Error409Conflict(err.Error())
	case errors.As(err, &trErr):
		return huma.Error422UnprocessableEntity(trErr.Error())
	case errors.As(err, &unknownErr):
		return huma.Error422UnprocessableEntity(unknownErr.Error())
	case errors.As(err, &statusErr):
		return huma.Error422UnprocessableEntity(statusErr.Error())
	case errors.Is(err, domain.ErrNotPayable):
		return huma.Error422UnprocessableEntity(err.Error())
	}
	for _, target := range notFoundErrs {
		if errors.Is(err, target) {
			return huma.Error404NotFound(target.Error())
		}
	}

	slog.ErrorContext(ctx, "request failed", "error", err, "request_id", domain.RequestFrom(ctx).RequestID)
	return huma.Error500InternalServerError("internal server error")
}
