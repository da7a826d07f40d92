package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/controlplane/internal/domain"
)

type CreateBundleInput struct {
	Body struct {
		Name     string          `json:"name" minLength:"1" doc:"Display name"`
		Products []string        `json:"products,omitempty" doc:"Product scopes enabled wholesale, e.g. erp"`
		Features map[string]bool `json:"features,omitempty" doc:"Individual permission codes enabled outside the products"`
	}
}

type BundleOutput struct {
	Body struct {
		ID       string          `json:"id"`
		Name     string          `json:"name"`
		Products []string        `json:"products"`
		Features map[string]bool `json:"features"`
	}
}

type RegisterPermissionInput struct {
	Body struct {
		Code        string `json:"code" minLength:"3" pattern:"^[a-z_]+\\.[a-z_]+$" doc:"Permission code <scope>.<action>"`
		Description string `json:"description,omitempty"`
	}
}

type PermissionOutput struct {
	Body struct {
		Code        string `json:"code"`
		Scope       string `json:"scope"`
		Description string `json:"description,omitempty"`
	}
}

type CreateRoleInput struct {
	TenantID string `path:"id" doc:"Tenant ID"`
	Body     struct {
		Name        string   `json:"name" minLength:"1" doc:"Unique within the tenant"`
		Permissions []string `json:"permissions" doc:"Catalog permission codes"`
	}
}

type RoleOutput struct {
	Body struct {
		ID          string   `json:"id"`
		TenantID    string   `json:"tenant_id"`
		Name        string   `json:"name"`
		Permissions []string `json:"permissions"`
	}
}

type AssignRoleInput struct {
	RoleID string `path:"id" doc:"Role ID"`
	Body   struct {
		UserID string `json:"user_id" minLength:"1"`
	}
}

type AssignmentOutput struct {
	Body struct {
		UserID     string `json:"user_id"`
		RoleID     string `json:"role_id"`
		AssignedAt string `json:"assigned_at"`
	}
}

type EntitlementInput struct {
	Code string `path:"code" doc:"Permission code, e.g. erp.view_project"`
}

type EntitlementOutput struct {
	Body struct {
		Code     string  `json:"code"`
		TenantID *string `json:"tenant_id"`
		Allowed  bool    `json:"allowed"`
	}
}

type PolicyCheckInput struct {
	Body struct {
		Action   string `json:"action" minLength:"1" doc:"VIEW, CREATE, UPDATE, DELETE or a domain action such as INCIDENT_ESCALATE"`
		Resource string `json:"resource" minLength:"1" doc:"Resource label <domain>.<Type>[:<id>]"`
	}
}

type PolicyCheckOutput struct {
	Body struct {
		Allowed bool `json:"allowed"`
	}
}

type ListAuditInput struct {
	TenantID string `query:"tenant_id" required:"false"`
	Action   string `query:"action" required:"false"`
	Limit    int    `query:"limit" required:"false" default:"50" minimum:"1" maximum:"500"`
	Offset   int    `query:"offset" required:"false" default:"0" minimum:"0"`
}

// AuditEntryResponse is the API representation of an audit entry.
type AuditEntryResponse struct {
	ID        string         `json:"id"`
	Seq       int64          `json:"seq"`
	Timestamp string         `json:"timestamp"`
	ActorID   *string        `json:"actor_id"`
	TenantID  *string        `json:"tenant_id"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource"`
	Payload   map[string]any `json:"payload,omitempty"`
	IPAddress *string        `json:"ip_address,omitempty"`
}

type ListAuditOutput struct {
	Body []AuditEntryResponse
}

func registerAccess(api huma.API, svc Services) {
	huma.Register(api, huma.Operation{
		OperationID: "create-bundle",
		Method:      http.MethodPost,
		Path:        "/api/v1/bundles",
		Summary:     "Create an entitlement bundle",
		Tags:        []string{"Access"},
	}, func(ctx context.Context, input *CreateBundleInput) (*BundleOutput, error) {
		if err := requireSuperuser(ctx, "access.Bundle"); err != nil {
			return nil, toHumaError(ctx, err)
		}
		bundle, err := svc.Access.CreateBundle(ctx, input.Body.Name, input.Body.Products, input.Body.Features)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		out := &BundleOutput{}
		out.Body.ID = bundle.ID
		out.Body.Name = bundle.Name
		out.Body.Products = bundle.Products
		out.Body.Features = bundle.Features
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "register-permission",
		Method:      http.MethodPost,
		Path:        "/api/v1/permissions",
		Summary:     "Add or update a permission catalog entry",
		Tags:        []string{"Access"},
	}, func(ctx context.Context, input *RegisterPermissionInput) (*PermissionOutput, error) {
		if err := requireSuperuser(ctx, "access.Permission"); err != nil {
			return nil, toHumaError(ctx, err)
		}
		perm, err := svc.Access.RegisterPermission(ctx, input.Body.Code, input.Body.Description)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		out := &PermissionOutput{}
		out.Body.Code = perm.Code
		out.Body.Scope = perm.Scope
		out.Body.Description = perm.Description
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-role",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{id}/roles",
		Summary:     "Create a tenant role",
		Tags:        []string{"Access"},
	}, func(ctx context.Context, input *CreateRoleInput) (*RoleOutput, error) {
		if err := requireSuperuser(ctx, "access.Role"); err != nil {
			return nil, toHumaError(ctx, err)
		}
		if _, err := svc.Tenants.GetByID(ctx, input.TenantID); err != nil {
			return nil, toHumaError(ctx, err)
		}
		role, err := svc.Access.CreateRole(ctx, input.TenantID, input.Body.Name, input.Body.Permissions)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		out := &RoleOutput{}
		out.Body.ID = role.ID
		out.Body.TenantID = role.TenantID
		out.Body.Name = role.Name
		out.Body.Permissions = role.Permissions
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-role",
		Method:      http.MethodPost,
		Path:        "/api/v1/roles/{id}/assignments",
		Summary:     "Assign a role to a user",
		Tags:        []string{"Access"},
	}, func(ctx context.Context, input *AssignRoleInput) (*AssignmentOutput, error) {
		if err := requireSuperuser(ctx, "access.Role:"+input.RoleID); err != nil {
			return nil, toHumaError(ctx, err)
		}
		a, err := svc.Access.AssignRole(ctx, input.Body.UserID, input.RoleID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		out := &AssignmentOutput{}
		out.Body.UserID = a.UserID
		out.Body.RoleID = a.RoleID
		out.Body.AssignedAt = formatTime(a.AssignedAt)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "check-entitlement",
		Method:      http.MethodGet,
		Path:        "/api/v1/entitlements/{code}",
		Summary:     "Check whether the caller holds a permission in the active tenant",
		Tags:        []string{"Access"},
	}, func(ctx context.Context, input *EntitlementInput) (*EntitlementOutput, error) {
		rc := domain.RequestFrom(ctx)
		out := &EntitlementOutput{}
		out.Body.Code = input.Code
		out.Body.TenantID = rc.TenantID()
		out.Body.Allowed = svc.Entitlements.HasPermission(ctx, rc.Actor, input.Code, rc.Tenant)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "check-policy",
		Method:      http.MethodPost,
		Path:        "/api/v1/policy/check",
		Summary:     "Ask the policy gate whether the caller may act on a resource",
		Tags:        []string{"Access"},
	}, func(ctx context.Context, input *PolicyCheckInput) (*PolicyCheckOutput, error) {
		actor := domain.RequestFrom(ctx).Actor
		out := &PolicyCheckOutput{}
		out.Body.Allowed = svc.Gate.Enforce(ctx, actor, input.Body.Action, input.Body.Resource)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-audit",
		Method:      http.MethodGet,
		Path:        "/api/v1/audit",
		Summary:     "Read the audit trail, newest first",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *ListAuditInput) (*ListAuditOutput, error) {
		entries, err := svc.Audit.List(ctx, domain.RequestFrom(ctx).Actor, domain.AuditFilter{
			TenantID: input.TenantID,
			Action:   input.Action,
			Limit:    input.Limit,
			Offset:   input.Offset,
		})
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		resp := make([]AuditEntryResponse, len(entries))
		for i, e := range entries {
			resp[i] = AuditEntryResponse{
				ID:        e.ID,
				Seq:       e.Seq,
				Timestamp: e.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
				ActorID:   e.ActorID,
				TenantID:  e.TenantID,
				Action:    e.Action,
				Resource:  e.Resource,
				Payload:   e.Payload,
				IPAddress: e.IPAddress,
			}
		}
		return &ListAuditOutput{Body: resp}, nil
	})
}
