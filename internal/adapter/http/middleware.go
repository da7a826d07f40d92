package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// TenantHeader names the tenant explicitly, by ID or slug.
const TenantHeader = "X-Tenant-ID"

// Claims is the bearer token payload issued by the identity provider. The
// subject is the platform user ID.
type Claims struct {
	Email          string `json:"email,omitempty"`
	Superuser      bool   `json:"is_superuser,omitempty"`
	Staff          bool   `json:"is_staff,omitempty"`
	Responsibility string `json:"responsibility,omitempty"`
	DefaultTenant  string `json:"default_tenant,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts verified claims into the domain identity. Unknown
// responsibility tags resolve to none.
func (c *Claims) Actor() domain.Actor {
	return domain.Actor{
		UserID:         c.Subject,
		Email:          c.Email,
		Superuser:      c.Superuser,
		Staff:          c.Staff,
		Responsibility: domain.ParseResponsibility(c.Responsibility),
		DefaultTenant:  c.DefaultTenant,
	}
}

// TenantLookup resolves an active tenant by ID or slug; nil means no match.
type TenantLookup interface {
	Lookup(ctx context.Context, key string) (*domain.Tenant, error)
}

var errInvalidToken = errors.New("invalid bearer token")

// ParseToken verifies an HS256 bearer token and returns its claims.
func ParseToken(raw string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Join(errInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errInvalidToken
	}
	return claims, nil
}

// RequestContext builds the huma middleware that resolves the actor, the
// active tenant and the client address, and stores them as a
// domain.RequestContext. Requests without a bearer token run as the anonymous
// actor; a token that fails verification is rejected with 401.
func RequestContext(api huma.API, secret []byte, tenants TenantLookup) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		var actor domain.Actor
		if raw, ok := bearerToken(ctx.Header("Authorization")); ok {
			claims, err := ParseToken(raw, secret)
			if err != nil {
				_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, errInvalidToken.Error())
				return
			}
			actor = claims.Actor()
		}

		tenant, err := resolveTenant(ctx, actor, tenants)
		if err != nil {
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "resolving tenant", err)
			return
		}

		rc := domain.RequestContext{
			Actor:     actor,
			Tenant:    tenant,
			IP:        clientIP(ctx),
			RequestID: middleware.GetReqID(ctx.Context()),
		}
		next(huma.WithContext(ctx, domain.WithRequest(ctx.Context(), rc)))
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

// resolveTenant tries the explicit header, then the subdomain, then the
// actor's default tenant. The first key present decides; a key that matches
// no active tenant leaves the request without one.
func resolveTenant(ctx huma.Context, actor domain.Actor, tenants TenantLookup) (*domain.Tenant, error) {
	key := ctx.Header(TenantHeader)
	if key == "" {
		key = subdomain(ctx.Host())
	}
	if key == "" {
		key = actor.DefaultTenant
	}
	if key == "" {
		return nil, nil
	}
	return tenants.Lookup(ctx.Context(), key)
}

// subdomain returns the left-most label of a host with more than two labels.
func subdomain(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if net.ParseIP(host) != nil {
		return ""
	}
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return ""
	}
	return labels[0]
}

func clientIP(ctx huma.Context) string {
	if fwd := ctx.Header("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	addr := ctx.RemoteAddr()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
