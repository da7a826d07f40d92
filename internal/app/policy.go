package app

import (
	"context"
	"slices"
	"strings"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// Compile-time check: PolicyEnforcer implements domain.Policy.
var _ domain.Policy = (*PolicyEnforcer)(nil)

// Rule is the mutation scope of one responsibility. A mutation is allowed when
// the label's domain is listed, the label's "<domain>.<Type>" is listed, or the
// action contains ActionMarker.
type Rule struct {
	Domains      []string
	Types        []string
	ActionMarker string
}

// Allows reports whether the rule grants action on label.
func (r Rule) Allows(action string, label domain.Label) bool {
	if action == domain.ActionView {
		return true
	}
	if label.Domain != "" && slices.Contains(r.Domains, label.Domain) {
		return true
	}
	if slices.Contains(r.Types, label.Qualified()) {
		return true
	}
	return r.ActionMarker != "" && strings.Contains(action, r.ActionMarker)
}

// DefaultRules is the responsibility rule table used in production. Customer
// and None have no rule and fall through to the staff-flag default.
var DefaultRules = map[domain.Responsibility]Rule{
	domain.ResponsibilitySecurityAnalyst: {
		Domains:      []string{"security"},
		ActionMarker: string(domain.KindIncident),
	},
	domain.ResponsibilityOperationsManager: {
		Domains: []string{"erp"},
		Types:   []string{"crm.Project"},
	},
	domain.ResponsibilityFinance: {
		Domains: []string{"store"},
		Types:   []string{"crm.Contract"},
	},
	domain.ResponsibilitySales: {
		Types: []string{"crm.Client", "crm.Deal", "crm.Quote", "crm.Interaction"},
	},
}

// PolicyEnforcer is the coarse responsibility gate run before record-level logic.
type PolicyEnforcer struct {
	rules map[domain.Responsibility]Rule
	audit *AuditTrail
}

// NewPolicyEnforcer creates an enforcer with DefaultRules. audit may be nil, in
// which case Authorize records nothing.
func NewPolicyEnforcer(audit *AuditTrail) *PolicyEnforcer {
	return NewPolicyEnforcerWithRules(audit, DefaultRules)
}

func NewPolicyEnforcerWithRules(audit *AuditTrail, rules map[domain.Responsibility]Rule) *PolicyEnforcer {
	return &PolicyEnforcer{rules: rules, audit: audit}
}

// Enforce returns true when actor may perform action on the labelled resource.
// A false result always means deny.
func (p *PolicyEnforcer) Enforce(_ context.Context, actor domain.Actor, action, label string) bool {
	if !actor.Authenticated() {
		return false
	}
	if actor.Superuser {
		return true
	}

	rule, ok := p.rules[actor.Responsibility]
	if !ok {
		return action == domain.ActionView || actor.Staff
	}
	return rule.Allows(action, domain.ParseLabel(label))
}

// Authorize wraps Enforce. A denial is returned as *domain.AuthorizationDeniedError;
// an approval writes a best-effort POLICY_GRANTED entry.
func (p *PolicyEnforcer) Authorize(ctx context.Context, actor domain.Actor, action, label string) error {
	return authorize(ctx, p, p.audit, actor, action, label)
}

// authorize is shared with decorators that wrap a domain.Policy.
func authorize(ctx context.Context, policy domain.Policy, audit *AuditTrail, actor domain.Actor, action, label string) error {
	if !policy.Enforce(ctx, actor, action, label) {
		return &domain.AuthorizationDeniedError{Actor: actor.Label(), Action: action, Resource: label}
	}
	if audit != nil {
		audit.Record(ctx, domain.AuditRecord{
			Actor:    &actor,
			Action:   domain.ActionPolicyGranted,
			Resource: label,
			Payload:  map[string]any{"action": action},
		})
	}
	return nil
}

// Gate authorizes actions through any domain.Policy, such as a metered
// decorator, and records approvals on the audit trail.
type Gate struct {
	policy domain.Policy
	audit  *AuditTrail
}

func NewGate(policy domain.Policy, audit *AuditTrail) *Gate {
	return &Gate{policy: policy, audit: audit}
}

func (g *Gate) Enforce(ctx context.Context, actor domain.Actor, action, label string) bool {
	return g.policy.Enforce(ctx, actor, action, label)
}

func (g *Gate) Authorize(ctx context.Context, actor domain.Actor, action, label string) error {
	return authorize(ctx, g.policy, g.audit, actor, action, label)
}
