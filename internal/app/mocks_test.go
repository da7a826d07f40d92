package app_test

import (
	"context"
	"slices"
	"testing"

	"github.com/neomorfeo/controlplane/internal/adapter/fsm"
	"github.com/neomorfeo/controlplane/internal/adapter/sqlite"
	"github.com/neomorfeo/controlplane/internal/app"
	"github.com/neomorfeo/controlplane/internal/domain"
)

// --- Mocks ---

type mockRepo struct {
	tenants map[string]domain.Tenant
	slugs   map[string]domain.Tenant
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		tenants: make(map[string]domain.Tenant),
		slugs:   make(map[string]domain.Tenant),
	}
}

func (m *mockRepo) Create(_ context.Context, t domain.Tenant) error {
	m.tenants[t.ID] = t
	m.slugs[t.Slug] = t
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (domain.Tenant, error) {
	t, ok := m.tenants[id]
	if !ok {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	return t, nil
}

func (m *mockRepo) GetBySlug(_ context.Context, slug string) (domain.Tenant, error) {
	t, ok := m.slugs[slug]
	if !ok {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	return t, nil
}

func (m *mockRepo) List(_ context.Context, _ domain.ListFilter) ([]domain.Tenant, error) {
	out := make([]domain.Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		out = append(out, t)
	}
	return out, nil
}

func (m *mockRepo) Update(_ context.Context, t domain.Tenant) error {
	if _, ok := m.tenants[t.ID]; !ok {
		return domain.ErrTenantNotFound
	}
	m.tenants[t.ID] = t
	m.slugs[t.Slug] = t
	return nil
}

type mockAccess struct {
	bundles     map[string]domain.Bundle
	roles       map[string]domain.Role
	assignments []domain.RoleAssignment
	perms       map[string]domain.Permission
	err         error
}

func newMockAccess() *mockAccess {
	return &mockAccess{
		bundles: make(map[string]domain.Bundle),
		roles:   make(map[string]domain.Role),
		perms:   make(map[string]domain.Permission),
	}
}

func (m *mockAccess) CreateBundle(_ context.Context, b domain.Bundle) error {
	m.bundles[b.ID] = b
	return nil
}

func (m *mockAccess) GetBundle(_ context.Context, id string) (domain.Bundle, error) {
	if m.err != nil {
		return domain.Bundle{}, m.err
	}
	b, ok := m.bundles[id]
	if !ok {
		return domain.Bundle{}, domain.ErrBundleNotFound
	}
	return b, nil
}

func (m *mockAccess) SavePermission(_ context.Context, p domain.Permission) error {
	m.perms[p.Code] = p
	return nil
}

func (m *mockAccess) CreateRole(_ context.Context, r domain.Role) error {
	for _, existing := range m.roles {
		if existing.TenantID == r.TenantID && existing.Name == r.Name {
			return &domain.RoleConflictError{TenantID: r.TenantID, Name: r.Name}
		}
	}
	m.roles[r.ID] = r
	return nil
}

func (m *mockAccess) GetRole(_ context.Context, id string) (domain.Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return domain.Role{}, domain.ErrRoleNotFound
	}
	return r, nil
}

func (m *mockAccess) AssignRole(_ context.Context, a domain.RoleAssignment) error {
	m.assignments = append(m.assignments, a)
	return nil
}

func (m *mockAccess) RoleGrants(_ context.Context, userID, tenantID, code string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	for _, a := range m.assignments {
		role, ok := m.roles[a.RoleID]
		if a.UserID == userID && ok && role.TenantID == tenantID && slices.Contains(role.Permissions, code) {
			return true, nil
		}
	}
	return false, nil
}

type mockAuditStore struct {
	entries []domain.AuditEntry
	err     error
}

func (m *mockAuditStore) Append(_ context.Context, e domain.AuditEntry) (domain.AuditEntry, error) {
	if m.err != nil {
		return domain.AuditEntry{}, m.err
	}
	e.Seq = int64(len(m.entries) + 1)
	m.entries = append(m.entries, e)
	return e, nil
}

func (m *mockAuditStore) List(_ context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	out := slices.Clone(m.entries)
	slices.Reverse(out)
	if filter.Offset < len(out) {
		out = out[filter.Offset:]
	} else {
		out = nil
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *mockAuditStore) actions() []string {
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

// passthroughTx runs fn without a real transaction.
type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// --- SQLite-backed fixture ---

type fixture struct {
	store   *sqlite.Store
	audit   *app.AuditTrail
	bus     *app.Bus
	machine *app.StateMachine
	tenant  domain.Tenant
}

// newFixture opens an in-memory store seeded with bundle "b-pro" and tenant "t-1".
func newFixture(t *testing.T, opts ...app.StateMachineOption) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Access().CreateBundle(ctx, domain.Bundle{ID: "b-pro", Name: "Pro", Products: []string{"store", "crm"}}); err != nil {
		t.Fatalf("creating bundle: %v", err)
	}
	tenant := domain.NewTenant("t-1", "Acme", "acme", "b-pro")
	if err := store.Tenants().Create(ctx, tenant); err != nil {
		t.Fatalf("creating tenant: %v", err)
	}

	audit := app.NewAuditTrail(store.Audit(), nil)
	bus := app.NewBus(nil)
	machine := app.NewStateMachine(store.Entities(), store, fsm.New(), audit, bus, opts...)

	return &fixture{store: store, audit: audit, bus: bus, machine: machine, tenant: tenant}
}

func (f *fixture) entity(t *testing.T, id, typeName string, status domain.Status) domain.Entity {
	t.Helper()
	e := domain.NewEntity(domain.EntitySpec{
		ID:       id,
		TenantID: f.tenant.ID,
		Domain:   "store",
		TypeName: typeName,
		OwnerID:  "u-1",
		Status:   status,
	})
	if err := f.store.Entities().Create(context.Background(), e); err != nil {
		t.Fatalf("creating entity: %v", err)
	}
	return e
}

func (f *fixture) auditEntries(t *testing.T, action string) []domain.AuditEntry {
	t.Helper()
	entries, err := f.store.Audit().List(context.Background(), domain.AuditFilter{Action: action})
	if err != nil {
		t.Fatalf("listing audit entries: %v", err)
	}
	return entries
}

var alice = domain.Actor{UserID: "u-alice", Email: "alice@example.com", Staff: true}
