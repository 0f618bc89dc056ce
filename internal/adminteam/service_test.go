package adminteam

import (
	"context"
	"testing"
	"time"

	"finreview/internal/audit"
	"finreview/internal/metrics"
	"finreview/internal/permission"
	"finreview/internal/repository"
	"finreview/internal/store"
	"finreview/pkg/domain"
	errs "finreview/pkg/errors"
	"finreview/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *Service
	admins *repository.Admins
	trail  *audit.MemoryTrail
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		admins: repository.NewAdmins(store.NewMemoryStore()),
		trail:  audit.NewMemoryTrail(),
	}
	f.svc = NewService(f.admins, audit.NewRecorder(f.trail, logger.NewNop()), metrics.New(), logger.NewNop(), 2).
		WithClock(func() time.Time { return fixedNow })
	return f
}

func (f *fixture) seed(t *testing.T, id string, role domain.Role) domain.Principal {
	t.Helper()
	p := permission.NewProfile(id, role, 5)
	p.Name = id
	p.Email = id + "@example.com"
	require.NoError(t, f.admins.Save(context.Background(), p))
	return p.Principal()
}

func (f *fixture) lastEntry(t *testing.T, target string) *domain.AuditEntry {
	t.Helper()
	entries, err := f.trail.ForTarget(context.Background(), target, 1)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	return entries[0]
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	manager := f.seed(t, "mgr-1", domain.RoleManager)

	profile, err := f.svc.Create(ctx, manager, CreateInput{
		ID:    "rev-1",
		Name:  " Ada ",
		Email: "ADA@Example.com ",
		Role:  domain.RoleReviewer,
	})
	require.NoError(t, err)

	assert.Equal(t, "Ada", profile.Name)
	assert.Equal(t, "ada@example.com", profile.Email)
	assert.True(t, profile.IsActive)
	assert.Equal(t, DefaultMaxWorkload, profile.MaxWorkload)
	assert.Equal(t, "mgr-1", profile.CreatedBy)
	assert.True(t, profile.Permissions.Has(domain.CapReview))
	assert.False(t, profile.Permissions.Has(domain.CapApprove))
	assert.Equal(t, fixedNow, profile.CreatedAt)

	stored, err := f.admins.Get(ctx, "rev-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleReviewer, stored.Role)

	entry := f.lastEntry(t, "rev-1")
	assert.Equal(t, domain.ActionCreateAdmin, entry.Action)
	assert.True(t, entry.Success)
}

func TestCreate_GeneratesIDAndAppliesOverrides(t *testing.T) {
	f := newFixture(t)
	manager := f.seed(t, "mgr-1", domain.RoleManager)
	limit := domain.LimitOf(decimal.NewFromInt(100000))

	profile, err := f.svc.Create(context.Background(), manager, CreateInput{
		Name:          "Bo",
		Email:         "bo@example.com",
		Role:          domain.RoleApprover,
		ApprovalLimit: &limit,
		Permissions:   map[string]bool{"canExportData": false, "canSeeDrafts": true},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, profile.ID)
	assert.Equal(t, 0, profile.ApprovalLimit.Cmp(limit))
	assert.False(t, profile.Permissions.Has(domain.CapExportData))
	assert.True(t, profile.Permissions.Extension("canSeeDrafts"))
}

func TestCreate_Denials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	manager := f.seed(t, "mgr-1", domain.RoleManager)
	reviewer := f.seed(t, "rev-1", domain.RoleReviewer)
	owner := domain.Principal{ID: "biz-1", Type: domain.PrincipalBusiness}

	tests := []struct {
		name   string
		actor  domain.Principal
		in     CreateInput
		kind   error
		reason errs.Reason
	}{
		{"reviewer lacks canManageAdmins", reviewer, CreateInput{ID: "x1", Name: "x", Email: "x@e.com", Role: domain.RoleViewer}, errs.ErrPermissionDenied, errs.ReasonMissingCapability},
		{"owner is not an admin", owner, CreateInput{ID: "x2", Name: "x", Email: "x@e.com", Role: domain.RoleViewer}, errs.ErrPermissionDenied, errs.ReasonMissingCapability},
		{"manager cannot create super admin", manager, CreateInput{ID: "x3", Name: "x", Email: "x@e.com", Role: domain.RoleSuperAdmin}, errs.ErrPermissionDenied, errs.ReasonMissingCapability},
		{"unknown role", manager, CreateInput{ID: "x4", Name: "x", Email: "x@e.com", Role: "owner"}, errs.ErrInvalidInput, errs.ReasonInvalidInput},
		{"missing email", manager, CreateInput{ID: "x5", Name: "x", Role: domain.RoleViewer}, errs.ErrInvalidInput, errs.ReasonInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.actor, tt.in)
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, tt.reason, errs.ReasonOf(err))

			_, getErr := f.admins.Get(ctx, tt.in.ID)
			assert.ErrorIs(t, getErr, errs.ErrNotFound)

			entry := f.lastEntry(t, tt.in.ID)
			assert.False(t, entry.Success)
			assert.Equal(t, string(tt.reason), entry.ErrorReason)
		})
	}
}

func TestCreate_DuplicateID(t *testing.T) {
	f := newFixture(t)
	super := f.seed(t, "root", domain.RoleSuperAdmin)
	f.seed(t, "rev-1", domain.RoleReviewer)

	_, err := f.svc.Create(context.Background(), super, CreateInput{ID: "rev-1", Name: "x", Email: "x@e.com", Role: domain.RoleViewer})
	assert.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestSuperAdminCanCreateSuperAdmin(t *testing.T) {
	f := newFixture(t)
	super := f.seed(t, "root", domain.RoleSuperAdmin)

	profile, err := f.svc.Create(context.Background(), super, CreateInput{ID: "root-2", Name: "r", Email: "r@e.com", Role: domain.RoleSuperAdmin})
	require.NoError(t, err)
	assert.True(t, profile.ApprovalLimit.Unlimited)
}

func TestUpdateRole_RebasesDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	manager := f.seed(t, "mgr-1", domain.RoleManager)
	f.seed(t, "rev-1", domain.RoleReviewer)

	revoked, err := f.svc.SetPermissions(ctx, manager, "rev-1", map[string]bool{"canSeeDrafts": true, "canView": false})
	require.NoError(t, err)
	require.False(t, revoked.Permissions.Has(domain.CapView))

	profile, err := f.svc.UpdateRole(ctx, manager, "rev-1", domain.RoleApprover)
	require.NoError(t, err)

	assert.Equal(t, domain.RoleApprover, profile.Role)
	assert.True(t, profile.Permissions.Has(domain.CapApprove))
	assert.True(t, profile.Permissions.Has(domain.CapView), "base overrides reset to the new role's defaults")
	assert.Equal(t, "500000", profile.ApprovalLimit.String())
	assert.True(t, profile.Permissions.Extension("canSeeDrafts"))

	entry := f.lastEntry(t, "rev-1")
	assert.Equal(t, domain.ActionUpdateAdmin, entry.Action)
	assert.Equal(t, "approver", entry.Metadata["role"])
}

func TestUpdate_SuperAdminGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	manager := f.seed(t, "mgr-1", domain.RoleManager)
	f.seed(t, "root", domain.RoleSuperAdmin)
	f.seed(t, "rev-1", domain.RoleReviewer)

	_, err := f.svc.UpdateRole(ctx, manager, "rev-1", domain.RoleSuperAdmin)
	assert.ErrorIs(t, err, errs.ErrPermissionDenied)

	_, err = f.svc.SetApprovalLimit(ctx, manager, "root", domain.LimitOf(decimal.Zero))
	assert.ErrorIs(t, err, errs.ErrPermissionDenied)

	_, err = f.svc.Deactivate(ctx, manager, "root")
	assert.ErrorIs(t, err, errs.ErrPermissionDenied)

	root, err := f.admins.Get(ctx, "root")
	require.NoError(t, err)
	assert.True(t, root.IsActive)
	assert.True(t, root.ApprovalLimit.Unlimited)
}

func TestUpdate_SelfChangesRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	manager := f.seed(t, "mgr-1", domain.RoleManager)

	_, err := f.svc.UpdateRole(ctx, manager, "mgr-1", domain.RoleSuperAdmin)
	assert.ErrorIs(t, err, errs.ErrPermissionDenied)

	_, err = f.svc.SetPermissions(ctx, manager, "mgr-1", map[string]bool{"canAccessSystemConfig": true})
	assert.ErrorIs(t, err, errs.ErrPermissionDenied)

	_, err = f.svc.Deactivate(ctx, manager, "mgr-1")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestSetApprovalLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	manager := f.seed(t, "mgr-1", domain.RoleManager)
	f.seed(t, "apr-1", domain.RoleApprover)

	profile, err := f.svc.SetApprovalLimit(ctx, manager, "apr-1", domain.LimitOf(decimal.NewFromInt(750000)))
	require.NoError(t, err)
	assert.Equal(t, "750000", profile.ApprovalLimit.String())

	_, err = f.svc.SetApprovalLimit(ctx, manager, "apr-1", domain.LimitOf(decimal.NewFromInt(-1)))
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	_, err = f.svc.SetApprovalLimit(ctx, manager, "ghost", domain.UnlimitedApproval())
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUpdate_MaxWorkloadAndEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	manager := f.seed(t, "mgr-1", domain.RoleManager)
	f.seed(t, "rev-1", domain.RoleReviewer)

	eight := 8
	profile, err := f.svc.Update(ctx, manager, "rev-1", UpdateInput{MaxWorkload: &eight})
	require.NoError(t, err)
	assert.Equal(t, 8, profile.MaxWorkload)

	_, err = f.svc.Update(ctx, manager, "rev-1", UpdateInput{})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestDeactivate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	manager := f.seed(t, "mgr-1", domain.RoleManager)
	f.seed(t, "rev-1", domain.RoleReviewer)

	profile, err := f.svc.Deactivate(ctx, manager, "rev-1")
	require.NoError(t, err)
	assert.False(t, profile.IsActive)

	stored, err := f.admins.Get(ctx, "rev-1")
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	_, err = f.svc.Deactivate(ctx, manager, "rev-1")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	// An inactive admin loses every capability, including reading the team.
	_, err = f.svc.List(ctx, stored.Principal())
	assert.Equal(t, errs.ReasonInactiveAdmin, errs.ReasonOf(err))

	active, err := f.svc.List(ctx, manager)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "mgr-1", active[0].ID)

	entry := f.lastEntry(t, "rev-1")
	assert.Equal(t, domain.ActionDeactivateAdmin, entry.Action)
}

func TestGet(t *testing.T) {
	f := newFixture(t)
	viewer := f.seed(t, "view-1", domain.RoleViewer)
	f.seed(t, "rev-1", domain.RoleReviewer)

	profile, err := f.svc.Get(context.Background(), viewer, "rev-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleReviewer, profile.Role)

	_, err = f.svc.Get(context.Background(), domain.Principal{ID: "biz-1", Type: domain.PrincipalBusiness}, "rev-1")
	assert.ErrorIs(t, err, errs.ErrPermissionDenied)
}

func TestBootstrap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	profile, created, err := f.svc.Bootstrap(ctx, "root", "Root", "Root@Example.com")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.RoleSuperAdmin, profile.Role)
	assert.Equal(t, "root@example.com", profile.Email)

	entry := f.lastEntry(t, "root")
	assert.Equal(t, SystemActor.ID, entry.ActorID)
	assert.Equal(t, true, entry.Metadata["bootstrap"])

	again, created, err := f.svc.Bootstrap(ctx, "root", "Other", "other@example.com")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Root", again.Name)
	assert.Equal(t, 1, f.trail.Len())

	// The bootstrapped admin can manage the team.
	_, err = f.svc.Create(ctx, profile.Principal(), CreateInput{ID: "mgr-1", Name: "M", Email: "m@example.com", Role: domain.RoleManager})
	assert.NoError(t, err)
}
