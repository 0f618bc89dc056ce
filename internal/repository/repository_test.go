package repository

import (
	"context"
	"testing"
	"time"

	"finreview/internal/permission"
	"finreview/internal/store"
	"finreview/pkg/domain"
	errs "finreview/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplications_SaveAndReload(t *testing.T) {
	ctx := context.Background()
	repo := NewApplications(store.NewMemoryStore())
	submitted := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	app := &domain.Application{
		ID:              domain.ApplicationKey("biz-1", submitted),
		OwnerID:         "biz-1",
		OwnerType:       domain.PrincipalBusiness,
		Status:          domain.ApplicationStatusPending,
		RequestedAmount: decimal.NewFromInt(750000),
		Currency:        domain.DefaultCurrency,
		SubmittedAt:     submitted,
	}
	require.NoError(t, repo.Save(ctx, app))
	assert.Equal(t, int64(1), app.Version)

	loaded, err := repo.Get(ctx, app.ID)
	require.NoError(t, err)
	assert.True(t, loaded.RequestedAmount.Equal(decimal.NewFromInt(750000)))
	assert.Equal(t, int64(1), loaded.Version)

	loaded.Status = domain.ApplicationStatusReview
	require.NoError(t, repo.Save(ctx, loaded))
	assert.Equal(t, int64(2), loaded.Version)

	// the first copy is now stale
	app.Status = domain.ApplicationStatusRejected
	err = repo.Save(ctx, app)
	assert.ErrorIs(t, err, errs.ErrStaleVersion)
	assert.Equal(t, int64(1), app.Version)

	again, err := repo.Get(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApplicationStatusReview, again.Status)

	byStatus, err := repo.ListByStatus(ctx, domain.ApplicationStatusReview)
	require.NoError(t, err)
	require.Len(t, byStatus, 1)

	byOwner, err := repo.ListByOwner(ctx, "biz-1")
	require.NoError(t, err)
	require.Len(t, byOwner, 1)
	assert.Equal(t, app.ID, byOwner[0].ID)
}

func TestAdmins_UnlimitedLimitSurvivesStorage(t *testing.T) {
	ctx := context.Background()
	repo := NewAdmins(store.NewMemoryStore())

	super := permission.NewProfile("adm-s", domain.RoleSuperAdmin, 10)
	super.Permissions.Extensions = map[string]bool{"canBulkExport": true}
	require.NoError(t, repo.Save(ctx, super))

	inactive := permission.NewProfile("adm-x", domain.RoleReviewer, 5)
	inactive.IsActive = false
	require.NoError(t, repo.Save(ctx, inactive))

	loaded, err := repo.Get(ctx, "adm-s")
	require.NoError(t, err)
	assert.True(t, loaded.ApprovalLimit.Unlimited)
	assert.True(t, loaded.Permissions.CanManageAdmins)
	assert.True(t, loaded.Permissions.Extension("canBulkExport"))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "adm-s", active[0].ID)
}

func TestDocumentsAndKYCCases(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	docs := NewDocuments(s)
	cases := NewKYCCases(s)

	require.NoError(t, docs.Save(ctx, &domain.Document{ID: "d1", OwnerID: "B1", ApplicationID: "B1_1", Type: domain.DocumentTypeGovernmentID, Status: domain.DocumentStatusRejected}))
	require.NoError(t, docs.Save(ctx, &domain.Document{ID: "d2", OwnerID: "B1", Type: domain.DocumentTypeProofOfAddress, Status: domain.DocumentStatusVerified}))

	owned, err := docs.ListByOwner(ctx, "B1")
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	linked, err := docs.ListByApplication(ctx, "B1_1")
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, "d1", linked[0].ID)

	_, err = cases.Get(ctx, "B1")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	kc := &domain.KYCCase{OwnerID: "B1", SubjectType: domain.PrincipalBusiness, Status: domain.CompositeRejected}
	require.NoError(t, cases.Save(ctx, kc))
	loaded, err := cases.Get(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, domain.CompositeRejected, loaded.Status)
	assert.Equal(t, int64(1), loaded.Version)
}
