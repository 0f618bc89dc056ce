package review

import (
	"context"
	"testing"

	"finreview/internal/notification"
	"finreview/pkg/domain"
	errs "finreview/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) upload(t *testing.T, owner domain.Principal, typ domain.DocumentType, appID string) *DocumentOutcome {
	t.Helper()
	f.tick()
	out, err := f.svc.RegisterDocument(context.Background(), owner, DocumentInput{Type: typ, ApplicationID: appID, FileRef: "s3://kyc/" + string(typ)})
	require.NoError(t, err)
	return out
}

func TestDocuments_RejectionDominatesUntilReupload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := business("B1")
	reviewer := f.addAdmin(t, "adm-r", domain.RoleReviewer)
	app := f.submit(t, owner, 100000)

	idDoc := f.upload(t, owner, domain.DocumentTypeGovernmentID, app.ID)
	assert.Equal(t, domain.CompositeInReview, idDoc.KYCStatus)
	assert.Equal(t, domain.CompositeInReview, idDoc.DocumentsStatus)

	poa := f.upload(t, owner, domain.DocumentTypeProofOfAddress, "")

	out, err := f.svc.VerifyDocument(ctx, reviewer, poa.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CompositeInReview, out.KYCStatus)

	out, err = f.svc.RejectDocument(ctx, reviewer, idDoc.Document.ID, "expired ID")
	require.NoError(t, err)
	assert.Equal(t, domain.CompositeRejected, out.KYCStatus)
	assert.Equal(t, domain.CompositeRejected, out.DocumentsStatus)

	kc, err := f.kyc.Get(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, domain.CompositeRejected, kc.Status)
	assert.Equal(t, domain.CompositeRejected, f.reload(t, app.ID).DocumentsStatus)

	reupload := f.upload(t, owner, domain.DocumentTypeGovernmentID, app.ID)
	assert.NotEqual(t, idDoc.Document.ID, reupload.Document.ID, "a re-upload is a new record")
	assert.Equal(t, domain.CompositeInReview, reupload.KYCStatus)

	out, err = f.svc.VerifyDocument(ctx, reviewer, reupload.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CompositeVerified, out.KYCStatus)
	assert.Equal(t, domain.CompositeVerified, out.DocumentsStatus)

	old, err := f.docs.Get(ctx, idDoc.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusRejected, old.Status, "the old instance never moves")

	view, err := f.svc.GetKYCCase(ctx, owner, "B1")
	require.NoError(t, err)
	assert.Equal(t, domain.CompositeVerified, view.Case.Status)
	assert.Len(t, view.Documents, 2)

	assert.Contains(t, f.notifier.types(), notification.EventDocumentRejected)
	assert.Contains(t, f.notifier.types(), notification.EventDocumentVerified)
}

func TestDocuments_StatusIsMonotone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := business("B1")
	reviewer := f.addAdmin(t, "adm-r", domain.RoleReviewer)
	doc := f.upload(t, owner, domain.DocumentTypeBankStatement, "")

	_, err := f.svc.VerifyDocument(ctx, reviewer, doc.Document.ID)
	require.NoError(t, err)

	_, err = f.svc.RejectDocument(ctx, reviewer, doc.Document.ID, "changed my mind")
	assert.ErrorIs(t, err, errs.ErrIllegalTransition)

	_, err = f.svc.VerifyDocument(ctx, reviewer, doc.Document.ID)
	assert.ErrorIs(t, err, errs.ErrIllegalTransition)

	_, err = f.svc.RejectDocument(ctx, reviewer, "missing", "x")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDocuments_ExpiredCannotBeVerified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := business("B1")
	reviewer := f.addAdmin(t, "adm-r", domain.RoleReviewer)

	expired := mondayMorning.AddDate(0, -1, 0)
	out, err := f.svc.RegisterDocument(ctx, owner, DocumentInput{Type: domain.DocumentTypeGovernmentID, ExpiryDate: &expired})
	require.NoError(t, err)

	_, err = f.svc.VerifyDocument(ctx, reviewer, out.Document.ID)
	assert.ErrorIs(t, err, errs.ErrDocumentExpired)
	assert.Equal(t, errs.ReasonDocumentExpired, errs.ReasonOf(err))

	rejected, err := f.svc.RejectDocument(ctx, reviewer, out.Document.ID, "identity document expired")
	require.NoError(t, err)
	assert.Equal(t, domain.CompositeRejected, rejected.KYCStatus)
}

func TestDocuments_Gates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	viewer := f.addAdmin(t, "adm-v", domain.RoleViewer)
	app := f.submit(t, business("B1"), 100000)

	_, err := f.svc.RegisterDocument(ctx, business("B2"), DocumentInput{Type: domain.DocumentTypeSelfie, ApplicationID: app.ID})
	assert.ErrorIs(t, err, errs.ErrPermissionDenied)

	_, err = f.svc.RegisterDocument(ctx, business("B1"), DocumentInput{Type: "passport_photo"})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	_, err = f.svc.RegisterDocument(ctx, viewer, DocumentInput{Type: domain.DocumentTypeSelfie})
	assert.ErrorIs(t, err, errs.ErrPermissionDenied)

	doc := f.upload(t, business("B1"), domain.DocumentTypeSelfie, "")
	_, err = f.svc.VerifyDocument(ctx, viewer, doc.Document.ID)
	assert.ErrorIs(t, err, errs.ErrPermissionDenied)

	_, err = f.svc.RejectDocument(ctx, f.addAdmin(t, "adm-r", domain.RoleReviewer), doc.Document.ID, " ")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}
