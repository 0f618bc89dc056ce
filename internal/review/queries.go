package review

import (
	"context"

	"finreview/internal/docstatus"
	"finreview/pkg/domain"
	errs "finreview/pkg/errors"
)

// canRead allows the owner of a record or an admin holding canView.
func (s *Service) canRead(ctx context.Context, actor domain.Principal, ownerID string) error {
	if actor.Type.IsOwnerType() {
		return requireOwner(actor, ownerID)
	}
	admin, err := s.loadAdmin(ctx, actor)
	if err != nil {
		return err
	}
	return requireCapability(admin, domain.CapView)
}

// GetApplication returns one application to its owner or to an admin who can view.
func (s *Service) GetApplication(ctx context.Context, actor domain.Principal, appID string) (*domain.Application, error) {
	app, err := s.apps.Get(ctx, appID)
	if err != nil {
		return nil, err
	}
	if err := s.canRead(ctx, actor, app.OwnerID); err != nil {
		// owners probing other owners' keys see the same answer as a missing key
		if actor.Type.IsOwnerType() {
			return nil, errs.Deny(errs.ErrNotFound, errs.ReasonNotFound, "application %s does not exist", appID)
		}
		return nil, err
	}
	return app, nil
}

// ListApplications returns the owner's own applications, or for an admin the
// applications in status.
func (s *Service) ListApplications(ctx context.Context, actor domain.Principal, status domain.ApplicationStatus) ([]*domain.Application, error) {
	if actor.Type.IsOwnerType() {
		return s.apps.ListByOwner(ctx, actor.ID)
	}
	if err := s.canRead(ctx, actor, ""); err != nil {
		return nil, err
	}
	if status == "" {
		status = domain.ApplicationStatusPending
	}
	if !status.Valid() {
		return nil, invalid("unknown status %q", status)
	}
	return s.apps.ListByStatus(ctx, status)
}

// KYCView is a KYC case with the documents that currently count toward it.
type KYCView struct {
	Case      *domain.KYCCase   `json:"case"`
	Documents []domain.Document `json:"documents"`
}

// GetKYCCase returns the owner's KYC case. An owner without uploads gets a pending case.
func (s *Service) GetKYCCase(ctx context.Context, actor domain.Principal, ownerID string) (*KYCView, error) {
	if err := s.canRead(ctx, actor, ownerID); err != nil {
		return nil, err
	}
	docs, err := s.docs.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	latest := docstatus.Latest(docs)

	kc, err := s.kyc.Get(ctx, ownerID)
	if errs.Is(err, errs.ErrNotFound) {
		kc = &domain.KYCCase{OwnerID: ownerID, Status: docstatus.DeriveStatus(latest, len(docs) > 0)}
		if actor.Type.IsOwnerType() {
			kc.SubjectType = actor.Type
		}
		err = nil
	}
	if err != nil {
		return nil, err
	}
	return &KYCView{Case: kc, Documents: latest}, nil
}

// AuditFor returns the audit history of one target to an admin allowed to read audit logs.
func (s *Service) AuditFor(ctx context.Context, actor domain.Principal, targetID string, limit int) ([]*domain.AuditEntry, error) {
	admin, err := s.loadAdmin(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := requireCapability(admin, domain.CapAccessAuditLogs); err != nil {
		return nil, err
	}
	return s.audit.Trail().ForTarget(ctx, targetID, limit)
}
