package review

import (
	"context"
	"strings"

	"finreview/internal/authz"
	"finreview/internal/lifecycle"
	"finreview/internal/notification"
	"finreview/internal/store"
	"finreview/pkg/domain"
	errs "finreview/pkg/errors"

	"github.com/shopspring/decimal"
)

// applyFunc validates and mutates a freshly loaded application in place.
type applyFunc func(app *domain.Application, out *Outcome, meta domain.Metadata) error

// updateApplication runs one gated read-modify-write cycle on an application, retried
// from a fresh load when the write hits a stale version.
func (s *Service) updateApplication(ctx context.Context, actor domain.Principal, action, appID string, apply applyFunc) (*Outcome, error) {
	var (
		meta domain.Metadata
		out  *Outcome
	)

	err := s.withRetry(ctx, store.CollectionApplications, appID, func() error {
		meta = domain.Metadata{}
		app, err := s.apps.Get(ctx, appID)
		if err != nil {
			return err
		}
		o := &Outcome{From: app.Status.Canonical(), To: app.Status.Canonical()}
		meta["status"] = string(o.From)

		if err := apply(app, o, meta); err != nil {
			return err
		}

		app.UpdatedAt = s.now().UTC()
		if err := s.apps.Save(ctx, app); err != nil {
			return err
		}
		o.Application = app
		out = o
		return nil
	})

	if err == nil && out.From != out.To {
		meta["to"] = string(out.To)
		s.metrics.RecordTransition(string(out.From), string(out.To))
	}
	s.finish(ctx, actor, action, appID, err, meta)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// moveTo validates the transition to `to` and sets the new status.
func moveTo(app *domain.Application, out *Outcome, to domain.ApplicationStatus, tc lifecycle.TransitionContext) error {
	if err := lifecycle.ValidateTransition(app.Status, to, tc); err != nil {
		return err
	}
	app.Status = to
	out.To = to
	return nil
}

func ownerEvent(t notification.EventType, app *domain.Application, message string) notification.Event {
	return notification.Event{
		Type:           t,
		ApplicationID:  app.ID,
		RecipientID:    app.OwnerID,
		RecipientEmail: app.ContactEmail,
		Message:        message,
	}
}

// ==============================================================================
// OWNER ACTIONS
// ==============================================================================

// SubmitInput is a new financing application from its owner.
type SubmitInput struct {
	RequestedAmount   decimal.Decimal
	Currency          string
	Purpose           string
	ContactEmail      string
	DocumentsUploaded bool
	// Status is accepted from intake paths; only "", "new" and "pending" are allowed.
	Status domain.ApplicationStatus
}

// SubmitApplication creates an application in pending under the key ownerId_unixMillis.
func (s *Service) SubmitApplication(ctx context.Context, owner domain.Principal, in SubmitInput) (*Outcome, error) {
	now := s.now().UTC()
	app := &domain.Application{
		ID:                domain.ApplicationKey(owner.ID, now),
		OwnerID:           owner.ID,
		OwnerType:         owner.Type,
		ContactEmail:      domain.NormalizeEmail(in.ContactEmail),
		Purpose:           strings.TrimSpace(in.Purpose),
		Status:            domain.ApplicationStatusPending,
		RequestedAmount:   in.RequestedAmount,
		Currency:          in.Currency,
		DocumentsUploaded: in.DocumentsUploaded,
		SubmittedAt:       now,
		UpdatedAt:         now,
	}
	if app.Currency == "" {
		app.Currency = domain.DefaultCurrency
	}
	meta := domain.Metadata{"amount": in.RequestedAmount.String(), "currency": app.Currency}

	err := func() error {
		if !owner.Type.IsOwnerType() {
			return errs.Deny(errs.ErrPermissionDenied, errs.ReasonNotOwner, "only a business or investor can submit an application")
		}
		if in.Status != "" && in.Status.Canonical() != domain.ApplicationStatusPending {
			return invalid("a new application cannot start in %s", in.Status)
		}
		if !in.RequestedAmount.IsPositive() {
			return invalid("requested amount must be positive")
		}
		app.DocumentsStatus = s.derivedDocumentsStatus(ctx, app)
		return s.apps.Save(ctx, app)
	}()

	s.finish(ctx, owner, domain.ActionSubmitApplication, app.ID, err, meta)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, ownerEvent(notification.EventApplicationSubmitted, app, ""))
	return &Outcome{Application: app, From: domain.ApplicationStatusPending, To: domain.ApplicationStatusPending}, nil
}

// Resubmit reopens a rejected application whose rejection allowed it. The flag is read
// from the record as loaded for this attempt, never from the caller.
func (s *Service) Resubmit(ctx context.Context, owner domain.Principal, appID string) (*Outcome, error) {
	out, err := s.updateApplication(ctx, owner, domain.ActionResubmit, appID, func(app *domain.Application, out *Outcome, meta domain.Metadata) error {
		if err := requireOwner(owner, app.OwnerID); err != nil {
			return err
		}
		tc := lifecycle.TransitionContext{
			IsBusiness:              true,
			IsResubmission:          true,
			RejectionAllowsResubmit: app.RejectionAllowsResubmit,
		}
		if err := lifecycle.ValidateTransition(app.Status, domain.ApplicationStatusPending, tc); err != nil {
			return err
		}
		meta["previous_rejection_reason"] = app.RejectionReason
		lifecycle.ApplyResubmission(app, s.now().UTC())
		out.To = domain.ApplicationStatusPending
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, ownerEvent(notification.EventApplicationResubmitted, out.Application, ""))
	return out, nil
}

// ProvideInfo answers a request for more information and puts the application back in the queue.
func (s *Service) ProvideInfo(ctx context.Context, owner domain.Principal, appID, note string) (*Outcome, error) {
	out, err := s.updateApplication(ctx, owner, domain.ActionProvideInfo, appID, func(app *domain.Application, out *Outcome, meta domain.Metadata) error {
		if err := requireOwner(owner, app.OwnerID); err != nil {
			return err
		}
		if err := moveTo(app, out, domain.ApplicationStatusPending, lifecycle.TransitionContext{IsBusiness: true}); err != nil {
			return err
		}
		if note = strings.TrimSpace(note); note != "" {
			meta["note"] = note
		}
		app.AdminMessage = ""
		clearEndorsement(app)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.Application.AssignedTo != "" {
		s.notify(ctx, notification.Event{
			Type:          notification.EventApplicationResubmitted,
			ApplicationID: out.Application.ID,
			RecipientID:   out.Application.AssignedTo,
		})
	}
	return out, nil
}

// ==============================================================================
// ADMIN ACTIONS
// ==============================================================================

// StartReview moves a pending or more-info application into review.
func (s *Service) StartReview(ctx context.Context, actor domain.Principal, appID string) (*Outcome, error) {
	out, err := s.updateApplication(ctx, actor, domain.ActionStartReview, appID, func(app *domain.Application, out *Outcome, meta domain.Metadata) error {
		admin, err := s.loadAdmin(ctx, actor)
		if err != nil {
			return err
		}
		if err := requireCapability(admin, domain.CapReview); err != nil {
			return err
		}
		if err := moveTo(app, out, domain.ApplicationStatusReview, lifecycle.TransitionContext{}); err != nil {
			return err
		}
		now := s.now().UTC()
		app.ReviewedBy = admin.ID
		app.ReviewedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, ownerEvent(notification.EventApplicationInReview, out.Application, ""))
	return out, nil
}

// RequestInfo sends the application back to its owner with a message.
func (s *Service) RequestInfo(ctx context.Context, actor domain.Principal, appID, message string) (*Outcome, error) {
	message = strings.TrimSpace(message)
	out, err := s.updateApplication(ctx, actor, domain.ActionRequestInfo, appID, func(app *domain.Application, out *Outcome, meta domain.Metadata) error {
		admin, err := s.loadAdmin(ctx, actor)
		if err != nil {
			return err
		}
		if err := requireCapability(admin, domain.CapRequestChanges); err != nil {
			return err
		}
		if message == "" {
			return invalid("a message for the applicant is required")
		}
		if err := moveTo(app, out, domain.ApplicationStatusMoreInfo, lifecycle.TransitionContext{}); err != nil {
			return err
		}
		now := s.now().UTC()
		app.AdminMessage = message
		app.ReviewedBy = admin.ID
		app.ReviewedAt = &now
		if app.EndorsedBy != "" {
			meta["endorsement_cleared"] = app.EndorsedBy
			clearEndorsement(app)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, ownerEvent(notification.EventApplicationMoreInfo, out.Application, message))
	return out, nil
}

// Endorse records the first of two signatures on an application above the dual
// authorization threshold.
func (s *Service) Endorse(ctx context.Context, actor domain.Principal, appID string) (*Outcome, error) {
	out, err := s.updateApplication(ctx, actor, domain.ActionEndorse, appID, func(app *domain.Application, out *Outcome, meta domain.Metadata) error {
		admin, err := s.loadAdmin(ctx, actor)
		if err != nil {
			return err
		}
		meta["amount"] = app.RequestedAmount.String()

		check, err := s.policy.AuthorizeEndorsement(authz.DecisionRequest{
			Admin:  admin,
			Amount: app.RequestedAmount,
			At:     s.now(),
		})
		out.DualAuthorization = check.DualAuthorization
		if err != nil {
			return err
		}
		if app.Status.Canonical() != domain.ApplicationStatusReview {
			return errs.Deny(errs.ErrIllegalTransition, errs.ReasonIllegalTransition,
				"only an application in review can be endorsed, status is %s", app.Status.Canonical())
		}
		if app.EndorsedBy != "" && app.EndorsedBy != admin.ID {
			return invalid("application already endorsed by %s", app.EndorsedBy)
		}
		now := s.now().UTC()
		app.EndorsedBy = admin.ID
		app.EndorsedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, notification.Event{
		Type:          notification.EventApplicationEndorsed,
		ApplicationID: out.Application.ID,
		RecipientID:   out.Application.AssignedTo,
	})
	return out, nil
}

// Approve finalizes an application in review. The reviewer is read from the audit
// trail on every attempt so a retry never acts on a cached decision. The reviewer
// stamped on the record is checked as well.
func (s *Service) Approve(ctx context.Context, actor domain.Principal, appID, justification string) (*Outcome, error) {
	justification = strings.TrimSpace(justification)
	out, err := s.updateApplication(ctx, actor, domain.ActionApprove, appID, func(app *domain.Application, out *Outcome, meta domain.Metadata) error {
		admin, err := s.loadAdmin(ctx, actor)
		if err != nil {
			return err
		}
		reviewerID, err := s.audit.Trail().LastActor(ctx, app.ID, domain.ReviewActions)
		if err != nil {
			return err
		}
		if reviewerID == "" {
			reviewerID = app.ReviewedBy
		}
		endorser, err := s.loadEndorser(ctx, app)
		if err != nil {
			return err
		}
		meta["amount"] = app.RequestedAmount.String()
		if reviewerID != "" {
			meta["reviewer_id"] = reviewerID
		}
		if app.EndorsedBy != "" {
			meta["endorsed_by"] = app.EndorsedBy
		}

		check, err := s.policy.AuthorizeApproval(authz.DecisionRequest{
			Admin:         admin,
			Amount:        app.RequestedAmount,
			ReviewerIDs:   []string{reviewerID, app.ReviewedBy},
			Endorser:      endorser,
			At:            s.now(),
			Justification: justification,
		})
		out.DualAuthorization = check.DualAuthorization
		meta["dual_authorization"] = check.DualAuthorization
		if err != nil {
			return err
		}
		if check.HoursOverridden {
			out.HoursOverridden = true
			meta["hours_override"] = true
			meta["justification"] = justification
		}

		if err := moveTo(app, out, domain.ApplicationStatusApproved, lifecycle.TransitionContext{}); err != nil {
			return err
		}
		now := s.now().UTC()
		app.DecidedBy = admin.ID
		app.DecidedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, ownerEvent(notification.EventApplicationApproved, out.Application, ""))
	return out, nil
}

// loadEndorser returns the current profile of the application's endorser, nil when
// there is none or the profile no longer exists.
func (s *Service) loadEndorser(ctx context.Context, app *domain.Application) (*domain.AdminProfile, error) {
	if app.EndorsedBy == "" {
		return nil, nil
	}
	endorser, err := s.admins.Get(ctx, app.EndorsedBy)
	if errs.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	return endorser, err
}

// clearEndorsement drops the first signature once the case goes back to its owner.
func clearEndorsement(app *domain.Application) {
	app.EndorsedBy = ""
	app.EndorsedAt = nil
}

// RejectInput describes a rejection decision.
type RejectInput struct {
	Reason        string
	AllowResubmit bool
	Justification string
}

// Reject closes an application. AllowResubmit decides whether the owner may reopen it.
func (s *Service) Reject(ctx context.Context, actor domain.Principal, appID string, in RejectInput) (*Outcome, error) {
	reason := strings.TrimSpace(in.Reason)
	justification := strings.TrimSpace(in.Justification)

	out, err := s.updateApplication(ctx, actor, domain.ActionReject, appID, func(app *domain.Application, out *Outcome, meta domain.Metadata) error {
		admin, err := s.loadAdmin(ctx, actor)
		if err != nil {
			return err
		}
		meta["amount"] = app.RequestedAmount.String()
		meta["allow_resubmit"] = in.AllowResubmit

		check, err := s.policy.AuthorizeRejection(authz.DecisionRequest{
			Admin:         admin,
			Amount:        app.RequestedAmount,
			At:            s.now(),
			Justification: justification,
		})
		out.DualAuthorization = check.DualAuthorization
		if err != nil {
			return err
		}
		if check.HoursOverridden {
			out.HoursOverridden = true
			meta["hours_override"] = true
			meta["justification"] = justification
		}
		if reason == "" {
			return invalid("a rejection reason is required")
		}

		if err := moveTo(app, out, domain.ApplicationStatusRejected, lifecycle.TransitionContext{}); err != nil {
			return err
		}
		now := s.now().UTC()
		app.RejectionReason = reason
		app.RejectionAllowsResubmit = in.AllowResubmit
		app.DecidedBy = admin.ID
		app.DecidedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, ownerEvent(notification.EventApplicationRejected, out.Application, reason))
	return out, nil
}
