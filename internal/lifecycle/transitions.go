// ==============================================================================
// APPLICATION LIFECYCLE - internal/lifecycle/transitions.go
// ==============================================================================
// Decides which application status changes are legal and which fields a
// resubmission resets. Persistence is the caller's job.
// ==============================================================================

package lifecycle

import (
	"time"

	"finreview/pkg/domain"
	errs "finreview/pkg/errors"
)

// TransitionContext describes who is moving the application and why.
type TransitionContext struct {
	// IsBusiness is true when the actor is the owning business or investor, never an admin.
	IsBusiness bool
	// IsResubmission is true only for an explicit resubmit action.
	IsResubmission bool
	// RejectionAllowsResubmit must be read from the freshly loaded application.
	RejectionAllowsResubmit bool
}

type transition struct {
	From domain.ApplicationStatus
	To   domain.ApplicationStatus
}

var allowedTransitions = map[transition]bool{
	{domain.ApplicationStatusPending, domain.ApplicationStatusReview}:   true,
	{domain.ApplicationStatusPending, domain.ApplicationStatusMoreInfo}: true,
	{domain.ApplicationStatusPending, domain.ApplicationStatusRejected}: true,

	{domain.ApplicationStatusReview, domain.ApplicationStatusApproved}: true,
	{domain.ApplicationStatusReview, domain.ApplicationStatusRejected}: true,
	{domain.ApplicationStatusReview, domain.ApplicationStatusMoreInfo}: true,

	{domain.ApplicationStatusMoreInfo, domain.ApplicationStatusReview}:  true,
	{domain.ApplicationStatusMoreInfo, domain.ApplicationStatusPending}: true,

	// Structurally allowed; gated by the resubmission rules below.
	{domain.ApplicationStatusRejected, domain.ApplicationStatusPending}: true,
}

// ValidateTransition returns nil when from -> to is legal under ctx, otherwise a
// DeniedError of kind ErrIllegalTransition naming the pair.
func ValidateTransition(from, to domain.ApplicationStatus, ctx TransitionContext) error {
	from, to = from.Canonical(), to.Canonical()

	if !allowedTransitions[transition{from, to}] {
		return errs.Deny(errs.ErrIllegalTransition, errs.ReasonIllegalTransition,
			"transition from %s to %s is not allowed", from, to)
	}

	if from == domain.ApplicationStatusRejected {
		switch {
		case !ctx.IsResubmission:
			return errs.Deny(errs.ErrIllegalTransition, errs.ReasonNotResubmission,
				"transition from %s to %s is only allowed as a resubmission", from, to)
		case !ctx.IsBusiness:
			return errs.Deny(errs.ErrIllegalTransition, errs.ReasonNotOwner,
				"transition from %s to %s can only be made by the applicant", from, to)
		case !ctx.RejectionAllowsResubmit:
			return errs.Deny(errs.ErrIllegalTransition, errs.ReasonResubmissionNotAllowed,
				"transition from %s to %s is closed: the rejection is final", from, to)
		}
	}

	return nil
}

// CanTransition is the boolean form of ValidateTransition.
func CanTransition(from, to domain.ApplicationStatus, ctx TransitionContext) bool {
	return ValidateTransition(from, to, ctx) == nil
}

// IsTerminal reports whether no transition can leave status given the resubmission flag.
func IsTerminal(status domain.ApplicationStatus, rejectionAllowsResubmit bool) bool {
	switch status.Canonical() {
	case domain.ApplicationStatusApproved:
		return true
	case domain.ApplicationStatusRejected:
		return !rejectionAllowsResubmit
	}
	return false
}

// NextStatuses lists the statuses reachable from status, ignoring actor gating.
func NextStatuses(status domain.ApplicationStatus) []domain.ApplicationStatus {
	from := status.Canonical()
	var out []domain.ApplicationStatus
	for _, to := range []domain.ApplicationStatus{
		domain.ApplicationStatusPending,
		domain.ApplicationStatusReview,
		domain.ApplicationStatusMoreInfo,
		domain.ApplicationStatusApproved,
		domain.ApplicationStatusRejected,
	} {
		if allowedTransitions[transition{from, to}] {
			out = append(out, to)
		}
	}
	return out
}

// ResubmissionResetFields names the fields a resubmission clears.
var ResubmissionResetFields = []string{"rejectionReason", "rejectionAllowsResubmit", "adminMessage", "endorsedBy"}

// ApplyResubmission reopens a rejected application in place. The key, documents and
// history stay attached to the same record.
func ApplyResubmission(app *domain.Application, now time.Time) {
	app.Status = domain.ApplicationStatusPending
	app.RejectionReason = ""
	app.RejectionAllowsResubmit = false
	app.AdminMessage = ""
	app.EndorsedBy = ""
	app.EndorsedAt = nil
	app.DecidedBy = ""
	app.DecidedAt = nil
	app.ResubmittedAt = &now
	app.UpdatedAt = now
}
