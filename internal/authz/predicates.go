// Package authz holds the authorization predicates gating every admin action.
// All predicates are pure: they take the acting profile explicitly and read no ambient state.
package authz

import (
	"time"

	"finreview/pkg/config"
	"finreview/pkg/domain"
	errs "finreview/pkg/errors"

	"github.com/shopspring/decimal"
)

// Decision is the outcome of a predicate. Reason is set only when Allowed is false.
type Decision struct {
	Allowed bool
	Reason  errs.Reason
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason errs.Reason) Decision { return Decision{Reason: reason} }

// Err converts a denial into a DeniedError of the given kind; nil when allowed.
func (d Decision) Err(kind error, format string, args ...interface{}) error {
	if d.Allowed {
		return nil
	}
	return errs.Deny(kind, d.Reason, format, args...)
}

// CanPerform requires an active admin holding capability.
func CanPerform(admin *domain.AdminProfile, capability domain.Capability) Decision {
	if admin == nil || !admin.IsActive {
		return deny(errs.ReasonInactiveAdmin)
	}
	if !admin.Permissions.Has(capability) {
		return deny(errs.ReasonMissingCapability)
	}
	return allow()
}

// CanApprove requires the approve capability on an active profile.
func CanApprove(admin *domain.AdminProfile) Decision {
	return CanPerform(admin, domain.CapApprove)
}

// CanApproveAmount additionally requires amount to be within the admin's approval limit.
func CanApproveAmount(admin *domain.AdminProfile, amount decimal.Decimal) Decision {
	if d := CanApprove(admin); !d.Allowed {
		return d
	}
	if !admin.ApprovalLimit.Covers(amount) {
		return deny(errs.ReasonExceedsLimit)
	}
	return allow()
}

// CanApproveHighValue reports whether the admin may approve amount alone.
// Above threshold only managers and super admins may; anyone else needs a second approver.
func CanApproveHighValue(admin *domain.AdminProfile, amount, threshold decimal.Decimal) Decision {
	if amount.LessThanOrEqual(threshold) {
		return allow()
	}
	if admin != nil && admin.Role.IsSenior() {
		return allow()
	}
	return deny(errs.ReasonDualAuthorizationRequired)
}

// RequiresDualAuthorization reports whether amount is above the risk threshold.
func RequiresDualAuthorization(amount, threshold decimal.Decimal) bool {
	return amount.GreaterThan(threshold)
}

// ValidateSeparationOfDuties fails when the reviewer is also the approver.
func ValidateSeparationOfDuties(reviewerID, approverID string) Decision {
	if reviewerID == approverID {
		return deny(errs.ReasonSameActor)
	}
	return allow()
}

// IsWithinBusinessHours checks ts against the working window in loc.
// The window is [StartHour, EndHour) on the listed days.
func IsWithinBusinessHours(ts time.Time, loc *time.Location, window config.BusinessHours) Decision {
	if loc == nil {
		loc = time.UTC
	}
	local := ts.In(loc)

	dayOK := false
	for _, d := range window.Days {
		if local.Weekday() == d {
			dayOK = true
			break
		}
	}
	if !dayOK {
		return deny(errs.ReasonOutsideBusinessHours)
	}

	hour := local.Hour()
	if hour < window.StartHour || hour >= window.EndHour {
		return deny(errs.ReasonOutsideBusinessHours)
	}
	return allow()
}
