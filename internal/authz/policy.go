package authz

import (
	"strings"
	"time"

	"finreview/pkg/config"
	"finreview/pkg/domain"
	errs "finreview/pkg/errors"

	"github.com/shopspring/decimal"
)

// Policy composes the predicates into the checks each gated action needs.
type Policy struct {
	threshold    decimal.Decimal
	location     *time.Location
	hours        config.BusinessHours
	enforceHours bool
}

// NewPolicy builds a Policy from the policy configuration.
func NewPolicy(cfg config.PolicyConfig) *Policy {
	return &Policy{
		threshold:    cfg.DualAuthThreshold,
		location:     cfg.Location(),
		hours:        cfg.BusinessHours,
		enforceHours: cfg.EnforceBusinessHours,
	}
}

// Threshold returns the dual authorization threshold.
func (p *Policy) Threshold() decimal.Decimal {
	return p.threshold
}

// DecisionRequest describes an approve, endorse or reject attempt.
type DecisionRequest struct {
	Admin  *domain.AdminProfile
	Amount decimal.Decimal
	// ReviewerIDs are the admins on record as having reviewed the case. Empty values
	// are ignored; the approver must differ from every other one.
	ReviewerIDs []string
	// Endorser is the current profile of the first signature on a high-value
	// application, nil when there is none.
	Endorser      *domain.AdminProfile
	At            time.Time
	Justification string
}

// Check is what a passing authorization established.
type Check struct {
	DualAuthorization bool
	HoursOverridden   bool
}

// AuthorizeApproval runs the approval gate: capability, limit, separation of duties,
// dual authorization, then the advisory business-hours check.
func (p *Policy) AuthorizeApproval(req DecisionRequest) (Check, error) {
	var check Check

	if d := CanApprove(req.Admin); !d.Allowed {
		return check, d.Err(errs.ErrPermissionDenied, "admin may not approve")
	}
	if d := CanApproveAmount(req.Admin, req.Amount); !d.Allowed {
		return check, d.Err(errs.ErrLimitExceeded, "amount %s exceeds approval limit %s", req.Amount, req.Admin.ApprovalLimit)
	}

	if RequiresDualAuthorization(req.Amount, p.threshold) {
		check.DualAuthorization = true

		for _, reviewerID := range req.ReviewerIDs {
			if reviewerID == "" {
				continue
			}
			if d := ValidateSeparationOfDuties(reviewerID, req.Admin.ID); !d.Allowed {
				return check, d.Err(errs.ErrSeparationOfDuties, "reviewer %s cannot also approve", reviewerID)
			}
		}

		if d := CanApproveHighValue(req.Admin, req.Amount, p.threshold); !d.Allowed {
			if err := p.checkEndorsement(req); err != nil {
				return check, err
			}
		}
	}

	overridden, err := p.checkHours(req, check.DualAuthorization)
	check.HoursOverridden = overridden
	return check, err
}

// AuthorizeEndorsement checks a first signature on a high-value application.
func (p *Policy) AuthorizeEndorsement(req DecisionRequest) (Check, error) {
	check := Check{DualAuthorization: RequiresDualAuthorization(req.Amount, p.threshold)}

	if d := CanApprove(req.Admin); !d.Allowed {
		return check, d.Err(errs.ErrPermissionDenied, "admin may not endorse")
	}
	if d := CanApproveAmount(req.Admin, req.Amount); !d.Allowed {
		return check, d.Err(errs.ErrLimitExceeded, "amount %s exceeds approval limit %s", req.Amount, req.Admin.ApprovalLimit)
	}
	if !check.DualAuthorization {
		return check, errs.Deny(errs.ErrInvalidInput, errs.ReasonInvalidInput, "amount %s does not need a second approver", req.Amount)
	}
	return check, nil
}

// AuthorizeRejection checks a final rejection. No limit applies to rejecting.
func (p *Policy) AuthorizeRejection(req DecisionRequest) (Check, error) {
	check := Check{DualAuthorization: RequiresDualAuthorization(req.Amount, p.threshold)}

	if d := CanApprove(req.Admin); !d.Allowed {
		return check, d.Err(errs.ErrPermissionDenied, "admin may not reject")
	}

	overridden, err := p.checkHours(req, check.DualAuthorization)
	check.HoursOverridden = overridden
	return check, err
}

// checkEndorsement requires a distinct endorser who can still approve the amount now.
func (p *Policy) checkEndorsement(req DecisionRequest) error {
	endorser := req.Endorser
	if endorser == nil || endorser.ID == req.Admin.ID {
		return errs.Deny(errs.ErrDualAuthorizationRequired, errs.ReasonDualAuthorizationRequired,
			"amount %s above %s needs a second distinct approver", req.Amount, p.threshold)
	}
	if d := CanApproveAmount(endorser, req.Amount); !d.Allowed {
		return errs.Deny(errs.ErrDualAuthorizationRequired, errs.ReasonDualAuthorizationRequired,
			"endorser %s can no longer approve %s (%s)", endorser.ID, req.Amount, d.Reason)
	}
	return nil
}

// checkHours gates high-value decisions to working hours unless a justification is given.
func (p *Policy) checkHours(req DecisionRequest, highValue bool) (bool, error) {
	if !p.enforceHours || !highValue {
		return false, nil
	}
	at := req.At
	if at.IsZero() {
		at = time.Now()
	}
	if d := IsWithinBusinessHours(at, p.location, p.hours); !d.Allowed {
		if strings.TrimSpace(req.Justification) == "" {
			return false, d.Err(errs.ErrOutsideBusinessHours, "high-value decision outside working hours needs a justification")
		}
		return true, nil
	}
	return false, nil
}
