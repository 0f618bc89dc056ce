// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Error kinds. Every denial the engine produces unwraps to exactly one of these.
var (
	ErrPermissionDenied          = errors.New("permission denied")
	ErrLimitExceeded             = errors.New("approval limit exceeded")
	ErrDualAuthorizationRequired = errors.New("dual authorization required")
	ErrSeparationOfDuties        = errors.New("separation of duties violation")
	ErrIllegalTransition         = errors.New("illegal status transition")
	ErrStaleVersion              = errors.New("stale version")
	ErrOutsideBusinessHours      = errors.New("outside business hours")
	ErrWorkloadExceeded          = errors.New("assignee workload exceeded")
	ErrDocumentExpired           = errors.New("document expired")

	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
)

// Reason is a machine-readable denial code.
type Reason string

const (
	ReasonNone                      Reason = ""
	ReasonInactiveAdmin             Reason = "inactive_admin"
	ReasonMissingCapability         Reason = "missing_capability"
	ReasonExceedsLimit              Reason = "exceeds_limit"
	ReasonDualAuthorizationRequired Reason = "dual_authorization_required"
	ReasonSameActor                 Reason = "same_actor"
	ReasonOutsideBusinessHours      Reason = "outside_business_hours"
	ReasonIllegalTransition         Reason = "illegal_transition"
	ReasonVersionOutdated           Reason = "version_outdated"
	ReasonNotOwner                  Reason = "not_owner"
	ReasonNotResubmission           Reason = "not_resubmission"
	ReasonResubmissionNotAllowed    Reason = "resubmission_not_allowed"
	ReasonDocumentExpired           Reason = "document_expired"
	ReasonWorkloadFull              Reason = "workload_full"
	ReasonNotFound                  Reason = "not_found"
	ReasonInvalidInput              Reason = "invalid_input"
)

// DeniedError is a recoverable refusal: the action was not performed.
type DeniedError struct {
	Kind    error
	Reason  Reason
	Message string
}

func (e *DeniedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v (%s)", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%v (%s): %s", e.Kind, e.Reason, e.Message)
}

func (e *DeniedError) Unwrap() error {
	return e.Kind
}

// Deny builds a DeniedError.
func Deny(kind error, reason Reason, format string, args ...interface{}) *DeniedError {
	return &DeniedError{Kind: kind, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the reason code of err, or ReasonNone when err is not a denial.
func ReasonOf(err error) Reason {
	var denied *DeniedError
	if errors.As(err, &denied) {
		return denied.Reason
	}
	return ReasonNone
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is and As re-export the standard helpers so callers need a single errors import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }

// New re-exports errors.New.
func New(text string) error { return errors.New(text) }
