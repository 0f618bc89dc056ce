// ==============================================================================
// DOMAIN MODELS - pkg/domain/models.go
// ==============================================================================
// Package domain defines the core entities of the financing review platform.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Currency the platform quotes financing amounts in.
const DefaultCurrency = "NGN"

// ==============================================================================
// PRINCIPALS
// ==============================================================================

// PrincipalType identifies who is acting: an admin, or the business/investor owning the case.
type PrincipalType string

const (
	PrincipalAdmin    PrincipalType = "admin"
	PrincipalBusiness PrincipalType = "business"
	PrincipalInvestor PrincipalType = "investor"
)

// IsOwnerType reports whether the principal type can own applications and documents.
func (t PrincipalType) IsOwnerType() bool {
	return t == PrincipalBusiness || t == PrincipalInvestor
}

// Principal is the authenticated actor handed to the engine by the identity layer.
type Principal struct {
	ID   string        `json:"id"`
	Type PrincipalType `json:"type"`
	Role Role          `json:"role,omitempty"`
}

// IsAdmin reports whether the principal belongs to the admin team.
func (p Principal) IsAdmin() bool {
	return p.Type == PrincipalAdmin
}

// ==============================================================================
// APPLICATIONS
// ==============================================================================

// ApplicationStatus is a state of the application lifecycle.
type ApplicationStatus string

const (
	// ApplicationStatusNew is accepted from legacy intake paths and normalized to pending.
	ApplicationStatusNew      ApplicationStatus = "new"
	ApplicationStatusPending  ApplicationStatus = "pending"
	ApplicationStatusReview   ApplicationStatus = "review"
	ApplicationStatusMoreInfo ApplicationStatus = "more-info"
	ApplicationStatusApproved ApplicationStatus = "approved"
	ApplicationStatusRejected ApplicationStatus = "rejected"
)

// Canonical maps the deprecated "new" alias onto "pending".
func (s ApplicationStatus) Canonical() ApplicationStatus {
	if s == ApplicationStatusNew {
		return ApplicationStatusPending
	}
	return s
}

// Valid reports whether s is a known status (the alias included).
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationStatusNew, ApplicationStatusPending, ApplicationStatusReview,
		ApplicationStatusMoreInfo, ApplicationStatusApproved, ApplicationStatusRejected:
		return true
	}
	return false
}

// Application is a financing request submitted by a business or investor.
type Application struct {
	ID                      string            `json:"id"`
	OwnerID                 string            `json:"ownerId"`
	OwnerType               PrincipalType     `json:"ownerType"`
	ContactEmail            string            `json:"contactEmail,omitempty"`
	Purpose                 string            `json:"purpose,omitempty"`
	Status                  ApplicationStatus `json:"status"`
	RequestedAmount         decimal.Decimal   `json:"requestedAmount"`
	Currency                string            `json:"currency"`
	RejectionReason         string            `json:"rejectionReason,omitempty"`
	RejectionAllowsResubmit bool              `json:"rejectionAllowsResubmit"`
	AdminMessage            string            `json:"adminMessage,omitempty"`
	DocumentsStatus         CompositeStatus   `json:"documentsStatus"`
	DocumentsUploaded       bool              `json:"documentsUploaded"`
	AssignedTo              string            `json:"assignedTo,omitempty"`
	ReviewedBy              string            `json:"reviewedBy,omitempty"`
	ReviewedAt              *time.Time        `json:"reviewedAt,omitempty"`
	EndorsedBy              string            `json:"endorsedBy,omitempty"`
	EndorsedAt              *time.Time        `json:"endorsedAt,omitempty"`
	DecidedBy               string            `json:"decidedBy,omitempty"`
	DecidedAt               *time.Time        `json:"decidedAt,omitempty"`
	ResubmittedAt           *time.Time        `json:"resubmittedAt,omitempty"`
	SubmittedAt             time.Time         `json:"submittedAt"`
	UpdatedAt               time.Time         `json:"updatedAt"`
	Version                 int64             `json:"version"`
}

// ApplicationKey builds the durable composite key `ownerId_timestamp`.
func ApplicationKey(ownerID string, at time.Time) string {
	return fmt.Sprintf("%s_%d", ownerID, at.UnixMilli())
}

// ==============================================================================
// AUDIT
// ==============================================================================

// Audited actions.
const (
	ActionSubmitApplication = "submit_application"
	ActionStartReview       = "start_review"
	ActionRequestInfo       = "request_info"
	ActionProvideInfo       = "provide_info"
	ActionEndorse           = "endorse"
	ActionApprove           = "approve"
	ActionReject            = "reject"
	ActionResubmit          = "resubmit"
	ActionReassign          = "reassign"
	ActionRegisterDocument  = "register_document"
	ActionVerifyDocument    = "verify_document"
	ActionRejectDocument    = "reject_document"
	ActionCreateAdmin       = "create_admin"
	ActionUpdateAdmin       = "update_admin"
	ActionDeactivateAdmin   = "deactivate_admin"
)

// ReviewActions are the actions that count as due-diligence review of an application.
var ReviewActions = []string{ActionStartReview, ActionRequestInfo}

// AuditEntry is an immutable record of one authorization decision or state change.
type AuditEntry struct {
	ID          string    `json:"id" db:"id"`
	ActorID     string    `json:"actorId" db:"actor_id"`
	ActorRole   string    `json:"actorRole" db:"actor_role"`
	Action      string    `json:"action" db:"action"`
	TargetID    string    `json:"targetId" db:"target_id"`
	Timestamp   time.Time `json:"timestamp" db:"created_at"`
	Success     bool      `json:"success" db:"success"`
	ErrorReason string    `json:"errorReason,omitempty" db:"error_reason"`
	Metadata    Metadata  `json:"metadata,omitempty" db:"metadata"`
}

// Metadata is a JSON-compatible map
type Metadata map[string]interface{}

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(value interface{}) error {
	var b []byte
	switch v := value.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, m)
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
