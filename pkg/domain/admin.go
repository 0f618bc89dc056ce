package domain

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ==============================================================================
// ROLES
// ==============================================================================

// Role is an admin team role, ordered by seniority.
type Role string

const (
	RoleViewer     Role = "viewer"
	RoleReviewer   Role = "reviewer"
	RoleApprover   Role = "approver"
	RoleManager    Role = "manager"
	RoleSuperAdmin Role = "super_admin"
)

// Roles lists every role from least to most senior.
var Roles = []Role{RoleViewer, RoleReviewer, RoleApprover, RoleManager, RoleSuperAdmin}

// Rank returns the seniority of r, or -1 for an unknown role.
func (r Role) Rank() int {
	for i, known := range Roles {
		if r == known {
			return i
		}
	}
	return -1
}

// Valid reports whether r is one of the base roles.
func (r Role) Valid() bool {
	return r.Rank() >= 0
}

// IsSenior reports whether r may approve high-value actions without a second approver.
func (r Role) IsSenior() bool {
	return r == RoleManager || r == RoleSuperAdmin
}

// ==============================================================================
// CAPABILITIES
// ==============================================================================

// Capability names one base permission.
type Capability string

const (
	CapView               Capability = "canView"
	CapReview             Capability = "canReview"
	CapRequestChanges     Capability = "canRequestChanges"
	CapApprove            Capability = "canApprove"
	CapAssign             Capability = "canAssign"
	CapManageAdmins       Capability = "canManageAdmins"
	CapAccessSystemConfig Capability = "canAccessSystemConfig"
	CapDistributeProfits  Capability = "canDistributeProfits"
	CapViewReports        Capability = "canViewReports"
	CapExportData         Capability = "canExportData"
	CapAccessAuditLogs    Capability = "canAccessAuditLogs"
	CapManageInvestors    Capability = "canManageInvestors"
)

// AllCapabilities is the closed base capability set.
var AllCapabilities = []Capability{
	CapView, CapReview, CapRequestChanges, CapApprove, CapAssign, CapManageAdmins,
	CapAccessSystemConfig, CapDistributeProfits, CapViewReports, CapExportData,
	CapAccessAuditLogs, CapManageInvestors,
}

// Capabilities is the strongly typed base permission record.
type Capabilities struct {
	CanView               bool `json:"canView"`
	CanReview             bool `json:"canReview"`
	CanRequestChanges     bool `json:"canRequestChanges"`
	CanApprove            bool `json:"canApprove"`
	CanAssign             bool `json:"canAssign"`
	CanManageAdmins       bool `json:"canManageAdmins"`
	CanAccessSystemConfig bool `json:"canAccessSystemConfig"`
	CanDistributeProfits  bool `json:"canDistributeProfits"`
	CanViewReports        bool `json:"canViewReports"`
	CanExportData         bool `json:"canExportData"`
	CanAccessAuditLogs    bool `json:"canAccessAuditLogs"`
	CanManageInvestors    bool `json:"canManageInvestors"`
}

func (c *Capabilities) field(capability Capability) *bool {
	switch capability {
	case CapView:
		return &c.CanView
	case CapReview:
		return &c.CanReview
	case CapRequestChanges:
		return &c.CanRequestChanges
	case CapApprove:
		return &c.CanApprove
	case CapAssign:
		return &c.CanAssign
	case CapManageAdmins:
		return &c.CanManageAdmins
	case CapAccessSystemConfig:
		return &c.CanAccessSystemConfig
	case CapDistributeProfits:
		return &c.CanDistributeProfits
	case CapViewReports:
		return &c.CanViewReports
	case CapExportData:
		return &c.CanExportData
	case CapAccessAuditLogs:
		return &c.CanAccessAuditLogs
	case CapManageInvestors:
		return &c.CanManageInvestors
	}
	return nil
}

// Has reports whether the capability is granted. Unknown capabilities are never granted.
func (c Capabilities) Has(capability Capability) bool {
	if f := c.field(capability); f != nil {
		return *f
	}
	return false
}

// Set grants or revokes a base capability. It returns false for a key outside the base set.
func (c *Capabilities) Set(capability Capability, granted bool) bool {
	f := c.field(capability)
	if f == nil {
		return false
	}
	*f = granted
	return true
}

// IsBaseCapability reports whether key names a base capability.
func IsBaseCapability(key string) bool {
	for _, c := range AllCapabilities {
		if string(c) == key {
			return true
		}
	}
	return false
}

// Permissions layers an open extension map over the closed base capabilities.
// Extension keys carry no built-in meaning; code that knows a key looks it up explicitly.
type Permissions struct {
	Capabilities
	Extensions map[string]bool `json:"extensions,omitempty"`
}

// Extension returns the value of a custom key, false when absent.
func (p Permissions) Extension(key string) bool {
	return p.Extensions[key]
}

// ==============================================================================
// APPROVAL LIMIT
// ==============================================================================

const unlimitedLiteral = "unlimited"

// ApprovalLimit is a currency amount or the unlimited sentinel.
type ApprovalLimit struct {
	Amount    decimal.Decimal
	Unlimited bool
}

// LimitOf returns a finite approval limit.
func LimitOf(amount decimal.Decimal) ApprovalLimit {
	return ApprovalLimit{Amount: amount}
}

// UnlimitedApproval returns the unlimited sentinel.
func UnlimitedApproval() ApprovalLimit {
	return ApprovalLimit{Unlimited: true}
}

// Covers reports whether amount is within the limit.
func (l ApprovalLimit) Covers(amount decimal.Decimal) bool {
	return l.Unlimited || amount.LessThanOrEqual(l.Amount)
}

// Cmp compares two limits: -1 if l < o, 0 if equal, +1 if l > o.
func (l ApprovalLimit) Cmp(o ApprovalLimit) int {
	switch {
	case l.Unlimited && o.Unlimited:
		return 0
	case l.Unlimited:
		return 1
	case o.Unlimited:
		return -1
	}
	return l.Amount.Cmp(o.Amount)
}

func (l ApprovalLimit) String() string {
	if l.Unlimited {
		return unlimitedLiteral
	}
	return l.Amount.String()
}

func (l ApprovalLimit) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *ApprovalLimit) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte(`"`+unlimitedLiteral+`"`)) {
		*l = UnlimitedApproval()
		return nil
	}
	var amount decimal.Decimal
	if err := amount.UnmarshalJSON(data); err != nil {
		return err
	}
	*l = LimitOf(amount)
	return nil
}

// ==============================================================================
// ADMIN PROFILE
// ==============================================================================

// AdminProfile is a member of the review team.
type AdminProfile struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Email           string        `json:"email"`
	Role            Role          `json:"role"`
	ApprovalLimit   ApprovalLimit `json:"approvalLimit"`
	Permissions     Permissions   `json:"permissions"`
	CurrentWorkload int           `json:"currentWorkload"`
	MaxWorkload     int           `json:"maxWorkload"`
	IsActive        bool          `json:"isActive"`
	CreatedBy       string        `json:"createdBy,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
	Version         int64         `json:"version"`
}

// HasCapacity reports whether another case can be assigned to the admin.
func (a *AdminProfile) HasCapacity() bool {
	return a.CurrentWorkload < a.MaxWorkload
}

// Principal returns the identity of the profile as an acting principal.
func (a *AdminProfile) Principal() Principal {
	return Principal{ID: a.ID, Type: PrincipalAdmin, Role: a.Role}
}
