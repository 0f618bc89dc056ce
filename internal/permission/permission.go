// Package permission maps admin roles to their default capabilities and approval limits.
package permission

import (
	"finreview/pkg/domain"

	"github.com/shopspring/decimal"
)

// RoleDefaults is the capability set and approval limit a role starts with.
type RoleDefaults struct {
	Capabilities  domain.Capabilities
	ApprovalLimit domain.ApprovalLimit
}

var roleTable = map[domain.Role]RoleDefaults{
	domain.RoleViewer: {
		Capabilities: domain.Capabilities{
			CanView:        true,
			CanViewReports: true,
		},
		ApprovalLimit: domain.LimitOf(decimal.Zero),
	},
	domain.RoleReviewer: {
		Capabilities: domain.Capabilities{
			CanView:           true,
			CanReview:         true,
			CanRequestChanges: true,
			CanViewReports:    true,
		},
		ApprovalLimit: domain.LimitOf(decimal.Zero),
	},
	domain.RoleApprover: {
		Capabilities: domain.Capabilities{
			CanView:           true,
			CanReview:         true,
			CanRequestChanges: true,
			CanApprove:        true,
			CanViewReports:    true,
			CanExportData:     true,
		},
		ApprovalLimit: domain.LimitOf(decimal.NewFromInt(500000)),
	},
	domain.RoleManager: {
		Capabilities: domain.Capabilities{
			CanView:              true,
			CanReview:            true,
			CanRequestChanges:    true,
			CanApprove:           true,
			CanAssign:            true,
			CanManageAdmins:      true,
			CanDistributeProfits: true,
			CanViewReports:       true,
			CanExportData:        true,
			CanAccessAuditLogs:   true,
			CanManageInvestors:   true,
		},
		ApprovalLimit: domain.LimitOf(decimal.NewFromInt(5000000)),
	},
	domain.RoleSuperAdmin: {
		Capabilities:  allGranted(),
		ApprovalLimit: domain.UnlimitedApproval(),
	},
}

func allGranted() domain.Capabilities {
	var c domain.Capabilities
	for _, capability := range domain.AllCapabilities {
		c.Set(capability, true)
	}
	return c
}

// CapabilitiesFor returns the defaults of role. Unknown roles get the viewer set.
func CapabilitiesFor(role domain.Role) RoleDefaults {
	if d, ok := roleTable[role]; ok {
		return d
	}
	return roleTable[domain.RoleViewer]
}

// DefaultPermissions returns a fresh permission record for role with no overrides.
func DefaultPermissions(role domain.Role) domain.Permissions {
	return domain.Permissions{Capabilities: CapabilitiesFor(role).Capabilities}
}

// ApplyOverrides writes per-admin overrides into p. Base capability keys replace the
// typed booleans; any other key lands in the extension map untouched.
func ApplyOverrides(p domain.Permissions, overrides map[string]bool) domain.Permissions {
	out := domain.Permissions{Capabilities: p.Capabilities}
	if len(p.Extensions) > 0 {
		out.Extensions = make(map[string]bool, len(p.Extensions))
		for k, v := range p.Extensions {
			out.Extensions[k] = v
		}
	}

	for key, granted := range overrides {
		if out.Capabilities.Set(domain.Capability(key), granted) {
			continue
		}
		if out.Extensions == nil {
			out.Extensions = make(map[string]bool)
		}
		out.Extensions[key] = granted
	}
	return out
}

// NewProfile builds an active admin profile carrying the defaults of role.
func NewProfile(id string, role domain.Role, maxWorkload int) *domain.AdminProfile {
	if !role.Valid() {
		role = domain.RoleViewer
	}
	d := CapabilitiesFor(role)
	return &domain.AdminProfile{
		ID:            id,
		Role:          role,
		ApprovalLimit: d.ApprovalLimit,
		Permissions:   domain.Permissions{Capabilities: d.Capabilities},
		MaxWorkload:   maxWorkload,
		IsActive:      true,
	}
}

// Rebase resets permissions and limit of a profile to the defaults of its new role,
// keeping custom extension keys.
func Rebase(a *domain.AdminProfile, role domain.Role) {
	d := CapabilitiesFor(role)
	a.Role = role
	a.ApprovalLimit = d.ApprovalLimit
	a.Permissions = domain.Permissions{Capabilities: d.Capabilities, Extensions: a.Permissions.Extensions}
}
