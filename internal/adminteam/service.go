// Package adminteam manages the admin team: profiles, roles, approval limits,
// permission overrides and deactivation. Profiles are never deleted.
package adminteam

import (
	"context"
	"strings"
	"time"

	"finreview/internal/audit"
	"finreview/internal/authz"
	"finreview/internal/metrics"
	"finreview/internal/permission"
	"finreview/internal/repository"
	"finreview/internal/store"
	"finreview/pkg/domain"
	errs "finreview/pkg/errors"
	"finreview/pkg/logger"

	"github.com/google/uuid"
)

// DefaultMaxWorkload applies when a new profile does not set one.
const DefaultMaxWorkload = 10

type Service struct {
	admins      *repository.Admins
	audit       *audit.Recorder
	metrics     *metrics.Metrics
	logger      logger.Logger
	maxAttempts int
	now         func() time.Time
}

func NewService(admins *repository.Admins, recorder *audit.Recorder, m *metrics.Metrics, log logger.Logger, maxAttempts int) *Service {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Service{
		admins:      admins,
		audit:       recorder,
		metrics:     m,
		logger:      log,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateInput describes a new admin. Role defaults drive capabilities and the
// approval limit; ApprovalLimit and Permissions are applied on top.
type CreateInput struct {
	ID            string
	Name          string
	Email         string
	Role          domain.Role
	MaxWorkload   int
	ApprovalLimit *domain.ApprovalLimit
	Permissions   map[string]bool
}

// UpdateInput carries the fields to change. Nil fields stay as they are.
// A role change resets capabilities and limit to the new role's defaults
// before ApprovalLimit and Permissions are applied.
type UpdateInput struct {
	Role          *domain.Role
	ApprovalLimit *domain.ApprovalLimit
	Permissions   map[string]bool
	MaxWorkload   *int
}

func (in UpdateInput) empty() bool {
	return in.Role == nil && in.ApprovalLimit == nil && in.Permissions == nil && in.MaxWorkload == nil
}

// ==============================================================================
// QUERIES
// ==============================================================================

// Get returns one profile. The actor needs canView.
func (s *Service) Get(ctx context.Context, actor domain.Principal, id string) (*domain.AdminProfile, error) {
	if _, err := s.authorize(ctx, actor, domain.CapView); err != nil {
		return nil, err
	}
	return s.admins.Get(ctx, id)
}

// List returns every active profile. The actor needs canView.
func (s *Service) List(ctx context.Context, actor domain.Principal) ([]*domain.AdminProfile, error) {
	if _, err := s.authorize(ctx, actor, domain.CapView); err != nil {
		return nil, err
	}
	return s.admins.ListActive(ctx)
}

// ==============================================================================
// CHANGES
// ==============================================================================

// Create adds a new active admin profile.
func (s *Service) Create(ctx context.Context, actor domain.Principal, in CreateInput) (*domain.AdminProfile, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.New().String()
	}
	meta := domain.Metadata{"role": string(in.Role)}

	profile, err := s.create(ctx, actor, id, in)
	s.finish(ctx, actor, domain.ActionCreateAdmin, id, err, meta)
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *Service) create(ctx context.Context, actor domain.Principal, id string, in CreateInput) (*domain.AdminProfile, error) {
	manager, err := s.authorize(ctx, actor, domain.CapManageAdmins)
	if err != nil {
		return nil, err
	}
	if !in.Role.Valid() {
		return nil, invalid("unknown role %q", in.Role)
	}
	if err := guardSuperAdmin(manager, in.Role); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	email := domain.NormalizeEmail(in.Email)
	if name == "" || email == "" {
		return nil, invalid("name and email are required")
	}
	maxWorkload := in.MaxWorkload
	if maxWorkload == 0 {
		maxWorkload = DefaultMaxWorkload
	}
	if maxWorkload < 0 {
		return nil, invalid("max workload must not be negative")
	}

	profile := permission.NewProfile(id, in.Role, maxWorkload)
	profile.Name = name
	profile.Email = email
	profile.CreatedBy = manager.ID
	if err := applyLimit(profile, in.ApprovalLimit); err != nil {
		return nil, err
	}
	if len(in.Permissions) > 0 {
		profile.Permissions = permission.ApplyOverrides(profile.Permissions, in.Permissions)
	}
	now := s.now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	if err := s.admins.Save(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// SystemActor is the principal recorded for changes made by the service itself.
var SystemActor = domain.Principal{ID: "system", Type: domain.PrincipalAdmin, Role: domain.RoleSuperAdmin}

// Bootstrap creates the first super_admin when id does not exist yet. It is the
// only path that creates a profile without an acting admin. created is false
// when the profile was already there.
func (s *Service) Bootstrap(ctx context.Context, id, name, email string) (profile *domain.AdminProfile, created bool, err error) {
	existing, err := s.admins.Get(ctx, id)
	if err == nil {
		return existing, false, nil
	}
	if !errs.Is(err, errs.ErrNotFound) {
		return nil, false, err
	}

	profile = permission.NewProfile(id, domain.RoleSuperAdmin, DefaultMaxWorkload)
	profile.Name = strings.TrimSpace(name)
	profile.Email = domain.NormalizeEmail(email)
	profile.CreatedBy = SystemActor.ID
	now := s.now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	err = s.admins.Save(ctx, profile)
	if errs.Is(err, errs.ErrAlreadyExists) {
		// another instance bootstrapped concurrently
		existing, err = s.admins.Get(ctx, id)
		return existing, false, err
	}
	s.finish(ctx, SystemActor, domain.ActionCreateAdmin, id, err, domain.Metadata{"role": string(domain.RoleSuperAdmin), "bootstrap": true})
	if err != nil {
		return nil, false, err
	}
	return profile, true, nil
}

// Update changes role, limit, overrides or workload capacity of a profile.
func (s *Service) Update(ctx context.Context, actor domain.Principal, id string, in UpdateInput) (*domain.AdminProfile, error) {
	meta := domain.Metadata{}
	if in.Role != nil {
		meta["role"] = string(*in.Role)
	}
	if in.ApprovalLimit != nil {
		meta["approval_limit"] = in.ApprovalLimit.String()
	}
	if in.Permissions != nil {
		meta["permissions"] = in.Permissions
	}
	if in.MaxWorkload != nil {
		meta["max_workload"] = *in.MaxWorkload
	}

	var profile *domain.AdminProfile
	err := s.withRetry(ctx, id, func() error {
		var err error
		profile, err = s.update(ctx, actor, id, in)
		return err
	})
	s.finish(ctx, actor, domain.ActionUpdateAdmin, id, err, meta)
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *Service) update(ctx context.Context, actor domain.Principal, id string, in UpdateInput) (*domain.AdminProfile, error) {
	manager, err := s.authorize(ctx, actor, domain.CapManageAdmins)
	if err != nil {
		return nil, err
	}
	if in.empty() {
		return nil, invalid("nothing to update")
	}
	target, err := s.admins.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardSuperAdmin(manager, target.Role); err != nil {
		return nil, err
	}

	if in.Role != nil && *in.Role != target.Role {
		if !in.Role.Valid() {
			return nil, invalid("unknown role %q", *in.Role)
		}
		if target.ID == manager.ID {
			return nil, errs.Deny(errs.ErrPermissionDenied, errs.ReasonMissingCapability, "admins cannot change their own role")
		}
		if err := guardSuperAdmin(manager, *in.Role); err != nil {
			return nil, err
		}
		permission.Rebase(target, *in.Role)
	}
	if err := applyLimit(target, in.ApprovalLimit); err != nil {
		return nil, err
	}
	if in.Permissions != nil {
		if target.ID == manager.ID {
			return nil, errs.Deny(errs.ErrPermissionDenied, errs.ReasonMissingCapability, "admins cannot change their own permissions")
		}
		target.Permissions = permission.ApplyOverrides(target.Permissions, in.Permissions)
	}
	if in.MaxWorkload != nil {
		if *in.MaxWorkload < 0 {
			return nil, invalid("max workload must not be negative")
		}
		target.MaxWorkload = *in.MaxWorkload
	}
	target.UpdatedAt = s.now().UTC()

	if err := s.admins.Save(ctx, target); err != nil {
		return nil, err
	}
	return target, nil
}

// UpdateRole moves an admin to role, resetting capabilities and limit to its defaults.
func (s *Service) UpdateRole(ctx context.Context, actor domain.Principal, id string, role domain.Role) (*domain.AdminProfile, error) {
	return s.Update(ctx, actor, id, UpdateInput{Role: &role})
}

// SetApprovalLimit replaces the approval limit of an admin.
func (s *Service) SetApprovalLimit(ctx context.Context, actor domain.Principal, id string, limit domain.ApprovalLimit) (*domain.AdminProfile, error) {
	return s.Update(ctx, actor, id, UpdateInput{ApprovalLimit: &limit})
}

// SetPermissions applies per-admin overrides. Base capability keys replace the
// role defaults; other keys are stored as custom extensions.
func (s *Service) SetPermissions(ctx context.Context, actor domain.Principal, id string, overrides map[string]bool) (*domain.AdminProfile, error) {
	if overrides == nil {
		overrides = map[string]bool{}
	}
	return s.Update(ctx, actor, id, UpdateInput{Permissions: overrides})
}

// Deactivate marks a profile inactive. An inactive admin fails every capability check.
func (s *Service) Deactivate(ctx context.Context, actor domain.Principal, id string) (*domain.AdminProfile, error) {
	var profile *domain.AdminProfile
	err := s.withRetry(ctx, id, func() error {
		manager, err := s.authorize(ctx, actor, domain.CapManageAdmins)
		if err != nil {
			return err
		}
		target, err := s.admins.Get(ctx, id)
		if err != nil {
			return err
		}
		if target.ID == manager.ID {
			return invalid("admins cannot deactivate themselves")
		}
		if err := guardSuperAdmin(manager, target.Role); err != nil {
			return err
		}
		if !target.IsActive {
			return invalid("admin %s is already inactive", id)
		}
		target.IsActive = false
		target.UpdatedAt = s.now().UTC()
		if err := s.admins.Save(ctx, target); err != nil {
			return err
		}
		profile = target
		return nil
	})
	s.finish(ctx, actor, domain.ActionDeactivateAdmin, id, err, nil)
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// ==============================================================================
// HELPERS
// ==============================================================================

// authorize loads the acting admin and checks capability on its stored profile.
func (s *Service) authorize(ctx context.Context, actor domain.Principal, capability domain.Capability) (*domain.AdminProfile, error) {
	if !actor.IsAdmin() {
		return nil, errs.Deny(errs.ErrPermissionDenied, errs.ReasonMissingCapability, "principal %s is not an admin", actor.ID)
	}
	admin, err := s.admins.Get(ctx, actor.ID)
	if errs.Is(err, errs.ErrNotFound) {
		return nil, errs.Deny(errs.ErrPermissionDenied, errs.ReasonInactiveAdmin, "admin %s has no profile", actor.ID)
	}
	if err != nil {
		return nil, err
	}
	if err := authz.CanPerform(admin, capability).Err(errs.ErrPermissionDenied, "%s requires %s", admin.ID, capability); err != nil {
		return nil, err
	}
	return admin, nil
}

// guardSuperAdmin keeps super_admin profiles in the hands of super_admins.
func guardSuperAdmin(manager *domain.AdminProfile, role domain.Role) error {
	if role == domain.RoleSuperAdmin && manager.Role != domain.RoleSuperAdmin {
		return errs.Deny(errs.ErrPermissionDenied, errs.ReasonMissingCapability, "only a super_admin may manage super_admin profiles")
	}
	return nil
}

func applyLimit(profile *domain.AdminProfile, limit *domain.ApprovalLimit) error {
	if limit == nil {
		return nil
	}
	if !limit.Unlimited && limit.Amount.IsNegative() {
		return invalid("approval limit must not be negative")
	}
	profile.ApprovalLimit = *limit
	return nil
}

func invalid(format string, args ...interface{}) error {
	return errs.Deny(errs.ErrInvalidInput, errs.ReasonInvalidInput, format, args...)
}

func (s *Service) withRetry(ctx context.Context, id string, attempt func() error) error {
	return store.Retry(ctx, s.maxAttempts, func(n int) {
		s.metrics.RecordRetry(store.CollectionAdmins)
		s.logger.Info("Stale admin profile, reloading", map[string]interface{}{
			"admin_id": id,
			"attempt":  n,
		})
	}, attempt)
}

func (s *Service) finish(ctx context.Context, actor domain.Principal, action, targetID string, err error, meta domain.Metadata) {
	reason := string(errs.ReasonOf(err))
	if err != nil && reason == "" {
		reason = "error"
	}
	s.metrics.RecordDecision(action, reason)
	_ = s.audit.Record(ctx, actor, action, targetID, err, meta)

	if err == nil {
		s.logger.Info("Admin team changed", map[string]interface{}{
			"action":    action,
			"target_id": targetID,
			"actor_id":  actor.ID,
		})
		return
	}
	s.logger.Warn("Admin team change refused", map[string]interface{}{
		"action":    action,
		"target_id": targetID,
		"actor_id":  actor.ID,
		"reason":    reason,
		"error":     err.Error(),
	})
}
