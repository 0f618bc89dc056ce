// ==============================================================================
// REVIEW SERVICE - internal/review/service.go
// ==============================================================================
// Gated actions on applications and documents. Every action runs the same cycle:
// load fresh state, authorize, validate the transition, write at the loaded
// version, append one audit entry, dispatch a best-effort notification.
// ==============================================================================

package review

import (
	"context"
	"time"

	"finreview/internal/audit"
	"finreview/internal/authz"
	"finreview/internal/metrics"
	"finreview/internal/notification"
	"finreview/internal/repository"
	"finreview/internal/store"
	"finreview/pkg/domain"
	errs "finreview/pkg/errors"
	"finreview/pkg/logger"
)

// Dependencies groups the collaborators of a Service.
type Dependencies struct {
	Applications *repository.Applications
	Documents    *repository.Documents
	Admins       *repository.Admins
	KYCCases     *repository.KYCCases
	Policy       *authz.Policy
	Audit        *audit.Recorder
	Notifier     notification.Notifier
	Metrics      *metrics.Metrics
	Logger       logger.Logger
	// MaxAttempts counts the first try. Values below 1 mean 1.
	MaxAttempts int
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Service implements the review actions.
type Service struct {
	apps        *repository.Applications
	docs        *repository.Documents
	admins      *repository.Admins
	kyc         *repository.KYCCases
	policy      *authz.Policy
	audit       *audit.Recorder
	notifier    notification.Notifier
	metrics     *metrics.Metrics
	logger      logger.Logger
	maxAttempts int
	now         func() time.Time
}

// NewService creates a review Service.
func NewService(d Dependencies) *Service {
	s := &Service{
		apps:        d.Applications,
		docs:        d.Documents,
		admins:      d.Admins,
		kyc:         d.KYCCases,
		policy:      d.Policy,
		audit:       d.Audit,
		notifier:    d.Notifier,
		metrics:     d.Metrics,
		logger:      d.Logger,
		maxAttempts: d.MaxAttempts,
		now:         d.Clock,
	}
	if s.maxAttempts < 1 {
		s.maxAttempts = 1
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Outcome is what a successful application action produced.
type Outcome struct {
	Application       *domain.Application      `json:"application"`
	From              domain.ApplicationStatus `json:"from"`
	To                domain.ApplicationStatus `json:"to"`
	DualAuthorization bool                     `json:"dualAuthorization"`
	HoursOverridden   bool                     `json:"hoursOverridden"`
}

// ==============================================================================
// RETRY
// ==============================================================================

// withRetry reruns attempt from a fresh load when its write hits a stale version.
func (s *Service) withRetry(ctx context.Context, collection, key string, attempt func() error) error {
	return store.Retry(ctx, s.maxAttempts, func(n int) {
		s.metrics.RecordRetry(collection)
		s.logger.Info("Stale version, reloading", map[string]interface{}{
			"collection": collection,
			"key":        key,
			"attempt":    n,
		})
	}, attempt)
}

// ==============================================================================
// SHARED HELPERS
// ==============================================================================

// loadAdmin resolves an admin principal to its stored profile.
func (s *Service) loadAdmin(ctx context.Context, actor domain.Principal) (*domain.AdminProfile, error) {
	if !actor.IsAdmin() {
		return nil, errs.Deny(errs.ErrPermissionDenied, errs.ReasonMissingCapability, "principal %s is not an admin", actor.ID)
	}
	admin, err := s.admins.Get(ctx, actor.ID)
	if errs.Is(err, errs.ErrNotFound) {
		return nil, errs.Deny(errs.ErrPermissionDenied, errs.ReasonInactiveAdmin, "admin %s has no profile", actor.ID)
	}
	return admin, err
}

func requireCapability(admin *domain.AdminProfile, capability domain.Capability) error {
	return authz.CanPerform(admin, capability).Err(errs.ErrPermissionDenied, "%s requires %s", admin.ID, capability)
}

func requireOwner(actor domain.Principal, ownerID string) error {
	if !actor.Type.IsOwnerType() || actor.ID != ownerID {
		return errs.Deny(errs.ErrPermissionDenied, errs.ReasonNotOwner, "principal %s does not own this record", actor.ID)
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return errs.Deny(errs.ErrInvalidInput, errs.ReasonInvalidInput, format, args...)
}

// finish records the decision, writes the audit entry and logs the outcome of one action.
func (s *Service) finish(ctx context.Context, actor domain.Principal, action, targetID string, err error, meta domain.Metadata) {
	reason := string(errs.ReasonOf(err))
	if err != nil && reason == "" {
		reason = "error"
	}
	s.metrics.RecordDecision(action, reason)

	// An audit failure is logged by the recorder; the action outcome stands.
	_ = s.audit.Record(ctx, actor, action, targetID, err, meta)

	if err == nil {
		return
	}
	fields := map[string]interface{}{
		"action":    action,
		"target_id": targetID,
		"actor_id":  actor.ID,
		"reason":    reason,
		"error":     err.Error(),
	}
	var denied *errs.DeniedError
	if errs.As(err, &denied) {
		s.logger.Warn("Action denied", fields)
		return
	}
	s.logger.Error("Action failed", fields)
}

func (s *Service) notify(ctx context.Context, e notification.Event) {
	if s.notifier != nil {
		s.notifier.Dispatch(ctx, e)
	}
}
