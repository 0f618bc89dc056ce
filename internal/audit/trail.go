// Package audit keeps the append-only record of every authorization decision and
// state change. Entries are never updated or removed once appended.
package audit

import (
	"context"
	"time"

	"finreview/pkg/domain"
	errs "finreview/pkg/errors"
	"finreview/pkg/logger"

	"github.com/google/uuid"
)

// Trail is the audit sink.
type Trail interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	// ForTarget returns the entries for targetID, newest first. limit <= 0 means all.
	ForTarget(ctx context.Context, targetID string, limit int) ([]*domain.AuditEntry, error)
	// LastActor returns the actor of the most recent successful entry for targetID whose
	// action is one of actions, or "" when there is none.
	LastActor(ctx context.Context, targetID string, actions []string) (string, error)
}

// Recorder turns action outcomes into audit entries.
type Recorder struct {
	trail  Trail
	logger logger.Logger
	now    func() time.Time
}

// NewRecorder creates a Recorder writing to trail.
func NewRecorder(trail Trail, log logger.Logger) *Recorder {
	return &Recorder{trail: trail, logger: log, now: time.Now}
}

// Trail exposes the underlying sink for read access.
func (r *Recorder) Trail() Trail {
	return r.trail
}

// Record appends exactly one entry for an attempted action. A nil outcome is a success.
func (r *Recorder) Record(ctx context.Context, actor domain.Principal, action, targetID string, outcome error, metadata domain.Metadata) error {
	entry := NewEntry(actor, action, targetID, outcome, metadata)
	entry.Timestamp = r.now().UTC()

	if err := r.trail.Append(ctx, entry); err != nil {
		r.logger.Error("Failed to append audit entry", map[string]interface{}{
			"action":    action,
			"target_id": targetID,
			"actor_id":  actor.ID,
			"error":     err.Error(),
		})
		return errs.Wrap(err, "failed to append audit entry")
	}
	return nil
}

// NewEntry builds an entry without a timestamp.
func NewEntry(actor domain.Principal, action, targetID string, outcome error, metadata domain.Metadata) *domain.AuditEntry {
	entry := &domain.AuditEntry{
		ID:        uuid.New().String(),
		ActorID:   actor.ID,
		ActorRole: ActorRole(actor),
		Action:    action,
		TargetID:  targetID,
		Success:   outcome == nil,
		Metadata:  metadata,
	}
	if outcome != nil {
		if reason := errs.ReasonOf(outcome); reason != errs.ReasonNone {
			entry.ErrorReason = string(reason)
		} else {
			entry.ErrorReason = outcome.Error()
		}
	}
	return entry
}

// ActorRole is the admin role, or the principal type for owners.
func ActorRole(p domain.Principal) string {
	if p.IsAdmin() && p.Role != "" {
		return string(p.Role)
	}
	return string(p.Type)
}
