package review

import (
	"context"

	"finreview/internal/authz"
	"finreview/internal/notification"
	"finreview/internal/store"
	"finreview/pkg/domain"
	errs "finreview/pkg/errors"
)

// Reassign hands an open application to another reviewer and moves the workload
// counters with it. The assignee's counter is raised first; if the application write
// then fails the raise is undone before the cycle is retried.
func (s *Service) Reassign(ctx context.Context, actor domain.Principal, appID, assigneeID string) (*Outcome, error) {
	meta := domain.Metadata{"assignee_id": assigneeID}
	var (
		out      *Outcome
		previous string
	)

	err := s.withRetry(ctx, store.CollectionApplications, appID, func() error {
		admin, err := s.loadAdmin(ctx, actor)
		if err != nil {
			return err
		}
		if err := requireCapability(admin, domain.CapAssign); err != nil {
			return err
		}

		app, err := s.apps.Get(ctx, appID)
		if err != nil {
			return err
		}
		status := app.Status.Canonical()
		meta["status"] = string(status)
		if status == domain.ApplicationStatusApproved || status == domain.ApplicationStatusRejected {
			return errs.Deny(errs.ErrIllegalTransition, errs.ReasonIllegalTransition, "a %s application cannot be reassigned", status)
		}
		if app.AssignedTo == assigneeID {
			return invalid("application is already assigned to %s", assigneeID)
		}

		assignee, err := s.admins.Get(ctx, assigneeID)
		if errs.Is(err, errs.ErrNotFound) {
			return invalid("assignee %s does not exist", assigneeID)
		}
		if err != nil {
			return err
		}
		if err := authz.CanPerform(assignee, domain.CapReview).Err(errs.ErrPermissionDenied, "assignee %s cannot review", assigneeID); err != nil {
			return err
		}
		if !assignee.HasCapacity() {
			return errs.Deny(errs.ErrWorkloadExceeded, errs.ReasonWorkloadFull,
				"assignee %s is at capacity (%d/%d)", assigneeID, assignee.CurrentWorkload, assignee.MaxWorkload)
		}

		assignee.CurrentWorkload++
		assignee.UpdatedAt = s.now().UTC()
		if err := s.admins.Save(ctx, assignee); err != nil {
			return err
		}

		previous = app.AssignedTo
		app.AssignedTo = assigneeID
		app.UpdatedAt = s.now().UTC()
		if err := s.apps.Save(ctx, app); err != nil {
			s.adjustWorkload(ctx, assigneeID, -1)
			return err
		}

		out = &Outcome{Application: app, From: status, To: status}
		return nil
	})

	if err == nil && previous != "" {
		meta["previous_assignee_id"] = previous
		s.adjustWorkload(ctx, previous, -1)
	}
	s.finish(ctx, actor, domain.ActionReassign, appID, err, meta)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, notification.Event{
		Type:          notification.EventApplicationAssigned,
		ApplicationID: appID,
		RecipientID:   assigneeID,
	})
	return out, nil
}

// adjustWorkload moves an admin's workload counter by delta, never below zero.
// Failures are logged; the counters are advisory.
func (s *Service) adjustWorkload(ctx context.Context, adminID string, delta int) {
	err := s.withRetry(ctx, store.CollectionAdmins, adminID, func() error {
		profile, err := s.admins.Get(ctx, adminID)
		if err != nil {
			return err
		}
		profile.CurrentWorkload += delta
		if profile.CurrentWorkload < 0 {
			profile.CurrentWorkload = 0
		}
		profile.UpdatedAt = s.now().UTC()
		return s.admins.Save(ctx, profile)
	})
	if err != nil {
		s.logger.Error("Failed to adjust admin workload", map[string]interface{}{
			"admin_id": adminID,
			"delta":    delta,
			"error":    err.Error(),
		})
	}
}
