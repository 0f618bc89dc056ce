// Package notification delivers review events to applicants and admins.
// Delivery is best effort: Dispatch never blocks the caller and never reports
// failures back to it.
package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"finreview/pkg/logger"

	"github.com/google/uuid"
)

// EventType names a review event.
type EventType string

const (
	EventApplicationSubmitted   EventType = "application_submitted"
	EventApplicationInReview    EventType = "application_in_review"
	EventApplicationMoreInfo    EventType = "application_more_info"
	EventApplicationEndorsed    EventType = "application_endorsed"
	EventApplicationApproved    EventType = "application_approved"
	EventApplicationRejected    EventType = "application_rejected"
	EventApplicationResubmitted EventType = "application_resubmitted"
	EventApplicationAssigned    EventType = "application_assigned"
	EventDocumentVerified       EventType = "document_verified"
	EventDocumentRejected       EventType = "document_rejected"
)

// ChannelType represents the delivery method.
type ChannelType string

const (
	ChannelLog   ChannelType = "LOG"
	ChannelEmail ChannelType = "EMAIL"
)

// Priority represents the urgency of the notification.
type Priority int

const (
	PriorityLow    Priority = 0
	PriorityNormal Priority = 1
	PriorityHigh   Priority = 2
)

// Event is what the review service hands over.
type Event struct {
	Type           EventType
	ApplicationID  string
	RecipientID    string
	RecipientEmail string
	Message        string
}

// Notification is a rendered message ready for a channel.
type Notification struct {
	ID        uuid.UUID
	Event     Event
	Priority  Priority
	Subject   string
	Body      string
	CreatedAt time.Time
}

// Notifier accepts events for delivery.
type Notifier interface {
	Dispatch(ctx context.Context, e Event)
}

// Channel delivers rendered notifications.
type Channel interface {
	Type() ChannelType
	Send(ctx context.Context, n *Notification) error
}

// Dispatcher fans events out to its channels in the background.
type Dispatcher struct {
	logger   logger.Logger
	channels []Channel
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. timeout bounds each delivery.
func NewDispatcher(log logger.Logger, timeout time.Duration, channels ...Channel) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{logger: log, channels: channels, timeout: timeout}
}

// Dispatch renders the event and delivers it asynchronously.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) {
	n := Render(e)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		for _, ch := range d.channels {
			if err := ch.Send(sendCtx, n); err != nil {
				d.logger.Warn("Notification delivery failed", map[string]interface{}{
					"notification_id": n.ID.String(),
					"channel":         string(ch.Type()),
					"type":            string(e.Type),
					"application_id":  e.ApplicationID,
					"error":           err.Error(),
				})
			}
		}
	}()
}

// Wait blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Render builds subject and body for an event.
func Render(e Event) *Notification {
	var subject, body string
	priority := PriorityNormal

	switch e.Type {
	case EventApplicationSubmitted:
		subject = "Application received"
		body = fmt.Sprintf("Your financing application %s has been received and is awaiting review.", e.ApplicationID)
		priority = PriorityLow
	case EventApplicationInReview:
		subject = "Application under review"
		body = fmt.Sprintf("Your financing application %s is now being reviewed.", e.ApplicationID)
		priority = PriorityLow
	case EventApplicationMoreInfo:
		subject = "More information needed"
		body = fmt.Sprintf("We need more information on application %s: %s", e.ApplicationID, e.Message)
		priority = PriorityHigh
	case EventApplicationEndorsed:
		subject = "Application awaiting second approval"
		body = fmt.Sprintf("Application %s has been endorsed and needs a second approver.", e.ApplicationID)
	case EventApplicationApproved:
		subject = "Application approved"
		body = fmt.Sprintf("Your financing application %s has been approved.", e.ApplicationID)
		priority = PriorityHigh
	case EventApplicationRejected:
		subject = "Application not approved"
		body = fmt.Sprintf("Your financing application %s was not approved: %s", e.ApplicationID, e.Message)
		priority = PriorityHigh
	case EventApplicationResubmitted:
		subject = "Application resubmitted"
		body = fmt.Sprintf("Application %s was resubmitted and is back in the review queue.", e.ApplicationID)
	case EventApplicationAssigned:
		subject = "Application assigned"
		body = fmt.Sprintf("Application %s has been assigned to you.", e.ApplicationID)
	case EventDocumentVerified:
		subject = "Document verified"
		body = fmt.Sprintf("Your document %s has been verified.", e.Message)
		priority = PriorityLow
	case EventDocumentRejected:
		subject = "Document rejected"
		body = fmt.Sprintf("A document you uploaded was rejected: %s", e.Message)
		priority = PriorityHigh
	default:
		subject = "Notification"
		body = fmt.Sprintf("Event: %s", e.Type)
	}

	return &Notification{
		ID:        uuid.New(),
		Event:     e,
		Priority:  priority,
		Subject:   subject,
		Body:      body,
		CreatedAt: time.Now(),
	}
}
