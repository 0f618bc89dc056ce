package notification

import (
	"context"

	"finreview/pkg/logger"
)

// LogChannel writes notifications to the structured log.
type LogChannel struct {
	logger logger.Logger
}

// NewLogChannel creates a LogChannel.
func NewLogChannel(log logger.Logger) *LogChannel {
	return &LogChannel{logger: log}
}

func (c *LogChannel) Type() ChannelType { return ChannelLog }

func (c *LogChannel) Send(ctx context.Context, n *Notification) error {
	c.logger.Info("Notification Sent", map[string]interface{}{
		"notification_id": n.ID.String(),
		"type":            string(n.Event.Type),
		"application_id":  n.Event.ApplicationID,
		"recipient_id":    n.Event.RecipientID,
		"subject":         n.Subject,
		"priority":        int(n.Priority),
	})
	return nil
}

// Sender sends one email. *mailer.Mailer satisfies it.
type Sender interface {
	Send(to, subject, body string) error
}

// EmailChannel emails the recipient when an address is known.
type EmailChannel struct {
	sender Sender
}

// NewEmailChannel creates an EmailChannel.
func NewEmailChannel(sender Sender) *EmailChannel {
	return &EmailChannel{sender: sender}
}

func (c *EmailChannel) Type() ChannelType { return ChannelEmail }

func (c *EmailChannel) Send(ctx context.Context, n *Notification) error {
	if n.Event.RecipientEmail == "" {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- c.sender.Send(n.Event.RecipientEmail, n.Subject, "<p>"+n.Body+"</p>")
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
