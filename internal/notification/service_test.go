package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finreview/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(to, subject, body string) error {
	args := m.Called(to, subject, body)
	return args.Error(0)
}

type recordingChannel struct {
	mu   sync.Mutex
	seen []*Notification
}

func (c *recordingChannel) Type() ChannelType { return ChannelLog }

func (c *recordingChannel) Send(ctx context.Context, n *Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, n)
	return nil
}

func TestDispatcher_DeliversToEveryChannel(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", "owner@example.com", "Application approved", mock.AnythingOfType("string")).Return(nil)
	rec := &recordingChannel{}

	d := NewDispatcher(logger.NewNop(), time.Second, rec, NewEmailChannel(sender))
	d.Dispatch(context.Background(), Event{
		Type:           EventApplicationApproved,
		ApplicationID:  "biz-1_1",
		RecipientID:    "biz-1",
		RecipientEmail: "owner@example.com",
	})
	d.Wait()

	require.Len(t, rec.seen, 1)
	assert.Equal(t, "Application approved", rec.seen[0].Subject)
	assert.Equal(t, PriorityHigh, rec.seen[0].Priority)
	sender.AssertExpectations(t)
}

func TestDispatcher_FailureIsLoggedNotReturned(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sender := new(MockSender)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	d := NewDispatcher(logger.FromZap(zap.New(core)), time.Second, NewEmailChannel(sender))

	ctx, cancel := context.WithCancel(context.Background())
	d.Dispatch(ctx, Event{Type: EventApplicationRejected, ApplicationID: "biz-1_1", RecipientEmail: "owner@example.com", Message: "incomplete"})
	cancel()
	d.Wait()

	entries := logs.FilterMessage("Notification delivery failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "smtp down", entries[0].ContextMap()["error"])
}

func TestEmailChannel_SkipsWithoutAddress(t *testing.T) {
	sender := new(MockSender)
	ch := NewEmailChannel(sender)

	err := ch.Send(context.Background(), Render(Event{Type: EventDocumentVerified, Message: "government_id"}))
	assert.NoError(t, err)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestRender(t *testing.T) {
	n := Render(Event{Type: EventApplicationMoreInfo, ApplicationID: "biz-1_1", Message: "upload a bank statement"})
	assert.Equal(t, "More information needed", n.Subject)
	assert.Contains(t, n.Body, "upload a bank statement")

	n = Render(Event{Type: "something_else"})
	assert.Equal(t, "Notification", n.Subject)
}
