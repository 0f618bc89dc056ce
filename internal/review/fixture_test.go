package review

import (
	"context"
	"sync"
	"testing"
	"time"

	"finreview/internal/audit"
	"finreview/internal/authz"
	"finreview/internal/metrics"
	"finreview/internal/notification"
	"finreview/internal/permission"
	"finreview/internal/repository"
	"finreview/internal/store"
	"finreview/pkg/config"
	"finreview/pkg/domain"
	"finreview/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// 2026-10-19 is a Monday.
var (
	mondayMorning   = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	saturdayMorning = time.Date(2026, 10, 24, 10, 0, 0, 0, time.UTC)
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification.Event
}

func (n *recordingNotifier) Dispatch(ctx context.Context, e notification.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) types() []notification.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notification.EventType, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}

// racingStore lets a test change a record between an action's load and its write.
type racingStore struct {
	store.Store
	mu        sync.Mutex
	beforePut func(collection string, rec store.Record)
}

func (r *racingStore) Put(ctx context.Context, collection string, rec store.Record) (int64, error) {
	r.mu.Lock()
	hook := r.beforePut
	r.mu.Unlock()
	if hook != nil {
		hook(collection, rec)
	}
	return r.Store.Put(ctx, collection, rec)
}

func (r *racingStore) setHook(h func(collection string, rec store.Record)) {
	r.mu.Lock()
	r.beforePut = h
	r.mu.Unlock()
}

type fixture struct {
	svc      *Service
	inner    *store.MemoryStore
	store    *racingStore
	trail    *audit.MemoryTrail
	apps     *repository.Applications
	docs     *repository.Documents
	admins   *repository.Admins
	kyc      *repository.KYCCases
	notifier *recordingNotifier
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		inner:    store.NewMemoryStore(),
		trail:    audit.NewMemoryTrail(),
		notifier: &recordingNotifier{},
		now:      mondayMorning,
	}
	f.store = &racingStore{Store: f.inner}
	f.apps = repository.NewApplications(f.store)
	f.docs = repository.NewDocuments(f.store)
	f.admins = repository.NewAdmins(f.store)
	f.kyc = repository.NewKYCCases(f.store)

	policy := authz.NewPolicy(config.PolicyConfig{
		Currency:          domain.DefaultCurrency,
		DualAuthThreshold: decimal.NewFromInt(250000),
		Timezone:          "UTC",
		BusinessHours: config.BusinessHours{
			StartHour: 8,
			EndHour:   18,
			Days:      []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		},
		EnforceBusinessHours: true,
	})

	f.svc = NewService(Dependencies{
		Applications: f.apps,
		Documents:    f.docs,
		Admins:       f.admins,
		KYCCases:     f.kyc,
		Policy:       policy,
		Audit:        audit.NewRecorder(f.trail, logger.NewNop()),
		Notifier:     f.notifier,
		Metrics:      metrics.New(),
		Logger:       logger.NewNop(),
		MaxAttempts:  2,
		Clock:        func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) addAdmin(t *testing.T, id string, role domain.Role) domain.Principal {
	t.Helper()
	profile := permission.NewProfile(id, role, 3)
	profile.Name = id
	require.NoError(t, f.admins.Save(context.Background(), profile))
	return profile.Principal()
}

func (f *fixture) tick() {
	f.now = f.now.Add(time.Second)
}

func business(id string) domain.Principal {
	return domain.Principal{ID: id, Type: domain.PrincipalBusiness}
}

func (f *fixture) submit(t *testing.T, owner domain.Principal, amount int64) *domain.Application {
	t.Helper()
	f.tick()
	out, err := f.svc.SubmitApplication(context.Background(), owner, SubmitInput{
		RequestedAmount: decimal.NewFromInt(amount),
		Purpose:         "working capital",
		ContactEmail:    owner.ID + "@example.com",
	})
	require.NoError(t, err)
	return out.Application
}

// inReview submits an application and moves it into review by reviewer.
func (f *fixture) inReview(t *testing.T, owner, reviewer domain.Principal, amount int64) *domain.Application {
	t.Helper()
	app := f.submit(t, owner, amount)
	f.tick()
	out, err := f.svc.StartReview(context.Background(), reviewer, app.ID)
	require.NoError(t, err)
	return out.Application
}

func (f *fixture) reload(t *testing.T, appID string) *domain.Application {
	t.Helper()
	app, err := f.apps.Get(context.Background(), appID)
	require.NoError(t, err)
	return app
}

func (f *fixture) lastEntry(t *testing.T, targetID string) *domain.AuditEntry {
	t.Helper()
	entries, err := f.trail.ForTarget(context.Background(), targetID, 1)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	return entries[0]
}
