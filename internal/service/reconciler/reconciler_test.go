package reconciler

import (
	"context"
	"sync"
	"testing"
	"time"

	"qrconnect-service/internal/domain/business"
	"qrconnect-service/internal/domain/event"
	subdomain "qrconnect-service/internal/domain/subscription"
	xerrors "qrconnect-service/internal/pkg/errors"
	"qrconnect-service/internal/pkg/ref"
	"qrconnect-service/internal/service/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSubscriptionStore struct {
	mu     sync.Mutex
	nextID int64
	subs   map[int64]*subdomain.Subscription // keyed by business id
}

func newFakeSubscriptionStore() *fakeSubscriptionStore {
	return &fakeSubscriptionStore{subs: map[int64]*subdomain.Subscription{}}
}

func (s *fakeSubscriptionStore) FindByBusiness(ctx context.Context, businessID int64) (*subdomain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[businessID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *fakeSubscriptionStore) FindByProviderSubscriptionID(ctx context.Context, providerSubID string) (*subdomain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.ProviderSubscriptionID.Valid && sub.ProviderSubscriptionID.String == providerSubID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (s *fakeSubscriptionStore) Upsert(ctx context.Context, sub *subdomain.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.subs[sub.BusinessID]; ok {
		sub.ID = existing.ID
	} else {
		s.nextID++
		sub.ID = s.nextID
	}
	cp := *sub
	s.subs[sub.BusinessID] = &cp
	return nil
}

func (s *fakeSubscriptionStore) MarkExpired(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.ID == id {
			sub.Status = subdomain.StatusExpired
			return nil
		}
	}
	return xerrors.ErrNotFound
}

type fakePlanStore struct {
	plans map[int64]*subdomain.Plan
}

func (s *fakePlanStore) FindByID(ctx context.Context, id int64) (*subdomain.Plan, error) {
	p, ok := s.plans[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakePlanStore) FindByProviderPlanID(ctx context.Context, providerPlanID string) (*subdomain.Plan, error) {
	for _, p := range s.plans {
		if p.ProviderPlanID == providerPlanID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

type fakeLogStore struct {
	mu   sync.Mutex
	logs map[string]*subdomain.Log // keyed by reference
	// trialPlanIDs mirrors the is_trial join of the real query.
	trialPlanIDs map[int64]bool
}

func newFakeLogStore(trialPlanIDs map[int64]bool) *fakeLogStore {
	return &fakeLogStore{logs: map[string]*subdomain.Log{}, trialPlanIDs: trialPlanIDs}
}

func (s *fakeLogStore) TryInsert(ctx context.Context, l *subdomain.Log) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.logs[l.Reference]; exists {
		return false, nil
	}
	cp := *l
	s.logs[l.Reference] = &cp
	return true, nil
}

func (s *fakeLogStore) HasTrialForBusiness(ctx context.Context, businessID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.logs {
		if l.BusinessID == businessID && s.trialPlanIDs[l.PlanID] {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeLogStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs)
}

type fakeBusinessStore struct {
	mu         sync.Mutex
	businesses map[int64]*business.Business
}

func (s *fakeBusinessStore) FindByID(ctx context.Context, id int64) (*business.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businesses[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *fakeBusinessStore) UpdateSubscriptionStatus(ctx context.Context, id int64, status business.SubscriptionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businesses[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	b.SubscriptionStatus = status
	return nil
}

func (s *fakeBusinessStore) status(id int64) business.SubscriptionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.businesses[id].SubscriptionStatus
}

type fakeProvider struct {
	created   []payment.SubscriptionParams
	cancelled []string
}

func (p *fakeProvider) CreateSubscription(ctx context.Context, params payment.SubscriptionParams) (*payment.CreatedSubscription, error) {
	p.created = append(p.created, params)
	return &payment.CreatedSubscription{
		ProviderSubscriptionID: "I-NEW",
		ApprovalURL:            "https://provider.example/approve/I-NEW",
	}, nil
}

func (p *fakeProvider) CancelSubscription(ctx context.Context, providerSubscriptionID, reason string) error {
	p.cancelled = append(p.cancelled, providerSubscriptionID)
	return nil
}

type reconcilerFixture struct {
	rec        *Reconciler
	subs       *fakeSubscriptionStore
	plans      *fakePlanStore
	logs       *fakeLogStore
	businesses *fakeBusinessStore
	provider   *fakeProvider
}

func newReconcilerFixture() *reconcilerFixture {
	f := &reconcilerFixture{
		subs: newFakeSubscriptionStore(),
		plans: &fakePlanStore{plans: map[int64]*subdomain.Plan{
			1: {ID: 1, Name: "Starter", PriceMinor: 999, Currency: "USD", BillingCycle: "monthly", ProviderPlanID: "P-STARTER"},
			2: {ID: 2, Name: "Trial", IsTrial: true, TrialDays: 14},
		}},
		logs: newFakeLogStore(map[int64]bool{2: true}),
		businesses: &fakeBusinessStore{businesses: map[int64]*business.Business{
			1: {ID: 1, Email: "shop@example.com", FirstName: "Ada", LastName: "Mwangi", SubscriptionStatus: business.StatusUnsubscribed},
		}},
		provider: &fakeProvider{},
	}
	f.rec = NewReconciler(f.subs, f.plans, f.logs, f.businesses, f.provider, nil, zap.NewNop())
	return f
}

func activatedEvent() event.SubscriptionActivated {
	start := time.Now().Truncate(time.Second)
	return event.SubscriptionActivated{
		EventID:                "WH-SUB-1",
		ProviderSubscriptionID: "I-123",
		BusinessID:             1,
		ProviderPlanID:         "P-STARTER",
		PeriodStart:            start,
		PeriodEnd:              start.AddDate(0, 1, 0),
	}
}

func TestActivatedCreatesActiveSubscription(t *testing.T) {
	f := newReconcilerFixture()
	ctx := context.Background()

	require.NoError(t, f.rec.Activated(ctx, activatedEvent()))

	sub, err := f.subs.FindByBusiness(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, subdomain.StatusActive, sub.Status)
	assert.Equal(t, "I-123", sub.ProviderSubscriptionID.String)
	assert.Equal(t, business.StatusSubscribed, f.businesses.status(1))
	assert.Equal(t, 1, f.logs.count())
}

func TestActivatedReplayConverges(t *testing.T) {
	f := newReconcilerFixture()
	ctx := context.Background()

	require.NoError(t, f.rec.Activated(ctx, activatedEvent()))
	require.NoError(t, f.rec.Activated(ctx, activatedEvent()))

	sub, err := f.subs.FindByBusiness(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, subdomain.StatusActive, sub.Status)
	assert.Equal(t, 1, f.logs.count(), "replay does not append a second log row")
}

func TestActivatedRenewalExtendsPeriod(t *testing.T) {
	f := newReconcilerFixture()
	ctx := context.Background()

	require.NoError(t, f.rec.Activated(ctx, activatedEvent()))

	renewal := activatedEvent()
	renewal.EventID = "WH-SUB-2"
	renewal.PeriodStart = renewal.PeriodEnd
	renewal.PeriodEnd = renewal.PeriodStart.AddDate(0, 1, 0)
	require.NoError(t, f.rec.Activated(ctx, renewal))

	sub, err := f.subs.FindByBusiness(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, renewal.PeriodEnd, sub.ExpiresAt)
	assert.Equal(t, 2, f.logs.count(), "each billing period gets its own log row")
}

func TestActivatedUnknownBusinessParked(t *testing.T) {
	f := newReconcilerFixture()

	ev := activatedEvent()
	ev.BusinessID = 999
	err := f.rec.Activated(context.Background(), ev)
	assert.True(t, xerrors.Is(err, xerrors.ErrNotFound))
}

func TestCancelledExpiresSubscription(t *testing.T) {
	f := newReconcilerFixture()
	ctx := context.Background()

	require.NoError(t, f.rec.Activated(ctx, activatedEvent()))
	require.NoError(t, f.rec.Cancelled(ctx, event.SubscriptionCancelled{
		EventID:                "WH-CXL-1",
		ProviderSubscriptionID: "I-123",
		BusinessID:             1,
	}))

	sub, err := f.subs.FindByBusiness(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, subdomain.StatusExpired, sub.Status)
	assert.Equal(t, business.StatusDeactivated, f.businesses.status(1))
}

func TestCancelBeforeActivateIsRejected(t *testing.T) {
	f := newReconcilerFixture()

	// No subscription exists yet; the cancel must not fabricate one.
	err := f.rec.Cancelled(context.Background(), event.SubscriptionCancelled{
		EventID:                "WH-CXL-1",
		ProviderSubscriptionID: "I-123",
		BusinessID:             1,
	})
	assert.True(t, xerrors.Is(err, xerrors.ErrNotFound))

	_, err = f.subs.FindByBusiness(context.Background(), 1)
	assert.True(t, xerrors.Is(err, xerrors.ErrNotFound), "no phantom subscription row")
}

func TestGrantFreeTrial(t *testing.T) {
	f := newReconcilerFixture()
	ctx := context.Background()

	sub, err := f.rec.GrantFreeTrial(ctx, 1, 2)
	require.NoError(t, err)

	assert.Equal(t, subdomain.StatusFreeTrial, sub.Status)
	assert.Equal(t, business.StatusFreeTrial, f.businesses.status(1))
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 14), sub.ExpiresAt, time.Minute)
}

func TestGrantFreeTrialOnlyOnceEver(t *testing.T) {
	f := newReconcilerFixture()
	ctx := context.Background()

	_, err := f.rec.GrantFreeTrial(ctx, 1, 2)
	require.NoError(t, err)

	// Expire the trial; the grant is still burned.
	sub, err := f.subs.FindByBusiness(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, f.subs.MarkExpired(ctx, sub.ID))

	_, err = f.rec.GrantFreeTrial(ctx, 1, 2)
	assert.True(t, xerrors.Is(err, xerrors.ErrTrialAlreadyUsed))
}

func TestGrantFreeTrialKeyedInsertResolvesDoubleSubmit(t *testing.T) {
	f := newReconcilerFixture()
	ctx := context.Background()

	// Simulate the double-submit race: a concurrent grant has already won the
	// keyed log insert, but this request's trial-usage read ran before that
	// row landed.
	f.logs.trialPlanIDs = map[int64]bool{}
	_, err := f.logs.TryInsert(ctx, &subdomain.Log{
		BusinessID: 1,
		PlanID:     2,
		Reference:  ref.Trial(1),
	})
	require.NoError(t, err)

	_, err = f.rec.GrantFreeTrial(ctx, 1, 2)
	assert.True(t, xerrors.Is(err, xerrors.ErrTrialAlreadyUsed))
	assert.Equal(t, 1, f.logs.count(), "the losing grant appends no second trial row")
}

func TestGrantFreeTrialRejectsNonTrialPlan(t *testing.T) {
	f := newReconcilerFixture()

	_, err := f.rec.GrantFreeTrial(context.Background(), 1, 1)
	assert.True(t, xerrors.Is(err, xerrors.ErrInvalidInput))
}

func TestGrantFreeTrialRejectsActiveSubscriber(t *testing.T) {
	f := newReconcilerFixture()
	ctx := context.Background()

	require.NoError(t, f.rec.Activated(ctx, activatedEvent()))

	_, err := f.rec.GrantFreeTrial(ctx, 1, 2)
	assert.True(t, xerrors.Is(err, xerrors.ErrConflict))
}

func TestStartProviderSubscription(t *testing.T) {
	f := newReconcilerFixture()

	url, err := f.rec.StartProviderSubscription(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "https://provider.example/approve/I-NEW", url)

	require.Len(t, f.provider.created, 1)
	assert.Equal(t, "P-STARTER", f.provider.created[0].ProviderPlanID)
	assert.Equal(t, int64(1), f.provider.created[0].BusinessID)

	// Nothing is written until the activation webhook lands.
	_, err = f.subs.FindByBusiness(context.Background(), 1)
	assert.True(t, xerrors.Is(err, xerrors.ErrNotFound))
}

func TestStartProviderSubscriptionRejectsTrialPlan(t *testing.T) {
	f := newReconcilerFixture()

	_, err := f.rec.StartProviderSubscription(context.Background(), 1, 2)
	assert.True(t, xerrors.Is(err, xerrors.ErrInvalidInput))
}

func TestCancelProviderSubscription(t *testing.T) {
	f := newReconcilerFixture()
	ctx := context.Background()

	require.NoError(t, f.rec.Activated(ctx, activatedEvent()))
	require.NoError(t, f.rec.CancelProviderSubscription(ctx, 1, "too expensive"))
	assert.Equal(t, []string{"I-123"}, f.provider.cancelled)
}
