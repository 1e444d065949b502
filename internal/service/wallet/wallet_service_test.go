package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"

	"qrconnect-service/internal/domain/business"
	walletdomain "qrconnect-service/internal/domain/wallet"
	xerrors "qrconnect-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// In-memory stores reproducing the conditional-write behavior of the postgres
// repositories.

type fakeWalletStore struct {
	mu      sync.Mutex
	wallets map[int64]*walletdomain.Wallet
}

func newFakeWalletStore() *fakeWalletStore {
	return &fakeWalletStore{wallets: map[int64]*walletdomain.Wallet{}}
}

func (s *fakeWalletStore) put(businessID, balance int64, restricted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[businessID] = &walletdomain.Wallet{
		ID:         businessID,
		BusinessID: businessID,
		Balance:    balance,
		Restricted: restricted,
	}
}

func (s *fakeWalletStore) balance(businessID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallets[businessID].Balance
}

func (s *fakeWalletStore) FindByBusiness(ctx context.Context, businessID int64) (*walletdomain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[businessID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *fakeWalletStore) AddBalance(ctx context.Context, businessID, amountMinor int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[businessID]
	if !ok {
		return xerrors.ErrNotFound
	}
	w.Balance += amountMinor
	return nil
}

func (s *fakeWalletStore) TryReserve(ctx context.Context, businessID, amountMinor int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[businessID]
	if !ok || w.Restricted || w.Balance < amountMinor {
		return false, nil
	}
	w.Balance -= amountMinor
	return true, nil
}

func (s *fakeWalletStore) SetRestricted(ctx context.Context, businessID int64, restricted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[businessID]
	if !ok {
		return xerrors.ErrNotFound
	}
	w.Restricted = restricted
	return nil
}

func (s *fakeWalletStore) SetPayoutEmail(ctx context.Context, businessID int64, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[businessID]; !ok {
		return xerrors.ErrNotFound
	}
	return nil
}

type ledgerKey struct {
	businessID int64
	kind       walletdomain.EntryKind
	refNo      string
}

type fakeLedgerStore struct {
	mu      sync.Mutex
	nextID  int64
	entries map[ledgerKey]*walletdomain.LedgerEntry
	// wallets receives the refund side of ReverseByWithdrawal, mirroring the
	// single-statement entry-flip-plus-refund of the real repository.
	wallets *fakeWalletStore
	// failReversals makes the next N ReverseByWithdrawal calls error before
	// applying anything, simulating a transient store failure.
	failReversals int
}

func newFakeLedgerStore(wallets *fakeWalletStore) *fakeLedgerStore {
	return &fakeLedgerStore{entries: map[ledgerKey]*walletdomain.LedgerEntry{}, wallets: wallets}
}

func (s *fakeLedgerStore) TryInsert(ctx context.Context, e *walletdomain.LedgerEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ledgerKey{e.BusinessID, e.Kind, e.RefNo}
	if _, exists := s.entries[key]; exists {
		return false, nil
	}
	s.nextID++
	e.ID = s.nextID
	cp := *e
	s.entries[key] = &cp
	return true, nil
}

func (s *fakeLedgerStore) TrySettleByWithdrawal(ctx context.Context, withdrawalID int64, status walletdomain.EntryStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.WithdrawalID.Valid && e.WithdrawalID.Int64 == withdrawalID && e.Status == walletdomain.EntryPending {
			e.Status = status
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeLedgerStore) ReverseByWithdrawal(ctx context.Context, withdrawalID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReversals > 0 {
		s.failReversals--
		return false, errors.New("database connection lost")
	}
	for _, e := range s.entries {
		if e.WithdrawalID.Valid && e.WithdrawalID.Int64 == withdrawalID && e.Status == walletdomain.EntryPending {
			e.Status = walletdomain.EntryFailed
			return true, s.wallets.AddBalance(ctx, e.BusinessID, e.AmountMinor)
		}
	}
	return false, nil
}

func (s *fakeLedgerStore) ListByBusiness(ctx context.Context, businessID int64, limit, offset int) ([]walletdomain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []walletdomain.LedgerEntry
	for _, e := range s.entries {
		if e.BusinessID == businessID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *fakeLedgerStore) entryByRef(businessID int64, kind walletdomain.EntryKind, refNo string) *walletdomain.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[ledgerKey{businessID, kind, refNo}]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

type fakeWithdrawalStore struct {
	mu          sync.Mutex
	nextID      int64
	withdrawals map[int64]*walletdomain.Withdrawal
	// failSettles makes the next N TrySettle calls error without applying.
	failSettles int
}

func newFakeWithdrawalStore() *fakeWithdrawalStore {
	return &fakeWithdrawalStore{withdrawals: map[int64]*walletdomain.Withdrawal{}}
}

func (s *fakeWithdrawalStore) Create(ctx context.Context, w *walletdomain.Withdrawal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	w.ID = s.nextID
	cp := *w
	s.withdrawals[w.ID] = &cp
	return nil
}

func (s *fakeWithdrawalStore) FindByID(ctx context.Context, id int64) (*walletdomain.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.withdrawals[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *fakeWithdrawalStore) TrySettle(ctx context.Context, id int64, status walletdomain.WithdrawalStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSettles > 0 {
		s.failSettles--
		return false, errors.New("database connection lost")
	}
	w, ok := s.withdrawals[id]
	if !ok || w.Status != walletdomain.WithdrawalStatusPending {
		return false, nil
	}
	w.Status = status
	return true, nil
}

func (s *fakeWithdrawalStore) ListByBusiness(ctx context.Context, businessID int64, limit, offset int) ([]walletdomain.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []walletdomain.Withdrawal
	for _, w := range s.withdrawals {
		if w.BusinessID == businessID {
			out = append(out, *w)
		}
	}
	return out, nil
}

type fakeBusinessStore struct {
	businesses map[int64]*business.Business
}

func (s *fakeBusinessStore) FindByID(ctx context.Context, id int64) (*business.Business, error) {
	b, ok := s.businesses[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

type walletFixture struct {
	svc         *Service
	wallets     *fakeWalletStore
	ledger      *fakeLedgerStore
	withdrawals *fakeWithdrawalStore
	businesses  *fakeBusinessStore
}

func newWalletFixture() *walletFixture {
	wallets := newFakeWalletStore()
	f := &walletFixture{
		wallets:     wallets,
		ledger:      newFakeLedgerStore(wallets),
		withdrawals: newFakeWithdrawalStore(),
		businesses: &fakeBusinessStore{businesses: map[int64]*business.Business{
			1: {ID: 1, Email: "shop@example.com", SubscriptionStatus: business.StatusSubscribed},
			2: {ID: 2, Email: "trial@example.com", SubscriptionStatus: business.StatusFreeTrial},
		}},
	}
	f.svc = NewService(f.wallets, f.ledger, f.withdrawals, f.businesses, nil, zap.NewNop())
	return f
}

func TestCreditAppliesOncePerRef(t *testing.T) {
	f := newWalletFixture()
	f.wallets.put(1, 0, false)
	ctx := context.Background()

	applied, err := f.svc.Credit(ctx, 1, 3000, "SESS-1-a", 10, "a")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, int64(3000), f.wallets.balance(1))

	// Replaying the same reference must not double-credit.
	applied, err = f.svc.Credit(ctx, 1, 3000, "SESS-1-a", 10, "a")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, int64(3000), f.wallets.balance(1))
}

func TestCreditRejectsInvalidInput(t *testing.T) {
	f := newWalletFixture()
	f.wallets.put(1, 0, false)
	ctx := context.Background()

	_, err := f.svc.Credit(ctx, 1, 0, "REF", 0, "")
	assert.True(t, xerrors.Is(err, xerrors.ErrInvalidInput))

	_, err = f.svc.Credit(ctx, 1, -500, "REF", 0, "")
	assert.True(t, xerrors.Is(err, xerrors.ErrInvalidInput))

	_, err = f.svc.Credit(ctx, 1, 500, "", 0, "")
	assert.True(t, xerrors.Is(err, xerrors.ErrInvalidInput))
}

func TestRequestWithdrawalReservesBalance(t *testing.T) {
	f := newWalletFixture()
	f.wallets.put(1, 5000, false)
	ctx := context.Background()

	wd, entry, err := f.svc.RequestWithdrawal(ctx, 1, 2000)
	require.NoError(t, err)

	assert.Equal(t, walletdomain.WithdrawalStatusPending, wd.Status)
	assert.NotEmpty(t, wd.WithdrawalNo)
	assert.Equal(t, walletdomain.EntryDebit, entry.Kind)
	assert.Equal(t, walletdomain.EntryPending, entry.Status)
	assert.Equal(t, wd.WithdrawalNo, entry.RefNo)
	assert.Equal(t, int64(3000), f.wallets.balance(1), "balance is debited at request time")
}

func TestRequestWithdrawalInsufficientBalance(t *testing.T) {
	f := newWalletFixture()
	f.wallets.put(1, 1000, false)

	_, _, err := f.svc.RequestWithdrawal(context.Background(), 1, 2000)
	assert.True(t, xerrors.Is(err, xerrors.ErrInsufficientBalance))
	assert.Equal(t, int64(1000), f.wallets.balance(1))
}

func TestRequestWithdrawalRestrictedWallet(t *testing.T) {
	f := newWalletFixture()
	f.wallets.put(1, 5000, true)

	_, _, err := f.svc.RequestWithdrawal(context.Background(), 1, 2000)
	assert.True(t, xerrors.Is(err, xerrors.ErrWalletRestricted))
	assert.Equal(t, int64(5000), f.wallets.balance(1))
}

func TestRequestWithdrawalRequiresActiveSubscription(t *testing.T) {
	f := newWalletFixture()
	f.wallets.put(2, 5000, false)

	_, _, err := f.svc.RequestWithdrawal(context.Background(), 2, 2000)
	assert.True(t, xerrors.Is(err, xerrors.ErrSubscriptionRequired))
}

func TestConcurrentWithdrawalsCannotOverdraw(t *testing.T) {
	f := newWalletFixture()
	f.wallets.put(1, 3000, false)
	ctx := context.Background()

	// Two requests that individually fit but together exceed the balance.
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.svc.RequestWithdrawal(ctx, 1, 2000)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, xerrors.Is(err, xerrors.ErrInsufficientBalance))
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(1000), f.wallets.balance(1))
}

func TestSettleCompletedKeepsDebit(t *testing.T) {
	f := newWalletFixture()
	f.wallets.put(1, 5000, false)
	ctx := context.Background()

	wd, _, err := f.svc.RequestWithdrawal(ctx, 1, 2000)
	require.NoError(t, err)

	settled, err := f.svc.Settle(ctx, wd.ID, walletdomain.WithdrawalStatusCompleted)
	require.NoError(t, err)

	assert.Equal(t, walletdomain.WithdrawalStatusCompleted, settled.Status)
	assert.Equal(t, int64(3000), f.wallets.balance(1))

	entry := f.ledger.entryByRef(1, walletdomain.EntryDebit, wd.WithdrawalNo)
	require.NotNil(t, entry)
	assert.Equal(t, walletdomain.EntryCompleted, entry.Status)
}

func TestSettleRejectedReversesDebit(t *testing.T) {
	f := newWalletFixture()
	f.wallets.put(1, 5000, false)
	ctx := context.Background()

	wd, _, err := f.svc.RequestWithdrawal(ctx, 1, 2000)
	require.NoError(t, err)
	require.Equal(t, int64(3000), f.wallets.balance(1))

	_, err = f.svc.Settle(ctx, wd.ID, walletdomain.WithdrawalStatusRejected)
	require.NoError(t, err)

	assert.Equal(t, int64(5000), f.wallets.balance(1), "rejected withdrawal refunds the reservation")

	entry := f.ledger.entryByRef(1, walletdomain.EntryDebit, wd.WithdrawalNo)
	require.NotNil(t, entry)
	assert.Equal(t, walletdomain.EntryFailed, entry.Status)
}

func TestSettleFailedReversesDebit(t *testing.T) {
	f := newWalletFixture()
	f.wallets.put(1, 5000, false)
	ctx := context.Background()

	wd, _, err := f.svc.RequestWithdrawal(ctx, 1, 2000)
	require.NoError(t, err)

	_, err = f.svc.Settle(ctx, wd.ID, walletdomain.WithdrawalStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), f.wallets.balance(1))
}

func TestSettleRetryAfterReversalFailureRestoresBalance(t *testing.T) {
	f := newWalletFixture()
	f.wallets.put(1, 5000, false)
	ctx := context.Background()

	wd, _, err := f.svc.RequestWithdrawal(ctx, 1, 2000)
	require.NoError(t, err)
	require.Equal(t, int64(3000), f.wallets.balance(1))

	// The reversal dies transiently; the withdrawal must stay pending so the
	// settle can be retried.
	f.ledger.failReversals = 1
	_, err = f.svc.Settle(ctx, wd.ID, walletdomain.WithdrawalStatusRejected)
	require.Error(t, err)
	assert.Equal(t, int64(3000), f.wallets.balance(1))

	current, err := f.withdrawals.FindByID(ctx, wd.ID)
	require.NoError(t, err)
	assert.Equal(t, walletdomain.WithdrawalStatusPending, current.Status)

	// The retry re-drives the sequence and the refund lands exactly once.
	settled, err := f.svc.Settle(ctx, wd.ID, walletdomain.WithdrawalStatusRejected)
	require.NoError(t, err)
	assert.Equal(t, walletdomain.WithdrawalStatusRejected, settled.Status)
	assert.Equal(t, int64(5000), f.wallets.balance(1))

	entry := f.ledger.entryByRef(1, walletdomain.EntryDebit, wd.WithdrawalNo)
	require.NotNil(t, entry)
	assert.Equal(t, walletdomain.EntryFailed, entry.Status)
}

func TestSettleRetryAfterStatusFlipFailureDoesNotDoubleRefund(t *testing.T) {
	f := newWalletFixture()
	f.wallets.put(1, 5000, false)
	ctx := context.Background()

	wd, _, err := f.svc.RequestWithdrawal(ctx, 1, 2000)
	require.NoError(t, err)

	// The refund applies but the final status flip dies; the retry must not
	// refund again.
	f.withdrawals.failSettles = 1
	_, err = f.svc.Settle(ctx, wd.ID, walletdomain.WithdrawalStatusRejected)
	require.Error(t, err)
	require.Equal(t, int64(5000), f.wallets.balance(1))

	settled, err := f.svc.Settle(ctx, wd.ID, walletdomain.WithdrawalStatusRejected)
	require.NoError(t, err)
	assert.Equal(t, walletdomain.WithdrawalStatusRejected, settled.Status)
	assert.Equal(t, int64(5000), f.wallets.balance(1), "refund applied exactly once across the retry")
}

func TestSettleIsFirstWriterWins(t *testing.T) {
	f := newWalletFixture()
	f.wallets.put(1, 5000, false)
	ctx := context.Background()

	wd, _, err := f.svc.RequestWithdrawal(ctx, 1, 2000)
	require.NoError(t, err)

	_, err = f.svc.Settle(ctx, wd.ID, walletdomain.WithdrawalStatusRejected)
	require.NoError(t, err)

	// A second settle, even with a different status, must not apply and must
	// not refund twice.
	_, err = f.svc.Settle(ctx, wd.ID, walletdomain.WithdrawalStatusCompleted)
	assert.True(t, xerrors.Is(err, xerrors.ErrAlreadyProcessed))
	assert.Equal(t, int64(5000), f.wallets.balance(1))
}

func TestSettleRejectsNonTerminalStatus(t *testing.T) {
	f := newWalletFixture()
	f.wallets.put(1, 5000, false)
	ctx := context.Background()

	wd, _, err := f.svc.RequestWithdrawal(ctx, 1, 2000)
	require.NoError(t, err)

	_, err = f.svc.Settle(ctx, wd.ID, walletdomain.WithdrawalStatusPending)
	assert.True(t, xerrors.Is(err, xerrors.ErrInvalidInput))
}

func TestRestrictBlocksNewWithdrawalsOnly(t *testing.T) {
	f := newWalletFixture()
	f.wallets.put(1, 5000, false)
	ctx := context.Background()

	wd, _, err := f.svc.RequestWithdrawal(ctx, 1, 2000)
	require.NoError(t, err)

	require.NoError(t, f.svc.Restrict(ctx, 1, true))

	_, _, err = f.svc.RequestWithdrawal(ctx, 1, 1000)
	assert.True(t, xerrors.Is(err, xerrors.ErrWalletRestricted))

	// The already-pending withdrawal still settles normally.
	_, err = f.svc.Settle(ctx, wd.ID, walletdomain.WithdrawalStatusCompleted)
	assert.NoError(t, err)
}
