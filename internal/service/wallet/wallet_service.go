// internal/service/wallet/wallet_service.go
package wallet

import (
	"context"
	"database/sql"
	"fmt"

	"qrconnect-service/internal/domain/business"
	notifdomain "qrconnect-service/internal/domain/notification"
	walletdomain "qrconnect-service/internal/domain/wallet"
	xerrors "qrconnect-service/internal/pkg/errors"
	"qrconnect-service/internal/pkg/ref"
	"qrconnect-service/internal/service/notification"

	"go.uber.org/zap"
)

type WalletStore interface {
	FindByBusiness(ctx context.Context, businessID int64) (*walletdomain.Wallet, error)
	AddBalance(ctx context.Context, businessID, amountMinor int64) error
	TryReserve(ctx context.Context, businessID, amountMinor int64) (bool, error)
	SetRestricted(ctx context.Context, businessID int64, restricted bool) error
	SetPayoutEmail(ctx context.Context, businessID int64, email string) error
}

type LedgerStore interface {
	TryInsert(ctx context.Context, e *walletdomain.LedgerEntry) (bool, error)
	TrySettleByWithdrawal(ctx context.Context, withdrawalID int64, status walletdomain.EntryStatus) (bool, error)
	ReverseByWithdrawal(ctx context.Context, withdrawalID int64) (bool, error)
	ListByBusiness(ctx context.Context, businessID int64, limit, offset int) ([]walletdomain.LedgerEntry, error)
}

type WithdrawalStore interface {
	Create(ctx context.Context, w *walletdomain.Withdrawal) error
	FindByID(ctx context.Context, id int64) (*walletdomain.Withdrawal, error)
	TrySettle(ctx context.Context, id int64, status walletdomain.WithdrawalStatus) (bool, error)
	ListByBusiness(ctx context.Context, businessID int64, limit, offset int) ([]walletdomain.Withdrawal, error)
}

type BusinessStore interface {
	FindByID(ctx context.Context, id int64) (*business.Business, error)
}

// Service owns every wallet balance mutation. Credits and debits go through
// ledger-entry conditional inserts so replays and concurrent deliveries
// resolve to exactly one applied effect.
type Service struct {
	wallets     WalletStore
	ledger      LedgerStore
	withdrawals WithdrawalStore
	businesses  BusinessStore
	notifier    notification.Sender
	logger      *zap.Logger
}

func NewService(
	wallets WalletStore,
	ledger LedgerStore,
	withdrawals WithdrawalStore,
	businesses BusinessStore,
	notifier notification.Sender,
	logger *zap.Logger,
) *Service {
	return &Service{
		wallets:     wallets,
		ledger:      ledger,
		withdrawals: withdrawals,
		businesses:  businesses,
		notifier:    notifier,
		logger:      logger,
	}
}

// Credit applies a credit exactly once per refNo. It returns true when this
// call applied the credit, false when the refNo had already been applied.
// The entry insert is the guard; the balance add runs only after a first-time
// insert, so a crash in between is re-driveable by the caller replaying with
// the same refNo; the replay observes false and must not re-add.
func (s *Service) Credit(ctx context.Context, businessID, amountMinor int64, refNo string, orderID int64, subRef string) (bool, error) {
	if amountMinor <= 0 {
		return false, fmt.Errorf("credit amount must be positive: %w", xerrors.ErrInvalidInput)
	}
	if refNo == "" {
		return false, fmt.Errorf("credit refNo is required: %w", xerrors.ErrInvalidInput)
	}

	entry := &walletdomain.LedgerEntry{
		BusinessID:  businessID,
		RefNo:       refNo,
		Kind:        walletdomain.EntryCredit,
		AmountMinor: amountMinor,
		Status:      walletdomain.EntryCompleted,
	}
	if orderID > 0 {
		entry.OrderID = sql.NullInt64{Int64: orderID, Valid: true}
	}
	if subRef != "" {
		entry.OrderSubRef = sql.NullString{String: subRef, Valid: true}
	}

	inserted, err := s.ledger.TryInsert(ctx, entry)
	if err != nil {
		return false, fmt.Errorf("failed to record credit: %w", err)
	}
	if !inserted {
		s.logger.Debug("credit already applied",
			zap.Int64("business_id", businessID),
			zap.String("ref_no", refNo))
		return false, nil
	}

	if err := s.wallets.AddBalance(ctx, businessID, amountMinor); err != nil {
		return false, fmt.Errorf("failed to credit wallet balance: %w", err)
	}

	return true, nil
}

// RequestWithdrawal reserves the amount pessimistically: the balance is
// debited up front by a guarded UPDATE, then the pending withdrawal and its
// pending debit entry are recorded. Two concurrent requests reading a stale
// balance cannot both pass the guard.
func (s *Service) RequestWithdrawal(ctx context.Context, businessID, amountMinor int64) (*walletdomain.Withdrawal, *walletdomain.LedgerEntry, error) {
	if amountMinor <= 0 {
		return nil, nil, fmt.Errorf("withdrawal amount must be positive: %w", xerrors.ErrInvalidInput)
	}

	biz, err := s.businesses.FindByID(ctx, businessID)
	if err != nil {
		return nil, nil, fmt.Errorf("business %d: %w", businessID, err)
	}
	if biz.SubscriptionStatus != business.StatusSubscribed {
		return nil, nil, xerrors.ErrSubscriptionRequired
	}

	w, err := s.wallets.FindByBusiness(ctx, businessID)
	if err != nil {
		return nil, nil, fmt.Errorf("wallet for business %d: %w", businessID, err)
	}
	if w.Restricted {
		return nil, nil, xerrors.ErrWalletRestricted
	}

	reserved, err := s.wallets.TryReserve(ctx, businessID, amountMinor)
	if err != nil {
		return nil, nil, err
	}
	if !reserved {
		// The guarded UPDATE also rejects restricted wallets; recheck so the
		// caller gets the precise reason.
		if w, err = s.wallets.FindByBusiness(ctx, businessID); err == nil && w.Restricted {
			return nil, nil, xerrors.ErrWalletRestricted
		}
		return nil, nil, xerrors.ErrInsufficientBalance
	}

	wd := &walletdomain.Withdrawal{
		BusinessID:   businessID,
		WithdrawalNo: ref.Withdrawal(),
		AmountMinor:  amountMinor,
		Status:       walletdomain.WithdrawalStatusPending,
	}
	if err := s.withdrawals.Create(ctx, wd); err != nil {
		return nil, nil, fmt.Errorf("failed to create withdrawal: %w", err)
	}

	entry := &walletdomain.LedgerEntry{
		BusinessID:   businessID,
		WithdrawalID: sql.NullInt64{Int64: wd.ID, Valid: true},
		RefNo:        wd.WithdrawalNo,
		Kind:         walletdomain.EntryDebit,
		AmountMinor:  amountMinor,
		Status:       walletdomain.EntryPending,
	}
	if _, err := s.ledger.TryInsert(ctx, entry); err != nil {
		return nil, nil, fmt.Errorf("failed to record withdrawal debit: %w", err)
	}

	notification.FireAndForget(ctx, s.notifier, s.logger, notifdomain.Message{
		Template:  "withdrawal_requested",
		Recipient: biz.Email,
		Variables: map[string]string{
			"withdrawal_no": wd.WithdrawalNo,
			"amount":        fmt.Sprintf("%d", amountMinor),
		},
	})

	return wd, entry, nil
}

// Settle finalizes a pending withdrawal. Completed leaves the balance alone
// (it was debited at request time); Rejected and Failed reverse the debit.
// The money effect runs first, guarded by the pending debit entry, and the
// withdrawal status flips last. A transient failure in between leaves the
// withdrawal pending, so the settle stays retryable and the retry re-drives
// the sequence to completion without a second refund.
func (s *Service) Settle(ctx context.Context, withdrawalID int64, status walletdomain.WithdrawalStatus) (*walletdomain.Withdrawal, error) {
	if !status.IsTerminal() {
		return nil, fmt.Errorf("settle status must be terminal, got %q: %w", status, xerrors.ErrInvalidInput)
	}

	wd, err := s.withdrawals.FindByID(ctx, withdrawalID)
	if err != nil {
		return nil, fmt.Errorf("withdrawal %d: %w", withdrawalID, err)
	}
	if wd.Status.IsTerminal() {
		return nil, fmt.Errorf("withdrawal %d: %w", withdrawalID, xerrors.ErrAlreadyProcessed)
	}

	switch status {
	case walletdomain.WithdrawalStatusCompleted:
		if _, err := s.ledger.TrySettleByWithdrawal(ctx, withdrawalID, walletdomain.EntryCompleted); err != nil {
			return nil, err
		}
	case walletdomain.WithdrawalStatusRejected, walletdomain.WithdrawalStatusFailed:
		if _, err := s.ledger.ReverseByWithdrawal(ctx, withdrawalID); err != nil {
			return nil, err
		}
	}

	won, err := s.withdrawals.TrySettle(ctx, withdrawalID, status)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, fmt.Errorf("withdrawal %d: %w", withdrawalID, xerrors.ErrAlreadyProcessed)
	}

	wd.Status = status
	s.logger.Info("withdrawal settled",
		zap.Int64("withdrawal_id", withdrawalID),
		zap.String("status", string(status)))
	return wd, nil
}

// Restrict toggles the withdrawal gate. Pending withdrawals are unaffected.
func (s *Service) Restrict(ctx context.Context, businessID int64, restricted bool) error {
	return s.wallets.SetRestricted(ctx, businessID, restricted)
}

func (s *Service) GetWallet(ctx context.Context, businessID int64) (*walletdomain.Wallet, error) {
	return s.wallets.FindByBusiness(ctx, businessID)
}

func (s *Service) SetPayoutEmail(ctx context.Context, businessID int64, email string) error {
	if email == "" {
		return fmt.Errorf("payout email is required: %w", xerrors.ErrInvalidInput)
	}
	return s.wallets.SetPayoutEmail(ctx, businessID, email)
}

func (s *Service) ListEntries(ctx context.Context, businessID int64, f walletdomain.ListFilters) ([]walletdomain.LedgerEntry, error) {
	return s.ledger.ListByBusiness(ctx, businessID, f.PageSize, f.Offset())
}

func (s *Service) ListWithdrawals(ctx context.Context, businessID int64, f walletdomain.ListFilters) ([]walletdomain.Withdrawal, error) {
	return s.withdrawals.ListByBusiness(ctx, businessID, f.PageSize, f.Offset())
}
