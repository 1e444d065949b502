// internal/repository/postgres/wallet_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"qrconnect-service/internal/domain/wallet"
	xerrors "qrconnect-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WalletRepository struct {
	db *pgxpool.Pool
}

func NewWalletRepository(db *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) FindByBusiness(ctx context.Context, businessID int64) (*wallet.Wallet, error) {
	query := `
		SELECT id, business_id, balance, restricted, payout_email, created_at, updated_at
		FROM wallets
		WHERE business_id = $1
	`

	var w wallet.Wallet
	err := r.db.QueryRow(ctx, query, businessID).Scan(
		&w.ID, &w.BusinessID, &w.Balance, &w.Restricted, &w.PayoutEmail, &w.CreatedAt, &w.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find wallet: %w", err)
	}
	return &w, nil
}

// AddBalance increments the balance unconditionally; callers must hold an
// exactly-once guard (a freshly inserted ledger entry) before calling it.
func (r *WalletRepository) AddBalance(ctx context.Context, businessID, amountMinor int64) error {
	query := `
		UPDATE wallets
		SET balance = balance + $2, updated_at = NOW()
		WHERE business_id = $1
	`

	tag, err := r.db.Exec(ctx, query, businessID, amountMinor)
	if err != nil {
		return fmt.Errorf("failed to credit wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// TryReserve debits the balance only if the wallet is unrestricted and holds
// enough funds. The single guarded UPDATE is what prevents two concurrent
// withdrawals from both passing a stale balance check.
func (r *WalletRepository) TryReserve(ctx context.Context, businessID, amountMinor int64) (bool, error) {
	query := `
		UPDATE wallets
		SET balance = balance - $2, updated_at = NOW()
		WHERE business_id = $1 AND restricted = FALSE AND balance >= $2
	`

	tag, err := r.db.Exec(ctx, query, businessID, amountMinor)
	if err != nil {
		return false, fmt.Errorf("failed to reserve withdrawal amount: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *WalletRepository) SetRestricted(ctx context.Context, businessID int64, restricted bool) error {
	query := `
		UPDATE wallets
		SET restricted = $2, updated_at = NOW()
		WHERE business_id = $1
	`

	tag, err := r.db.Exec(ctx, query, businessID, restricted)
	if err != nil {
		return fmt.Errorf("failed to update wallet restriction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (r *WalletRepository) SetPayoutEmail(ctx context.Context, businessID int64, email string) error {
	query := `
		UPDATE wallets
		SET payout_email = $2, updated_at = NOW()
		WHERE business_id = $1
	`

	tag, err := r.db.Exec(ctx, query, businessID, email)
	if err != nil {
		return fmt.Errorf("failed to update payout email: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}
