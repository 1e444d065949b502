// internal/repository/postgres/ledger_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"qrconnect-service/internal/domain/wallet"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LedgerRepository struct {
	db *pgxpool.Pool
}

func NewLedgerRepository(db *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// TryInsert appends a ledger entry unless (business_id, kind, ref_no) already
// exists. Returns true when this caller performed the first insert; that
// single bit is the exactly-once decision for the associated balance change.
func (r *LedgerRepository) TryInsert(ctx context.Context, e *wallet.LedgerEntry) (bool, error) {
	query := `
		INSERT INTO ledger_entries (business_id, order_id, order_sub_ref, withdrawal_id, ref_no, kind, amount_minor, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (business_id, kind, ref_no) DO NOTHING
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		e.BusinessID, e.OrderID, e.OrderSubRef, e.WithdrawalID, e.RefNo, e.Kind, e.AmountMinor, e.Status,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return true, nil
}

// TrySettleByWithdrawal finalizes the pending debit entry that backs a
// withdrawal. Only a pending entry can move; it returns true when this caller
// performed the transition.
func (r *LedgerRepository) TrySettleByWithdrawal(ctx context.Context, withdrawalID int64, status wallet.EntryStatus) (bool, error) {
	query := `
		UPDATE ledger_entries
		SET status = $2, updated_at = NOW()
		WHERE withdrawal_id = $1 AND status = $3
	`

	tag, err := r.db.Exec(ctx, query, withdrawalID, status, wallet.EntryPending)
	if err != nil {
		return false, fmt.Errorf("failed to settle ledger entry: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReverseByWithdrawal fails the pending debit entry of a withdrawal and
// refunds its amount to the wallet in a single statement, so the refund is
// applied exactly when the entry transition wins. Returns true when this
// caller applied the reversal; a replay affects no rows.
func (r *LedgerRepository) ReverseByWithdrawal(ctx context.Context, withdrawalID int64) (bool, error) {
	query := `
		WITH reversed AS (
			UPDATE ledger_entries
			SET status = $2, updated_at = NOW()
			WHERE withdrawal_id = $1 AND status = $3
			RETURNING business_id, amount_minor
		)
		UPDATE wallets w
		SET balance = w.balance + r.amount_minor, updated_at = NOW()
		FROM reversed r
		WHERE w.business_id = r.business_id
	`

	tag, err := r.db.Exec(ctx, query, withdrawalID, wallet.EntryFailed, wallet.EntryPending)
	if err != nil {
		return false, fmt.Errorf("failed to reverse withdrawal debit: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *LedgerRepository) ListByBusiness(ctx context.Context, businessID int64, limit, offset int) ([]wallet.LedgerEntry, error) {
	query := `
		SELECT id, business_id, order_id, order_sub_ref, withdrawal_id, ref_no, kind, amount_minor, status, created_at, updated_at
		FROM ledger_entries
		WHERE business_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, businessID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []wallet.LedgerEntry
	for rows.Next() {
		var e wallet.LedgerEntry
		if err := rows.Scan(&e.ID, &e.BusinessID, &e.OrderID, &e.OrderSubRef, &e.WithdrawalID, &e.RefNo, &e.Kind, &e.AmountMinor, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
