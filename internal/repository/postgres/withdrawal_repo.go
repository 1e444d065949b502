// internal/repository/postgres/withdrawal_repo.go
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

type WithdrawalRepository struct {
	db *pgxpool.Pool
}

func NewWithdrawalRepository(db *pgxpool.Pool) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) Create(ctx context.Context, w *wallet.Withdrawal) error {
	query := `
		INSERT INTO withdrawals (business_id, withdrawal_no, amount_minor, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query, w.BusinessID, w.WithdrawalNo, w.AmountMinor, w.Status).
		Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create withdrawal: %w", err)
	}
	return nil
}

func (r *WithdrawalRepository) FindByID(ctx context.Context, id int64) (*wallet.Withdrawal, error) {
	query := `
		SELECT id, business_id, withdrawal_no, amount_minor, status, created_at, updated_at
		FROM withdrawals
		WHERE id = $1
	`

	var w wallet.Withdrawal
	err := r.db.QueryRow(ctx, query, id).Scan(
		&w.ID, &w.BusinessID, &w.WithdrawalNo, &w.AmountMinor, &w.Status, &w.CreatedAt, &w.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find withdrawal: %w", err)
	}
	return &w, nil
}

// TrySettle moves a pending withdrawal to a terminal status. Exactly one
// concurrent settle wins; the rest observe false.
func (r *WithdrawalRepository) TrySettle(ctx context.Context, id int64, status wallet.WithdrawalStatus) (bool, error) {
	query := `
		UPDATE withdrawals
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`

	tag, err := r.db.Exec(ctx, query, id, status, wallet.WithdrawalStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to settle withdrawal: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *WithdrawalRepository) ListByBusiness(ctx context.Context, businessID int64, limit, offset int) ([]wallet.Withdrawal, error) {
	query := `
		SELECT id, business_id, withdrawal_no, amount_minor, status, created_at, updated_at
		FROM withdrawals
		WHERE business_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, businessID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	defer rows.Close()

	var withdrawals []wallet.Withdrawal
	for rows.Next() {
		var w wallet.Withdrawal
		if err := rows.Scan(&w.ID, &w.BusinessID, &w.WithdrawalNo, &w.AmountMinor, &w.Status, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, w)
	}
	return withdrawals, rows.Err()
}
