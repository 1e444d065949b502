// internal/repository/postgres/transaction_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"qrconnect-service/internal/domain/transaction"
	xerrors "qrconnect-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TransactionRepository struct {
	db *pgxpool.Pool
}

func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// TryInsert creates the buyer-facing transaction unless one already exists for
// the provider session. Returns true when this caller inserted it.
func (r *TransactionRepository) TryInsert(ctx context.Context, t *transaction.Transaction) (bool, error) {
	query := `
		INSERT INTO transactions (buyer_id, order_id, provider_session_id, type, amount_minor, status, payment_method, comment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (provider_session_id) DO NOTHING
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		t.BuyerID, t.OrderID, t.ProviderSessionID, t.Type, t.AmountMinor, t.Status, t.PaymentMethod, t.Comment,
	).Scan(&t.ID, &t.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return true, nil
}

func (r *TransactionRepository) FindByProviderSessionID(ctx context.Context, sessionID string) (*transaction.Transaction, error) {
	query := `
		SELECT id, buyer_id, order_id, provider_session_id, type, amount_minor, status, payment_method, comment, created_at
		FROM transactions
		WHERE provider_session_id = $1
	`

	var t transaction.Transaction
	err := r.db.QueryRow(ctx, query, sessionID).Scan(
		&t.ID, &t.BuyerID, &t.OrderID, &t.ProviderSessionID, &t.Type,
		&t.AmountMinor, &t.Status, &t.PaymentMethod, &t.Comment, &t.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}
	return &t, nil
}
