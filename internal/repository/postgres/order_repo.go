// internal/repository/postgres/order_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"qrconnect-service/internal/domain/order"
	xerrors "qrconnect-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderRepository struct {
	db *pgxpool.Pool
}

func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) FindByID(ctx context.Context, id int64) (*order.Order, error) {
	query := `
		SELECT id, buyer_id, amount_minor, currency, payment_status, payment_ref, session_id, order_status, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var o order.Order
	err := r.db.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.BuyerID, &o.AmountMinor, &o.Currency, &o.PaymentStatus,
		&o.PaymentRef, &o.SessionID, &o.Status, &o.CreatedAt, &o.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}

	lines, err := r.findLines(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	return &o, nil
}

func (r *OrderRepository) findLines(ctx context.Context, orderID int64) ([]order.Line, error) {
	query := `
		SELECT id, order_id, product_id, sub_ref, quantity, subtotal_minor
		FROM order_lines
		WHERE order_id = $1
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order lines: %w", err)
	}
	defer rows.Close()

	var lines []order.Line
	for rows.Next() {
		var l order.Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.SubRef, &l.Quantity, &l.SubtotalMinor); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// MarkPaid records the successful payment and advances the order pipeline.
// Idempotent: re-running with the same session ref converges.
func (r *OrderRepository) MarkPaid(ctx context.Context, orderID int64, paymentRef string) error {
	query := `
		UPDATE orders
		SET payment_status = $2, payment_ref = $3, order_status = $4, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, orderID, order.PaymentSuccess, paymentRef, order.StatusPendingConfirmation)
	if err != nil {
		return fmt.Errorf("failed to mark order paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// SetSessionID stores the checkout session created for this order so the
// webhook can be correlated back.
func (r *OrderRepository) SetSessionID(ctx context.Context, orderID int64, sessionID string) error {
	query := `
		UPDATE orders
		SET session_id = $2, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, orderID, sessionID)
	if err != nil {
		return fmt.Errorf("failed to set order session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// FindProductByID resolves the owning business of a purchased line.
func (r *OrderRepository) FindProductByID(ctx context.Context, id int64) (*order.Product, error) {
	query := `
		SELECT id, business_id, name, price_minor
		FROM products
		WHERE id = $1
	`

	var p order.Product
	err := r.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.BusinessID, &p.Name, &p.PriceMinor)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return &p, nil
}
