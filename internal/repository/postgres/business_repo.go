// internal/repository/postgres/business_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"qrconnect-service/internal/domain/business"
	xerrors "qrconnect-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BusinessRepository struct {
	db *pgxpool.Pool
}

func NewBusinessRepository(db *pgxpool.Pool) *BusinessRepository {
	return &BusinessRepository{db: db}
}

func (r *BusinessRepository) FindByID(ctx context.Context, id int64) (*business.Business, error) {
	query := `
		SELECT id, name, email, first_name, last_name, subscription_status, created_at, updated_at
		FROM businesses
		WHERE id = $1
	`

	var b business.Business
	err := r.db.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.Name, &b.Email, &b.FirstName, &b.LastName,
		&b.SubscriptionStatus, &b.CreatedAt, &b.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find business: %w", err)
	}
	return &b, nil
}

// UpdateSubscriptionStatus is an idempotent flag write; re-running it after a
// partial reconciliation converges to the same end state.
func (r *BusinessRepository) UpdateSubscriptionStatus(ctx context.Context, id int64, status business.SubscriptionStatus) error {
	query := `
		UPDATE businesses
		SET subscription_status = $2, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update business subscription status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}
