// internal/repository/postgres/subscription_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"qrconnect-service/internal/domain/subscription"
	xerrors "qrconnect-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `
	id, business_id, plan_id, plan_name, status, paid_at, expires_at,
	provider_plan_id, provider_subscription_id, created_at, updated_at
`

func scanSubscription(row pgx.Row) (*subscription.Subscription, error) {
	var s subscription.Subscription
	err := row.Scan(
		&s.ID, &s.BusinessID, &s.PlanID, &s.PlanName, &s.Status, &s.PaidAt, &s.ExpiresAt,
		&s.ProviderPlanID, &s.ProviderSubscriptionID, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}
	return &s, nil
}

func (r *SubscriptionRepository) FindByBusiness(ctx context.Context, businessID int64) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE business_id = $1`
	return scanSubscription(r.db.QueryRow(ctx, query, businessID))
}

func (r *SubscriptionRepository) FindByProviderSubscriptionID(ctx context.Context, providerSubID string) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE provider_subscription_id = $1`
	return scanSubscription(r.db.QueryRow(ctx, query, providerSubID))
}

// Upsert creates or replaces the single subscription row for a business. The
// unique index on business_id makes concurrent upserts resolve to one row, and
// re-running the same upsert converges to the same end state.
func (r *SubscriptionRepository) Upsert(ctx context.Context, s *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			business_id, plan_id, plan_name, status, paid_at, expires_at,
			provider_plan_id, provider_subscription_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (business_id) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			plan_name = EXCLUDED.plan_name,
			status = EXCLUDED.status,
			paid_at = EXCLUDED.paid_at,
			expires_at = EXCLUDED.expires_at,
			provider_plan_id = EXCLUDED.provider_plan_id,
			provider_subscription_id = EXCLUDED.provider_subscription_id,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		s.BusinessID, s.PlanID, s.PlanName, s.Status, s.PaidAt, s.ExpiresAt,
		s.ProviderPlanID, s.ProviderSubscriptionID,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// MarkExpired transitions a subscription to expired. Already-expired rows are
// a no-op success so cancellation replays converge.
func (r *SubscriptionRepository) MarkExpired(ctx context.Context, id int64) error {
	query := `
		UPDATE subscriptions
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, subscription.StatusExpired)
	if err != nil {
		return fmt.Errorf("failed to expire subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}
