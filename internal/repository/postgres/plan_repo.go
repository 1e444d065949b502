// internal/repository/postgres/plan_repo.go
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

type PlanRepository struct {
	db *pgxpool.Pool
}

func NewPlanRepository(db *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `
	id, name, price_minor, currency, billing_cycle, provider_plan_id, is_trial, trial_days, created_at, updated_at
`

func scanPlan(row pgx.Row) (*subscription.Plan, error) {
	var p subscription.Plan
	err := row.Scan(
		&p.ID, &p.Name, &p.PriceMinor, &p.Currency, &p.BillingCycle,
		&p.ProviderPlanID, &p.IsTrial, &p.TrialDays, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscription plan: %w", err)
	}
	return &p, nil
}

func (r *PlanRepository) FindByID(ctx context.Context, id int64) (*subscription.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM subscription_plans WHERE id = $1`
	return scanPlan(r.db.QueryRow(ctx, query, id))
}

func (r *PlanRepository) FindByProviderPlanID(ctx context.Context, providerPlanID string) (*subscription.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM subscription_plans WHERE provider_plan_id = $1`
	return scanPlan(r.db.QueryRow(ctx, query, providerPlanID))
}
