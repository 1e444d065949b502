// internal/repository/postgres/subscription_log_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"qrconnect-service/internal/domain/subscription"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SubscriptionLogRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionLogRepository(db *pgxpool.Pool) *SubscriptionLogRepository {
	return &SubscriptionLogRepository{db: db}
}

// TryInsert appends a transition row unless its reference already exists.
// Returns true when the row was inserted; false means a replay.
func (r *SubscriptionLogRepository) TryInsert(ctx context.Context, l *subscription.Log) (bool, error) {
	query := `
		INSERT INTO subscription_logs (business_id, plan_id, reference, amount_paid, start_date, end_date, comment)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (reference) DO NOTHING
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		l.BusinessID, l.PlanID, l.Reference, l.AmountPaid, l.StartDate, l.EndDate, l.Comment,
	).Scan(&l.ID, &l.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert subscription log: %w", err)
	}
	return true, nil
}

// HasTrialForBusiness reports whether any transition ever referenced a trial
// plan for this business. This is the "one trial ever" guard.
func (r *SubscriptionLogRepository) HasTrialForBusiness(ctx context.Context, businessID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM subscription_logs l
			JOIN subscription_plans p ON p.id = l.plan_id
			WHERE l.business_id = $1 AND p.is_trial
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, businessID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check trial history: %w", err)
	}
	return exists, nil
}

func (r *SubscriptionLogRepository) ListByBusiness(ctx context.Context, businessID int64, limit, offset int) ([]subscription.Log, error) {
	query := `
		SELECT id, business_id, plan_id, reference, amount_paid, start_date, end_date, comment, created_at
		FROM subscription_logs
		WHERE business_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, businessID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscription logs: %w", err)
	}
	defer rows.Close()

	var logs []subscription.Log
	for rows.Next() {
		var l subscription.Log
		if err := rows.Scan(&l.ID, &l.BusinessID, &l.PlanID, &l.Reference, &l.AmountPaid, &l.StartDate, &l.EndDate, &l.Comment, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscription log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
