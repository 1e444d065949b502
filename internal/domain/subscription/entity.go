// internal/domain/subscription/entity.go
package subscription

import (
	"database/sql"
	"time"
)

type Status string

const (
	StatusFreeTrial Status = "free_trial"
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
)

// Subscription is the single subscription row per business ("no subscription"
// is the absence of a row). It is never deleted, only expired.
type Subscription struct {
	ID                     int64          `json:"id" db:"id"`
	BusinessID             int64          `json:"business_id" db:"business_id"`
	PlanID                 int64          `json:"plan_id" db:"plan_id"`
	PlanName               string         `json:"plan_name" db:"plan_name"`
	Status                 Status         `json:"status" db:"status"`
	PaidAt                 time.Time      `json:"paid_at" db:"paid_at"`
	ExpiresAt              time.Time      `json:"expires_at" db:"expires_at"`
	ProviderPlanID         sql.NullString `json:"provider_plan_id,omitempty" db:"provider_plan_id"`
	ProviderSubscriptionID sql.NullString `json:"provider_subscription_id,omitempty" db:"provider_subscription_id"`
	CreatedAt              time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at" db:"updated_at"`
}

type Plan struct {
	ID             int64     `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	PriceMinor     int64     `json:"price_minor" db:"price_minor"`
	Currency       string    `json:"currency" db:"currency"`
	BillingCycle   string    `json:"billing_cycle" db:"billing_cycle"`
	ProviderPlanID string    `json:"provider_plan_id" db:"provider_plan_id"`
	IsTrial        bool      `json:"is_trial" db:"is_trial"`
	TrialDays      int       `json:"trial_days" db:"trial_days"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Log is append-only; one row per applied transition. Reference carries the
// provider event id (or a generated trial reference) and is the idempotency
// anchor via its unique index.
type Log struct {
	ID         int64     `json:"id" db:"id"`
	BusinessID int64     `json:"business_id" db:"business_id"`
	PlanID     int64     `json:"plan_id" db:"plan_id"`
	Reference  string    `json:"reference" db:"reference"`
	AmountPaid int64     `json:"amount_paid" db:"amount_paid"`
	StartDate  time.Time `json:"start_date" db:"start_date"`
	EndDate    time.Time `json:"end_date" db:"end_date"`
	Comment    string    `json:"comment" db:"comment"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
