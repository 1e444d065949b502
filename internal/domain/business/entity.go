// internal/domain/business/entity.go
package business

import "time"

type SubscriptionStatus string

const (
	StatusUnsubscribed SubscriptionStatus = "Unsubscribed"
	StatusFreeTrial    SubscriptionStatus = "Free-Trial"
	StatusSubscribed   SubscriptionStatus = "Subscribed"
	StatusDeactivated  SubscriptionStatus = "Deactivated"
)

type Business struct {
	ID                 int64              `json:"id" db:"id"`
	Name               string             `json:"name" db:"name"`
	Email              string             `json:"email" db:"email"`
	FirstName          string             `json:"first_name" db:"first_name"`
	LastName           string             `json:"last_name" db:"last_name"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status" db:"subscription_status"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}
