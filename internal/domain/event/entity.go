// internal/domain/event/entity.go
package event

import (
	"database/sql"
	"encoding/json"
	"time"
)

type Status string

const (
	// StatusProcessing is held while a handler owns the event. A crashed handler
	// leaves the row in this state; redelivery past the stale window reclaims it.
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusFailed     Status = "failed"
	StatusIgnored    Status = "ignored"
)

// WebhookEvent is the append-only audit record of a verified inbound event.
// ProviderEventID is the idempotency key; the unique index on it makes the
// initial insert the gate that elects exactly one processor.
type WebhookEvent struct {
	ID              int64           `json:"id" db:"id"`
	ProviderEventID string          `json:"provider_event_id" db:"provider_event_id"`
	EventType       string          `json:"event_type" db:"event_type"`
	ResourceType    string          `json:"resource_type" db:"resource_type"`
	Payload         json.RawMessage `json:"payload" db:"payload"`
	Status          Status          `json:"status" db:"status"`
	ParkedReason    sql.NullString  `json:"parked_reason,omitempty" db:"parked_reason"`
	ReceivedAt      time.Time       `json:"received_at" db:"received_at"`
	ProcessedAt     sql.NullTime    `json:"processed_at,omitempty" db:"processed_at"`
}

// Event is the canonical tagged union produced by intake. Exactly one of the
// concrete variants below implements it.
type Event interface {
	ProviderID() string
	Type() string
}

type SubscriptionActivated struct {
	EventID                string
	ProviderSubscriptionID string
	BusinessID             int64
	ProviderPlanID         string
	PeriodStart            time.Time
	PeriodEnd              time.Time
}

func (e SubscriptionActivated) ProviderID() string { return e.EventID }
func (e SubscriptionActivated) Type() string       { return "subscription.activated" }

type SubscriptionCancelled struct {
	EventID                string
	ProviderSubscriptionID string
	BusinessID             int64
}

func (e SubscriptionCancelled) ProviderID() string { return e.EventID }
func (e SubscriptionCancelled) Type() string       { return "subscription.cancelled" }

type PaymentCompleted struct {
	EventID     string
	SessionID   string
	OrderID     int64
	AmountMinor int64
	Currency    string
}

func (e PaymentCompleted) ProviderID() string { return e.EventID }
func (e PaymentCompleted) Type() string       { return "payment.completed" }

// Unknown covers event types we do not handle. It is acknowledged and logged,
// never an error.
type Unknown struct {
	EventID   string
	EventType string
}

func (e Unknown) ProviderID() string { return e.EventID }
func (e Unknown) Type() string       { return "unknown" }
