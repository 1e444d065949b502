// internal/domain/transaction/entity.go
package transaction

import "time"

type Type string
type Status string

const (
	TypeOrder Type = "order"

	StatusCompleted Status = "completed"
)

// Transaction is the buyer-facing record of a settled payment. The unique
// index on ProviderSessionID is the duplicate-delivery guard for settlement.
type Transaction struct {
	ID                int64     `json:"id" db:"id"`
	BuyerID           int64     `json:"buyer_id" db:"buyer_id"`
	OrderID           int64     `json:"order_id" db:"order_id"`
	ProviderSessionID string    `json:"provider_session_id" db:"provider_session_id"`
	Type              Type      `json:"type" db:"type"`
	AmountMinor       int64     `json:"amount_minor" db:"amount_minor"`
	Status            Status    `json:"status" db:"status"`
	PaymentMethod     string    `json:"payment_method" db:"payment_method"`
	Comment           string    `json:"comment" db:"comment"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}
