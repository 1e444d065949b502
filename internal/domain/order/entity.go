// internal/domain/order/entity.go
package order

import (
	"database/sql"
	"time"
)

type PaymentStatus string
type Status string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"

	StatusAwaitingPayment     Status = "awaiting_payment"
	StatusPendingConfirmation Status = "pending_confirmation"
	StatusConfirmed           Status = "confirmed"
	StatusDelivered           Status = "delivered"
)

// Line is one purchasable line of an order. SubRef distinguishes lines within
// the order and, combined with the provider session id, forms the ledger refNo
// that makes each line independently creditable exactly once.
type Line struct {
	ID            int64  `json:"id" db:"id"`
	OrderID       int64  `json:"order_id" db:"order_id"`
	ProductID     int64  `json:"product_id" db:"product_id"`
	SubRef        string `json:"sub_ref" db:"sub_ref"`
	Quantity      int32  `json:"quantity" db:"quantity"`
	SubtotalMinor int64  `json:"subtotal_minor" db:"subtotal_minor"`
}

type Order struct {
	ID            int64          `json:"id" db:"id"`
	BuyerID       int64          `json:"buyer_id" db:"buyer_id"`
	Lines         []Line         `json:"lines" db:"-"`
	AmountMinor   int64          `json:"amount_minor" db:"amount_minor"`
	Currency      string         `json:"currency" db:"currency"`
	PaymentStatus PaymentStatus  `json:"payment_status" db:"payment_status"`
	PaymentRef    sql.NullString `json:"payment_ref,omitempty" db:"payment_ref"`
	SessionID     sql.NullString `json:"session_id,omitempty" db:"session_id"`
	Status        Status         `json:"status" db:"status"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// Product carries the minimum the settlement path needs: which business owns a
// purchased line. Catalog management lives elsewhere.
type Product struct {
	ID         int64  `json:"id" db:"id"`
	BusinessID int64  `json:"business_id" db:"business_id"`
	Name       string `json:"name" db:"name"`
	PriceMinor int64  `json:"price_minor" db:"price_minor"`
}
