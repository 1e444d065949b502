// internal/domain/wallet/entity.go
package wallet

import (
	"database/sql"
	"time"
)

type EntryKind string
type EntryStatus string
type WithdrawalStatus string

const (
	EntryCredit EntryKind = "credit"
	EntryDebit  EntryKind = "debit"

	EntryPending   EntryStatus = "pending"
	EntryCompleted EntryStatus = "completed"
	EntryFailed    EntryStatus = "failed"

	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusCompleted WithdrawalStatus = "completed"
	WithdrawalStatusFailed    WithdrawalStatus = "failed"
	WithdrawalStatusRejected  WithdrawalStatus = "rejected"
)

// Wallet holds a business balance in integer minor currency units. The balance
// is always reconcilable as sum(completed credits) - sum(completed and pending
// debits); all mutation goes through the ledger service.
type Wallet struct {
	ID          int64          `json:"id" db:"id"`
	BusinessID  int64          `json:"business_id" db:"business_id"`
	Balance     int64          `json:"balance" db:"balance"`
	Restricted  bool           `json:"restricted" db:"restricted"`
	PayoutEmail sql.NullString `json:"payout_email,omitempty" db:"payout_email"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// LedgerEntry is the immutable record of a single credit or debit. RefNo is
// unique per (business, kind) and is the exactly-once guard; only Status may
// change after insert (pending -> completed|failed).
type LedgerEntry struct {
	ID           int64          `json:"id" db:"id"`
	BusinessID   int64          `json:"business_id" db:"business_id"`
	OrderID      sql.NullInt64  `json:"order_id,omitempty" db:"order_id"`
	OrderSubRef  sql.NullString `json:"order_sub_ref,omitempty" db:"order_sub_ref"`
	WithdrawalID sql.NullInt64  `json:"withdrawal_id,omitempty" db:"withdrawal_id"`
	RefNo        string         `json:"ref_no" db:"ref_no"`
	Kind         EntryKind      `json:"kind" db:"kind"`
	AmountMinor  int64          `json:"amount_minor" db:"amount_minor"`
	Status       EntryStatus    `json:"status" db:"status"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

type Withdrawal struct {
	ID           int64            `json:"id" db:"id"`
	BusinessID   int64            `json:"business_id" db:"business_id"`
	WithdrawalNo string           `json:"withdrawal_no" db:"withdrawal_no"`
	AmountMinor  int64            `json:"amount_minor" db:"amount_minor"`
	Status       WithdrawalStatus `json:"status" db:"status"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether a withdrawal status can no longer change.
func (s WithdrawalStatus) IsTerminal() bool {
	return s == WithdrawalStatusCompleted || s == WithdrawalStatusFailed || s == WithdrawalStatusRejected
}

// DTOs

type CreateWithdrawalRequest struct {
	AmountMinor int64 `json:"amount_minor" binding:"required,gt=0"`
}

type SettleWithdrawalRequest struct {
	Status WithdrawalStatus `json:"status" binding:"required"`
}

type RestrictWalletRequest struct {
	Restricted *bool `json:"restricted" binding:"required"`
}

type ListFilters struct {
	Page     int `form:"page,default=1" binding:"min=1"`
	PageSize int `form:"page_size,default=20" binding:"min=1,max=100"`
}

func (f ListFilters) Offset() int { return (f.Page - 1) * f.PageSize }
