package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryType classifies wallet ledger rows.
type EntryType string

const (
	EntryRecharge     EntryType = "recharge"
	EntryOrderPayment EntryType = "order_payment"
	EntryOrderRefund  EntryType = "order_refund"
	EntryAdjustment   EntryType = "adjustment"
)

// Ledger reference types. A (reference type, reference id) pair is credited
// or debited at most once.
const (
	ReferenceMoneyRequest = "money_request"
	ReferenceOrderPayment = "order_payment"
	ReferenceOrderRefund  = "order_refund"
)

// WalletEntry is one row of the wallet ledger. The balance is the sum of a
// user's entries.
type WalletEntry struct {
	ID            int64           `json:"id" db:"id"`
	UserID        int64           `json:"userId" db:"user_id"`
	Type          EntryType       `json:"type" db:"type"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter" db:"balance_after"`
	ReferenceType string          `json:"referenceType" db:"reference_type"`
	ReferenceID   string          `json:"referenceId" db:"reference_id"`
	Notes         string          `json:"notes" db:"notes"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
}

// WalletSummary is the balance plus recent history.
type WalletSummary struct {
	UserID  int64           `json:"userId"`
	Balance decimal.Decimal `json:"balance"`
	Entries []WalletEntry   `json:"entries"`
}
