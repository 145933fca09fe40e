package entities

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentProvider is a mobile financial service that sends payment SMS.
type PaymentProvider string

const (
	ProviderBkash  PaymentProvider = "Bkash"
	ProviderNagad  PaymentProvider = "Nagad"
	ProviderRocket PaymentProvider = "Rocket"
)

// ParsePaymentProvider accepts provider names case-insensitively.
func ParsePaymentProvider(s string) (PaymentProvider, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bkash":
		return ProviderBkash, true
	case "nagad":
		return ProviderNagad, true
	case "rocket":
		return ProviderRocket, true
	}
	return "", false
}

var ErrSMSUnrecognized = errors.New("sms is not a recognised payment notification")

// SMSRecord is an incoming "money received" SMS parsed into its payment fields.
type SMSRecord struct {
	ID            string          `json:"id" db:"id"`
	Provider      PaymentProvider `json:"provider" db:"provider"`
	Sender        string          `json:"sender" db:"sender"`
	Body          string          `json:"body" db:"body"`
	TransactionID string          `json:"transactionId" db:"transaction_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	SenderNumber  string          `json:"senderNumber" db:"sender_number"`
	ReceivedAt    time.Time       `json:"receivedAt" db:"received_at"`
	ConsumedBy    *string         `json:"consumedBy,omitempty" db:"consumed_by"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
}
