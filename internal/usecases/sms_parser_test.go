package usecases

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sand/digiseba/backend/internal/entities"
)

func TestParseSMS(t *testing.T) {
	tests := []struct {
		name     string
		sender   string
		body     string
		provider entities.PaymentProvider
		txn      string
		amount   string
		from     string
	}{
		{
			name:     "bkash",
			sender:   "bKash",
			body:     "You have received Tk 1,000.00 from 01911115678. Fee Tk 0.00. Balance Tk 5,000.00. TrxID 9JK4L2M1NP at 14/10/2026 10:30",
			provider: entities.ProviderBkash,
			txn:      "9JK4L2M1NP",
			amount:   "1000",
			from:     "01911115678",
		},
		{
			name:     "nagad",
			sender:   "NAGAD",
			body:     "Money Received.\nAmount: Tk 500.00\nSender: 01712345678\nRef: N/A\nTxnID: 71a2b3c4\nBalance: Tk 1,500.00\n14/10/2026 10:30",
			provider: entities.ProviderNagad,
			txn:      "71A2B3C4",
			amount:   "500",
			from:     "01712345678",
		},
		{
			name:     "rocket short code",
			sender:   "16216",
			body:     "Tk500.00 received from A/C:01812345678 Fee:Tk0, Your A/C Balance: Tk1,500.00 TxnId:1234567890 Date:14-OCT-26 10:30:00 am.",
			provider: entities.ProviderRocket,
			txn:      "1234567890",
			amount:   "500",
			from:     "01812345678",
		},
		{
			name:     "unknown sender falls back to templates",
			sender:   "+8801700000000",
			body:     "You have received Tk 250.50 from 01511112222. Fee Tk 0.00. Balance Tk 250.50. TrxID ABCD1234 at 14/10/2026 11:00",
			provider: entities.ProviderBkash,
			txn:      "ABCD1234",
			amount:   "250.5",
			from:     "01511112222",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParseSMS(tt.sender, tt.body)
			require.NoError(t, err)
			require.Equal(t, tt.provider, parsed.Provider)
			require.Equal(t, tt.txn, parsed.TransactionID)
			require.True(t, decimal.RequireFromString(tt.amount).Equal(parsed.Amount), "amount %s", parsed.Amount)
			require.Equal(t, tt.from, parsed.SenderNumber)
		})
	}
}

func TestParseSMSUnrecognised(t *testing.T) {
	bodies := map[string]string{
		"bKash":  "Your bKash OTP is 123456. Do not share it.",
		"16216":  "Tk500.00 sent to A/C:01812345678",
		"Nagad":  "Amount: Tk 500.00\nSender: 01712345678",
		"random": "hello",
	}

	for sender, body := range bodies {
		_, err := ParseSMS(sender, body)
		require.ErrorIs(t, err, entities.ErrSMSUnrecognized, sender)
	}
}
