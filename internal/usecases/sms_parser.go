package usecases

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sand/digiseba/backend/internal/entities"
)

// ParsedSMS holds the payment fields extracted from a "money received" SMS.
type ParsedSMS struct {
	Provider      entities.PaymentProvider
	TransactionID string
	Amount        decimal.Decimal
	SenderNumber  string
}

type smsTemplate struct {
	provider entities.PaymentProvider
	amount   *regexp.Regexp // group 1: amount
	sender   *regexp.Regexp // group 1: payer number
	txn      *regexp.Regexp // group 1: transaction id
}

const (
	amountPattern = `([0-9][0-9,]*(?:\.[0-9]+)?)`
	phonePattern  = `(\+?[0-9]{11,13})`
)

var smsTemplates = []smsTemplate{
	{
		// You have received Tk 1,000.00 from 01911115678. Fee Tk 0.00. Balance Tk 5,000.00. TrxID 9JK4L2M1NP at 14/10/2026 10:30
		provider: entities.ProviderBkash,
		amount:   regexp.MustCompile(`(?i)received\s+Tk\s*` + amountPattern + `\s+from`),
		sender:   regexp.MustCompile(`(?i)received\s+Tk\s*[0-9.,]+\s+from\s+` + phonePattern),
		txn:      regexp.MustCompile(`(?i)\bTrxID\s*:?\s*([A-Z0-9]+)`),
	},
	{
		// Money Received.\nAmount: Tk 500.00\nSender: 01712345678\nRef: N/A\nTxnID: 71A2B3C4\nBalance: Tk 1,500.00
		provider: entities.ProviderNagad,
		amount:   regexp.MustCompile(`(?i)Amount\s*:\s*Tk\s*` + amountPattern),
		sender:   regexp.MustCompile(`(?i)Sender\s*:\s*` + phonePattern),
		txn:      regexp.MustCompile(`(?i)\bTxnID\s*:\s*([A-Z0-9]+)`),
	},
	{
		// Tk500.00 received from A/C:01812345678 Fee:Tk0, Your A/C Balance: Tk1,500.00 TxnId:1234567890 Date:14-OCT-26
		provider: entities.ProviderRocket,
		amount:   regexp.MustCompile(`(?i)Tk\s*` + amountPattern + `\s+received\s+from`),
		sender:   regexp.MustCompile(`(?i)received\s+from\s+A/C\s*:?\s*` + phonePattern),
		txn:      regexp.MustCompile(`(?i)\bTxnId\s*:\s*([A-Z0-9]+)`),
	},
}

// ParseSMS extracts payment fields from an SMS. The sender id picks the
// template; unknown senders are tried against every template.
func ParseSMS(sender, body string) (*ParsedSMS, error) {
	if provider, ok := providerFromSender(sender); ok {
		for _, t := range smsTemplates {
			if t.provider == provider {
				return t.parse(body)
			}
		}
	}

	for _, t := range smsTemplates {
		if parsed, err := t.parse(body); err == nil {
			return parsed, nil
		}
	}
	return nil, entities.ErrSMSUnrecognized
}

func providerFromSender(sender string) (entities.PaymentProvider, bool) {
	s := strings.ToLower(sender)
	switch {
	case strings.Contains(s, "bkash"):
		return entities.ProviderBkash, true
	case strings.Contains(s, "nagad"):
		return entities.ProviderNagad, true
	case strings.Contains(s, "rocket"), strings.Contains(s, "16216"):
		return entities.ProviderRocket, true
	}
	return "", false
}

func (t smsTemplate) parse(body string) (*ParsedSMS, error) {
	amountMatch := t.amount.FindStringSubmatch(body)
	senderMatch := t.sender.FindStringSubmatch(body)
	txnMatch := t.txn.FindStringSubmatch(body)
	if amountMatch == nil || senderMatch == nil || txnMatch == nil {
		return nil, entities.ErrSMSUnrecognized
	}

	amount, err := decimal.NewFromString(strings.ReplaceAll(amountMatch[1], ",", ""))
	if err != nil || !amount.IsPositive() {
		return nil, entities.ErrSMSUnrecognized
	}

	return &ParsedSMS{
		Provider:      t.provider,
		TransactionID: entities.NormalizeTransactionID(txnMatch[1]),
		Amount:        amount,
		SenderNumber:  senderMatch[1],
	}, nil
}
