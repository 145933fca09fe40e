package entities

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.openly.dev/pointy"
)

// VerificationOutcome is what one SMS match attempt produced. The SMS fields
// are set whenever an SMS with the same transaction id was examined.
type VerificationOutcome struct {
	Status          VerificationStatus
	SMSAmount       *decimal.Decimal
	SMSCompany      *string
	SMSSenderNumber *string
}

// MatchSMS classifies a request against the SMS carrying its transaction id.
// claimedElsewhere is true when another (approved or earlier) request already
// holds the same transaction id.
func MatchSMS(req *MoneyRequest, sms *SMSRecord, claimedElsewhere bool) VerificationOutcome {
	if sms == nil {
		return VerificationOutcome{Status: VerificationNotFound}
	}

	amount := sms.Amount
	outcome := VerificationOutcome{
		SMSAmount:       &amount,
		SMSCompany:      pointy.String(string(sms.Provider)),
		SMSSenderNumber: pointy.String(sms.SenderNumber),
	}

	switch {
	case claimedElsewhere, sms.ConsumedBy != nil && *sms.ConsumedBy != req.ID:
		outcome.Status = VerificationDuplicate
	case ComputeMismatch(req.Amount, req.SenderNumber, outcome.SMSAmount, outcome.SMSSenderNumber).Any():
		outcome.Status = VerificationMismatch
	default:
		outcome.Status = VerificationVerified
	}
	return outcome
}

// MismatchField is one field whose declared value disagrees with the SMS.
type MismatchField struct {
	Field    string `json:"field"`
	Declared string `json:"declared"`
	Observed string `json:"observed"`
}

// Mismatch compares the declared request values with the matched SMS.
type Mismatch struct {
	AmountMatches bool            `json:"amountMatches"`
	SenderMatches bool            `json:"senderMatches"`
	Fields        []MismatchField `json:"fields"`
}

// Any reports whether at least one field differs.
func (m Mismatch) Any() bool {
	return len(m.Fields) > 0
}

// Summary renders the differing fields on one line.
func (m Mismatch) Summary() string {
	parts := make([]string, 0, len(m.Fields))
	for _, f := range m.Fields {
		parts = append(parts, fmt.Sprintf("%s: declared %s, SMS %s", f.Field, f.Declared, f.Observed))
	}
	return strings.Join(parts, "; ")
}

// ComputeMismatch lists only the fields that actually differ. A missing SMS
// value is not comparable and never reported.
func ComputeMismatch(amount decimal.Decimal, senderSuffix string, smsAmount *decimal.Decimal, smsSender *string) Mismatch {
	m := Mismatch{AmountMatches: true, SenderMatches: true, Fields: []MismatchField{}}

	if smsAmount != nil && !smsAmount.Equal(amount) {
		m.AmountMatches = false
		m.Fields = append(m.Fields, MismatchField{
			Field:    "amount",
			Declared: amount.StringFixed(2),
			Observed: smsAmount.StringFixed(2),
		})
	}

	if smsSender != nil && !SenderMatches(*smsSender, senderSuffix) {
		m.SenderMatches = false
		m.Fields = append(m.Fields, MismatchField{
			Field:    "senderNumber",
			Declared: senderSuffix,
			Observed: *smsSender,
		})
	}

	return m
}

// SenderMatches reports whether the full phone number printed in an SMS ends
// with the 4-digit suffix the user declared.
func SenderMatches(fullNumber, suffix string) bool {
	if suffix == "" {
		return false
	}
	var digits strings.Builder
	for _, r := range fullNumber {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	return strings.HasSuffix(digits.String(), suffix)
}

// Mismatch diffs the request against its recorded SMS fields.
func (r *MoneyRequest) Mismatch() Mismatch {
	return ComputeMismatch(r.Amount, r.SenderNumber, r.SMSAmount, r.SMSSenderNumber)
}

// BadgeKind is the verification badge rendered next to a request.
type BadgeKind string

const (
	BadgeNone      BadgeKind = "none"
	BadgeVerifying BadgeKind = "verifying"
	BadgeVerified  BadgeKind = "verified"
	BadgeMismatch  BadgeKind = "mismatch"
	BadgeNotFound  BadgeKind = "not_found"
	BadgeDuplicate BadgeKind = "duplicate"
)

// Badge is derived purely from status and verification status, together with
// the actions an admin may take on the request.
type Badge struct {
	Kind        BadgeKind `json:"kind"`
	Label       string    `json:"label"`
	Tooltip     string    `json:"tooltip,omitempty"`
	CanApprove  bool      `json:"canApprove"`
	CanReject   bool      `json:"canReject"`
	CanReverify bool      `json:"canReverify"`
}

// DeriveBadge computes the badge for a request.
func DeriveBadge(r *MoneyRequest) Badge {
	open := !r.Status.IsTerminal()
	b := Badge{
		Kind:        BadgeNone,
		CanApprove:  open,
		CanReject:   open,
		CanReverify: open && r.CanReverify() == nil,
	}

	switch r.Verification() {
	case "":
		if r.Status == RequestStatusVerifying {
			b.Kind = BadgeVerifying
			b.Label = "Verifying"
			b.Tooltip = fmt.Sprintf("attempt %d of %d", r.VerificationAttempts+1, MaxVerificationAttempts)
		}
	case VerificationVerified:
		b.Kind = BadgeVerified
		b.Label = "Verified"
		b.Tooltip = "amount and sender match the SMS record"
	case VerificationMismatch:
		b.Kind = BadgeMismatch
		b.Label = "Mismatch"
		b.Tooltip = r.Mismatch().Summary()
	case VerificationNotFound:
		b.Kind = BadgeNotFound
		b.Label = "Not Found"
		b.Tooltip = "transaction id not present in SMS records"
	case VerificationDuplicate:
		b.Kind = BadgeDuplicate
		b.Label = "Duplicate"
		b.Tooltip = "transaction id already used"
		b.CanApprove = false
	}

	return b
}
