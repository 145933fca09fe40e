package entities

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequestStatus is the lifecycle status of a money (recharge) request.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "Pending"
	RequestStatusVerifying RequestStatus = "Verifying"
	RequestStatusApproved  RequestStatus = "Approved"
	RequestStatusRejected  RequestStatus = "Rejected"
)

// IsTerminal reports whether no further transition is accepted.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// VerificationStatus is the outcome of matching a request against the SMS inbox.
type VerificationStatus string

const (
	VerificationVerified  VerificationStatus = "Verified"
	VerificationMismatch  VerificationStatus = "Mismatch"
	VerificationNotFound  VerificationStatus = "Not Found"
	VerificationDuplicate VerificationStatus = "Duplicate"
)

// MaxVerificationAttempts caps the number of SMS match attempts per request.
const MaxVerificationAttempts = 5

var (
	ErrTransactionIDRequired  = errors.New("transaction id is required")
	ErrTransactionIDInvalid   = errors.New("transaction id must be 4 to 32 letters or digits")
	ErrAmountMustBePositive   = errors.New("amount must be greater than zero")
	ErrPaymentMethodRequired  = errors.New("payment method is required")
	ErrSenderNumberInvalid    = errors.New("sender number must be exactly 4 digits")
	ErrAlreadyProcessed       = errors.New("request has already been processed")
	ErrDuplicateTransaction   = errors.New("transaction id already used")
	ErrMismatchNotConfirmed   = errors.New("verification mismatch must be confirmed before approval")
	ErrReverifyNotAllowed     = errors.New("re-verification is only available for mismatched or not found requests")
	ErrAttemptsExhausted      = errors.New("verification attempts exhausted")
	ErrVerificationInProgress = errors.New("verification has not produced an outcome yet")
)

// MoneyRequest is a user's claim of having sent money through a mobile
// financial service, awaiting verification and admin review.
type MoneyRequest struct {
	ID                   string              `json:"requestId" db:"id"`
	UserID               int64               `json:"userId" db:"user_id"`
	Amount               decimal.Decimal     `json:"amount" db:"amount"`
	PaymentMethod        string              `json:"paymentMethod" db:"payment_method"`
	SenderNumber         string              `json:"senderNumber" db:"sender_number"`
	TransactionID        string              `json:"transactionId" db:"transaction_id"`
	Status               RequestStatus       `json:"status" db:"status"`
	VerificationStatus   *VerificationStatus `json:"verificationStatus" db:"verification_status"`
	VerificationAttempts int                 `json:"verificationAttempts" db:"verification_attempts"`
	SMSAmount            *decimal.Decimal    `json:"smsAmount,omitempty" db:"sms_amount"`
	SMSCompany           *string             `json:"smsCompany,omitempty" db:"sms_company"`
	SMSSenderNumber      *string             `json:"smsSenderNumber,omitempty" db:"sms_sender_number"`
	RejectionReason      *string             `json:"rejectionReason,omitempty" db:"rejection_reason"`
	ReviewedBy           *int64              `json:"reviewedBy,omitempty" db:"reviewed_by"`
	CreatedAt            time.Time           `json:"date" db:"created_at"`
	UpdatedAt            time.Time           `json:"updatedAt" db:"updated_at"`
}

// NewMoneyRequest validates the submitted fields and builds a Pending request.
// The payment method is checked against the configured list by the caller.
func NewMoneyRequest(userID int64, amount decimal.Decimal, paymentMethod, senderNumber, transactionID string, now time.Time) (*MoneyRequest, error) {
	transactionID = NormalizeTransactionID(transactionID)
	senderNumber = strings.TrimSpace(senderNumber)
	paymentMethod = strings.TrimSpace(paymentMethod)

	if transactionID == "" {
		return nil, ErrTransactionIDRequired
	}
	if !validTransactionID(transactionID) {
		return nil, ErrTransactionIDInvalid
	}
	if !amount.IsPositive() {
		return nil, ErrAmountMustBePositive
	}
	if paymentMethod == "" {
		return nil, ErrPaymentMethodRequired
	}
	if !IsSenderSuffix(senderNumber) {
		return nil, ErrSenderNumberInvalid
	}

	return &MoneyRequest{
		ID:            uuid.NewString(),
		UserID:        userID,
		Amount:        amount,
		PaymentMethod: paymentMethod,
		SenderNumber:  senderNumber,
		TransactionID: transactionID,
		Status:        RequestStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// NormalizeTransactionID trims and upper-cases a transaction id so user input
// and SMS text compare equal.
func NormalizeTransactionID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func validTransactionID(id string) bool {
	if len(id) < 4 || len(id) > 32 {
		return false
	}
	for _, r := range id {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// IsSenderSuffix reports whether s is exactly four ASCII digits.
func IsSenderSuffix(s string) bool {
	if len(s) != 4 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Verification returns the verification status or the empty string.
func (r *MoneyRequest) Verification() VerificationStatus {
	if r.VerificationStatus == nil {
		return ""
	}
	return *r.VerificationStatus
}

// StartVerification moves a Pending request to Verifying.
func (r *MoneyRequest) StartVerification(now time.Time) error {
	if r.Status.IsTerminal() {
		return ErrAlreadyProcessed
	}
	if r.Status == RequestStatusPending {
		r.Status = RequestStatusVerifying
		r.UpdatedAt = now
	}
	return nil
}

// ApplyVerification records the outcome of one counted match attempt: the
// first background attempt or an admin re-verify. Status is left untouched
// apart from Pending becoming Verifying.
func (r *MoneyRequest) ApplyVerification(outcome VerificationOutcome, now time.Time) error {
	if r.Status.IsTerminal() {
		return ErrAlreadyProcessed
	}
	if r.VerificationAttempts >= MaxVerificationAttempts {
		return ErrAttemptsExhausted
	}
	if err := r.RefreshVerification(outcome, now); err != nil {
		return err
	}
	r.VerificationAttempts++
	return nil
}

// RefreshVerification records a background re-check of a request that
// already has an outcome. It does not count toward the attempt cap.
func (r *MoneyRequest) RefreshVerification(outcome VerificationOutcome, now time.Time) error {
	if err := r.StartVerification(now); err != nil {
		return err
	}

	status := outcome.Status
	r.VerificationStatus = &status
	if outcome.SMSAmount != nil || outcome.SMSCompany != nil || outcome.SMSSenderNumber != nil {
		r.SMSAmount = outcome.SMSAmount
		r.SMSCompany = outcome.SMSCompany
		r.SMSSenderNumber = outcome.SMSSenderNumber
	}
	r.UpdatedAt = now
	return nil
}

// CanApprove checks the approval guards without mutating the request.
func (r *MoneyRequest) CanApprove(confirmMismatch bool) error {
	if r.Status.IsTerminal() {
		return ErrAlreadyProcessed
	}
	switch r.Verification() {
	case VerificationDuplicate:
		return ErrDuplicateTransaction
	case VerificationMismatch:
		if !confirmMismatch {
			return ErrMismatchNotConfirmed
		}
	}
	return nil
}

// Approve marks the request Approved. The wallet credit is the caller's job
// and must happen in the same transaction.
func (r *MoneyRequest) Approve(reviewer *int64, confirmMismatch bool, now time.Time) error {
	if err := r.CanApprove(confirmMismatch); err != nil {
		return err
	}
	r.Status = RequestStatusApproved
	r.ReviewedBy = reviewer
	r.UpdatedAt = now
	return nil
}

// Reject marks the request Rejected with an optional reason.
func (r *MoneyRequest) Reject(reviewer *int64, reason string, now time.Time) error {
	if r.Status.IsTerminal() {
		return ErrAlreadyProcessed
	}
	r.Status = RequestStatusRejected
	r.ReviewedBy = reviewer
	if reason = strings.TrimSpace(reason); reason != "" {
		r.RejectionReason = &reason
	}
	r.UpdatedAt = now
	return nil
}

// CanReverify reports whether an admin may trigger another match attempt.
func (r *MoneyRequest) CanReverify() error {
	if r.Status.IsTerminal() {
		return ErrAlreadyProcessed
	}
	switch r.Verification() {
	case VerificationMismatch, VerificationNotFound:
	default:
		return ErrReverifyNotAllowed
	}
	if r.VerificationAttempts >= MaxVerificationAttempts {
		return ErrAttemptsExhausted
	}
	return nil
}

// AwaitingMatch reports whether background verification should still look at
// this request: no outcome yet, or no SMS found so far. The attempt cap does
// not apply, a late SMS must still be matched.
func (r *MoneyRequest) AwaitingMatch() bool {
	if r.Status.IsTerminal() {
		return false
	}
	v := r.Verification()
	return v == "" || v == VerificationNotFound
}

// StatusTab is the admin list filter. TabPending covers Pending and Verifying.
type StatusTab string

const (
	TabPending  StatusTab = "Pending"
	TabApproved StatusTab = "Approved"
	TabRejected StatusTab = "Rejected"
)

// ParseStatusTab accepts the tab names case-insensitively. Empty means Pending.
func ParseStatusTab(s string) (StatusTab, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pending":
		return TabPending, true
	case "approved":
		return TabApproved, true
	case "rejected":
		return TabRejected, true
	}
	return "", false
}

// Statuses lists the request statuses shown under the tab.
func (t StatusTab) Statuses() []RequestStatus {
	switch t {
	case TabApproved:
		return []RequestStatus{RequestStatusApproved}
	case TabRejected:
		return []RequestStatus{RequestStatusRejected}
	default:
		return []RequestStatus{RequestStatusPending, RequestStatusVerifying}
	}
}

// Contains reports whether a request with the given status belongs to the tab.
func (t StatusTab) Contains(s RequestStatus) bool {
	for _, st := range t.Statuses() {
		if st == s {
			return true
		}
	}
	return false
}

// MoneyRequestFilter narrows money request listings.
type MoneyRequestFilter struct {
	Statuses []RequestStatus
	UserID   *int64
}
