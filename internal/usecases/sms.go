package usecases

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/sand/digiseba/backend/internal/core/errors"
	"github.com/sand/digiseba/backend/internal/core/ports"
	"github.com/sand/digiseba/backend/internal/entities"
)

// SMSService stores forwarded payment SMS and wakes up requests waiting for them.
type SMSService struct {
	logger   *slog.Logger
	sms      ports.SMSRepository
	requests ports.MoneyRequestRepository
	queue    ports.VerificationQueue
	now      func() time.Time
}

func NewSMSService(logger *slog.Logger, sms ports.SMSRepository, requests ports.MoneyRequestRepository, queue ports.VerificationQueue) *SMSService {
	return &SMSService{logger: logger, sms: sms, requests: requests, queue: queue, now: time.Now}
}

type IncomingSMS struct {
	Sender     string    `json:"sender"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Ingest parses and stores an SMS. It reports false when an SMS with the same
// transaction id was already stored, returning the stored record.
func (s *SMSService) Ingest(ctx context.Context, in IncomingSMS) (*entities.SMSRecord, bool, error) {
	parsed, err := ParseSMS(in.Sender, in.Body)
	if err != nil {
		s.logger.Warn("Unrecognised SMS", "sender", in.Sender)
		return nil, false, apperrors.Unprocessable(apperrors.WithError(err))
	}

	now := s.now().UTC()
	receivedAt := in.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = now
	}

	record := &entities.SMSRecord{
		ID:            uuid.NewString(),
		Provider:      parsed.Provider,
		Sender:        strings.TrimSpace(in.Sender),
		Body:          in.Body,
		TransactionID: parsed.TransactionID,
		Amount:        parsed.Amount,
		SenderNumber:  parsed.SenderNumber,
		ReceivedAt:    receivedAt,
		CreatedAt:     now,
	}

	inserted, err := s.sms.InsertSMS(ctx, record)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		existing, err := s.sms.FindSMSByTransactionID(ctx, record.TransactionID)
		if err != nil {
			return nil, false, err
		}
		s.logger.Info("Duplicate SMS ignored", "transaction_id", record.TransactionID)
		return existing, false, nil
	}

	s.logger.Info("SMS stored",
		"provider", record.Provider,
		"transaction_id", record.TransactionID,
		"amount", record.Amount.String())

	s.wake(ctx, record.TransactionID)
	return record, true, nil
}

// wake re-queues requests that were waiting for this transaction id.
func (s *SMSService) wake(ctx context.Context, transactionID string) {
	claimants, err := s.requests.FindActiveByTransactionID(ctx, transactionID)
	if err != nil {
		s.logger.Error("Failed to look up requests for SMS", "transaction_id", transactionID, "error", err)
		return
	}

	for _, req := range claimants {
		if !req.AwaitingMatch() {
			continue
		}
		if !s.queue.Enqueue(req.ID) {
			s.logger.Warn("Verification queue full, sweeper will retry", "request_id", req.ID)
		}
	}
}

func (s *SMSService) List(ctx context.Context, limit int) ([]entities.SMSRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	records, err := s.sms.ListSMS(ctx, limit)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []entities.SMSRecord{}
	}
	return records, nil
}
