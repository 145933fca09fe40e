package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/sand/digiseba/backend/internal/core/errors"
	"github.com/sand/digiseba/backend/internal/core/ports"
	"github.com/sand/digiseba/backend/internal/entities"
)

// RechargeService owns the money request lifecycle: submission, background
// verification and admin review.
type RechargeService struct {
	logger     *slog.Logger
	transactor ports.Transactor
	requests   ports.MoneyRequestRepository
	sms        ports.SMSRepository
	users      ports.UserRepository
	outbox     ports.OutboxRepository
	wallets    *WalletService
	settings   *SettingsService
	queue      ports.VerificationQueue
	cache      *RequestCache
	now        func() time.Time
}

func NewRechargeService(
	logger *slog.Logger,
	transactor ports.Transactor,
	requests ports.MoneyRequestRepository,
	sms ports.SMSRepository,
	users ports.UserRepository,
	outbox ports.OutboxRepository,
	wallets *WalletService,
	settings *SettingsService,
	queue ports.VerificationQueue,
) *RechargeService {
	return &RechargeService{
		logger:     logger,
		transactor: transactor,
		requests:   requests,
		sms:        sms,
		users:      users,
		outbox:     outbox,
		wallets:    wallets,
		settings:   settings,
		queue:      queue,
		cache:      NewRequestCache(),
		now:        time.Now,
	}
}

type SubmitRecharge struct {
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"paymentMethod"`
	SenderNumber  string          `json:"senderNumber"`
}

// Submit stores a Pending request and hands it to the verification queue.
func (s *RechargeService) Submit(ctx context.Context, userID int64, in SubmitRecharge) (*entities.MoneyRequest, error) {
	req, err := entities.NewMoneyRequest(userID, in.Amount, in.PaymentMethod, in.SenderNumber, in.TransactionID, s.now().UTC())
	if err != nil {
		return nil, apperrors.BadRequest(apperrors.WithError(err))
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	method, ok := settings.FindPaymentMethod(req.PaymentMethod)
	if !ok {
		return nil, apperrors.BadRequest(apperrors.WithError(entities.ErrPaymentMethodUnknown))
	}
	req.PaymentMethod = method.Name

	claimants, err := s.requests.FindActiveByTransactionID(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}
	if approvedElsewhere(req, claimants) {
		return nil, apperrors.Conflict(apperrors.WithError(entities.ErrDuplicateTransaction))
	}

	if err = s.requests.InsertMoneyRequest(ctx, req); err != nil {
		return nil, err
	}

	s.logger.Info("Money request submitted",
		"request_id", req.ID,
		"user_id", userID,
		"amount", req.Amount.String(),
		"transaction_id", req.TransactionID)

	if user, err := s.users.FindUserByID(ctx, userID); err == nil && user != nil {
		s.cache.Add(*req, user.Name)
	}

	if !s.queue.Enqueue(req.ID) {
		s.logger.Warn("Verification queue full, sweeper will retry", "request_id", req.ID)
	}

	return req, nil
}

func (s *RechargeService) ListForUser(ctx context.Context, userID int64) ([]entities.MoneyRequest, error) {
	return s.list(ctx, entities.MoneyRequestFilter{UserID: &userID})
}

func (s *RechargeService) ListForAdmin(ctx context.Context, tab entities.StatusTab) ([]entities.MoneyRequest, error) {
	return s.list(ctx, entities.MoneyRequestFilter{Statuses: tab.Statuses()})
}

func (s *RechargeService) list(ctx context.Context, filter entities.MoneyRequestFilter) ([]entities.MoneyRequest, error) {
	requests, err := s.requests.ListMoneyRequests(ctx, filter)
	if err != nil {
		return nil, err
	}
	if requests == nil {
		requests = []entities.MoneyRequest{}
	}
	return requests, nil
}

// Overview is the admin review board for one tab.
type Overview struct {
	Tab      entities.StatusTab         `json:"tab"`
	Items    []ReviewItem               `json:"items"`
	Counts   map[entities.StatusTab]int `json:"counts"`
	LoadedAt time.Time                  `json:"loadedAt"`
	Cached   bool                       `json:"cached"`
}

// Overview loads users and requests in parallel and joins them. With
// useCache set, a previously loaded board is served from the cache.
func (s *RechargeService) Overview(ctx context.Context, tab entities.StatusTab, useCache bool) (*Overview, error) {
	if useCache {
		if items, loadedAt, ok := s.cache.Snapshot(); ok {
			return buildOverview(tab, items, loadedAt, true), nil
		}
	}

	var (
		names    map[int64]string
		requests []entities.MoneyRequest
	)

	s.cache.BeginLoad()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		names, err = s.users.UserNames(gctx)
		if err != nil {
			return fmt.Errorf("failed to load users: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		requests, err = s.requests.ListMoneyRequests(gctx, entities.MoneyRequestFilter{})
		if err != nil {
			return fmt.Errorf("failed to load money requests: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.cache.CancelLoad()
		return nil, err
	}

	items := make([]ReviewItem, 0, len(requests))
	for _, req := range requests {
		items = append(items, newReviewItem(req, names[req.UserID]))
	}

	loadedAt := s.now().UTC()
	items = s.cache.Replace(items, loadedAt)

	return buildOverview(tab, items, loadedAt, false), nil
}

func buildOverview(tab entities.StatusTab, items []ReviewItem, loadedAt time.Time, cached bool) *Overview {
	o := &Overview{
		Tab:      tab,
		Items:    make([]ReviewItem, 0),
		Counts:   map[entities.StatusTab]int{entities.TabPending: 0, entities.TabApproved: 0, entities.TabRejected: 0},
		LoadedAt: loadedAt,
		Cached:   cached,
	}
	for _, item := range items {
		for t := range o.Counts {
			if t.Contains(item.Status) {
				o.Counts[t]++
			}
		}
		if tab.Contains(item.Status) {
			o.Items = append(o.Items, item)
		}
	}
	return o
}

// Approve approves a request and credits the wallet once. A Mismatch outcome
// needs confirmMismatch; a Duplicate outcome is always refused.
func (s *RechargeService) Approve(ctx context.Context, reviewerID int64, id string, confirmMismatch bool) (*entities.MoneyRequest, error) {
	var req *entities.MoneyRequest

	err := s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		if req, err = s.lock(ctx, id); err != nil {
			return err
		}

		if err = req.CanApprove(confirmMismatch); err != nil {
			if errors.Is(err, entities.ErrMismatchNotConfirmed) {
				return apperrors.Conflict(apperrors.WithError(err), apperrors.WithDetails(req.Mismatch()))
			}
			return requestException(err)
		}

		return s.approveLocked(ctx, req, reviewerID, confirmMismatch)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Money request approved",
		"request_id", req.ID,
		"reviewer_id", reviewerID,
		"amount", req.Amount.String(),
		"verification_status", req.Verification())
	s.cache.Apply(*req)

	return req, nil
}

// approveLocked approves req, which the caller has locked in the current
// transaction, and books the recharge.
func (s *RechargeService) approveLocked(ctx context.Context, req *entities.MoneyRequest, reviewerID int64, confirmMismatch bool) error {
	claimants, err := s.requests.FindActiveByTransactionID(ctx, req.TransactionID)
	if err != nil {
		return err
	}
	if approvedElsewhere(req, claimants) {
		return apperrors.Conflict(apperrors.WithError(entities.ErrDuplicateTransaction))
	}

	if err = req.Approve(&reviewerID, confirmMismatch, s.now().UTC()); err != nil {
		return requestException(err)
	}
	if err = s.requests.UpdateMoneyRequest(ctx, req); err != nil {
		return requestException(err)
	}
	if err = s.sms.MarkSMSConsumed(ctx, req.TransactionID, req.ID); err != nil {
		return requestException(err)
	}

	_, booked, err := s.wallets.Book(ctx, LedgerEntry{
		UserID:        req.UserID,
		Type:          entities.EntryRecharge,
		Amount:        req.Amount,
		ReferenceType: entities.ReferenceMoneyRequest,
		ReferenceID:   req.ID,
		Notes:         fmt.Sprintf("%s recharge %s", req.PaymentMethod, req.TransactionID),
	})
	if err != nil {
		return walletException(err)
	}
	if !booked {
		return apperrors.Conflict(apperrors.WithError(entities.ErrAlreadyProcessed))
	}

	return recordEvent(ctx, s.outbox, entities.EventMoneyRequestApproved, req.ID, req)
}

func (s *RechargeService) Reject(ctx context.Context, reviewerID int64, id, reason string) (*entities.MoneyRequest, error) {
	var req *entities.MoneyRequest

	err := s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		if req, err = s.lock(ctx, id); err != nil {
			return err
		}
		if err = req.Reject(&reviewerID, reason, s.now().UTC()); err != nil {
			return requestException(err)
		}
		if err = s.requests.UpdateMoneyRequest(ctx, req); err != nil {
			return err
		}
		return recordEvent(ctx, s.outbox, entities.EventMoneyRequestRejected, req.ID, req)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Money request rejected", "request_id", req.ID, "reviewer_id", reviewerID)
	s.cache.Apply(*req)

	return req, nil
}

// ReverifyResult reports one admin-triggered match attempt. NewStatus is set
// only when the attempt approved the request.
type ReverifyResult struct {
	RequestID          string                       `json:"requestId"`
	NewStatus          *entities.RequestStatus      `json:"newStatus,omitempty"`
	VerificationStatus *entities.VerificationStatus `json:"verificationStatus,omitempty"`
	SMSAmount          *decimal.Decimal             `json:"smsAmount,omitempty"`
	SMSCompany         *string                      `json:"smsCompany,omitempty"`
	SMSSenderNumber    *string                      `json:"smsSenderNumber,omitempty"`
	Message            string                       `json:"message"`
}

// Reverify runs another match attempt for a Mismatch or Not Found request.
// A Verified outcome approves the request and credits the wallet in the same
// transaction.
func (s *RechargeService) Reverify(ctx context.Context, reviewerID int64, id string) (*ReverifyResult, error) {
	var req *entities.MoneyRequest

	err := s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		if req, err = s.lock(ctx, id); err != nil {
			return err
		}
		if err = req.CanReverify(); err != nil {
			return requestException(err)
		}

		outcome, err := s.match(ctx, req)
		if err != nil {
			return err
		}
		if err = req.ApplyVerification(outcome, s.now().UTC()); err != nil {
			return requestException(err)
		}

		if outcome.Status == entities.VerificationVerified {
			return s.approveLocked(ctx, req, reviewerID, false)
		}
		return s.requests.UpdateMoneyRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Money request re-verified",
		"request_id", req.ID,
		"reviewer_id", reviewerID,
		"verification_status", req.Verification(),
		"status", req.Status,
		"attempts", req.VerificationAttempts)
	s.cache.Apply(*req)

	return newReverifyResult(req), nil
}

func newReverifyResult(req *entities.MoneyRequest) *ReverifyResult {
	res := &ReverifyResult{
		RequestID:          req.ID,
		VerificationStatus: req.VerificationStatus,
		SMSAmount:          req.SMSAmount,
		SMSCompany:         req.SMSCompany,
		SMSSenderNumber:    req.SMSSenderNumber,
	}

	if req.Status == entities.RequestStatusApproved {
		status := req.Status
		res.NewStatus = &status
		res.Message = "SMS verified, request approved"
		return res
	}

	switch req.Verification() {
	case entities.VerificationMismatch:
		res.Message = "SMS found but " + req.Mismatch().Summary()
	case entities.VerificationNotFound:
		res.Message = "transaction id still not present in SMS records"
	case entities.VerificationDuplicate:
		res.Message = "transaction id already used"
	default:
		res.Message = "re-check complete"
	}
	return res
}

// VerifyRequest is the background match attempt. Pending becomes Verifying in
// its own transaction so the board shows the attempt while matching runs,
// then the outcome is written. Only the first attempt counts toward the cap,
// later background re-checks of a Not Found request are free. Requests that
// are no longer awaiting a match are skipped.
func (s *RechargeService) VerifyRequest(ctx context.Context, id string) error {
	var (
		started bool
		moved   *entities.MoneyRequest
	)
	err := s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		req, err := s.lock(ctx, id)
		if err != nil {
			return err
		}
		if !req.AwaitingMatch() {
			return nil
		}
		started = true
		if req.Status != entities.RequestStatusPending {
			return nil
		}
		if err = req.StartVerification(s.now().UTC()); err != nil {
			return err
		}
		moved = req
		return s.requests.UpdateMoneyRequest(ctx, req)
	})
	if err != nil || !started {
		return err
	}
	if moved != nil {
		s.cache.Apply(*moved)
	}

	var req *entities.MoneyRequest
	err = s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		if req, err = s.lock(ctx, id); err != nil {
			return err
		}
		if !req.AwaitingMatch() {
			req = nil
			return nil
		}

		outcome, err := s.match(ctx, req)
		if err != nil {
			return err
		}
		apply := req.ApplyVerification
		if req.VerificationStatus != nil {
			apply = req.RefreshVerification
		}
		if err = apply(outcome, s.now().UTC()); err != nil {
			return err
		}
		return s.requests.UpdateMoneyRequest(ctx, req)
	})
	if err != nil || req == nil {
		return err
	}

	s.logger.Debug("Money request verified",
		"request_id", req.ID,
		"verification_status", req.Verification(),
		"attempts", req.VerificationAttempts)
	s.cache.Apply(*req)

	return nil
}

// RequeueAwaiting hands requests still waiting for an SMS back to the queue.
func (s *RechargeService) RequeueAwaiting(ctx context.Context, limit int) (int, error) {
	requests, err := s.requests.ListAwaitingVerification(ctx, limit)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, req := range requests {
		if !s.queue.Enqueue(req.ID) {
			break
		}
		queued++
	}
	return queued, nil
}

func (s *RechargeService) lock(ctx context.Context, id string) (*entities.MoneyRequest, error) {
	req, err := s.requests.LockMoneyRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, apperrors.NotFound(apperrors.WithMessage("money request not found"))
	}
	return req, nil
}

// requestException maps money request domain errors to client errors.
func requestException(err error) error {
	switch {
	case errors.Is(err, entities.ErrAlreadyProcessed),
		errors.Is(err, entities.ErrDuplicateTransaction),
		errors.Is(err, entities.ErrMismatchNotConfirmed),
		errors.Is(err, entities.ErrReverifyNotAllowed),
		errors.Is(err, entities.ErrAttemptsExhausted):
		return apperrors.Conflict(apperrors.WithError(err))
	}
	return err
}
