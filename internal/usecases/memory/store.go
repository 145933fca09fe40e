// Package memory is an in-process store implementing every repository port.
// It backs the memory storage driver and the usecase tests.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sand/digiseba/backend/internal/core/ports"
	"github.com/sand/digiseba/backend/internal/entities"
)

var (
	_ ports.Transactor             = (*Store)(nil)
	_ ports.MoneyRequestRepository = (*Store)(nil)
	_ ports.SMSRepository          = (*Store)(nil)
	_ ports.WalletRepository       = (*Store)(nil)
	_ ports.UserRepository         = (*Store)(nil)
	_ ports.SettingsRepository     = (*Store)(nil)
	_ ports.OrderRepository        = (*Store)(nil)
	_ ports.OutboxRepository       = (*Store)(nil)
)

type data struct {
	requests map[string]entities.MoneyRequest
	sms      map[string]entities.SMSRecord // keyed by transaction id
	ledger   []entities.WalletEntry
	users    map[int64]entities.User
	settings *entities.Settings
	orders   map[string]entities.Order
	outbox   map[string]entities.OutboxEvent
	userSeq  int64
	entrySeq int64
}

func (d *data) clone() *data {
	c := *d
	c.requests = maps.Clone(d.requests)
	c.sms = maps.Clone(d.sms)
	c.ledger = slices.Clone(d.ledger)
	c.users = maps.Clone(d.users)
	c.orders = maps.Clone(d.orders)
	c.outbox = maps.Clone(d.outbox)
	if d.settings != nil {
		s := cloneSettings(*d.settings)
		c.settings = &s
	}
	return &c
}

// Store serialises all access behind one mutex. A transaction holds the
// mutex for its whole duration and restores a snapshot when fn fails, so
// row locks are implied.
type Store struct {
	mu sync.Mutex
	d  *data
}

func NewStore() *Store {
	return &Store{d: &data{
		requests: make(map[string]entities.MoneyRequest),
		sms:      make(map[string]entities.SMSRecord),
		users:    make(map[int64]entities.User),
		orders:   make(map[string]entities.Order),
		outbox:   make(map[string]entities.OutboxEvent),
	}}
}

type txKey struct{}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// lock acquires the store mutex unless ctx already carries a transaction.
func (s *Store) lock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.d.clone()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.d = snapshot
		return err
	}
	return nil
}

func requireTx(ctx context.Context, op string) error {
	if !inTx(ctx) {
		return fmt.Errorf("%s must run inside a transaction", op)
	}
	return nil
}

// Money requests

func (s *Store) InsertMoneyRequest(ctx context.Context, req *entities.MoneyRequest) error {
	defer s.lock(ctx)()
	if _, ok := s.d.requests[req.ID]; ok {
		return fmt.Errorf("money request %s already exists", req.ID)
	}
	s.d.requests[req.ID] = cloneRequest(*req)
	return nil
}

func (s *Store) FindMoneyRequest(ctx context.Context, id string) (*entities.MoneyRequest, error) {
	defer s.lock(ctx)()
	req, ok := s.d.requests[id]
	if !ok {
		return nil, nil
	}
	req = cloneRequest(req)
	return &req, nil
}

func (s *Store) LockMoneyRequest(ctx context.Context, id string) (*entities.MoneyRequest, error) {
	if err := requireTx(ctx, "LockMoneyRequest"); err != nil {
		return nil, err
	}
	return s.FindMoneyRequest(ctx, id)
}

func (s *Store) UpdateMoneyRequest(ctx context.Context, req *entities.MoneyRequest) error {
	defer s.lock(ctx)()
	if _, ok := s.d.requests[req.ID]; !ok {
		return fmt.Errorf("money request %s not found", req.ID)
	}
	if req.Status == entities.RequestStatusApproved {
		for id, other := range s.d.requests {
			if id != req.ID && other.Status == entities.RequestStatusApproved && other.TransactionID == req.TransactionID {
				return entities.ErrDuplicateTransaction
			}
		}
	}
	s.d.requests[req.ID] = cloneRequest(*req)
	return nil
}

func (s *Store) ListMoneyRequests(ctx context.Context, filter entities.MoneyRequestFilter) ([]entities.MoneyRequest, error) {
	defer s.lock(ctx)()
	out := make([]entities.MoneyRequest, 0)
	for _, req := range s.d.requests {
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, req.Status) {
			continue
		}
		if filter.UserID != nil && req.UserID != *filter.UserID {
			continue
		}
		out = append(out, cloneRequest(req))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) FindActiveByTransactionID(ctx context.Context, transactionID string) ([]entities.MoneyRequest, error) {
	defer s.lock(ctx)()
	out := make([]entities.MoneyRequest, 0)
	for _, req := range s.d.requests {
		if req.TransactionID == transactionID && req.Status != entities.RequestStatusRejected {
			out = append(out, cloneRequest(req))
		}
	}
	sortOldestFirst(out)
	return out, nil
}

func (s *Store) ListAwaitingVerification(ctx context.Context, limit int) ([]entities.MoneyRequest, error) {
	defer s.lock(ctx)()
	out := make([]entities.MoneyRequest, 0)
	for _, req := range s.d.requests {
		if req.AwaitingMatch() {
			out = append(out, cloneRequest(req))
		}
	}
	sortOldestFirst(out)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].VerificationStatus == nil && out[j].VerificationStatus != nil
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortOldestFirst(reqs []entities.MoneyRequest) {
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].ID < reqs[j].ID
		}
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
}

// SMS

func (s *Store) InsertSMS(ctx context.Context, sms *entities.SMSRecord) (bool, error) {
	defer s.lock(ctx)()
	if _, ok := s.d.sms[sms.TransactionID]; ok {
		return false, nil
	}
	s.d.sms[sms.TransactionID] = cloneSMS(*sms)
	return true, nil
}

func (s *Store) FindSMSByTransactionID(ctx context.Context, transactionID string) (*entities.SMSRecord, error) {
	defer s.lock(ctx)()
	sms, ok := s.d.sms[transactionID]
	if !ok {
		return nil, nil
	}
	sms = cloneSMS(sms)
	return &sms, nil
}

func (s *Store) MarkSMSConsumed(ctx context.Context, transactionID, requestID string) error {
	defer s.lock(ctx)()
	sms, ok := s.d.sms[transactionID]
	if !ok {
		return nil
	}
	if sms.ConsumedBy != nil && *sms.ConsumedBy != requestID {
		return entities.ErrDuplicateTransaction
	}
	sms.ConsumedBy = &requestID
	s.d.sms[transactionID] = sms
	return nil
}

func (s *Store) ListSMS(ctx context.Context, limit int) ([]entities.SMSRecord, error) {
	defer s.lock(ctx)()
	out := make([]entities.SMSRecord, 0, len(s.d.sms))
	for _, sms := range s.d.sms {
		out = append(out, cloneSMS(sms))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Wallet ledger

func (s *Store) LockWallet(ctx context.Context, userID int64) error {
	if err := requireTx(ctx, "LockWallet"); err != nil {
		return err
	}
	if _, ok := s.d.users[userID]; !ok {
		return entities.ErrUserNotFound
	}
	return nil
}

func (s *Store) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	defer s.lock(ctx)()
	balance := decimal.Zero
	for _, e := range s.d.ledger {
		if e.UserID == userID {
			balance = balance.Add(e.Amount)
		}
	}
	return balance, nil
}

func (s *Store) InsertWalletEntry(ctx context.Context, entry *entities.WalletEntry) (bool, error) {
	defer s.lock(ctx)()
	for _, e := range s.d.ledger {
		if e.ReferenceType == entry.ReferenceType && e.ReferenceID == entry.ReferenceID {
			return false, nil
		}
	}
	s.d.entrySeq++
	entry.ID = s.d.entrySeq
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.d.ledger = append(s.d.ledger, *entry)
	return true, nil
}

func (s *Store) ListWalletEntries(ctx context.Context, userID int64, limit int) ([]entities.WalletEntry, error) {
	defer s.lock(ctx)()
	out := make([]entities.WalletEntry, 0)
	for i := len(s.d.ledger) - 1; i >= 0; i-- {
		if s.d.ledger[i].UserID != userID {
			continue
		}
		out = append(out, s.d.ledger[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Users

func (s *Store) InsertUser(ctx context.Context, user *entities.User) error {
	defer s.lock(ctx)()
	for _, u := range s.d.users {
		if strings.EqualFold(u.Email, user.Email) {
			return entities.ErrEmailTaken
		}
	}
	s.d.userSeq++
	user.ID = s.d.userSeq
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.d.users[user.ID] = *user
	return nil
}

func (s *Store) FindUserByID(ctx context.Context, id int64) (*entities.User, error) {
	defer s.lock(ctx)()
	u, ok := s.d.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*entities.User, error) {
	defer s.lock(ctx)()
	for _, u := range s.d.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, nil
}

func (s *Store) ListUsers(ctx context.Context, offset, limit int) ([]entities.User, int, error) {
	defer s.lock(ctx)()
	all := slices.Collect(maps.Values(s.d.users))
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	total := len(all)
	if offset >= total {
		return []entities.User{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (s *Store) UserNames(ctx context.Context) (map[int64]string, error) {
	defer s.lock(ctx)()
	names := make(map[int64]string, len(s.d.users))
	for id, u := range s.d.users {
		names[id] = u.Name
	}
	return names, nil
}

// Settings

func (s *Store) GetSettings(ctx context.Context) (*entities.Settings, error) {
	defer s.lock(ctx)()
	if s.d.settings == nil {
		return nil, nil
	}
	settings := cloneSettings(*s.d.settings)
	return &settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings *entities.Settings) error {
	defer s.lock(ctx)()
	c := cloneSettings(*settings)
	s.d.settings = &c
	return nil
}

// Orders

func (s *Store) InsertOrder(ctx context.Context, order *entities.Order) error {
	defer s.lock(ctx)()
	if _, ok := s.d.orders[order.ID]; ok {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	s.d.orders[order.ID] = *order
	return nil
}

func (s *Store) FindOrder(ctx context.Context, id string) (*entities.Order, error) {
	defer s.lock(ctx)()
	o, ok := s.d.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (s *Store) LockOrder(ctx context.Context, id string) (*entities.Order, error) {
	if err := requireTx(ctx, "LockOrder"); err != nil {
		return nil, err
	}
	return s.FindOrder(ctx, id)
}

func (s *Store) UpdateOrder(ctx context.Context, order *entities.Order) error {
	defer s.lock(ctx)()
	if _, ok := s.d.orders[order.ID]; !ok {
		return fmt.Errorf("order %s not found", order.ID)
	}
	s.d.orders[order.ID] = *order
	return nil
}

func (s *Store) ListOrders(ctx context.Context, filter entities.OrderFilter) ([]entities.Order, error) {
	defer s.lock(ctx)()
	out := make([]entities.Order, 0)
	for _, o := range s.d.orders {
		if filter.UserID != nil && o.UserID != *filter.UserID {
			continue
		}
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Outbox

func (s *Store) InsertOutbox(ctx context.Context, event *entities.OutboxEvent) error {
	defer s.lock(ctx)()
	s.d.outbox[event.ID] = *event
	return nil
}

func (s *Store) FetchPending(ctx context.Context, limit int) ([]*entities.OutboxEvent, error) {
	defer s.lock(ctx)()
	pending := make([]entities.OutboxEvent, 0)
	for _, e := range s.d.outbox {
		if e.Status == entities.OutboxStatusPending {
			pending = append(pending, e)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}

	out := make([]*entities.OutboxEvent, 0, len(pending))
	for _, e := range pending {
		e.Status = entities.OutboxStatusProcessing
		s.d.outbox[e.ID] = e
		out = append(out, &e)
	}
	return out, nil
}

func (s *Store) MarkProcessed(ctx context.Context, id string) error {
	defer s.lock(ctx)()
	e, ok := s.d.outbox[id]
	if !ok {
		return fmt.Errorf("outbox event %s not found", id)
	}
	now := time.Now().UTC()
	e.Status = entities.OutboxStatusProcessed
	e.ProcessedAt = &now
	s.d.outbox[id] = e
	return nil
}

func (s *Store) MarkForRetry(ctx context.Context, id string) error {
	defer s.lock(ctx)()
	e, ok := s.d.outbox[id]
	if !ok {
		return fmt.Errorf("outbox event %s not found", id)
	}
	e.Attempts++
	e.Status = entities.OutboxStatusPending
	if e.Attempts >= entities.MaxOutboxAttempts {
		e.Status = entities.OutboxStatusFailed
	}
	s.d.outbox[id] = e
	return nil
}

// OutboxEvents returns every stored event, oldest first.
func (s *Store) OutboxEvents() []entities.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Collect(maps.Values(s.d.outbox))
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func cloneRequest(r entities.MoneyRequest) entities.MoneyRequest {
	if r.VerificationStatus != nil {
		v := *r.VerificationStatus
		r.VerificationStatus = &v
	}
	if r.SMSAmount != nil {
		a := *r.SMSAmount
		r.SMSAmount = &a
	}
	if r.SMSCompany != nil {
		c := *r.SMSCompany
		r.SMSCompany = &c
	}
	if r.SMSSenderNumber != nil {
		n := *r.SMSSenderNumber
		r.SMSSenderNumber = &n
	}
	if r.RejectionReason != nil {
		reason := *r.RejectionReason
		r.RejectionReason = &reason
	}
	if r.ReviewedBy != nil {
		by := *r.ReviewedBy
		r.ReviewedBy = &by
	}
	return r
}

func cloneSMS(s entities.SMSRecord) entities.SMSRecord {
	if s.ConsumedBy != nil {
		c := *s.ConsumedBy
		s.ConsumedBy = &c
	}
	return s
}

func cloneSettings(s entities.Settings) entities.Settings {
	s.PaymentMethods = slices.Clone(s.PaymentMethods)
	return s
}
