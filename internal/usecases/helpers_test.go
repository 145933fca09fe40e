package usecases

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sand/digiseba/backend/internal/auth"
	apperrors "github.com/sand/digiseba/backend/internal/core/errors"
	"github.com/sand/digiseba/backend/internal/entities"
	"github.com/sand/digiseba/backend/internal/usecases/memory"
)

type recordingQueue struct {
	mu   sync.Mutex
	ids  []string
	full bool
}

func (q *recordingQueue) Enqueue(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.ids = append(q.ids, id)
	return true
}

func (q *recordingQueue) drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := q.ids
	q.ids = nil
	return ids
}

// stepClock advances one second per reading so creation order is strict.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type testEnv struct {
	store    *memory.Store
	queue    *recordingQueue
	clock    *stepClock
	wallets  *WalletService
	settings *SettingsService
	users    *UserService
	recharge *RechargeService
	sms      *SMSService
	orders   *OrderService

	userID  int64
	adminID int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	queue := &recordingQueue{}
	clock := &stepClock{now: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)}

	tokens, err := auth.NewTokens("test-secret", time.Hour)
	require.NoError(t, err)

	env := &testEnv{store: store, queue: queue, clock: clock}
	env.wallets = NewWalletService(logger, store, store)
	env.settings = NewSettingsService(logger, store)
	env.users = NewUserService(logger, store, tokens)
	env.recharge = NewRechargeService(logger, store, store, store, store, store, env.wallets, env.settings, queue)
	env.recharge.now = clock.Now
	env.sms = NewSMSService(logger, store, store, queue)
	env.sms.now = clock.Now
	env.orders = NewOrderService(logger, store, store, store, env.wallets, env.settings)
	env.orders.now = clock.Now

	ctx := context.Background()
	_, err = env.settings.Update(ctx, &entities.Settings{
		PaymentMethods: []entities.PaymentMethod{
			{Name: "bKash Personal", Type: entities.ProviderBkash, Number: "01700000000"},
			{Name: "Nagad", Type: entities.ProviderNagad, Number: "01800000000"},
		},
		BiometricPrice:  decimal.NewFromInt(150),
		CallListPrice:   decimal.NewFromInt(300),
		EmailAddonPrice: decimal.NewFromInt(20),
	})
	require.NoError(t, err)

	user, err := env.users.Register(ctx, Registration{Name: "Rahim", Email: "rahim@example.com", Password: "password123"})
	require.NoError(t, err)
	env.userID = user.User.ID

	require.NoError(t, env.users.EnsureAdmin(ctx, "admin@example.com", "admin-password"))
	admin, err := store.FindUserByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	env.adminID = admin.ID

	return env
}

func (e *testEnv) submit(t *testing.T, txnID string, amount int64, suffix string) *entities.MoneyRequest {
	t.Helper()
	req, err := e.recharge.Submit(context.Background(), e.userID, SubmitRecharge{
		TransactionID: txnID,
		Amount:        decimal.NewFromInt(amount),
		PaymentMethod: "bKash Personal",
		SenderNumber:  suffix,
	})
	require.NoError(t, err)
	return req
}

func (e *testEnv) receiveBkash(t *testing.T, txnID, amount, from string) {
	t.Helper()
	_, _, err := e.sms.Ingest(context.Background(), IncomingSMS{
		Sender: "bKash",
		Body:   "You have received Tk " + amount + " from " + from + ". Fee Tk 0.00. Balance Tk 9,000.00. TrxID " + txnID + " at 14/10/2026 10:30",
	})
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	balance, err := e.wallets.Balance(context.Background(), e.userID)
	require.NoError(t, err)
	return balance
}

func (e *testEnv) find(t *testing.T, id string) *entities.MoneyRequest {
	t.Helper()
	req, err := e.store.FindMoneyRequest(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, req)
	return req
}

func requireCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, apperrors.As(err).Code, "error: %v", err)
}
