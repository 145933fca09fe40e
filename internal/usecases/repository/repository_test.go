package repository_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/sand/digiseba/backend/internal/core/errors"
	"github.com/sand/digiseba/backend/internal/entities"
	"github.com/sand/digiseba/backend/internal/usecases"
	"github.com/sand/digiseba/backend/internal/usecases/repository"
	"github.com/sand/digiseba/backend/pkg/database"
)

type nopQueue struct{}

func (nopQueue) Enqueue(string) bool { return true }

type pgEnv struct {
	pg       *database.Postgres
	requests *repository.MoneyRequestsRepository
	sms      *repository.SMSRepository
	wallets  *repository.WalletsRepository
	users    *repository.UsersRepository
	recharge *usecases.RechargeService

	userID  int64
	adminID int64
}

// newPgEnv connects to DATABASE_URL, applies the migrations and empties every
// table. Tests are skipped when no database is configured.
func newPgEnv(t *testing.T) *pgEnv {
	t.Helper()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL is not set")
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, file, _, _ := runtime.Caller(0)
	migrations := filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")
	require.NoError(t, database.RunMigrations(logger, databaseURL, migrations))

	pg, err := database.New(ctx, databaseURL, database.MaxPoolSize(16))
	require.NoError(t, err)
	t.Cleanup(pg.Close)

	_, err = pg.Pool.Exec(ctx, `TRUNCATE outbox, orders, wallet_transactions, sms_records, money_requests, settings, users
		RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	env := &pgEnv{
		pg:       pg,
		requests: repository.NewMoneyRequestsRepository(logger, pg),
		sms:      repository.NewSMSRepository(logger, pg),
		wallets:  repository.NewWalletsRepository(logger, pg),
		users:    repository.NewUsersRepository(logger, pg),
	}
	settings := usecases.NewSettingsService(logger, repository.NewSettingsRepository(logger, pg))
	wallets := usecases.NewWalletService(logger, env.wallets, pg.Transactor)
	env.recharge = usecases.NewRechargeService(logger, pg.Transactor, env.requests, env.sms, env.users,
		repository.NewOutboxRepository(logger, pg), wallets, settings, nopQueue{})

	env.userID = env.insertUser(t, "rahim@example.com", entities.RoleUser)
	env.adminID = env.insertUser(t, "admin@example.com", entities.RoleAdmin)

	return env
}

func (e *pgEnv) insertUser(t *testing.T, email string, role entities.Role) int64 {
	t.Helper()
	user := &entities.User{Name: email, Email: email, Role: role, PasswordHash: "hash"}
	require.NoError(t, e.users.InsertUser(context.Background(), user))
	return user.ID
}

func (e *pgEnv) insertRequest(t *testing.T, txnID string, amount int64, suffix string) *entities.MoneyRequest {
	t.Helper()
	req, err := entities.NewMoneyRequest(e.userID, decimal.NewFromInt(amount), "bKash Personal", suffix, txnID,
		time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, e.requests.InsertMoneyRequest(context.Background(), req))
	return req
}

func (e *pgEnv) insertSMS(t *testing.T, txnID string, amount int64, from string) {
	t.Helper()
	now := time.Now().UTC()
	inserted, err := e.sms.InsertSMS(context.Background(), &entities.SMSRecord{
		ID:            uuid.NewString(),
		Provider:      entities.ProviderBkash,
		Sender:        "bKash",
		Body:          "You have received Tk " + decimal.NewFromInt(amount).StringFixed(2) + " from " + from,
		TransactionID: txnID,
		Amount:        decimal.NewFromInt(amount),
		SenderNumber:  from,
		ReceivedAt:    now,
		CreatedAt:     now,
	})
	require.NoError(t, err)
	require.True(t, inserted)
}

func (e *pgEnv) ledgerCount(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, e.pg.Pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM wallet_transactions").Scan(&n))
	return n
}

func TestConcurrentApprovalsCreditOnce(t *testing.T) {
	env := newPgEnv(t)
	ctx := context.Background()

	req := env.insertRequest(t, "TXN001", 1000, "5678")
	env.insertSMS(t, "TXN001", 1000, "01711115678")
	require.NoError(t, env.recharge.VerifyRequest(ctx, req.ID))

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.recharge.Approve(ctx, env.adminID, req.ID, false)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			if apperrors.As(err).Code == http.StatusConflict {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, conflicts)

	balance, err := env.wallets.Balance(ctx, env.userID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1000).Equal(balance), "balance %s", balance)
	assert.Equal(t, 1, env.ledgerCount(t))

	stored, err := env.requests.FindMoneyRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.RequestStatusApproved, stored.Status)
	assert.Equal(t, entities.VerificationVerified, stored.Verification())
}

func TestSecondApprovalOfTransactionRefused(t *testing.T) {
	env := newPgEnv(t)
	ctx := context.Background()

	first := env.insertRequest(t, "TXNDUP", 500, "1234")
	second := env.insertRequest(t, "TXNDUP", 500, "1234")

	_, err := env.recharge.Approve(ctx, env.adminID, first.ID, false)
	require.NoError(t, err)

	_, err = env.recharge.Approve(ctx, env.adminID, second.ID, false)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, apperrors.As(err).Code)
	assert.ErrorIs(t, err, entities.ErrDuplicateTransaction)

	stored, err := env.requests.FindMoneyRequest(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.RequestStatusPending, stored.Status)
	assert.Equal(t, 1, env.ledgerCount(t))
}

func TestApprovedTransactionIndexMapsToDuplicate(t *testing.T) {
	env := newPgEnv(t)
	ctx := context.Background()

	first := env.insertRequest(t, "TXNIDX", 200, "1234")
	second := env.insertRequest(t, "TXNIDX", 200, "1234")
	now := time.Now().UTC()

	require.NoError(t, first.Approve(&env.adminID, false, now))
	require.NoError(t, env.requests.UpdateMoneyRequest(ctx, first))

	require.NoError(t, second.Approve(&env.adminID, false, now))
	require.ErrorIs(t, env.requests.UpdateMoneyRequest(ctx, second), entities.ErrDuplicateTransaction)

	stored, err := env.requests.FindMoneyRequest(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.RequestStatusPending, stored.Status)
}

func TestLockMoneyRequestBlocksSecondLocker(t *testing.T) {
	env := newPgEnv(t)
	ctx := context.Background()

	req := env.insertRequest(t, "TXNLOCK", 100, "1234")

	var (
		acquired = make(chan *entities.MoneyRequest, 1)
		started  = make(chan struct{})
	)

	err := env.pg.Transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		locked, err := env.requests.LockMoneyRequest(ctx, req.ID)
		if err != nil {
			return err
		}

		go func() {
			close(started)
			_ = env.pg.Transactor.WithinTransaction(context.Background(), func(ctx context.Context) error {
				other, err := env.requests.LockMoneyRequest(ctx, req.ID)
				if err != nil {
					return err
				}
				acquired <- other
				return nil
			})
		}()
		<-started

		assert.Never(t, func() bool { return len(acquired) > 0 }, 300*time.Millisecond, 20*time.Millisecond)

		if err = locked.Reject(&env.adminID, "locked", time.Now().UTC()); err != nil {
			return err
		}
		return env.requests.UpdateMoneyRequest(ctx, locked)
	})
	require.NoError(t, err)

	select {
	case other := <-acquired:
		require.NotNil(t, other)
		assert.Equal(t, entities.RequestStatusRejected, other.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("second locker never acquired the row")
	}
}

func TestInsertWalletEntryOncePerReference(t *testing.T) {
	env := newPgEnv(t)
	ctx := context.Background()

	entry := func() *entities.WalletEntry {
		return &entities.WalletEntry{
			UserID:        env.userID,
			Type:          entities.EntryRecharge,
			Amount:        decimal.NewFromInt(300),
			BalanceAfter:  decimal.NewFromInt(300),
			ReferenceType: entities.ReferenceMoneyRequest,
			ReferenceID:   uuid.NewString(),
		}
	}

	first := entry()
	booked, err := env.wallets.InsertWalletEntry(ctx, first)
	require.NoError(t, err)
	require.True(t, booked)
	assert.NotZero(t, first.ID)

	again := entry()
	again.ReferenceID = first.ReferenceID
	booked, err = env.wallets.InsertWalletEntry(ctx, again)
	require.NoError(t, err)
	assert.False(t, booked)

	balance, err := env.wallets.Balance(ctx, env.userID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(300).Equal(balance))

	require.ErrorIs(t, env.wallets.LockWallet(ctx, 9999), entities.ErrUserNotFound)
}

func TestMarkSMSConsumedDetectsDuplicate(t *testing.T) {
	env := newPgEnv(t)
	ctx := context.Background()

	a := env.insertRequest(t, "TXNSMS", 100, "1234")
	b := env.insertRequest(t, "TXNSMS", 100, "1234")
	env.insertSMS(t, "TXNSMS", 100, "01711111234")

	require.NoError(t, env.sms.MarkSMSConsumed(ctx, "TXNSMS", a.ID))
	require.NoError(t, env.sms.MarkSMSConsumed(ctx, "TXNSMS", a.ID))
	require.ErrorIs(t, env.sms.MarkSMSConsumed(ctx, "TXNSMS", b.ID), entities.ErrDuplicateTransaction)
	require.NoError(t, env.sms.MarkSMSConsumed(ctx, "TXNNONE", b.ID))

	sms, err := env.sms.FindSMSByTransactionID(ctx, "TXNSMS")
	require.NoError(t, err)
	require.NotNil(t, sms.ConsumedBy)
	assert.Equal(t, a.ID, *sms.ConsumedBy)

	inserted, err := env.sms.InsertSMS(ctx, &entities.SMSRecord{
		ID:            uuid.NewString(),
		Provider:      entities.ProviderBkash,
		Sender:        "bKash",
		Body:          "repeat",
		TransactionID: "TXNSMS",
		Amount:        decimal.NewFromInt(100),
		SenderNumber:  "01711111234",
		ReceivedAt:    time.Now().UTC(),
		CreatedAt:     time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestListAwaitingVerificationUnmatchedFirst(t *testing.T) {
	env := newPgEnv(t)
	ctx := context.Background()

	notFound := env.insertRequest(t, "TXNA01", 100, "1234")
	require.NoError(t, env.recharge.VerifyRequest(ctx, notFound.ID))
	fresh := env.insertRequest(t, "TXNA02", 100, "1234")
	rejected := env.insertRequest(t, "TXNA03", 100, "1234")
	_, err := env.recharge.Reject(ctx, env.adminID, rejected.ID, "")
	require.NoError(t, err)

	awaiting, err := env.requests.ListAwaitingVerification(ctx, 10)
	require.NoError(t, err)
	require.Len(t, awaiting, 2)
	assert.Equal(t, fresh.ID, awaiting[0].ID)
	assert.Equal(t, notFound.ID, awaiting[1].ID)

	awaiting, err = env.requests.ListAwaitingVerification(ctx, 1)
	require.NoError(t, err)
	require.Len(t, awaiting, 1)
	assert.Equal(t, fresh.ID, awaiting[0].ID)
}
