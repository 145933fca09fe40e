package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sand/digiseba/backend/internal/entities"
)

func TestWithinTransactionRollsBack(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	user := &entities.User{Name: "Rahim", Email: "rahim@example.com", Role: entities.RoleUser}
	require.NoError(t, store.InsertUser(ctx, user))

	boom := errors.New("boom")
	err := store.WithinTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, store.LockWallet(ctx, user.ID))
		booked, err := store.InsertWalletEntry(ctx, &entities.WalletEntry{
			UserID:        user.ID,
			Type:          entities.EntryRecharge,
			Amount:        decimal.NewFromInt(500),
			ReferenceType: entities.ReferenceMoneyRequest,
			ReferenceID:   "req-1",
		})
		require.NoError(t, err)
		require.True(t, booked)
		return boom
	})
	require.ErrorIs(t, err, boom)

	balance, err := store.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestNestedTransactionJoinsOuter(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.WithinTransaction(ctx, func(ctx context.Context) error {
		return store.WithinTransaction(ctx, func(ctx context.Context) error {
			return store.InsertOrder(ctx, &entities.Order{ID: "o-1", Status: entities.OrderStatusPending})
		})
	})
	require.NoError(t, err)

	order, err := store.FindOrder(ctx, "o-1")
	require.NoError(t, err)
	require.NotNil(t, order)
}

func TestLocksRequireTransaction(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_, err := store.LockMoneyRequest(ctx, "x")
	require.Error(t, err)
	require.Error(t, store.LockWallet(ctx, 1))

	err = store.WithinTransaction(ctx, func(ctx context.Context) error {
		return store.LockWallet(ctx, 42)
	})
	require.ErrorIs(t, err, entities.ErrUserNotFound)
}

func TestLedgerReferenceIsUnique(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	entry := func() *entities.WalletEntry {
		return &entities.WalletEntry{UserID: 1, Amount: decimal.NewFromInt(10), ReferenceType: entities.ReferenceMoneyRequest, ReferenceID: "req-1"}
	}
	booked, err := store.InsertWalletEntry(ctx, entry())
	require.NoError(t, err)
	require.True(t, booked)

	booked, err = store.InsertWalletEntry(ctx, entry())
	require.NoError(t, err)
	require.False(t, booked)

	entries, err := store.ListWalletEntries(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestSMSConsumedOnce(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	created, err := store.InsertSMS(ctx, &entities.SMSRecord{ID: "s-1", TransactionID: "TXN001", Amount: decimal.NewFromInt(1000)})
	require.NoError(t, err)
	require.True(t, created)
	created, err = store.InsertSMS(ctx, &entities.SMSRecord{ID: "s-2", TransactionID: "TXN001"})
	require.NoError(t, err)
	require.False(t, created)

	require.NoError(t, store.MarkSMSConsumed(ctx, "TXN001", "req-1"))
	require.NoError(t, store.MarkSMSConsumed(ctx, "TXN001", "req-1"))
	require.ErrorIs(t, store.MarkSMSConsumed(ctx, "TXN001", "req-2"), entities.ErrDuplicateTransaction)

	sms, err := store.FindSMSByTransactionID(ctx, "TXN001")
	require.NoError(t, err)
	require.Equal(t, "s-1", sms.ID)
	require.Equal(t, "req-1", *sms.ConsumedBy)
}

func TestOutboxRetryUntilFailed(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	event, err := entities.NewOutboxEvent(entities.EventOrderPlaced, "o-1", map[string]string{"id": "o-1"})
	require.NoError(t, err)
	require.NoError(t, store.InsertOutbox(ctx, event))

	for i := 0; i < entities.MaxOutboxAttempts; i++ {
		batch, err := store.FetchPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, batch, 1)
		require.Equal(t, entities.OutboxStatusProcessing, batch[0].Status)
		require.NoError(t, store.MarkForRetry(ctx, batch[0].ID))
	}

	batch, err := store.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, batch)

	events := store.OutboxEvents()
	require.Len(t, events, 1)
	require.Equal(t, entities.OutboxStatusFailed, events[0].Status)
	require.Equal(t, entities.MaxOutboxAttempts, events[0].Attempts)
}

func TestOutboxMarkProcessed(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	event, err := entities.NewOutboxEvent(entities.EventMoneyRequestApproved, "req-1", nil)
	require.NoError(t, err)
	require.NoError(t, store.InsertOutbox(ctx, event))

	batch, err := store.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	require.NoError(t, store.MarkProcessed(ctx, event.ID))
	require.Error(t, store.MarkProcessed(ctx, "missing"))

	events := store.OutboxEvents()
	require.Equal(t, entities.OutboxStatusProcessed, events[0].Status)
	require.NotNil(t, events[0].ProcessedAt)
}
