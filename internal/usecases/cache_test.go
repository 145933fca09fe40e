package usecases

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sand/digiseba/backend/internal/entities"
)

func TestRequestCacheApplyByKey(t *testing.T) {
	cache := NewRequestCache()

	_, _, ok := cache.Snapshot()
	require.False(t, ok)

	a := entities.MoneyRequest{ID: "a", Amount: decimal.NewFromInt(500), SenderNumber: "1234", Status: entities.RequestStatusVerifying}
	b := entities.MoneyRequest{ID: "b", Amount: decimal.NewFromInt(100), SenderNumber: "1234", Status: entities.RequestStatusPending}
	cache.Replace([]ReviewItem{newReviewItem(a, "Rahim"), newReviewItem(b, "Karim")}, time.Now())

	mismatch := entities.VerificationMismatch
	smsAmount := decimal.NewFromInt(550)
	smsSender := "01711111234"
	a.VerificationStatus = &mismatch
	a.VerificationAttempts = 1
	a.SMSAmount = &smsAmount
	a.SMSSenderNumber = &smsSender

	require.True(t, cache.Apply(a))
	require.False(t, cache.Apply(entities.MoneyRequest{ID: "unknown"}))

	item, ok := cache.Get("a")
	require.True(t, ok)
	require.Equal(t, "Rahim", item.UserName)
	require.Equal(t, entities.BadgeMismatch, item.Badge.Kind)
	require.NotNil(t, item.Mismatch)
	require.Len(t, item.Mismatch.Fields, 1)

	cache.Add(entities.MoneyRequest{ID: "c", Status: entities.RequestStatusPending}, "Selim")
	items, _, ok := cache.Snapshot()
	require.True(t, ok)
	require.Equal(t, []string{"c", "a", "b"}, []string{items[0].ID, items[1].ID, items[2].ID})
}

func TestRequestCacheKeepsPatchesDuringLoad(t *testing.T) {
	cache := NewRequestCache()
	loadedAt := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	stale := entities.MoneyRequest{ID: "a", Amount: decimal.NewFromInt(500), Status: entities.RequestStatusVerifying, UpdatedAt: loadedAt}
	other := entities.MoneyRequest{ID: "b", Amount: decimal.NewFromInt(100), Status: entities.RequestStatusPending, UpdatedAt: loadedAt}

	cache.BeginLoad()

	approved := stale
	approved.Status = entities.RequestStatusApproved
	approved.UpdatedAt = loadedAt.Add(time.Second)
	require.False(t, cache.Apply(approved))

	items := cache.Replace([]ReviewItem{newReviewItem(stale, "Rahim"), newReviewItem(other, "Karim")}, loadedAt)
	require.Equal(t, entities.RequestStatusApproved, items[0].Status)
	require.Equal(t, "Rahim", items[0].UserName)

	item, ok := cache.Get("a")
	require.True(t, ok)
	require.Equal(t, entities.RequestStatusApproved, item.Status)

	cache.BeginLoad()
	items = cache.Replace([]ReviewItem{newReviewItem(stale, "Rahim")}, loadedAt)
	require.Equal(t, entities.RequestStatusApproved, items[0].Status)

	cache.BeginLoad()
	cache.CancelLoad()
	require.False(t, cache.Apply(entities.MoneyRequest{ID: "late", UpdatedAt: loadedAt}))
	require.Nil(t, cache.late)
}
