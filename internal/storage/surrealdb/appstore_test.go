package surrealdb

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/networth/internal/models"
)

func sampleData() models.AppData {
	d := models.DefaultAppData().WithBaseCurrency(models.GBP)
	d.Incomes = append(d.Incomes, models.NewIncome(decimal.RequireFromString("2500"), models.GBP, "salary", "Work", "2025-02-28"))
	d.Crypto = []models.Crypto{{
		ID:            "c1",
		Symbol:        "ETH",
		Amount:        decimal.RequireFromString("1.5"),
		PurchasePrice: decimal.NewFromInt(2000),
		Currency:      models.USD,
	}}
	return d
}

func TestFetchOnce_Absent(t *testing.T) {
	store := testStore(t)

	snap, err := store.FetchOnce(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestWriteThrough_RoundTripAndVersion(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	data := sampleData()

	v1, err := store.WriteThrough(ctx, "alice", &data)
	require.NoError(t, err)
	assert.Equal(t, 1, v1)

	data.BaseCurrency = models.CAD
	v2, err := store.WriteThrough(ctx, "alice", &data)
	require.NoError(t, err)
	assert.Equal(t, 2, v2)

	snap, err := store.FetchOnce(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 2, snap.Version)
	assert.Equal(t, models.CAD, snap.Data.BaseCurrency)
	require.Len(t, snap.Data.Incomes, 1)
	assert.True(t, snap.Data.Incomes[0].Amount.Equal(decimal.NewFromInt(2500)))
	assert.False(t, snap.Data.Crypto[0].CurrentPrice.Valid)
}

func TestWriteThrough_UsersAreIsolated(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	data := sampleData()

	_, err := store.WriteThrough(ctx, "alice", &data)
	require.NoError(t, err)

	snap, err := store.FetchOnce(ctx, "bob")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestWriteThrough_RejectsBadInput(t *testing.T) {
	store := testStore(t)
	data := sampleData()

	_, err := store.WriteThrough(context.Background(), "", &data)
	assert.Error(t, err)
	_, err = store.WriteThrough(context.Background(), "alice", nil)
	assert.Error(t, err)
}

func TestSubscribe_DeliversNewVersions(t *testing.T) {
	store := testStore(t)
	data := sampleData()

	_, err := store.WriteThrough(context.Background(), "carol", &data)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, err := store.Subscribe(ctx, "carol")
	require.NoError(t, err)

	select {
	case snap := <-updates:
		assert.Equal(t, 1, snap.Version)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for initial snapshot")
	}

	data.BaseCurrency = models.JPY
	_, err = store.WriteThrough(context.Background(), "carol", &data)
	require.NoError(t, err)

	select {
	case snap := <-updates:
		assert.Equal(t, 2, snap.Version)
		assert.Equal(t, models.JPY, snap.Data.BaseCurrency)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for updated snapshot")
	}

	cancel()
	for range updates {
	}
}

func TestSubscribe_ClosesOnCancel(t *testing.T) {
	store := testStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	updates, err := store.Subscribe(ctx, "dave")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-updates:
		assert.False(t, ok, "no document, so the only event is the close")
	case <-time.After(5 * time.Second):
		t.Fatal("subscription not closed after cancel")
	}
}
