package quote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/networth/internal/common"
	"github.com/bobmcallan/networth/internal/interfaces"
	"github.com/bobmcallan/networth/internal/models"
	"github.com/bobmcallan/networth/internal/services/fx"
)

// --- Mocks ---

type mockStore struct {
	mu              sync.Mutex
	data            models.AppData
	userSaves       int
	backgroundSaves int
	saveErr         error
}

func (m *mockStore) Current() models.AppData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.Clone()
}

func (m *mockStore) apply(mutate interfaces.Mutation) (models.AppData, error) {
	next, err := mutate(m.data.Clone())
	if err != nil {
		return models.AppData{}, err
	}
	m.data = next
	return next.Clone(), m.saveErr
}

func (m *mockStore) UserSave(_ context.Context, mutate interfaces.Mutation) (models.AppData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userSaves++
	return m.apply(mutate)
}

func (m *mockStore) BackgroundSave(_ context.Context, mutate interfaces.Mutation) (models.AppData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backgroundSaves++
	return m.apply(mutate)
}

type mockPriceClient struct {
	mu      sync.Mutex
	quotes  map[string]models.Quote
	calls   []string
	onFetch func(symbol string)
}

func (m *mockPriceClient) FetchPrice(_ context.Context, symbol string) (*models.Quote, error) {
	m.mu.Lock()
	m.calls = append(m.calls, symbol)
	hook := m.onFetch
	q, ok := m.quotes[symbol]
	m.mu.Unlock()

	if hook != nil {
		hook(symbol)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, interfaces.ErrPriceUnavailable)
	}
	return &q, nil
}

func usdQuote(symbol, price string) models.Quote {
	return models.Quote{Symbol: symbol, Price: decimal.RequireFromString(price), Currency: models.USD, Source: "mock"}
}

func newTestService(store *mockStore, stocks, crypto *mockPriceClient) *Service {
	var sc, cc interfaces.PriceClient
	if stocks != nil {
		sc = stocks
	}
	if crypto != nil {
		cc = crypto
	}
	svc := NewService(store, sc, cc, fx.Default(), common.NewSilentLogger())
	svc.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return svc
}

func holdingsData() models.AppData {
	d := models.DefaultAppData()
	d.Stocks = []models.Stock{
		{ID: "s1", Symbol: "AAPL", Shares: decimal.NewFromInt(2), PurchasePrice: decimal.NewFromInt(100), Currency: models.USD},
		{ID: "s2", Symbol: "MSFT", Shares: decimal.NewFromInt(1), PurchasePrice: decimal.NewFromInt(300), CurrentPrice: decimal.NewNullDecimal(decimal.NewFromInt(310)), Currency: models.USD},
		{ID: "s3", Symbol: "AAPL", Shares: decimal.NewFromInt(1), PurchasePrice: decimal.NewFromInt(90), Currency: models.EUR},
	}
	d.Crypto = []models.Crypto{
		{ID: "c1", Symbol: "BTC", Amount: decimal.RequireFromString("0.1"), PurchasePrice: decimal.NewFromInt(30000), Currency: models.USD},
	}
	return d
}

// --- Tests ---

func TestRefresh_AutomaticIsBackgroundSave(t *testing.T) {
	store := &mockStore{data: holdingsData()}
	stocks := &mockPriceClient{quotes: map[string]models.Quote{"AAPL": usdQuote("AAPL", "200"), "MSFT": usdQuote("MSFT", "420")}}
	crypto := &mockPriceClient{quotes: map[string]models.Quote{"BTC": usdQuote("BTC", "60000")}}
	svc := newTestService(store, stocks, crypto)

	res, err := svc.Refresh(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, store.backgroundSaves)
	assert.Zero(t, store.userSaves)
	assert.Equal(t, 3, res.Requested, "duplicate symbols are fetched once")
	assert.Equal(t, 4, res.Updated)
	assert.Empty(t, res.Failed)
	assert.Len(t, stocks.calls, 2)

	d := store.Current()
	assert.Equal(t, "200", d.Stocks[0].CurrentPrice.Decimal.String())
	assert.Equal(t, "420", d.Stocks[1].CurrentPrice.Decimal.String())
	assert.Equal(t, "60000", d.Crypto[0].CurrentPrice.Decimal.String())

	// USD quote on a EUR holding is converted: 200 / 1.08.
	assert.Equal(t, "185.19", d.Stocks[2].CurrentPrice.Decimal.StringFixed(2))
}

func TestRefresh_ManualIsUserSave(t *testing.T) {
	store := &mockStore{data: holdingsData()}
	stocks := &mockPriceClient{quotes: map[string]models.Quote{"AAPL": usdQuote("AAPL", "200")}}
	svc := newTestService(store, stocks, nil)

	_, err := svc.Refresh(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, store.userSaves)
	assert.Zero(t, store.backgroundSaves)
}

func TestRefresh_AutoUpdateDisabled(t *testing.T) {
	data := holdingsData().WithSettings(models.Settings{AutoUpdatePrices: false})
	store := &mockStore{data: data}
	stocks := &mockPriceClient{quotes: map[string]models.Quote{"AAPL": usdQuote("AAPL", "200")}}
	svc := newTestService(store, stocks, nil)

	res, err := svc.Refresh(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, SkipAutoUpdateOff, res.Skipped)
	assert.Empty(t, stocks.calls, "no fetch when auto-update is off")

	// A manual refresh ignores the setting.
	res, err = svc.Refresh(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, 1, store.userSaves)
}

func TestRefresh_NoHoldings(t *testing.T) {
	store := &mockStore{data: models.DefaultAppData()}
	svc := newTestService(store, &mockPriceClient{}, &mockPriceClient{})

	res, err := svc.Refresh(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, SkipNoHoldings, res.Skipped)
	assert.Zero(t, store.backgroundSaves)
}

func TestRefresh_FailuresKeepPriorPrice(t *testing.T) {
	store := &mockStore{data: holdingsData()}
	stocks := &mockPriceClient{quotes: map[string]models.Quote{"AAPL": usdQuote("AAPL", "205")}}
	svc := newTestService(store, stocks, &mockPriceClient{})

	res, err := svc.Refresh(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC", "MSFT"}, res.Failed)
	d := store.Current()
	assert.Equal(t, "205", d.Stocks[0].CurrentPrice.Decimal.String())
	assert.Equal(t, "310", d.Stocks[1].CurrentPrice.Decimal.String(), "failed symbol keeps its last price")
	assert.False(t, d.Crypto[0].CurrentPrice.Valid, "failed symbol with no price stays absent")
}

func TestRefresh_AllFailedDoesNotSave(t *testing.T) {
	store := &mockStore{data: holdingsData()}
	svc := newTestService(store, &mockPriceClient{}, &mockPriceClient{})

	res, err := svc.Refresh(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, res.Failed, 3)
	assert.Zero(t, store.backgroundSaves)
}

func TestRefresh_MergesIntoLatestState(t *testing.T) {
	store := &mockStore{data: holdingsData()}
	stocks := &mockPriceClient{quotes: map[string]models.Quote{"AAPL": usdQuote("AAPL", "200"), "MSFT": usdQuote("MSFT", "400")}}

	// While prices are in flight the user deletes MSFT and adds an expense.
	var once sync.Once
	stocks.onFetch = func(string) {
		once.Do(func() {
			_, _ = store.UserSave(context.Background(), func(d models.AppData) (models.AppData, error) {
				d.Stocks = []models.Stock{d.Stocks[0], d.Stocks[2]}
				d.Expenses = append(d.Expenses, models.NewExpense(decimal.NewFromInt(5), models.USD, "snack", "Other", "2025-01-02"))
				return d, nil
			})
		})
	}
	svc := newTestService(store, stocks, nil)

	res, err := svc.Refresh(context.Background(), false)
	require.NoError(t, err)

	d := store.Current()
	require.Len(t, d.Stocks, 2, "deleted holding is not resurrected")
	assert.Len(t, d.Expenses, 1, "concurrent edit survives the price merge")
	assert.Equal(t, "200", d.Stocks[0].CurrentPrice.Decimal.String())
	assert.Equal(t, 2, res.Updated)
}

func TestRefresh_SaveErrorReturned(t *testing.T) {
	syncErr := errors.New("cloud sync failed")
	store := &mockStore{data: holdingsData(), saveErr: syncErr}
	stocks := &mockPriceClient{quotes: map[string]models.Quote{"AAPL": usdQuote("AAPL", "200")}}
	svc := newTestService(store, stocks, nil)

	res, err := svc.Refresh(context.Background(), true)
	assert.ErrorIs(t, err, syncErr)
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Updated)
}

func TestPriceFor_UnsupportedQuoteCurrency(t *testing.T) {
	svc := newTestService(&mockStore{}, nil, nil)
	quotes := map[string]models.Quote{
		"HK": {Symbol: "HK", Price: decimal.NewFromInt(50), Currency: "HKD"},
		"NC": {Symbol: "NC", Price: decimal.NewFromInt(7)},
	}

	p, ok := svc.priceFor(quotes, "HK", models.USD)
	require.True(t, ok)
	assert.Equal(t, "50", p.String())

	p, ok = svc.priceFor(quotes, "NC", models.EUR)
	require.True(t, ok)
	assert.Equal(t, "7", p.String())

	_, ok = svc.priceFor(quotes, "MISSING", models.USD)
	assert.False(t, ok)
}
