// Package quote refreshes current prices on stock and crypto holdings
package quote

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/networth/internal/common"
	"github.com/bobmcallan/networth/internal/interfaces"
	"github.com/bobmcallan/networth/internal/models"
	"github.com/bobmcallan/networth/internal/services/fx"
)

// DefaultConcurrency bounds in-flight price requests per batch.
const DefaultConcurrency = 4

// Skip reasons reported in RefreshResult.Skipped.
const (
	SkipAutoUpdateOff = "auto-update disabled"
	SkipNoHoldings    = "no stock or crypto holdings"
)

// Service implements interfaces.PriceRefresher.
type Service struct {
	store       interfaces.DataStore
	stocks      interfaces.PriceClient
	crypto      interfaces.PriceClient
	fx          *fx.Table
	logger      *common.Logger
	concurrency int
	now         func() time.Time // injectable clock for testing
}

// NewService creates a price refresh service.
// Either client may be nil; holdings of that kind are then left alone.
func NewService(store interfaces.DataStore, stocks, crypto interfaces.PriceClient, table *fx.Table, logger *common.Logger) *Service {
	return &Service{
		store:       store,
		stocks:      stocks,
		crypto:      crypto,
		fx:          table,
		logger:      logger,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
}

// Refresh fetches the latest price of every held symbol and merges the
// results into the data current at the time of the save, not the copy the
// fetch started from. A manual refresh is a user save; an automatic one is
// a background save and does nothing when auto-update is off.
func (s *Service) Refresh(ctx context.Context, manual bool) (*models.RefreshResult, error) {
	snapshot := s.store.Current()
	result := &models.RefreshResult{At: s.now()}

	if !manual && !snapshot.Settings.AutoUpdatePrices {
		result.Skipped = SkipAutoUpdateOff
		return result, nil
	}

	stockSymbols := symbolsOf(snapshot.Stocks, func(h models.Stock) string { return h.Symbol })
	cryptoSymbols := symbolsOf(snapshot.Crypto, func(h models.Crypto) string { return h.Symbol })
	if s.stocks == nil {
		stockSymbols = nil
	}
	if s.crypto == nil {
		cryptoSymbols = nil
	}
	if len(stockSymbols)+len(cryptoSymbols) == 0 {
		result.Skipped = SkipNoHoldings
		return result, nil
	}
	result.Requested = len(stockSymbols) + len(cryptoSymbols)

	stockQuotes, stockFailed := s.FetchPrices(ctx, s.stocks, stockSymbols)
	cryptoQuotes, cryptoFailed := s.FetchPrices(ctx, s.crypto, cryptoSymbols)
	result.Failed = append(stockFailed, cryptoFailed...)
	sort.Strings(result.Failed)

	if len(stockQuotes)+len(cryptoQuotes) == 0 {
		s.logger.Warn().Int("requested", result.Requested).Msg("Price refresh returned no prices")
		return result, nil
	}

	var updated int
	merge := func(d models.AppData) (models.AppData, error) {
		updated = 0
		for i := range d.Stocks {
			if price, ok := s.priceFor(stockQuotes, d.Stocks[i].Symbol, d.Stocks[i].Currency); ok {
				d.Stocks[i].CurrentPrice = decimal.NewNullDecimal(price)
				updated++
			}
		}
		for i := range d.Crypto {
			if price, ok := s.priceFor(cryptoQuotes, d.Crypto[i].Symbol, d.Crypto[i].Currency); ok {
				d.Crypto[i].CurrentPrice = decimal.NewNullDecimal(price)
				updated++
			}
		}
		return d, nil
	}

	save := s.store.BackgroundSave
	if manual {
		save = s.store.UserSave
	}
	_, err := save(ctx, merge)
	result.Updated = updated

	s.logger.Info().
		Bool("manual", manual).
		Int("requested", result.Requested).
		Int("updated", result.Updated).
		Int("failed", len(result.Failed)).
		Msg("Prices refreshed")

	return result, err
}

// FetchPrices fetches symbols with bounded concurrency. A symbol that
// fails is reported in failed and never aborts the rest of the batch.
func (s *Service) FetchPrices(ctx context.Context, client interfaces.PriceClient, symbols []string) (map[string]models.Quote, []string) {
	quotes := make(map[string]models.Quote, len(symbols))
	var failed []string
	if client == nil || len(symbols) == 0 {
		return quotes, nil
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, sym := range symbols {
		g.Go(func() error {
			q, err := client.FetchPrice(ctx, sym)
			mu.Lock()
			defer mu.Unlock()
			if err != nil || q == nil {
				failed = append(failed, sym)
				event := s.logger.Warn
				if errors.Is(err, interfaces.ErrPriceUnavailable) {
					event = s.logger.Debug
				}
				event().Err(err).Str("symbol", sym).Msg("No price update")
				return nil
			}
			quotes[sym] = *q
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(failed)
	return quotes, failed
}

// priceFor returns the quote for symbol in the holding's currency. Quotes
// in an unsupported or unknown currency are used as reported.
func (s *Service) priceFor(quotes map[string]models.Quote, symbol string, holding models.Currency) (decimal.Decimal, bool) {
	q, ok := quotes[symbol]
	if !ok {
		return decimal.Zero, false
	}
	if q.Currency == "" || q.Currency == holding || !q.Currency.IsSupported() || !holding.IsSupported() {
		return q.Price, true
	}
	price, err := s.fx.Convert(q.Price, q.Currency, holding)
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Quote currency conversion failed, using raw price")
		return q.Price, true
	}
	return price.Round(models.QuantityPrecision), true
}

func symbolsOf[T any](holdings []T, symbol func(T) string) []string {
	seen := make(map[string]bool, len(holdings))
	var out []string
	for _, h := range holdings {
		sym := symbol(h)
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}
