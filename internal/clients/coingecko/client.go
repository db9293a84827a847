// Package coingecko provides a client for the CoinGecko public API
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/networth/internal/common"
	"github.com/bobmcallan/networth/internal/interfaces"
	"github.com/bobmcallan/networth/internal/models"
)

const (
	DefaultBaseURL = "https://api.coingecko.com/api/v3"
	DefaultTimeout = 15 * time.Second
	// The free tier allows roughly 30 calls a minute.
	DefaultRateLimit = 1 // requests per second
	SearchLimit      = 10

	apiKeyHeader = "x-cg-demo-api-key"
)

// CoinIDs maps common tickers to CoinGecko coin ids. Tickers not listed
// are tried as a lower-case id, then resolved through search.
var CoinIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"BNB":   "binancecoin",
	"SOL":   "solana",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"MATIC": "matic-network",
	"AVAX":  "avalanche-2",
	"LINK":  "chainlink",
	"UNI":   "uniswap",
	"LTC":   "litecoin",
	"ATOM":  "cosmos",
	"ETC":   "ethereum-classic",
	"XLM":   "stellar",
	"ALGO":  "algorand",
	"VET":   "vechain",
	"ICP":   "internet-computer",
	"FIL":   "filecoin",
	"TRX":   "tron",
	"EOS":   "eos",
	"AAVE":  "aave",
	"MKR":   "maker",
	"GRT":   "the-graph",
}

// Client implements interfaces.PriceClient and interfaces.SymbolSearcher
// for crypto assets. Prices are quoted in USD.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	now        func() time.Time
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL. An empty URL keeps the default.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithAPIKey sets the demo API key sent with every request
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient creates a new CoinGecko client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), 5),
		logger:  common.NewSilentLogger(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents a non-200 response
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("CoinGecko API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("CoinGecko API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// FetchPrice returns the USD price of a crypto ticker.
func (c *Client) FetchPrice(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = models.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, interfaces.ErrPriceUnavailable
	}

	id, known := CoinIDs[symbol]
	if !known {
		id = strings.ToLower(symbol)
	}

	price, err := c.simplePrice(ctx, id)
	if err != nil {
		return nil, err
	}
	if !price.Valid && !known {
		// Not a coin id; resolve the ticker through search.
		hits, err := c.searchCoins(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if len(hits) > 0 && hits[0].ID != id {
			c.logger.Debug().Str("symbol", symbol).Str("coin_id", hits[0].ID).Msg("Resolved coin id via search")
			if price, err = c.simplePrice(ctx, hits[0].ID); err != nil {
				return nil, err
			}
		}
	}
	if !price.Valid || !price.Decimal.IsPositive() {
		return nil, fmt.Errorf("%s: %w", symbol, interfaces.ErrPriceUnavailable)
	}

	return &models.Quote{
		Symbol:    symbol,
		Price:     price.Decimal,
		Currency:  models.USD,
		Source:    "coingecko",
		Timestamp: c.now(),
	}, nil
}

// simplePrice returns an invalid NullDecimal when the id is unknown.
func (c *Client) simplePrice(ctx context.Context, id string) (decimal.NullDecimal, error) {
	params := url.Values{}
	params.Set("ids", id)
	params.Set("vs_currencies", "usd")

	var resp map[string]map[string]decimal.Decimal
	if err := c.get(ctx, "/simple/price", params, &resp); err != nil {
		return decimal.NullDecimal{}, err
	}
	usd, ok := resp[id]["usd"]
	if !ok {
		return decimal.NullDecimal{}, nil
	}
	return decimal.NewNullDecimal(usd), nil
}

type coinHit struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	MarketCapRank int    `json:"market_cap_rank"`
}

func (c *Client) searchCoins(ctx context.Context, query string) ([]coinHit, error) {
	params := url.Values{}
	params.Set("query", query)

	var resp struct {
		Coins []coinHit `json:"coins"`
	}
	if err := c.get(ctx, "/search", params, &resp); err != nil {
		return nil, err
	}
	return resp.Coins, nil
}

// Search returns up to SearchLimit coins matching query.
func (c *Client) Search(ctx context.Context, query string) ([]models.Suggestion, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	hits, err := c.searchCoins(ctx, query)
	if err != nil {
		return nil, err
	}

	out := make([]models.Suggestion, 0, min(len(hits), SearchLimit))
	for _, h := range hits {
		if h.Symbol == "" || h.Name == "" {
			continue
		}
		out = append(out, models.Suggestion{Symbol: strings.ToUpper(h.Symbol), Name: h.Name})
		if len(out) == SearchLimit {
			break
		}
	}
	return out, nil
}
