package coingecko

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/bobmcallan/networth/internal/interfaces"
	"github.com/bobmcallan/networth/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(append([]ClientOption{WithBaseURL(srv.URL), WithRateLimit(100)}, opts...)...)
}

func TestFetchPrice_KnownTicker(t *testing.T) {
	var capturedIDs, capturedKey string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		capturedIDs = r.URL.Query().Get("ids")
		capturedKey = r.Header.Get(apiKeyHeader)
		w.Write([]byte(`{"bitcoin":{"usd":67123.45}}`))
	}, WithAPIKey("demo-key"))

	quote, err := client.FetchPrice(context.Background(), "btc")
	if err != nil {
		t.Fatalf("FetchPrice failed: %v", err)
	}
	if capturedIDs != "bitcoin" {
		t.Errorf("expected ids=bitcoin, got %s", capturedIDs)
	}
	if capturedKey != "demo-key" {
		t.Errorf("expected api key header, got %q", capturedKey)
	}
	if quote.Symbol != "BTC" || quote.Price.String() != "67123.45" {
		t.Errorf("unexpected quote %+v", quote)
	}
	if quote.Currency != models.USD {
		t.Errorf("expected USD quote, got %s", quote.Currency)
	}
}

func TestFetchPrice_UnknownTickerResolvedBySearch(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Path {
		case "/simple/price":
			if r.URL.Query().Get("ids") == "pepe" {
				w.Write([]byte(`{"pepe":{"usd":0.0000123}}`))
				return
			}
			w.Write([]byte(`{}`))
		case "/search":
			w.Write([]byte(`{"coins":[{"id":"pepe","name":"Pepe","symbol":"PEPE","market_cap_rank":30}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	// "PEPE" lowercases to the right id, so no search is needed.
	quote, err := client.FetchPrice(context.Background(), "PEPE")
	if err != nil {
		t.Fatalf("FetchPrice failed: %v", err)
	}
	if quote.Price.String() != "0.0000123" {
		t.Errorf("unexpected price %s", quote.Price)
	}
	if calls.Load() != 1 {
		t.Errorf("expected one request, got %d", calls.Load())
	}
}

func TestFetchPrice_SearchFallback(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/simple/price":
			if r.URL.Query().Get("ids") == "shiba-inu" {
				w.Write([]byte(`{"shiba-inu":{"usd":0.000017}}`))
				return
			}
			w.Write([]byte(`{}`))
		case "/search":
			if r.URL.Query().Get("query") != "SHIB" {
				t.Errorf("unexpected search query %s", r.URL.Query().Get("query"))
			}
			w.Write([]byte(`{"coins":[{"id":"shiba-inu","name":"Shiba Inu","symbol":"SHIB"}]}`))
		}
	})

	quote, err := client.FetchPrice(context.Background(), "shib")
	if err != nil {
		t.Fatalf("FetchPrice failed: %v", err)
	}
	if quote.Price.String() != "0.000017" {
		t.Errorf("unexpected price %s", quote.Price)
	}
}

func TestFetchPrice_Unavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/simple/price":
			w.Write([]byte(`{}`))
		case "/search":
			w.Write([]byte(`{"coins":[]}`))
		}
	})

	_, err := client.FetchPrice(context.Background(), "NOTACOIN")
	if !errors.Is(err, interfaces.ErrPriceUnavailable) {
		t.Errorf("expected ErrPriceUnavailable, got %v", err)
	}
}

func TestFetchPrice_KnownTickerSkipsSearch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search" {
			t.Error("search must not be used for mapped tickers")
		}
		w.Write([]byte(`{"ethereum":{"usd":0}}`))
	})

	_, err := client.FetchPrice(context.Background(), "ETH")
	if !errors.Is(err, interfaces.ErrPriceUnavailable) {
		t.Errorf("zero price should be unavailable, got %v", err)
	}
}

func TestFetchPrice_RateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"status":{"error_code":429}}`))
	})

	_, err := client.FetchPrice(context.Background(), "BTC")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected 429 APIError, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"coins":[
			{"id":"solana","name":"Solana","symbol":"sol","market_cap_rank":5},
			{"id":"solar","name":"","symbol":"sxp"},
			{"id":"wrapped-sol","name":"Wrapped SOL","symbol":"wsol"}
		]}`))
	})

	got, err := client.Search(context.Background(), "sol")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Symbol != "SOL" || got[0].Name != "Solana" {
		t.Errorf("unexpected first result %+v", got[0])
	}
}
