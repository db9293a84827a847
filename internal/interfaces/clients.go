package interfaces

import (
	"context"
	"errors"

	"github.com/bobmcallan/networth/internal/models"
)

// ErrPriceUnavailable means the source has no usable price for a symbol:
// unknown ticker, empty response or a non-positive price. Callers treat it
// as "no update" and keep the previous price.
var ErrPriceUnavailable = errors.New("price unavailable")

// PriceClient fetches the latest price for a single symbol.
type PriceClient interface {
	FetchPrice(ctx context.Context, symbol string) (*models.Quote, error)
}

// SymbolSearcher looks up symbols matching a free-text query.
type SymbolSearcher interface {
	Search(ctx context.Context, query string) ([]models.Suggestion, error)
}

// Authenticator turns a session token into a user ID.
type Authenticator interface {
	Verify(token string) (string, error)
}
