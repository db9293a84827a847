package interfaces

import (
	"context"

	"github.com/bobmcallan/networth/internal/models"
)

// Mutation derives the next AppData from the current one. It receives a
// private copy and must return the full next state.
type Mutation func(models.AppData) (models.AppData, error)

// DataStore is the save surface of the sync coordinator as seen by
// collaborators that change data.
type DataStore interface {
	// Current returns a copy of the in-memory data.
	Current() models.AppData

	// UserSave applies a user-initiated change: memory, local store and,
	// once the session has synced, the cloud.
	UserSave(ctx context.Context, mutate Mutation) (models.AppData, error)

	// BackgroundSave applies a change to memory and the local store only.
	BackgroundSave(ctx context.Context, mutate Mutation) (models.AppData, error)
}

// PriceRefresher updates current prices on stock and crypto holdings.
type PriceRefresher interface {
	// Refresh fetches prices for every held symbol. Manual refreshes are
	// user saves; automatic ones are background saves and honour the
	// auto-update setting.
	Refresh(ctx context.Context, manual bool) (*models.RefreshResult, error)
}

// SearchService looks up symbols for entry forms.
type SearchService interface {
	Search(ctx context.Context, kind models.SymbolKind, query string) ([]models.Suggestion, error)
}
