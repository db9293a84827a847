package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/networth/internal/models"
	"github.com/bobmcallan/networth/internal/services/cloudsync"
	"github.com/bobmcallan/networth/internal/services/fx"
	"github.com/bobmcallan/networth/internal/services/search"
)

func isSyncFailure(err error) bool {
	return errors.Is(err, cloudsync.ErrSyncFailed)
}

type refreshResponse struct {
	*models.RefreshResult
	SyncError string `json:"sync_error,omitempty"`
}

// handleRefreshPrices handles POST /api/prices/refresh. This is the manual
// refresh, so it runs even when auto-update is off and syncs like any
// other user change.
func (s *Server) handleRefreshPrices(w http.ResponseWriter, r *http.Request) {
	result, err := s.app.Prices.Refresh(r.Context(), true)
	if err != nil && (result == nil || !isSyncFailure(err)) {
		WriteServiceError(w, err)
		return
	}
	resp := refreshResponse{RefreshResult: result}
	if err != nil {
		resp.SyncError = err.Error()
	}
	WriteJSON(w, http.StatusOK, resp)
}

// handleSummary handles GET /api/summary?currency=. Without a currency the
// configured display currency is used, then the data's base currency.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readableData(w)
	if !ok {
		return
	}

	target := data.BaseCurrency
	requested := r.URL.Query().Get("currency")
	if requested == "" {
		requested = s.app.Config.DisplayCurrency
	}
	if requested != "" {
		cur, err := models.ParseCurrency(requested)
		if err != nil {
			WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), "unsupported_currency")
			return
		}
		target = cur
	}

	summary, err := s.app.Engine.Summary(data, target)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, summary)
}

type ratesResponse struct {
	Reference models.Currency                     `json:"reference"`
	Rates     map[models.Currency]decimal.Decimal `json:"rates"`
}

// handleRates handles GET /api/rates: the value of one unit of each
// currency in the reference currency.
func (s *Server) handleRates(w http.ResponseWriter, _ *http.Request) {
	table := s.app.Engine.Rates()
	resp := ratesResponse{Reference: fx.Reference, Rates: make(map[models.Currency]decimal.Decimal)}
	for _, c := range table.Currencies() {
		rate, err := table.Rate(c)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		resp.Rates[c] = rate
	}
	WriteJSON(w, http.StatusOK, resp)
}

// handleSearch handles GET /api/search?kind=stock|crypto&q=.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind, ok := search.ParseKind(strings.ToLower(q.Get("kind")))
	if !ok {
		WriteError(w, http.StatusBadRequest, "kind must be stock or crypto")
		return
	}
	results, err := s.app.Search.Search(r.Context(), kind, q.Get("q"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}
