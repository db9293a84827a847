package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// router builds the API routes.
func (s *Server) router() *mux.Router {
	r := mux.NewRouter().StrictSlash(true)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	api := r.PathPrefix("/api").Subrouter()

	// System
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)

	// Session and sync
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/status/error", s.handleDismissSyncError).Methods(http.MethodDelete)
	api.HandleFunc("/session", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/session", s.handleLogout).Methods(http.MethodDelete)
	api.HandleFunc("/session/retry", s.handleRetry).Methods(http.MethodPost)
	api.HandleFunc("/sync", s.handleSyncNow).Methods(http.MethodPost)

	// Data
	api.HandleFunc("/data", s.handleGetData).Methods(http.MethodGet)
	api.HandleFunc("/data", s.handleReplaceData).Methods(http.MethodPut)
	api.HandleFunc("/currency", s.handleSetCurrency).Methods(http.MethodPut)
	api.HandleFunc("/settings", s.handleSetSettings).Methods(http.MethodPut)
	api.HandleFunc("/recurring-incomes/{id}", s.handleSetRecurringActive).Methods(http.MethodPatch)
	api.HandleFunc("/{kind}", s.handleAddEntry).Methods(http.MethodPost)
	api.HandleFunc("/{kind}/{id}", s.handleUpdateEntry).Methods(http.MethodPut)
	api.HandleFunc("/{kind}/{id}", s.handleDeleteEntry).Methods(http.MethodDelete)

	// Prices, totals and search
	api.HandleFunc("/prices/refresh", s.handleRefreshPrices).Methods(http.MethodPost)
	api.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/rates", s.handleRates).Methods(http.MethodGet)
	api.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)

	return r
}
