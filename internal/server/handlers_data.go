package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/networth/internal/models"
	"github.com/bobmcallan/networth/internal/services/cloudsync"
)

var errEntryNotFound = errors.New("entry not found")

// Collection names used in /api/{kind} paths.
const (
	kindExpenses            = "expenses"
	kindIncomes             = "incomes"
	kindRecurringIncomes    = "recurring-incomes"
	kindStocks              = "stocks"
	kindCrypto              = "crypto"
	kindFixedIncome         = "fixed-income"
	kindVariableInvestments = "variable-investments"
)

// handleGetData handles GET /api/data.
func (s *Server) handleGetData(w http.ResponseWriter, _ *http.Request) {
	data, ok := s.readableData(w)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, data)
}

// readableData returns the in-memory data for a read endpoint. After a
// failed login-time load that data may be stale, so reads answer 503
// init_failed with the load error until Retry succeeds or the user logs out.
func (s *Server) readableData(w http.ResponseWriter) (models.AppData, bool) {
	st := s.app.Data.Status()
	if st.State == cloudsync.StateInitError {
		WriteErrorWithCode(w, http.StatusServiceUnavailable, st.InitError, "init_failed")
		return models.AppData{}, false
	}
	return s.app.Data.Current(), true
}

// handleReplaceData handles PUT /api/data, replacing the whole data set
// (import). Missing collections decode as empty.
func (s *Server) handleReplaceData(w http.ResponseWriter, r *http.Request) {
	var incoming models.AppData
	if !DecodeJSON(w, r, &incoming) {
		return
	}
	saved, err := s.app.Data.UserSave(r.Context(), func(models.AppData) (models.AppData, error) {
		return incoming, nil
	})
	s.writeSaveResult(w, http.StatusOK, saved, err)
}

type currencyRequest struct {
	Currency string `json:"currency"`
}

// handleSetCurrency handles PUT /api/currency.
func (s *Server) handleSetCurrency(w http.ResponseWriter, r *http.Request) {
	var req currencyRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	cur, err := models.ParseCurrency(req.Currency)
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), "unsupported_currency")
		return
	}
	saved, err := s.app.Data.UserSave(r.Context(), func(d models.AppData) (models.AppData, error) {
		return d.WithBaseCurrency(cur), nil
	})
	s.writeSaveResult(w, http.StatusOK, saved, err)
}

// handleSetSettings handles PUT /api/settings.
func (s *Server) handleSetSettings(w http.ResponseWriter, r *http.Request) {
	var req models.Settings
	if !DecodeJSON(w, r, &req) {
		return
	}
	saved, err := s.app.Data.UserSave(r.Context(), func(d models.AppData) (models.AppData, error) {
		return d.WithSettings(req), nil
	})
	s.writeSaveResult(w, http.StatusOK, saved, err)
}

type recurringActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

// handleSetRecurringActive handles PATCH /api/recurring-incomes/{id}.
func (s *Server) handleSetRecurringActive(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req recurringActiveRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.IsActive == nil {
		WriteError(w, http.StatusBadRequest, "is_active is required")
		return
	}
	saved, err := s.app.Data.UserSave(r.Context(), func(d models.AppData) (models.AppData, error) {
		for i := range d.RecurringIncomes {
			if d.RecurringIncomes[i].ID == id {
				d.RecurringIncomes[i].IsActive = *req.IsActive
				return d, nil
			}
		}
		return d, errEntryNotFound
	})
	s.writeSaveResult(w, http.StatusOK, saved, err)
}

// entryRequest is the body for one-off expenses and incomes.
type entryRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Date        models.Date     `json:"date"`
}

type recurringRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	DayOfMonth  int             `json:"day_of_month"`
}

// positionRequest is the body for stocks and crypto. Quantity may be given
// directly or derived from Invested / PurchasePrice. CurrentPrice is
// optional; null means no quote.
type positionRequest struct {
	Symbol        string              `json:"symbol"`
	Quantity      decimal.NullDecimal `json:"quantity"`
	Invested      decimal.NullDecimal `json:"invested"`
	PurchasePrice decimal.Decimal     `json:"purchase_price"`
	CurrentPrice  decimal.NullDecimal `json:"current_price"`
	Currency      string              `json:"currency"`
}

type fixedIncomeRequest struct {
	Name         string          `json:"name"`
	Amount       decimal.Decimal `json:"amount"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	MaturityDate models.Date     `json:"maturity_date"`
	Currency     string          `json:"currency"`
}

type variableRequest struct {
	Name         string              `json:"name"`
	Amount       decimal.Decimal     `json:"amount"`
	CurrentValue decimal.NullDecimal `json:"current_value"`
	Type         string              `json:"type"`
	Currency     string              `json:"currency"`
}

// handleAddEntry handles POST /api/{kind}.
func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := decodeEntry(w, r, mux.Vars(r)["kind"])
	if !ok {
		return
	}
	_, err := s.app.Data.UserSave(r.Context(), func(d models.AppData) (models.AppData, error) {
		return appendEntry(d, entry), nil
	})
	s.writeSaveResult(w, http.StatusCreated, entry, err)
}

// handleUpdateEntry handles PUT /api/{kind}/{id}. The body is the same as
// for POST; the record keeps its ID and is rebuilt from the body, so an
// omitted or null current_price / current_value clears it. A recurring
// income keeps its is_active flag, which only PATCH changes.
func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	entry, ok := decodeEntry(w, r, vars["kind"])
	if !ok {
		return
	}
	var updated interface{}
	_, err := s.app.Data.UserSave(r.Context(), func(d models.AppData) (models.AppData, error) {
		next, rec, found := replaceEntry(d, vars["id"], entry)
		if !found {
			return d, errEntryNotFound
		}
		updated = rec
		return next, nil
	})
	s.writeSaveResult(w, http.StatusOK, updated, err)
}

// decodeEntry reads the body for kind and builds a new record with a fresh
// ID. It writes the error response itself and reports false on failure.
func decodeEntry(w http.ResponseWriter, r *http.Request, kind string) (interface{}, bool) {
	var (
		entry interface{}
		err   error
	)
	switch kind {
	case kindExpenses, kindIncomes:
		var req entryRequest
		if !DecodeJSON(w, r, &req) {
			return nil, false
		}
		entry, err = buildCashEntry(kind, req)
	case kindRecurringIncomes:
		var req recurringRequest
		if !DecodeJSON(w, r, &req) {
			return nil, false
		}
		entry, err = buildRecurring(req)
	case kindStocks, kindCrypto:
		var req positionRequest
		if !DecodeJSON(w, r, &req) {
			return nil, false
		}
		entry, err = buildPosition(kind, req)
	case kindFixedIncome:
		var req fixedIncomeRequest
		if !DecodeJSON(w, r, &req) {
			return nil, false
		}
		entry, err = buildFixedIncome(req)
	case kindVariableInvestments:
		var req variableRequest
		if !DecodeJSON(w, r, &req) {
			return nil, false
		}
		entry, err = buildVariable(req)
	default:
		WriteError(w, http.StatusNotFound, fmt.Sprintf("unknown collection %q", kind))
		return nil, false
	}
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), "invalid_data")
		return nil, false
	}
	return entry, true
}

func appendEntry(d models.AppData, entry interface{}) models.AppData {
	switch e := entry.(type) {
	case models.Expense:
		return d.WithExpenses(append(d.Expenses, e))
	case models.Income:
		return d.WithIncomes(append(d.Incomes, e))
	case models.RecurringIncome:
		return d.WithRecurringIncomes(append(d.RecurringIncomes, e))
	case models.Stock:
		return d.WithStocks(append(d.Stocks, e))
	case models.Crypto:
		return d.WithCrypto(append(d.Crypto, e))
	case models.FixedIncome:
		return d.WithFixedIncome(append(d.FixedIncome, e))
	case models.VariableInvestment:
		return d.WithVariableInvestments(append(d.VariableInvestments, e))
	}
	return d
}

// replaceEntry swaps the record with the given ID for entry, giving entry
// that ID. It returns the stored record and whether the ID was found.
func replaceEntry(d models.AppData, id string, entry interface{}) (models.AppData, interface{}, bool) {
	switch e := entry.(type) {
	case models.Expense:
		e.ID = id
		v, ok := replaceByID(d.Expenses, e, func(x models.Expense) string { return x.ID })
		return d.WithExpenses(v), e, ok
	case models.Income:
		e.ID = id
		v, ok := replaceByID(d.Incomes, e, func(x models.Income) string { return x.ID })
		return d.WithIncomes(v), e, ok
	case models.RecurringIncome:
		e.ID = id
		for _, old := range d.RecurringIncomes {
			if old.ID == id {
				e.IsActive = old.IsActive
			}
		}
		v, ok := replaceByID(d.RecurringIncomes, e, func(x models.RecurringIncome) string { return x.ID })
		return d.WithRecurringIncomes(v), e, ok
	case models.Stock:
		e.ID = id
		v, ok := replaceByID(d.Stocks, e, func(x models.Stock) string { return x.ID })
		return d.WithStocks(v), e, ok
	case models.Crypto:
		e.ID = id
		v, ok := replaceByID(d.Crypto, e, func(x models.Crypto) string { return x.ID })
		return d.WithCrypto(v), e, ok
	case models.FixedIncome:
		e.ID = id
		v, ok := replaceByID(d.FixedIncome, e, func(x models.FixedIncome) string { return x.ID })
		return d.WithFixedIncome(v), e, ok
	case models.VariableInvestment:
		e.ID = id
		v, ok := replaceByID(d.VariableInvestments, e, func(x models.VariableInvestment) string { return x.ID })
		return d.WithVariableInvestments(v), e, ok
	}
	return d, nil, false
}

// handleDeleteEntry handles DELETE /api/{kind}/{id}.
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind, id := vars["kind"], vars["id"]

	var remove func(models.AppData) (models.AppData, bool)
	switch kind {
	case kindExpenses:
		remove = func(d models.AppData) (models.AppData, bool) {
			v, ok := removeByID(d.Expenses, id, func(e models.Expense) string { return e.ID })
			return d.WithExpenses(v), ok
		}
	case kindIncomes:
		remove = func(d models.AppData) (models.AppData, bool) {
			v, ok := removeByID(d.Incomes, id, func(e models.Income) string { return e.ID })
			return d.WithIncomes(v), ok
		}
	case kindRecurringIncomes:
		remove = func(d models.AppData) (models.AppData, bool) {
			v, ok := removeByID(d.RecurringIncomes, id, func(e models.RecurringIncome) string { return e.ID })
			return d.WithRecurringIncomes(v), ok
		}
	case kindStocks:
		remove = func(d models.AppData) (models.AppData, bool) {
			v, ok := removeByID(d.Stocks, id, func(e models.Stock) string { return e.ID })
			return d.WithStocks(v), ok
		}
	case kindCrypto:
		remove = func(d models.AppData) (models.AppData, bool) {
			v, ok := removeByID(d.Crypto, id, func(e models.Crypto) string { return e.ID })
			return d.WithCrypto(v), ok
		}
	case kindFixedIncome:
		remove = func(d models.AppData) (models.AppData, bool) {
			v, ok := removeByID(d.FixedIncome, id, func(e models.FixedIncome) string { return e.ID })
			return d.WithFixedIncome(v), ok
		}
	case kindVariableInvestments:
		remove = func(d models.AppData) (models.AppData, bool) {
			v, ok := removeByID(d.VariableInvestments, id, func(e models.VariableInvestment) string { return e.ID })
			return d.WithVariableInvestments(v), ok
		}
	default:
		WriteError(w, http.StatusNotFound, fmt.Sprintf("unknown collection %q", kind))
		return
	}

	saved, err := s.app.Data.UserSave(r.Context(), func(d models.AppData) (models.AppData, error) {
		next, ok := remove(d)
		if !ok {
			return d, errEntryNotFound
		}
		return next, nil
	})
	s.writeSaveResult(w, http.StatusOK, saved, err)
}

// writeSaveResult reports a user save. A failed cloud write still saved
// locally, so the body is returned with the sync error in a header.
func (s *Server) writeSaveResult(w http.ResponseWriter, status int, body interface{}, err error) {
	switch {
	case err == nil:
		WriteJSON(w, status, body)
	case errors.Is(err, errEntryNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case isSyncFailure(err):
		w.Header().Set("X-Sync-Error", err.Error())
		WriteJSON(w, status, body)
	default:
		WriteServiceError(w, err)
	}
}

func removeByID[T any](items []T, id string, idOf func(T) string) ([]T, bool) {
	out := make([]T, 0, len(items))
	found := false
	for _, it := range items {
		if idOf(it) == id {
			found = true
			continue
		}
		out = append(out, it)
	}
	return out, found
}

func replaceByID[T any](items []T, repl T, idOf func(T) string) ([]T, bool) {
	out := make([]T, len(items))
	found := false
	for i, it := range items {
		if idOf(it) == idOf(repl) {
			it = repl
			found = true
		}
		out[i] = it
	}
	return out, found
}

func parseCurrency(s string) (models.Currency, error) {
	if strings.TrimSpace(s) == "" {
		return "", errors.New("currency is required")
	}
	return models.ParseCurrency(s)
}

func buildCashEntry(kind string, req entryRequest) (interface{}, error) {
	cur, err := parseCurrency(req.Currency)
	if err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, errors.New("amount must be greater than zero")
	}
	if err := req.Date.Validate(); err != nil {
		return nil, err
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = "Other"
	}

	if kind == kindExpenses {
		return models.NewExpense(req.Amount, cur, req.Description, category, req.Date), nil
	}
	return models.NewIncome(req.Amount, cur, req.Description, category, req.Date), nil
}

func buildRecurring(req recurringRequest) (interface{}, error) {
	cur, err := parseCurrency(req.Currency)
	if err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, errors.New("amount must be greater than zero")
	}
	if req.DayOfMonth < 1 || req.DayOfMonth > 31 {
		return nil, fmt.Errorf("day_of_month %d out of range 1-31", req.DayOfMonth)
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = "Other"
	}
	return models.NewRecurringIncome(req.Amount, cur, req.Description, category, req.DayOfMonth), nil
}

func buildPosition(kind string, req positionRequest) (interface{}, error) {
	cur, err := parseCurrency(req.Currency)
	if err != nil {
		return nil, err
	}
	if models.NormalizeSymbol(req.Symbol) == "" {
		return nil, errors.New("symbol is required")
	}
	if req.PurchasePrice.IsNegative() {
		return nil, errors.New("purchase_price must not be negative")
	}

	var qty decimal.Decimal
	switch {
	case req.Quantity.Valid:
		qty = req.Quantity.Decimal
	case req.Invested.Valid:
		qty, err = models.QuantityFromAmount(req.Invested.Decimal, req.PurchasePrice)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("quantity or invested is required")
	}
	if !qty.IsPositive() {
		return nil, errors.New("quantity must be greater than zero")
	}

	if kind == kindStocks {
		st := models.NewStock(req.Symbol, qty, req.PurchasePrice, cur)
		st.CurrentPrice = req.CurrentPrice
		return st, nil
	}
	c := models.NewCrypto(req.Symbol, qty, req.PurchasePrice, cur)
	c.CurrentPrice = req.CurrentPrice
	return c, nil
}

func buildFixedIncome(req fixedIncomeRequest) (interface{}, error) {
	cur, err := parseCurrency(req.Currency)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, errors.New("name is required")
	}
	if !req.Amount.IsPositive() {
		return nil, errors.New("amount must be greater than zero")
	}
	if !req.MaturityDate.IsZero() {
		if err := req.MaturityDate.Validate(); err != nil {
			return nil, err
		}
	}
	return models.NewFixedIncome(req.Name, req.Amount, req.InterestRate, req.MaturityDate, cur), nil
}

func buildVariable(req variableRequest) (interface{}, error) {
	cur, err := parseCurrency(req.Currency)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, errors.New("name is required")
	}
	if !req.Amount.IsPositive() {
		return nil, errors.New("amount must be greater than zero")
	}
	v := models.NewVariableInvestment(req.Name, req.Amount, cur)
	v.CurrentValue = req.CurrentValue
	if t := strings.TrimSpace(req.Type); t != "" {
		v.Type = t
	}
	return v, nil
}
