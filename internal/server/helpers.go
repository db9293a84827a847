package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bobmcallan/networth/internal/services/cloudsync"
	"github.com/bobmcallan/networth/internal/services/fx"
)

// ErrorResponse is the standard error format for REST API responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message})
}

// WriteErrorWithCode writes a JSON error response with an error code.
func WriteErrorWithCode(w http.ResponseWriter, statusCode int, message, code string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// DecodeJSON reads and decodes JSON from the request body into v.
// Returns false and writes a 400 error if decoding fails.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil || r.Body == http.NoBody {
		WriteError(w, http.StatusBadRequest, "Request body is required")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}

// errorCodes maps service errors to a status and a stable code clients can
// switch on.
var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{cloudsync.ErrInvalidData, http.StatusBadRequest, "invalid_data"},
	{fx.ErrUnsupportedCurrency, http.StatusBadRequest, "unsupported_currency"},
	{cloudsync.ErrAuthFailed, http.StatusUnauthorized, "auth_failed"},
	{cloudsync.ErrNotAuthenticated, http.StatusUnauthorized, "not_authenticated"},
	{cloudsync.ErrNotSynced, http.StatusConflict, "not_synced"},
	{cloudsync.ErrNothingToRetry, http.StatusConflict, "nothing_to_retry"},
	{cloudsync.ErrNoRemote, http.StatusConflict, "local_only"},
	{cloudsync.ErrInitFailed, http.StatusBadGateway, "init_failed"},
	{cloudsync.ErrSyncFailed, http.StatusBadGateway, "sync_failed"},
}

// WriteServiceError writes err with the status its sentinel maps to, or
// 500 for anything unrecognised.
func WriteServiceError(w http.ResponseWriter, err error) {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			WriteErrorWithCode(w, ec.status, err.Error(), ec.code)
			return
		}
	}
	WriteError(w, http.StatusInternalServerError, err.Error())
}
