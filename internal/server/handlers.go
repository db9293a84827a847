package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bobmcallan/networth/internal/common"
)

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.app.StartupTime).Round(time.Second).String(),
	})
}

// handleVersion handles GET /api/version.
func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, common.GetVersionInfo())
}

// handleStatus handles GET /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, s.app.Data.Status())
}

// handleDismissSyncError handles DELETE /api/status/error.
func (s *Server) handleDismissSyncError(w http.ResponseWriter, _ *http.Request) {
	s.app.Data.DismissSyncError()
	WriteJSON(w, http.StatusOK, s.app.Data.Status())
}

type loginRequest struct {
	Token string `json:"token"`
}

// handleLogin handles POST /api/session. The token may be given in the
// body or as a bearer Authorization header.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if r.ContentLength != 0 {
		var req loginRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		if req.Token != "" {
			token = req.Token
		}
	}
	if token == "" {
		WriteError(w, http.StatusBadRequest, "token is required")
		return
	}

	if err := s.app.Data.Authenticate(r.Context(), token); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, s.app.Data.Status())
}

// handleLogout handles DELETE /api/session.
func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.app.Data.Logout()
	WriteJSON(w, http.StatusOK, s.app.Data.Status())
}

// handleRetry handles POST /api/session/retry.
func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Data.Retry(r.Context()); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, s.app.Data.Status())
}

// handleSyncNow handles POST /api/sync.
func (s *Server) handleSyncNow(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Data.SyncNow(r.Context()); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, s.app.Data.Status())
}
