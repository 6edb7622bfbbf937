package api

import (
	"encoding/json"
	"net/http"

	"github.com/JakeFAU/linkvault/internal/auth"
	"github.com/JakeFAU/linkvault/internal/metrics"
)

type loginRequest struct {
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if s.throttle != nil && !s.throttle.Allow(clientIP(r)) {
		metrics.ObserveLogin("throttled")
		writeError(w, http.StatusTooManyRequests, "Too many login attempts")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	ok, err := s.gate.Login(w, req.Password)
	if err != nil {
		metrics.ObserveLogin("error")
		s.fail(w, r, err)
		return
	}
	if !ok {
		metrics.ObserveLogin("rejected")
		writeError(w, http.StatusUnauthorized, "Invalid password")
		return
	}
	metrics.ObserveLogin("accepted")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.gate.Logout(w)
	http.Redirect(w, r, auth.LoginPath, http.StatusFound)
}
