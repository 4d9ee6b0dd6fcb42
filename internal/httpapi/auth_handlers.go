package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"crewhub.dev/internal/auth"
	"crewhub.dev/internal/obs"
)

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleAuthToken exchanges credentials of an enabled account for a bearer token.
func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.accounts == nil || a.tokens == nil {
		writeError(w, r, http.StatusServiceUnavailable, "authentication not configured")
		return
	}

	var req tokenRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	acc, err := a.accounts.Authenticate(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrDisabled):
		writeError(w, r, http.StatusForbidden, "account is not active")
		return
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	case err != nil:
		respondError(w, r, err)
		return
	}

	var roles []string
	if rec, err := a.lifecycle.Get(r.Context(), acc.ID, acc.ID); err == nil {
		roles = []string{string(rec.Role)}
	} else {
		obs.Warn("httpapi: role lookup failed", map[string]any{"user_id": acc.ID, "error": err})
	}

	token, exp, err := a.tokens.Generate(acc.ID, roles, a.tokenTTL)
	if err != nil {
		respondError(w, r, err)
		return
	}
	_ = a.audit.LogEvent(r.Context(), "auth.token.issued", map[string]any{
		"user_id":    acc.ID,
		"expires_at": exp.UTC().Format(time.RFC3339),
	})
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: exp.UTC()})
}
