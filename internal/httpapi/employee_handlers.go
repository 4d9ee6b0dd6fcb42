package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"crewhub.dev/internal/auth"
	"crewhub.dev/internal/employee"
	"crewhub.dev/internal/lifecycle"
	"crewhub.dev/internal/schema"
)

type registerRequest struct {
	employee.Profile
	Password string `json:"password"`
}

type registerResponse struct {
	ID     string          `json:"id"`
	Status employee.Status `json:"status"`
}

// handleEmployees serves the collection: POST registers a new employee.
func (a *API) handleEmployees(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	body, err := readBody(r, schema.Register)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req registerRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, r, fmt.Errorf("%w: %v", lifecycle.ErrInvalidInput, err))
		return
	}
	id, err := a.lifecycle.Register(r.Context(), lifecycle.RegisterRequest{
		Profile:  req.Profile,
		Password: req.Password,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/employees/"+id)
	writeJSON(w, http.StatusCreated, registerResponse{ID: id, Status: employee.StatusPending})
}

// handleEmployeeScoped serves /v1/employees/{id} and /v1/employees/{id}/{action}.
func (a *API) handleEmployeeScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/employees/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" || len(parts) > 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id := parts[0]
	actor, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing identity")
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			rec, err := a.lifecycle.Get(r.Context(), id, actor)
			if err != nil {
				respondError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, rec)
		case http.MethodPatch:
			a.patchProfile(w, r, id, actor)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
		}
		return
	}

	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var (
		rec employee.Record
		err error
	)
	switch parts[1] {
	case "approve":
		rec, err = a.lifecycle.Approve(r.Context(), id, actor)
	case "reject":
		rec, err = a.lifecycle.Reject(r.Context(), id, actor)
	case "disable":
		rec, err = a.lifecycle.Disable(r.Context(), id, actor)
	case "resync":
		res, err := a.lifecycle.Resync(r.Context(), id, actor)
		if err != nil {
			respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) patchProfile(w http.ResponseWriter, r *http.Request, id, actor string) {
	body, err := readBody(r, schema.Profile)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var patch employee.ProfilePatch
	if err := json.Unmarshal(body, &patch); err != nil {
		respondError(w, r, fmt.Errorf("%w: %v", lifecycle.ErrInvalidInput, err))
		return
	}
	rec, err := a.lifecycle.UpdateProfile(r.Context(), id, actor, patch)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
