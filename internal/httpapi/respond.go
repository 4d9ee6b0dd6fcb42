package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"crewhub.dev/internal/contentrepo"
	"crewhub.dev/internal/lifecycle"
	"crewhub.dev/internal/obs"
	"crewhub.dev/internal/schema"
)

type errorBody struct {
	Error     string         `json:"error"`
	Field     string         `json:"field,omitempty"`
	Issues    []schema.Issue `json:"issues,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg, RequestID: requestIDFrom(r.Context())})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

// readBody reads a JSON body and checks it against the named schema.
func readBody(r *http.Request, name schema.Name) ([]byte, error) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return nil, fmt.Errorf("%w: content type must be application/json", lifecycle.ErrInvalidInput)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, fmt.Errorf("%w: body larger than %d bytes", lifecycle.ErrInvalidInput, mbe.Limit)
		}
		return nil, fmt.Errorf("%w: read body: %v", lifecycle.ErrInvalidInput, err)
	}
	if err := schema.Validate(name, body); err != nil {
		var ve *schema.ValidationError
		if errors.As(err, &ve) {
			return nil, ve
		}
		return nil, fmt.Errorf("%w: %v", lifecycle.ErrInvalidInput, err)
	}
	return body, nil
}

// respondError maps domain errors onto HTTP statuses.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Error: err.Error(), RequestID: requestIDFrom(r.Context())}
	var (
		code int
		ve   *lifecycle.ValidationError
		se   *schema.ValidationError
	)
	switch {
	case errors.As(err, &se):
		code = http.StatusBadRequest
		body.Issues = se.Issues
	case errors.As(err, &ve):
		code = http.StatusBadRequest
		body.Field = ve.Field
	case errors.Is(err, lifecycle.ErrInvalidInput):
		code = http.StatusBadRequest
	case errors.Is(err, lifecycle.ErrForbidden):
		code = http.StatusForbidden
	case errors.Is(err, lifecycle.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, lifecycle.ErrConflict), errors.Is(err, contentrepo.ErrConflict):
		code = http.StatusConflict
	case errors.Is(err, contentrepo.ErrUnavailable):
		code = http.StatusServiceUnavailable
	default:
		code = http.StatusInternalServerError
		obs.Error("httpapi: request failed", map[string]any{
			"request_id": body.RequestID,
			"path":       r.URL.Path,
			"error":      err,
		})
		body.Error = "internal error"
	}
	writeJSON(w, code, body)
}
