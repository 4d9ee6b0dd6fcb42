package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"crewhub.dev/internal/auth"
	"crewhub.dev/internal/employee"
)

const keepAliveInterval = 25 * time.Second

// handleEvents streams audit entries to approved administrators as
// Server-Sent Events. ?prefix= narrows the event names.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.events == nil {
		writeError(w, r, http.StatusServiceUnavailable, "streaming disabled")
		return
	}
	actor, _ := auth.UserIDFromContext(r.Context())
	rec, err := a.lifecycle.Get(r.Context(), actor, actor)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if rec.Role != employee.RoleAdmin || rec.Status != employee.StatusApproved {
		writeError(w, r, http.StatusForbidden, "administrator required")
		return
	}

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch := a.events.Subscribe(r.Context(), r.URL.Query().Get("prefix"))

	_, _ = w.Write([]byte(": stream started\n\n"))
	if err := rc.Flush(); err != nil {
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case entry, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(entry)
			if err != nil {
				continue
			}
			_, _ = w.Write([]byte("event: " + entry.Event + "\ndata: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
		case <-ticker.C:
			_, _ = w.Write([]byte(": keep-alive\n\n"))
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
