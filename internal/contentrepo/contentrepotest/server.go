// Package contentrepotest provides an in-process contents API with real
// compare-and-swap semantics for tests.
package contentrepotest

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Commit records one accepted mutation.
type Commit struct {
	Method         string
	Path           string
	Message        string
	CommitterName  string
	CommitterEmail string
}

// Dispatch records one repository_dispatch event.
type Dispatch struct {
	EventType string
	Payload   json.RawMessage
}

type file struct {
	content []byte
	sha     string
}

// Server is a fake contents API for a single owner/repo.
type Server struct {
	*httptest.Server

	Owner string
	Repo  string
	Token string

	mu          sync.Mutex
	files       map[string]file
	commits     []Commit
	dispatches  []Dispatch
	failures    []int
	unavailable bool
	beforePut   func(path string)
	requests    int
}

// NewServer starts a fake repository. Requests must carry "Bearer "+token.
func NewServer(owner, repo, token string) *Server {
	s := &Server{Owner: owner, Repo: repo, Token: token, files: map[string]file{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// Seed stores content at path without recording a commit.
func (s *Server) Seed(path string, content []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sha := blobSHA(content)
	s.files[path] = file{content: append([]byte(nil), content...), sha: sha}
	return sha
}

// File returns the stored content and tag at path.
func (s *Server) File(path string) ([]byte, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[path]
	if !ok {
		return nil, "", false
	}
	return append([]byte(nil), f.content...), f.sha, true
}

// Paths lists stored paths in sorted order.
func (s *Server) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Commits returns accepted mutations in order.
func (s *Server) Commits() []Commit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Commit(nil), s.commits...)
}

// Dispatches returns received build events in order.
func (s *Server) Dispatches() []Dispatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Dispatch(nil), s.dispatches...)
}

// Requests counts every request received.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// FailNext makes the next len(statuses) requests fail with the given statuses.
func (s *Server) FailNext(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, statuses...)
}

// SetUnavailable makes every request fail with 503 until reset.
func (s *Server) SetUnavailable(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = v
}

// BeforePut runs fn (outside the lock) before each PUT is applied. Tests use it
// to interleave a competing writer.
func (s *Server) BeforePut(fn func(path string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforePut = fn
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests++
	if s.unavailable {
		s.mu.Unlock()
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}
	if len(s.failures) > 0 {
		code := s.failures[0]
		s.failures = s.failures[1:]
		s.mu.Unlock()
		writeError(w, code, "injected failure")
		return
	}
	hook := s.beforePut
	s.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+s.Token {
		writeError(w, http.StatusUnauthorized, "Bad credentials")
		return
	}

	prefix := fmt.Sprintf("/repos/%s/%s/", s.Owner, s.Repo)
	if !strings.HasPrefix(r.URL.Path, prefix) {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	switch {
	case rest == "dispatches" && r.Method == http.MethodPost:
		s.dispatch(w, r)
	case strings.HasPrefix(rest, "contents/"):
		path, err := url.PathUnescape(strings.TrimPrefix(rest, "contents/"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad path")
			return
		}
		switch r.Method {
		case http.MethodGet:
			s.get(w, path)
		case http.MethodPut:
			if hook != nil {
				hook(path)
			}
			s.put(w, r, path)
		case http.MethodDelete:
			s.delete(w, r, path)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	default:
		writeError(w, http.StatusNotFound, "Not Found")
	}
}

func (s *Server) get(w http.ResponseWriter, path string) {
	s.mu.Lock()
	f, ok := s.files[path]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"type":     "file",
		"path":     path,
		"encoding": "base64",
		"content":  wrap(base64.StdEncoding.EncodeToString(f.content), 60),
		"sha":      f.sha,
	})
}

type mutation struct {
	Message   string `json:"message"`
	Content   string `json:"content"`
	SHA       string `json:"sha"`
	Branch    string `json:"branch"`
	Committer *struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"committer"`
}

func (s *Server) put(w http.ResponseWriter, r *http.Request, path string) {
	var m mutation
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "Problems parsing JSON")
		return
	}
	content, err := base64.StdEncoding.DecodeString(m.Content)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "content is not valid Base64")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, exists := s.files[path]
	switch {
	case exists && m.SHA == "":
		writeError(w, http.StatusUnprocessableEntity, `Invalid request. "sha" wasn't supplied.`)
		return
	case exists && m.SHA != cur.sha:
		writeError(w, http.StatusConflict, fmt.Sprintf("%s does not match %s", path, m.SHA))
		return
	case !exists && m.SHA != "":
		writeError(w, http.StatusConflict, fmt.Sprintf("%s does not match %s", path, m.SHA))
		return
	}
	sha := blobSHA(content)
	s.files[path] = file{content: content, sha: sha}
	s.record(http.MethodPut, path, m)
	code := http.StatusOK
	if !exists {
		code = http.StatusCreated
	}
	writeJSON(w, code, map[string]any{
		"content": map[string]any{"path": path, "sha": sha},
		"commit":  map[string]any{"message": m.Message},
	})
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request, path string) {
	var m mutation
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "Problems parsing JSON")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, exists := s.files[path]
	if !exists {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	if m.SHA != cur.sha {
		writeError(w, http.StatusConflict, fmt.Sprintf("%s does not match %s", path, m.SHA))
		return
	}
	delete(s.files, path)
	s.record(http.MethodDelete, path, m)
	writeJSON(w, http.StatusOK, map[string]any{"content": nil, "commit": map[string]any{"message": m.Message}})
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		EventType     string          `json:"event_type"`
		ClientPayload json.RawMessage `json:"client_payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.EventType == "" {
		writeError(w, http.StatusUnprocessableEntity, "event_type is required")
		return
	}
	s.mu.Lock()
	s.dispatches = append(s.dispatches, Dispatch{EventType: body.EventType, Payload: body.ClientPayload})
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) record(method, path string, m mutation) {
	c := Commit{Method: method, Path: path, Message: m.Message}
	if m.Committer != nil {
		c.CommitterName = m.Committer.Name
		c.CommitterEmail = m.Committer.Email
	}
	s.commits = append(s.commits, c)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"message": msg})
}

func wrap(s string, width int) string {
	var b strings.Builder
	for len(s) > width {
		b.WriteString(s[:width])
		b.WriteByte('\n')
		s = s[width:]
	}
	b.WriteString(s)
	return b.String()
}

func blobSHA(data []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(data))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
