package httpx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// scriptedTransport replays canned responses in order.
type scriptedTransport struct {
	mu        sync.Mutex
	responses []*http.Response
	errs      []error
	calls     int
}

func (s *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls >= len(s.responses) {
		return nil, errors.New("no more responses")
	}
	resp, err := s.responses[s.calls], s.errs[s.calls]
	s.calls++
	return resp, err
}

func script(responses []*http.Response, errs []error) (*http.Client, *scriptedTransport) {
	for len(errs) < len(responses) {
		errs = append(errs, nil)
	}
	tr := &scriptedTransport{responses: responses, errs: errs}
	return &http.Client{Transport: tr}, tr
}

func respond(code int, body string, headers map[string]string) *http.Response {
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	return &http.Response{StatusCode: code, Body: io.NopCloser(bytes.NewBufferString(body)), Header: h}
}

func getReq(ctx context.Context) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, "https://example.com/x", nil)
}

func fastConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	return cfg
}

func TestDoWithRetrySuccess(t *testing.T) {
	client, _ := script([]*http.Response{respond(200, `{"ok":true}`, nil)}, nil)

	resp, body, err := DoWithRetry(context.Background(), client, getReq, fastConfig())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.StatusCode != 200 || string(body) != `{"ok":true}` {
		t.Fatalf("unexpected response %d %q", resp.StatusCode, body)
	}
}

func TestDoWithRetryRetriesServerErrors(t *testing.T) {
	client, tr := script([]*http.Response{
		respond(502, "bad gateway", nil),
		respond(429, "slow down", map[string]string{"Retry-After": "0"}),
		respond(201, "created", nil),
	}, nil)

	resp, _, err := DoWithRetry(context.Background(), client, getReq, fastConfig())
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if resp.StatusCode != 201 || tr.calls != 3 {
		t.Fatalf("status=%d calls=%d", resp.StatusCode, tr.calls)
	}
}

func TestDoWithRetryDoesNotRetryConflict(t *testing.T) {
	client, tr := script([]*http.Response{
		respond(409, `{"message":"sha mismatch"}`, nil),
		respond(200, "unused", nil),
	}, nil)

	_, body, err := DoWithRetry(context.Background(), client, getReq, fastConfig())
	if StatusOf(err) != http.StatusConflict {
		t.Fatalf("expected 409 HTTPError, got %v", err)
	}
	if tr.calls != 1 {
		t.Fatalf("409 must not be retried, calls=%d", tr.calls)
	}
	if !strings.Contains(string(body), "sha mismatch") {
		t.Fatalf("body not returned: %q", body)
	}
}

func TestDoWithRetryMaxAttemptsExceeded(t *testing.T) {
	client, tr := script([]*http.Response{
		respond(500, "a", nil),
		respond(500, "b", nil),
		respond(500, "c", nil),
	}, nil)

	_, _, err := DoWithRetry(context.Background(), client, getReq, fastConfig())
	if StatusOf(err) != 500 {
		t.Fatalf("expected final 500, got %v", err)
	}
	if tr.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", tr.calls)
	}
}

func TestDoWithRetryNonRetryableNetError(t *testing.T) {
	client, tr := script([]*http.Response{nil, respond(200, "", nil)}, []error{errors.New("tls: bad certificate")})

	_, _, err := DoWithRetry(context.Background(), client, getReq, fastConfig())
	if err == nil || !strings.Contains(err.Error(), "bad certificate") {
		t.Fatalf("expected transport error, got %v", err)
	}
	if tr.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", tr.calls)
	}
}

func TestDoWithRetryHonoursLimiter(t *testing.T) {
	client, _ := script([]*http.Response{respond(200, "", nil)}, nil)
	cfg := fastConfig()
	cfg.Limiter = rate.NewLimiter(rate.Every(time.Hour), 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, _, err := DoWithRetry(ctx, client, getReq, cfg); err == nil {
		t.Fatal("expected limiter wait to fail with zero burst")
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d := ParseRetryAfter(respond(429, "", map[string]string{"Retry-After": "2"})); d != 2*time.Second {
		t.Fatalf("unexpected delay %v", d)
	}
	if d := ParseRetryAfter(respond(429, "", nil)); d != 0 {
		t.Fatalf("expected zero delay, got %v", d)
	}
}
