// Package contentrepo talks to a git-hosted content repository through the
// contents API. Every write is compare-and-swap on the file's blob sha.
package contentrepo

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"crewhub.dev/internal/httpx"
)

const (
	defaultBaseURL        = "https://api.github.com"
	defaultRequestTimeout = 15 * time.Second
	apiVersion            = "2022-11-28"
)

// Config describes the target repository and the actor commits are attributed to.
type Config struct {
	BaseURL        string
	Owner          string
	Repo           string
	Branch         string
	Token          string
	CommitterName  string
	CommitterEmail string

	// RequestTimeout bounds every API call including its retries.
	RequestTimeout time.Duration
	// RequestsPerSecond paces API calls. Zero disables pacing.
	RequestsPerSecond float64
}

// File is a repository file and the version tag it was read at.
type File struct {
	Path    string
	Content []byte
	Tag     string
}

// Client is a contents API client.
type Client struct {
	cfg   Config
	http  *http.Client
	retry httpx.RetryConfig
}

// Option configures Client.
type Option func(*Client)

// WithHTTPClient overrides the transport (tests, proxies).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRetry overrides the transport retry policy.
func WithRetry(cfg httpx.RetryConfig) Option {
	return func(c *Client) {
		limiter := c.retry.Limiter
		c.retry = cfg
		if c.retry.Limiter == nil {
			c.retry.Limiter = limiter
		}
	}
}

// New builds a client. A client with incomplete configuration is still usable:
// every call reports ErrUnavailable.
func New(cfg Config, opts ...Option) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	c := &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		retry: httpx.DefaultRetryConfig(),
	}
	if cfg.RequestsPerSecond > 0 {
		c.retry.Limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Available reports whether the client is configured. It does not touch the network.
func (c *Client) Available() error {
	var missing []string
	if strings.TrimSpace(c.cfg.Owner) == "" {
		missing = append(missing, "owner")
	}
	if strings.TrimSpace(c.cfg.Repo) == "" {
		missing = append(missing, "repo")
	}
	if strings.TrimSpace(c.cfg.Token) == "" {
		missing = append(missing, "token")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrUnavailable, strings.Join(missing, ", "))
	}
	return nil
}

type contentResponse struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
	SHA      string `json:"sha"`
}

// ReadFile returns the file content and its version tag.
func (c *Client) ReadFile(ctx context.Context, path string) (File, error) {
	if err := c.Available(); err != nil {
		return File{}, err
	}
	q := url.Values{"ref": {c.cfg.Branch}}
	body, err := c.do(ctx, http.MethodGet, c.contentsURL(path)+"?"+q.Encode(), nil)
	if err != nil {
		return File{}, c.mapError("read "+path, err)
	}
	var resp contentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return File{}, fmt.Errorf("contentrepo: decode %s: %w", path, err)
	}
	if resp.Type != "" && resp.Type != "file" {
		return File{}, fmt.Errorf("contentrepo: %s is a %s, not a file", path, resp.Type)
	}
	if resp.Encoding != "base64" {
		return File{}, fmt.Errorf("contentrepo: %s has unsupported encoding %q", path, resp.Encoding)
	}
	// The API wraps base64 payloads at 60 columns.
	content, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(resp.Content, "\n", ""))
	if err != nil {
		return File{}, fmt.Errorf("contentrepo: decode %s content: %w", path, err)
	}
	return File{Path: path, Content: content, Tag: resp.SHA}, nil
}

type committer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type writeRequest struct {
	Message   string     `json:"message"`
	Content   string     `json:"content,omitempty"`
	SHA       string     `json:"sha,omitempty"`
	Branch    string     `json:"branch"`
	Committer *committer `json:"committer,omitempty"`
}

type writeResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

// WriteFile stores content at path. An empty expectedTag means the file must not
// exist yet; otherwise the write succeeds only while the remote tag still equals
// expectedTag. Both violations yield ErrConflict.
func (c *Client) WriteFile(ctx context.Context, path string, content []byte, message, expectedTag string) (string, error) {
	return c.put(ctx, path, content, message, expectedTag)
}

// UploadBinary has the WriteFile contract for opaque bytes.
func (c *Client) UploadBinary(ctx context.Context, path string, data []byte, message, expectedTag string) (string, error) {
	return c.put(ctx, path, data, message, expectedTag)
}

func (c *Client) put(ctx context.Context, path string, content []byte, message, expectedTag string) (string, error) {
	if err := c.Available(); err != nil {
		return "", err
	}
	payload, err := json.Marshal(writeRequest{
		Message:   message,
		Content:   base64.StdEncoding.EncodeToString(content),
		SHA:       expectedTag,
		Branch:    c.cfg.Branch,
		Committer: c.committer(),
	})
	if err != nil {
		return "", err
	}
	body, err := c.do(ctx, http.MethodPut, c.contentsURL(path), payload)
	if err != nil {
		return "", c.mapError("write "+path, err)
	}
	var resp writeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("contentrepo: decode write response for %s: %w", path, err)
	}
	return resp.Content.SHA, nil
}

// DeleteFile removes path if its remote tag still equals tag.
func (c *Client) DeleteFile(ctx context.Context, path, message, tag string) error {
	if err := c.Available(); err != nil {
		return err
	}
	if tag == "" {
		return fmt.Errorf("%w: delete %s requires a version tag", ErrConflict, path)
	}
	payload, err := json.Marshal(writeRequest{
		Message:   message,
		SHA:       tag,
		Branch:    c.cfg.Branch,
		Committer: c.committer(),
	})
	if err != nil {
		return err
	}
	if _, err := c.do(ctx, http.MethodDelete, c.contentsURL(path), payload); err != nil {
		return c.mapError("delete "+path, err)
	}
	return nil
}

type dispatchRequest struct {
	EventType     string `json:"event_type"`
	ClientPayload any    `json:"client_payload,omitempty"`
}

// TriggerBuild sends a repository_dispatch event. It does not wait for the
// downstream build.
func (c *Client) TriggerBuild(ctx context.Context, eventType string, payload any) error {
	if err := c.Available(); err != nil {
		return err
	}
	body, err := json.Marshal(dispatchRequest{EventType: eventType, ClientPayload: payload})
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/repos/%s/%s/dispatches", c.cfg.BaseURL, url.PathEscape(c.cfg.Owner), url.PathEscape(c.cfg.Repo))
	if _, err := c.do(ctx, http.MethodPost, u, body); err != nil {
		return c.mapError("dispatch "+eventType, err)
	}
	return nil
}

func (c *Client) committer() *committer {
	if c.cfg.CommitterName == "" || c.cfg.CommitterEmail == "" {
		return nil
	}
	return &committer{Name: c.cfg.CommitterName, Email: c.cfg.CommitterEmail}
}

func (c *Client) contentsURL(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.Owner), url.PathEscape(c.cfg.Repo), strings.Join(segments, "/"))
}

func (c *Client) do(ctx context.Context, method, u string, payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	_, body, err := httpx.DoWithRetry(ctx, c.http, func(ctx context.Context) (*http.Request, error) {
		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, rd)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		req.Header.Set("X-GitHub-Api-Version", apiVersion)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	}, c.retry)
	return body, err
}

func (c *Client) mapError(op string, err error) error {
	var herr *httpx.HTTPError
	if !errors.As(err, &herr) {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}
	switch herr.StatusCode {
	case http.StatusNotFound:
		if strings.HasPrefix(op, "read ") {
			return fmt.Errorf("%w: %s", ErrNotFound, op)
		}
		return fmt.Errorf("%w: %s: status 404", ErrUnavailable, op)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, op)
	case http.StatusUnprocessableEntity:
		// Writing an existing file without its sha is rejected as a validation error.
		if bytes.Contains(bytes.ToLower(herr.Body), []byte("sha")) {
			return fmt.Errorf("%w: %s", ErrConflict, op)
		}
		return fmt.Errorf("contentrepo: %s rejected: %s", op, httpx.Snippet(herr.Body, 200))
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s: credentials rejected (status %d)", ErrUnavailable, op, herr.StatusCode)
	}
	if herr.StatusCode >= 500 || herr.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s: status %d", ErrUnavailable, op, herr.StatusCode)
	}
	return fmt.Errorf("contentrepo: %s: status %s", op, strconv.Itoa(herr.StatusCode))
}

// GitBlobTag computes the git blob sha of data, the tag the API reports for it.
func GitBlobTag(data []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(data))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
