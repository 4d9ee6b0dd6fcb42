package deploy

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"crewhub.dev/internal/httpx"
)

// MaxAvatarBytes caps fetched avatars. The contents API rejects larger blobs
// for the read path we use to compare tags.
const MaxAvatarBytes = 1 << 20

// Avatar is fetched image data plus its file extension (without dot).
type Avatar struct {
	Data []byte
	Ext  string
}

// AvatarSource resolves an avatarRef to image bytes.
type AvatarSource interface {
	Fetch(ctx context.Context, ref string) (Avatar, error)
}

// ErrUnsupportedAvatar is returned for references that are not images.
var ErrUnsupportedAvatar = errors.New("deploy: unsupported avatar")

var extByType = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
}

const maxAvatarRedirects = 3

// HTTPAvatars downloads avatars over HTTP(S) from hosts the policy allows.
type HTTPAvatars struct {
	client *http.Client
	retry  httpx.RetryConfig
	policy AvatarPolicy
}

// NewHTTPAvatars builds a fetcher with the given per-attempt timeout. Every
// reference, redirect target and dialled address is checked against policy.
func NewHTTPAvatars(timeout time.Duration, policy AvatarPolicy) *HTTPAvatars {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retry := httpx.DefaultRetryConfig()
	retry.MaxBody = MaxAvatarBytes + 1
	dialer := &net.Dialer{Timeout: timeout, Control: policy.control}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
	client := &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxAvatarRedirects {
				return fmt.Errorf("%w: too many redirects", ErrUnsupportedAvatar)
			}
			return policy.Check(req.URL.String())
		},
	}
	return &HTTPAvatars{client: client, retry: retry, policy: policy}
}

func (h *HTTPAvatars) Fetch(ctx context.Context, ref string) (Avatar, error) {
	if err := h.policy.Check(ref); err != nil {
		return Avatar{}, err
	}
	u, err := url.Parse(ref)
	if err != nil {
		return Avatar{}, fmt.Errorf("%w: %v", ErrUnsupportedAvatar, err)
	}
	resp, body, err := httpx.DoWithRetry(ctx, h.client, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	}, h.retry)
	if err != nil {
		return Avatar{}, fmt.Errorf("deploy: fetch avatar: %w", err)
	}
	if len(body) > MaxAvatarBytes {
		return Avatar{}, fmt.Errorf("%w: larger than %d bytes", ErrUnsupportedAvatar, MaxAvatarBytes)
	}
	if len(body) == 0 {
		return Avatar{}, fmt.Errorf("%w: empty body", ErrUnsupportedAvatar)
	}
	ext := extensionFor(resp.Header.Get("Content-Type"), u.Path)
	if ext == "" {
		return Avatar{}, fmt.Errorf("%w: unknown image type", ErrUnsupportedAvatar)
	}
	return Avatar{Data: body, Ext: ext}, nil
}

func extensionFor(contentType, urlPath string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if ext, ok := extByType[strings.ToLower(mt)]; ok {
			return ext
		}
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(urlPath), "."))
	switch ext {
	case "jpeg":
		return "jpg"
	case "jpg", "png", "webp", "gif":
		return ext
	}
	return ""
}
