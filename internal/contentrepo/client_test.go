package contentrepo

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"crewhub.dev/internal/contentrepo/contentrepotest"
	"crewhub.dev/internal/httpx"
)

func newTestClient(t *testing.T) (*Client, *contentrepotest.Server) {
	t.Helper()
	srv := contentrepotest.NewServer("acme", "site", "tok")
	t.Cleanup(srv.Close)
	c := New(Config{
		BaseURL:        srv.URL,
		Owner:          "acme",
		Repo:           "site",
		Token:          "tok",
		CommitterName:  "crewhub",
		CommitterEmail: "bot@crewhub.dev",
	}, WithRetry(httpx.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Retry5xx: true}))
	return c, srv
}

func TestReadMissingIsNotFound(t *testing.T) {
	c, _ := newTestClient(t)
	_, err := c.ReadFile(context.Background(), "data/employees.json")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()
	content := []byte(strings.Repeat("[]", 80))

	tag, err := c.WriteFile(ctx, "data/employees.json", content, "create", "")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if tag != GitBlobTag(content) {
		t.Fatalf("tag mismatch: %s vs %s", tag, GitBlobTag(content))
	}
	f, err := c.ReadFile(ctx, "data/employees.json")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(f.Content) != string(content) || f.Tag != tag {
		t.Fatalf("unexpected file: %+v", f)
	}
	commits := srv.Commits()
	if len(commits) != 1 || commits[0].CommitterEmail != "bot@crewhub.dev" || commits[0].Message != "create" {
		t.Fatalf("unexpected commits: %+v", commits)
	}
}

func TestWriteStaleTagConflicts(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()
	old := srv.Seed("data/employees.json", []byte("[]"))

	if _, err := c.WriteFile(ctx, "data/employees.json", []byte(`[{"a":1}]`), "first", old); err != nil {
		t.Fatalf("first write: %v", err)
	}
	_, err := c.WriteFile(ctx, "data/employees.json", []byte(`[{"b":2}]`), "second", old)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	content, _, _ := srv.File("data/employees.json")
	if string(content) != `[{"a":1}]` {
		t.Fatalf("stale write must not apply, got %s", content)
	}
}

func TestCreateOverExistingConflicts(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Seed("img/a.png", []byte{1, 2, 3})
	_, err := c.UploadBinary(context.Background(), "img/a.png", []byte{4}, "upload", "")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestDeleteFile(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()
	tag := srv.Seed("img/a.png", []byte{1})

	if err := c.DeleteFile(ctx, "img/a.png", "remove", "bogus"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := c.DeleteFile(ctx, "img/a.png", "remove", tag); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, ok := srv.File("img/a.png"); ok {
		t.Fatal("file still present")
	}
}

func TestTriggerBuild(t *testing.T) {
	c, srv := newTestClient(t)
	if err := c.TriggerBuild(context.Background(), "employee-updated", map[string]string{"slug": "max-muster"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	d := srv.Dispatches()
	if len(d) != 1 || d[0].EventType != "employee-updated" || !strings.Contains(string(d[0].Payload), "max-muster") {
		t.Fatalf("unexpected dispatches: %+v", d)
	}
}

func TestBadCredentialsAreUnavailable(t *testing.T) {
	srv := contentrepotest.NewServer("acme", "site", "tok")
	defer srv.Close()
	c := New(Config{BaseURL: srv.URL, Owner: "acme", Repo: "site", Token: "wrong"})
	_, err := c.ReadFile(context.Background(), "x.json")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestRetriesThenUnavailable(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Seed("x.json", []byte("{}"))

	srv.FailNext(http.StatusBadGateway)
	if _, err := c.ReadFile(context.Background(), "x.json"); err != nil {
		t.Fatalf("single 502 should be retried: %v", err)
	}

	srv.SetUnavailable(true)
	_, err := c.ReadFile(context.Background(), "x.json")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestMissingConfigIsUnavailable(t *testing.T) {
	c := New(Config{Owner: "acme"})
	err := c.Available()
	if !errors.Is(err, ErrUnavailable) || !strings.Contains(err.Error(), "repo, token") {
		t.Fatalf("unexpected: %v", err)
	}
	if _, err := c.WriteFile(context.Background(), "a", nil, "m", ""); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestGitBlobTag(t *testing.T) {
	// git hash-object of an empty blob.
	if got := GitBlobTag(nil); got != "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391" {
		t.Fatalf("unexpected empty blob sha %s", got)
	}
}
