package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"crewhub.dev/internal/contentrepo"
	"crewhub.dev/internal/contentrepo/contentrepotest"
	"crewhub.dev/internal/employee"
	"crewhub.dev/internal/httpx"
)

type stubAvatars struct {
	mu    sync.Mutex
	byRef map[string]Avatar
	calls int
}

func (s *stubAvatars) Fetch(_ context.Context, ref string) (Avatar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	av, ok := s.byRef[ref]
	if !ok {
		return Avatar{}, errors.New("no such avatar")
	}
	return av, nil
}

func setup(t *testing.T, avatars AvatarSource) (*Synchronizer, *contentrepotest.Server) {
	t.Helper()
	srv := contentrepotest.NewServer("acme", "site", "tok")
	t.Cleanup(srv.Close)
	client := contentrepo.New(contentrepo.Config{
		BaseURL:        srv.URL,
		Owner:          "acme",
		Repo:           "site",
		Token:          "tok",
		CommitterName:  "crewhub",
		CommitterEmail: "bot@crewhub.dev",
	}, contentrepo.WithRetry(httpx.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Retry5xx: true}))
	return New(client, avatars), srv
}

func record(id, first, last string) employee.Record {
	return employee.Record{
		ID: id,
		Profile: employee.Profile{
			FirstName: first,
			LastName:  last,
			Email:     strings.ToLower(first) + "@x.de",
			Phone:     "+49 30 1234",
			Position:  "Installateur",
		},
		Role:     employee.RoleEmployee,
		Status:   employee.StatusApproved,
		Approved: true,
	}
}

func manifestOf(t *testing.T, srv *contentrepotest.Server) []Entry {
	t.Helper()
	raw, _, ok := srv.File(DefaultManifestPath)
	if !ok {
		return nil
	}
	var out []Entry
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("manifest is not json: %v\n%s", err, raw)
	}
	return out
}

func TestPublishCreatesEntryAndDispatches(t *testing.T) {
	s, srv := setup(t, nil)
	res, err := s.Publish(context.Background(), record("01HX0000000000000000MAXMUS", "Max", "Muster"))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if res.Action != ActionCreated || res.Slug != "max-muster" || !res.BuildTriggered {
		t.Fatalf("unexpected result: %+v", res)
	}
	got := manifestOf(t, srv)
	want := Entry{Slug: "max-muster", UID: "01HX0000000000000000MAXMUS", Name: "Max Muster", Title: "Installateur", Phone: "+49 30 1234", Email: "max@x.de"}
	if len(got) != 1 || got[0] != want {
		t.Fatalf("unexpected manifest: %+v", got)
	}
	d := srv.Dispatches()
	if len(d) != 1 || d[0].EventType != DefaultEventType {
		t.Fatalf("unexpected dispatches: %+v", d)
	}
	var payload buildPayload
	if err := json.Unmarshal(d[0].Payload, &payload); err != nil || payload.Slug != "max-muster" || payload.Action != ActionCreated {
		t.Fatalf("unexpected payload %s: %v", d[0].Payload, err)
	}
}

func TestPublishIsIdempotent(t *testing.T) {
	s, srv := setup(t, nil)
	rec := record("u-1", "Max", "Muster")
	if _, err := s.Publish(context.Background(), rec); err != nil {
		t.Fatalf("first: %v", err)
	}
	res, err := s.Publish(context.Background(), rec)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if res.Action != ActionUnchanged || res.BuildTriggered {
		t.Fatalf("second publish should be a no-op: %+v", res)
	}
	if n := len(srv.Commits()); n != 1 {
		t.Fatalf("expected 1 commit, got %d", n)
	}
	if n := len(manifestOf(t, srv)); n != 1 {
		t.Fatalf("expected 1 entry, got %d", n)
	}
}

func TestPublishRetriesOnConflict(t *testing.T) {
	s, srv := setup(t, nil)
	other, _ := encodeManifest([]Entry{{Slug: "erika-muster", UID: "u-2", Name: "Erika Muster"}})
	var once sync.Once
	srv.BeforePut(func(p string) {
		if p == DefaultManifestPath {
			once.Do(func() { srv.Seed(DefaultManifestPath, other) })
		}
	})

	res, err := s.Publish(context.Background(), record("u-1", "Max", "Muster"))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if res.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", res.Attempts)
	}
	got := manifestOf(t, srv)
	if len(got) != 2 {
		t.Fatalf("expected both entries, got %+v", got)
	}
	mine := 0
	for _, e := range got {
		if e.UID == "u-1" {
			mine++
		}
	}
	if mine != 1 {
		t.Fatalf("expected exactly one entry for u-1, got %d", mine)
	}
}

func TestPublishGivesUpAfterBoundedAttempts(t *testing.T) {
	s, srv := setup(t, nil)
	n := 0
	srv.BeforePut(func(p string) {
		n++
		srv.Seed(DefaultManifestPath, []byte("[]\n"+strings.Repeat(" ", n)))
	})
	res, err := s.Publish(context.Background(), record("u-1", "Max", "Muster"))
	if !errors.Is(err, contentrepo.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if res.Attempts != DefaultAttempts {
		t.Fatalf("expected %d attempts, got %d", DefaultAttempts, res.Attempts)
	}
}

func TestConcurrentPublishKeepsBothEntries(t *testing.T) {
	s, srv := setup(t, nil)
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, rec := range []employee.Record{record("u-1", "Max", "Muster"), record("u-2", "Erika", "Mustermann")} {
		wg.Add(1)
		go func(rec employee.Record) {
			defer wg.Done()
			_, err := s.Publish(context.Background(), rec)
			errs <- err
		}(rec)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if got := manifestOf(t, srv); len(got) != 2 {
		t.Fatalf("expected 2 entries, got %+v", got)
	}
}

func TestSlugCollisionGetsUIDSuffix(t *testing.T) {
	s, srv := setup(t, nil)
	ctx := context.Background()
	if _, err := s.Publish(ctx, record("01HXAAAAAAAAAAAAAAAAAAAAAA", "Max", "Muster")); err != nil {
		t.Fatal(err)
	}
	res, err := s.Publish(ctx, record("01HXBBBBBBBBBBBBBBBBBBQ7ZK", "Max", "Muster"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Slug != "max-muster-bbq7zk" {
		t.Fatalf("unexpected slug %q", res.Slug)
	}
	if got := manifestOf(t, srv); len(got) != 2 || got[0].Slug != "max-muster" {
		t.Fatalf("first employee must keep the base slug: %+v", got)
	}
}

func TestRenameReplacesEntryByUID(t *testing.T) {
	s, srv := setup(t, nil)
	ctx := context.Background()
	rec := record("u-1", "Max", "Muster")
	if _, err := s.Publish(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.LastName = "Schmidt"
	res, err := s.Publish(ctx, rec)
	if err != nil {
		t.Fatal(err)
	}
	got := manifestOf(t, srv)
	if res.Action != ActionUpdated || len(got) != 1 || got[0].Slug != "max-schmidt" {
		t.Fatalf("unexpected: %+v %+v", res, got)
	}
}

func TestCorruptManifestIsRebuilt(t *testing.T) {
	s, srv := setup(t, nil)
	srv.Seed(DefaultManifestPath, []byte("{not json"))
	res, err := s.Publish(context.Background(), record("u-1", "Max", "Muster"))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected a warning about the unreadable manifest")
	}
	if got := manifestOf(t, srv); len(got) != 1 {
		t.Fatalf("expected rebuilt manifest, got %+v", got)
	}
}

func TestUnavailableThenRecovered(t *testing.T) {
	s, srv := setup(t, nil)
	rec := record("u-1", "Max", "Muster")
	srv.SetUnavailable(true)
	if _, err := s.Publish(context.Background(), rec); !errors.Is(err, contentrepo.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if res := s.Sync(context.Background(), rec); res.Action != "" {
		t.Fatalf("sync against an unavailable repository should publish nothing: %+v", res)
	}

	srv.SetUnavailable(false)
	if _, err := s.Publish(context.Background(), rec); err != nil {
		t.Fatalf("publish after recovery: %v", err)
	}
	if got := manifestOf(t, srv); len(got) != 1 {
		t.Fatalf("expected one entry, got %+v", got)
	}
}

func TestUnconfiguredRepositoryIsUnavailable(t *testing.T) {
	s := New(contentrepo.New(contentrepo.Config{}), nil)
	if _, err := s.Publish(context.Background(), record("u-1", "Max", "Muster")); !errors.Is(err, contentrepo.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestAvatarUploadedOnceByContent(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfake")
	avatars := &stubAvatars{byRef: map[string]Avatar{"https://cdn/max.png": {Data: png, Ext: "png"}}}
	s, srv := setup(t, avatars)
	rec := record("u-1", "Max", "Muster")
	rec.AvatarRef = "https://cdn/max.png"

	res, err := s.Publish(context.Background(), rec)
	if err != nil {
		t.Fatal(err)
	}
	if !res.AvatarUploaded {
		t.Fatalf("expected avatar upload: %+v", res)
	}
	data, _, ok := srv.File("public/avatars/max-muster.png")
	if !ok || string(data) != string(png) {
		t.Fatal("avatar not stored under the slug path")
	}
	if got := manifestOf(t, srv); got[0].AvatarExtension != "png" {
		t.Fatalf("expected png extension: %+v", got)
	}

	before := len(srv.Commits())
	res, err = s.Publish(context.Background(), rec)
	if err != nil {
		t.Fatal(err)
	}
	if res.AvatarUploaded || len(srv.Commits()) != before {
		t.Fatalf("identical avatar must not be re-uploaded: %+v", res)
	}
}

func TestAvatarFailureKeepsManifestUpdate(t *testing.T) {
	s, srv := setup(t, &stubAvatars{byRef: map[string]Avatar{}})
	rec := record("u-1", "Max", "Muster")
	rec.AvatarRef = "https://cdn/missing.png"
	res, err := s.Publish(context.Background(), rec)
	if err != nil {
		t.Fatalf("avatar failure must not fail publish: %v", err)
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected avatar warning")
	}
	got := manifestOf(t, srv)
	if len(got) != 1 || got[0].AvatarExtension != "" {
		t.Fatalf("unexpected manifest: %+v", got)
	}
}

func TestWithdrawRemovesEntryAndAvatar(t *testing.T) {
	avatars := &stubAvatars{byRef: map[string]Avatar{"https://cdn/max.jpg": {Data: []byte("jpeg"), Ext: "jpg"}}}
	s, srv := setup(t, avatars)
	ctx := context.Background()
	rec := record("u-1", "Max", "Muster")
	rec.AvatarRef = "https://cdn/max.jpg"
	if _, err := s.Publish(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Publish(ctx, record("u-2", "Erika", "Mustermann")); err != nil {
		t.Fatal(err)
	}

	res, err := s.Withdraw(ctx, rec)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if res.Action != ActionRemoved {
		t.Fatalf("unexpected result %+v", res)
	}
	got := manifestOf(t, srv)
	if len(got) != 1 || got[0].UID != "u-2" {
		t.Fatalf("unexpected manifest: %+v", got)
	}
	if _, _, ok := srv.File("public/avatars/max-muster.jpg"); ok {
		t.Fatal("avatar should be deleted")
	}

	res, err = s.Withdraw(ctx, rec)
	if err != nil || res.Action != ActionAbsent {
		t.Fatalf("second withdraw should be a no-op: %+v %v", res, err)
	}
}

type panickyRepo struct{ Repository }

func (panickyRepo) Available() error { panic("boom") }

func TestSyncNeverPanics(t *testing.T) {
	s := New(panickyRepo{}, nil)
	if res := s.Sync(context.Background(), record("u-1", "Max", "Muster")); res.Action != "" {
		t.Fatalf("panicking sync should report nothing published: %+v", res)
	}
	s.Unpublish(context.Background(), record("u-1", "Max", "Muster"))
}

func TestHTTPAvatars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("png-bytes"))
		case "/photo.jpeg":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write([]byte("jpeg-bytes"))
		case "/doc":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	h := NewHTTPAvatars(time.Second, AvatarPolicy{Hosts: []string{"127.0.0.1"}, AllowPrivate: true})
	ctx := context.Background()

	av, err := h.Fetch(ctx, srv.URL+"/a.png")
	if err != nil || av.Ext != "png" || string(av.Data) != "png-bytes" {
		t.Fatalf("png: %+v %v", av, err)
	}
	if av, err := h.Fetch(ctx, srv.URL+"/photo.jpeg"); err != nil || av.Ext != "jpg" {
		t.Fatalf("jpeg by extension: %+v %v", av, err)
	}
	if _, err := h.Fetch(ctx, srv.URL+"/doc"); !errors.Is(err, ErrUnsupportedAvatar) {
		t.Fatalf("expected ErrUnsupportedAvatar, got %v", err)
	}
	if _, err := h.Fetch(ctx, "blob:abc"); !errors.Is(err, ErrUnsupportedAvatar) {
		t.Fatalf("expected ErrUnsupportedAvatar, got %v", err)
	}
	if _, err := h.Fetch(ctx, srv.URL+"/missing.png"); httpx.StatusOf(err) != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHTTPAvatarsRefusesInternalAddresses(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/metadata/token":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("SECRET-TOKEN=abc123"))
		case "/hop":
			http.Redirect(w, r, "http://169.254.169.254/latest/meta-data", http.StatusFound)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	ctx := context.Background()

	// IP literal on loopback, even when the literal is on the host list.
	h := NewHTTPAvatars(time.Second, AvatarPolicy{Hosts: []string{"127.0.0.1"}})
	if _, err := h.Fetch(ctx, srv.URL+"/metadata/token"); !errors.Is(err, ErrAvatarNotAllowed) {
		t.Fatalf("loopback literal: expected ErrAvatarNotAllowed, got %v", err)
	}

	// A name that resolves to loopback is refused when dialling.
	byName := strings.Replace(srv.URL, "127.0.0.1", "localhost", 1)
	h = NewHTTPAvatars(time.Second, AvatarPolicy{Hosts: []string{"localhost"}})
	if _, err := h.Fetch(ctx, byName+"/metadata/token"); !errors.Is(err, ErrAvatarNotAllowed) {
		t.Fatalf("loopback by name: expected ErrAvatarNotAllowed, got %v", err)
	}

	// Hosts outside the list are never contacted.
	h = NewHTTPAvatars(time.Second, AvatarPolicy{Hosts: []string{"cdn.example.com"}, AllowPrivate: true})
	if _, err := h.Fetch(ctx, srv.URL+"/metadata/token"); !errors.Is(err, ErrAvatarNotAllowed) {
		t.Fatalf("unlisted host: expected ErrAvatarNotAllowed, got %v", err)
	}

	// Redirects are re-checked.
	h = NewHTTPAvatars(time.Second, AvatarPolicy{Hosts: []string{"127.0.0.1"}, AllowPrivate: true})
	if _, err := h.Fetch(ctx, srv.URL+"/hop"); !errors.Is(err, ErrAvatarNotAllowed) {
		t.Fatalf("redirect: expected ErrAvatarNotAllowed, got %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("expected only the redirecting request to reach the server, got %d", n)
	}
}

func TestAvatarPolicyCheck(t *testing.T) {
	p := AvatarPolicy{Hosts: []string{"cdn.example.com", "*.images.example.org"}}
	cases := []struct {
		ref  string
		want error
	}{
		{"https://cdn.example.com/a.png", nil},
		{"https://CDN.example.com./a.png", nil},
		{"https://eu.images.example.org/a.png", nil},
		{"https://images.example.org/a.png", ErrAvatarNotAllowed},
		{"https://evil.example.com/a.png", ErrAvatarNotAllowed},
		{"https://cdn.example.com.evil.net/a.png", ErrAvatarNotAllowed},
		{"https://user:pw@cdn.example.com/a.png", ErrAvatarNotAllowed},
		{"http://10.0.0.7/a.png", ErrAvatarNotAllowed},
		{"file:///etc/passwd", ErrUnsupportedAvatar},
		{"cdn.example.com/a.png", ErrUnsupportedAvatar},
	}
	for _, tc := range cases {
		err := p.Check(tc.ref)
		if tc.want == nil && err != nil {
			t.Fatalf("Check(%q) = %v, want nil", tc.ref, err)
		}
		if tc.want != nil && !errors.Is(err, tc.want) {
			t.Fatalf("Check(%q) = %v, want %v", tc.ref, err, tc.want)
		}
	}
	if err := (AvatarPolicy{}).Check("https://cdn.example.com/a.png"); !errors.Is(err, ErrAvatarNotAllowed) {
		t.Fatalf("zero policy must allow nothing, got %v", err)
	}
}

func TestBlockedIP(t *testing.T) {
	for ip, want := range map[string]bool{
		"127.0.0.1":       true,
		"::1":             true,
		"10.1.2.3":        true,
		"192.168.0.10":    true,
		"169.254.169.254": true,
		"100.64.0.1":      true,
		"0.0.0.0":         true,
		"fd00::1":         true,
		"93.184.216.34":   false,
		"2606:4700::1111": false,
	} {
		if got := blockedIP(net.ParseIP(ip)); got != want {
			t.Fatalf("blockedIP(%s) = %v, want %v", ip, got, want)
		}
	}
}

func TestPathUnsafeNameStaysInsideAvatarDir(t *testing.T) {
	avatars := &stubAvatars{byRef: map[string]Avatar{"https://cdn/x.png": {Data: []byte("png"), Ext: "png"}}}
	s, srv := setup(t, avatars)
	rec := record("u-1", "../../.github/x", "Muster")
	rec.AvatarRef = "https://cdn/x.png"

	res, err := s.Publish(context.Background(), rec)
	if err != nil {
		t.Fatal(err)
	}
	if res.Slug != "github-x-muster" {
		t.Fatalf("unexpected slug %q", res.Slug)
	}
	for _, p := range srv.Paths() {
		if strings.Contains(p, "..") || (p != DefaultManifestPath && !strings.HasPrefix(p, "public/avatars/")) {
			t.Fatalf("write escaped the site layout: %q", p)
		}
	}
	if _, _, ok := srv.File("public/avatars/github-x-muster.png"); !ok {
		t.Fatalf("avatar missing, paths: %v", srv.Paths())
	}
}

func TestAvatarExtensionChangeRemovesOldFile(t *testing.T) {
	avatars := &stubAvatars{byRef: map[string]Avatar{
		"https://cdn/max.png": {Data: []byte("png"), Ext: "png"},
		"https://cdn/max.jpg": {Data: []byte("jpeg"), Ext: "jpg"},
	}}
	s, srv := setup(t, avatars)
	ctx := context.Background()
	rec := record("u-1", "Max", "Muster")
	rec.AvatarRef = "https://cdn/max.png"
	if _, err := s.Publish(ctx, rec); err != nil {
		t.Fatal(err)
	}

	rec.AvatarRef = "https://cdn/max.jpg"
	if _, err := s.Publish(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if _, _, ok := srv.File("public/avatars/max-muster.png"); ok {
		t.Fatal("old png should be deleted")
	}
	if _, _, ok := srv.File("public/avatars/max-muster.jpg"); !ok {
		t.Fatal("new jpg missing")
	}
	if got := manifestOf(t, srv); got[0].AvatarExtension != "jpg" {
		t.Fatalf("unexpected manifest: %+v", got)
	}
}

func TestClearedAvatarRemovesFile(t *testing.T) {
	avatars := &stubAvatars{byRef: map[string]Avatar{"https://cdn/max.png": {Data: []byte("png"), Ext: "png"}}}
	s, srv := setup(t, avatars)
	ctx := context.Background()
	rec := record("u-1", "Max", "Muster")
	rec.AvatarRef = "https://cdn/max.png"
	if _, err := s.Publish(ctx, rec); err != nil {
		t.Fatal(err)
	}

	rec.AvatarRef = ""
	if _, err := s.Publish(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if _, _, ok := srv.File("public/avatars/max-muster.png"); ok {
		t.Fatal("cleared avatar should be deleted")
	}
	if got := manifestOf(t, srv); got[0].AvatarExtension != "" {
		t.Fatalf("unexpected manifest: %+v", got)
	}
}

func TestRenameMovesAvatar(t *testing.T) {
	avatars := &stubAvatars{byRef: map[string]Avatar{"https://cdn/max.png": {Data: []byte("png"), Ext: "png"}}}
	s, srv := setup(t, avatars)
	ctx := context.Background()
	rec := record("u-1", "Max", "Muster")
	rec.AvatarRef = "https://cdn/max.png"
	if _, err := s.Publish(ctx, rec); err != nil {
		t.Fatal(err)
	}

	rec.LastName = "Schmidt"
	if _, err := s.Publish(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if _, _, ok := srv.File("public/avatars/max-muster.png"); ok {
		t.Fatal("avatar under the old slug should be deleted")
	}
	if _, _, ok := srv.File("public/avatars/max-schmidt.png"); !ok {
		t.Fatal("avatar under the new slug missing")
	}
}

func TestDisambiguatedSlugSurvivesWithdrawOfOriginal(t *testing.T) {
	s, srv := setup(t, nil)
	ctx := context.Background()
	first := record("01HXAAAAAAAAAAAAAAAAAAAAAA", "Max", "Muster")
	second := record("01HXBBBBBBBBBBBBBBBBBBQ7ZK", "Max", "Muster")
	if _, err := s.Publish(ctx, first); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Publish(ctx, second); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Withdraw(ctx, first); err != nil {
		t.Fatal(err)
	}

	second.Position = "Meister"
	res, err := s.Publish(ctx, second)
	if err != nil {
		t.Fatal(err)
	}
	if res.Slug != "max-muster-bbq7zk" || res.Action != ActionUpdated {
		t.Fatalf("published slug must not revert: %+v", res)
	}
	if got := manifestOf(t, srv); len(got) != 1 || got[0].Slug != "max-muster-bbq7zk" {
		t.Fatalf("unexpected manifest: %+v", got)
	}
}
