// Package deploy mirrors approved employees into the content repository that
// feeds the public site: a JSON manifest, per-slug avatar files and a build event.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"crewhub.dev/internal/contentrepo"
	"crewhub.dev/internal/employee"
	"crewhub.dev/internal/obs"
)

const (
	DefaultManifestPath = "data/employees.json"
	DefaultAvatarDir    = "public/avatars"
	DefaultEventType    = "employee-updated"
	DefaultAttempts     = 3
)

// Result actions.
const (
	ActionCreated   = "created"
	ActionUpdated   = "updated"
	ActionUnchanged = "unchanged"
	ActionRemoved   = "removed"
	ActionAbsent    = "absent"
)

// Repository is the subset of the content repository client the synchronizer uses.
type Repository interface {
	Available() error
	ReadFile(ctx context.Context, path string) (contentrepo.File, error)
	WriteFile(ctx context.Context, path string, content []byte, message, expectedTag string) (string, error)
	UploadBinary(ctx context.Context, path string, data []byte, message, expectedTag string) (string, error)
	DeleteFile(ctx context.Context, path, message, tag string) error
	TriggerBuild(ctx context.Context, eventType string, payload any) error
}

// Result describes what a publish or withdraw changed.
type Result struct {
	Slug           string   `json:"slug"`
	Action         string   `json:"action"`
	Attempts       int      `json:"attempts"`
	AvatarUploaded bool     `json:"avatar_uploaded"`
	BuildTriggered bool     `json:"build_triggered"`
	Warnings       []string `json:"warnings,omitempty"`
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Synchronizer publishes and withdraws manifest entries.
type Synchronizer struct {
	repo         Repository
	avatars      AvatarSource
	manifestPath string
	avatarDir    string
	eventType    string
	attempts     int
}

// Option configures Synchronizer.
type Option func(*Synchronizer)

func WithManifestPath(p string) Option {
	return func(s *Synchronizer) {
		if p != "" {
			s.manifestPath = p
		}
	}
}

func WithAvatarDir(dir string) Option {
	return func(s *Synchronizer) {
		if dir != "" {
			s.avatarDir = strings.TrimRight(dir, "/")
		}
	}
}

func WithEventType(t string) Option {
	return func(s *Synchronizer) {
		if t != "" {
			s.eventType = t
		}
	}
}

// WithAttempts bounds the read-modify-write loop on manifest conflicts.
func WithAttempts(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// New builds a synchronizer. avatars may be nil, in which case avatars are skipped.
func New(repo Repository, avatars AvatarSource, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		repo:         repo,
		avatars:      avatars,
		manifestPath: DefaultManifestPath,
		avatarDir:    DefaultAvatarDir,
		eventType:    DefaultEventType,
		attempts:     DefaultAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync publishes rec and absorbs every failure into a log line. The returned
// Result is informational; an empty Action means nothing was published.
func (s *Synchronizer) Sync(ctx context.Context, rec employee.Record) Result {
	return s.bestEffort(ctx, "publish", rec, s.Publish)
}

// Unpublish withdraws rec and absorbs every failure into a log line.
func (s *Synchronizer) Unpublish(ctx context.Context, rec employee.Record) Result {
	return s.bestEffort(ctx, "withdraw", rec, s.Withdraw)
}

func (s *Synchronizer) bestEffort(ctx context.Context, op string, rec employee.Record, fn func(context.Context, employee.Record) (Result, error)) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			obs.SyncOutcomes.WithLabelValues(op, "panic").Inc()
			obs.Error("deploy: "+op+" panicked", map[string]any{"employee_id": rec.ID, "panic": fmt.Sprint(r)})
			res = Result{}
		}
	}()
	res, err := fn(ctx, rec)
	fields := map[string]any{
		"employee_id": rec.ID,
		"op":          op,
		"slug":        res.Slug,
		"action":      res.Action,
		"attempts":    res.Attempts,
	}
	if len(res.Warnings) > 0 {
		fields["warnings"] = res.Warnings
	}
	if err != nil {
		outcome := "failed"
		switch {
		case errors.Is(err, contentrepo.ErrUnavailable):
			outcome = "unavailable"
		case errors.Is(err, contentrepo.ErrConflict):
			outcome = "conflict"
		}
		obs.SyncOutcomes.WithLabelValues(op, outcome).Inc()
		fields["error"] = err
		obs.Warn("deploy: "+op+" skipped", fields)
		return Result{Warnings: res.Warnings}
	}
	obs.SyncOutcomes.WithLabelValues(op, res.Action).Inc()
	if len(res.Warnings) > 0 {
		obs.Warn("deploy: "+op+" completed with warnings", fields)
		return res
	}
	obs.Info("deploy: "+op+" completed", fields)
	return res
}

type manifest struct {
	entries []Entry
	tag     string
}

func (s *Synchronizer) readManifest(ctx context.Context, res *Result) (manifest, error) {
	f, err := s.repo.ReadFile(ctx, s.manifestPath)
	if errors.Is(err, contentrepo.ErrNotFound) {
		return manifest{}, nil
	}
	if err != nil {
		return manifest{}, err
	}
	entries, err := decodeManifest(f.Content)
	if err != nil {
		res.warn("manifest unreadable, rebuilding: %v", err)
		return manifest{tag: f.Tag}, nil
	}
	return manifest{entries: entries, tag: f.Tag}, nil
}

// Publish upserts rec's entry and dispatches a build. ErrUnavailable and
// exhausted conflicts are returned; avatar and dispatch failures are warnings.
func (s *Synchronizer) Publish(ctx context.Context, rec employee.Record) (Result, error) {
	var res Result
	if err := s.repo.Available(); err != nil {
		return res, err
	}
	base := employee.Slug(rec.FirstName, rec.LastName)
	var avatar avatarUpload

	for attempt := 1; attempt <= s.attempts; attempt++ {
		res.Attempts = attempt
		cur, err := s.readManifest(ctx, &res)
		if err != nil {
			return res, err
		}
		slug := resolveSlug(cur.entries, base, rec.ID)
		res.Slug = slug
		next := entryFor(rec, slug)
		idx := locate(cur.entries, rec.ID, slug)
		var prev Entry
		if idx >= 0 {
			prev = cur.entries[idx]
		}
		if prev.Slug == slug {
			next.AvatarExtension = prev.AvatarExtension
		}

		switch {
		case rec.AvatarRef == "":
			next.AvatarExtension = ""
		case avatar.slug != slug:
			avatar = s.uploadAvatar(ctx, rec, slug, &res)
		}
		if avatar.ext != "" {
			next.AvatarExtension = avatar.ext
		}

		entries := upsert(cur.entries, idx, next)
		if sameEntries(entries, cur.entries) {
			res.Action = ActionUnchanged
			if res.AvatarUploaded {
				s.dispatch(ctx, rec, slug, ActionUpdated, &res)
			}
			return res, nil
		}
		body, err := encodeManifest(entries)
		if err != nil {
			return res, err
		}
		_, err = s.repo.WriteFile(ctx, s.manifestPath, body, commitMessage("publish", slug), cur.tag)
		if errors.Is(err, contentrepo.ErrConflict) {
			obs.ManifestConflicts.Inc()
			continue
		}
		if err != nil {
			return res, err
		}
		res.Action = ActionUpdated
		if idx < 0 {
			res.Action = ActionCreated
		}
		s.dropStaleAvatar(ctx, prev, next, &res)
		s.dispatch(ctx, rec, slug, res.Action, &res)
		return res, nil
	}
	return res, fmt.Errorf("deploy: manifest still stale after %d attempts: %w", s.attempts, contentrepo.ErrConflict)
}

// Withdraw removes rec's entry and avatar. A missing entry is not an error.
func (s *Synchronizer) Withdraw(ctx context.Context, rec employee.Record) (Result, error) {
	var res Result
	if err := s.repo.Available(); err != nil {
		return res, err
	}
	base := employee.Slug(rec.FirstName, rec.LastName)
	res.Slug = base

	for attempt := 1; attempt <= s.attempts; attempt++ {
		res.Attempts = attempt
		cur, err := s.readManifest(ctx, &res)
		if err != nil {
			return res, err
		}
		kept, removed := without(cur.entries, rec.ID, base)
		if len(removed) == 0 {
			res.Action = ActionAbsent
			return res, nil
		}
		res.Slug = removed[0].Slug
		body, err := encodeManifest(kept)
		if err != nil {
			return res, err
		}
		_, err = s.repo.WriteFile(ctx, s.manifestPath, body, commitMessage("withdraw", res.Slug), cur.tag)
		if errors.Is(err, contentrepo.ErrConflict) {
			obs.ManifestConflicts.Inc()
			continue
		}
		if err != nil {
			return res, err
		}
		res.Action = ActionRemoved
		for _, e := range removed {
			if e.AvatarExtension != "" {
				s.deleteAvatar(ctx, s.avatarPath(e.Slug, e.AvatarExtension), &res)
			}
		}
		s.dispatch(ctx, rec, res.Slug, ActionRemoved, &res)
		return res, nil
	}
	return res, fmt.Errorf("deploy: manifest still stale after %d attempts: %w", s.attempts, contentrepo.ErrConflict)
}

type avatarUpload struct {
	slug string
	ext  string
}

// uploadAvatar stores the avatar under the slug path. Failures leave ext empty
// so the caller keeps the previously published extension.
func (s *Synchronizer) uploadAvatar(ctx context.Context, rec employee.Record, slug string, res *Result) avatarUpload {
	done := avatarUpload{slug: slug}
	if s.avatars == nil {
		return done
	}
	av, err := s.avatars.Fetch(ctx, rec.AvatarRef)
	if err != nil {
		res.warn("avatar fetch: %v", err)
		return done
	}
	p := s.avatarPath(slug, av.Ext)
	want := contentrepo.GitBlobTag(av.Data)
	for try := 0; try < 2; try++ {
		tag := ""
		f, err := s.repo.ReadFile(ctx, p)
		switch {
		case err == nil:
			tag = f.Tag
		case !errors.Is(err, contentrepo.ErrNotFound):
			res.warn("avatar read %s: %v", p, err)
			return done
		}
		if tag == want {
			done.ext = av.Ext
			return done
		}
		_, err = s.repo.UploadBinary(ctx, p, av.Data, commitMessage("avatar", slug), tag)
		if errors.Is(err, contentrepo.ErrConflict) {
			continue
		}
		if err != nil {
			res.warn("avatar upload %s: %v", p, err)
			return done
		}
		done.ext = av.Ext
		res.AvatarUploaded = true
		return done
	}
	res.warn("avatar upload %s: %v", p, contentrepo.ErrConflict)
	return done
}

// dropStaleAvatar deletes the avatar file prev pointed at once the manifest no
// longer references it.
func (s *Synchronizer) dropStaleAvatar(ctx context.Context, prev, next Entry, res *Result) {
	if prev.AvatarExtension == "" {
		return
	}
	old := s.avatarPath(prev.Slug, prev.AvatarExtension)
	if next.AvatarExtension != "" && s.avatarPath(next.Slug, next.AvatarExtension) == old {
		return
	}
	s.deleteAvatar(ctx, old, res)
}

func (s *Synchronizer) deleteAvatar(ctx context.Context, p string, res *Result) {
	f, err := s.repo.ReadFile(ctx, p)
	if errors.Is(err, contentrepo.ErrNotFound) {
		return
	}
	if err != nil {
		res.warn("avatar read %s: %v", p, err)
		return
	}
	if err := s.repo.DeleteFile(ctx, p, commitMessage("remove avatar", path.Base(p)), f.Tag); err != nil {
		res.warn("avatar delete %s: %v", p, err)
	}
}

type buildPayload struct {
	Slug   string `json:"slug"`
	UID    string `json:"uid"`
	Name   string `json:"name"`
	Title  string `json:"title"`
	Action string `json:"action"`
}

func (s *Synchronizer) dispatch(ctx context.Context, rec employee.Record, slug, action string, res *Result) {
	err := s.repo.TriggerBuild(ctx, s.eventType, buildPayload{
		Slug:   slug,
		UID:    rec.ID,
		Name:   rec.DisplayName(),
		Title:  rec.Position,
		Action: action,
	})
	if err != nil {
		res.warn("build trigger: %v", err)
		return
	}
	res.BuildTriggered = true
}

func (s *Synchronizer) avatarPath(slug, ext string) string {
	return s.avatarDir + "/" + slug + "." + ext
}

func commitMessage(op, subject string) string {
	return fmt.Sprintf("crewhub: %s %s", op, subject)
}
