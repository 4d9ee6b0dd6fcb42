// Package lifecycle moves employee records through registration, approval,
// rejection and disabling. Account and record changes are authoritative and
// complete before the call returns; publishing and mail run afterwards as
// isolated best-effort effects.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"crewhub.dev/internal/audit"
	"crewhub.dev/internal/auth"
	"crewhub.dev/internal/deploy"
	"crewhub.dev/internal/employee"
	"crewhub.dev/internal/notify"
	"crewhub.dev/internal/obs"
)

const (
	defaultEffectTimeout = 30 * time.Second
	defaultCallTimeout   = 15 * time.Second
)

// Accounts is the identity side of a registration.
type Accounts interface {
	CreateAccount(ctx context.Context, email, secret, displayName string, disabled bool) (string, error)
	LookupEmail(ctx context.Context, email string) (*auth.Account, error)
	SetDisabled(ctx context.Context, id string, disabled bool) error
	DeleteAccount(ctx context.Context, id string) error
}

// Publisher mirrors records into the public site.
type Publisher interface {
	Sync(ctx context.Context, rec employee.Record) deploy.Result
	Unpublish(ctx context.Context, rec employee.Record) deploy.Result
	Publish(ctx context.Context, rec employee.Record) (deploy.Result, error)
	Withdraw(ctx context.Context, rec employee.Record) (deploy.Result, error)
}

// Mailer delivers notifications without reporting errors.
type Mailer interface {
	Deliver(ctx context.Context, kind string, msg notify.Message) bool
}

// Auditor records attributed lifecycle events.
type Auditor interface {
	LogEvent(ctx context.Context, event string, fields map[string]any) error
}

// Orchestrator is the entry point for every state-changing employee operation.
type Orchestrator struct {
	accounts  Accounts
	records   employee.RecordStore
	publisher Publisher
	mailer    Mailer
	auditor   Auditor
	site      notify.Site
	avatars   deploy.AvatarPolicy

	adminOverride      bool
	unpublishOnDisable bool
	effectTimeout      time.Duration
	callTimeout        time.Duration

	effects sync.WaitGroup
}

// Option configures Orchestrator.
type Option func(*Orchestrator)

// WithAdminOverride lets admins edit any profile.
func WithAdminOverride(enabled bool) Option {
	return func(o *Orchestrator) { o.adminOverride = enabled }
}

// WithUnpublishOnDisable controls whether rejecting or disabling a previously
// approved employee withdraws the public entry. Enabled by default.
func WithUnpublishOnDisable(enabled bool) Option {
	return func(o *Orchestrator) { o.unpublishOnDisable = enabled }
}

// WithEffectTimeout bounds each best-effort effect.
func WithEffectTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.effectTimeout = d
		}
	}
}

// WithCallTimeout bounds the authoritative part of each operation.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.callTimeout = d
		}
	}
}

func WithAuditor(a Auditor) Option {
	return func(o *Orchestrator) {
		if a != nil {
			o.auditor = a
		}
	}
}

// WithAvatarPolicy sets which avatar references registrations and profile
// updates may carry. Without it every non-empty reference is rejected.
func WithAvatarPolicy(p deploy.AvatarPolicy) Option {
	return func(o *Orchestrator) { o.avatars = p }
}

// WithSite sets the branding used in notification mails.
func WithSite(site notify.Site) Option {
	return func(o *Orchestrator) { o.site = site }
}

// New wires an orchestrator. publisher and mailer may be nil; the matching
// effects are then skipped.
func New(accounts Accounts, records employee.RecordStore, publisher Publisher, mailer Mailer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		accounts:           accounts,
		records:            records,
		publisher:          publisher,
		mailer:             mailer,
		auditor:            audit.New(),
		unpublishOnDisable: true,
		effectTimeout:      defaultEffectTimeout,
		callTimeout:        defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Drain waits until every scheduled effect has finished or ctx is done.
func (o *Orchestrator) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.effects.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// schedule runs fn after the caller's transition committed. fn gets a context
// detached from the caller's cancellation and bounded by the effect timeout.
func (o *Orchestrator) schedule(ctx context.Context, name, employeeID string, fn func(ctx context.Context)) {
	detached := context.WithoutCancel(ctx)
	o.effects.Add(1)
	go func() {
		defer o.effects.Done()
		defer func() {
			if r := recover(); r != nil {
				obs.Error("lifecycle: effect panicked", map[string]any{
					"effect":      name,
					"employee_id": employeeID,
					"panic":       fmt.Sprint(r),
				})
			}
		}()
		ectx, cancel := context.WithTimeout(detached, o.effectTimeout)
		defer cancel()
		fn(ectx)
	}()
}

func (o *Orchestrator) mail(ctx context.Context, kind string, build func() (notify.Message, error)) {
	if o.mailer == nil {
		return
	}
	msg, err := build()
	if err != nil {
		obs.Warn("lifecycle: build mail failed", map[string]any{"kind": kind, "error": err})
		return
	}
	o.mailer.Deliver(ctx, kind, msg)
}

func (o *Orchestrator) audit(ctx context.Context, event string, fields map[string]any) {
	if err := o.auditor.LogEvent(ctx, event, fields); err != nil {
		obs.Warn("lifecycle: audit write failed", map[string]any{"event": event, "error": err})
	}
}

// bounded applies the call timeout to an authoritative operation.
func (o *Orchestrator) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.callTimeout)
}
