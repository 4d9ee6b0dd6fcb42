// Package app wires configuration into the running collaborators shared by
// the API server and the operator CLI.
package app

import (
	"database/sql"
	"errors"
	"fmt"

	"crewhub.dev/internal/audit"
	"crewhub.dev/internal/auth"
	"crewhub.dev/internal/config"
	"crewhub.dev/internal/contentrepo"
	"crewhub.dev/internal/deploy"
	"crewhub.dev/internal/employee"
	"crewhub.dev/internal/lifecycle"
	"crewhub.dev/internal/notify"
	"crewhub.dev/internal/obs"
	"crewhub.dev/internal/store/pg"
	"crewhub.dev/internal/stream"
)

// App holds the wired collaborators.
type App struct {
	Config   config.Config
	DB       *sql.DB
	Accounts *auth.Service
	Records  employee.RecordStore
	Repo     *contentrepo.Client
	Sync     *deploy.Synchronizer
	Notifier *notify.Notifier
	Audit    *audit.Log
	Events   *stream.Stream
	Life     *lifecycle.Orchestrator

	closers []func() error
}

// Build connects storage and assembles the lifecycle. Without a database
// DSN everything is kept in memory.
func Build(cfg config.Config) (*App, error) {
	a := &App{Config: cfg, Events: stream.New()}

	var accountStore auth.AccountStore
	if cfg.DatabaseDSN != "" {
		st, err := pg.Open(cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("app: open database: %w", err)
		}
		a.DB = st.DB()
		a.Records = st
		accountStore = auth.NewPGStore(st.DB())
		a.Audit = audit.New(audit.NewPGSink(st.DB()), a.Events)
		a.closers = append(a.closers, st.Close)
	} else {
		obs.Warn("app: no database configured, using in-memory stores", nil)
		a.Records = employee.NewInMemory()
		accountStore = auth.NewMemoryStore()
		a.Audit = audit.New(a.Events)
	}
	a.Accounts = auth.NewService(accountStore)

	a.Repo = contentrepo.New(contentrepo.Config{
		BaseURL:           cfg.Repo.BaseURL,
		Owner:             cfg.Repo.Owner,
		Repo:              cfg.Repo.Name,
		Branch:            cfg.Repo.Branch,
		Token:             cfg.Repo.Token,
		CommitterName:     cfg.Repo.CommitterName,
		CommitterEmail:    cfg.Repo.CommitterEmail,
		RequestTimeout:    cfg.Repo.RequestTimeout,
		RequestsPerSecond: cfg.Repo.RequestsPerSecond,
	})
	if err := a.Repo.Available(); err != nil {
		obs.Warn("app: content repository not configured, publishing disabled", map[string]any{"reason": err})
	}
	avatarPolicy := deploy.AvatarPolicy{Hosts: cfg.AvatarHosts}
	a.Sync = deploy.New(a.Repo, deploy.NewHTTPAvatars(cfg.Repo.RequestTimeout, avatarPolicy),
		deploy.WithManifestPath(cfg.Repo.ManifestPath),
		deploy.WithAvatarDir(cfg.Repo.AvatarDir),
		deploy.WithEventType(cfg.Repo.EventType),
	)

	var sender notify.Sender = notify.LogSender{}
	if cfg.SMTP.Host != "" {
		smtpSender, err := notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("app: smtp: %w", err)
		}
		sender = smtpSender
	}
	a.Notifier = notify.New(sender, cfg.EffectTimeout)

	a.Life = lifecycle.New(a.Accounts, a.Records, a.Sync, a.Notifier,
		lifecycle.WithAdminOverride(cfg.AdminOverride),
		lifecycle.WithUnpublishOnDisable(cfg.UnpublishOnDisable),
		lifecycle.WithEffectTimeout(cfg.EffectTimeout),
		lifecycle.WithAuditor(a.Audit),
		lifecycle.WithAvatarPolicy(avatarPolicy),
		lifecycle.WithSite(notify.Site{Name: cfg.Site.Name, BaseURL: cfg.Site.BaseURL}),
	)
	return a, nil
}

// Close releases storage handles.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
