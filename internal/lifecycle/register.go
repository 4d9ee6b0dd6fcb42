package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"crewhub.dev/internal/auth"
	"crewhub.dev/internal/employee"
	"crewhub.dev/internal/notify"
	"crewhub.dev/internal/obs"
)

// RegisterRequest is a self-service registration.
type RegisterRequest struct {
	employee.Profile
	Password string
}

// Register creates a disabled account and a pending record. If the record
// cannot be stored the account is removed again.
func (o *Orchestrator) Register(ctx context.Context, req RegisterRequest) (string, error) {
	ctx, cancel := o.bounded(ctx)
	defer cancel()

	profile := cleanProfile(req.Profile)
	if err := validateRegistration(profile, req.Password, o.avatars); err != nil {
		return "", err
	}

	switch _, err := o.accounts.LookupEmail(ctx, profile.Email); {
	case err == nil:
		return "", fmt.Errorf("%w: email already registered", ErrConflict)
	case !errors.Is(err, auth.ErrNotFound):
		return "", fmt.Errorf("lifecycle: lookup email: %w", err)
	}

	id, err := o.accounts.CreateAccount(ctx, profile.Email, req.Password, profile.DisplayName(), true)
	switch {
	case errors.Is(err, auth.ErrAlreadyExists):
		return "", fmt.Errorf("%w: email already registered", ErrConflict)
	case errors.Is(err, auth.ErrInvalidInput):
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	case err != nil:
		return "", fmt.Errorf("lifecycle: create account: %w", err)
	}

	rec, err := o.records.Create(ctx, employee.Record{
		ID:      id,
		Profile: profile,
		Role:    employee.RoleEmployee,
		Status:  employee.StatusPending,
	})
	if err != nil {
		o.compensate(ctx, id, err)
		if errors.Is(err, employee.ErrAlreadyExists) {
			return "", fmt.Errorf("%w: record %s already exists", ErrConflict, id)
		}
		return "", fmt.Errorf("lifecycle: create record: %w", err)
	}

	obs.LifecycleTransitions.WithLabelValues(string(employee.StatusPending)).Inc()
	o.audit(ctx, "lifecycle.register", map[string]any{"employee_id": id})

	o.schedule(ctx, "register.notify", id, func(ctx context.Context) {
		o.notifyAdmins(ctx, rec)
		o.mail(ctx, "welcome", func() (notify.Message, error) { return o.site.Welcome(rec) })
	})
	return id, nil
}

// compensate undoes the account half of a failed registration. When deletion
// fails the account is disabled and the outcome is audited for reconciliation.
func (o *Orchestrator) compensate(ctx context.Context, id string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.effectTimeout)
	defer cancel()

	delErr := o.accounts.DeleteAccount(ctx, id)
	if delErr == nil || errors.Is(delErr, auth.ErrNotFound) {
		o.audit(ctx, "lifecycle.register.compensated", map[string]any{
			"employee_id": id,
			"cause":       cause,
		})
		return
	}
	fields := map[string]any{
		"employee_id":  id,
		"cause":        cause,
		"delete_error": delErr,
	}
	if err := o.accounts.SetDisabled(ctx, id, true); err != nil {
		fields["disable_error"] = err
	}
	obs.Error("lifecycle: registration compensation failed", fields)
	o.audit(ctx, "lifecycle.register.compensation_failed", fields)
}

func (o *Orchestrator) notifyAdmins(ctx context.Context, rec employee.Record) {
	admins, err := o.records.ListByRole(ctx, employee.RoleAdmin)
	if err != nil {
		obs.Warn("lifecycle: list admins failed", map[string]any{"employee_id": rec.ID, "error": err})
		return
	}
	for _, admin := range admins {
		if admin.Email == "" || admin.Status != employee.StatusApproved {
			continue
		}
		o.mail(ctx, "admin_new_registration", func() (notify.Message, error) {
			return o.site.AdminNewRegistration(admin.Email, rec)
		})
	}
}
