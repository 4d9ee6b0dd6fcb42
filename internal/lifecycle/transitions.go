package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"crewhub.dev/internal/auth"
	"crewhub.dev/internal/deploy"
	"crewhub.dev/internal/employee"
	"crewhub.dev/internal/notify"
	"crewhub.dev/internal/obs"
)

// Approve enables the account and marks the record approved, then publishes it
// and mails the employee. Approving an approved record changes nothing.
func (o *Orchestrator) Approve(ctx context.Context, id, actorID string) (employee.Record, error) {
	ctx, cancel := o.bounded(ctx)
	defer cancel()

	if err := o.requireAdmin(ctx, actorID); err != nil {
		return employee.Record{}, err
	}
	rec, err := o.load(ctx, id)
	if err != nil {
		return employee.Record{}, err
	}
	if rec.Status == employee.StatusApproved {
		return rec, nil
	}

	if err := o.setAccountDisabled(ctx, id, false); err != nil {
		return employee.Record{}, err
	}
	updated, err := o.setStatus(ctx, id, employee.StatusApproved)
	if err != nil {
		o.restoreAccount(ctx, id, true, err)
		return employee.Record{}, err
	}
	o.committed(ctx, "lifecycle.approve", rec, updated, actorID)

	o.schedule(ctx, "approve.publish", id, func(ctx context.Context) {
		var res deploy.Result
		if o.publisher != nil {
			res = o.publisher.Sync(ctx, updated)
		}
		o.mail(ctx, "approval", func() (notify.Message, error) { return o.site.Approval(updated, res.Slug) })
	})
	return updated, nil
}

// Reject disables the account and marks the record rejected.
func (o *Orchestrator) Reject(ctx context.Context, id, actorID string) (employee.Record, error) {
	return o.deactivate(ctx, id, actorID, employee.StatusRejected)
}

// Disable disables the account and marks the record disabled.
func (o *Orchestrator) Disable(ctx context.Context, id, actorID string) (employee.Record, error) {
	return o.deactivate(ctx, id, actorID, employee.StatusDisabled)
}

func (o *Orchestrator) deactivate(ctx context.Context, id, actorID string, to employee.Status) (employee.Record, error) {
	ctx, cancel := o.bounded(ctx)
	defer cancel()

	if err := o.requireAdmin(ctx, actorID); err != nil {
		return employee.Record{}, err
	}
	if id == actorID {
		return employee.Record{}, invalid("id", "admins cannot change their own status")
	}
	rec, err := o.load(ctx, id)
	if err != nil {
		return employee.Record{}, err
	}
	if rec.Status == to {
		return rec, nil
	}

	if err := o.setAccountDisabled(ctx, id, true); err != nil {
		return employee.Record{}, err
	}
	updated, err := o.setStatus(ctx, id, to)
	if err != nil {
		o.restoreAccount(ctx, id, rec.Status != employee.StatusApproved, err)
		return employee.Record{}, err
	}
	event := "lifecycle.disable"
	if to == employee.StatusRejected {
		event = "lifecycle.reject"
	}
	o.committed(ctx, event, rec, updated, actorID)

	withdraw := o.unpublishOnDisable && o.publisher != nil && rec.Status == employee.StatusApproved
	o.schedule(ctx, string(to)+".effects", id, func(ctx context.Context) {
		if withdraw {
			o.publisher.Unpublish(ctx, updated)
		}
		if to == employee.StatusRejected {
			o.mail(ctx, "rejection", func() (notify.Message, error) { return o.site.Rejection(updated) })
		}
	})
	return updated, nil
}

// Resync reconciles the public site with the record right now and reports the
// outcome. Approved records are published; others are withdrawn when the
// unpublish policy is on.
func (o *Orchestrator) Resync(ctx context.Context, id, actorID string) (deploy.Result, error) {
	if err := o.requireAdmin(ctx, actorID); err != nil {
		return deploy.Result{}, err
	}
	rec, err := o.load(ctx, id)
	if err != nil {
		return deploy.Result{}, err
	}
	if o.publisher == nil {
		return deploy.Result{}, errors.New("lifecycle: no publisher configured")
	}
	var res deploy.Result
	switch {
	case rec.Status == employee.StatusApproved:
		res, err = o.publisher.Publish(ctx, rec)
	case o.unpublishOnDisable:
		res, err = o.publisher.Withdraw(ctx, rec)
	default:
		return deploy.Result{}, fmt.Errorf("%w: employee %s is %s", ErrConflict, id, rec.Status)
	}
	o.audit(ctx, "lifecycle.resync", map[string]any{
		"employee_id": id,
		"action":      res.Action,
		"ok":          err == nil,
	})
	if err != nil {
		return res, fmt.Errorf("lifecycle: resync %s: %w", id, err)
	}
	return res, nil
}

func (o *Orchestrator) setAccountDisabled(ctx context.Context, id string, disabled bool) error {
	err := o.accounts.SetDisabled(ctx, id, disabled)
	if errors.Is(err, auth.ErrNotFound) {
		return fmt.Errorf("%w: account %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("lifecycle: update account %s: %w", id, err)
	}
	return nil
}

// restoreAccount puts the account back into the state matching the unchanged
// record after a failed status write.
func (o *Orchestrator) restoreAccount(ctx context.Context, id string, disabled bool, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.effectTimeout)
	defer cancel()

	fields := map[string]any{
		"employee_id": id,
		"disabled":    disabled,
		"cause":       cause,
	}
	if err := o.accounts.SetDisabled(ctx, id, disabled); err != nil {
		fields["restore_error"] = err
		obs.Error("lifecycle: account left out of step with record", fields)
		o.audit(ctx, "lifecycle.account.restore_failed", fields)
		return
	}
	o.audit(ctx, "lifecycle.account.restored", fields)
}

func (o *Orchestrator) setStatus(ctx context.Context, id string, to employee.Status) (employee.Record, error) {
	updated, err := o.records.Update(ctx, id, employee.Update{Status: &to})
	if errors.Is(err, employee.ErrNotFound) {
		return employee.Record{}, fmt.Errorf("%w: employee %s", ErrNotFound, id)
	}
	if err != nil {
		return employee.Record{}, fmt.Errorf("lifecycle: update status %s: %w", id, err)
	}
	return updated, nil
}

func (o *Orchestrator) committed(ctx context.Context, event string, before, after employee.Record, actorID string) {
	obs.LifecycleTransitions.WithLabelValues(string(after.Status)).Inc()
	o.audit(ctx, event, map[string]any{
		"employee_id": after.ID,
		"actor_id":    actorID,
		"from":        string(before.Status),
		"to":          string(after.Status),
	})
}
