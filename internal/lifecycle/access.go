package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"crewhub.dev/internal/employee"
)

func (o *Orchestrator) load(ctx context.Context, id string) (employee.Record, error) {
	if id == "" {
		return employee.Record{}, invalid("id", "is required")
	}
	rec, err := o.records.Get(ctx, id)
	if errors.Is(err, employee.ErrNotFound) {
		return employee.Record{}, fmt.Errorf("%w: employee %s", ErrNotFound, id)
	}
	if err != nil {
		return employee.Record{}, fmt.Errorf("lifecycle: load %s: %w", id, err)
	}
	return rec, nil
}

// isAdmin re-reads the actor on every call; roles are never cached.
func (o *Orchestrator) isAdmin(ctx context.Context, actorID string) (bool, error) {
	if actorID == "" {
		return false, nil
	}
	actor, err := o.records.Get(ctx, actorID)
	if errors.Is(err, employee.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lifecycle: load actor: %w", err)
	}
	return actor.IsAdmin() && actor.Status == employee.StatusApproved, nil
}

func (o *Orchestrator) requireAdmin(ctx context.Context, actorID string) error {
	ok, err := o.isAdmin(ctx, actorID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return nil
}
