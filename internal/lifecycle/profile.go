package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"crewhub.dev/internal/employee"
)

// UpdateProfile applies the whitelisted patch to the actor's own record.
// Approved records are republished afterwards.
func (o *Orchestrator) UpdateProfile(ctx context.Context, id, actorID string, patch employee.ProfilePatch) (employee.Record, error) {
	ctx, cancel := o.bounded(ctx)
	defer cancel()

	if err := o.requireOwner(ctx, id, actorID, o.adminOverride); err != nil {
		return employee.Record{}, err
	}
	clean, err := cleanPatch(patch, o.avatars)
	if err != nil {
		return employee.Record{}, err
	}
	rec, err := o.load(ctx, id)
	if err != nil {
		return employee.Record{}, err
	}
	if clean.Empty() {
		return rec, nil
	}

	updated, err := o.records.Update(ctx, id, employee.Update{Patch: clean})
	if errors.Is(err, employee.ErrNotFound) {
		return employee.Record{}, fmt.Errorf("%w: employee %s", ErrNotFound, id)
	}
	if err != nil {
		return employee.Record{}, fmt.Errorf("lifecycle: update profile %s: %w", id, err)
	}
	o.audit(ctx, "lifecycle.profile.update", map[string]any{
		"employee_id": id,
		"actor_id":    actorID,
		"fields":      patchedFields(clean),
	})

	if updated.Status == employee.StatusApproved && o.publisher != nil {
		o.schedule(ctx, "profile.publish", id, func(ctx context.Context) {
			o.publisher.Sync(ctx, updated)
		})
	}
	return updated, nil
}

// Get returns a record to its owner or to an admin.
func (o *Orchestrator) Get(ctx context.Context, id, actorID string) (employee.Record, error) {
	ctx, cancel := o.bounded(ctx)
	defer cancel()

	if err := o.requireOwner(ctx, id, actorID, true); err != nil {
		return employee.Record{}, err
	}
	return o.load(ctx, id)
}

func (o *Orchestrator) requireOwner(ctx context.Context, id, actorID string, adminAllowed bool) error {
	if actorID != "" && actorID == id {
		return nil
	}
	if adminAllowed {
		ok, err := o.isAdmin(ctx, actorID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("%w: not the record owner", ErrForbidden)
}

func patchedFields(p employee.ProfilePatch) []string {
	var out []string
	set := map[string]*string{
		"first_name": p.FirstName,
		"last_name":  p.LastName,
		"phone":      p.Phone,
		"position":   p.Position,
		"bio":        p.Bio,
		"avatar_ref": p.AvatarRef,
	}
	for name, v := range set {
		if v != nil {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
