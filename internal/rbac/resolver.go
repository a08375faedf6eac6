package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vetgrid.org/internal/ids"
	"vetgrid.org/internal/obs"
)

// Resolver computes effective permission sets and manages assignments.
type Resolver struct {
	store Store
	now   func() time.Time
}

// NewResolver constructs a Resolver.
func NewResolver(store Store, opts ...ResolverOption) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("rbac: store is required")
	}
	r := &Resolver{store: store, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithClock overrides the time source.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// UserPermissions resolves the effective permission set for userID.
// Resolution fails closed: a user with no active assignments, or any
// repository failure on this read path, yields an empty set.
func (r *Resolver) UserPermissions(ctx context.Context, userID string) (PermissionSet, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return EmptyPermissionSet(userID), fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}

	roles, err := r.store.ActiveRolesForUser(ctx, userID, r.now().UTC())
	if err != nil {
		obs.LogEvent(map[string]any{
			"level": "warn", "msg": "role resolution failed, denying all",
			"user_id": userID, "error": err.Error(),
		})
		return EmptyPermissionSet(userID), nil
	}
	if len(roles) == 0 {
		return EmptyPermissionSet(userID), nil
	}

	grants, err := r.store.ActiveGrants(ctx)
	if err != nil {
		obs.LogEvent(map[string]any{
			"level": "warn", "msg": "grant resolution failed, denying all",
			"user_id": userID, "error": err.Error(),
		})
		return EmptyPermissionSet(userID), nil
	}

	roleIDs := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		roleIDs[role.ID] = struct{}{}
	}
	var perms []Permission
	for _, g := range grants {
		if _, ok := roleIDs[g.RoleID]; !ok {
			continue
		}
		perms = append(perms, g.Permission)
	}
	return NewPermissionSet(userID, roles, perms), nil
}

// AssignRole grants roleID to userID. A still-active assignment for the
// same pair fails with ErrAlreadyAssigned; the check and the insert are
// atomic in the store.
func (r *Resolver) AssignRole(ctx context.Context, userID, roleID, assignedBy string, expiresAt *time.Time) (Assignment, error) {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	assignedBy = strings.TrimSpace(assignedBy)
	if userID == "" || roleID == "" {
		return Assignment{}, fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	now := r.now().UTC()
	if expiresAt != nil && !expiresAt.After(now) {
		return Assignment{}, fmt.Errorf("%w: expires_at must be in the future", ErrInvalidInput)
	}

	a := Assignment{
		ID:         ids.New(),
		UserID:     userID,
		RoleID:     roleID,
		AssignedBy: assignedBy,
		IsActive:   true,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
	}
	if err := r.store.CreateAssignment(ctx, a); err != nil {
		return Assignment{}, err
	}
	return a, nil
}

// RemoveRole soft-deactivates the pair's active assignments. Removing an
// already-inactive role is a no-op, not an error.
func (r *Resolver) RemoveRole(ctx context.Context, userID, roleID, removedBy string) error {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	_, err := r.store.DeactivateAssignments(ctx, userID, roleID, strings.TrimSpace(removedBy), r.now().UTC())
	return err
}
