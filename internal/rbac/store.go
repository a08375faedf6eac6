package rbac

import (
	"context"
	"time"
)

// Store describes persistence operations required by the resolver.
type Store interface {
	// ActiveRolesForUser returns active roles granted through active,
	// unexpired assignments.
	ActiveRolesForUser(ctx context.Context, userID string, now time.Time) ([]Role, error)
	// ActiveGrants returns every active role-permission edge whose
	// permission is itself active.
	ActiveGrants(ctx context.Context) ([]Grant, error)
	// CreateAssignment inserts a new active assignment. The duplicate
	// check against existing active rows for the same (user, role) pair
	// and the insert must be one atomic unit; a duplicate surfaces as
	// ErrAlreadyAssigned.
	CreateAssignment(ctx context.Context, a Assignment) error
	// DeactivateAssignments soft-deactivates all active assignments for
	// the pair and returns how many rows it touched.
	DeactivateAssignments(ctx context.Context, userID, roleID, removedBy string, now time.Time) (int, error)
	// EnsurePermissions upserts the builtin permission catalog.
	EnsurePermissions(ctx context.Context, perms []Permission) error
}
