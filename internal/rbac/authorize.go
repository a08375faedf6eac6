package rbac

import (
	"context"
	"fmt"
)

// Authorizer gates mutating operations behind resolved permissions.
type Authorizer struct {
	resolver *Resolver
}

// NewAuthorizer wraps a resolver.
func NewAuthorizer(resolver *Resolver) *Authorizer {
	return &Authorizer{resolver: resolver}
}

// Require returns ErrPermissionDenied unless userID's effective set
// grants the named permission. Resolution failures deny.
func (a *Authorizer) Require(ctx context.Context, userID, permission string) error {
	set, err := a.resolver.UserPermissions(ctx, userID)
	if err != nil {
		return err
	}
	if !set.Has(permission) {
		return fmt.Errorf("%w: %s requires %s", ErrPermissionDenied, userID, permission)
	}
	return nil
}
