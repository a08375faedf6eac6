package rbac

import (
	"context"
	"errors"
	"testing"
	"time"
)

func reviewerFixture(t *testing.T) (*MemoryStore, *Resolver) {
	t.Helper()
	store := NewMemoryStore()
	resolver, err := NewResolver(store)
	if err != nil {
		t.Fatal(err)
	}
	return store, resolver
}

func TestUserPermissionsFailClosed(t *testing.T) {
	_, resolver := reviewerFixture(t)

	set, err := resolver.UserPermissions(context.Background(), "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(set.Roles) != 0 || len(set.Permissions) != 0 {
		t.Fatalf("expected empty set, got %+v", set)
	}
	if set.Has(PermReviewVetRegistration) || set.Has("anything.else") {
		t.Fatal("empty set must deny everything")
	}
}

func TestUserPermissionsRequiresUserID(t *testing.T) {
	_, resolver := reviewerFixture(t)
	set, err := resolver.UserPermissions(context.Background(), "  ")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if set.Has(PermReviewVetRegistration) {
		t.Fatal("error path must still deny")
	}
}

func TestUserPermissionsFailClosedOnStoreError(t *testing.T) {
	resolver, err := NewResolver(brokenStore{})
	if err != nil {
		t.Fatal(err)
	}
	set, err := resolver.UserPermissions(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("read path must degrade, got %v", err)
	}
	if set.Has(PermReviewVetRegistration) {
		t.Fatal("store failure must deny")
	}
}

type brokenStore struct{}

func (brokenStore) ActiveRolesForUser(ctx context.Context, userID string, now time.Time) ([]Role, error) {
	return nil, errors.New("backend down")
}
func (brokenStore) ActiveGrants(ctx context.Context) ([]Grant, error) {
	return nil, errors.New("backend down")
}
func (brokenStore) CreateAssignment(ctx context.Context, a Assignment) error {
	return errors.New("backend down")
}
func (brokenStore) DeactivateAssignments(ctx context.Context, userID, roleID, removedBy string, now time.Time) (int, error) {
	return 0, errors.New("backend down")
}
func (brokenStore) EnsurePermissions(ctx context.Context, perms []Permission) error {
	return errors.New("backend down")
}

func TestUserPermissionsDeduplicatesAcrossRoles(t *testing.T) {
	ctx := context.Background()
	store, resolver := reviewerFixture(t)

	shared := store.PutPermission(Permission{Name: PermReviewRenewal, IsActive: true})
	extra := store.PutPermission(Permission{Name: PermReviewStoreActivation, IsActive: true})

	roleA := store.PutRole(Role{Name: "clinic-reviewer", IsActive: true})
	roleB := store.PutRole(Role{Name: "store-reviewer", IsActive: true})
	store.Link(roleA.ID, shared.ID, true)
	store.Link(roleB.ID, shared.ID, true)
	store.Link(roleB.ID, extra.ID, true)

	if _, err := resolver.AssignRole(ctx, "user-1", roleA.ID, "root", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := resolver.AssignRole(ctx, "user-1", roleB.ID, "root", nil); err != nil {
		t.Fatal(err)
	}

	set, err := resolver.UserPermissions(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(set.Roles) != 2 {
		t.Fatalf("expected 2 roles, got %d", len(set.Roles))
	}
	if len(set.Permissions) != 2 {
		t.Fatalf("shared permission must appear once, got %+v", set.Permissions)
	}
	if !set.Has(PermReviewRenewal) || !set.Has(PermReviewStoreActivation) {
		t.Fatalf("missing expected grants: %+v", set.Permissions)
	}
}

func TestUserPermissionsIgnoresInactiveEdges(t *testing.T) {
	ctx := context.Background()
	store, resolver := reviewerFixture(t)

	activePerm := store.PutPermission(Permission{Name: "a.active", IsActive: true})
	deadPerm := store.PutPermission(Permission{Name: "b.dead", IsActive: false})
	unlinked := store.PutPermission(Permission{Name: "c.unlinked", IsActive: true})

	role := store.PutRole(Role{Name: "reviewer", IsActive: true})
	store.Link(role.ID, activePerm.ID, true)
	store.Link(role.ID, deadPerm.ID, true)
	store.Link(role.ID, unlinked.ID, false)

	deadRole := store.PutRole(Role{Name: "retired", IsActive: false})
	store.Link(deadRole.ID, activePerm.ID, true)

	if _, err := resolver.AssignRole(ctx, "user-1", role.ID, "root", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := resolver.AssignRole(ctx, "user-1", deadRole.ID, "root", nil); err != nil {
		t.Fatal(err)
	}

	set, err := resolver.UserPermissions(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(set.Roles) != 1 {
		t.Fatalf("inactive role must be excluded, got %+v", set.Roles)
	}
	if !set.Has("a.active") || set.Has("b.dead") || set.Has("c.unlinked") {
		t.Fatalf("unexpected grants: %+v", set.Permissions)
	}
}

func TestUserPermissionsExcludesExpiredAssignments(t *testing.T) {
	ctx := context.Background()
	store, resolver := reviewerFixture(t)

	perm := store.PutPermission(Permission{Name: "x.do", IsActive: true})
	role := store.PutRole(Role{Name: "temp", IsActive: true})
	store.Link(role.ID, perm.ID, true)

	soon := time.Now().Add(time.Minute)
	if _, err := resolver.AssignRole(ctx, "user-1", role.ID, "root", &soon); err != nil {
		t.Fatal(err)
	}

	set, _ := resolver.UserPermissions(ctx, "user-1")
	if !set.Has("x.do") {
		t.Fatal("unexpired assignment must grant")
	}

	// Same resolver viewed after the expiry instant.
	late, err := NewResolver(store, WithClock(func() time.Time { return time.Now().Add(2 * time.Minute) }))
	if err != nil {
		t.Fatal(err)
	}
	set, _ = late.UserPermissions(ctx, "user-1")
	if set.Has("x.do") {
		t.Fatal("expired assignment must not grant")
	}
}

func TestAssignRoleDuplicate(t *testing.T) {
	ctx := context.Background()
	store, resolver := reviewerFixture(t)
	role := store.PutRole(Role{Name: "reviewer", IsActive: true})

	if _, err := resolver.AssignRole(ctx, "user-1", role.ID, "root", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := resolver.AssignRole(ctx, "user-1", role.ID, "root", nil); !errors.Is(err, ErrAlreadyAssigned) {
		t.Fatalf("expected already assigned, got %v", err)
	}
}

func TestAssignRemoveAssignCycle(t *testing.T) {
	ctx := context.Background()
	store, resolver := reviewerFixture(t)
	role := store.PutRole(Role{Name: "reviewer", IsActive: true})

	if _, err := resolver.AssignRole(ctx, "user-1", role.ID, "root", nil); err != nil {
		t.Fatal(err)
	}
	if err := resolver.RemoveRole(ctx, "user-1", role.ID, "root"); err != nil {
		t.Fatal(err)
	}
	// Removal is idempotent.
	if err := resolver.RemoveRole(ctx, "user-1", role.ID, "root"); err != nil {
		t.Fatalf("second remove must be a no-op, got %v", err)
	}
	if _, err := resolver.AssignRole(ctx, "user-1", role.ID, "root", nil); err != nil {
		t.Fatalf("re-assign after removal failed: %v", err)
	}
}

func TestAuthorizerRequire(t *testing.T) {
	ctx := context.Background()
	store, resolver := reviewerFixture(t)
	gate := NewAuthorizer(resolver)

	if err := gate.Require(ctx, "user-1", PermReviewVetRegistration); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected denial, got %v", err)
	}

	perm := store.PutPermission(Permission{Name: PermReviewVetRegistration, IsActive: true})
	role := store.PutRole(Role{Name: "vet-reviewer", IsActive: true})
	store.Link(role.ID, perm.ID, true)
	if _, err := resolver.AssignRole(ctx, "user-1", role.ID, "root", nil); err != nil {
		t.Fatal(err)
	}

	if err := gate.Require(ctx, "user-1", PermReviewVetRegistration); err != nil {
		t.Fatalf("expected grant, got %v", err)
	}
}

func TestEnsurePermissionsUpsert(t *testing.T) {
	ctx := context.Background()
	store, _ := reviewerFixture(t)

	if err := store.EnsurePermissions(ctx, BuiltinPermissions); err != nil {
		t.Fatal(err)
	}
	// Second run updates in place instead of duplicating.
	if err := store.EnsurePermissions(ctx, BuiltinPermissions); err != nil {
		t.Fatal(err)
	}
	grants, _ := store.ActiveGrants(ctx)
	if len(grants) != 0 {
		t.Fatalf("catalog seeding must not create grants, got %d", len(grants))
	}
	if len(store.perms) != len(BuiltinPermissions) {
		t.Fatalf("expected %d permissions, got %d", len(BuiltinPermissions), len(store.perms))
	}
}
