package rbac

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vetgrid.org/internal/ids"
)

// MemoryStore implements Store with in-process concurrency safety.
// Used by tests and DSN-less local runs.
type MemoryStore struct {
	mu          sync.RWMutex
	roles       map[string]Role
	perms       map[string]Permission
	rolePerms   []RolePermission
	assignments []*Assignment
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		roles: make(map[string]Role),
		perms: make(map[string]Permission),
	}
}

// PutRole inserts or replaces a role, allocating an id when absent.
func (s *MemoryStore) PutRole(role Role) Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	if role.ID == "" {
		role.ID = ids.New()
	}
	if role.CreatedAt.IsZero() {
		role.CreatedAt = time.Now().UTC()
	}
	s.roles[role.ID] = role
	return role
}

// PutPermission inserts or replaces a permission, allocating an id when
// absent.
func (s *MemoryStore) PutPermission(p Permission) Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = ids.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.perms[p.ID] = p
	return p
}

// Link connects a role to a permission.
func (s *MemoryStore) Link(roleID, permissionID string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolePerms = append(s.rolePerms, RolePermission{
		RoleID:       roleID,
		PermissionID: permissionID,
		IsActive:     active,
	})
}

func (s *MemoryStore) ActiveRolesForUser(ctx context.Context, userID string, now time.Time) ([]Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var roles []Role
	for _, a := range s.assignments {
		if a.UserID != userID || !a.IsActive {
			continue
		}
		if a.ExpiresAt != nil && !a.ExpiresAt.After(now) {
			continue
		}
		role, ok := s.roles[a.RoleID]
		if !ok || !role.IsActive {
			continue
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func (s *MemoryStore) ActiveGrants(ctx context.Context) ([]Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var grants []Grant
	for _, rp := range s.rolePerms {
		if !rp.IsActive {
			continue
		}
		perm, ok := s.perms[rp.PermissionID]
		if !ok || !perm.IsActive {
			continue
		}
		grants = append(grants, Grant{RoleID: rp.RoleID, Permission: perm})
	}
	return grants, nil
}

func (s *MemoryStore) CreateAssignment(ctx context.Context, a Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.assignments {
		if existing.UserID == a.UserID && existing.RoleID == a.RoleID && existing.IsActive {
			return fmt.Errorf("%w: user %s role %s", ErrAlreadyAssigned, a.UserID, a.RoleID)
		}
	}
	copied := a
	s.assignments = append(s.assignments, &copied)
	return nil
}

func (s *MemoryStore) DeactivateAssignments(ctx context.Context, userID, roleID, removedBy string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, a := range s.assignments {
		if a.UserID != userID || a.RoleID != roleID || !a.IsActive {
			continue
		}
		a.IsActive = false
		revoked := now
		a.RevokedAt = &revoked
		a.RevokedBy = removedBy
		n++
	}
	return n, nil
}

func (s *MemoryStore) EnsurePermissions(ctx context.Context, perms []Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byName := make(map[string]string, len(s.perms))
	for id, p := range s.perms {
		byName[p.Name] = id
	}
	for _, p := range perms {
		if id, ok := byName[p.Name]; ok {
			existing := s.perms[id]
			existing.Description = p.Description
			existing.IsActive = p.IsActive
			s.perms[id] = existing
			continue
		}
		p.ID = ids.New()
		p.CreatedAt = time.Now().UTC()
		s.perms[p.ID] = p
	}
	return nil
}
