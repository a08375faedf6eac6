package rbac

import "time"

// Role groups permissions. Inactive roles grant nothing.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission is a fine-grained capability.
type Permission struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// RolePermission links a role to a permission. The mapping itself can be
// deactivated independently of either side.
type RolePermission struct {
	RoleID       string `json:"role_id"`
	PermissionID string `json:"permission_id"`
	IsActive     bool   `json:"is_active"`
}

// Grant is one active role-to-permission edge as seen by the resolver.
type Grant struct {
	RoleID     string     `json:"role_id"`
	Permission Permission `json:"permission"`
}

// Assignment gives a user a role. Removal deactivates the row rather
// than deleting it, so assignment history stays intact.
type Assignment struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	RoleID     string     `json:"role_id"`
	AssignedBy string     `json:"assigned_by"`
	IsActive   bool       `json:"is_active"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	RevokedBy  string     `json:"revoked_by,omitempty"`
}

// PermissionSet is a user's resolved effective permissions.
type PermissionSet struct {
	UserID      string       `json:"user_id"`
	Roles       []Role       `json:"roles"`
	Permissions []Permission `json:"permissions"`

	index map[string]struct{}
}

// NewPermissionSet builds a set from resolved roles and permissions,
// deduplicating by permission name with the first occurrence kept.
func NewPermissionSet(userID string, roles []Role, perms []Permission) PermissionSet {
	set := PermissionSet{
		UserID: userID,
		Roles:  roles,
		index:  make(map[string]struct{}, len(perms)),
	}
	for _, p := range perms {
		if _, ok := set.index[p.Name]; ok {
			continue
		}
		set.index[p.Name] = struct{}{}
		set.Permissions = append(set.Permissions, p)
	}
	return set
}

// EmptyPermissionSet is the fail-closed default: no roles, no grants.
func EmptyPermissionSet(userID string) PermissionSet {
	return PermissionSet{UserID: userID, index: map[string]struct{}{}}
}

// Has reports whether the set grants the named permission.
func (s PermissionSet) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}
