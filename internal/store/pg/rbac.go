package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vetgrid.org/internal/ids"
	"vetgrid.org/internal/rbac"
)

func (s *Store) ActiveRolesForUser(ctx context.Context, userID string, now time.Time) ([]rbac.Role, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, r.description, r.is_active, r.created_at, r.updated_at
		from role_assignments ra
		join roles r on r.id = ra.role_id
		where ra.user_id = $1
		  and ra.is_active
		  and (ra.expires_at is null or ra.expires_at > $2)
		  and r.is_active
		order by r.name
	`, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []rbac.Role
	for rows.Next() {
		var (
			role rbac.Role
			desc sql.NullString
		)
		if err := rows.Scan(&role.ID, &role.Name, &desc, &role.IsActive, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		role.Description = desc.String
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *Store) ActiveGrants(ctx context.Context) ([]rbac.Grant, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select rp.role_id, p.id, p.name, p.description, p.is_active, p.created_at
		from role_permissions rp
		join permissions p on p.id = rp.permission_id
		where rp.is_active and p.is_active
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []rbac.Grant
	for rows.Next() {
		var (
			g    rbac.Grant
			desc sql.NullString
		)
		if err := rows.Scan(&g.RoleID, &g.Permission.ID, &g.Permission.Name, &desc,
			&g.Permission.IsActive, &g.Permission.CreatedAt); err != nil {
			return nil, err
		}
		g.Permission.Description = desc.String
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

// CreateAssignment relies on the partial unique index over active
// (user_id, role_id) pairs: the existence check and the insert collapse
// into one atomic statement, and a concurrent duplicate surfaces as a
// unique violation.
func (s *Store) CreateAssignment(ctx context.Context, a rbac.Assignment) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into role_assignments
			(id, user_id, role_id, assigned_by, is_active, expires_at, created_at)
		values ($1, $2, $3, $4, true, $5, $6)
	`, a.ID, a.UserID, a.RoleID, nullIfEmpty(a.AssignedBy), nullTime(a.ExpiresAt), a.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return fmt.Errorf("%w: user %s role %s", rbac.ErrAlreadyAssigned, a.UserID, a.RoleID)
			case pgErrForeignKeyViolation:
				return fmt.Errorf("%w: role %s", rbac.ErrNotFound, a.RoleID)
			}
		}
		return err
	}
	return nil
}

func (s *Store) DeactivateAssignments(ctx context.Context, userID, roleID, removedBy string, now time.Time) (int, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update role_assignments
		set is_active = false,
		    revoked_at = $3,
		    revoked_by = $4
		where user_id = $1 and role_id = $2 and is_active
	`, userID, roleID, now, nullIfEmpty(removedBy))
	if err != nil {
		return 0, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(aff), nil
}

func (s *Store) EnsurePermissions(ctx context.Context, perms []rbac.Permission) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range perms {
		if _, err := tx.ExecContext(ctx, `
			insert into permissions (id, name, description, is_active)
			values ($1, $2, $3, $4)
			on conflict (name) do update
			set description = excluded.description,
			    is_active = excluded.is_active
		`, ids.New(), p.Name, nullIfEmpty(p.Description), p.IsActive); err != nil {
			return err
		}
	}
	return tx.Commit()
}
