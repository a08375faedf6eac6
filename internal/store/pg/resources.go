package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vetgrid.org/internal/approval"
)

func (s *Store) GetVeterinarian(ctx context.Context, id int64) (approval.Veterinarian, error) {
	if s.db == nil {
		return approval.Veterinarian{}, errors.New("database connection unavailable")
	}
	var v approval.Veterinarian
	err := s.db.QueryRowContext(ctx, `
		select id, owner_id, name, is_verified, created_at, updated_at
		from veterinarians
		where id = $1
	`, id).Scan(&v.ID, &v.OwnerID, &v.Name, &v.IsVerified, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return approval.Veterinarian{}, fmt.Errorf("%w: veterinarian %d", approval.ErrNotFound, id)
	}
	if err != nil {
		return approval.Veterinarian{}, err
	}
	return v, nil
}

const clinicColumns = `
	id, owner_id, name, is_active, needs_renewal,
	activation_start, activation_end, created_at, updated_at`

func scanClinic(row interface{ Scan(dest ...any) error }) (approval.Clinic, error) {
	var (
		c     approval.Clinic
		start sql.NullTime
		end   sql.NullTime
	)
	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.IsActive, &c.NeedsRenewal,
		&start, &end, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return approval.Clinic{}, err
	}
	if start.Valid {
		t := start.Time
		c.ActivationStart = &t
	}
	if end.Valid {
		t := end.Time
		c.ActivationEnd = &t
	}
	return c, nil
}

func (s *Store) GetClinic(ctx context.Context, id int64) (approval.Clinic, error) {
	if s.db == nil {
		return approval.Clinic{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `select`+clinicColumns+`
		from clinics
		where id = $1`, id)
	c, err := scanClinic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return approval.Clinic{}, fmt.Errorf("%w: clinic %d", approval.ErrNotFound, id)
	}
	if err != nil {
		return approval.Clinic{}, err
	}
	return c, nil
}

const storeColumns = `
	id, owner_id, name, is_verified, is_active, needs_renewal,
	subscription_status, activation_start, activation_end, created_at, updated_at`

func scanStore(row interface{ Scan(dest ...any) error }) (approval.Store, error) {
	var (
		st    approval.Store
		start sql.NullTime
		end   sql.NullTime
	)
	err := row.Scan(&st.ID, &st.OwnerID, &st.Name, &st.IsVerified, &st.IsActive,
		&st.NeedsRenewal, &st.SubscriptionStatus, &start, &end, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return approval.Store{}, err
	}
	if start.Valid {
		t := start.Time
		st.ActivationStart = &t
	}
	if end.Valid {
		t := end.Time
		st.ActivationEnd = &t
	}
	return st, nil
}

func (s *Store) GetStore(ctx context.Context, id int64) (approval.Store, error) {
	if s.db == nil {
		return approval.Store{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `select`+storeColumns+`
		from stores
		where id = $1`, id)
	st, err := scanStore(row)
	if errors.Is(err, sql.ErrNoRows) {
		return approval.Store{}, fmt.Errorf("%w: store %d", approval.ErrNotFound, id)
	}
	if err != nil {
		return approval.Store{}, err
	}
	return st, nil
}

func (s *Store) ListRenewableClinics(ctx context.Context) ([]approval.Clinic, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `select`+clinicColumns+`
		from clinics
		where needs_renewal and not is_active
		order by activation_end desc nulls last`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []approval.Clinic
	for rows.Next() {
		c, err := scanClinic(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListRenewableStores(ctx context.Context) ([]approval.Store, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `select`+storeColumns+`
		from stores
		where needs_renewal and not is_active
		order by activation_end desc nulls last`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []approval.Store
	for rows.Next() {
		st, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListExpiredClinics(ctx context.Context, now time.Time) ([]approval.Clinic, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `select`+clinicColumns+`
		from clinics
		where is_active and not needs_renewal and activation_end <= $1`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []approval.Clinic
	for rows.Next() {
		c, err := scanClinic(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListExpiredStores(ctx context.Context, now time.Time) ([]approval.Store, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `select`+storeColumns+`
		from stores
		where is_active and not needs_renewal and activation_end <= $1`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []approval.Store
	for rows.Next() {
		st, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) VerifyVeterinarian(ctx context.Context, id int64) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update veterinarians
		set is_verified = true, updated_at = now()
		where id = $1
	`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return fmt.Errorf("%w: veterinarian %d", approval.ErrNotFound, id)
	}
	return nil
}

func (s *Store) ActivateClinic(ctx context.Context, id int64, w approval.ActivationWindow, expect approval.Flags) (bool, error) {
	if s.db == nil {
		return false, errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update clinics
		set is_active = true,
		    needs_renewal = false,
		    activation_start = $2,
		    activation_end = $3,
		    updated_at = now()
		where id = $1 and is_active = $4 and needs_renewal = $5
	`, id, w.Start, w.End, expect.Active, expect.NeedsRenewal)
	if err != nil {
		return false, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return aff > 0, nil
}

func (s *Store) ActivateStore(ctx context.Context, id int64, w approval.ActivationWindow, expect approval.Flags) (bool, error) {
	if s.db == nil {
		return false, errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update stores
		set is_verified = true,
		    is_active = true,
		    needs_renewal = false,
		    subscription_status = 'active',
		    activation_start = $2,
		    activation_end = $3,
		    updated_at = now()
		where id = $1 and is_active = $4 and needs_renewal = $5
	`, id, w.Start, w.End, expect.Active, expect.NeedsRenewal)
	if err != nil {
		return false, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return aff > 0, nil
}

func (s *Store) ExpireClinic(ctx context.Context, id int64, now time.Time) (bool, error) {
	if s.db == nil {
		return false, errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update clinics
		set is_active = false,
		    needs_renewal = true,
		    updated_at = now()
		where id = $1 and is_active and not needs_renewal and activation_end <= $2
	`, id, now)
	if err != nil {
		return false, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return aff > 0, nil
}

func (s *Store) ExpireStore(ctx context.Context, id int64, now time.Time) (bool, error) {
	if s.db == nil {
		return false, errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update stores
		set is_active = false,
		    needs_renewal = true,
		    subscription_status = 'expired',
		    updated_at = now()
		where id = $1 and is_active and not needs_renewal and activation_end <= $2
	`, id, now)
	if err != nil {
		return false, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return aff > 0, nil
}
