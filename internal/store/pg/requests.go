package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vetgrid.org/internal/approval"
)

const requestColumns = `
	id, type, status, requester_id, resource_id, title,
	payment_ref, paid_amount, reviewer_id, reviewed_at,
	notes, rejection_reason, created_at, updated_at`

func scanRequest(row interface{ Scan(dest ...any) error }) (approval.ApprovalRequest, error) {
	var (
		req        approval.ApprovalRequest
		paymentRef sql.NullString
		reviewer   sql.NullString
		reviewedAt sql.NullTime
		notes      sql.NullString
		reason     sql.NullString
	)
	err := row.Scan(
		&req.ID, &req.Type, &req.Status, &req.RequesterID, &req.ResourceID, &req.Title,
		&paymentRef, &req.PaidAmount, &reviewer, &reviewedAt,
		&notes, &reason, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return approval.ApprovalRequest{}, err
	}
	req.PaymentRef = paymentRef.String
	req.ReviewerID = reviewer.String
	if reviewedAt.Valid {
		t := reviewedAt.Time
		req.ReviewedAt = &t
	}
	req.Notes = notes.String
	req.RejectionReason = reason.String
	return req, nil
}

func (s *Store) ListPending(ctx context.Context, filter approval.RequestType) ([]approval.ApprovalRequest, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	query := `select` + requestColumns + `
		from approval_requests
		where status = 'pending'
		order by created_at desc`
	args := []any{}
	if filter != "" {
		query = `select` + requestColumns + `
			from approval_requests
			where status = 'pending' and type = $1
			order by created_at desc`
		args = append(args, string(filter))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []approval.ApprovalRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) Get(ctx context.Context, id int64) (approval.ApprovalRequest, error) {
	if s.db == nil {
		return approval.ApprovalRequest{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `select`+requestColumns+`
		from approval_requests
		where id = $1`, id)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return approval.ApprovalRequest{}, fmt.Errorf("%w: request %d", approval.ErrNotFound, id)
	}
	if err != nil {
		return approval.ApprovalRequest{}, err
	}
	return req, nil
}

func (s *Store) Insert(ctx context.Context, req *approval.ApprovalRequest) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	err := s.db.QueryRowContext(ctx, `
		insert into approval_requests
			(type, status, requester_id, resource_id, title, payment_ref, paid_amount)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning id, created_at, updated_at
	`, string(req.Type), string(req.Status), req.RequesterID, req.ResourceID,
		req.Title, nullIfEmpty(req.PaymentRef), req.PaidAmount,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return err
	}
	// Ids at or above the synthetic band would collide with renewal
	// candidates; refuse to hand such a row out.
	if req.ID > approval.MaxPersistedID {
		return fmt.Errorf("request id space exhausted at %d", req.ID)
	}
	return nil
}

func (s *Store) DecideIfPending(ctx context.Context, id int64, rev approval.Review) (bool, error) {
	if s.db == nil {
		return false, errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update approval_requests
		set status = $2,
		    reviewer_id = $3,
		    notes = $4,
		    rejection_reason = $5,
		    reviewed_at = $6,
		    updated_at = now()
		where id = $1 and status = 'pending'
	`, id, string(rev.Status), rev.ReviewerID, nullIfEmpty(rev.Notes),
		nullIfEmpty(rev.RejectionReason), rev.ReviewedAt)
	if err != nil {
		return false, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return aff > 0, nil
}
