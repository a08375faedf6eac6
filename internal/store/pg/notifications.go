package pg

import (
	"context"
	"errors"
	"time"

	"vetgrid.org/internal/notify"
)

var _ notify.Sink = (*Store)(nil)

// DeliverAdmin lands an in-app notification record in the outbox.
func (s *Store) DeliverAdmin(ctx context.Context, n notify.AdminNotification) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into notifications
			(id, channel, recipient_id, event, title, body, created_at, delivered_at)
		values ($1, 'admin', $2, $3, $4, $5, $6, $7)
	`, n.ID, n.RecipientID, nullIfEmpty(n.Event), n.Title, nullIfEmpty(n.Body),
		n.CreatedAt, time.Now().UTC())
	return err
}

// DeliverEmail lands an outbound email record in the outbox. The mailer
// reads the outbox; this service never talks to it directly.
func (s *Store) DeliverEmail(ctx context.Context, n notify.EmailNotification) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into notifications
			(id, channel, recipient_id, title, body, created_at, delivered_at)
		values ($1, 'email', $2, $3, $4, $5, $6)
	`, n.ID, n.RecipientID, n.Subject, nullIfEmpty(n.Body),
		n.CreatedAt, time.Now().UTC())
	return err
}
