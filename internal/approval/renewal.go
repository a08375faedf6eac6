package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vetgrid.org/internal/audit"
	"vetgrid.org/internal/notify"
	"vetgrid.org/internal/obs"
)

// Notifier hands notification records to the delivery queue.
type Notifier interface {
	EnqueueAdmin(ctx context.Context, n notify.AdminNotification) error
	EnqueueEmail(ctx context.Context, n notify.EmailNotification) error
}

// Scanner sweeps expired active resources into the needs-renewal state.
type Scanner struct {
	resources ResourceRegistry
	notifier  Notifier
	now       func() time.Time
}

// NewScanner constructs a Scanner.
func NewScanner(resources ResourceRegistry, notifier Notifier, opts ...ScannerOption) (*Scanner, error) {
	if resources == nil || notifier == nil {
		return nil, errors.New("approval: resource registry and notifier are required")
	}
	s := &Scanner{resources: resources, notifier: notifier, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithScannerClock overrides the time source.
func WithScannerClock(now func() time.Time) ScannerOption {
	return func(s *Scanner) {
		if now != nil {
			s.now = now
		}
	}
}

// Sweep flips every expired active resource to needs-renewal. The scan
// filter excludes rows already flagged, so a repeated sweep with no
// elapsed time reports zero transitions. Only store owners receive an
// expiry notice; clinic renewals surface through the queue alone.
func (s *Scanner) Sweep(ctx context.Context) (SweepResult, error) {
	now := s.now().UTC()
	var res SweepResult

	clinics, err := s.resources.ListExpiredClinics(ctx, now)
	if err != nil {
		return res, fmt.Errorf("list expired clinics: %w", err)
	}
	for _, c := range clinics {
		swapped, err := s.resources.ExpireClinic(ctx, c.ID, now)
		if err != nil {
			return res, fmt.Errorf("expire clinic %d: %w", c.ID, err)
		}
		if !swapped {
			// Lost to a concurrent approval; the activation write wins.
			continue
		}
		res.ClinicsTransitioned++
		obs.SweepTransition("clinic")
		_ = audit.LogEvent(ctx, "renewal.clinic_expired", map[string]any{
			"clinic_id": c.ID,
		})
	}

	stores, err := s.resources.ListExpiredStores(ctx, now)
	if err != nil {
		return res, fmt.Errorf("list expired stores: %w", err)
	}
	for _, st := range stores {
		swapped, err := s.resources.ExpireStore(ctx, st.ID, now)
		if err != nil {
			return res, fmt.Errorf("expire store %d: %w", st.ID, err)
		}
		if !swapped {
			continue
		}
		res.StoresTransitioned++
		obs.SweepTransition("store")
		_ = audit.LogEvent(ctx, "renewal.store_expired", map[string]any{
			"store_id": st.ID,
		})
		if err := s.notifier.EnqueueAdmin(ctx, notify.AdminNotification{
			RecipientID: st.OwnerID,
			Event:       notify.EventExpiry,
			Title:       "Store subscription expired",
			Body:        fmt.Sprintf("The subscription for %s has expired. Renew it to reactivate the store.", st.Name),
		}); err != nil {
			return res, fmt.Errorf("notify store %d owner: %w", st.ID, err)
		}
	}

	obs.SweepCompleted()
	return res, nil
}
