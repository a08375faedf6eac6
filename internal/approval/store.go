package approval

import (
	"context"
	"time"
)

// Review carries the terminal fields written when a request is decided.
type Review struct {
	Status          Status
	ReviewerID      string
	Notes           string
	RejectionReason string
	ReviewedAt      time.Time
}

// RequestStore persists approval requests. Insert must never allocate an
// id above MaxPersistedID.
type RequestStore interface {
	// ListPending returns pending requests, optionally narrowed to one
	// type. An empty filter returns every pending persisted request.
	ListPending(ctx context.Context, filter RequestType) ([]ApprovalRequest, error)
	Get(ctx context.Context, id int64) (ApprovalRequest, error)
	Insert(ctx context.Context, req *ApprovalRequest) error
	// DecideIfPending applies rev only when the row is still pending and
	// reports whether the transition won. A false return with nil error
	// means a concurrent caller decided the request first.
	DecideIfPending(ctx context.Context, id int64, rev Review) (bool, error)
}

// Flags are the observed activation flags used as compare-and-swap
// expectations on resource mutations.
type Flags struct {
	Active       bool
	NeedsRenewal bool
}

// ResourceRegistry holds the activation state of all resource kinds.
// Conditional mutations return false when the observed state no longer
// matches, so callers can re-read and retry.
type ResourceRegistry interface {
	GetVeterinarian(ctx context.Context, id int64) (Veterinarian, error)
	GetClinic(ctx context.Context, id int64) (Clinic, error)
	GetStore(ctx context.Context, id int64) (Store, error)

	// Renewal candidates: needs_renewal and not active.
	ListRenewableClinics(ctx context.Context) ([]Clinic, error)
	ListRenewableStores(ctx context.Context) ([]Store, error)

	// Sweep input: active, not flagged, activation end at or before now.
	ListExpiredClinics(ctx context.Context, now time.Time) ([]Clinic, error)
	ListExpiredStores(ctx context.Context, now time.Time) ([]Store, error)

	VerifyVeterinarian(ctx context.Context, id int64) error

	// Activation writes: set active, clear needs_renewal, apply window.
	// Stores additionally become verified with an active subscription.
	ActivateClinic(ctx context.Context, id int64, w ActivationWindow, expect Flags) (bool, error)
	ActivateStore(ctx context.Context, id int64, w ActivationWindow, expect Flags) (bool, error)

	// Expiry writes: flip active to needs_renewal, guarded on the row
	// still being active, unflagged and past its end date. Stores also
	// move their subscription to expired.
	ExpireClinic(ctx context.Context, id int64, now time.Time) (bool, error)
	ExpireStore(ctx context.Context, id int64, now time.Time) (bool, error)
}
