package approval

import "time"

// RequestType distinguishes the approval families handled by the queue.
type RequestType string

const (
	TypeVetRegistration  RequestType = "vet_registration"
	TypeClinicActivation RequestType = "clinic_activation"
	TypeStoreActivation  RequestType = "store_activation"
	TypeClinicRenewal    RequestType = "clinic_renewal"
	TypeStoreRenewal     RequestType = "store_renewal"
)

// Status is the lifecycle state of a persisted approval request.
// Once a request leaves StatusPending it is terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Synthetic reports whether t identifies a derived renewal candidate
// rather than a persisted request.
func (t RequestType) Synthetic() bool {
	return t == TypeClinicRenewal || t == TypeStoreRenewal
}

// Valid reports whether t is one of the known request types.
func (t RequestType) Valid() bool {
	switch t {
	case TypeVetRegistration, TypeClinicActivation, TypeStoreActivation,
		TypeClinicRenewal, TypeStoreRenewal:
		return true
	}
	return false
}

// ApprovalRequest is a persisted request to activate a resource.
// Rows are never hard-deleted; decided requests remain as audit trail.
type ApprovalRequest struct {
	ID              int64       `json:"id"`
	Type            RequestType `json:"type"`
	Status          Status      `json:"status"`
	RequesterID     string      `json:"requester_id"`
	ResourceID      int64       `json:"resource_id"`
	Title           string      `json:"title"`
	PaymentRef      string      `json:"payment_ref,omitempty"`
	PaidAmount      int64       `json:"paid_amount,omitempty"`
	ReviewerID      string      `json:"reviewer_id,omitempty"`
	ReviewedAt      *time.Time  `json:"reviewed_at,omitempty"`
	Notes           string      `json:"notes,omitempty"`
	RejectionReason string      `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Veterinarian activation state. Vets carry only a verification flag;
// they have no paid activation window.
type Veterinarian struct {
	ID         int64     `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Name       string    `json:"name"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Clinic activation state. IsActive and NeedsRenewal are mutually
// exclusive: a clinic is never both active and flagged for renewal.
type Clinic struct {
	ID              int64      `json:"id"`
	OwnerID         string     `json:"owner_id"`
	Name            string     `json:"name"`
	IsActive        bool       `json:"is_active"`
	NeedsRenewal    bool       `json:"needs_renewal"`
	ActivationStart *time.Time `json:"activation_start,omitempty"`
	ActivationEnd   *time.Time `json:"activation_end,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Subscription states carried by stores.
const (
	SubscriptionNone    = "none"
	SubscriptionActive  = "active"
	SubscriptionExpired = "expired"
)

// Store activation state. Same exclusivity invariant as Clinic, plus a
// verification flag and a subscription status.
type Store struct {
	ID                 int64      `json:"id"`
	OwnerID            string     `json:"owner_id"`
	Name               string     `json:"name"`
	IsVerified         bool       `json:"is_verified"`
	IsActive           bool       `json:"is_active"`
	NeedsRenewal       bool       `json:"needs_renewal"`
	SubscriptionStatus string     `json:"subscription_status"`
	ActivationStart    *time.Time `json:"activation_start,omitempty"`
	ActivationEnd      *time.Time `json:"activation_end,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// ActivationWindow bounds a paid activation period.
type ActivationWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate enforces a non-empty, forward window.
func (w ActivationWindow) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return ErrValidation
	}
	if !w.End.After(w.Start) {
		return ErrValidation
	}
	return nil
}

// DefaultWindowDays is the activation period applied when the caller
// does not supply one.
const DefaultWindowDays = 365

// DefaultWindow returns the standard one-year activation window.
func DefaultWindow(now time.Time) ActivationWindow {
	return ActivationWindow{Start: now, End: now.AddDate(0, 0, DefaultWindowDays)}
}

// QueueItem is one entry of the merged pending queue: either a persisted
// request or a synthesized renewal candidate.
type QueueItem struct {
	ID          int64       `json:"id"`
	Type        RequestType `json:"type"`
	Synthetic   bool        `json:"synthetic"`
	RequesterID string      `json:"requester_id"`
	ResourceID  int64       `json:"resource_id"`
	Title       string      `json:"title"`
	// CreatedAt is the effective ordering key: real creation time for
	// persisted rows, activation end for renewal candidates.
	CreatedAt time.Time `json:"created_at"`
}

// Details is the full view of one queue entry together with the
// underlying resource record.
type Details struct {
	Item         QueueItem        `json:"item"`
	Request      *ApprovalRequest `json:"request,omitempty"`
	Veterinarian *Veterinarian    `json:"veterinarian,omitempty"`
	Clinic       *Clinic          `json:"clinic,omitempty"`
	Store        *Store           `json:"store,omitempty"`
}

// SweepResult summarizes one renewal sweep.
type SweepResult struct {
	ClinicsTransitioned int `json:"clinics_transitioned"`
	StoresTransitioned  int `json:"stores_transitioned"`
}

// Decision is the outcome of an approve or reject call.
type Decision struct {
	RequestID  int64             `json:"request_id"`
	Type       RequestType       `json:"type"`
	Status     Status            `json:"status"`
	ResourceID int64             `json:"resource_id"`
	Window     *ActivationWindow `json:"window,omitempty"`
	ReviewerID string            `json:"reviewer_id"`
	ReviewedAt time.Time         `json:"reviewed_at"`
}
