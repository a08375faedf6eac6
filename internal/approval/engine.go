package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vetgrid.org/internal/audit"
	"vetgrid.org/internal/notify"
	"vetgrid.org/internal/obs"
	"vetgrid.org/internal/rbac"
)

// Gate authorizes an actor for a named permission before any mutation.
type Gate interface {
	Require(ctx context.Context, userID, permission string) error
}

// Engine drives approval requests through their terminal transitions
// and mutates the underlying resource activation state.
type Engine struct {
	requests  RequestStore
	resources ResourceRegistry
	gate      Gate
	notifier  Notifier
	now       func() time.Time
}

// NewEngine constructs an Engine.
func NewEngine(requests RequestStore, resources ResourceRegistry, gate Gate, notifier Notifier, opts ...EngineOption) (*Engine, error) {
	if requests == nil || resources == nil || gate == nil || notifier == nil {
		return nil, errors.New("approval: requests, resources, gate and notifier are required")
	}
	e := &Engine{
		requests:  requests,
		resources: resources,
		gate:      gate,
		notifier:  notifier,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineClock overrides the time source.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func requiredPermission(t RequestType) string {
	switch t {
	case TypeVetRegistration:
		return rbac.PermReviewVetRegistration
	case TypeClinicActivation:
		return rbac.PermReviewClinicActivation
	case TypeStoreActivation:
		return rbac.PermReviewStoreActivation
	case TypeClinicRenewal, TypeStoreRenewal:
		return rbac.PermReviewRenewal
	default:
		return ""
	}
}

// NewRequest carries the fields of a submission.
type NewRequest struct {
	Type        RequestType
	RequesterID string
	ResourceID  int64
	Title       string
	PaymentRef  string
	PaidAmount  int64
}

// CreateRequest persists a new pending approval request. Renewal types
// are derived, never submitted.
func (e *Engine) CreateRequest(ctx context.Context, nr NewRequest) (ApprovalRequest, error) {
	if !nr.Type.Valid() || nr.Type.Synthetic() {
		return ApprovalRequest{}, fmt.Errorf("%w: request type %q is not submittable", ErrValidation, nr.Type)
	}
	nr.RequesterID = strings.TrimSpace(nr.RequesterID)
	nr.Title = strings.TrimSpace(nr.Title)
	if nr.RequesterID == "" || nr.Title == "" {
		return ApprovalRequest{}, fmt.Errorf("%w: requester and title are required", ErrValidation)
	}
	if nr.ResourceID <= 0 {
		return ApprovalRequest{}, fmt.Errorf("%w: resource id %d", ErrValidation, nr.ResourceID)
	}
	if err := e.resourceExists(ctx, nr.Type, nr.ResourceID); err != nil {
		return ApprovalRequest{}, err
	}

	now := e.now().UTC()
	req := ApprovalRequest{
		Type:        nr.Type,
		Status:      StatusPending,
		RequesterID: nr.RequesterID,
		ResourceID:  nr.ResourceID,
		Title:       nr.Title,
		PaymentRef:  nr.PaymentRef,
		PaidAmount:  nr.PaidAmount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.requests.Insert(ctx, &req); err != nil {
		return ApprovalRequest{}, err
	}
	_ = audit.LogEvent(ctx, "approval.submitted", map[string]any{
		"request_id": req.ID,
		"type":       string(req.Type),
	})
	return req, nil
}

func (e *Engine) resourceExists(ctx context.Context, t RequestType, id int64) error {
	var err error
	switch t {
	case TypeVetRegistration:
		_, err = e.resources.GetVeterinarian(ctx, id)
	case TypeClinicActivation:
		_, err = e.resources.GetClinic(ctx, id)
	case TypeStoreActivation:
		_, err = e.resources.GetStore(ctx, id)
	}
	return err
}

// Approve transitions a pending request (or a renewal candidate) to
// approved, activates the resource and notifies the requester. The
// resource mutation and the notification record form one logical unit:
// a failed enqueue fails the call.
func (e *Engine) Approve(ctx context.Context, id int64, adminID, notes string, window *ActivationWindow) (Decision, error) {
	adminID = strings.TrimSpace(adminID)
	if adminID == "" {
		return Decision{}, fmt.Errorf("%w: admin id is required", ErrValidation)
	}
	rid, err := ParseRequestID(id)
	if err != nil {
		return Decision{}, err
	}

	var (
		req       ApprovalRequest
		reqType   = rid.Type
		requester string
		resource  = rid.ResourceID
	)
	if !rid.Synthetic() {
		req, err = e.requests.Get(ctx, rid.Row)
		if err != nil {
			return Decision{}, err
		}
		if req.Status != StatusPending {
			return Decision{}, fmt.Errorf("%w: request %d is %s", ErrInvalidState, req.ID, req.Status)
		}
		reqType = req.Type
		requester = req.RequesterID
		resource = req.ResourceID
	}

	if err := e.gate.Require(ctx, adminID, requiredPermission(reqType)); err != nil {
		return Decision{}, err
	}

	now := e.now().UTC()
	w := DefaultWindow(now)
	if window != nil {
		w = *window
	}
	if err := w.Validate(); err != nil {
		return Decision{}, fmt.Errorf("%w: activation window end must be after start", ErrValidation)
	}

	// The conditional update is the only at-most-once guard, so the
	// resource write must come after it. An activation failure past this
	// point leaves the row approved, the resource untouched and the error
	// with the caller; recovery is a fresh request for the same resource.
	if !rid.Synthetic() {
		swapped, err := e.requests.DecideIfPending(ctx, req.ID, Review{
			Status:     StatusApproved,
			ReviewerID: adminID,
			Notes:      notes,
			ReviewedAt: now,
		})
		if err != nil {
			return Decision{}, err
		}
		if !swapped {
			return Decision{}, fmt.Errorf("%w: request %d was decided concurrently", ErrInvalidState, req.ID)
		}
	}

	handler, err := handlerFor(reqType, e.resources)
	if err != nil {
		return Decision{}, err
	}
	owner, err := handler.Activate(ctx, resource, w)
	if err != nil {
		return Decision{}, err
	}
	if requester == "" {
		requester = owner
	}

	if err := e.notifier.EnqueueAdmin(ctx, notify.AdminNotification{
		RecipientID: requester,
		Event:       notify.EventApproval,
		Title:       "Request approved",
		Body: fmt.Sprintf("Your %s request was approved. Active from %s to %s.",
			reqType, w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly)),
	}); err != nil {
		return Decision{}, fmt.Errorf("enqueue approval notification: %w", err)
	}

	obs.ApprovalDecided(string(reqType), string(StatusApproved))
	_ = audit.LogEvent(ctx, "approval.approved", map[string]any{
		"request_id":  id,
		"type":        string(reqType),
		"resource_id": resource,
		"reviewer_id": adminID,
	})
	return Decision{
		RequestID:  id,
		Type:       reqType,
		Status:     StatusApproved,
		ResourceID: resource,
		Window:     &w,
		ReviewerID: adminID,
		ReviewedAt: now,
	}, nil
}

// Reject transitions a pending persisted request to rejected. Renewal
// candidates have no row to reject and no defined resource effect, so a
// synthetic id is an invalid-state error. The rejection notice goes out
// by email for veterinarian registrations and in-app otherwise.
func (e *Engine) Reject(ctx context.Context, id int64, adminID, reason, notes string) (Decision, error) {
	adminID = strings.TrimSpace(adminID)
	reason = strings.TrimSpace(reason)
	if adminID == "" {
		return Decision{}, fmt.Errorf("%w: admin id is required", ErrValidation)
	}
	if reason == "" {
		return Decision{}, fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}
	rid, err := ParseRequestID(id)
	if err != nil {
		return Decision{}, err
	}
	if rid.Synthetic() {
		return Decision{}, fmt.Errorf("%w: renewal candidate %d cannot be rejected", ErrInvalidState, id)
	}

	req, err := e.requests.Get(ctx, rid.Row)
	if err != nil {
		return Decision{}, err
	}
	if req.Status != StatusPending {
		return Decision{}, fmt.Errorf("%w: request %d is %s", ErrInvalidState, req.ID, req.Status)
	}

	if err := e.gate.Require(ctx, adminID, requiredPermission(req.Type)); err != nil {
		return Decision{}, err
	}

	now := e.now().UTC()
	swapped, err := e.requests.DecideIfPending(ctx, req.ID, Review{
		Status:          StatusRejected,
		ReviewerID:      adminID,
		Notes:           notes,
		RejectionReason: reason,
		ReviewedAt:      now,
	})
	if err != nil {
		return Decision{}, err
	}
	if !swapped {
		return Decision{}, fmt.Errorf("%w: request %d was decided concurrently", ErrInvalidState, req.ID)
	}

	if req.Type == TypeVetRegistration {
		err = e.notifier.EnqueueEmail(ctx, notify.EmailNotification{
			RecipientID: req.RequesterID,
			Subject:     "Registration rejected",
			Body:        fmt.Sprintf("Your veterinarian registration was rejected: %s", reason),
		})
	} else {
		err = e.notifier.EnqueueAdmin(ctx, notify.AdminNotification{
			RecipientID: req.RequesterID,
			Event:       notify.EventRejection,
			Title:       "Request rejected",
			Body:        fmt.Sprintf("Your %s request was rejected: %s", req.Type, reason),
		})
	}
	if err != nil {
		return Decision{}, fmt.Errorf("enqueue rejection notification: %w", err)
	}

	obs.ApprovalDecided(string(req.Type), string(StatusRejected))
	_ = audit.LogEvent(ctx, "approval.rejected", map[string]any{
		"request_id":  req.ID,
		"type":        string(req.Type),
		"resource_id": req.ResourceID,
		"reviewer_id": adminID,
		"reason":      reason,
	})
	return Decision{
		RequestID:  req.ID,
		Type:       req.Type,
		Status:     StatusRejected,
		ResourceID: req.ResourceID,
		ReviewerID: adminID,
		ReviewedAt: now,
	}, nil
}
