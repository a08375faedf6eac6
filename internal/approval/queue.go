package approval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"vetgrid.org/internal/obs"
)

// Queue merges persisted pending requests with derived renewal
// candidates into one orderable list.
type Queue struct {
	requests  RequestStore
	resources ResourceRegistry
}

// NewQueue constructs a Queue.
func NewQueue(requests RequestStore, resources ResourceRegistry) (*Queue, error) {
	if requests == nil || resources == nil {
		return nil, errors.New("approval: request store and resource registry are required")
	}
	return &Queue{requests: requests, resources: resources}, nil
}

// ListPending returns the merged pending queue, newest effective
// creation first. Repository failures on either side degrade to the
// entries that could be fetched; the aggregate listing never fails on
// a backend error.
func (q *Queue) ListPending(ctx context.Context, filter RequestType) ([]QueueItem, error) {
	if filter != "" && !filter.Valid() {
		return nil, fmt.Errorf("%w: unknown request type %q", ErrValidation, filter)
	}

	var items []QueueItem
	if filter == "" || !filter.Synthetic() {
		rows, err := q.requests.ListPending(ctx, filter)
		if err != nil {
			obs.LogEvent(map[string]any{
				"level": "warn", "msg": "pending request listing degraded",
				"error": err.Error(),
			})
		}
		for _, row := range rows {
			items = append(items, QueueItem{
				ID:          row.ID,
				Type:        row.Type,
				RequesterID: row.RequesterID,
				ResourceID:  row.ResourceID,
				Title:       row.Title,
				CreatedAt:   row.CreatedAt,
			})
		}
	}
	if filter == "" || filter == TypeClinicRenewal {
		items = append(items, q.clinicCandidates(ctx)...)
	}
	if filter == "" || filter == TypeStoreRenewal {
		items = append(items, q.storeCandidates(ctx)...)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (q *Queue) clinicCandidates(ctx context.Context) []QueueItem {
	clinics, err := q.resources.ListRenewableClinics(ctx)
	if err != nil {
		obs.LogEvent(map[string]any{
			"level": "warn", "msg": "clinic candidate listing degraded",
			"error": err.Error(),
		})
		return nil
	}
	var items []QueueItem
	for _, c := range clinics {
		id, err := SyntheticID(TypeClinicRenewal, c.ID)
		if err != nil {
			obs.LogEvent(map[string]any{
				"level": "error", "msg": "clinic outside synthetic id band, skipped",
				"clinic_id": c.ID,
			})
			continue
		}
		items = append(items, QueueItem{
			ID:          id,
			Type:        TypeClinicRenewal,
			Synthetic:   true,
			RequesterID: c.OwnerID,
			ResourceID:  c.ID,
			Title:       fmt.Sprintf("Renewal: clinic %s", c.Name),
			CreatedAt:   effectiveCreatedAt(c.ActivationEnd, c.UpdatedAt),
		})
	}
	return items
}

func (q *Queue) storeCandidates(ctx context.Context) []QueueItem {
	stores, err := q.resources.ListRenewableStores(ctx)
	if err != nil {
		obs.LogEvent(map[string]any{
			"level": "warn", "msg": "store candidate listing degraded",
			"error": err.Error(),
		})
		return nil
	}
	var items []QueueItem
	for _, st := range stores {
		id, err := SyntheticID(TypeStoreRenewal, st.ID)
		if err != nil {
			continue
		}
		items = append(items, QueueItem{
			ID:          id,
			Type:        TypeStoreRenewal,
			Synthetic:   true,
			RequesterID: st.OwnerID,
			ResourceID:  st.ID,
			Title:       fmt.Sprintf("Renewal: store %s", st.Name),
			CreatedAt:   effectiveCreatedAt(st.ActivationEnd, st.UpdatedAt),
		})
	}
	return items
}

// Candidates sort by when their activation lapsed; fall back to the last
// mutation when a row never carried a window.
func effectiveCreatedAt(end *time.Time, updated time.Time) time.Time {
	if end != nil {
		return *end
	}
	return updated
}

// Details resolves one queue id, real or synthetic, to the request or
// candidate plus the underlying resource record.
func (q *Queue) Details(ctx context.Context, id int64) (Details, error) {
	rid, err := ParseRequestID(id)
	if err != nil {
		return Details{}, err
	}
	if rid.Synthetic() {
		return q.syntheticDetails(ctx, rid)
	}

	req, err := q.requests.Get(ctx, rid.Row)
	if err != nil {
		return Details{}, err
	}
	d := Details{
		Item: QueueItem{
			ID:          req.ID,
			Type:        req.Type,
			RequesterID: req.RequesterID,
			ResourceID:  req.ResourceID,
			Title:       req.Title,
			CreatedAt:   req.CreatedAt,
		},
		Request: &req,
	}
	switch req.Type {
	case TypeVetRegistration:
		if vet, err := q.resources.GetVeterinarian(ctx, req.ResourceID); err == nil {
			d.Veterinarian = &vet
		}
	case TypeClinicActivation:
		if clinic, err := q.resources.GetClinic(ctx, req.ResourceID); err == nil {
			d.Clinic = &clinic
		}
	case TypeStoreActivation:
		if store, err := q.resources.GetStore(ctx, req.ResourceID); err == nil {
			d.Store = &store
		}
	}
	return d, nil
}

func (q *Queue) syntheticDetails(ctx context.Context, rid RequestID) (Details, error) {
	switch rid.Type {
	case TypeClinicRenewal:
		clinic, err := q.resources.GetClinic(ctx, rid.ResourceID)
		if err != nil {
			return Details{}, err
		}
		if clinic.IsActive || !clinic.NeedsRenewal {
			return Details{}, fmt.Errorf("%w: clinic %d is not a renewal candidate", ErrNotFound, rid.ResourceID)
		}
		id, _ := SyntheticID(TypeClinicRenewal, clinic.ID)
		return Details{
			Item: QueueItem{
				ID:          id,
				Type:        TypeClinicRenewal,
				Synthetic:   true,
				RequesterID: clinic.OwnerID,
				ResourceID:  clinic.ID,
				Title:       fmt.Sprintf("Renewal: clinic %s", clinic.Name),
				CreatedAt:   effectiveCreatedAt(clinic.ActivationEnd, clinic.UpdatedAt),
			},
			Clinic: &clinic,
		}, nil
	case TypeStoreRenewal:
		store, err := q.resources.GetStore(ctx, rid.ResourceID)
		if err != nil {
			return Details{}, err
		}
		if store.IsActive || !store.NeedsRenewal {
			return Details{}, fmt.Errorf("%w: store %d is not a renewal candidate", ErrNotFound, rid.ResourceID)
		}
		id, _ := SyntheticID(TypeStoreRenewal, store.ID)
		return Details{
			Item: QueueItem{
				ID:          id,
				Type:        TypeStoreRenewal,
				Synthetic:   true,
				RequesterID: store.OwnerID,
				ResourceID:  store.ID,
				Title:       fmt.Sprintf("Renewal: store %s", store.Name),
				CreatedAt:   effectiveCreatedAt(store.ActivationEnd, store.UpdatedAt),
			},
			Store: &store,
		}, nil
	default:
		return Details{}, fmt.Errorf("%w: request %d", ErrNotFound, rid.ResourceID)
	}
}
