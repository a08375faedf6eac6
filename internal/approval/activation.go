package approval

import (
	"context"
	"fmt"
)

// casAttempts bounds the re-read loop when an activation write races the
// sweep. The activation is authoritative, so it retries with the freshly
// observed flags instead of giving up.
const casAttempts = 3

// ActivationHandler applies the resource-side effect of an approval for
// one resource kind and returns the owner to notify.
type ActivationHandler interface {
	Activate(ctx context.Context, resourceID int64, w ActivationWindow) (ownerID string, err error)
}

// handlerFor dispatches on the request type. Renewal candidates activate
// the same resource kind their offset band names.
func handlerFor(t RequestType, reg ResourceRegistry) (ActivationHandler, error) {
	switch t {
	case TypeVetRegistration:
		return vetActivation{reg}, nil
	case TypeClinicActivation, TypeClinicRenewal:
		return clinicActivation{reg}, nil
	case TypeStoreActivation, TypeStoreRenewal:
		return storeActivation{reg}, nil
	default:
		return nil, fmt.Errorf("%w: no activation for type %q", ErrValidation, t)
	}
}

type vetActivation struct {
	reg ResourceRegistry
}

func (h vetActivation) Activate(ctx context.Context, resourceID int64, _ ActivationWindow) (string, error) {
	vet, err := h.reg.GetVeterinarian(ctx, resourceID)
	if err != nil {
		return "", err
	}
	if err := h.reg.VerifyVeterinarian(ctx, resourceID); err != nil {
		return "", err
	}
	return vet.OwnerID, nil
}

type clinicActivation struct {
	reg ResourceRegistry
}

func (h clinicActivation) Activate(ctx context.Context, resourceID int64, w ActivationWindow) (string, error) {
	var owner string
	for attempt := 0; attempt < casAttempts; attempt++ {
		clinic, err := h.reg.GetClinic(ctx, resourceID)
		if err != nil {
			return "", err
		}
		owner = clinic.OwnerID
		swapped, err := h.reg.ActivateClinic(ctx, resourceID, w, Flags{
			Active:       clinic.IsActive,
			NeedsRenewal: clinic.NeedsRenewal,
		})
		if err != nil {
			return "", err
		}
		if swapped {
			return owner, nil
		}
	}
	return "", fmt.Errorf("activate clinic %d: concurrent state change persisted", resourceID)
}

type storeActivation struct {
	reg ResourceRegistry
}

func (h storeActivation) Activate(ctx context.Context, resourceID int64, w ActivationWindow) (string, error) {
	var owner string
	for attempt := 0; attempt < casAttempts; attempt++ {
		store, err := h.reg.GetStore(ctx, resourceID)
		if err != nil {
			return "", err
		}
		owner = store.OwnerID
		swapped, err := h.reg.ActivateStore(ctx, resourceID, w, Flags{
			Active:       store.IsActive,
			NeedsRenewal: store.NeedsRenewal,
		})
		if err != nil {
			return "", err
		}
		if swapped {
			return owner, nil
		}
	}
	return "", fmt.Errorf("activate store %d: concurrent state change persisted", resourceID)
}
