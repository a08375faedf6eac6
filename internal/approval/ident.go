package approval

import "fmt"

// Renewal candidates are never persisted, so the queue multiplexes them
// into the request id space above fixed offsets. The decoded RequestID
// is the only form the engine works with; the flat integer survives
// solely as the boundary encoding callers already speak.
const (
	clinicRenewalOffset = 10000
	storeRenewalOffset  = 20000
)

// RequestID is the decoded identity of a queue entry.
type RequestID struct {
	// Row is the persisted request row id; set only when Type is a
	// persisted request type.
	Row int64
	// ResourceID is the underlying resource id; set only for synthetic
	// renewal candidates.
	ResourceID int64
	Type       RequestType
}

// Synthetic reports whether the id names a derived renewal candidate.
func (r RequestID) Synthetic() bool { return r.Type.Synthetic() }

// ParseRequestID decodes a flat queue identifier. Ids at or above the
// clinic offset are synthetic; everything below names a persisted row.
// The persisted type is unknown at parse time and left empty.
func ParseRequestID(id int64) (RequestID, error) {
	switch {
	case id <= 0:
		return RequestID{}, fmt.Errorf("%w: request id %d", ErrValidation, id)
	case id >= storeRenewalOffset:
		return RequestID{Type: TypeStoreRenewal, ResourceID: id - storeRenewalOffset}, nil
	case id >= clinicRenewalOffset:
		return RequestID{Type: TypeClinicRenewal, ResourceID: id - clinicRenewalOffset}, nil
	default:
		return RequestID{Row: id}, nil
	}
}

// SyntheticID encodes a renewal candidate into the flat id space.
// Clinic resource ids must stay below the store offset band or the
// encoding would collide with store candidates.
func SyntheticID(t RequestType, resourceID int64) (int64, error) {
	if resourceID <= 0 {
		return 0, fmt.Errorf("%w: resource id %d", ErrValidation, resourceID)
	}
	switch t {
	case TypeClinicRenewal:
		if resourceID >= storeRenewalOffset-clinicRenewalOffset {
			return 0, fmt.Errorf("%w: clinic id %d exceeds synthetic band", ErrValidation, resourceID)
		}
		return clinicRenewalOffset + resourceID, nil
	case TypeStoreRenewal:
		return storeRenewalOffset + resourceID, nil
	default:
		return 0, fmt.Errorf("%w: %s is not a renewal type", ErrValidation, t)
	}
}

// MaxPersistedID is the highest row id a RequestStore may allocate.
// Anything above it would be indistinguishable from a synthetic id.
const MaxPersistedID = clinicRenewalOffset - 1
