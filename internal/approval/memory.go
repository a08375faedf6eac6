package approval

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore implements RequestStore and ResourceRegistry with
// in-process concurrency safety. Used by tests and DSN-less local runs.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	requests map[int64]*ApprovalRequest
	vets     map[int64]*Veterinarian
	clinics  map[int64]*Clinic
	stores   map[int64]*Store
}

var (
	_ RequestStore     = (*MemoryStore)(nil)
	_ ResourceRegistry = (*MemoryStore)(nil)
)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: make(map[int64]*ApprovalRequest),
		vets:     make(map[int64]*Veterinarian),
		clinics:  make(map[int64]*Clinic),
		stores:   make(map[int64]*Store),
	}
}

// PutVeterinarian inserts or replaces a veterinarian record.
func (s *MemoryStore) PutVeterinarian(v Veterinarian) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := v
	s.vets[v.ID] = &copied
}

// PutClinic inserts or replaces a clinic record.
func (s *MemoryStore) PutClinic(c Clinic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := c
	s.clinics[c.ID] = &copied
}

// PutStore inserts or replaces a store record.
func (s *MemoryStore) PutStore(st Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := st
	s.stores[st.ID] = &copied
}

func (s *MemoryStore) ListPending(ctx context.Context, filter RequestType) ([]ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ApprovalRequest
	for _, req := range s.requests {
		if req.Status != StatusPending {
			continue
		}
		if filter != "" && req.Type != filter {
			continue
		}
		out = append(out, *req)
	}
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return ApprovalRequest{}, fmt.Errorf("%w: request %d", ErrNotFound, id)
	}
	return *req, nil
}

func (s *MemoryStore) Insert(ctx context.Context, req *ApprovalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nextID >= MaxPersistedID {
		return fmt.Errorf("request id space exhausted at %d", s.nextID)
	}
	s.nextID++
	req.ID = s.nextID
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	req.UpdatedAt = req.CreatedAt
	copied := *req
	s.requests[req.ID] = &copied
	return nil
}

func (s *MemoryStore) DecideIfPending(ctx context.Context, id int64, rev Review) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return false, fmt.Errorf("%w: request %d", ErrNotFound, id)
	}
	if req.Status != StatusPending {
		return false, nil
	}
	req.Status = rev.Status
	req.ReviewerID = rev.ReviewerID
	req.Notes = rev.Notes
	req.RejectionReason = rev.RejectionReason
	reviewed := rev.ReviewedAt
	req.ReviewedAt = &reviewed
	req.UpdatedAt = reviewed
	return true, nil
}

func (s *MemoryStore) GetVeterinarian(ctx context.Context, id int64) (Veterinarian, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vets[id]
	if !ok {
		return Veterinarian{}, fmt.Errorf("%w: veterinarian %d", ErrNotFound, id)
	}
	return *v, nil
}

func (s *MemoryStore) GetClinic(ctx context.Context, id int64) (Clinic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clinics[id]
	if !ok {
		return Clinic{}, fmt.Errorf("%w: clinic %d", ErrNotFound, id)
	}
	return *c, nil
}

func (s *MemoryStore) GetStore(ctx context.Context, id int64) (Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stores[id]
	if !ok {
		return Store{}, fmt.Errorf("%w: store %d", ErrNotFound, id)
	}
	return *st, nil
}

func (s *MemoryStore) ListRenewableClinics(ctx context.Context) ([]Clinic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Clinic
	for _, c := range s.clinics {
		if c.NeedsRenewal && !c.IsActive {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListRenewableStores(ctx context.Context) ([]Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Store
	for _, st := range s.stores {
		if st.NeedsRenewal && !st.IsActive {
			out = append(out, *st)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListExpiredClinics(ctx context.Context, now time.Time) ([]Clinic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Clinic
	for _, c := range s.clinics {
		if c.IsActive && !c.NeedsRenewal && c.ActivationEnd != nil && !c.ActivationEnd.After(now) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListExpiredStores(ctx context.Context, now time.Time) ([]Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Store
	for _, st := range s.stores {
		if st.IsActive && !st.NeedsRenewal && st.ActivationEnd != nil && !st.ActivationEnd.After(now) {
			out = append(out, *st)
		}
	}
	return out, nil
}

func (s *MemoryStore) VerifyVeterinarian(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vets[id]
	if !ok {
		return fmt.Errorf("%w: veterinarian %d", ErrNotFound, id)
	}
	v.IsVerified = true
	v.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) ActivateClinic(ctx context.Context, id int64, w ActivationWindow, expect Flags) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clinics[id]
	if !ok {
		return false, fmt.Errorf("%w: clinic %d", ErrNotFound, id)
	}
	if c.IsActive != expect.Active || c.NeedsRenewal != expect.NeedsRenewal {
		return false, nil
	}
	c.IsActive = true
	c.NeedsRenewal = false
	start, end := w.Start, w.End
	c.ActivationStart = &start
	c.ActivationEnd = &end
	c.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *MemoryStore) ActivateStore(ctx context.Context, id int64, w ActivationWindow, expect Flags) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stores[id]
	if !ok {
		return false, fmt.Errorf("%w: store %d", ErrNotFound, id)
	}
	if st.IsActive != expect.Active || st.NeedsRenewal != expect.NeedsRenewal {
		return false, nil
	}
	st.IsVerified = true
	st.IsActive = true
	st.NeedsRenewal = false
	st.SubscriptionStatus = SubscriptionActive
	start, end := w.Start, w.End
	st.ActivationStart = &start
	st.ActivationEnd = &end
	st.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *MemoryStore) ExpireClinic(ctx context.Context, id int64, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clinics[id]
	if !ok {
		return false, fmt.Errorf("%w: clinic %d", ErrNotFound, id)
	}
	if !c.IsActive || c.NeedsRenewal || c.ActivationEnd == nil || c.ActivationEnd.After(now) {
		return false, nil
	}
	c.IsActive = false
	c.NeedsRenewal = true
	c.UpdatedAt = now
	return true, nil
}

func (s *MemoryStore) ExpireStore(ctx context.Context, id int64, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stores[id]
	if !ok {
		return false, fmt.Errorf("%w: store %d", ErrNotFound, id)
	}
	if !st.IsActive || st.NeedsRenewal || st.ActivationEnd == nil || st.ActivationEnd.After(now) {
		return false, nil
	}
	st.IsActive = false
	st.NeedsRenewal = true
	st.SubscriptionStatus = SubscriptionExpired
	st.UpdatedAt = now
	return true, nil
}
