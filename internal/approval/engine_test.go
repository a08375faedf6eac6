package approval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vetgrid.org/internal/notify"
	"vetgrid.org/internal/rbac"
)

// testNotifier records enqueued notifications synchronously.
type testNotifier struct {
	mu      sync.Mutex
	admin   []notify.AdminNotification
	email   []notify.EmailNotification
	failing bool
}

func newTestNotifier() *testNotifier { return &testNotifier{} }

func (n *testNotifier) EnqueueAdmin(ctx context.Context, a notify.AdminNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failing {
		return errors.New("enqueue refused")
	}
	n.admin = append(n.admin, a)
	return nil
}

func (n *testNotifier) EnqueueEmail(ctx context.Context, e notify.EmailNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failing {
		return errors.New("enqueue refused")
	}
	n.email = append(n.email, e)
	return nil
}

// allowAll satisfies the Gate without consulting rbac.
type allowAll struct{}

func (allowAll) Require(ctx context.Context, userID, permission string) error { return nil }

func newTestEngine(t *testing.T, mem *MemoryStore, n *testNotifier) *Engine {
	t.Helper()
	e, err := NewEngine(mem, mem, allowAll{}, n)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestApproveClinicActivation(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	mem.PutClinic(Clinic{ID: 3, OwnerID: "owner-3", Name: "North Paws"})
	n := newTestNotifier()
	e := newTestEngine(t, mem, n)

	req, err := e.CreateRequest(ctx, NewRequest{
		Type: TypeClinicActivation, RequesterID: "owner-3", ResourceID: 3,
		Title: "Activate North Paws", PaymentRef: "pay-77", PaidAmount: 4900,
	})
	if err != nil {
		t.Fatal(err)
	}

	dec, err := e.Approve(ctx, req.ID, "admin-1", "docs verified", nil)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Status != StatusApproved || dec.Window == nil {
		t.Fatalf("unexpected decision: %+v", dec)
	}

	stored, _ := mem.Get(ctx, req.ID)
	if stored.Status != StatusApproved || stored.ReviewerID != "admin-1" || stored.ReviewedAt == nil {
		t.Fatalf("request not finalized: %+v", stored)
	}

	clinic, _ := mem.GetClinic(ctx, 3)
	if !clinic.IsActive || clinic.NeedsRenewal {
		t.Fatalf("activation flags wrong: %+v", clinic)
	}
	if clinic.ActivationStart == nil || clinic.ActivationEnd == nil ||
		!clinic.ActivationStart.Before(*clinic.ActivationEnd) {
		t.Fatalf("activation window wrong: %+v", clinic)
	}
	if got := clinic.ActivationEnd.Sub(*clinic.ActivationStart); got != DefaultWindowDays*24*time.Hour {
		t.Fatalf("default window length %v", got)
	}

	if len(n.admin) != 1 || n.admin[0].RecipientID != "owner-3" || n.admin[0].Event != notify.EventApproval {
		t.Fatalf("expected approval notification to owner-3, got %+v", n.admin)
	}
}

func TestApproveIsAtMostOnce(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	mem.PutVeterinarian(Veterinarian{ID: 1, OwnerID: "vet-1", Name: "Dr. Osei"})
	n := newTestNotifier()
	e := newTestEngine(t, mem, n)

	req, _ := e.CreateRequest(ctx, NewRequest{
		Type: TypeVetRegistration, RequesterID: "vet-1", ResourceID: 1, Title: "Register Dr. Osei",
	})
	if _, err := e.Approve(ctx, req.ID, "admin-1", "", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Approve(ctx, req.ID, "admin-1", "", nil); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second approve: expected invalid state, got %v", err)
	}
	if _, err := e.Reject(ctx, req.ID, "admin-1", "late", ""); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("reject after approve: expected invalid state, got %v", err)
	}
}

func TestApproveConcurrentLoserSeesInvalidState(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	mem.PutClinic(Clinic{ID: 1, OwnerID: "o", Name: "C"})
	n := newTestNotifier()
	e, err := NewEngine(&staleReads{mem}, mem, allowAll{}, n)
	if err != nil {
		t.Fatal(err)
	}

	req := mustInsert(t, mem, ApprovalRequest{
		Type: TypeClinicActivation, Status: StatusPending,
		RequesterID: "o", ResourceID: 1, Title: "Activate C",
	})
	// The other reviewer wins between our read and the conditional write.
	if _, err := mem.DecideIfPending(ctx, req.ID, Review{
		Status: StatusApproved, ReviewerID: "admin-2", ReviewedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := e.Approve(ctx, req.ID, "admin-1", "", nil); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("losing caller must see invalid state, got %v", err)
	}
	if len(n.admin) != 0 {
		t.Fatalf("loser must not notify, got %+v", n.admin)
	}
}

// staleReads serves Get from a pending snapshot so the conditional
// update, not the read, decides the race.
type staleReads struct {
	*MemoryStore
}

func (s *staleReads) Get(ctx context.Context, id int64) (ApprovalRequest, error) {
	req, err := s.MemoryStore.Get(ctx, id)
	if err != nil {
		return ApprovalRequest{}, err
	}
	req.Status = StatusPending
	return req, nil
}

func TestApproveStoreRenewalCandidate(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	mem.PutStore(Store{
		ID: 7, OwnerID: "store-owner", Name: "Pet Depot",
		NeedsRenewal: true, SubscriptionStatus: SubscriptionExpired,
	})
	n := newTestNotifier()
	e := newTestEngine(t, mem, n)

	dec, err := e.Approve(ctx, 20007, "admin-1", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Type != TypeStoreRenewal || dec.ResourceID != 7 {
		t.Fatalf("unexpected decision: %+v", dec)
	}

	store, _ := mem.GetStore(ctx, 7)
	if !store.IsActive || !store.IsVerified || store.NeedsRenewal ||
		store.SubscriptionStatus != SubscriptionActive {
		t.Fatalf("store not renewed: %+v", store)
	}
	if len(n.admin) != 1 || n.admin[0].RecipientID != "store-owner" {
		t.Fatalf("expected notification to store owner, got %+v", n.admin)
	}
}

func TestApproveValidatesWindow(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	mem.PutClinic(Clinic{ID: 1, OwnerID: "o", Name: "C"})
	n := newTestNotifier()
	e := newTestEngine(t, mem, n)

	req, _ := e.CreateRequest(ctx, NewRequest{
		Type: TypeClinicActivation, RequesterID: "o", ResourceID: 1, Title: "Activate C",
	})
	now := time.Now().UTC()
	bad := &ActivationWindow{Start: now, End: now.Add(-time.Hour)}
	if _, err := e.Approve(ctx, req.ID, "admin-1", "", bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	stored, _ := mem.Get(ctx, req.ID)
	if stored.Status != StatusPending {
		t.Fatalf("request must stay pending after bad window, got %s", stored.Status)
	}
}

func TestApproveRequiresPermission(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	mem.PutClinic(Clinic{ID: 1, OwnerID: "o", Name: "C"})

	roleStore := rbac.NewMemoryStore()
	resolver, err := rbac.NewResolver(roleStore)
	if err != nil {
		t.Fatal(err)
	}
	n := newTestNotifier()
	e, err := NewEngine(mem, mem, rbac.NewAuthorizer(resolver), n)
	if err != nil {
		t.Fatal(err)
	}

	req := mustInsert(t, mem, ApprovalRequest{
		Type: TypeClinicActivation, Status: StatusPending,
		RequesterID: "o", ResourceID: 1, Title: "Activate C",
	})
	if _, err := e.Approve(ctx, req.ID, "nobody", "", nil); !errors.Is(err, rbac.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	clinic, _ := mem.GetClinic(ctx, 1)
	if clinic.IsActive {
		t.Fatal("denied approval must not activate the clinic")
	}

	// Grant the reviewer role and the same call goes through.
	role := roleStore.PutRole(rbac.Role{Name: "reviewer", IsActive: true})
	perm := roleStore.PutPermission(rbac.Permission{Name: rbac.PermReviewClinicActivation, IsActive: true})
	roleStore.Link(role.ID, perm.ID, true)
	if _, err := resolver.AssignRole(ctx, "admin-1", role.ID, "root", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Approve(ctx, req.ID, "admin-1", "", nil); err != nil {
		t.Fatalf("granted approve failed: %v", err)
	}
}

func TestApproveFailsWhenNotificationRefused(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	mem.PutClinic(Clinic{ID: 1, OwnerID: "o", Name: "C"})
	n := newTestNotifier()
	n.failing = true
	e := newTestEngine(t, mem, n)

	req, _ := e.CreateRequest(ctx, NewRequest{
		Type: TypeClinicActivation, RequesterID: "o", ResourceID: 1, Title: "Activate C",
	})
	if _, err := e.Approve(ctx, req.ID, "admin-1", "", nil); err == nil {
		t.Fatal("approve must fail when the notification cannot be enqueued")
	}
}

func TestRejectVetRegistrationSendsEmail(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	mem.PutVeterinarian(Veterinarian{ID: 5, OwnerID: "vet-5", Name: "Dr. Lund"})
	n := newTestNotifier()
	e := newTestEngine(t, mem, n)

	req, _ := e.CreateRequest(ctx, NewRequest{
		Type: TypeVetRegistration, RequesterID: "vet-5", ResourceID: 5, Title: "Register Dr. Lund",
	})
	dec, err := e.Reject(ctx, req.ID, "admin-1", "unclear documents", "see notes")
	if err != nil {
		t.Fatal(err)
	}
	if dec.Status != StatusRejected {
		t.Fatalf("unexpected decision: %+v", dec)
	}

	stored, _ := mem.Get(ctx, req.ID)
	if stored.Status != StatusRejected || stored.RejectionReason != "unclear documents" {
		t.Fatalf("rejection not recorded: %+v", stored)
	}
	vet, _ := mem.GetVeterinarian(ctx, 5)
	if vet.IsVerified {
		t.Fatal("rejected vet must stay unverified")
	}
	if len(n.email) != 1 || n.email[0].RecipientID != "vet-5" {
		t.Fatalf("expected one email to vet-5, got %+v", n.email)
	}
	if len(n.admin) != 0 {
		t.Fatalf("vet rejection must not produce in-app notification, got %+v", n.admin)
	}
}

func TestRejectStoreActivationInApp(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	mem.PutStore(Store{ID: 2, OwnerID: "so", Name: "S", SubscriptionStatus: SubscriptionNone})
	n := newTestNotifier()
	e := newTestEngine(t, mem, n)

	req, _ := e.CreateRequest(ctx, NewRequest{
		Type: TypeStoreActivation, RequesterID: "so", ResourceID: 2, Title: "Activate S",
	})
	if _, err := e.Reject(ctx, req.ID, "admin-1", "missing license", ""); err != nil {
		t.Fatal(err)
	}
	if len(n.admin) != 1 || n.admin[0].Event != notify.EventRejection {
		t.Fatalf("expected in-app rejection, got %+v", n.admin)
	}
}

func TestRejectSyntheticIDUndefined(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	mem.PutStore(Store{ID: 7, OwnerID: "so", Name: "S", NeedsRenewal: true})
	n := newTestNotifier()
	e := newTestEngine(t, mem, n)

	if _, err := e.Reject(ctx, 20007, "admin-1", "no", ""); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("synthetic reject must be invalid state, got %v", err)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	n := newTestNotifier()
	e := newTestEngine(t, mem, n)

	if _, err := e.Reject(ctx, 1, "admin-1", "  ", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateRequestRejectsRenewalTypes(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	n := newTestNotifier()
	e := newTestEngine(t, mem, n)

	_, err := e.CreateRequest(ctx, NewRequest{
		Type: TypeClinicRenewal, RequesterID: "o", ResourceID: 1, Title: "x",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("renewal submission must fail validation, got %v", err)
	}
}

func TestCreateRequestUnknownResource(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	n := newTestNotifier()
	e := newTestEngine(t, mem, n)

	_, err := e.CreateRequest(ctx, NewRequest{
		Type: TypeClinicActivation, RequesterID: "o", ResourceID: 99, Title: "x",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSweepVersusApproveRace(t *testing.T) {
	// The sweep flips the store between the engine's read and its CAS;
	// the activation retries against the fresh flags and wins.
	ctx := context.Background()
	yesterday := time.Now().UTC().Add(-24 * time.Hour)
	mem := NewMemoryStore()
	mem.PutStore(Store{
		ID: 9, OwnerID: "so", Name: "S", IsActive: true,
		SubscriptionStatus: SubscriptionActive, ActivationEnd: &yesterday,
	})
	n := newTestNotifier()

	raced := &sweepOnRead{MemoryStore: mem}
	e, err := NewEngine(mem, raced, allowAll{}, n)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.Approve(ctx, 20009, "admin-1", "", nil); err != nil {
		t.Fatalf("activation must win the race, got %v", err)
	}
	store, _ := mem.GetStore(ctx, 9)
	if !store.IsActive || store.NeedsRenewal {
		t.Fatalf("mutual exclusion violated: %+v", store)
	}
	if store.SubscriptionStatus != SubscriptionActive {
		t.Fatalf("subscription must end active, got %s", store.SubscriptionStatus)
	}
}

// sweepOnRead expires the store right after the engine observes it,
// simulating the scanner racing the approval.
type sweepOnRead struct {
	*MemoryStore
	once sync.Once
}

func (s *sweepOnRead) GetStore(ctx context.Context, id int64) (Store, error) {
	st, err := s.MemoryStore.GetStore(ctx, id)
	if err != nil {
		return Store{}, err
	}
	s.once.Do(func() {
		_, _ = s.MemoryStore.ExpireStore(ctx, id, time.Now().UTC())
	})
	return st, nil
}
