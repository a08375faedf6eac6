// Command smoke-approvals runs the full approval lifecycle against the
// in-memory stores: submit, approve, sweep, renew. Exits non-zero on the
// first broken invariant.
package main

import (
	"context"
	"log"
	"time"

	"vetgrid.org/internal/approval"
	"vetgrid.org/internal/notify"
	"vetgrid.org/internal/rbac"
)

func main() {
	log.SetFlags(0)
	ctx := context.Background()

	mem := approval.NewMemoryStore()
	roleStore := rbac.NewMemoryStore()
	if err := roleStore.EnsurePermissions(ctx, rbac.BuiltinPermissions); err != nil {
		log.Fatalf("seed permissions: %v", err)
	}

	resolver, err := rbac.NewResolver(roleStore)
	if err != nil {
		log.Fatalf("resolver: %v", err)
	}

	// Reviewer role with the full approval surface.
	role := roleStore.PutRole(rbac.Role{Name: "reviewer", IsActive: true})
	for _, name := range []string{
		rbac.PermReviewVetRegistration,
		rbac.PermReviewClinicActivation,
		rbac.PermReviewStoreActivation,
		rbac.PermReviewRenewal,
	} {
		perm := roleStore.PutPermission(rbac.Permission{Name: name, IsActive: true})
		roleStore.Link(role.ID, perm.ID, true)
	}
	if _, err := resolver.AssignRole(ctx, "admin-1", role.ID, "bootstrap", nil); err != nil {
		log.Fatalf("assign role: %v", err)
	}

	sink := notify.NewMemorySink()
	queue, err := notify.NewQueue(sink)
	if err != nil {
		log.Fatalf("notify queue: %v", err)
	}
	defer queue.Close()

	gate := rbac.NewAuthorizer(resolver)
	engine, err := approval.NewEngine(mem, mem, gate, queue)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}

	mem.PutClinic(approval.Clinic{ID: 1, OwnerID: "owner-1", Name: "Smoke Clinic"})
	req, err := engine.CreateRequest(ctx, approval.NewRequest{
		Type:        approval.TypeClinicActivation,
		RequesterID: "owner-1",
		ResourceID:  1,
		Title:       "Activate Smoke Clinic",
	})
	if err != nil {
		log.Fatalf("create request: %v", err)
	}

	if _, err := engine.Approve(ctx, req.ID, "admin-1", "looks good", nil); err != nil {
		log.Fatalf("approve: %v", err)
	}
	clinic, err := mem.GetClinic(ctx, 1)
	if err != nil {
		log.Fatalf("get clinic: %v", err)
	}
	if !clinic.IsActive || clinic.NeedsRenewal {
		log.Fatalf("activation invariant broken: active=%v renewal=%v", clinic.IsActive, clinic.NeedsRenewal)
	}

	// Re-approving must fail: the transition is at-most-once.
	if _, err := engine.Approve(ctx, req.ID, "admin-1", "", nil); err == nil {
		log.Fatal("second approve unexpectedly succeeded")
	}

	// Force expiry and sweep the clinic into the renewal queue.
	past := time.Now().Add(-24 * time.Hour)
	clinic.ActivationEnd = &past
	mem.PutClinic(clinic)

	scanner, err := approval.NewScanner(mem, queue)
	if err != nil {
		log.Fatalf("scanner: %v", err)
	}
	res, err := scanner.Sweep(ctx)
	if err != nil {
		log.Fatalf("sweep: %v", err)
	}
	if res.ClinicsTransitioned != 1 {
		log.Fatalf("expected 1 clinic transition, got %d", res.ClinicsTransitioned)
	}

	pending, err := approval.NewQueue(mem, mem)
	if err != nil {
		log.Fatalf("queue builder: %v", err)
	}
	items, err := pending.ListPending(ctx, approval.TypeClinicRenewal)
	if err != nil || len(items) != 1 {
		log.Fatalf("expected 1 renewal candidate, got %d (err=%v)", len(items), err)
	}

	if _, err := engine.Approve(ctx, items[0].ID, "admin-1", "renewed", nil); err != nil {
		log.Fatalf("approve renewal: %v", err)
	}

	log.Println("OK: submit -> approve -> expire -> sweep -> renew")
}
