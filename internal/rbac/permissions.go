package rbac

// Permission names required by the approval engine's mutating surface.
const (
	PermReviewVetRegistration  = "approvals.vet.review"
	PermReviewClinicActivation = "approvals.clinic.review"
	PermReviewStoreActivation  = "approvals.store.review"
	PermReviewRenewal          = "approvals.renewal.review"
	PermAssignRole             = "rbac.role.assign"
)

var BuiltinPermissions = []Permission{
	{Name: PermReviewVetRegistration, Description: "Review veterinarian registrations", IsActive: true},
	{Name: PermReviewClinicActivation, Description: "Review clinic activation requests", IsActive: true},
	{Name: PermReviewStoreActivation, Description: "Review store activation requests", IsActive: true},
	{Name: PermReviewRenewal, Description: "Review renewal candidates", IsActive: true},
	{Name: PermAssignRole, Description: "Assign and remove roles", IsActive: true},
}
