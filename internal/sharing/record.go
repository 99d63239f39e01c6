// Package sharing resolves cross-tenant resource access from a durable
// record store, with a TTL-bounded decision cache in front. Store
// failures are surfaced as dependency errors so callers can fail closed
// without caching the outcome.
package sharing

// Visibility values carried on sharing records.
const (
	// VisibilityPublic admits every tenant.
	VisibilityPublic = "public"

	// VisibilityPrivate admits the owner and tenants holding an active
	// grant. Records with an empty visibility are treated as private.
	VisibilityPrivate = "private"

	// VisibilityOwnerOnly admits the owner alone.
	VisibilityOwnerOnly = "owner_only"
)

// StatusActive marks a consumer grant as currently valid. Grants in any
// other status never admit the consumer.
const StatusActive = "active"

// Record is one sharing grant for a resource. Owner and visibility are
// denormalized onto every record so a single fetch carries the full
// sharing picture for one resource.
type Record struct {
	ResourceID       string `json:"resourceId"`
	OwnerTenantID    string `json:"ownerTenantId"`
	ConsumerTenantID string `json:"consumerTenantId"`
	Visibility       string `json:"visibility"`
	Status           string `json:"status"`
}
