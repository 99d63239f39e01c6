package sharing

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"

	"github.com/vyrodovalexey/toolgate/internal/observability"
)

// Resolver answers whether a caller tenant may use a resource. Decisions
// come from the cache when fresh, otherwise from a store fetch; concurrent
// misses for the same resource share one fetch.
type Resolver struct {
	store   Store
	cache   DecisionCache
	logger  observability.Logger
	metrics *Metrics

	group singleflight.Group
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets the resolver logger.
func WithResolverLogger(logger observability.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithResolverMetrics sets the resolver metrics recorder.
func WithResolverMetrics(metrics *Metrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = metrics
	}
}

// NewResolver creates a resolver over store with cache in front.
func NewResolver(store Store, cache DecisionCache, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:  store,
		cache:  cache,
		logger: observability.NopLogger(),
	}
	if r.cache == nil {
		r.cache = NewNopDecisionCache()
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve reports whether tenantID may use resourceID. Policy outcomes
// (allow, deny, no records) are cached for the configured TTL. A store
// failure returns an error and is never cached: the answer is unknown,
// not a deny, and the next call must retry the store.
func (r *Resolver) Resolve(ctx context.Context, resourceID, tenantID string) (bool, error) {
	key := decisionKey(resourceID, tenantID)

	if decision, ok := r.cache.Get(key); ok {
		r.metrics.RecordCacheHit()
		r.metrics.RecordResolution(outcomeLabel(decision))
		return decision, nil
	}
	r.metrics.RecordCacheMiss()

	fetched, err, _ := r.group.Do(resourceID, func() (any, error) {
		return r.store.Fetch(ctx, resourceID)
	})
	records, _ := fetched.([]Record)
	if errors.Is(err, ErrRecordNotFound) {
		r.cache.Set(key, false)
		r.metrics.RecordResolution("deny")
		r.logger.Debug("no sharing records for resource",
			observability.String("resourceId", resourceID),
			observability.String("tenantId", tenantID))
		return false, nil
	}
	if err != nil {
		r.metrics.RecordResolution("dependency_failure")
		r.logger.Error("sharing resolution failed",
			observability.String("errorCategory", "dependency_failure"),
			observability.String("resourceId", resourceID),
			observability.String("tenantId", tenantID),
			observability.Error(err))
		return false, err
	}

	decision := decide(records, tenantID)
	r.cache.Set(key, decision)
	r.metrics.RecordResolution(outcomeLabel(decision))

	r.logger.Debug("sharing resolved",
		observability.String("resourceId", resourceID),
		observability.String("tenantId", tenantID),
		observability.Bool("allowed", decision),
		observability.Int("records", len(records)))

	return decision, nil
}

// Close releases the resolver's cache and store.
func (r *Resolver) Close() error {
	r.cache.Close()
	return r.store.Close()
}

// decide applies the sharing rule: the owner always passes, a public
// record admits everyone, and a private (or unset) record admits its
// consumer tenant while the grant is active. owner_only records admit
// nobody beyond the owner.
func decide(records []Record, tenantID string) bool {
	if tenantID != "" {
		for _, rec := range records {
			if rec.OwnerTenantID == tenantID {
				return true
			}
		}
	}

	for _, rec := range records {
		switch rec.Visibility {
		case VisibilityPublic:
			return true
		case VisibilityOwnerOnly:
			continue
		default:
			if tenantID != "" && rec.ConsumerTenantID == tenantID && rec.Status == StatusActive {
				return true
			}
		}
	}

	return false
}

func decisionKey(resourceID, tenantID string) string {
	return resourceID + "|" + tenantID
}

func outcomeLabel(decision bool) string {
	if decision {
		return "allow"
	}
	return "deny"
}
