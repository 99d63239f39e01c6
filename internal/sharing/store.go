package sharing

import (
	"context"
	"fmt"

	"github.com/vyrodovalexey/toolgate/internal/config"
	"github.com/vyrodovalexey/toolgate/internal/observability"
)

// Store reads sharing records from the durable record store.
type Store interface {
	// Fetch returns all sharing records for one resource in a single
	// round trip. ErrRecordNotFound when the resource has none;
	// ErrStoreUnavailable when the store could not answer.
	Fetch(ctx context.Context, resourceID string) ([]Record, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	// Close releases store resources.
	Close() error
}

// storeOptions holds optional store collaborators.
type storeOptions struct {
	metrics *Metrics
}

// StoreOption configures a store backend.
type StoreOption func(*storeOptions)

// WithStoreMetrics sets the metrics recorder for store operations.
func WithStoreMetrics(metrics *Metrics) StoreOption {
	return func(o *storeOptions) {
		o.metrics = metrics
	}
}

// NewStore creates the configured store backend.
func NewStore(cfg config.SharingConfig, logger observability.Logger, opts ...StoreOption) (Store, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	o := &storeOptions{}
	for _, opt := range opts {
		opt(o)
	}

	switch cfg.Backend {
	case config.SharingBackendStatic:
		return newStaticStore(cfg.StaticRecords), nil
	case config.SharingBackendRedis, "":
		return newRedisStore(cfg, logger, o)
	default:
		return nil, fmt.Errorf("unknown sharing backend %q", cfg.Backend)
	}
}
