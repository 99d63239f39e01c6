package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"golang.org/x/sync/singleflight"
)

// KeyProvider supplies verification keys by key ID.
type KeyProvider interface {
	// Key returns the raw public key for the given key ID.
	Key(ctx context.Context, kid string) (any, error)
}

// JWKSConfig configures the JWKS key cache.
type JWKSConfig struct {
	// URL is the issuer's JWKS endpoint.
	URL string

	// CacheTTL bounds how long a fetched key set is served without a
	// refresh. Default: 10 minutes.
	CacheTTL time.Duration

	// FetchTimeout bounds a single fetch of the endpoint. Default: 2s.
	FetchTimeout time.Duration

	// HTTPClient overrides the HTTP client used for fetches.
	HTTPClient *http.Client
}

// JWKSCache fetches and caches the issuer's published key material.
// Lookups serve from the cache inside the TTL; refreshes are deduplicated
// across callers, and a failed refresh falls back to the last good key
// set. An unknown key ID forces one refresh before failing.
type JWKSCache struct {
	config  JWKSConfig
	client  *http.Client
	metrics *Metrics

	mu        sync.RWMutex
	keys      jwk.Set
	fetchedAt time.Time

	group singleflight.Group
}

var _ KeyProvider = (*JWKSCache)(nil)

// JWKSOption configures a JWKSCache.
type JWKSOption func(*JWKSCache)

// WithJWKSMetrics sets the metrics recorder for refreshes.
func WithJWKSMetrics(metrics *Metrics) JWKSOption {
	return func(c *JWKSCache) {
		c.metrics = metrics
	}
}

// NewJWKSCache creates a JWKS cache for the configured endpoint.
func NewJWKSCache(config JWKSConfig, opts ...JWKSOption) *JWKSCache {
	if config.CacheTTL == 0 {
		config.CacheTTL = 10 * time.Minute
	}
	if config.FetchTimeout == 0 {
		config.FetchTimeout = 2 * time.Second
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: config.FetchTimeout}
	}

	c := &JWKSCache{
		config: config,
		client: client,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the raw public key for the given key ID.
func (c *JWKSCache) Key(ctx context.Context, kid string) (any, error) {
	c.mu.RLock()
	set := c.keys
	fresh := set != nil && time.Since(c.fetchedAt) < c.config.CacheTTL
	c.mu.RUnlock()

	if fresh {
		if key, err := rawKey(set, kid); err == nil {
			return key, nil
		}
	}

	if err := c.refresh(ctx); err != nil {
		// Serve the last good key set when the issuer is unreachable.
		if set != nil {
			if key, lookupErr := rawKey(set, kid); lookupErr == nil {
				return key, nil
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrJWKSUnavailable, err)
	}

	c.mu.RLock()
	set = c.keys
	c.mu.RUnlock()

	return rawKey(set, kid)
}

// Ready reports whether verification key material is present, fetching
// the key set once when nothing has been cached yet.
func (c *JWKSCache) Ready(ctx context.Context) error {
	c.mu.RLock()
	cached := c.keys != nil && c.keys.Len() > 0
	c.mu.RUnlock()

	if cached {
		return nil
	}

	if err := c.refresh(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrJWKSUnavailable, err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.keys == nil || c.keys.Len() == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// refresh fetches the key set, deduplicating concurrent refreshes.
func (c *JWKSCache) refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, c.config.FetchTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, c.config.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch jwks: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("jwks endpoint returned status %d", resp.StatusCode)
		}

		set, err := jwk.ParseReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("parse jwks: %w", err)
		}

		c.mu.Lock()
		c.keys = set
		c.fetchedAt = time.Now()
		c.mu.Unlock()

		return nil, nil
	})
	if err != nil {
		c.metrics.RecordJWKSRefresh("failure")
		return err
	}
	c.metrics.RecordJWKSRefresh("success")
	return nil
}

// rawKey extracts the raw public key for kid from a key set. An empty kid
// matches a single-key set.
func rawKey(set jwk.Set, kid string) (any, error) {
	if set == nil {
		return nil, ErrKeyNotFound
	}

	var key jwk.Key
	if kid == "" {
		if set.Len() != 1 {
			return nil, ErrKeyNotFound
		}
		key, _ = set.Key(0)
	} else {
		var ok bool
		key, ok = set.LookupKeyID(kid)
		if !ok {
			return nil, ErrKeyNotFound
		}
	}

	var raw any
	if err := key.Raw(&raw); err != nil {
		return nil, fmt.Errorf("extract raw key: %w", err)
	}
	return raw, nil
}
