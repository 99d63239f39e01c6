package sharing

import (
	"container/list"
	"sync"
	"time"

	"github.com/vyrodovalexey/toolgate/internal/observability"
)

// DecisionCache caches per-tenant sharing decisions for a bounded time.
// Only policy outcomes are cached; dependency failures never are.
type DecisionCache interface {
	// Get returns the cached decision and whether one exists.
	Get(key string) (decision bool, ok bool)

	// Set stores a decision under key.
	Set(key string, decision bool)

	// Close stops background maintenance.
	Close()
}

// decisionEntry is one cached decision.
type decisionEntry struct {
	key       string
	decision  bool
	expiresAt time.Time
}

// memoryDecisionCache bounds staleness with a per-entry TTL and bounds
// size by evicting the least recently used entry.
type memoryDecisionCache struct {
	ttl        time.Duration
	maxEntries int
	logger     observability.Logger
	metrics    *Metrics

	mu       sync.Mutex
	items    map[string]*list.Element
	eviction *list.List

	stopCh    chan struct{}
	closeOnce sync.Once
}

var _ DecisionCache = (*memoryDecisionCache)(nil)

// CacheOption configures a decision cache.
type CacheOption func(*memoryDecisionCache)

// WithCacheLogger sets the cache logger.
func WithCacheLogger(logger observability.Logger) CacheOption {
	return func(c *memoryDecisionCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCacheMetrics sets the cache metrics recorder.
func WithCacheMetrics(metrics *Metrics) CacheOption {
	return func(c *memoryDecisionCache) {
		c.metrics = metrics
	}
}

// NewMemoryDecisionCache creates an in-memory decision cache.
func NewMemoryDecisionCache(ttl time.Duration, maxEntries int, opts ...CacheOption) DecisionCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 10000
	}

	c := &memoryDecisionCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		logger:     observability.NopLogger(),
		items:      make(map[string]*list.Element),
		eviction:   list.New(),
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.cleanupLoop()

	return c
}

// Get implements DecisionCache.
func (c *memoryDecisionCache) Get(key string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[key]
	if !exists {
		return false, false
	}

	entry := elem.Value.(*decisionEntry)
	if time.Now().After(entry.expiresAt) {
		c.removeElement(elem)
		return false, false
	}

	c.eviction.MoveToFront(elem)
	return entry.decision, true
}

// Set implements DecisionCache.
func (c *memoryDecisionCache) Set(key string, decision bool) {
	entry := &decisionEntry{
		key:       key,
		decision:  decision,
		expiresAt: time.Now().Add(c.ttl),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.eviction.MoveToFront(elem)
		elem.Value = entry
		return
	}

	elem := c.eviction.PushFront(entry)
	c.items[key] = elem

	for c.eviction.Len() > c.maxEntries {
		c.evictOldest()
	}
}

// Close implements DecisionCache.
func (c *memoryDecisionCache) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCh)

		c.mu.Lock()
		defer c.mu.Unlock()
		c.items = make(map[string]*list.Element)
		c.eviction.Init()
	})
}

// evictOldest removes the least recently used entry.
// Must be called with lock held.
func (c *memoryDecisionCache) evictOldest() {
	elem := c.eviction.Back()
	if elem != nil {
		c.removeElement(elem)
		c.metrics.RecordCacheEviction()
	}
}

// removeElement removes an element from the cache.
// Must be called with lock held.
func (c *memoryDecisionCache) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	entry := elem.Value.(*decisionEntry)
	delete(c.items, entry.key)
}

// cleanupLoop periodically removes expired entries.
func (c *memoryDecisionCache) cleanupLoop() {
	interval := c.ttl
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCh:
			return
		}
	}
}

// cleanup removes expired entries under a single write lock.
func (c *memoryDecisionCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var toRemove []*list.Element

	for elem := c.eviction.Back(); elem != nil; elem = elem.Prev() {
		entry := elem.Value.(*decisionEntry)
		if now.After(entry.expiresAt) {
			toRemove = append(toRemove, elem)
		}
	}

	for _, elem := range toRemove {
		c.removeElement(elem)
	}

	if len(toRemove) > 0 {
		c.logger.Debug("decision cache cleanup completed",
			observability.Int("removed", len(toRemove)))
	}
}

// nopDecisionCache never stores anything. It backs tests and deployments
// that want every resolution to hit the store.
type nopDecisionCache struct{}

var _ DecisionCache = nopDecisionCache{}

// NewNopDecisionCache creates a cache that always misses.
func NewNopDecisionCache() DecisionCache {
	return nopDecisionCache{}
}

func (nopDecisionCache) Get(string) (bool, bool) { return false, false }
func (nopDecisionCache) Set(string, bool)        {}
func (nopDecisionCache) Close()                  {}
