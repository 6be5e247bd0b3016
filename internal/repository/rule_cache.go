package repository

import (
	"context"
	"sync"
	"time"

	"github.com/kazuhito/yoyaku/internal/model"
)

// CachedRuleStore decorates a RuleStore with a per-store TTL cache for
// ActiveByStore. It exists for the read path (availability projection),
// which may serve rule lists a few seconds stale; writes go straight
// through and invalidate the affected store.
//
// The cache refresh is cooperative: a lookup past its TTL re-reads
// inline, there is no background goroutine to manage.
type CachedRuleStore struct {
	inner RuleStore
	ttl   time.Duration
	now   func() time.Time

	mu      sync.RWMutex
	entries map[string]ruleCacheEntry
}

type ruleCacheEntry struct {
	rules   []model.Rule
	expires time.Time
}

// NewCachedRuleStore wraps inner with a TTL cache. A non-positive TTL
// defaults to 5 seconds.
func NewCachedRuleStore(inner RuleStore, ttl time.Duration) *CachedRuleStore {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &CachedRuleStore{
		inner:   inner,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]ruleCacheEntry),
	}
}

// ActiveByStore serves from cache within the TTL, otherwise reads
// through. A read-through failure falls back to the stale entry when one
// exists: stale rules beat an empty calendar on a transient outage.
func (c *CachedRuleStore) ActiveByStore(ctx context.Context, storeID string) ([]model.Rule, error) {
	c.mu.RLock()
	e, ok := c.entries[storeID]
	c.mu.RUnlock()
	if ok && c.now().Before(e.expires) {
		return e.rules, nil
	}

	rules, err := c.inner.ActiveByStore(ctx, storeID)
	if err != nil {
		if ok {
			return e.rules, nil
		}
		return nil, err
	}
	c.mu.Lock()
	c.entries[storeID] = ruleCacheEntry{rules: rules, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return rules, nil
}

// Insert writes through and invalidates the store's cached list.
func (c *CachedRuleStore) Insert(ctx context.Context, r *model.Rule) error {
	if err := c.inner.Insert(ctx, r); err != nil {
		return err
	}
	c.Invalidate(r.StoreID)
	return nil
}

// DeactivateByIDPrefix writes through and invalidates.
func (c *CachedRuleStore) DeactivateByIDPrefix(ctx context.Context, storeID, prefix string) (*model.Rule, error) {
	rule, err := c.inner.DeactivateByIDPrefix(ctx, storeID, prefix)
	if err != nil {
		return nil, err
	}
	c.Invalidate(storeID)
	return rule, nil
}

// Invalidate drops the cached rule list for a store.
func (c *CachedRuleStore) Invalidate(storeID string) {
	c.mu.Lock()
	delete(c.entries, storeID)
	c.mu.Unlock()
}
