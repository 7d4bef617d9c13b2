package esi

import (
	"sync"
	"time"

	"eve-industry/internal/logger"

	"golang.org/x/sync/singleflight"
)

// OrderTTL is how long fetched order books stay fresh. ESI refreshes market
// orders every five minutes.
const OrderTTL = 5 * time.Minute

type orderCacheEntry struct {
	orders  []MarketOrder
	expires time.Time
}

// OrderCache is a thread-safe in-memory cache of order books keyed by scope
// ("region:10000002:34", "structure:1035466617946"). A singleflight.Group
// collapses concurrent loads of the same scope into one upstream fetch, so
// many quote lookups against one structure trigger one page sweep.
type OrderCache struct {
	mu      sync.RWMutex
	entries map[string]*orderCacheEntry
	group   singleflight.Group
	now     func() time.Time
}

// NewOrderCache creates an empty order cache.
func NewOrderCache() *OrderCache {
	return &OrderCache{
		entries: make(map[string]*orderCacheEntry),
		now:     time.Now,
	}
}

// Get returns cached orders if present and not expired.
func (oc *OrderCache) Get(key string) ([]MarketOrder, bool) {
	oc.mu.RLock()
	defer oc.mu.RUnlock()

	e, ok := oc.entries[key]
	if !ok || oc.now().After(e.expires) {
		return nil, false
	}
	return e.orders, true
}

// Put stores orders under key until expires.
func (oc *OrderCache) Put(key string, orders []MarketOrder, expires time.Time) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.entries[key] = &orderCacheEntry{orders: orders, expires: expires}
}

// Clear drops every entry and returns how many were removed.
func (oc *OrderCache) Clear() int {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	n := len(oc.entries)
	oc.entries = make(map[string]*orderCacheEntry)
	return n
}

// Load returns cached orders for key or runs fetch once, even when called
// concurrently, and caches its result for OrderTTL.
func (oc *OrderCache) Load(key string, fetch func() ([]MarketOrder, error)) ([]MarketOrder, error) {
	if orders, ok := oc.Get(key); ok {
		return orders, nil
	}
	v, err, shared := oc.group.Do(key, func() (interface{}, error) {
		if orders, ok := oc.Get(key); ok {
			return orders, nil
		}
		orders, err := fetch()
		if err != nil {
			return nil, err
		}
		oc.Put(key, orders, oc.now().Add(OrderTTL))
		return orders, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debug("ESI", "order cache load shared for "+key)
	}
	return v.([]MarketOrder), nil
}
