// Package rescache implements the bounded, identity-keyed, LRU-evicted
// resource cache of this module: it amortizes the cost of constructing
// guest-side handles (Arrow field resources, config-option resources)
// across batches, evicting by least-recently-used and running a
// caller-supplied cleanup exactly once per evicted entry.
package rescache

import (
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/hashicorp/go-multierror"
)

// Value is the "value kind" of this module: a cached handle that knows
// how to release itself when evicted or reaped.
type Value[C any] interface {
	Clean(ctx C) error
}

// NewFunc constructs a V for a freshly-missed key.
type NewFunc[K any, V Value[C], C any] func(k *Ref[K], ctx C) (V, error)

type entry[K any, V Value[C], C any] struct {
	key      *Ref[K]
	value    V
	lastUsed uint64
}

// Cache is a generic, bounded, identity-keyed LRU cache. K is the key
// kind (wrapped in a Ref for weak-identity semantics), V is the cached
// value kind, and C is the construction/cleanup context type threaded
// through New and Clean.
type Cache[K any, V Value[C], C any] struct {
	mu      sync.Mutex
	max     int
	newFn   NewFunc[K, V, C]
	lru     *lru.Cache
	entries map[uintptr]*entry[K, V, C]
	clock   uint64

	// evictCtx and evictErrs let the synchronous OnEvicted callback
	// (invoked from inside lru.Cache.Add/Remove, under c.mu) reach the
	// ctx of the call that triggered it and report Clean failures back
	// up to the caller without changing groupcache's callback signature.
	evictCtx  C
	evictErrs []error
}

// New constructs a Cache holding at most max entries, using newFn to
// build a V on a miss.
func New[K any, V Value[C], C any](max int, newFn NewFunc[K, V, C]) *Cache[K, V, C] {
	c := &Cache[K, V, C]{
		max:     max,
		newFn:   newFn,
		entries: make(map[uintptr]*entry[K, V, C]),
	}
	c.lru = &lru.Cache{
		MaxEntries: max,
		OnEvicted: func(key lru.Key, value interface{}) {
			addr := key.(uintptr)
			delete(c.entries, addr)
			ent := value.(*entry[K, V, C])
			if err := ent.value.Clean(c.evictCtx); err != nil {
				c.evictErrs = append(c.evictErrs, err)
			}
		},
	}
	return c
}

// Cache returns the cached value for k, constructing and storing one
// via newFn on a miss. A hit bumps k's recency. On a miss when the
// cache is full, expired entries (whose key Ref has no remaining
// strong references) are reclaimed first; if the cache is still full,
// the least-recently-used entry is evicted and cleaned.
func (c *Cache[K, V, C]) Cache(k *Ref[K], ctx C) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	addr := k.addr()
	if v, ok := c.lru.Get(addr); ok {
		ent := v.(*entry[K, V, C])
		c.clock++
		ent.lastUsed = c.clock
		return ent.value, nil
	}

	if len(c.entries) >= c.max && c.max > 0 {
		if _, err := c.cleanExpiredLocked(ctx); err != nil {
			var zero V
			return zero, err
		}
	}

	value, err := c.newFn(k, ctx)
	if err != nil {
		var zero V
		return zero, err
	}

	c.clock++
	ent := &entry[K, V, C]{key: k, value: value, lastUsed: c.clock}
	c.entries[addr] = ent

	c.evictCtx = ctx
	c.evictErrs = nil
	c.lru.Add(addr, ent) // may synchronously evict the LRU entry if still full
	evictErrs := c.evictErrs
	c.evictErrs = nil

	if len(evictErrs) > 0 {
		return value, multierror.Append(nil, evictErrs...).ErrorOrNil()
	}
	return value, nil
}

// Clean removes every entry whose key Ref has no remaining strong
// references, running each removed value's Clean exactly once. A clean
// failure during eviction still removes the entry from the map, so a
// retry is a cache miss rather than a repeat of the same failure;
// multiple failures are aggregated.
func (c *Cache[K, V, C]) Clean(ctx C) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleanExpiredLocked(ctx)
}

func (c *Cache[K, V, C]) cleanExpiredLocked(ctx C) (int, error) {
	var dead []uintptr
	for addr, ent := range c.entries {
		if !ent.key.Alive() {
			dead = append(dead, addr)
		}
	}
	c.evictCtx = ctx
	c.evictErrs = nil
	for _, addr := range dead {
		c.lru.Remove(addr) // triggers OnEvicted, which deletes from c.entries
	}
	errs := c.evictErrs
	c.evictErrs = nil
	if len(errs) > 0 {
		return len(dead), multierror.Append(nil, errs...).ErrorOrNil()
	}
	return len(dead), nil
}

// Len reports the number of live entries, for tests and diagnostics.
func (c *Cache[K, V, C]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
